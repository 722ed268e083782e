package weather

import "math"

// CelsiusToFahrenheit uses the same constants as the DHT sensor library.
func CelsiusToFahrenheit(c float64) float64 {
	return c*1.8 + 32
}

// FahrenheitToCelsius uses the same constants as the DHT sensor library,
// including its truncated 5/9 factor.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 0.55555
}

// HeatIndex computes the NWS heat index the way the Adafruit DHT library
// does: Steadman's simple formula, replaced by the Rothfusz regression (with
// its humidity adjustments) once the simple result exceeds 79°F.
// temperature is in °F when fahrenheit is true, °C otherwise; the result
// uses the same unit.
func HeatIndex(temperature, humidity float64, fahrenheit bool) float64 {
	t := temperature
	if !fahrenheit {
		t = CelsiusToFahrenheit(t)
	}
	rh := humidity

	hi := 0.5 * (t + 61.0 + ((t - 68.0) * 1.2) + (rh * 0.094))

	if hi > 79 {
		hi = -42.379 +
			2.04901523*t +
			10.14333127*rh +
			-0.22475541*t*rh +
			-0.00683783*math.Pow(t, 2) +
			-0.05481717*math.Pow(rh, 2) +
			0.00122874*math.Pow(t, 2)*rh +
			0.00085282*t*math.Pow(rh, 2) +
			-0.00000199*math.Pow(t, 2)*math.Pow(rh, 2)

		if rh < 13 && t >= 80.0 && t <= 112.0 {
			hi -= ((13.0 - rh) * 0.25) * math.Sqrt((17.0-math.Abs(t-95.0))*0.05882)
		} else if rh > 85.0 && t >= 80.0 && t <= 87.0 {
			hi += ((rh - 85.0) * 0.1) * ((87.0 - t) * 0.2)
		}
	}

	if fahrenheit {
		return hi
	}
	return FahrenheitToCelsius(hi)
}
