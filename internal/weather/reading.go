// Package weather holds the per-cycle reading and the heat index formula.
package weather

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidReading is returned when a sensor value or the derived heat
// index is not a number.
var ErrInvalidReading = errors.New("invalid reading")

// Reading is one sample taken during a wake cycle.
type Reading struct {
	Humidity    float64 // relative humidity, %
	Temperature float64 // °C
	HeatIndex   float64 // °C
}

// NewReading derives the heat index from the raw sensor values.
// It fails with ErrInvalidReading if any of the three values is NaN.
func NewReading(humidity, temperature float64) (Reading, error) {
	r := Reading{
		Humidity:    humidity,
		Temperature: temperature,
		HeatIndex:   HeatIndex(temperature, humidity, false),
	}
	if !r.Valid() {
		return r, fmt.Errorf("%w: humidity=%v temperature=%v heat_index=%v",
			ErrInvalidReading, r.Humidity, r.Temperature, r.HeatIndex)
	}
	return r, nil
}

// Valid reports whether every field is a number.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Humidity) && !math.IsNaN(r.Temperature) && !math.IsNaN(r.HeatIndex)
}

func (r Reading) String() string {
	return fmt.Sprintf("Humidity: %.2f%%  Temperature: %.2f°C  Heat index: %.2f°C",
		r.Humidity, r.Temperature, r.HeatIndex)
}
