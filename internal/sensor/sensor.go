// Package sensor reads relative humidity and temperature from the station's
// sensor. Reads never fail with an error: a transient failure yields NaN,
// matching the DHT library contract the cycle relies on.
package sensor

import (
	"fmt"
	"log/slog"

	"cloudpico-station/internal/config"
)

type Sensor interface {
	// ReadHumidity returns relative humidity in percent, or NaN.
	ReadHumidity() float64
	// ReadTemperature returns the temperature in °C, or NaN.
	ReadTemperature() float64
	Close() error
}

// New opens the sensor selected by cfg.SensorKind.
func New(cfg config.Config, logger *slog.Logger) (Sensor, error) {
	switch cfg.SensorKind {
	case "dht22":
		return NewIIO(cfg.SensorIIODir, logger), nil
	case "bme280":
		return NewBME280(cfg.I2CBus, cfg.BME280Address, logger)
	default:
		return nil, fmt.Errorf("unknown sensor kind %q", cfg.SensorKind)
	}
}
