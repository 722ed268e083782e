package sensor

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// envSensor is the part of *bmxx80.Dev the station uses.
type envSensor interface {
	Sense(e *physic.Env) error
	Halt() error
}

// BME280 reads a Bosch BME280 over I²C using periph.io.
//
// Humidity and temperature are served from one conversion: a read triggers a
// new Sense only once the value asked for has already been handed out.
type BME280 struct {
	bus    io.Closer
	dev    envSensor
	logger *slog.Logger

	env             physic.Env
	ok              bool
	haveHumidity    bool
	haveTemperature bool
}

// NewBME280 opens busName ("" selects the default bus, usually /dev/i2c-1)
// and configures the sensor at addr.
func NewBME280(busName string, addr uint16, logger *slog.Logger) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return openBME280(bus, addr, logger)
}

// openBME280 takes ownership of bus and closes it on failure.
func openBME280(bus i2c.BusCloser, addr uint16, logger *slog.Logger) (*BME280, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280 at %#x: %w", addr, err)
	}

	logger.Info("sensor: using bme280", "bus", bus.String(), "address", fmt.Sprintf("%#x", addr))
	return newBME280(bus, dev, logger), nil
}

func newBME280(bus io.Closer, dev envSensor, logger *slog.Logger) *BME280 {
	if logger == nil {
		logger = slog.Default()
	}
	return &BME280{bus: bus, dev: dev, logger: logger}
}

func (s *BME280) ReadHumidity() float64 {
	if !s.haveHumidity {
		s.sense()
	}
	s.haveHumidity = false
	if !s.ok {
		return math.NaN()
	}
	// env.Humidity is fixed point at 0.00001 %rH.
	return float64(s.env.Humidity) / float64(physic.PercentRH)
}

func (s *BME280) ReadTemperature() float64 {
	if !s.haveTemperature {
		s.sense()
	}
	s.haveTemperature = false
	if !s.ok {
		return math.NaN()
	}
	return s.env.Temperature.Celsius()
}

// Close halts the sensor before releasing the bus it talks over.
func (s *BME280) Close() error {
	haltErr := s.dev.Halt()
	if err := s.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

func (s *BME280) sense() {
	s.env = physic.Env{}
	s.haveHumidity, s.haveTemperature = true, true
	if err := s.dev.Sense(&s.env); err != nil {
		s.logger.Debug("sensor: bme280 sense failed", "error", err)
		s.ok = false
		return
	}
	s.ok = true
}
