package sensor

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

// fakeEnvSensor returns scripted environments, one per Sense call.
type fakeEnvSensor struct {
	envs   []physic.Env
	err    error
	senses int
	log    *[]string
}

func (f *fakeEnvSensor) Sense(e *physic.Env) error {
	f.senses++
	if f.err != nil {
		return f.err
	}
	*e = f.envs[0]
	if len(f.envs) > 1 {
		f.envs = f.envs[1:]
	}
	return nil
}

func (f *fakeEnvSensor) Halt() error {
	*f.log = append(*f.log, "halt")
	return nil
}

type recordingCloser struct {
	log *[]string
	err error
}

func (c recordingCloser) Close() error {
	*c.log = append(*c.log, "bus close")
	return c.err
}

// closeCountingBus is a scripted I²C bus that remembers being closed.
type closeCountingBus struct {
	*i2ctest.Playback
	closes int
}

func (b *closeCountingBus) Close() error {
	b.closes++
	return nil
}

func env(celsius float64, percentRH float64) physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(celsius*float64(physic.Celsius)),
		Humidity:    physic.RelativeHumidity(percentRH * float64(physic.PercentRH)),
	}
}

func TestBME280_Read(t *testing.T) {
	var log []string
	dev := &fakeEnvSensor{envs: []physic.Env{env(21, 45.2)}, log: &log}
	s := newBME280(recordingCloser{log: &log}, dev, nil)

	if got := s.ReadHumidity(); math.Abs(got-45.2) > 1e-6 {
		t.Errorf("ReadHumidity() = %v, want 45.2", got)
	}
	if got := s.ReadTemperature(); math.Abs(got-21) > 1e-6 {
		t.Errorf("ReadTemperature() = %v, want 21", got)
	}
	if dev.senses != 1 {
		t.Errorf("Sense called %d times, want 1 for one humidity/temperature pair", dev.senses)
	}
}

func TestBME280_PairsComeFromOneConversion(t *testing.T) {
	var log []string
	dev := &fakeEnvSensor{envs: []physic.Env{env(21, 45.2), env(-3.5, 80)}, log: &log}
	s := newBME280(recordingCloser{log: &log}, dev, nil)

	// Temperature first, then humidity: still one conversion.
	t1, h1 := s.ReadTemperature(), s.ReadHumidity()
	h2, t2 := s.ReadHumidity(), s.ReadTemperature()

	if math.Abs(t1-21) > 1e-6 || math.Abs(h1-45.2) > 1e-6 {
		t.Errorf("first pair = %v°C %v%%, want 21°C 45.2%%", t1, h1)
	}
	if math.Abs(t2-(-3.5)) > 1e-6 || math.Abs(h2-80) > 1e-6 {
		t.Errorf("second pair = %v°C %v%%, want -3.5°C 80%%", t2, h2)
	}
	if dev.senses != 2 {
		t.Errorf("Sense called %d times, want 2", dev.senses)
	}
}

func TestBME280_SenseErrorIsNaN(t *testing.T) {
	var log []string
	dev := &fakeEnvSensor{err: errors.New("i2c: nack"), log: &log}
	s := newBME280(recordingCloser{log: &log}, dev, nil)

	if got := s.ReadHumidity(); !math.IsNaN(got) {
		t.Errorf("ReadHumidity() = %v, want NaN", got)
	}
	if got := s.ReadTemperature(); !math.IsNaN(got) {
		t.Errorf("ReadTemperature() = %v, want NaN", got)
	}
	if dev.senses != 1 {
		t.Errorf("Sense called %d times, want 1", dev.senses)
	}
}

func TestBME280_CloseHaltsBeforeBus(t *testing.T) {
	var log []string
	dev := &fakeEnvSensor{envs: []physic.Env{env(21, 45.2)}, log: &log}
	s := newBME280(recordingCloser{log: &log}, dev, nil)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if want := []string{"halt", "bus close"}; !reflect.DeepEqual(log, want) {
		t.Errorf("close order = %v, want %v", log, want)
	}

	log = nil
	busErr := errors.New("bus busy")
	s = newBME280(recordingCloser{log: &log, err: busErr}, dev, nil)
	if err := s.Close(); !errors.Is(err, busErr) {
		t.Errorf("Close() error = %v, want %v", err, busErr)
	}
}

func TestOpenBME280_UnexpectedChipID(t *testing.T) {
	bus := &closeCountingBus{Playback: &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// Chip ID register reads back something that is not a BMx280.
			{Addr: 0x76, W: []byte{0xd0}, R: []byte{0x00}},
		},
		DontPanic: true,
	}}

	if _, err := openBME280(bus, 0x76, nil); err == nil {
		t.Fatal("openBME280() error = nil, want non-nil")
	}
	if bus.closes != 1 {
		t.Errorf("bus closed %d times, want 1", bus.closes)
	}
}

func TestOpenBME280_UnsupportedAddress(t *testing.T) {
	bus := &closeCountingBus{Playback: &i2ctest.Playback{DontPanic: true}}

	if _, err := openBME280(bus, 0x10, nil); err == nil {
		t.Fatal("openBME280() error = nil, want non-nil")
	}
	if bus.closes != 1 {
		t.Errorf("bus closed %d times, want 1", bus.closes)
	}
}
