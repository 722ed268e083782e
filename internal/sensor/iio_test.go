package sensor

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"cloudpico-station/internal/config"
)

func writeAttr(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestIIO_Read(t *testing.T) {
	dir := t.TempDir()
	writeAttr(t, dir, iioHumidityFile, "45200\n")
	writeAttr(t, dir, iioTemperatureFile, "-2100\n")

	s := NewIIO(dir, slog.Default())

	if got := s.ReadHumidity(); math.Abs(got-45.2) > 1e-9 {
		t.Errorf("ReadHumidity() = %v, want 45.2", got)
	}
	if got := s.ReadTemperature(); math.Abs(got-(-2.1)) > 1e-9 {
		t.Errorf("ReadTemperature() = %v, want -2.1", got)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestIIO_FailureIsNaN(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{name: "missing files", setup: func(t *testing.T, dir string) {}},
		{name: "garbage", setup: func(t *testing.T, dir string) {
			writeAttr(t, dir, iioHumidityFile, "n/a")
			writeAttr(t, dir, iioTemperatureFile, "")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			s := NewIIO(dir, nil)

			if got := s.ReadHumidity(); !math.IsNaN(got) {
				t.Errorf("ReadHumidity() = %v, want NaN", got)
			}
			if got := s.ReadTemperature(); !math.IsNaN(got) {
				t.Errorf("ReadTemperature() = %v, want NaN", got)
			}
		})
	}
}

func TestNew_SelectsIIO(t *testing.T) {
	cfg := config.Config{SensorKind: "dht22", SensorIIODir: t.TempDir()}
	s, err := New(cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := s.(*IIO); !ok {
		t.Errorf("New() = %T, want *IIO", s)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(config.Config{SensorKind: "dht11"}, slog.Default()); err == nil {
		t.Fatal("New() error = nil, want non-nil")
	}
}
