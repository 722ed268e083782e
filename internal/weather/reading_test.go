package weather

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewReading(t *testing.T) {
	r, err := NewReading(45.2, 21.0)
	if err != nil {
		t.Fatalf("NewReading() error = %v, want nil", err)
	}
	if r.Humidity != 45.2 || r.Temperature != 21.0 {
		t.Errorf("NewReading() = %+v, raw values not kept", r)
	}
	if want := HeatIndex(21.0, 45.2, false); r.HeatIndex != want {
		t.Errorf("HeatIndex = %v, want %v", r.HeatIndex, want)
	}
	if !r.Valid() {
		t.Error("Valid() = false, want true")
	}
}

func TestNewReading_NaN(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name        string
		humidity    float64
		temperature float64
	}{
		{name: "humidity", humidity: nan, temperature: 21},
		{name: "temperature", humidity: 45, temperature: nan},
		{name: "both", humidity: nan, temperature: nan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReading(tt.humidity, tt.temperature)
			if !errors.Is(err, ErrInvalidReading) {
				t.Fatalf("NewReading() error = %v, want ErrInvalidReading", err)
			}
			if r.Valid() {
				t.Error("Valid() = true, want false")
			}
		})
	}
}

func TestReadingString(t *testing.T) {
	r := Reading{Humidity: 45.2, Temperature: 21, HeatIndex: 20.34}
	got := r.String()
	for _, want := range []string{"Humidity: 45.20%", "Temperature: 21.00°C", "Heat index: 20.34°C"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
