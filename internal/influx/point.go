package influx

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"cloudpico-station/internal/weather"
)

// Timestamps are written with second precision; the station reports every
// few minutes.
const writePrecision = time.Second

// Field names written for every reading, in write order.
const (
	FieldHumidity    = "humidity"
	FieldTemperature = "temperature"
	FieldHeatIndex   = "heat_index"
)

// NewPoint packages a reading as a single point under measurement, with no
// tags. Fields are appended (not sorted) so the wire order is humidity,
// temperature, heat_index.
func NewPoint(measurement string, r weather.Reading, ts time.Time) *write.Point {
	return write.NewPointWithMeasurement(measurement).
		AddField(FieldHumidity, r.Humidity).
		AddField(FieldTemperature, r.Temperature).
		AddField(FieldHeatIndex, r.HeatIndex).
		SetTime(ts)
}

// LineProtocol renders p the way it is sent on the wire.
func LineProtocol(p *write.Point) string {
	return strings.TrimSuffix(write.PointToLineProtocol(p, writePrecision), "\n")
}
