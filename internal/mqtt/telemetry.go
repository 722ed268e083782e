package mqtt

import "time"

// Telemetry is the cloudpico station message ingested by the server.
type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Pressure    *float64  `json:"pressure_hpa,omitempty"`
	HeatIndex   *float64  `json:"heat_index_c,omitempty"`
	Battery     *float64  `json:"battery_v,omitempty"`
	Sequence    *int      `json:"sequence,omitempty"`
}

// TelemetryTopic is where a station's readings are published.
func TelemetryTopic(stationID string) string {
	return "stations/" + stationID + "/telemetry"
}
