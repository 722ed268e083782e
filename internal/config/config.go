package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSleepDuration is the deep-sleep period between wake cycles
// (600,000,000 microseconds).
const DefaultSleepDuration = 600000000 * time.Microsecond

// AccessPoint is one candidate WiFi network.
type AccessPoint struct {
	SSID     string
	Password string
}

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	WiFiMode           string
	WiFiInterface      string
	AccessPoints       []AccessPoint
	WiFiPollInterval   time.Duration
	WiFiConnectTimeout time.Duration

	TimeSync      bool
	NTPServers    []string
	NTPTimeout    time.Duration
	TimeSetSystem bool

	InfluxURL         string
	InfluxOrg         string
	InfluxBucket      string
	InfluxToken       string
	InfluxMeasurement string
	InfluxCACert      string
	InfluxTimeout     time.Duration

	SensorKind    string
	SensorIIODir  string
	BME280Address uint16
	I2CBus        string

	SleepMode     string
	SleepDuration time.Duration
	SleepCommand  string

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	DeviceStationID string
}

// MirrorEnabled reports whether readings are also published over MQTT.
func (c Config) MirrorEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadSecrets loads credentials from a dotenv file into the process
// environment. Variables that are already set are not overridden.
// A missing file is not an error.
func LoadSecrets(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load secrets %q: %w", path, err)
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	wifiMode := strings.ToLower(envOr("WIFI_MODE", "wpa"))
	switch wifiMode {
	case "wpa", "none":
	default:
		return Config{}, fmt.Errorf("invalid WIFI_MODE %q (allowed: wpa, none)", wifiMode)
	}
	wifiIface := envOr("WIFI_IFACE", "wlan0")

	accessPoints, err := parseAccessPoints()
	if err != nil {
		return Config{}, err
	}
	if wifiMode == "wpa" && len(accessPoints) == 0 {
		return Config{}, fmt.Errorf("WIFI_SSID is required when WIFI_MODE=wpa")
	}

	wifiPollInterval, err := parsePositiveDuration("WIFI_POLL_INTERVAL", "100ms")
	if err != nil {
		return Config{}, err
	}

	wifiConnectTimeoutStr := envOr("WIFI_CONNECT_TIMEOUT", "0s")
	wifiConnectTimeout, err := time.ParseDuration(wifiConnectTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WIFI_CONNECT_TIMEOUT %q: %w", wifiConnectTimeoutStr, err)
	}
	if wifiConnectTimeout < 0 {
		return Config{}, fmt.Errorf("WIFI_CONNECT_TIMEOUT must not be negative, got %v", wifiConnectTimeout)
	}

	timeSync, err := parseBool("TIME_SYNC", "true")
	if err != nil {
		return Config{}, err
	}
	ntpServers := splitList(envOr("NTP_SERVERS", "pool.ntp.org,time.nis.gov"))
	if timeSync && len(ntpServers) == 0 {
		return Config{}, fmt.Errorf("NTP_SERVERS must list at least one server when TIME_SYNC is enabled")
	}
	ntpTimeout, err := parsePositiveDuration("NTP_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	timeSetSystem, err := parseBool("TIME_SET_SYSTEM", "false")
	if err != nil {
		return Config{}, err
	}

	influxURL := strings.TrimRight(strings.TrimSpace(os.Getenv("INFLUXDB_URL")), "/")
	influxOrg := strings.TrimSpace(os.Getenv("INFLUXDB_ORG"))
	influxBucket := strings.TrimSpace(os.Getenv("INFLUXDB_BUCKET"))
	influxToken := strings.TrimSpace(os.Getenv("INFLUXDB_TOKEN"))
	for _, req := range []struct{ name, value string }{
		{"INFLUXDB_URL", influxURL},
		{"INFLUXDB_ORG", influxOrg},
		{"INFLUXDB_BUCKET", influxBucket},
		{"INFLUXDB_TOKEN", influxToken},
	} {
		if req.value == "" {
			return Config{}, fmt.Errorf("%s is required", req.name)
		}
	}
	if !strings.HasPrefix(influxURL, "http://") && !strings.HasPrefix(influxURL, "https://") {
		return Config{}, fmt.Errorf("invalid INFLUXDB_URL %q (must start with http:// or https://)", influxURL)
	}
	influxMeasurement := envOr("INFLUXDB_MEASUREMENT", "weather_room_work")
	influxCACert := strings.TrimSpace(os.Getenv("INFLUXDB_CA_CERT"))
	influxTimeout, err := parsePositiveDuration("INFLUXDB_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}

	sensorKind := strings.ToLower(envOr("SENSOR_KIND", "dht22"))
	switch sensorKind {
	case "dht22", "bme280":
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_KIND %q (allowed: dht22, bme280)", sensorKind)
	}
	sensorIIODir := envOr("SENSOR_IIO_DIR", "/sys/bus/iio/devices/iio:device0")

	bme280AddressStr := envOr("BME280_ADDRESS", "0x76")
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}
	i2cBus := strings.TrimSpace(os.Getenv("I2C_BUS"))

	sleepMode := strings.ToLower(envOr("SLEEP_MODE", "wait"))
	switch sleepMode {
	case "wait", "command", "exit":
	default:
		return Config{}, fmt.Errorf("invalid SLEEP_MODE %q (allowed: wait, command, exit)", sleepMode)
	}
	sleepDuration, err := parsePositiveDuration("SLEEP_DURATION", DefaultSleepDuration.String())
	if err != nil {
		return Config{}, err
	}
	sleepCommand := envOr("SLEEP_COMMAND", "rtcwake -m mem -s {seconds}")

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPortStr := envOr("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	mqttClientID := envOr("MQTT_CLIENT_ID", "cloudpico-station")
	deviceStationID := envOr("DEVICE_STATION_ID", "home")

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		WiFiMode:           wifiMode,
		WiFiInterface:      wifiIface,
		AccessPoints:       accessPoints,
		WiFiPollInterval:   wifiPollInterval,
		WiFiConnectTimeout: wifiConnectTimeout,
		TimeSync:           timeSync,
		NTPServers:         ntpServers,
		NTPTimeout:         ntpTimeout,
		TimeSetSystem:      timeSetSystem,
		InfluxURL:          influxURL,
		InfluxOrg:          influxOrg,
		InfluxBucket:       influxBucket,
		InfluxToken:        influxToken,
		InfluxMeasurement:  influxMeasurement,
		InfluxCACert:       influxCACert,
		InfluxTimeout:      influxTimeout,
		SensorKind:         sensorKind,
		SensorIIODir:       sensorIIODir,
		BME280Address:      uint16(bme280Address),
		I2CBus:             i2cBus,
		SleepMode:          sleepMode,
		SleepDuration:      sleepDuration,
		SleepCommand:       sleepCommand,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
		DeviceStationID:    deviceStationID,
	}, nil
}

// parseAccessPoints reads WIFI_SSID/WIFI_PASSWORD followed by the numbered
// pairs WIFI_SSID_2/WIFI_PASSWORD_2, WIFI_SSID_3/... up to the first gap.
func parseAccessPoints() ([]AccessPoint, error) {
	var aps []AccessPoint
	for i := 1; ; i++ {
		suffix := ""
		if i > 1 {
			suffix = "_" + strconv.Itoa(i)
		}
		ssid := strings.TrimSpace(os.Getenv("WIFI_SSID" + suffix))
		if ssid == "" {
			break
		}
		// Passwords are taken verbatim, surrounding spaces are legal in a PSK.
		password := os.Getenv("WIFI_PASSWORD" + suffix)
		if password != "" && !IsRawPSK(password) && (len(password) < 8 || len(password) > 63) {
			return nil, fmt.Errorf("invalid WIFI_PASSWORD%s: want an 8-63 character passphrase or a 64 digit hex key, got %d characters", suffix, len(password))
		}
		aps = append(aps, AccessPoint{SSID: ssid, Password: password})
	}
	return aps, nil
}

// IsRawPSK reports whether password is a pre-computed WPA key: exactly 64
// hex digits.
func IsRawPSK(password string) bool {
	if len(password) != 64 {
		return false
	}
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(key, def string) (bool, error) {
	s := envOr(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := envOr(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
