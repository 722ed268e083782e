// Package mqtt mirrors uploaded readings to the cloudpico MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloudpico-station/internal/config"
	"cloudpico-station/internal/weather"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClient prepares a client for one wake cycle. Unlike the gateway, the
// station does not keep a session alive across cycles, so there is no
// automatic reconnect.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits for the broker, respecting ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// The OnConnect handler runs on its own goroutine and may not
			// have fired yet.
			c.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishReading connects if needed and publishes r as station telemetry.
func (c *Client) PublishReading(ctx context.Context, r weather.Reading, ts time.Time) error {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err := c.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	humidity, temperature, heatIndex := r.Humidity, r.Temperature, r.HeatIndex
	return c.PublishTelemetry(c.cfg.DeviceStationID, Telemetry{
		Timestamp:   ts,
		Temperature: &temperature,
		Humidity:    &humidity,
		HeatIndex:   &heatIndex,
	})
}

// PublishTelemetry publishes telemetry data to the station topic.
func (c *Client) PublishTelemetry(stationID string, telemetry Telemetry) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := TelemetryTopic(stationID)

	telemetry.StationID = stationID
	if telemetry.Timestamp.IsZero() {
		telemetry.Timestamp = time.Now()
	}

	data, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	token := c.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish telemetry: %w", token.Error())
	}

	c.logger.Debug("published telemetry", "topic", topic, "station_id", stationID)
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info("mqtt disconnected")
	}
	c.setConnected(false)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
