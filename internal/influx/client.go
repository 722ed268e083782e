// Package influx writes readings to an InfluxDB 2.x or InfluxDB Cloud bucket.
package influx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"cloudpico-station/internal/config"
)

// Client keeps the last error message around so callers can log it the way
// the station always has, next to a plain success/failure result.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	url      string
	logger   *slog.Logger

	mu      sync.Mutex
	lastErr string
}

// NewClient builds a client from cfg. now supplies the time used for TLS
// certificate validation; pass nil to use the system clock.
func NewClient(cfg config.Config, now func() time.Time, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		Time:       now,
	}
	if cfg.InfluxCACert != "" {
		pem, err := os.ReadFile(cfg.InfluxCACert)
		if err != nil {
			return nil, fmt.Errorf("read INFLUXDB_CA_CERT: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("INFLUXDB_CA_CERT %q: no certificates found", cfg.InfluxCACert)
		}
		tlsCfg.RootCAs = pool
	}

	timeoutSec := uint(cfg.InfluxTimeout / time.Second)
	if timeoutSec == 0 {
		timeoutSec = 1
	}
	opts := influxdb2.DefaultOptions().
		SetTLSConfig(tlsCfg).
		SetHTTPRequestTimeout(timeoutSec).
		SetPrecision(writePrecision)

	c := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
	return &Client{
		client:   c,
		writeAPI: c.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		url:      cfg.InfluxURL,
		logger:   logger,
	}, nil
}

// ServerURL returns the configured server URL.
func (c *Client) ServerURL() string {
	return c.url
}

// Validate checks that the server is reachable.
func (c *Client) Validate(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err == nil && !ok {
		err = errors.New("ping: server not ready")
	}
	c.record(err)
	return err
}

// Write sends p immediately. There is no retry and no buffering.
func (c *Client) Write(ctx context.Context, p *write.Point) error {
	err := c.writeAPI.WritePoint(ctx, p)
	c.record(err)
	if err != nil {
		return fmt.Errorf("write point: %w", err)
	}
	return nil
}

// LastError returns the message of the most recent failure, or "" if the
// last call succeeded.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) Close() {
	c.client.Close()
}

func (c *Client) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		return
	}
	c.lastErr = ""
}
