// Package station runs one wake cycle: connect, validate, sample, upload,
// sleep.
package station

import (
	"context"
	"log/slog"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"cloudpico-station/internal/influx"
	"cloudpico-station/internal/weather"
)

type Network interface {
	Join(ctx context.Context) error
	Connected(ctx context.Context) bool
}

type Clock interface {
	Sync(ctx context.Context) error
	Now() time.Time
}

type Store interface {
	Validate(ctx context.Context) error
	Write(ctx context.Context, p *write.Point) error
	LastError() string
	ServerURL() string
}

type Sensor interface {
	ReadHumidity() float64
	ReadTemperature() float64
}

type Suspender interface {
	Suspend(ctx context.Context, d time.Duration) error
}

// Mirror receives a copy of each uploaded reading.
type Mirror interface {
	PublishReading(ctx context.Context, r weather.Reading, ts time.Time) error
}

// Deps are the collaborators of one cycle. Clock and Mirror are optional.
type Deps struct {
	Network   Network
	Clock     Clock
	Store     Store
	Sensor    Sensor
	Suspender Suspender
	Mirror    Mirror
	Logger    *slog.Logger
}

type Options struct {
	Measurement   string
	SleepDuration time.Duration
	// ConnectTimeout bounds the network join; zero waits forever.
	ConnectTimeout time.Duration
}

// Outcome describes what a cycle did.
type Outcome struct {
	Phases  []Phase
	Reading weather.Reading
	Sampled bool
	Written bool
}

type Controller struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func New(deps Deps, opts Options) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{deps: deps, opts: opts, logger: logger}
}

// Run performs exactly one pass. Failures are logged and the cycle moves on;
// the returned error is the context error if the cycle was canceled, or
// whatever the suspender returned.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	var out Outcome

	if err := c.enter(ctx, &out, PhaseConnecting); err != nil {
		return out, err
	}
	if err := c.connect(ctx); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		c.logger.Error("wifi connect failed", "error", err)
		return out, c.sleep(ctx, &out)
	}

	if err := c.enter(ctx, &out, PhaseValidating); err != nil {
		return out, err
	}
	c.validate(ctx)

	if err := c.enter(ctx, &out, PhaseSampling); err != nil {
		return out, err
	}
	r, err := c.sample()
	if err != nil {
		c.logger.Error("failed to read from sensor", "error", err)
		return out, c.sleep(ctx, &out)
	}
	out.Reading, out.Sampled = r, true

	if err := c.enter(ctx, &out, PhaseUploading); err != nil {
		return out, err
	}
	out.Written = c.upload(ctx, r)

	return out, c.sleep(ctx, &out)
}

func (c *Controller) enter(ctx context.Context, out *Outcome, p Phase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out.Phases = append(out.Phases, p)
	c.logger.Debug("phase", "phase", p.String())
	return nil
}

func (c *Controller) connect(ctx context.Context) error {
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}
	return c.deps.Network.Join(ctx)
}

func (c *Controller) validate(ctx context.Context) {
	if c.deps.Clock != nil {
		if err := c.deps.Clock.Sync(ctx); err != nil {
			c.logger.Warn("time sync failed", "error", err)
		}
	}

	if err := c.deps.Store.Validate(ctx); err != nil {
		c.logger.Error("influxdb connection failed", "error", c.lastError(err))
		return
	}
	c.logger.Info("connected to influxdb", "url", c.deps.Store.ServerURL())
}

func (c *Controller) sample() (weather.Reading, error) {
	humidity := c.deps.Sensor.ReadHumidity()
	temperature := c.deps.Sensor.ReadTemperature()

	r, err := weather.NewReading(humidity, temperature)
	if err != nil {
		return r, err
	}
	c.logger.Info("sensor reading",
		"humidity", r.Humidity,
		"temperature", r.Temperature,
		"heat_index", r.HeatIndex,
	)
	return r, nil
}

func (c *Controller) upload(ctx context.Context, r weather.Reading) bool {
	p := influx.NewPoint(c.opts.Measurement, r, c.now())
	c.logger.Info("writing", "line", influx.LineProtocol(p))

	if !c.deps.Network.Connected(ctx) {
		c.logger.Warn("wifi connection lost")
	}

	written := true
	if err := c.deps.Store.Write(ctx, p); err != nil {
		c.logger.Error("influxdb write failed", "error", c.lastError(err))
		written = false
	}

	if c.deps.Mirror != nil {
		if err := c.deps.Mirror.PublishReading(ctx, r, p.Time()); err != nil {
			c.logger.Warn("telemetry mirror failed", "error", err)
		}
	}
	return written
}

func (c *Controller) sleep(ctx context.Context, out *Outcome) error {
	if err := c.enter(ctx, out, PhaseSleeping); err != nil {
		return err
	}
	c.logger.Info("going to deep sleep", "duration", c.opts.SleepDuration)
	return c.deps.Suspender.Suspend(ctx, c.opts.SleepDuration)
}

func (c *Controller) now() time.Time {
	if c.deps.Clock != nil {
		return c.deps.Clock.Now()
	}
	return time.Now()
}

// lastError prefers the store's own message, as that is what the server said.
func (c *Controller) lastError(err error) string {
	if msg := c.deps.Store.LastError(); msg != "" {
		return msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
