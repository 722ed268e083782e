package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudpico-station/internal/config"
	"cloudpico-station/internal/influx"
	"cloudpico-station/internal/mqtt"
	"cloudpico-station/internal/network"
	"cloudpico-station/internal/power"
	"cloudpico-station/internal/sensor"
	"cloudpico-station/internal/station"
	"cloudpico-station/internal/timesync"
)

// buildFunc wires the collaborators for a single wake cycle. cleanup
// releases them and is always non-nil when err is nil.
type buildFunc func(ctx context.Context, cfg config.Config, logger *slog.Logger) (deps station.Deps, cleanup func(), err error)

// Run executes wake cycles until the suspender halts the process or ctx is
// canceled. Every cycle starts from freshly built collaborators, the same
// way a board comes out of deep sleep with nothing retained.
func Run(ctx context.Context, cfg config.Config) error {
	return run(ctx, cfg, slog.Default(), buildCycle)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, build buildFunc) error {
	logger.Info("initializing station",
		"wifi_mode", cfg.WiFiMode,
		"influx_url", cfg.InfluxURL,
		"measurement", cfg.InfluxMeasurement,
		"sensor", cfg.SensorKind,
		"sleep_mode", cfg.SleepMode,
		"sleep_duration", cfg.SleepDuration,
	)

	opts := station.Options{
		Measurement:    cfg.InfluxMeasurement,
		SleepDuration:  cfg.SleepDuration,
		ConnectTimeout: cfg.WiFiConnectTimeout,
	}

	for cycle := 1; ; cycle++ {
		deps, cleanup, err := build(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}

		out, err := station.New(deps, opts).Run(ctx)
		cleanup()

		logger.Debug("cycle finished",
			"cycle", cycle,
			"sampled", out.Sampled,
			"written", out.Written,
		)

		switch {
		case errors.Is(err, power.ErrHalted):
			return nil
		case err != nil:
			return err
		}
	}
}

func buildCycle(ctx context.Context, cfg config.Config, logger *slog.Logger) (station.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (station.Deps, func(), error) {
		cleanup()
		return station.Deps{}, nil, err
	}

	deps := station.Deps{Logger: logger}

	joiner, err := network.New(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("network: %w", err))
	}
	closers = append(closers, func() {
		if err := joiner.Close(); err != nil {
			logger.Warn("network close failed", "error", err)
		}
	})
	deps.Network = joiner

	now := time.Now
	if cfg.TimeSync {
		syncer := timesync.New(timesync.Options{
			Servers:   cfg.NTPServers,
			Timeout:   cfg.NTPTimeout,
			SetSystem: cfg.TimeSetSystem,
		}, logger)
		deps.Clock = syncer
		now = syncer.Now
	}

	store, err := influx.NewClient(cfg, now, logger)
	if err != nil {
		return fail(fmt.Errorf("influx: %w", err))
	}
	closers = append(closers, store.Close)
	deps.Store = store

	s, err := sensor.New(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("sensor: %w", err))
	}
	closers = append(closers, func() {
		if err := s.Close(); err != nil {
			logger.Warn("sensor close failed", "error", err)
		}
	})
	deps.Sensor = s

	suspender, err := power.New(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("power: %w", err))
	}
	deps.Suspender = suspender

	if cfg.MirrorEnabled() {
		mirror := mqtt.NewClient(cfg, logger)
		closers = append(closers, mirror.Disconnect)
		deps.Mirror = mirror
	}

	return deps, cleanup, nil
}
