// Package network brings the station's link up before each cycle.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudpico-station/internal/config"
)

// ErrNoAccessPoints is returned when WiFi is selected without candidates.
var ErrNoAccessPoints = errors.New("no access points configured")

// StateCompleted is the supplicant state of an associated, authenticated link.
const StateCompleted = "completed"

// Joiner brings the link up and reports whether it is still up.
type Joiner interface {
	// Join blocks until the link is up or ctx is done.
	Join(ctx context.Context) error
	Connected(ctx context.Context) bool
	Close() error
}

// Backend is the WiFi control plane the station talks to.
type Backend interface {
	// Register replaces the configured networks with aps, in priority order.
	Register(ctx context.Context, aps []config.AccessPoint) error
	// State returns the current association state, StateCompleted once
	// associated.
	State(ctx context.Context) (string, error)
	Close() error
}

// WiFi registers every candidate access point and waits for the backend to
// associate with one of them.
type WiFi struct {
	backend Backend
	aps     []config.AccessPoint
	poll    time.Duration
	logger  *slog.Logger
}

func NewWiFi(backend Backend, aps []config.AccessPoint, poll time.Duration, logger *slog.Logger) *WiFi {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &WiFi{backend: backend, aps: aps, poll: poll, logger: logger}
}

// Join has no deadline of its own: without one on ctx it waits forever.
func (w *WiFi) Join(ctx context.Context) error {
	if len(w.aps) == 0 {
		return ErrNoAccessPoints
	}

	ssids := make([]string, 0, len(w.aps))
	for _, ap := range w.aps {
		ssids = append(ssids, ap.SSID)
	}
	w.logger.Info("connecting to wifi", "ssids", ssids)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	start := time.Now()
	attempts := 0
	registered := false
	lastState := ""
	for {
		attempts++
		if !registered {
			// wpa_supplicant may not be up yet at boot.
			if err := w.backend.Register(ctx, w.aps); err != nil {
				w.logger.Debug("wifi register failed", "error", err)
			} else {
				registered = true
			}
		}

		if registered {
			state, err := w.backend.State(ctx)
			switch {
			case err != nil:
				w.logger.Debug("wifi state unavailable", "error", err)
			case state == StateCompleted:
				w.logger.Info("wifi connected", "attempts", attempts, "elapsed", time.Since(start).Round(time.Millisecond))
				return nil
			case state != lastState:
				w.logger.Debug("wifi state", "state", state)
				lastState = state
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *WiFi) Connected(ctx context.Context) bool {
	state, err := w.backend.State(ctx)
	if err != nil {
		w.logger.Debug("wifi state unavailable", "error", err)
		return false
	}
	return state == StateCompleted
}

func (w *WiFi) Close() error {
	return w.backend.Close()
}

// Wired is used when the link is managed outside the station (Ethernet, or
// WiFi configured by the OS).
type Wired struct{}

func (Wired) Join(context.Context) error { return nil }

func (Wired) Connected(context.Context) bool { return true }

func (Wired) Close() error { return nil }

// New builds the joiner selected by cfg.WiFiMode.
func New(cfg config.Config, logger *slog.Logger) (Joiner, error) {
	switch cfg.WiFiMode {
	case "none":
		return Wired{}, nil
	case "wpa":
		backend := NewSupplicant(cfg.WiFiInterface, logger)
		return NewWiFi(backend, cfg.AccessPoints, cfg.WiFiPollInterval, logger), nil
	default:
		return nil, fmt.Errorf("unknown wifi mode %q", cfg.WiFiMode)
	}
}
