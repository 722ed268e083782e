// Package timesync corrects the station clock from NTP servers. Accurate time
// is required before the InfluxDB TLS certificate can be validated.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"golang.org/x/sys/unix"
)

// ErrNoServers is returned by Sync when no server is configured.
var ErrNoServers = errors.New("no ntp servers configured")

// QueryFunc asks one server for its time.
type QueryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

type Options struct {
	Servers []string
	Timeout time.Duration
	// SetSystem also steps the system clock (requires CAP_SYS_TIME).
	SetSystem bool
}

// Syncer holds the offset between the local clock and the last NTP answer.
type Syncer struct {
	opts   Options
	logger *slog.Logger
	query  QueryFunc
	setSys func(time.Time) error
	now    func() time.Time

	mu     sync.RWMutex
	offset time.Duration
}

func New(opts Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		opts:   opts,
		logger: logger,
		query:  ntp.QueryWithOptions,
		setSys: setSystemClock,
		now:    time.Now,
	}
}

// Sync queries the servers in order and keeps the first valid answer.
func (s *Syncer) Sync(ctx context.Context) error {
	if len(s.opts.Servers) == 0 {
		return ErrNoServers
	}

	var errs []error
	for _, host := range s.opts.Servers {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.query(host, ntp.QueryOptions{Timeout: s.opts.Timeout})
		if err == nil {
			err = resp.Validate()
		}
		if err != nil {
			s.logger.Debug("ntp query failed", "server", host, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}

		s.mu.Lock()
		s.offset = resp.ClockOffset
		s.mu.Unlock()

		if s.opts.SetSystem {
			if err := s.setSys(s.Now()); err != nil {
				return fmt.Errorf("set system clock: %w", err)
			}
			// The system clock now carries the correction.
			s.mu.Lock()
			s.offset = 0
			s.mu.Unlock()
		}

		s.logger.Info("time synchronized",
			"server", host,
			"offset", resp.ClockOffset,
			"clock_offset", s.Offset(),
			"rtt", resp.RTT,
			"stratum", resp.Stratum,
			"now", s.Now().UTC().Format(time.RFC3339),
		)
		return nil
	}
	return fmt.Errorf("time sync failed: %w", errors.Join(errs...))
}

// Now returns the corrected current time.
func (s *Syncer) Now() time.Time {
	s.mu.RLock()
	offset := s.offset
	s.mu.RUnlock()
	return s.now().Add(offset)
}

// Offset returns the correction applied by Now.
func (s *Syncer) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

func setSystemClock(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	return unix.Settimeofday(&tv)
}
