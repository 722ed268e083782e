// Package power suspends the station between wake cycles.
package power

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"cloudpico-station/internal/config"
)

// ErrHalted means the process should exit; an external supervisor (systemd
// timer, RTC wake on a power controller) starts the next cycle.
var ErrHalted = errors.New("halted until next wake")

type Suspender interface {
	Suspend(ctx context.Context, d time.Duration) error
}

// Wait keeps the process alive and sleeps in place.
type Wait struct{}

func (Wait) Suspend(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Exit returns ErrHalted immediately.
type Exit struct{}

func (Exit) Suspend(context.Context, time.Duration) error {
	return ErrHalted
}

// Command runs an external program that powers the board down and returns
// on wake, such as rtcwake. The template is split with shell word rules and
// {seconds} is replaced by the sleep duration in whole seconds.
type Command struct {
	template string
	logger   *slog.Logger
	run      func(ctx context.Context, argv []string) ([]byte, error)
}

func NewCommand(template string, logger *slog.Logger) *Command {
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{template: template, logger: logger, run: runCommand}
}

// Argv expands the template for d.
func (c *Command) Argv(d time.Duration) ([]string, error) {
	words, err := shlex.Split(c.template)
	if err != nil {
		return nil, fmt.Errorf("parse sleep command %q: %w", c.template, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("sleep command is empty")
	}
	secs := strconv.FormatInt(int64(d.Round(time.Second)/time.Second), 10)
	for i, w := range words {
		words[i] = strings.ReplaceAll(w, "{seconds}", secs)
	}
	return words, nil
}

func (c *Command) Suspend(ctx context.Context, d time.Duration) error {
	argv, err := c.Argv(d)
	if err != nil {
		return err
	}
	c.logger.Debug("running sleep command", "argv", argv)
	out, err := c.run(ctx, argv)
	if err != nil {
		return fmt.Errorf("sleep command %q: %w (output: %s)", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}

// New builds the suspender selected by cfg.SleepMode.
func New(cfg config.Config, logger *slog.Logger) (Suspender, error) {
	switch cfg.SleepMode {
	case "wait":
		return Wait{}, nil
	case "exit":
		return Exit{}, nil
	case "command":
		c := NewCommand(cfg.SleepCommand, logger)
		if _, err := c.Argv(cfg.SleepDuration); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown sleep mode %q", cfg.SleepMode)
	}
}
