package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/benbjohnson/clock"
)

var ErrTooSoon = errors.New("refusing to reboot this soon after boot")

// RebootGuard refuses reboots until the process has been up long enough
// that a crash loop cannot turn into a reboot loop.
type RebootGuard struct {
	minUptime time.Duration
	started   time.Time
	clock     clock.Clock
	logger    *slog.Logger
	reboot    func(ctx context.Context) error
}

func NewRebootGuard(minUptime time.Duration, logger *slog.Logger) *RebootGuard {
	c := clock.New()
	return &RebootGuard{
		minUptime: minUptime,
		started:   c.Now(),
		clock:     c,
		logger:    logger,
		reboot:    systemctlReboot,
	}
}

// Uptime reports how long the agent has been running.
func (g *RebootGuard) Uptime() time.Duration {
	return g.clock.Since(g.started)
}

// Reboot triggers a host reboot, or returns ErrTooSoon while inside the
// minimum-uptime window.
func (g *RebootGuard) Reboot(ctx context.Context) error {
	up := g.Uptime()
	if up < g.minUptime {
		return fmt.Errorf("%w: up %s, need %s", ErrTooSoon, up.Round(time.Second), g.minUptime)
	}
	g.logger.Warn("rebooting host", "uptime", up.Round(time.Second))
	return g.reboot(ctx)
}

func systemctlReboot(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "systemctl", "reboot").Run(); err != nil {
		return fmt.Errorf("systemctl reboot failed: %w", err)
	}
	return nil
}
