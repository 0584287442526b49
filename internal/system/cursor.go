package system

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// CursorToggle hides and shows the desktop mouse cursor. Hiding runs a
// background unclutter process; showing kills it. Kiosks normally run
// hidden and only show the cursor for on-site maintenance.
type CursorToggle struct {
	display string
	logger  *slog.Logger

	mu      sync.Mutex
	hider   *exec.Cmd
	start   func(displayEnv string) (*exec.Cmd, error)
	stop    func(cmd *exec.Cmd) error
	visible bool
}

func NewCursorToggle(display string, logger *slog.Logger) *CursorToggle {
	return &CursorToggle{
		display: display,
		logger:  logger,
		visible: true,
		start:   startUnclutter,
		stop:    stopUnclutter,
	}
}

// SetVisible shows or hides the cursor. Repeated calls with the same
// value are no-ops.
func (c *CursorToggle) SetVisible(ctx context.Context, visible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if visible == c.visible {
		return nil
	}

	if visible {
		if c.hider != nil {
			if err := c.stop(c.hider); err != nil {
				return fmt.Errorf("failed to stop cursor hider: %w", err)
			}
			c.hider = nil
		}
		c.visible = true
		c.logger.Info("cursor shown")
		return nil
	}

	cmd, err := c.start(c.display)
	if err != nil {
		return fmt.Errorf("failed to hide cursor: %w", err)
	}
	c.hider = cmd
	c.visible = false
	c.logger.Info("cursor hidden")
	return nil
}

// Visible reports the current cursor state.
func (c *CursorToggle) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

func startUnclutter(display string) (*exec.Cmd, error) {
	cmd := exec.Command("unclutter", "-idle", "0", "-root")
	cmd.Env = append(cmd.Environ(), "DISPLAY="+display)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func stopUnclutter(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return err
	}
	_ = cmd.Wait()
	return nil
}
