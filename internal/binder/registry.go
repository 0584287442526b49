package binder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	redetectInterval = 5 * time.Second
	bootRetryDelay   = 500 * time.Millisecond
	bootTimeout      = 10 * time.Second
)

// Registry owns the current screen-to-port bindings. It re-runs the
// configured strategy on an interval and whenever a hot-plug signal
// fires, replacing the map atomically so readers never observe a
// half-updated binding. A detected binding is never downgraded to
// undetected: screens missing from a newer detection keep their last
// known binding.
type Registry struct {
	strategy Strategy
	clock    clock.Clock
	logger   *slog.Logger

	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewRegistry creates a binding registry for the given strategy.
func NewRegistry(strategy Strategy, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		strategy: strategy,
		clock:    clk,
		logger:   slog.With("component", "binder", "strategy", strategy.Name()),
		bindings: make(map[string]Binding),
	}
}

// Lookup returns the current binding for a screen id. The second result
// is false when the screen is unresolved; callers must treat that as
// "screen unavailable", not guess a port.
func (r *Registry) Lookup(screenID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[screenID]
	return b, ok
}

// Snapshot returns a copy of all current bindings.
func (r *Registry) Snapshot() map[string]Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Binding, len(r.bindings))
	for k, v := range r.bindings {
		out[k] = v
	}
	return out
}

// Detect runs the strategy once and merges the result. Returns the
// number of bound screens after the merge.
func (r *Registry) Detect(ctx context.Context) int {
	detected, err := r.strategy.Detect(ctx)
	if err != nil {
		r.logger.Debug("detection pass found nothing", "error", err)
		detected = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Merge: newly detected screens replace their old binding when it
	// actually differs; screens absent from this pass keep the binding
	// they had. The whole map is swapped in one assignment.
	next := make(map[string]Binding, len(r.bindings))
	for id, b := range r.bindings {
		next[id] = b
	}
	for id, b := range detected {
		old, had := next[id]
		if !had {
			r.logger.Info("screen bound", "screen_id", id, "port", b.Port, "output", b.OutputName)
		} else if old != b {
			r.logger.Info("screen rebound", "screen_id", id,
				"old_port", old.Port, "new_port", b.Port, "output", b.OutputName)
		}
		next[id] = b
	}
	r.bindings = next
	return len(next)
}

// Run drives detection: a bounded boot retry loop until at least one
// screen binds (or the boot window expires), then periodic re-detection
// plus immediate passes on hot-plug signals. Blocks until ctx is done.
func (r *Registry) Run(ctx context.Context, hotplug <-chan struct{}) {
	bootDeadline := r.clock.Now().Add(bootTimeout)
	for r.Detect(ctx) == 0 {
		if r.clock.Now().After(bootDeadline) {
			r.logger.Warn("no screens bound within boot window, continuing degraded")
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(bootRetryDelay):
		}
	}

	ticker := r.clock.Ticker(redetectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Detect(ctx)
		case _, ok := <-hotplug:
			if !ok {
				hotplug = nil
				continue
			}
			r.logger.Info("hot-plug signal, re-running detection")
			r.Detect(ctx)
		}
	}
}
