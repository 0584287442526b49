package controller

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kioskbox/internal/binder"
	"kioskbox/internal/devtools"
)

// ErrChannelNotOpen means an operation needs the persistent channel and
// it is currently down.
var ErrChannelNotOpen = errors.New("control channel not open")

// ErrUnknownScreen means no controller exists for the screen id.
var ErrUnknownScreen = errors.New("unknown screen id")

var reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kioskbox_controller_reconnects_total",
	Help: "Successful control channel opens per screen.",
}, []string{"screen_id"})

// Registry holds the single controller per logical screen. Built once
// at the composition root and injected into the HTTP layer; there are
// no ambient globals.
type Registry struct {
	controllers map[string]*Controller
}

// NewRegistry creates one controller per screen id, each connecting
// through the binder so port changes are picked up on reconnect.
func NewRegistry(screenIDs []string, bindings *binder.Registry, client *devtools.Client, journal Recorder) *Registry {
	r := &Registry{controllers: make(map[string]*Controller, len(screenIDs))}
	for _, id := range screenIDs {
		screenID := id
		connect := func(ctx context.Context) (session, error) {
			b, ok := bindings.Lookup(screenID)
			if !ok {
				return nil, ErrUnknownScreen
			}
			// Pages change identity across browser restarts; discover
			// a fresh one on every attempt.
			page, err := client.FirstPage(ctx, b.Port)
			if err != nil {
				return nil, err
			}
			return devtools.OpenChannel(ctx, page.WebSocketDebuggerURL)
		}
		r.controllers[screenID] = New(screenID, connect, clock.New(), journal)
	}
	return r
}

// Get returns the controller for a screen id.
func (r *Registry) Get(screenID string) (*Controller, bool) {
	c, ok := r.controllers[screenID]
	return c, ok
}

// Navigate routes a navigation request to the screen's controller.
func (r *Registry) Navigate(screenID, url string) error {
	c, ok := r.controllers[screenID]
	if !ok {
		return ErrUnknownScreen
	}
	c.Navigate(url)
	return nil
}

// StartAll launches every controller's run loop.
func (r *Registry) StartAll(ctx context.Context) {
	for _, c := range r.controllers {
		go c.Run(ctx)
	}
}

// Statuses returns a snapshot of every controller for diagnostics.
func (r *Registry) Statuses() map[string]Status {
	out := make(map[string]Status, len(r.controllers))
	for id, c := range r.controllers {
		out[id] = c.Status()
	}
	return out
}
