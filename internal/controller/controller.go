package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"kioskbox/internal/logging"
)

// State of a control channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 60 * time.Second
)

// session is the slice of the control channel the controller drives.
type session interface {
	Navigate(ctx context.Context, url string) error
	ClearCache(ctx context.Context) error
	ClearCookies(ctx context.Context) error
	Done() <-chan struct{}
	Close()
}

// Recorder journals notable events. May be nil.
type Recorder interface {
	Record(kind, screenID, detail string)
}

// Controller holds the one long-lived control channel for a screen and
// keeps the browser pointed at the operator's desired URL. Channel
// failures never reach Navigate callers; they are absorbed into the
// reconnect loop, which re-sends only the latest desired URL on the
// next successful open so nothing is ever silently dropped.
type Controller struct {
	screenID string
	clock    clock.Clock
	journal  Recorder
	logger   *slog.Logger

	// connect opens a fresh channel to a freshly discovered page; page
	// identity changes across browser restarts, so nothing is reused.
	connect func(ctx context.Context) (session, error)

	backoffInitial time.Duration
	backoffMax     time.Duration

	mu         sync.Mutex
	state      State
	desiredURL string
	lastSent   string
	backoff    time.Duration
	sess       session

	kick chan struct{}
}

// New creates a controller for one screen. connect is invoked for every
// (re)connection attempt.
func New(screenID string, connect func(ctx context.Context) (session, error), clk clock.Clock, journal Recorder) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		screenID:       screenID,
		clock:          clk,
		journal:        journal,
		logger:         logging.WithScreen(screenID),
		connect:        connect,
		backoffInitial: initialBackoff,
		backoffMax:     maxBackoff,
		state:          StateDisconnected,
		backoff:        initialBackoff,
		kick:           make(chan struct{}, 1),
	}
}

// Navigate records url as desired and nudges the channel. If the
// channel is open the command goes out immediately; otherwise it is
// sent as catch-up when the channel next opens. Calling twice with the
// same url sends one navigation command.
func (c *Controller) Navigate(url string) {
	c.mu.Lock()
	c.desiredURL = url
	duplicate := c.state == StateOpen && c.lastSent == url
	c.mu.Unlock()

	if duplicate {
		return
	}
	c.nudge()
}

// ClearCache wipes browser cache and cookies over the open channel.
func (c *Controller) ClearCache(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrChannelNotOpen
	}
	if err := sess.ClearCache(ctx); err != nil {
		return err
	}
	return sess.ClearCookies(ctx)
}

// Status is a snapshot of the controller for diagnostics.
type Status struct {
	ScreenID   string `json:"screen_id"`
	State      State  `json:"state"`
	DesiredURL string `json:"desired_url,omitempty"`
	BackoffMs  int64  `json:"backoff_ms"`
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ScreenID:   c.screenID,
		State:      c.state,
		DesiredURL: c.desiredURL,
		BackoffMs:  c.backoff.Milliseconds(),
	}
}

// Run drives the connection state machine until ctx is done. The first
// connection attempt waits for the first Navigate (or an explicit
// nudge), so an idle screen doesn't chase a browser nobody configured.
func (c *Controller) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.kick:
	}

	for ctx.Err() == nil {
		c.setState(StateConnecting)
		sess, err := c.connect(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			delay := c.nextBackoff()
			c.logger.Warn("control channel connect failed", "retry_in", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(delay):
			case <-c.kick:
				// A fresh navigate retries immediately.
			}
			continue
		}

		c.mu.Lock()
		c.sess = sess
		c.state = StateOpen
		c.backoff = c.backoffInitial
		c.lastSent = ""
		url := c.desiredURL
		c.mu.Unlock()

		c.logger.Info("control channel open")
		reconnectsTotal.WithLabelValues(c.screenID).Inc()
		c.record("reconnect", "channel open")

		// Catch-up: apply the latest desired URL on every open.
		if url != "" {
			c.sendDesired(ctx, url)
		}

		c.serve(ctx, sess)

		c.mu.Lock()
		c.sess = nil
		c.state = StateDisconnected
		c.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("control channel lost, reconnecting")
	}
}

// serve handles an open channel until it drops or ctx ends.
func (c *Controller) serve(ctx context.Context, sess session) {
	for {
		select {
		case <-ctx.Done():
			sess.Close()
			return
		case <-sess.Done():
			return
		case <-c.kick:
			c.mu.Lock()
			url := c.desiredURL
			last := c.lastSent
			c.mu.Unlock()
			if url != "" && url != last {
				c.sendDesired(ctx, url)
			}
		}
	}
}

func (c *Controller) sendDesired(ctx context.Context, url string) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sess.Navigate(sendCtx, url); err != nil {
		c.logger.Warn("navigation command failed", "url", url, "error", err)
		return
	}
	c.mu.Lock()
	c.lastSent = url
	c.mu.Unlock()
	c.logger.Info("navigated", "url", url)
	c.record("navigate", url)
}

func (c *Controller) nextBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.backoff
	c.backoff *= 2
	if c.backoff > c.backoffMax {
		c.backoff = c.backoffMax
	}
	return d
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) nudge() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Controller) record(kind, detail string) {
	if c.journal != nil {
		c.journal.Record(kind, c.screenID, detail)
	}
}
