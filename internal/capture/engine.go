package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"

	"kioskbox/internal/binder"
	"kioskbox/internal/devtools"
	"kioskbox/internal/display"
	"kioskbox/internal/imaging"
	"kioskbox/internal/logging"
)

// BindingSource resolves logical screen ids to debug-port bindings.
type BindingSource interface {
	Lookup(screenID string) (binder.Binding, bool)
}

// TopologySource queries the current output topology.
type TopologySource interface {
	Resolve(ctx context.Context) (*display.Topology, error)
}

// ExpectedURLSource reads the operator-assigned URL for a screen.
type ExpectedURLSource interface {
	URLFor(screenID string) string
}

// Recorder journals notable device events. May be nil.
type Recorder interface {
	Record(kind, screenID, detail string)
}

// session is the slice of the control channel the engine uses during a
// single capture. Each capture opens its own transient session so it
// never disturbs the persistent navigation channel.
type session interface {
	EnablePageEvents(ctx context.Context) error
	SetBackgroundColor(ctx context.Context, r, g, b int) error
	CurrentLocation(ctx context.Context) (devtools.Location, error)
	CaptureScreenshot(ctx context.Context, quality int) ([]byte, error)
	Close()
}

// Engine is the truth-verified capture orchestrator. The debug path is
// always tried first: it can prove the page is rendering what the
// operator asked for. Only when that path fails does the engine fall
// back to grabbing the whole desktop and cropping, which captures
// genuine pixels but cannot verify them.
type Engine struct {
	bindings  BindingSource
	topology  TopologySource
	expected  ExpectedURLSource
	processor *imaging.Processor
	journal   Recorder
	logger    *slog.Logger

	ffmpegPath string
	displayEnv string

	// Seams for tests; defaults talk to the real browser and desktop.
	discoverPage func(ctx context.Context, port int) (devtools.Page, error)
	openSession  func(ctx context.Context, page devtools.Page) (session, error)
	grabDesktop  func(ctx context.Context, topo *display.Topology, out display.Output) (string, error)
}

// NewEngine wires a capture engine against the real remote debug client.
func NewEngine(
	bindings BindingSource,
	topology TopologySource,
	expected ExpectedURLSource,
	processor *imaging.Processor,
	journal Recorder,
	client *devtools.Client,
	ffmpegPath, displayEnv string,
) *Engine {
	e := &Engine{
		bindings:   bindings,
		topology:   topology,
		expected:   expected,
		processor:  processor,
		journal:    journal,
		logger:     slog.With("component", "capture"),
		ffmpegPath: ffmpegPath,
		displayEnv: displayEnv,
	}
	e.discoverPage = client.FirstPage
	e.openSession = func(ctx context.Context, page devtools.Page) (session, error) {
		return devtools.OpenChannel(ctx, page.WebSocketDebuggerURL)
	}
	e.grabDesktop = e.ffmpegGrab
	return e
}

// Capture produces a screenshot of the given screen. Unresolved or
// disconnected screens fail with ErrScreenUnavailable; failure of both
// capture paths fails with ErrAllMethodsExhausted.
func (e *Engine) Capture(ctx context.Context, screenID string, quality int) (*imaging.Result, error) {
	quality = imaging.ClampQuality(quality)
	requestID := uuid.New().String()[:8]
	logger := logging.WithCapture(screenID, requestID)

	binding, ok := e.bindings.Lookup(screenID)
	if !ok {
		return nil, fmt.Errorf("%w: no binding for screen %s", ErrScreenUnavailable, screenID)
	}

	// Topology degrades to a default during early boot, so a resolve
	// error here only matters for the crop fallback later.
	topo, topoErr := e.topology.Resolve(ctx)
	if topoErr == nil && binding.OutputName != "" {
		if out, found := topo.FindOutput(binding.OutputName); found && !out.Connected {
			return nil, fmt.Errorf("%w: output %s is disconnected", ErrScreenUnavailable, binding.OutputName)
		}
	}

	raw, err := e.debugCapture(ctx, logger, binding, screenID, quality)
	if err == nil {
		capturesTotal.WithLabelValues("devtools", "ok").Inc()
		e.record("capture", screenID, "devtools path ok")
		return e.processor.Compress(raw, "image/jpeg", quality)
	}
	capturesTotal.WithLabelValues("devtools", "failed").Inc()
	logger.Warn("debug capture path failed, falling back to desktop crop", "error", err)

	res, fbErr := e.desktopCapture(ctx, logger, topo, topoErr, binding, screenID, quality)
	if fbErr != nil {
		capturesTotal.WithLabelValues("desktop", "failed").Inc()
		e.record("capture", screenID, "all methods exhausted")
		return nil, fmt.Errorf("%w: debug path: %v; desktop path: %v", ErrAllMethodsExhausted, err, fbErr)
	}
	capturesTotal.WithLabelValues("desktop", "ok").Inc()
	e.record("capture", screenID, "desktop fallback ok")
	return res, nil
}

// debugCapture runs the truth-verified path: discover a page, open a
// transient channel, verify the URL and readiness, then capture.
// Verification always completes before any pixels are requested.
func (e *Engine) debugCapture(ctx context.Context, logger *slog.Logger, b binder.Binding, screenID string, quality int) ([]byte, error) {
	page, err := e.discoverPage(ctx, b.Port)
	if err != nil {
		return nil, err
	}

	sess, err := e.openSession(ctx, page)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	// Page lifecycle and script-execution events must be flowing before
	// the page is interrogated. A channel that cannot enable them will
	// not serve the verification commands either.
	if err := sess.EnablePageEvents(ctx); err != nil {
		return nil, fmt.Errorf("failed to enable page events: %w", err)
	}

	// Opaque background avoids transparent frames; not worth failing
	// the capture over.
	if err := sess.SetBackgroundColor(ctx, 255, 255, 255); err != nil {
		logger.Debug("background override failed", "error", err)
	}

	loc, err := sess.CurrentLocation(ctx)
	if err != nil {
		return nil, err
	}

	if isBlankOrErrorPage(loc.URL) {
		return nil, fmt.Errorf("%w: current URL %q", ErrBlankOrErrorPage, loc.URL)
	}
	if loc.ReadyState == "loading" {
		return nil, fmt.Errorf("%w: document still loading", ErrBlankOrErrorPage)
	}

	if expected := e.expected.URLFor(screenID); expected != "" {
		if NormalizeURL(expected) != NormalizeURL(loc.URL) {
			logger.Warn("url mismatch, refusing debug capture",
				"expected", expected, "actual", loc.URL)
			return nil, fmt.Errorf("%w: expected %s, page shows %s", ErrURLMismatch, expected, loc.URL)
		}
	}

	return sess.CaptureScreenshot(ctx, quality)
}

// desktopCapture grabs the whole desktop and crops to the screen's
// output rectangle. Trust of last resort: genuine pixels, no URL proof.
func (e *Engine) desktopCapture(ctx context.Context, logger *slog.Logger, topo *display.Topology, topoErr error, b binder.Binding, screenID string, quality int) (*imaging.Result, error) {
	if topoErr != nil {
		return nil, fmt.Errorf("topology unavailable for crop: %w", topoErr)
	}

	out, err := outputForScreen(topo, b, screenID)
	if err != nil {
		return nil, err
	}
	if !out.Connected {
		return nil, fmt.Errorf("output %s is not connected", out.Name)
	}

	path, err := e.grabDesktop(ctx, topo, out)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	logger.Info("desktop grab complete", "file", path, "output", out.Name)
	return e.processor.CompressFile(path, quality)
}

// outputForScreen locates the output rectangle for a screen: by bound
// connector name when known, otherwise positionally (screen "1" is the
// leftmost connected head).
func outputForScreen(topo *display.Topology, b binder.Binding, screenID string) (display.Output, error) {
	if b.OutputName != "" {
		if out, ok := topo.FindOutput(b.OutputName); ok {
			return out, nil
		}
	}
	connected := topo.Connected()
	idx := 0
	if screenID == binder.Screen2 {
		idx = 1
	}
	if idx >= len(connected) {
		return display.Output{}, fmt.Errorf("no connected output for screen %s", screenID)
	}
	return connected[idx], nil
}

// isBlankOrErrorPage reports whether the URL is empty, about:blank or a
// browser-internal error page.
func isBlankOrErrorPage(rawURL string) bool {
	u := strings.TrimSpace(rawURL)
	if u == "" || u == "about:blank" {
		return true
	}
	return strings.HasPrefix(u, "chrome-error://")
}

// NormalizeURL canonicalizes a URL for the truth comparison: scheme and
// host lowercased, default ports dropped, trailing slash on the path
// ignored. Unparseable input compares as-is.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.TrimSpace(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

func (e *Engine) record(kind, screenID, detail string) {
	if e.journal != nil {
		e.journal.Record(kind, screenID, detail)
	}
}
