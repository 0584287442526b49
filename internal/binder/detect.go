package binder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"kioskbox/internal/devtools"
	"kioskbox/internal/display"
)

// DetectStrategy resolves the mapping at runtime: for every candidate
// debug port it asks the browser window where it sits on the desktop
// (window.screenX through the debug channel itself), sorts candidates
// left to right and assigns screen "1" to the leftmost. With a single
// detected window, screen "2" stays unbound.
type DetectStrategy struct {
	ports    []int
	client   *devtools.Client
	resolver *display.Resolver
	logger   *slog.Logger

	// probe is swappable for tests; the default dials the real channel.
	probe func(ctx context.Context, port int) (int, error)
}

// NewDetectStrategy creates the runtime-detection strategy over the
// given candidate ports.
func NewDetectStrategy(ports []int, client *devtools.Client, resolver *display.Resolver) *DetectStrategy {
	s := &DetectStrategy{
		ports:    ports,
		client:   client,
		resolver: resolver,
		logger:   slog.With("component", "binder"),
	}
	s.probe = s.probeWindowX
	return s
}

func (s *DetectStrategy) Name() string { return "detect" }

type candidate struct {
	port int
	x    int
}

// Detect probes every candidate port and orders the found windows by
// x ascending. Ports that don't answer are skipped, not guessed at.
func (s *DetectStrategy) Detect(ctx context.Context) (map[string]Binding, error) {
	var found []candidate
	for _, port := range s.ports {
		x, err := s.probe(ctx, port)
		if err != nil {
			s.logger.Debug("port not detectable", "port", port, "error", err)
			continue
		}
		found = append(found, candidate{port: port, x: x})
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("no debugged windows found on ports %v", s.ports)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].x < found[j].x })

	// Associate left-to-right ordered windows with left-to-right outputs
	// when the topology is available; the binding still stands without it.
	var connected []display.Output
	if s.resolver != nil {
		if topo, err := s.resolver.Resolve(ctx); err == nil {
			connected = topo.Connected()
		}
	}

	bindings := make(map[string]Binding, len(found))
	ids := []string{Screen1, Screen2}
	for i, c := range found {
		if i >= len(ids) {
			break
		}
		b := Binding{ScreenID: ids[i], Port: c.port}
		if i < len(connected) {
			b.OutputName = connected[i].Name
		}
		bindings[ids[i]] = b
	}
	return bindings, nil
}

// probeWindowX opens a short-lived channel to the first page on the
// port and reads window.screenX.
func (s *DetectStrategy) probeWindowX(ctx context.Context, port int) (int, error) {
	page, err := s.client.FirstPage(ctx, port)
	if err != nil {
		return 0, err
	}
	ch, err := devtools.OpenChannel(ctx, page.WebSocketDebuggerURL)
	if err != nil {
		return 0, err
	}
	defer ch.Close()
	return ch.WindowScreenX(ctx)
}
