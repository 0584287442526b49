package binder

import "context"

// FixedStrategy binds screens by cabling convention: screen "1" is
// always the first debug port on the first output, screen "2" the
// second. Deterministic, but only correct when the box is cabled the
// way the convention assumes.
type FixedStrategy struct {
	screen1Port   int
	screen2Port   int
	screen1Output string
	screen2Output string
}

// NewFixedStrategy creates the convention-based strategy.
func NewFixedStrategy(screen1Port, screen2Port int, screen1Output, screen2Output string) *FixedStrategy {
	return &FixedStrategy{
		screen1Port:   screen1Port,
		screen2Port:   screen2Port,
		screen1Output: screen1Output,
		screen2Output: screen2Output,
	}
}

func (s *FixedStrategy) Name() string { return "fixed" }

// Detect returns the conventional mapping. Each screen gets its own
// port; an unconfigured screen is simply absent from the result rather
// than aliased onto the other screen's port.
func (s *FixedStrategy) Detect(_ context.Context) (map[string]Binding, error) {
	bindings := make(map[string]Binding, 2)
	if s.screen1Port != 0 {
		bindings[Screen1] = Binding{ScreenID: Screen1, Port: s.screen1Port, OutputName: s.screen1Output}
	}
	if s.screen2Port != 0 {
		bindings[Screen2] = Binding{ScreenID: Screen2, Port: s.screen2Port, OutputName: s.screen2Output}
	}
	return bindings, nil
}
