package binder

import "context"

// ScreenID values are the operator-facing logical identifiers.
const (
	Screen1 = "1"
	Screen2 = "2"
)

// Binding associates a logical screen id with a remote-debugging port
// and, when known, the physical connector driving it. Bindings are
// immutable values; the registry swaps whole maps, never fields.
type Binding struct {
	ScreenID   string `json:"screen_id"`
	Port       int    `json:"port"`
	OutputName string `json:"output_name,omitempty"`
}

// Strategy produces screen-to-port bindings. Two implementations exist:
// the fixed cabling convention and runtime detection by window position.
// A strategy returns only the screens it could actually resolve; callers
// must treat missing screens as unavailable, never as a fallback to
// another screen's port.
type Strategy interface {
	Detect(ctx context.Context) (map[string]Binding, error)
	Name() string
}
