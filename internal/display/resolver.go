package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrResolution means the display server query tool could not be run at all.
var ErrResolution = errors.New("display topology resolution failed")

var (
	// "HDMI-1 connected primary 1920x1080+0+0 (normal ...) 527mm x 296mm"
	outputRe = regexp.MustCompile(`^(\S+) (connected|disconnected)(?: primary)? ?(?:(\d+)x(\d+)\+(\d+)\+(\d+))?`)
	// "Screen 0: minimum 320 x 200, current 3840 x 1080, maximum 16384 x 16384"
	currentRe = regexp.MustCompile(`current (\d+) x (\d+)`)
)

// Resolver queries the X server for the current output topology by
// shelling out to xrandr. It never caches: hot-plug changes the answer,
// so every Resolve call runs a fresh query.
type Resolver struct {
	xrandrPath string
	display    string
	logger     *slog.Logger
}

// NewResolver creates a topology resolver using the given xrandr binary
// and X display.
func NewResolver(xrandrPath, display string) *Resolver {
	return &Resolver{
		xrandrPath: xrandrPath,
		display:    display,
		logger:     slog.With("component", "display"),
	}
}

// Resolve queries the display server and returns the current topology.
// Returns ErrResolution when the query tool cannot be invoked; when the
// tool runs but nothing parses (early boot, outputs not yet enumerated)
// it falls back to a conservative two-head default instead of failing.
func (r *Resolver) Resolve(ctx context.Context) (*Topology, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.xrandrPath, "--query")
	cmd.Env = append(os.Environ(), "DISPLAY="+r.display)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s exited %d: %s",
				ErrResolution, r.xrandrPath, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	topo := ParseTopology(string(out))
	if len(topo.Outputs) == 0 {
		r.logger.Warn("no outputs parsed from query, using two-head default")
		return DefaultTopology(), nil
	}
	return topo, nil
}

// ParseTopology parses xrandr --query output into a Topology. Outputs
// are sorted by ascending x position. The total canvas comes from the
// "current WxH" header when present, otherwise from the bounding box of
// the connected outputs.
func ParseTopology(raw string) *Topology {
	topo := &Topology{}

	for _, line := range strings.Split(raw, "\n") {
		if m := currentRe.FindStringSubmatch(line); m != nil {
			topo.TotalWidth = atoi(m[1])
			topo.TotalHeight = atoi(m[2])
			continue
		}
		// Mode lines are indented; only connector lines start at column 0.
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		m := outputRe.FindStringSubmatch(line)
		if m == nil || strings.HasPrefix(line, "Screen ") {
			continue
		}
		o := Output{
			Name:      m[1],
			Connected: m[2] == "connected",
		}
		if m[3] != "" {
			o.Width = atoi(m[3])
			o.Height = atoi(m[4])
			o.X = atoi(m[5])
			o.Y = atoi(m[6])
		}
		topo.Outputs = append(topo.Outputs, o)
	}

	sort.SliceStable(topo.Outputs, func(i, j int) bool {
		return topo.Outputs[i].X < topo.Outputs[j].X
	})

	if topo.TotalWidth == 0 || topo.TotalHeight == 0 {
		topo.TotalWidth, topo.TotalHeight = topo.boundingBox()
	}
	return topo
}

// DefaultTopology is the degraded fallback used when no outputs can be
// enumerated yet: two 1920x1080 heads side by side. Callers must tolerate
// this during early boot.
func DefaultTopology() *Topology {
	return &Topology{
		Outputs: []Output{
			{Name: "HDMI-1", Connected: true, Width: 1920, Height: 1080, X: 0, Y: 0},
			{Name: "HDMI-2", Connected: true, Width: 1920, Height: 1080, X: 1920, Y: 0},
		},
		TotalWidth:  3840,
		TotalHeight: 1080,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
