package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kioskbox/internal/display"
)

// ffmpegGrab captures the entire desktop canvas with x11grab and crops
// to one output's rectangle. The grabber writes a raster file to a
// per-request temp path; the caller owns removing it.
func (e *Engine) ffmpegGrab(ctx context.Context, topo *display.Topology, out display.Output) (string, error) {
	if e.ffmpegPath == "" {
		return "", fmt.Errorf("frame-grab tool not configured")
	}
	if topo.TotalWidth == 0 || topo.TotalHeight == 0 {
		return "", fmt.Errorf("unknown canvas size, cannot grab desktop")
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("kioskbox-grab-%s.png", uuid.New().String()))

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-y",
		"-f", "x11grab",
		"-video_size", fmt.Sprintf("%dx%d", topo.TotalWidth, topo.TotalHeight),
		"-i", e.displayEnv,
		"-vframes", "1",
		"-vf", fmt.Sprintf("crop=%d:%d:%d:%d", out.Width, out.Height, out.X, out.Y),
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("frame grab failed: %w: %s", err, lastLine(stderr.String()))
	}

	// The grabber signals completion by the file existing with content.
	if err := waitForFile(ctx, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// waitForFile polls until the path exists and is non-empty.
func waitForFile(ctx context.Context, path string) error {
	for {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("grab output never appeared at %s", path)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// lastLine extracts the final non-empty stderr line, which is where
// ffmpeg puts the actual failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
