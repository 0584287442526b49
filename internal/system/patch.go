// Package system covers the operator-facing host operations: running
// patch scripts, rebooting with an uptime guard, and toggling the
// desktop cursor.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var ErrBadScriptName = errors.New("invalid patch script name")

// scriptNameRe keeps patch names to a flat filename, no traversal.
var scriptNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+\.sh$`)

// PatchResult captures the outcome of one script run.
type PatchResult struct {
	Script   string `json:"script"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// PatchRunner executes operator-supplied shell scripts out of a fixed
// directory. The run function is swappable for tests.
type PatchRunner struct {
	dir     string
	timeout time.Duration
	logger  *slog.Logger
	run     func(ctx context.Context, path string) (stdout, stderr string, exitCode int, err error)
}

func NewPatchRunner(dir string, logger *slog.Logger) *PatchRunner {
	r := &PatchRunner{dir: dir, timeout: 5 * time.Minute, logger: logger}
	r.run = r.runScript
	return r
}

// Run validates the script name, executes it with bash, and returns the
// captured output. A nonzero exit is reported in the result, not as an
// error; errors mean the script could not be run at all.
func (r *PatchRunner) Run(ctx context.Context, script string) (*PatchResult, error) {
	if !scriptNameRe.MatchString(script) || strings.Contains(script, "..") {
		return nil, fmt.Errorf("%w: %q", ErrBadScriptName, script)
	}

	path := filepath.Join(r.dir, script)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Info("running patch script", "script", script)
	stdout, stderr, code, err := r.run(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to run patch %s: %w", script, err)
	}

	result := &PatchResult{Script: script, ExitCode: code, Stdout: stdout, Stderr: stderr}
	r.logger.Info("patch script finished", "script", script, "exit_code", code)
	return result, nil
}

func (r *PatchRunner) runScript(ctx context.Context, path string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "bash", path)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return "", "", -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}
