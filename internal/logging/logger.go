package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithScreen returns a logger with the logical screen id attached.
// Use this for all logging tied to one of the two outputs.
func WithScreen(screenID string) *slog.Logger {
	return slog.With("screen_id", screenID)
}

// WithCapture returns a logger scoped to a single capture request.
func WithCapture(screenID, requestID string) *slog.Logger {
	return slog.With(
		"screen_id", screenID,
		"request_id", requestID,
	)
}
