package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port    string
	Display string // X display the kiosk browsers render on, e.g. ":0"

	// Remote debugging ports of the two kiosk browser instances
	Screen1DebugPort int
	Screen2DebugPort int

	// Physical connector names assumed by the fixed binder strategy
	Screen1Output string
	Screen2Output string

	// BinderStrategy selects how logical screens map to debug ports:
	// "fixed" (cabling convention) or "detect" (window-position probing)
	BinderStrategy string

	StateFile string
	JournalDB string
	PatchDir  string

	// Hub registration (optional; empty disables announcing)
	HubURL   string
	DeviceID string

	XrandrPath string
	FFmpegPath string

	CaptureQuality int // default JPEG quality when the request doesn't set one

	MinUptimeBeforeReboot time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	hostname, _ := os.Hostname()

	return &Config{
		Port:    getEnv("PORT", "3000"),
		Display: getEnv("DISPLAY", ":0"),

		Screen1DebugPort: getIntEnv("SCREEN1_DEBUG_PORT", 9222),
		Screen2DebugPort: getIntEnv("SCREEN2_DEBUG_PORT", 9223),

		Screen1Output: getEnv("SCREEN1_OUTPUT", "HDMI-1"),
		Screen2Output: getEnv("SCREEN2_OUTPUT", "HDMI-2"),

		BinderStrategy: getEnv("BINDER_STRATEGY", "fixed"),

		StateFile: getEnv("STATE_FILE", "./data/state.json"),
		JournalDB: getEnv("JOURNAL_DB", "./data/journal.db"),
		PatchDir:  getEnv("PATCH_DIR", "./patches"),

		HubURL:   getEnv("HUB_URL", ""),
		DeviceID: getEnv("DEVICE_ID", hostname),

		XrandrPath: getEnv("XRANDR_PATH", "xrandr"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		CaptureQuality: getIntEnv("CAPTURE_QUALITY", 70),

		MinUptimeBeforeReboot: time.Duration(getIntEnv("MIN_UPTIME_BEFORE_REBOOT_SECONDS", 120)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
