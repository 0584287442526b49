// Package hub reports this device's presence and display state to the
// central fleet hub. The announce payload is assembled from injected
// sources so the announcer stays decoupled from the rest of the agent.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Sources supplies the pieces of the announce payload. Any nil func is
// simply omitted from the report.
type Sources struct {
	Topology    func() any
	Bindings    func() any
	Controllers func() any
	ScreenURLs  func() any
}

// Payload is the body POSTed to the hub's announce endpoint.
type Payload struct {
	DeviceID    string    `json:"device_id"`
	Hostname    string    `json:"hostname"`
	Version     string    `json:"version"`
	UptimeSec   int64     `json:"uptime_sec"`
	ReportedAt  time.Time `json:"reported_at"`
	Topology    any       `json:"topology,omitempty"`
	Bindings    any       `json:"bindings,omitempty"`
	Controllers any       `json:"controllers,omitempty"`
	ScreenURLs  any       `json:"screen_urls,omitempty"`
}

type Announcer struct {
	hubURL   string
	deviceID string
	hostname string
	version  string
	started  time.Time
	sources  Sources
	client   *http.Client
	logger   *slog.Logger
}

func NewAnnouncer(hubURL, deviceID, hostname, version string, sources Sources, logger *slog.Logger) *Announcer {
	return &Announcer{
		hubURL:   hubURL,
		deviceID: deviceID,
		hostname: hostname,
		version:  version,
		started:  time.Now(),
		sources:  sources,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Announce posts a single report. Failures are returned, not retried;
// the caller runs this on an interval so the next tick is the retry.
func (a *Announcer) Announce(ctx context.Context) error {
	payload := Payload{
		DeviceID:   a.deviceID,
		Hostname:   a.hostname,
		Version:    a.version,
		UptimeSec:  int64(time.Since(a.started).Seconds()),
		ReportedAt: time.Now().UTC(),
	}
	if a.sources.Topology != nil {
		payload.Topology = a.sources.Topology()
	}
	if a.sources.Bindings != nil {
		payload.Bindings = a.sources.Bindings()
	}
	if a.sources.Controllers != nil {
		payload.Controllers = a.sources.Controllers()
	}
	if a.sources.ScreenURLs != nil {
		payload.ScreenURLs = a.sources.ScreenURLs()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode announce payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.hubURL+"/announce", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build announce request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("announce request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hub rejected announce: status %d", resp.StatusCode)
	}
	return nil
}

// Tick is the job-runner entry point. Errors are logged and swallowed
// so a hub outage never disturbs the rest of the agent.
func (a *Announcer) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Announce(ctx); err != nil {
		a.logger.Warn("hub announce failed", "error", err)
	}
}
