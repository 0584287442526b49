package handlers

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"kioskbox/internal/binder"
	"kioskbox/internal/controller"
	"kioskbox/internal/display"
	"kioskbox/internal/journal"
)

// DiagnosticsHandler aggregates everything a field tech needs in one
// response: identity, uptime, display topology, bindings, channel
// states and the recent event journal.
type DiagnosticsHandler struct {
	deviceID    string
	version     string
	started     time.Time
	resolver    *display.Resolver
	bindings    *binder.Registry
	controllers *controller.Registry
	journal     *journal.Journal
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(deviceID, version string, resolver *display.Resolver, bindings *binder.Registry, controllers *controller.Registry, j *journal.Journal) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		deviceID:    deviceID,
		version:     version,
		started:     time.Now(),
		resolver:    resolver,
		bindings:    bindings,
		controllers: controllers,
		journal:     j,
	}
}

// Handle serves GET /diagnostics.
func (h *DiagnosticsHandler) Handle(c *fiber.Ctx) error {
	hostname, _ := os.Hostname()

	topo, topoErr := h.resolver.Resolve(c.Context())
	resp := fiber.Map{
		"device_id":   h.deviceID,
		"hostname":    hostname,
		"version":     h.version,
		"uptime_sec":  int64(time.Since(h.started).Seconds()),
		"bindings":    h.bindings.Snapshot(),
		"controllers": h.controllers.Statuses(),
	}
	if topoErr != nil {
		resp["topology_error"] = topoErr.Error()
	} else {
		resp["topology"] = topo
	}

	events, err := h.journal.Recent(50)
	if err != nil {
		resp["journal_error"] = err.Error()
	} else {
		resp["recent_events"] = events
	}

	return c.JSON(resp)
}
