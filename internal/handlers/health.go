package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"kioskbox/internal/binder"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	bindings *binder.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(bindings *binder.Registry) *HealthHandler {
	return &HealthHandler{bindings: bindings}
}

// Handle responds with agent health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "healthy",
		"bound_screens": len(h.bindings.Snapshot()),
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}
