package handlers

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"kioskbox/internal/binder"
	"kioskbox/internal/controller"
	"kioskbox/internal/display"
	"kioskbox/internal/state"
)

// ScreensHandler exposes the desired-URL surface: what each screen
// should show, and the operations that change it.
type ScreensHandler struct {
	store       *state.Store
	controllers *controller.Registry
	bindings    *binder.Registry
	resolver    *display.Resolver // optional; List omits topology when nil
	logger      *slog.Logger
}

// NewScreensHandler creates a new screens handler
func NewScreensHandler(store *state.Store, controllers *controller.Registry, bindings *binder.Registry, resolver *display.Resolver, logger *slog.Logger) *ScreensHandler {
	return &ScreensHandler{store: store, controllers: controllers, bindings: bindings, resolver: resolver, logger: logger}
}

type setURLRequest struct {
	URL string `json:"url"`
}

// SetURL handles POST /screens/:id/url. The URL is persisted first so
// a crash between persist and navigate still converges on reconnect.
func (h *ScreensHandler) SetURL(c *fiber.Ctx) error {
	screenID := c.Params("id")

	var req setURLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}
	if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url must be absolute",
		})
	}

	if err := h.store.SetURL(screenID, req.URL); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Navigation is best effort here; the controller re-applies the
	// desired URL on its next (re)connect anyway.
	if err := h.controllers.Navigate(screenID, req.URL); err != nil && !errors.Is(err, controller.ErrUnknownScreen) {
		h.logger.Warn("navigate after set url failed", "screen_id", screenID, "error", err)
	}

	return c.JSON(fiber.Map{
		"screen_id": screenID,
		"url":       req.URL,
	})
}

// List handles GET /screens: desired URLs, bindings and channel states.
func (h *ScreensHandler) List(c *fiber.Ctx) error {
	desired := h.store.Get()
	statuses := h.controllers.Statuses()
	bindings := h.bindings.Snapshot()

	type screenView struct {
		ScreenID   string `json:"screen_id"`
		DesiredURL string `json:"desired_url,omitempty"`
		Bound      bool   `json:"bound"`
		Port       int    `json:"port,omitempty"`
		OutputName string `json:"output_name,omitempty"`
		Channel    string `json:"channel"`
	}

	screens := make([]screenView, 0, 2)
	for _, id := range []string{binder.Screen1, binder.Screen2} {
		view := screenView{
			ScreenID:   id,
			DesiredURL: h.store.URLFor(id),
			Channel:    string(controller.StateDisconnected),
		}
		if b, ok := bindings[id]; ok {
			view.Bound = true
			view.Port = b.Port
			view.OutputName = b.OutputName
		}
		if st, ok := statuses[id]; ok {
			view.Channel = string(st.State)
		}
		screens = append(screens, view)
	}

	resp := fiber.Map{
		"screens": screens,
		"desired": desired,
	}
	if h.resolver != nil {
		if topo, err := h.resolver.Resolve(c.Context()); err == nil {
			resp["topology"] = topo
		}
	}
	return c.JSON(resp)
}

// Clear handles POST /screens/:id/clear: wipe browser cache and cookies
// over the screen's persistent channel.
func (h *ScreensHandler) Clear(c *fiber.Ctx) error {
	screenID := c.Params("id")

	ctrl, ok := h.controllers.Get(screenID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown screen id",
		})
	}

	if err := ctrl.ClearCache(c.Context()); err != nil {
		if errors.Is(err, controller.ErrChannelNotOpen) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "control channel not open",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "clear failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{"screen_id": screenID, "cleared": true})
}
