package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"kioskbox/internal/capture"
	"kioskbox/internal/imaging"
)

// ScreenshotHandler serves truth-verified captures of a screen.
type ScreenshotHandler struct {
	engine         *capture.Engine
	defaultQuality int
}

// NewScreenshotHandler creates a new screenshot handler
func NewScreenshotHandler(engine *capture.Engine, defaultQuality int) *ScreenshotHandler {
	return &ScreenshotHandler{engine: engine, defaultQuality: defaultQuality}
}

// Handle serves GET /screenshot/:id?quality=NN as raw image bytes.
func (h *ScreenshotHandler) Handle(c *fiber.Ctx) error {
	screenID := c.Params("id")
	if screenID != "1" && screenID != "2" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown screen id",
		})
	}

	quality := h.defaultQuality
	if q := c.Query("quality"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "quality must be an integer",
			})
		}
		quality = imaging.ClampQuality(parsed)
	}

	result, err := h.engine.Capture(c.Context(), screenID, quality)
	if err != nil {
		if errors.Is(err, capture.ErrScreenUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "screen not available: " + err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "capture failed: " + err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, result.Mime)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(result.Buffer)
}
