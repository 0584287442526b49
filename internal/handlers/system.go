package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"kioskbox/internal/journal"
	"kioskbox/internal/system"
)

// SystemHandler exposes the host-level maintenance operations.
type SystemHandler struct {
	patches *system.PatchRunner
	reboot  *system.RebootGuard
	cursor  *system.CursorToggle
	journal *journal.Journal
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(patches *system.PatchRunner, reboot *system.RebootGuard, cursor *system.CursorToggle, j *journal.Journal) *SystemHandler {
	return &SystemHandler{patches: patches, reboot: reboot, cursor: cursor, journal: j}
}

type patchRequest struct {
	Script string `json:"script"`
}

// Patch handles POST /system/patch.
func (h *SystemHandler) Patch(c *fiber.Ctx) error {
	var req patchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := h.patches.Run(c.Context(), req.Script)
	if err != nil {
		if errors.Is(err, system.ErrBadScriptName) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.journal.Record(journal.KindPatch, "", "failed: "+err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "patch failed: " + err.Error(),
		})
	}

	h.journal.Record(journal.KindPatch, "", req.Script)
	return c.JSON(result)
}

// Reboot handles POST /system/reboot.
func (h *SystemHandler) Reboot(c *fiber.Ctx) error {
	if err := h.reboot.Reboot(c.Context()); err != nil {
		if errors.Is(err, system.ErrTooSoon) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reboot failed: " + err.Error(),
		})
	}

	h.journal.Record(journal.KindReboot, "", "operator requested")
	return c.JSON(fiber.Map{"rebooting": true})
}

type cursorRequest struct {
	Visible *bool `json:"visible"`
}

// Cursor handles POST /system/cursor.
func (h *SystemHandler) Cursor(c *fiber.Ctx) error {
	var req cursorRequest
	if err := c.BodyParser(&req); err != nil || req.Visible == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "visible (bool) is required",
		})
	}

	if err := h.cursor.SetVisible(c.Context(), *req.Visible); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "cursor toggle failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{"visible": h.cursor.Visible()})
}
