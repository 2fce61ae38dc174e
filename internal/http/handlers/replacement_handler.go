package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/middleware"
	"github.com/keystone-market/backend/internal/services"
	"go.uber.org/zap"
)

type ReplacementHandler struct {
	replacementService *services.ReplacementService
	log                *zap.Logger
}

func NewReplacementHandler(replacementService *services.ReplacementService, log *zap.Logger) *ReplacementHandler {
	return &ReplacementHandler{replacementService: replacementService, log: log}
}

// RequestReplacement re-issues a key for a delivered order, or past the
// seller's bound returns the dispute that was opened instead.
func (h *ReplacementHandler) RequestReplacement(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.RequestReplacementRequest
	if err := c.BodyParser(&req); err != nil || req.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "reason is required"})
	}

	outcome, err := h.replacementService.RequestKeyReplacement(c.Context(), orderID, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: outcome})
}

func (h *ReplacementHandler) ListReplacements(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	items, err := h.replacementService.ListByOrder(c.Context(), orderID)
	if err != nil {
		h.log.Error("list replacements failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: items})
}
