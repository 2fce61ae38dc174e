package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/middleware"
	"github.com/keystone-market/backend/internal/rbac"
	"github.com/keystone-market/backend/internal/repositories"
	"github.com/keystone-market/backend/internal/services"
	"go.uber.org/zap"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	log            *zap.Logger
}

func NewDisputeHandler(disputeService *services.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService, log: log}
}

func (h *DisputeHandler) OpenDispute(c *fiber.Ctx) error {
	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order_id"})
	}

	buyerID := middleware.GetUserID(c)
	dispute, err := h.disputeService.OpenDispute(c.Context(), orderID, buyerID, req.SenderName, req.Reason, req.Description)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	dispute, err := h.disputeService.GetDispute(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	userID, role := middleware.GetUserID(c), middleware.GetRole(c)
	if role != rbac.RoleAdmin && dispute.BuyerID != userID && dispute.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not your dispute"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *DisputeHandler) ListDisputes(c *fiber.Ctx) error {
	userID, role := middleware.GetUserID(c), middleware.GetRole(c)

	filter := repositories.DisputeFilter{Limit: 20}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	switch role {
	case rbac.RoleAdmin:
	case rbac.RoleSeller:
		filter.SellerID = &userID
	default:
		filter.BuyerID = &userID
	}

	disputes, err := h.disputeService.ListDisputes(c.Context(), filter)
	if err != nil {
		h.log.Error("list disputes failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: disputes})
}

func (h *DisputeHandler) AddMessage(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.DisputeMessageRequest
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "content is required"})
	}

	msg, err := h.disputeService.AddMessage(c.Context(), disputeID, middleware.GetUserID(c),
		middleware.GetRole(c), req.SenderName, req.Content, req.Attachments)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: msg})
}

func (h *DisputeHandler) ListMessages(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	dispute, err := h.disputeService.GetDispute(c.Context(), disputeID)
	if err != nil {
		return respondError(c, err)
	}
	userID, role := middleware.GetUserID(c), middleware.GetRole(c)
	if role != rbac.RoleAdmin && dispute.BuyerID != userID && dispute.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not your dispute"})
	}

	msgs, err := h.disputeService.ListMessages(c.Context(), disputeID)
	if err != nil {
		h.log.Error("list dispute messages failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: msgs})
}

// CloseDispute is the buyer withdrawing their dispute.
func (h *DisputeHandler) CloseDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	if err := h.disputeService.CloseDispute(c.Context(), disputeID, middleware.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
