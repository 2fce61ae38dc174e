package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/services"
	"go.uber.org/zap"
)

// PaymentHandler receives payment-provider webhooks. Providers retry until
// they see 2xx, so the whole chain behind this endpoint is idempotent.
type PaymentHandler struct {
	escrowService   *services.EscrowService
	deliveryService *services.DeliveryService
	log             *zap.Logger
}

func NewPaymentHandler(escrowService *services.EscrowService, deliveryService *services.DeliveryService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{escrowService: escrowService, deliveryService: deliveryService, log: log}
}

// paymentEvent is the validated form of the webhook body.
type paymentEvent struct {
	OrderID     uuid.UUID
	AmountCents int64
	ProviderRef string
}

func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req dto.PaymentWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if req.EventType != "payment_confirmed" {
		// Unknown event types are acknowledged so the provider stops retrying.
		h.log.Debug("ignoring payment event", zap.String("event_type", req.EventType))
		return c.JSON(dto.SuccessResponse{OK: true})
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order_id"})
	}
	ev := paymentEvent{OrderID: orderID, AmountCents: req.AmountCents, ProviderRef: req.ProviderRef}

	tx, err := h.escrowService.OnOrderPaid(c.Context(), ev.OrderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "order not found"})
		}
		if errors.Is(err, models.ErrInvalidState) {
			// The order can no longer take a payment (cancelled, refunded).
			// Acknowledge so the provider stops retrying and flag it for
			// operators to reconcile with the provider.
			h.log.Warn("payment for non-payable order ignored",
				zap.String("order_id", ev.OrderID.String()),
				zap.String("provider_ref", ev.ProviderRef), zap.Error(err))
			return c.JSON(dto.SuccessResponse{OK: true})
		}
		h.log.Error("payment webhook failed",
			zap.String("order_id", ev.OrderID.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	// Auto-delivery follows in-line. Manual products and exhausted pools leave
	// the order paid; neither fails the webhook.
	if _, err := h.deliveryService.ProcessAutoDelivery(c.Context(), ev.OrderID); err != nil {
		switch {
		case errors.Is(err, models.ErrManualDelivery), errors.Is(err, models.ErrOutOfStock):
			h.log.Info("order paid, delivery deferred",
				zap.String("order_id", ev.OrderID.String()), zap.Error(err))
		case errors.Is(err, models.ErrInvalidState):
			// Already delivered by a concurrent retry.
		default:
			h.log.Error("auto-delivery failed",
				zap.String("order_id", ev.OrderID.String()), zap.Error(err))
		}
		return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
	}

	if err := h.escrowService.OnOrderDelivered(c.Context(), ev.OrderID); err != nil {
		h.log.Warn("post-delivery counters failed",
			zap.String("order_id", ev.OrderID.String()), zap.Error(err))
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}
