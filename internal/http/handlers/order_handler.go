package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/middleware"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderRepo   *repositories.OrderRepo
	productRepo *repositories.ProductRepo
	log         *zap.Logger
}

func NewOrderHandler(orderRepo *repositories.OrderRepo, productRepo *repositories.ProductRepo, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orderRepo: orderRepo, productRepo: productRepo, log: log}
}

// CreateOrder opens a pending order with the price snapshotted from the
// product. Payment confirmation arrives later through the webhook.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid product_id"})
	}

	product, err := h.productRepo.GetByID(c.Context(), productID)
	if err != nil {
		return respondError(c, err)
	}
	if product.Status != models.ProductStatusActive {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "product is not available"})
	}

	order := &models.Order{
		ProductID:   product.ID,
		VariantTag:  req.VariantTag,
		SellerID:    product.SellerID,
		BuyerID:     middleware.GetUserID(c),
		AmountCents: product.PriceCents,
		Status:      models.OrderStatusPending,
	}
	if err := h.orderRepo.Create(c.Context(), order); err != nil {
		h.log.Error("create order failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	orders, err := h.orderRepo.ListByBuyer(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		h.log.Error("list orders failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	order, err := h.orderRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	userID := middleware.GetUserID(c)
	if order.BuyerID != userID && order.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not your order"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// GetDelivery returns the delivery payload. Only the owning buyer sees it,
// and only once the order is delivered.
func (h *OrderHandler) GetDelivery(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	order, err := h.orderRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if order.BuyerID != middleware.GetUserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not your order"})
	}
	if order.Status != models.OrderStatusDelivered || order.DeliveryPayload == nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "order is not delivered"})
	}

	return c.JSON(dto.DeliveryResponse{OrderID: order.ID.String(), Payload: *order.DeliveryPayload})
}
