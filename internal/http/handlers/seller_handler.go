package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/middleware"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"github.com/keystone-market/backend/internal/services"
	"go.uber.org/zap"
)

type SellerHandler struct {
	deliveryService   *services.DeliveryService
	reputationService *services.ReputationService
	productRepo       *repositories.ProductRepo
	log               *zap.Logger
}

func NewSellerHandler(
	deliveryService *services.DeliveryService,
	reputationService *services.ReputationService,
	productRepo *repositories.ProductRepo,
	log *zap.Logger,
) *SellerHandler {
	return &SellerHandler{
		deliveryService:   deliveryService,
		reputationService: reputationService,
		productRepo:       productRepo,
		log:               log,
	}
}

func (h *SellerHandler) CreateProduct(c *fiber.Ctx) error {
	var req dto.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Title == "" || req.PriceCents <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "title and positive price_cents are required"})
	}
	if req.DeliveryMode != models.DeliveryModeAuto && req.DeliveryMode != models.DeliveryModeManual {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "delivery_mode must be auto or manual"})
	}

	product := &models.Product{
		SellerID:     middleware.GetUserID(c),
		Title:        req.Title,
		Description:  req.Description,
		PriceCents:   req.PriceCents,
		DeliveryMode: req.DeliveryMode,
		Instructions: req.Instructions,
		Status:       models.ProductStatusOutOfStock, // activated by the first credential batch
	}
	if err := h.productRepo.Create(c.Context(), product); err != nil {
		h.log.Error("create product failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: product})
}

func (h *SellerHandler) MyProducts(c *fiber.Ctx) error {
	products, err := h.productRepo.ListBySeller(c.Context(), middleware.GetUserID(c), 100, 0)
	if err != nil {
		h.log.Error("list products failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: products})
}

// AddCredentials uploads a batch of keys into the product's pool.
func (h *SellerHandler) AddCredentials(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid product id"})
	}

	var req dto.AddCredentialsRequest
	if err := c.BodyParser(&req); err != nil || len(req.Values) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "values are required"})
	}

	added, err := h.deliveryService.AddCredentials(c.Context(), middleware.GetUserID(c), productID, req.Values, req.VariantTag)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"added": added}})
}

func (h *SellerHandler) RemoveCredential(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid product id"})
	}
	credentialID, err := uuid.Parse(c.Params("credentialId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid credential id"})
	}

	if err := h.deliveryService.RemoveCredential(c.Context(), middleware.GetUserID(c), productID, credentialID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *SellerHandler) PoolStats(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid product id"})
	}

	stats, err := h.deliveryService.PoolStats(c.Context(), middleware.GetUserID(c), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

// GetProfile is the public seller card: rating, badges, volume.
func (h *SellerHandler) GetProfile(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller id"})
	}

	profile, err := h.reputationService.GetSellerProfile(c.Context(), sellerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: profile})
}

// GetMe returns the seller's own full record, balances included.
func (h *SellerHandler) GetMe(c *fiber.Ctx) error {
	seller, err := h.reputationService.GetSeller(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: seller})
}
