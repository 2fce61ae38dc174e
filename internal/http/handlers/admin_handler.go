package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/middleware"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/rbac"
	"github.com/keystone-market/backend/internal/repositories"
	"github.com/keystone-market/backend/internal/services"
	"go.uber.org/zap"
)

type AdminHandler struct {
	disputeService    *services.DisputeService
	escrowService     *services.EscrowService
	reputationService *services.ReputationService
	scheduler         *services.Scheduler
	sellerRepo        *repositories.SellerRepo
	auditRepo         *repositories.AuditRepo
	cfg               *config.Config
	log               *zap.Logger
}

func NewAdminHandler(
	disputeService *services.DisputeService,
	escrowService *services.EscrowService,
	reputationService *services.ReputationService,
	scheduler *services.Scheduler,
	sellerRepo *repositories.SellerRepo,
	auditRepo *repositories.AuditRepo,
	cfg *config.Config,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		disputeService:    disputeService,
		escrowService:     escrowService,
		reputationService: reputationService,
		scheduler:         scheduler,
		sellerRepo:        sellerRepo,
		auditRepo:         auditRepo,
		cfg:               cfg,
		log:               log,
	}
}

func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil || req.Resolution == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "resolution is required"})
	}

	dispute, err := h.disputeService.ResolveDispute(c.Context(), disputeID, req.Resolution, req.Note, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	// Reputation reflects the verdict immediately.
	if _, err := h.reputationService.RecalculateSeller(c.Context(), dispute.SellerID); err != nil {
		h.log.Warn("reputation recalc after resolution failed", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *AdminHandler) EscalateDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	adminID := middleware.GetUserID(c)
	if err := h.disputeService.EscalateDispute(c.Context(), disputeID, &adminID, rbac.RoleAdmin); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetEscrow inspects the escrow record behind an order.
func (h *AdminHandler) GetEscrow(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	tx, err := h.escrowService.GetByOrderID(c.Context(), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *AdminHandler) ForceRelease(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	adminID := middleware.GetUserID(c)
	tx, err := h.escrowService.ReleaseEscrow(c.Context(), orderID, &adminID, rbac.RoleAdmin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *AdminHandler) ForceRefund(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	adminID := middleware.GetUserID(c)
	tx, err := h.escrowService.RefundEscrow(c.Context(), orderID, &adminID, rbac.RoleAdmin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *AdminHandler) RecalculateSeller(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller id"})
	}

	res, err := h.reputationService.RecalculateSeller(c.Context(), sellerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *AdminHandler) SetVerified(c *fiber.Ctx) error {
	return h.setSellerFlag(c, h.sellerRepo.SetVerified, "seller_verified_changed")
}

func (h *AdminHandler) SetBlocked(c *fiber.Ctx) error {
	return h.setSellerFlag(c, h.sellerRepo.SetBlocked, "seller_blocked_changed")
}

func (h *AdminHandler) setSellerFlag(c *fiber.Ctx, set func(context.Context, uuid.UUID, bool) error, action string) error {
	sellerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller id"})
	}

	var req dto.SetSellerFlagRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if err := set(c.Context(), sellerID, req.Value); err != nil {
		return respondError(c, err)
	}

	adminID := middleware.GetUserID(c)
	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &adminID,
		ActorType:   rbac.RoleAdmin,
		Action:      action,
		EntityType:  "seller",
		EntityID:    &sellerID,
		Meta:        map[string]any{"value": req.Value},
	})
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) UpdateTrustPolicy(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller id"})
	}

	var req dto.UpdateTrustPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.EscrowDays == nil && req.MaxReplacementsPerOrder == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "nothing to update"})
	}
	if req.EscrowDays != nil && *req.EscrowDays < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "escrow_days must be >= 0"})
	}
	if req.MaxReplacementsPerOrder != nil && *req.MaxReplacementsPerOrder < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "max_replacements_per_order must be >= 0"})
	}

	if err := h.sellerRepo.UpdateTrustPolicy(c.Context(), sellerID, req.EscrowDays, req.MaxReplacementsPerOrder); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// RunScheduler triggers both maintenance passes out of band.
func (h *AdminHandler) RunScheduler(c *fiber.Ctx) error {
	summary := h.scheduler.RunScheduledTasks(c.Context())
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}

// CreateSeller onboards a seller record under their identity-service user id.
func (h *AdminHandler) CreateSeller(c *fiber.Ctx) error {
	var req dto.CreateSellerRequest
	if err := c.BodyParser(&req); err != nil || req.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "display_name is required"})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user_id"})
	}

	seller := &models.Seller{
		ID:                      userID,
		DisplayName:             req.DisplayName,
		EscrowDays:              h.cfg.DefaultEscrowDays,
		MaxReplacementsPerOrder: h.cfg.DefaultMaxReplacements,
	}
	if err := h.sellerRepo.Create(c.Context(), seller); err != nil {
		return respondError(c, err)
	}

	adminID := middleware.GetUserID(c)
	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &adminID,
		ActorType:   rbac.RoleAdmin,
		Action:      "seller_created",
		EntityType:  "seller",
		EntityID:    &seller.ID,
	})
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: seller})
}

// ReconcileSeller compares the seller's frozen balance against the sum of
// their frozen escrow transactions.
func (h *AdminHandler) ReconcileSeller(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller id"})
	}

	drift, err := h.reputationService.ReconcileFrozenBalance(c.Context(), sellerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"drift_cents": drift}})
}

// GetAuditLog lists the audit trail for one entity.
func (h *AdminHandler) GetAuditLog(c *fiber.Ctx) error {
	entityType := c.Query("entity_type")
	entityID, err := uuid.Parse(c.Query("entity_id"))
	if entityType == "" || err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "entity_type and entity_id are required"})
	}

	entries, err := h.auditRepo.GetByEntity(c.Context(), entityType, entityID, 100, 0)
	if err != nil {
		h.log.Error("audit log query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
