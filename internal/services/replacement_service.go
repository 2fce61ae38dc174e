package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/events"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/rbac"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

// ReplacementService re-issues credentials for delivered orders within the
// seller's per-order bound, escalating to a dispute past it.
type ReplacementService struct {
	orderRepo       *repositories.OrderRepo
	sellerRepo      *repositories.SellerRepo
	replacementRepo *repositories.ReplacementRepo
	credentialRepo  *repositories.CredentialRepo
	productRepo     *repositories.ProductRepo
	auditRepo       *repositories.AuditRepo
	disputes        *DisputeService
	vault           *VaultClient
	notify          *NotifyClient
	publisher       events.Publisher
	log             *zap.Logger
}

func NewReplacementService(
	orderRepo *repositories.OrderRepo,
	sellerRepo *repositories.SellerRepo,
	replacementRepo *repositories.ReplacementRepo,
	credentialRepo *repositories.CredentialRepo,
	productRepo *repositories.ProductRepo,
	auditRepo *repositories.AuditRepo,
	disputes *DisputeService,
	vault *VaultClient,
	notify *NotifyClient,
	publisher events.Publisher,
	log *zap.Logger,
) *ReplacementService {
	return &ReplacementService{
		orderRepo:       orderRepo,
		sellerRepo:      sellerRepo,
		replacementRepo: replacementRepo,
		credentialRepo:  credentialRepo,
		productRepo:     productRepo,
		auditRepo:       auditRepo,
		disputes:        disputes,
		vault:           vault,
		notify:          notify,
		publisher:       publisher,
		log:             log,
	}
}

// ReplacementOutcome carries either the recorded replacement or, past the
// bound, the dispute that was opened instead.
type ReplacementOutcome struct {
	Replacement *models.KeyReplacement `json:"replacement,omitempty"`
	Dispute     *models.Dispute        `json:"dispute,omitempty"`
}

func (s *ReplacementService) RequestKeyReplacement(ctx context.Context, orderID, buyerID uuid.UUID, reason string) (*ReplacementOutcome, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, fmt.Errorf("%w: order belongs to another buyer", models.ErrUnauthorized)
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: order is %s, not delivered", models.ErrInvalidState, order.Status)
	}

	seller, err := s.sellerRepo.GetByID(ctx, order.SellerID)
	if err != nil {
		return nil, err
	}

	count, err := s.replacementRepo.CountByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if count >= seller.MaxReplacementsPerOrder {
		dispute, err := s.disputes.EscalateReplacement(ctx, order)
		if err != nil {
			return nil, err
		}
		rec := &models.KeyReplacement{
			OrderID:  orderID,
			SellerID: order.SellerID,
			Reason:   reason,
			Status:   models.ReplacementStatusEscalated,
		}
		if err := s.replacementRepo.Create(ctx, rec); err != nil {
			s.log.Warn("failed to record escalated replacement", zap.Error(err))
		}
		return &ReplacementOutcome{Dispute: dispute}, nil
	}

	rec := &models.KeyReplacement{
		OrderID:  orderID,
		SellerID: order.SellerID,
		Reason:   reason,
	}

	// Looked up before the new claim so it still points at the key being replaced.
	prev, prevErr := s.credentialRepo.GetByOrderID(ctx, orderID)

	cred, err := s.credentialRepo.Reserve(ctx, order.ProductID, order.ID, order.VariantTag)
	if errors.Is(err, models.ErrOutOfStock) {
		// Exhausted pool rejects the request but does not escalate; only the
		// count bound escalates.
		rec.Status = models.ReplacementStatusRejected
		if err := s.replacementRepo.Create(ctx, rec); err != nil {
			return nil, err
		}
		s.notify.AlertAdmins(ctx, "replacement rejected: pool exhausted", map[string]any{
			"order_id": orderID.String(),
		})
		return &ReplacementOutcome{Replacement: rec}, nil
	}
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	payload := composePayload(cred.Value, product.Instructions)
	sealed, err := s.vault.Seal(ctx, order.ID, payload)
	if err != nil {
		s.log.Warn("vault seal failed for replacement, storing payload unsealed",
			zap.String("order_id", orderID.String()), zap.Error(err))
		sealed = payload
	}
	if err := s.orderRepo.UpdateDeliveryPayload(ctx, orderID, sealed); err != nil {
		return nil, err
	}

	rec.Status = models.ReplacementStatusApproved
	if err := s.replacementRepo.Create(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.replacementRepo.IncrementSellerReplacements(ctx, order.SellerID); err != nil {
		s.log.Warn("failed to bump replacements_count", zap.Error(err))
	}

	meta := map[string]any{"credential_id": cred.ID.String(), "attempt": count + 1}
	if prevErr == nil {
		meta["replaced_credential_id"] = prev.ID.String()
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   rbac.RoleBuyer,
		Action:      "key_replacement_approved",
		EntityType:  "order",
		EntityID:    &orderID,
		Meta:        meta,
	})
	_ = s.publisher.Publish(ctx, "events:fulfillment", events.Event{
		Type: events.EventReplacementIssued,
		Payload: map[string]any{
			"order_id": orderID.String(),
			"buyer_id": buyerID.String(),
			"attempt":  count + 1,
		},
	})
	s.notify.NotifyUser(ctx, buyerID, "A replacement key has been issued for your order")

	return &ReplacementOutcome{Replacement: rec}, nil
}

func (s *ReplacementService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.KeyReplacement, error) {
	return s.replacementRepo.ListByOrder(ctx, orderID)
}
