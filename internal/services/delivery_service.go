package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/events"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

// DeliveryService owns the credential pool and the auto-delivery flow. All
// reservation atomicity lives in CredentialRepo.Reserve; this layer adds the
// order/product validation and the delivery side effects around it.
type DeliveryService struct {
	orderRepo      *repositories.OrderRepo
	productRepo    *repositories.ProductRepo
	credentialRepo *repositories.CredentialRepo
	auditRepo      *repositories.AuditRepo
	vault          *VaultClient
	notify         *NotifyClient
	publisher      events.Publisher
	log            *zap.Logger
}

func NewDeliveryService(
	orderRepo *repositories.OrderRepo,
	productRepo *repositories.ProductRepo,
	credentialRepo *repositories.CredentialRepo,
	auditRepo *repositories.AuditRepo,
	vault *VaultClient,
	notify *NotifyClient,
	publisher events.Publisher,
	log *zap.Logger,
) *DeliveryService {
	return &DeliveryService{
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		credentialRepo: credentialRepo,
		auditRepo:      auditRepo,
		vault:          vault,
		notify:         notify,
		publisher:      publisher,
		log:            log,
	}
}

// ProcessAutoDelivery reserves a credential for a paid order, seals the
// delivery payload and marks the order delivered. On an exhausted pool the
// order stays paid, admins are alerted and the caller gets ErrOutOfStock.
func (s *DeliveryService) ProcessAutoDelivery(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.IsValidOrderTransition(order.Status, models.OrderStatusDelivered) {
		return nil, fmt.Errorf("%w: order is %s, not paid", models.ErrInvalidState, order.Status)
	}

	product, err := s.productRepo.GetByID(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	if product.DeliveryMode == models.DeliveryModeManual {
		return nil, fmt.Errorf("%w: product %s", models.ErrManualDelivery, product.ID)
	}

	cred, err := s.credentialRepo.Reserve(ctx, order.ProductID, order.ID, order.VariantTag)
	if errors.Is(err, models.ErrOutOfStock) {
		s.log.Warn("credential pool exhausted",
			zap.String("order_id", order.ID.String()),
			zap.String("product_id", order.ProductID.String()),
		)
		s.notify.AlertAdmins(ctx, "credential pool exhausted", map[string]any{
			"order_id":   order.ID.String(),
			"product_id": order.ProductID.String(),
		})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	payload := composePayload(cred.Value, product.Instructions)
	sealed, err := s.vault.Seal(ctx, order.ID, payload)
	if err != nil {
		// The reservation is already committed; deliver unsealed rather than
		// strand a consumed credential.
		s.log.Warn("vault seal failed, storing payload unsealed",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		sealed = payload
	}

	if err := s.orderRepo.MarkDelivered(ctx, order.ID, sealed); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "order_delivered",
		EntityType: "order",
		EntityID:   &order.ID,
		Meta:       map[string]any{"credential_id": cred.ID.String()},
	})
	_ = s.publisher.Publish(ctx, "events:fulfillment", events.Event{
		Type: events.EventOrderDelivered,
		Payload: map[string]any{
			"order_id": order.ID.String(),
			"buyer_id": order.BuyerID.String(),
		},
	})

	s.markOutOfStockIfDrained(ctx, order.ProductID, order.VariantTag)

	return s.orderRepo.GetByID(ctx, order.ID)
}

func (s *DeliveryService) AddCredentials(ctx context.Context, sellerID, productID uuid.UUID, values []string, variantTag *string) (int, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	if product.SellerID != sellerID {
		return 0, fmt.Errorf("%w: product belongs to another seller", models.ErrUnauthorized)
	}

	added, err := s.credentialRepo.Add(ctx, productID, values, variantTag)
	if err != nil {
		return added, err
	}
	if added > 0 {
		_ = s.productRepo.MarkActive(ctx, productID)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &sellerID,
		ActorType:   "seller",
		Action:      "credentials_added",
		EntityType:  "product",
		EntityID:    &productID,
		Meta:        map[string]any{"count": added},
	})
	return added, nil
}

func (s *DeliveryService) RemoveCredential(ctx context.Context, sellerID, productID, credentialID uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != sellerID {
		return fmt.Errorf("%w: product belongs to another seller", models.ErrUnauthorized)
	}
	if err := s.credentialRepo.RemoveUnused(ctx, productID, credentialID); err != nil {
		return err
	}
	s.markOutOfStockIfDrained(ctx, productID, nil)
	return nil
}

func (s *DeliveryService) PoolStats(ctx context.Context, sellerID, productID uuid.UUID) (*models.PoolStats, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, fmt.Errorf("%w: product belongs to another seller", models.ErrUnauthorized)
	}
	return s.credentialRepo.PoolStats(ctx, productID)
}

func (s *DeliveryService) markOutOfStockIfDrained(ctx context.Context, productID uuid.UUID, variantTag *string) {
	remaining, err := s.credentialRepo.CountAvailable(ctx, productID, variantTag)
	if err != nil {
		s.log.Warn("failed to count remaining credentials", zap.Error(err))
		return
	}
	if remaining > 0 {
		return
	}
	if err := s.productRepo.MarkOutOfStock(ctx, productID); err != nil {
		s.log.Warn("failed to mark product out of stock", zap.Error(err))
		return
	}
	_ = s.publisher.Publish(ctx, "events:fulfillment", events.Event{
		Type:    events.EventProductOutOfStock,
		Payload: map[string]any{"product_id": productID.String()},
	})
}

func composePayload(value string, instructions *string) string {
	if instructions == nil || *instructions == "" {
		return value
	}
	return value + "\n\n" + strings.TrimSpace(*instructions)
}
