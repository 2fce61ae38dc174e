package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/events"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

// EscrowService drives the escrow transaction lifecycle. Every transition is a
// guarded conditional update inside EscrowRepo; this layer sequences them and
// emits the surrounding audit entries, events and notifications.
type EscrowService struct {
	orderRepo  *repositories.OrderRepo
	escrowRepo *repositories.EscrowRepo
	sellerRepo *repositories.SellerRepo
	auditRepo  *repositories.AuditRepo
	refund     *RefundClient
	notify     *NotifyClient
	publisher  events.Publisher
	cfg        *config.Config
	log        *zap.Logger
}

func NewEscrowService(
	orderRepo *repositories.OrderRepo,
	escrowRepo *repositories.EscrowRepo,
	sellerRepo *repositories.SellerRepo,
	auditRepo *repositories.AuditRepo,
	refund *RefundClient,
	notify *NotifyClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		orderRepo:  orderRepo,
		escrowRepo: escrowRepo,
		sellerRepo: sellerRepo,
		auditRepo:  auditRepo,
		refund:     refund,
		notify:     notify,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

// OnOrderPaid opens the frozen escrow transaction for a paid order. Safe to
// call any number of times for the same order: the unique order_id guard in
// the repository turns duplicates (retried webhooks) into no-ops.
func (s *EscrowService) OnOrderPaid(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Only orders that can still be fulfilled may freeze funds. A payment for
	// a cancelled or refunded order must not open an escrow transaction.
	if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusPaid {
		return nil, fmt.Errorf("%w: order is %s, not payable", models.ErrInvalidState, order.Status)
	}

	seller, err := s.sellerRepo.GetByID(ctx, order.SellerID)
	if err != nil {
		return nil, err
	}
	escrowDays := seller.EscrowDays
	if escrowDays <= 0 {
		escrowDays = s.cfg.DefaultEscrowDays
	}

	changed, err := s.orderRepo.MarkPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tx, created, err := s.escrowRepo.CreateFrozen(ctx, order.ID, order.SellerID, order.AmountCents,
		time.Now().Add(time.Duration(escrowDays)*24*time.Hour))
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Info("duplicate payment event, escrow transaction already exists",
			zap.String("order_id", orderID.String()))
		return tx, nil
	}

	if changed {
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "order_paid",
			EntityType: "order",
			EntityID:   &order.ID,
			Meta:       map[string]any{"amount_cents": order.AmountCents},
		})
	}
	_ = s.publisher.Publish(ctx, "events:escrow", events.Event{
		Type: events.EventOrderPaid,
		Payload: map[string]any{
			"order_id":     order.ID.String(),
			"seller_id":    order.SellerID.String(),
			"amount_cents": order.AmountCents,
			"release_at":   tx.ReleaseAt,
		},
	})
	return tx, nil
}

// OnOrderDelivered bumps delivery counters after a successful auto-delivery.
// Escrow release is a later, independent event.
func (s *EscrowService) OnOrderDelivered(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusDelivered {
		return fmt.Errorf("%w: order is %s, not delivered", models.ErrInvalidState, order.Status)
	}
	return s.sellerRepo.OnOrderDelivered(ctx, order.SellerID)
}

// ReleaseEscrow performs frozen -> released and credits the seller. A racing
// duplicate call observes ErrInvalidState from the repo guard and is a no-op.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, actorType string) (*models.EscrowTransaction, error) {
	tx, err := s.escrowRepo.Release(ctx, orderID)
	if err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      "escrow_released",
		EntityType:  "escrow_transaction",
		EntityID:    &tx.ID,
		Meta:        map[string]any{"order_id": orderID.String(), "amount_cents": tx.AmountCents},
	})
	_ = s.publisher.Publish(ctx, "events:escrow", events.Event{
		Type: events.EventEscrowReleased,
		Payload: map[string]any{
			"order_id":     orderID.String(),
			"seller_id":    tx.SellerID.String(),
			"amount_cents": tx.AmountCents,
		},
	})
	s.notify.NotifyUser(ctx, tx.SellerID, "Escrow released: funds are now available for withdrawal")
	return tx, nil
}

// RefundEscrow performs frozen -> refunded. The actual money movement back to
// the buyer is handed to the payment-refund bridge and never blocks or rolls
// back the state transition.
func (s *EscrowService) RefundEscrow(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, actorType string) (*models.EscrowTransaction, error) {
	tx, err := s.escrowRepo.Refund(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.refund.RequestRefund(ctx, orderID, tx.AmountCents)

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      "escrow_refunded",
		EntityType:  "escrow_transaction",
		EntityID:    &tx.ID,
		Meta:        map[string]any{"order_id": orderID.String(), "amount_cents": tx.AmountCents},
	})
	_ = s.publisher.Publish(ctx, "events:escrow", events.Event{
		Type: events.EventEscrowRefunded,
		Payload: map[string]any{
			"order_id":     orderID.String(),
			"seller_id":    tx.SellerID.String(),
			"amount_cents": tx.AmountCents,
		},
	})
	return tx, nil
}

// SplitEscrow resolves a frozen transaction part to the seller, part back to
// the buyer. sellerBPS is the seller share in basis points.
func (s *EscrowService) SplitEscrow(ctx context.Context, orderID uuid.UUID, sellerBPS int, actorID *uuid.UUID) (*models.EscrowTransaction, error) {
	existing, err := s.escrowRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sellerCents, buyerCents := models.SplitSellerShare(existing.AmountCents, sellerBPS)

	tx, err := s.escrowRepo.Split(ctx, orderID, sellerCents, buyerCents)
	if err != nil {
		return nil, err
	}

	if buyerCents > 0 {
		s.refund.RequestRefund(ctx, orderID, buyerCents)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   "admin",
		Action:      "escrow_split",
		EntityType:  "escrow_transaction",
		EntityID:    &tx.ID,
		Meta: map[string]any{
			"order_id":       orderID.String(),
			"released_cents": sellerCents,
			"refunded_cents": buyerCents,
		},
	})
	return tx, nil
}

func (s *EscrowService) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	return s.escrowRepo.GetByOrderID(ctx, orderID)
}
