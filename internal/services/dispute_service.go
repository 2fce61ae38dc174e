package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/events"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/rbac"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

// DisputeService runs the buyer/seller/admin conflict state machine. Terminal
// transitions are guarded conditional updates in the repo, so a duplicate
// resolve can never move funds twice.
type DisputeService struct {
	orderRepo   *repositories.OrderRepo
	disputeRepo *repositories.DisputeRepo
	auditRepo   *repositories.AuditRepo
	escrow      *EscrowService
	notify      *NotifyClient
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewDisputeService(
	orderRepo *repositories.OrderRepo,
	disputeRepo *repositories.DisputeRepo,
	auditRepo *repositories.AuditRepo,
	escrow *EscrowService,
	notify *NotifyClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		orderRepo:   orderRepo,
		disputeRepo: disputeRepo,
		auditRepo:   auditRepo,
		escrow:      escrow,
		notify:      notify,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

func (s *DisputeService) OpenDispute(ctx context.Context, orderID, buyerID uuid.UUID, buyerName, reason, description string) (*models.Dispute, error) {
	if !models.IsValidDisputeReason(reason) {
		return nil, fmt.Errorf("invalid dispute reason %q", reason)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, fmt.Errorf("%w: order belongs to another buyer", models.ErrUnauthorized)
	}
	if order.Status != models.OrderStatusPaid && order.Status != models.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: order is %s", models.ErrInvalidState, order.Status)
	}

	dispute := &models.Dispute{
		OrderID:  order.ID,
		BuyerID:  buyerID,
		SellerID: order.SellerID,
		Reason:   reason,
		Status:   models.DisputeStatusOpen,
	}
	if err := s.disputeRepo.Create(ctx, dispute); err != nil {
		return nil, err
	}

	if description != "" {
		msg := &models.DisputeMessage{
			DisputeID:  dispute.ID,
			SenderID:   buyerID,
			SenderRole: rbac.RoleBuyer,
			SenderName: buyerName,
			Content:    description,
		}
		if err := s.disputeRepo.AddMessage(ctx, msg); err != nil {
			s.log.Warn("failed to record opening dispute message", zap.Error(err))
		}
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   rbac.RoleBuyer,
		Action:      "dispute_opened",
		EntityType:  "dispute",
		EntityID:    &dispute.ID,
		Meta:        map[string]any{"order_id": orderID.String(), "reason": reason},
	})
	_ = s.publisher.Publish(ctx, "events:disputes", events.Event{
		Type: events.EventDisputeOpened,
		Payload: map[string]any{
			"dispute_id": dispute.ID.String(),
			"order_id":   orderID.String(),
			"buyer_id":   buyerID.String(),
			"seller_id":  order.SellerID.String(),
			"reason":     reason,
		},
	})
	s.notify.NotifyUser(ctx, order.SellerID, "A buyer opened a dispute on one of your orders")

	return dispute, nil
}

// AddMessage appends to the dispute's message sequence. The first seller reply
// on an open dispute advances it to seller_response.
func (s *DisputeService) AddMessage(ctx context.Context, disputeID, senderID uuid.UUID, senderRole, senderName, content string, attachments []string) (*models.DisputeMessage, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalDisputeStatus(dispute.Status) {
		return nil, fmt.Errorf("%w: dispute is %s", models.ErrInvalidState, dispute.Status)
	}

	switch senderRole {
	case rbac.RoleBuyer:
		if dispute.BuyerID != senderID {
			return nil, fmt.Errorf("%w: not the dispute's buyer", models.ErrUnauthorized)
		}
	case rbac.RoleSeller:
		if dispute.SellerID != senderID {
			return nil, fmt.Errorf("%w: not the dispute's seller", models.ErrUnauthorized)
		}
	case rbac.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown sender role %q", models.ErrUnauthorized, senderRole)
	}

	msg := &models.DisputeMessage{
		DisputeID:   disputeID,
		SenderID:    senderID,
		SenderRole:  senderRole,
		SenderName:  senderName,
		Content:     content,
		Attachments: attachments,
	}
	if err := s.disputeRepo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	if senderRole == rbac.RoleSeller && dispute.Status == models.DisputeStatusOpen {
		// First-response signal. A concurrent transition losing this race is
		// fine, the message itself is already appended.
		if err := s.disputeRepo.UpdateStatus(ctx, disputeID, models.DisputeStatusOpen, models.DisputeStatusSellerResponse); err != nil &&
			!errors.Is(err, models.ErrInvalidState) {
			return nil, err
		}
	}

	_ = s.publisher.Publish(ctx, "events:disputes", events.Event{
		Type: events.EventDisputeMessage,
		Payload: map[string]any{
			"dispute_id":  disputeID.String(),
			"buyer_id":    dispute.BuyerID.String(),
			"seller_id":   dispute.SellerID.String(),
			"sender_role": senderRole,
			"content":     content,
		},
	})
	return msg, nil
}

// ResolveDispute applies an admin's verdict. Funds move before the dispute's
// terminal transition: while the dispute row is still non-terminal the
// scheduler's release pass skips the order, so the escrow CAS cannot race an
// automatic release, and a verdict is only recorded once its fund movement
// has committed. When the fund movement fails, the dispute stays where it was
// and the resolve can be retried.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID uuid.UUID, resolution, note string, resolvedBy uuid.UUID) (*models.Dispute, error) {
	if !models.IsValidResolution(resolution) {
		return nil, fmt.Errorf("invalid resolution %q", resolution)
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalDisputeStatus(dispute.Status) {
		return nil, fmt.Errorf("%w: dispute already %s", models.ErrInvalidState, dispute.Status)
	}

	if err := s.applyResolutionFunds(ctx, dispute, resolution, resolvedBy); err != nil {
		s.log.Error("fund movement for resolution failed, verdict not recorded",
			zap.String("dispute_id", disputeID.String()),
			zap.String("resolution", resolution), zap.Error(err))
		return nil, err
	}

	dispute, err = s.disputeRepo.Resolve(ctx, disputeID, resolution, resolvedBy)
	if err != nil {
		return nil, err
	}

	if resolution == models.ResolutionBuyerWin {
		if err := s.disputeRepo.MarkLost(ctx, dispute.SellerID); err != nil {
			s.log.Warn("failed to bump disputes_lost", zap.Error(err))
		}
	}

	if note != "" {
		msg := &models.DisputeMessage{
			DisputeID:  disputeID,
			SenderID:   resolvedBy,
			SenderRole: rbac.RoleAdmin,
			SenderName: "arbitration",
			Content:    note,
		}
		if err := s.disputeRepo.AddMessage(ctx, msg); err != nil {
			s.log.Warn("failed to record resolution note", zap.Error(err))
		}
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &resolvedBy,
		ActorType:   rbac.RoleAdmin,
		Action:      "dispute_resolved",
		EntityType:  "dispute",
		EntityID:    &disputeID,
		Meta:        map[string]any{"resolution": resolution},
	})
	_ = s.publisher.Publish(ctx, "events:disputes", events.Event{
		Type: events.EventDisputeResolved,
		Payload: map[string]any{
			"dispute_id": disputeID.String(),
			"buyer_id":   dispute.BuyerID.String(),
			"seller_id":  dispute.SellerID.String(),
			"resolution": resolution,
		},
	})
	s.notify.NotifyUser(ctx, dispute.BuyerID, "Your dispute has been resolved: "+resolution)
	s.notify.NotifyUser(ctx, dispute.SellerID, "A dispute on your order has been resolved: "+resolution)

	return s.disputeRepo.GetByID(ctx, disputeID)
}

// applyResolutionFunds maps a verdict onto the escrow CAS. An escrow that
// already settled in the verdict's direction (an earlier force release or
// refund) counts as applied; any other state fails the resolution.
func (s *DisputeService) applyResolutionFunds(ctx context.Context, dispute *models.Dispute, resolution string, resolvedBy uuid.UUID) error {
	switch resolution {
	case models.ResolutionBuyerWin:
		_, err := s.escrow.RefundEscrow(ctx, dispute.OrderID, &resolvedBy, rbac.RoleAdmin)
		if errors.Is(err, models.ErrInvalidState) && s.escrowSettledAs(ctx, dispute.OrderID, models.EscrowStatusRefunded) {
			return nil
		}
		return err
	case models.ResolutionSellerWin:
		_, err := s.escrow.ReleaseEscrow(ctx, dispute.OrderID, &resolvedBy, rbac.RoleAdmin)
		if errors.Is(err, models.ErrInvalidState) && s.escrowSettledAs(ctx, dispute.OrderID, models.EscrowStatusReleased) {
			return nil
		}
		return err
	case models.ResolutionSplit:
		_, err := s.escrow.SplitEscrow(ctx, dispute.OrderID, s.cfg.DisputeSplitSellerBPS, &resolvedBy)
		return err
	}
	return fmt.Errorf("invalid resolution %q", resolution)
}

// escrowSettledAs reports whether the order's escrow already ended fully in
// the given terminal state. A split (both parts non-zero) matches neither.
func (s *DisputeService) escrowSettledAs(ctx context.Context, orderID uuid.UUID, status string) bool {
	e, err := s.escrow.GetByOrderID(ctx, orderID)
	if err != nil {
		return false
	}
	switch status {
	case models.EscrowStatusReleased:
		return e.Status == models.EscrowStatusReleased && e.RefundedCents == 0
	case models.EscrowStatusRefunded:
		return e.Status == models.EscrowStatusRefunded && e.ReleasedCents == 0
	}
	return false
}

// CloseDispute is the buyer withdrawing their own dispute.
func (s *DisputeService) CloseDispute(ctx context.Context, disputeID, buyerID uuid.UUID) error {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute.BuyerID != buyerID {
		return fmt.Errorf("%w: not the dispute's buyer", models.ErrUnauthorized)
	}
	if err := s.disputeRepo.Close(ctx, disputeID); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   rbac.RoleBuyer,
		Action:      "dispute_closed",
		EntityType:  "dispute",
		EntityID:    &disputeID,
	})
	return nil
}

// EscalateDispute force-moves a non-terminal dispute to admin_review.
func (s *DisputeService) EscalateDispute(ctx context.Context, disputeID uuid.UUID, actorID *uuid.UUID, actorType string) error {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return err
	}
	if !models.IsValidDisputeTransition(dispute.Status, models.DisputeStatusAdminReview) {
		return fmt.Errorf("%w: cannot escalate a %s dispute", models.ErrInvalidState, dispute.Status)
	}
	if err := s.disputeRepo.Escalate(ctx, disputeID); err != nil {
		return err
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      "dispute_escalated",
		EntityType:  "dispute",
		EntityID:    &disputeID,
	})
	return nil
}

// EscalateReplacement opens a dispute directly in admin_review when an order
// has exhausted its replacement bound.
func (s *DisputeService) EscalateReplacement(ctx context.Context, order *models.Order) (*models.Dispute, error) {
	dispute := &models.Dispute{
		OrderID:  order.ID,
		BuyerID:  order.BuyerID,
		SellerID: order.SellerID,
		Reason:   models.DisputeReasonUnresolvedReplacement,
		Status:   models.DisputeStatusAdminReview,
	}
	if err := s.disputeRepo.Create(ctx, dispute); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return s.disputeRepo.GetOpenByOrderID(ctx, order.ID)
		}
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "replacement_escalated",
		EntityType: "dispute",
		EntityID:   &dispute.ID,
		Meta:       map[string]any{"order_id": order.ID.String()},
	})
	_ = s.publisher.Publish(ctx, "events:disputes", events.Event{
		Type: events.EventReplacementEscalated,
		Payload: map[string]any{
			"dispute_id": dispute.ID.String(),
			"order_id":   order.ID.String(),
			"buyer_id":   order.BuyerID.String(),
			"seller_id":  order.SellerID.String(),
		},
	})
	return dispute, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return s.disputeRepo.GetByID(ctx, id)
}

func (s *DisputeService) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	return s.disputeRepo.ListMessages(ctx, disputeID)
}

func (s *DisputeService) ListDisputes(ctx context.Context, f repositories.DisputeFilter) ([]models.Dispute, error) {
	return s.disputeRepo.List(ctx, f)
}
