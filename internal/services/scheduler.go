package services

import (
	"context"
	"errors"
	"time"

	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

// Scheduler runs the periodic maintenance passes: auto-releasing matured
// escrow and escalating disputes nobody has acted on. Each item is handled
// independently so one bad row never stalls the batch.
type Scheduler struct {
	escrow      *EscrowService
	disputes    *DisputeService
	disputeRepo *repositories.DisputeRepo
	escrowRepo  *repositories.EscrowRepo
	cfg         *config.Config
	log         *zap.Logger
}

func NewScheduler(
	escrow *EscrowService,
	disputes *DisputeService,
	disputeRepo *repositories.DisputeRepo,
	escrowRepo *repositories.EscrowRepo,
	cfg *config.Config,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		escrow:      escrow,
		disputes:    disputes,
		disputeRepo: disputeRepo,
		escrowRepo:  escrowRepo,
		cfg:         cfg,
		log:         log,
	}
}

type SchedulerSummary struct {
	Released  int `json:"released"`
	Escalated int `json:"escalated"`
	Failed    int `json:"failed"`
}

// RunReleasePass releases every frozen transaction whose release_at has
// passed and has no open dispute. A transaction that was released, refunded
// or disputed between the SELECT and the UPDATE loses the guard and is
// counted as a skip, not a failure.
func (s *Scheduler) RunReleasePass(ctx context.Context) SchedulerSummary {
	var sum SchedulerSummary

	due, err := s.escrowRepo.DueForRelease(ctx, time.Now(), s.cfg.SchedulerBatchLimit)
	if err != nil {
		s.log.Error("release pass: fetching due transactions failed", zap.Error(err))
		sum.Failed++
		return sum
	}

	for _, tx := range due {
		if ctx.Err() != nil {
			break
		}
		_, err := s.escrow.ReleaseEscrow(ctx, tx.OrderID, nil, "system")
		switch {
		case err == nil:
			sum.Released++
		case errors.Is(err, models.ErrInvalidState):
			// Lost the race to a concurrent resolve or refund.
		default:
			s.log.Error("release pass: release failed",
				zap.String("order_id", tx.OrderID.String()), zap.Error(err))
			sum.Failed++
		}
	}

	if sum.Released > 0 || sum.Failed > 0 {
		s.log.Info("release pass finished",
			zap.Int("released", sum.Released), zap.Int("failed", sum.Failed))
	}
	return sum
}

// RunEscalatePass moves disputes that sat in open with no seller response
// past the stale window into admin_review.
func (s *Scheduler) RunEscalatePass(ctx context.Context) SchedulerSummary {
	var sum SchedulerSummary

	cutoff := time.Now().Add(-s.cfg.DisputeStaleAfter)
	stale, err := s.disputeRepo.StaleOpen(ctx, cutoff, s.cfg.SchedulerBatchLimit)
	if err != nil {
		s.log.Error("escalate pass: fetching stale disputes failed", zap.Error(err))
		sum.Failed++
		return sum
	}

	for _, d := range stale {
		if ctx.Err() != nil {
			break
		}
		err := s.disputes.EscalateDispute(ctx, d.ID, nil, "system")
		switch {
		case err == nil:
			sum.Escalated++
		case errors.Is(err, models.ErrInvalidState):
		default:
			s.log.Error("escalate pass: escalation failed",
				zap.String("dispute_id", d.ID.String()), zap.Error(err))
			sum.Failed++
		}
	}

	if sum.Escalated > 0 || sum.Failed > 0 {
		s.log.Info("escalate pass finished",
			zap.Int("escalated", sum.Escalated), zap.Int("failed", sum.Failed))
	}
	return sum
}

// RunScheduledTasks runs both passes back to back, for the admin trigger.
func (s *Scheduler) RunScheduledTasks(ctx context.Context) SchedulerSummary {
	rel := s.RunReleasePass(ctx)
	esc := s.RunEscalatePass(ctx)
	return SchedulerSummary{
		Released:  rel.Released,
		Escalated: esc.Escalated,
		Failed:    rel.Failed + esc.Failed,
	}
}
