package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/cache"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/reputation"
	"github.com/keystone-market/backend/internal/repositories"
	"go.uber.org/zap"
)

// ReputationService wraps the pure reputation engine with persistence and a
// cached public profile.
type ReputationService struct {
	sellerRepo *repositories.SellerRepo
	escrowRepo *repositories.EscrowRepo
	cache      cache.Cache
	policy     reputation.Policy
	ttl        time.Duration
	log        *zap.Logger
}

func NewReputationService(
	sellerRepo *repositories.SellerRepo,
	escrowRepo *repositories.EscrowRepo,
	c cache.Cache,
	cfg *config.Config,
	log *zap.Logger,
) *ReputationService {
	return &ReputationService{
		sellerRepo: sellerRepo,
		escrowRepo: escrowRepo,
		cache:      c,
		policy:     PolicyFromConfig(cfg),
		ttl:        cfg.SellerCacheTTL,
		log:        log,
	}
}

func PolicyFromConfig(cfg *config.Config) reputation.Policy {
	p := reputation.DefaultPolicy()
	p.RefundWeight = cfg.RepRefundWeight
	p.DisputeLossWeight = cfg.RepDisputeLossWeight
	p.ReplacementWeight = cfg.RepReplacementWeight
	p.NewMaxOrders = cfg.RepNewMaxOrders
	p.TrustedMinRating = cfg.RepTrustedMinRating
	p.TrustedMinOrders = cfg.RepTrustedMinOrders
	p.HighVolumeMinOrders = cfg.RepHighVolumeMinOrders
	p.TopSellerMinRevenue = cfg.RepTopSellerMinRevenue
	p.RiskyMaxRate = cfg.RepRiskyMaxRate
	return p
}

// RecalculateSeller recomputes rating and derived badges from the seller's
// stats and persists the result. The cached public profile is invalidated.
func (s *ReputationService) RecalculateSeller(ctx context.Context, sellerID uuid.UUID) (*reputation.Result, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	res := reputation.Evaluate(seller.Stats, s.policy)
	if err := s.sellerRepo.UpdateReputation(ctx, sellerID, res.Rating, res.Badges); err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, profileKey(sellerID)); err != nil {
		s.log.Warn("failed to invalidate seller profile cache", zap.Error(err))
	}
	return &res, nil
}

// SellerProfile is the public read model: derived badges merged with the
// admin-set verified flag.
type SellerProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Rating      int       `json:"rating"`
	Badges      []string  `json:"badges"`
	TotalOrders int       `json:"total_orders"`
	IsBlocked   bool      `json:"is_blocked"`
}

func (s *ReputationService) GetSellerProfile(ctx context.Context, sellerID uuid.UUID) (*SellerProfile, error) {
	if b, err := s.cache.Get(ctx, profileKey(sellerID)); err == nil {
		var p SellerProfile
		if err := json.Unmarshal(b, &p); err == nil {
			return &p, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("seller profile cache read failed", zap.Error(err))
	}

	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	profile := &SellerProfile{
		ID:          seller.ID,
		DisplayName: seller.DisplayName,
		Rating:      seller.Rating,
		Badges:      seller.PublicBadges(),
		TotalOrders: seller.Stats.TotalOrders,
		IsBlocked:   seller.IsBlocked,
	}

	if b, err := json.Marshal(profile); err == nil {
		if err := s.cache.Set(ctx, profileKey(sellerID), b, s.ttl); err != nil {
			s.log.Warn("seller profile cache write failed", zap.Error(err))
		}
	}
	return profile, nil
}

// ReconcileFrozenBalance checks invariant: a seller's frozen balance must
// equal the sum of their frozen escrow transactions.
func (s *ReputationService) ReconcileFrozenBalance(ctx context.Context, sellerID uuid.UUID) (drift int64, err error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	sum, err := s.escrowRepo.FrozenSum(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	drift = seller.Balance.FrozenCents - sum
	if drift != 0 {
		s.log.Error("frozen balance drift detected",
			zap.String("seller_id", sellerID.String()),
			zap.Int64("balance_frozen", seller.Balance.FrozenCents),
			zap.Int64("escrow_sum", sum))
	}
	return drift, nil
}

func (s *ReputationService) GetSeller(ctx context.Context, sellerID uuid.UUID) (*models.Seller, error) {
	return s.sellerRepo.GetByID(ctx, sellerID)
}

func profileKey(sellerID uuid.UUID) string {
	return "seller:profile:" + sellerID.String()
}
