package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller badges. verified is an admin-set fact merged in at read time; the rest
// are derived from stats by the reputation engine and never edited directly.
const (
	BadgeNew        = "new"
	BadgeTrusted    = "trusted"
	BadgeVerified   = "verified"
	BadgeTopSeller  = "top_seller"
	BadgeHighVolume = "high_volume"
	BadgeRisky      = "risky"
)

type SellerBalance struct {
	AvailableCents         int64 `json:"available_cents"`
	FrozenCents            int64 `json:"frozen_cents"`
	PendingWithdrawalCents int64 `json:"pending_withdrawal_cents"`
	TotalWithdrawnCents    int64 `json:"total_withdrawn_cents"`
	TotalEarnedCents       int64 `json:"total_earned_cents"`
}

type SellerStats struct {
	TotalOrders       int   `json:"total_orders"`
	SuccessfulOrders  int   `json:"successful_orders"`
	RefundsCount      int   `json:"refunds_count"`
	DisputesCount     int   `json:"disputes_count"`
	DisputesLost      int   `json:"disputes_lost"`
	ReplacementsCount int   `json:"replacements_count"`
	TotalRevenueCents int64 `json:"total_revenue_cents"`
}

type Seller struct {
	ID                      uuid.UUID     `json:"id"`
	DisplayName             string        `json:"display_name"`
	Balance                 SellerBalance `json:"balance"`
	Stats                   SellerStats   `json:"stats"`
	Rating                  int           `json:"rating"` // 0-100
	Badges                  []string      `json:"badges"`
	EscrowDays              int           `json:"escrow_days"`
	MaxReplacementsPerOrder int           `json:"max_replacements_per_order"`
	IsBlocked               bool          `json:"is_blocked"`
	IsVerified              bool          `json:"is_verified"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// PublicBadges merges derived badges with the admin-set verified flag.
func (s *Seller) PublicBadges() []string {
	badges := make([]string, 0, len(s.Badges)+1)
	badges = append(badges, s.Badges...)
	if s.IsVerified {
		badges = append(badges, BadgeVerified)
	}
	return badges
}
