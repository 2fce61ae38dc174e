package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/models"
)

type SellerRepo struct {
	pool *pgxpool.Pool
}

func NewSellerRepo(pool *pgxpool.Pool) *SellerRepo {
	return &SellerRepo{pool: pool}
}

const sellerColumns = `id, display_name,
	balance_available, balance_frozen, balance_pending_withdrawal, balance_total_withdrawn, balance_total_earned,
	stats_total_orders, stats_successful_orders, stats_refunds_count, stats_disputes_count,
	stats_disputes_lost, stats_replacements_count, stats_total_revenue,
	rating, badges, escrow_days, max_replacements_per_order, is_blocked, is_verified,
	created_at, updated_at`

func scanSeller(row pgx.Row) (*models.Seller, error) {
	var s models.Seller
	err := row.Scan(&s.ID, &s.DisplayName,
		&s.Balance.AvailableCents, &s.Balance.FrozenCents, &s.Balance.PendingWithdrawalCents,
		&s.Balance.TotalWithdrawnCents, &s.Balance.TotalEarnedCents,
		&s.Stats.TotalOrders, &s.Stats.SuccessfulOrders, &s.Stats.RefundsCount, &s.Stats.DisputesCount,
		&s.Stats.DisputesLost, &s.Stats.ReplacementsCount, &s.Stats.TotalRevenueCents,
		&s.Rating, &s.Badges, &s.EscrowDays, &s.MaxReplacementsPerOrder, &s.IsBlocked, &s.IsVerified,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SellerRepo) Create(ctx context.Context, s *models.Seller) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO sellers (id, display_name, escrow_days, max_replacements_per_order)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, s.ID, s.DisplayName, s.EscrowDays, s.MaxReplacementsPerOrder).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SellerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	return scanSeller(r.pool.QueryRow(ctx,
		`SELECT `+sellerColumns+` FROM sellers WHERE id = $1`, id))
}

// OnOrderDelivered bumps the delivery counters; called once per successful
// delivery, separately from the later escrow release.
func (r *SellerRepo) OnOrderDelivered(ctx context.Context, sellerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sellers SET
			stats_total_orders = stats_total_orders + 1,
			stats_successful_orders = stats_successful_orders + 1,
			updated_at = now()
		WHERE id = $1
	`, sellerID)
	return err
}

// UpdateReputation persists the output of the reputation engine. Rating and
// derived badges only; is_verified and is_blocked are admin facts.
func (r *SellerRepo) UpdateReputation(ctx context.Context, sellerID uuid.UUID, rating int, badges []string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sellers SET rating = $2, badges = $3, updated_at = now()
		WHERE id = $1
	`, sellerID, rating, badges)
	return err
}

func (r *SellerRepo) SetVerified(ctx context.Context, sellerID uuid.UUID, verified bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sellers SET is_verified = $2, updated_at = now() WHERE id = $1`, sellerID, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SellerRepo) SetBlocked(ctx context.Context, sellerID uuid.UUID, blocked bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sellers SET is_blocked = $2, updated_at = now() WHERE id = $1`, sellerID, blocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateTrustPolicy edits the per-seller escrow window and replacement bound.
func (r *SellerRepo) UpdateTrustPolicy(ctx context.Context, sellerID uuid.UUID, escrowDays, maxReplacements *int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sellers SET
			escrow_days = COALESCE($2, escrow_days),
			max_replacements_per_order = COALESCE($3, max_replacements_per_order),
			updated_at = now()
		WHERE id = $1
	`, sellerID, escrowDays, maxReplacements)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
