package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/models"
)

type ReplacementRepo struct {
	pool *pgxpool.Pool
}

func NewReplacementRepo(pool *pgxpool.Pool) *ReplacementRepo {
	return &ReplacementRepo{pool: pool}
}

func (r *ReplacementRepo) Create(ctx context.Context, k *models.KeyReplacement) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO key_replacements (order_id, seller_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, k.OrderID, k.SellerID, k.Reason, k.Status).Scan(&k.ID, &k.CreatedAt)
}

func (r *ReplacementRepo) CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM key_replacements WHERE order_id = $1`, orderID).Scan(&n)
	return n, err
}

func (r *ReplacementRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.KeyReplacement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, seller_id, reason, status, created_at
		FROM key_replacements WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []models.KeyReplacement
	for rows.Next() {
		var k models.KeyReplacement
		if err := rows.Scan(&k.ID, &k.OrderID, &k.SellerID, &k.Reason, &k.Status, &k.CreatedAt); err != nil {
			return nil, err
		}
		reps = append(reps, k)
	}
	return reps, rows.Err()
}

func (r *ReplacementRepo) IncrementSellerReplacements(ctx context.Context, sellerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sellers SET stats_replacements_count = stats_replacements_count + 1, updated_at = now()
		WHERE id = $1
	`, sellerID)
	return err
}
