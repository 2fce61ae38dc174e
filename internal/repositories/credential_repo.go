package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/models"
)

type CredentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Reserve claims the oldest unused credential matching the variant and marks it
// used by the order in one statement. SKIP LOCKED keeps concurrent callers off
// each other's rows, so two racing reservations can never win the same
// credential while reservations against different credentials proceed in
// parallel. Returns models.ErrOutOfStock when nothing matches; no state is
// touched in that case.
func (r *CredentialRepo) Reserve(ctx context.Context, productID, orderID uuid.UUID, variantTag *string) (*models.Credential, error) {
	var c models.Credential
	err := r.pool.QueryRow(ctx, `
		UPDATE credentials SET is_used = true, used_by_order_id = $2, used_at = now()
		WHERE id = (
			SELECT id FROM credentials
			WHERE product_id = $1 AND is_used = false
			  AND ($3::text IS NULL OR variant_tag = $3)
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, product_id, value, variant_tag, is_used, used_by_order_id, used_at, created_at
	`, productID, orderID, variantTag).Scan(&c.ID, &c.ProductID, &c.Value, &c.VariantTag,
		&c.IsUsed, &c.UsedByOrderID, &c.UsedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOutOfStock
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CredentialRepo) Add(ctx context.Context, productID uuid.UUID, values []string, variantTag *string) (int, error) {
	batch := &pgx.Batch{}
	for _, v := range values {
		batch.Queue(`
			INSERT INTO credentials (product_id, value, variant_tag)
			VALUES ($1, $2, $3)
		`, productID, v, variantTag)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	added := 0
	for range values {
		if _, err := br.Exec(); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// RemoveUnused deletes a credential only while it is still unclaimed.
func (r *CredentialRepo) RemoveUnused(ctx context.Context, productID, credentialID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM credentials WHERE id = $1 AND product_id = $2 AND is_used = false
	`, credentialID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: credential missing or already used", models.ErrNotFound)
	}
	return nil
}

func (r *CredentialRepo) CountAvailable(ctx context.Context, productID uuid.UUID, variantTag *string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM credentials
		WHERE product_id = $1 AND is_used = false
		  AND ($2::text IS NULL OR variant_tag = $2)
	`, productID, variantTag).Scan(&n)
	return n, err
}

func (r *CredentialRepo) PoolStats(ctx context.Context, productID uuid.UUID) (*models.PoolStats, error) {
	stats := &models.PoolStats{ByVariant: map[string]int{}}
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_used)
		FROM credentials WHERE product_id = $1
	`, productID).Scan(&stats.Total, &stats.Used)
	if err != nil {
		return nil, err
	}
	stats.Available = stats.Total - stats.Used

	rows, err := r.pool.Query(ctx, `
		SELECT variant_tag, count(*) FROM credentials
		WHERE product_id = $1 AND is_used = false AND variant_tag IS NOT NULL
		GROUP BY variant_tag
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		stats.ByVariant[tag] = n
	}
	return stats, rows.Err()
}

func (r *CredentialRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Credential, error) {
	var c models.Credential
	err := r.pool.QueryRow(ctx, `
		SELECT id, product_id, value, variant_tag, is_used, used_by_order_id, used_at, created_at
		FROM credentials WHERE used_by_order_id = $1
		ORDER BY used_at DESC LIMIT 1
	`, orderID).Scan(&c.ID, &c.ProductID, &c.Value, &c.VariantTag,
		&c.IsUsed, &c.UsedByOrderID, &c.UsedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
