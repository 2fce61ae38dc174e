package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/models"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) Create(ctx context.Context, p *models.Product) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO products (seller_id, title, description, price_cents, delivery_mode, instructions, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, p.SellerID, p.Title, p.Description, p.PriceCents, p.DeliveryMode, p.Instructions, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, seller_id, title, description, price_cents, delivery_mode, instructions, status, created_at, updated_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.PriceCents,
		&p.DeliveryMode, &p.Instructions, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, seller_id, title, description, price_cents, delivery_mode, instructions, status, created_at, updated_at
		FROM products WHERE seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.PriceCents,
			&p.DeliveryMode, &p.Instructions, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// MarkOutOfStock flips an active product to out_of_stock. Guarded so a racing
// restock that already reactivated the product is not clobbered.
func (r *ProductRepo) MarkOutOfStock(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE products SET status = 'out_of_stock', updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, id)
	return err
}

func (r *ProductRepo) MarkActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE products SET status = 'active', updated_at = now()
		WHERE id = $1 AND status = 'out_of_stock'
	`, id)
	return err
}
