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

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, product_id, variant_tag, seller_id, buyer_id, amount_cents, status,
	paid_at, delivered_at, delivery_payload, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.ProductID, &o.VariantTag, &o.SellerID, &o.BuyerID, &o.AmountCents,
		&o.Status, &o.PaidAt, &o.DeliveredAt, &o.DeliveryPayload, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO orders (product_id, variant_tag, seller_id, buyer_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, o.ProductID, o.VariantTag, o.SellerID, o.BuyerID, o.AmountCents, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		buyerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// MarkPaid transitions pending -> paid. Duplicate webhook deliveries find the
// order already paid and report that without touching it.
func (r *OrderRepo) MarkPaid(ctx context.Context, id uuid.UUID) (changed bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'paid', paid_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDelivered stores the encrypted payload together with the paid -> delivered
// transition so a second delivery attempt cannot overwrite the first.
func (r *OrderRepo) MarkDelivered(ctx context.Context, id uuid.UUID, payload string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'delivered', delivered_at = now(), delivery_payload = $2, updated_at = now()
		WHERE id = $1 AND status = 'paid'
	`, id, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order is not paid", models.ErrInvalidState)
	}
	return nil
}

// UpdateDeliveryPayload swaps the payload on an already-delivered order, used
// when a replacement credential is issued.
func (r *OrderRepo) UpdateDeliveryPayload(ctx context.Context, id uuid.UUID, payload string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET delivery_payload = $2, updated_at = now()
		WHERE id = $1 AND status = 'delivered'
	`, id, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order is not delivered", models.ErrInvalidState)
	}
	return nil
}
