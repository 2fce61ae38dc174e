package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/models"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `id, order_id, seller_id, amount_cents, status,
	released_cents, refunded_cents, created_at, release_at, resolved_at`

func scanEscrow(row pgx.Row) (*models.EscrowTransaction, error) {
	var e models.EscrowTransaction
	err := row.Scan(&e.ID, &e.OrderID, &e.SellerID, &e.AmountCents, &e.Status,
		&e.ReleasedCents, &e.RefundedCents, &e.CreatedAt, &e.ReleaseAt, &e.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EscrowRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	return scanEscrow(r.pool.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE order_id = $1`, orderID))
}

// CreateFrozen inserts the single escrow transaction for an order and freezes
// the amount on the seller's balance in the same database transaction. The
// unique order_id constraint makes the call idempotent: a duplicate insert is
// detected and reported with created=false, leaving the existing transaction
// and the seller's balance untouched.
func (r *EscrowRepo) CreateFrozen(ctx context.Context, orderID, sellerID uuid.UUID, amountCents int64, releaseAt time.Time) (e *models.EscrowTransaction, created bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO escrow_transactions (order_id, seller_id, amount_cents, status, release_at)
		VALUES ($1, $2, $3, 'frozen', $4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id
	`, orderID, sellerID, amountCents, releaseAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.GetByOrderID(ctx, orderID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sellers SET balance_frozen = balance_frozen + $2, updated_at = now()
		WHERE id = $1
	`, sellerID, amountCents); err != nil {
		return nil, false, err
	}

	e, err = scanEscrow(tx.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE id = $1`, id))
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Release performs the frozen -> released transition and moves the amount from
// the seller's frozen balance to available, all inside one transaction. The
// guarded UPDATE is the idempotency point: a concurrent double-invocation
// (scheduler pass overlapping a manual release) has exactly one winner, the
// loser observes ErrInvalidState.
func (r *EscrowRepo) Release(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := scanEscrow(tx.QueryRow(ctx, `
		UPDATE escrow_transactions
		SET status = 'released', released_cents = amount_cents, resolved_at = now()
		WHERE order_id = $1 AND status = 'frozen'
		RETURNING `+escrowColumns, orderID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: escrow transaction missing or not frozen", models.ErrInvalidState)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sellers SET
			balance_frozen = balance_frozen - $2,
			balance_available = balance_available + $2,
			balance_total_earned = balance_total_earned + $2,
			stats_total_revenue = stats_total_revenue + $2,
			updated_at = now()
		WHERE id = $1
	`, e.SellerID, e.AmountCents); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Refund performs frozen -> refunded. The amount leaves the seller's frozen
// balance and goes back to the buyer through the external payment-refund
// collaborator; nothing is credited to the seller. The order moves to refunded
// in the same transaction.
func (r *EscrowRepo) Refund(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := scanEscrow(tx.QueryRow(ctx, `
		UPDATE escrow_transactions
		SET status = 'refunded', refunded_cents = amount_cents, resolved_at = now()
		WHERE order_id = $1 AND status = 'frozen'
		RETURNING `+escrowColumns, orderID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: escrow transaction missing or not frozen", models.ErrInvalidState)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sellers SET
			balance_frozen = balance_frozen - $2,
			stats_refunds_count = stats_refunds_count + 1,
			updated_at = now()
		WHERE id = $1
	`, e.SellerID, e.AmountCents); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'refunded', updated_at = now()
		WHERE id = $1 AND status IN ('paid', 'delivered')
	`, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Split resolves a frozen transaction by crediting sellerCents to the seller
// and returning buyerCents to the buyer. The guard requires the two parts to
// sum to the escrow amount, so funds are conserved. Recorded as released with
// the per-side amounts on the row.
func (r *EscrowRepo) Split(ctx context.Context, orderID uuid.UUID, sellerCents, buyerCents int64) (*models.EscrowTransaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := scanEscrow(tx.QueryRow(ctx, `
		UPDATE escrow_transactions
		SET status = 'released', released_cents = $2, refunded_cents = $3, resolved_at = now()
		WHERE order_id = $1 AND status = 'frozen' AND amount_cents = $2 + $3
		RETURNING `+escrowColumns, orderID, sellerCents, buyerCents))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: escrow transaction missing, not frozen, or amounts do not sum", models.ErrInvalidState)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sellers SET
			balance_frozen = balance_frozen - $2,
			balance_available = balance_available + $3,
			balance_total_earned = balance_total_earned + $3,
			stats_total_revenue = stats_total_revenue + $3,
			stats_refunds_count = stats_refunds_count + CASE WHEN $4::bigint > 0 THEN 1 ELSE 0 END,
			updated_at = now()
		WHERE id = $1
	`, e.SellerID, e.AmountCents, sellerCents, buyerCents); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// DueForRelease returns frozen transactions past their release time with no
// non-terminal dispute on the order.
func (r *EscrowRepo) DueForRelease(ctx context.Context, now time.Time, limit int) ([]models.EscrowTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrow_transactions e
		WHERE e.status = 'frozen' AND e.release_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM disputes d
			WHERE d.order_id = e.order_id AND d.status NOT IN ('resolved', 'closed')
		  )
		ORDER BY e.release_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.EscrowTransaction
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *e)
	}
	return txs, rows.Err()
}

// FrozenSum reconciles a seller's frozen balance against the sum of their
// frozen escrow transactions.
func (r *EscrowRepo) FrozenSum(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM escrow_transactions
		WHERE seller_id = $1 AND status = 'frozen'
	`, sellerID).Scan(&sum)
	return sum, err
}
