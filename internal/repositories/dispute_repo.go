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

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = `id, order_id, buyer_id, seller_id, reason, status, resolution,
	created_at, updated_at, resolved_at, resolved_by`

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.OrderID, &d.BuyerID, &d.SellerID, &d.Reason, &d.Status,
		&d.Resolution, &d.CreatedAt, &d.UpdatedAt, &d.ResolvedAt, &d.ResolvedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create opens a dispute and bumps the seller's dispute counter. The partial
// unique index on (order_id) for non-terminal disputes rejects a second open
// dispute for the same order with ErrConflict.
func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO disputes (order_id, buyer_id, seller_id, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, d.OrderID, d.BuyerID, d.SellerID, d.Reason, d.Status).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order already has an open dispute", models.ErrConflict)
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sellers SET stats_disputes_count = stats_disputes_count + 1, updated_at = now()
		WHERE id = $1
	`, d.SellerID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return scanDispute(r.pool.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
}

func (r *DisputeRepo) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	return scanDispute(r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE order_id = $1 AND status NOT IN ('resolved', 'closed')
	`, orderID))
}

// UpdateStatus moves a dispute along the transition graph with a guarded
// conditional update; the expected current status is part of the predicate.
func (r *DisputeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: dispute is no longer %s", models.ErrInvalidState, from)
	}
	return nil
}

// Escalate force-moves any non-terminal dispute to admin_review.
func (r *DisputeRepo) Escalate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = 'admin_review', updated_at = now()
		WHERE id = $1 AND status IN ('open', 'seller_response')
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: dispute is terminal or already under review", models.ErrInvalidState)
	}
	return nil
}

// Resolve is the guarded terminal transition. The predicate excludes terminal
// statuses, so a duplicate resolve request affects zero rows and moves no
// funds.
func (r *DisputeRepo) Resolve(ctx context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `
		UPDATE disputes
		SET status = 'resolved', resolution = $2, resolved_at = now(), resolved_by = $3, updated_at = now()
		WHERE id = $1 AND status NOT IN ('resolved', 'closed')
		RETURNING `+disputeColumns, id, resolution, resolvedBy))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: dispute already resolved or closed", models.ErrInvalidState)
		}
		return nil, err
	}
	return d, nil
}

// Close is the buyer-withdrawal terminal transition.
func (r *DisputeRepo) Close(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = 'closed', updated_at = now()
		WHERE id = $1 AND status NOT IN ('resolved', 'closed')
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: dispute already resolved or closed", models.ErrInvalidState)
	}
	return nil
}

func (r *DisputeRepo) MarkLost(ctx context.Context, sellerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sellers SET stats_disputes_lost = stats_disputes_lost + 1, updated_at = now()
		WHERE id = $1
	`, sellerID)
	return err
}

// AddMessage appends to the ordered message sequence and bumps the dispute's
// updated_at. Ordering is arrival order via created_at.
func (r *DisputeRepo) AddMessage(ctx context.Context, m *models.DisputeMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO dispute_messages (dispute_id, sender_id, sender_role, sender_name, content, attachments)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, m.DisputeID, m.SenderID, m.SenderRole, m.SenderName, m.Content, m.Attachments,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE disputes SET updated_at = now() WHERE id = $1`, m.DisputeID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *DisputeRepo) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dispute_id, sender_id, sender_role, sender_name, content, attachments, created_at
		FROM dispute_messages WHERE dispute_id = $1
		ORDER BY created_at
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.DisputeMessage
	for rows.Next() {
		var m models.DisputeMessage
		if err := rows.Scan(&m.ID, &m.DisputeID, &m.SenderID, &m.SenderRole, &m.SenderName,
			&m.Content, &m.Attachments, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *DisputeRepo) List(ctx context.Context, f DisputeFilter) ([]models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.BuyerID != nil {
		where = append(where, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, *f.BuyerID)
		argIdx++
	}
	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

// StaleOpen returns disputes stuck in open with no seller response past the
// staleness cutoff.
func (r *DisputeRepo) StaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]models.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE status = 'open' AND created_at <= $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

type DisputeFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *string
	Limit    int
	Offset   int
}
