package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makershopapp/makershop/internal/models"
)

// DisputeStore persists disputes. A dispute can only open against a delivered
// order; since opening flips the order to dispute_opened, the compare-and-set
// on the order row also guarantees at most one open dispute per order.
type DisputeStore struct {
	pool *pgxpool.Pool
}

func NewDisputeStore(pool *pgxpool.Pool) *DisputeStore {
	return &DisputeStore{pool: pool}
}

const disputeColumns = `
	id, order_id, opened_by, type, details, status, outcome, resolution,
	opened_at, resolved_at
`

func (s *DisputeStore) Open(ctx context.Context, dispute *models.Dispute) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = 'delivered'
	`, models.StatusDisputeOpened, dispute.OrderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, dispute.OrderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: order %s", models.ErrNotFound, dispute.OrderID)
		}
		return fmt.Errorf("%w: expected delivered", models.ErrInvalidTransition)
	}

	var openedAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		INSERT INTO disputes (order_id, opened_by, type, details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, opened_at
	`, dispute.OrderID, dispute.OpenedBy, string(dispute.Type), dispute.Details, models.DisputeOpen).Scan(&dispute.ID, &openedAt)
	if err != nil {
		return err
	}
	dispute.Status = models.DisputeOpen
	dispute.OpenedAt = openedAt.Time

	return tx.Commit(ctx)
}

func (s *DisputeStore) GetByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, disputeID)
	dispute, err := scanDispute(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: dispute %s", models.ErrNotFound, disputeID)
		}
		return nil, err
	}
	return dispute, nil
}

func (s *DisputeStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Dispute, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1 ORDER BY opened_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []*models.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, dispute)
	}
	return disputes, rows.Err()
}

// Resolve closes the dispute and lands the order according to the outcome:
// release puts it back to delivered, refund terminates it as refunded. For
// refunds the caller must have already moved the money.
func (s *DisputeStore) Resolve(ctx context.Context, disputeID uuid.UUID, outcome models.DisputeOutcome, resolution string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE disputes
		SET status = $1, outcome = $2, resolution = $3, resolved_at = NOW()
		WHERE id = $4 AND status = 'open'
		RETURNING order_id
	`, models.DisputeResolved, string(outcome), resolution, disputeID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: expected open", models.ErrInvalidTransition)
		}
		return err
	}

	var cmdTag pgconn.CommandTag
	switch outcome {
	case models.OutcomeRelease:
		cmdTag, err = tx.Exec(ctx, `
			UPDATE orders SET status = $1
			WHERE id = $2 AND status = 'dispute_opened'
		`, models.StatusDelivered, orderID)
	case models.OutcomeRefund:
		cmdTag, err = tx.Exec(ctx, `
			UPDATE orders SET status = $1, refunded_at = NOW()
			WHERE id = $2 AND status = 'dispute_opened'
		`, models.StatusRefunded, orderID)
	default:
		return fmt.Errorf("%w: %q is not a dispute outcome", models.ErrValidation, outcome)
	}
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected dispute_opened", models.ErrInvalidTransition)
	}

	return tx.Commit(ctx)
}

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var dispute models.Dispute
	var kind, status string
	var details, outcome, resolution pgtype.Text
	var openedAt, resolvedAt pgtype.Timestamptz

	err := row.Scan(
		&dispute.ID, &dispute.OrderID, &dispute.OpenedBy, &kind, &details,
		&status, &outcome, &resolution, &openedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	dispute.Type = models.DisputeType(kind)
	dispute.Status = models.DisputeStatus(status)
	dispute.OpenedAt = openedAt.Time

	if details.Valid {
		dispute.Details = details.String
	}
	if outcome.Valid {
		dispute.Outcome = models.DisputeOutcome(outcome.String)
	}
	if resolution.Valid {
		dispute.Resolution = resolution.String
	}
	if resolvedAt.Valid {
		dispute.ResolvedAt = resolvedAt.Time
	}

	return &dispute, nil
}
