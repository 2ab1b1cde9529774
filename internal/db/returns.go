package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makershopapp/makershop/internal/models"
)

// ReturnStore persists return requests. Every transition that also moves the
// parent order runs in one transaction, with the order update written as a
// compare-and-set so the pair either lands together or not at all.
type ReturnStore struct {
	pool *pgxpool.Pool
}

func NewReturnStore(pool *pgxpool.Pool) *ReturnStore {
	return &ReturnStore{pool: pool}
}

const returnColumns = `
	id, order_id, reason, details, status, reject_reason, tracking_number,
	requested_at, approved_at, rejected_at, shipped_back_at, received_at, refunded_at
`

// Create opens a return against a delivered or completed order. The order row
// is locked first so the active-return uniqueness check and the order status
// flip cannot race a concurrent request.
func (s *ReturnStore) Create(ctx context.Context, ret *models.ReturnRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, ret.OrderID).Scan(&orderStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: order %s", models.ErrNotFound, ret.OrderID)
		}
		return err
	}
	if !models.OrderStatus(orderStatus).CanAcceptReturn() {
		return fmt.Errorf("%w: order is %s, expected delivered/completed", models.ErrInvalidTransition, orderStatus)
	}

	var activeExists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM return_requests
			WHERE order_id = $1 AND status NOT IN ('rejected', 'refunded')
		)
	`, ret.OrderID).Scan(&activeExists)
	if err != nil {
		return err
	}
	if activeExists {
		return models.ErrActiveReturnExists
	}

	var requestedAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		INSERT INTO return_requests (order_id, reason, details, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, requested_at
	`, ret.OrderID, string(ret.Reason), ret.Details, models.ReturnRequested).Scan(&ret.ID, &requestedAt)
	if err != nil {
		return err
	}
	ret.Status = models.ReturnRequested
	ret.RequestedAt = requestedAt.Time

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status IN ('delivered', 'completed')
	`, models.StatusValidationPending, ret.OrderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected delivered/completed", models.ErrInvalidTransition)
	}

	return tx.Commit(ctx)
}

func (s *ReturnStore) GetByID(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE id = $1`, returnID)
	ret, err := scanReturn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: return %s", models.ErrNotFound, returnID)
		}
		return nil, err
	}
	return ret, nil
}

func (s *ReturnStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.ReturnRequest, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE order_id = $1 ORDER BY requested_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []*models.ReturnRequest
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

// Approve moves the return to approved. The order stays in validation_pending
// until the customer ships the item back.
func (s *ReturnStore) Approve(ctx context.Context, returnID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE return_requests
		SET status = $1, approved_at = NOW()
		WHERE id = $2 AND status = 'requested'
	`, models.ReturnApproved, returnID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected requested", models.ErrInvalidTransition)
	}
	return nil
}

// Reject closes the return and puts the order back to delivered, so the
// escrow countdown resumes from the original delivery time.
func (s *ReturnStore) Reject(ctx context.Context, returnID uuid.UUID, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE return_requests
		SET status = $1, reject_reason = $2, rejected_at = NOW()
		WHERE id = $3 AND status = 'requested'
		RETURNING order_id
	`, models.ReturnRejected, reason, returnID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: expected requested", models.ErrInvalidTransition)
		}
		return err
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = 'validation_pending'
	`, models.StatusDelivered, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected validation_pending", models.ErrInvalidTransition)
	}

	return tx.Commit(ctx)
}

func (s *ReturnStore) MarkShippedBack(ctx context.Context, returnID uuid.UUID, trackingNumber string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE return_requests
		SET status = $1, tracking_number = $2, shipped_back_at = NOW()
		WHERE id = $3 AND status = 'approved'
		RETURNING order_id
	`, models.ReturnShippedBack, trackingNumber, returnID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: expected approved", models.ErrInvalidTransition)
		}
		return err
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = 'validation_pending'
	`, models.StatusReturnShipped, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected validation_pending", models.ErrInvalidTransition)
	}

	return tx.Commit(ctx)
}

func (s *ReturnStore) MarkReceived(ctx context.Context, returnID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE return_requests
		SET status = $1, received_at = NOW()
		WHERE id = $2 AND status = 'shipped_back'
		RETURNING order_id
	`, models.ReturnReceived, returnID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: expected shipped_back", models.ErrInvalidTransition)
		}
		return err
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = 'return_shipped'
	`, models.StatusReturnReceived, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected return_shipped", models.ErrInvalidTransition)
	}

	return tx.Commit(ctx)
}

// MarkRefunded records the refund on both aggregates. Callers must have
// already moved the money; this write is the ledger, not the payment.
func (s *ReturnStore) MarkRefunded(ctx context.Context, returnID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE return_requests
		SET status = $1, refunded_at = NOW()
		WHERE id = $2 AND status = 'received'
		RETURNING order_id
	`, models.ReturnRefunded, returnID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: expected received", models.ErrInvalidTransition)
		}
		return err
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, refunded_at = NOW()
		WHERE id = $2 AND status = 'return_received'
	`, models.StatusRefunded, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected return_received", models.ErrInvalidTransition)
	}

	return tx.Commit(ctx)
}

func scanReturn(row pgx.Row) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	var reason, status string
	var details, rejectReason, trackingNumber pgtype.Text
	var requestedAt pgtype.Timestamptz
	var approvedAt, rejectedAt, shippedBackAt, receivedAt, refundedAt pgtype.Timestamptz

	err := row.Scan(
		&ret.ID, &ret.OrderID, &reason, &details, &status, &rejectReason,
		&trackingNumber, &requestedAt, &approvedAt, &rejectedAt, &shippedBackAt,
		&receivedAt, &refundedAt,
	)
	if err != nil {
		return nil, err
	}

	ret.Reason = models.ReturnReason(reason)
	ret.Status = models.ReturnStatus(status)
	ret.RequestedAt = requestedAt.Time

	if details.Valid {
		ret.Details = details.String
	}
	if rejectReason.Valid {
		ret.RejectReason = rejectReason.String
	}
	if trackingNumber.Valid {
		ret.TrackingNumber = trackingNumber.String
	}
	if approvedAt.Valid {
		ret.ApprovedAt = approvedAt.Time
	}
	if rejectedAt.Valid {
		ret.RejectedAt = rejectedAt.Time
	}
	if shippedBackAt.Valid {
		ret.ShippedBackAt = shippedBackAt.Time
	}
	if receivedAt.Valid {
		ret.ReceivedAt = receivedAt.Time
	}
	if refundedAt.Valid {
		ret.RefundedAt = refundedAt.Time
	}

	return &ret, nil
}
