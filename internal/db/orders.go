package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makershopapp/makershop/internal/models"
)

// OrderStore persists orders and enforces status transitions at write time.
// Every transition is a single compare-and-set UPDATE whose WHERE clause names
// the statuses the transition is legal from; zero rows affected means the
// order moved underneath the caller and the write is rejected.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_number, customer_id, customer_name, customer_email, creator_id,
	shipping_address, total_cents, payment_reference, tracking_number,
	tracking_url, carrier, cancel_reason, status, created_at, paid_at,
	shipped_at, delivered_at, canceled_at, completed_at, refunded_at
`

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	var shippingAddressJSON []byte
	if order.ShippingAddress != nil {
		var err error
		shippingAddressJSON, err = json.Marshal(order.ShippingAddress)
		if err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, customer_name, customer_email, creator_id,
		                    shipping_address, total_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, order_number, created_at
	`, order.CustomerID, order.CustomerName, order.CustomerEmail, order.CreatorID,
		shippingAddressJSON, order.TotalCents, string(order.Status))

	var orderNumber int32
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&order.ID, &orderNumber, &createdAt); err != nil {
		return err
	}
	order.OrderNumber = int(orderNumber)
	order.CreatedAt = createdAt.Time

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, name,
			                         unit_price_cents, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, order.ID, item.ProductID, item.VariantID, item.Name,
			item.UnitPriceCents, item.Quantity, i)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
		}
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]*models.Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE creator_id = $1 ORDER BY created_at DESC LIMIT $2`, creatorID, limit)
}

func (s *OrderStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`, customerID, limit)
}

func (s *OrderStore) list(ctx context.Context, query string, ownerID uuid.UUID, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentReference string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_reference = $2, paid_at = NOW()
		WHERE id = $3 AND status = 'pending'
	`, models.StatusPaid, paymentReference, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending", models.ErrInvalidTransition)
	}
	return nil
}

func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, tracking_number = $2, tracking_url = $3, carrier = $4, shipped_at = NOW()
		WHERE id = $5 AND status = 'paid'
	`, models.StatusShipped, trackingNumber, trackingURL, carrier, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected paid", models.ErrInvalidTransition)
	}
	return nil
}

func (s *OrderStore) UpdateShipmentDetails(ctx context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET tracking_number = $1, tracking_url = $2, carrier = $3
		WHERE id = $4 AND status = 'shipped'
	`, trackingNumber, trackingURL, carrier, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected shipped", models.ErrInvalidTransition)
	}
	return nil
}

func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, delivered_at = NOW()
		WHERE id = $2 AND status = 'shipped'
	`, models.StatusDelivered, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected shipped", models.ErrInvalidTransition)
	}
	return nil
}

func (s *OrderStore) MarkCanceled(ctx context.Context, orderID uuid.UUID, reason string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, cancel_reason = $2, canceled_at = NOW()
		WHERE id = $3 AND status IN ('pending', 'paid')
	`, models.StatusCanceled, reason, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending/paid", models.ErrInvalidTransition)
	}
	return nil
}

func (s *OrderStore) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, refunded_at = NOW()
		WHERE id = $2 AND status IN ('paid', 'shipped', 'delivered')
	`, models.StatusRefunded, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected paid/shipped/delivered", models.ErrInvalidTransition)
	}
	return nil
}

// CompleteReleased moves delivered orders whose escrow hold has elapsed to
// completed. Orders with a live return or an open dispute have already left
// the delivered status, but the guards stay in the WHERE clause so the sweep
// can never race a transition the other way.
func (s *OrderStore) CompleteReleased(ctx context.Context, deliveredBefore time.Time) (int64, error) {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, completed_at = NOW()
		WHERE status = 'delivered'
		  AND delivered_at <= $2
		  AND NOT EXISTS (
			SELECT 1 FROM return_requests r
			WHERE r.order_id = orders.id AND r.status NOT IN ('rejected', 'refunded')
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM disputes d
			WHERE d.order_id = orders.id AND d.status = 'open'
		  )
	`, models.StatusCompleted, deliveredBefore)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (s *OrderStore) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, variant_id, name, unit_price_cents, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LineItem
		var variantID pgtype.Text
		if err := rows.Scan(&item.ID, &item.ProductID, &variantID, &item.Name, &item.UnitPriceCents, &item.Quantity); err != nil {
			return err
		}
		if variantID.Valid {
			item.VariantID = variantID.String
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var orderNumber int32
	var customerName, paymentReference, trackingNumber, trackingURL, carrier, cancelReason pgtype.Text
	var shippingAddressJSON []byte
	var status string
	var createdAt pgtype.Timestamptz
	var paidAt, shippedAt, deliveredAt, canceledAt, completedAt, refundedAt pgtype.Timestamptz

	err := row.Scan(
		&order.ID, &orderNumber, &order.CustomerID, &customerName, &order.CustomerEmail,
		&order.CreatorID, &shippingAddressJSON, &order.TotalCents, &paymentReference,
		&trackingNumber, &trackingURL, &carrier, &cancelReason, &status, &createdAt,
		&paidAt, &shippedAt, &deliveredAt, &canceledAt, &completedAt, &refundedAt,
	)
	if err != nil {
		return nil, err
	}

	order.OrderNumber = int(orderNumber)
	order.Status = models.OrderStatus(status)
	order.CreatedAt = createdAt.Time

	if customerName.Valid {
		order.CustomerName = customerName.String
	}
	if paymentReference.Valid {
		order.PaymentReference = paymentReference.String
	}
	if trackingNumber.Valid {
		order.TrackingNumber = trackingNumber.String
	}
	if trackingURL.Valid {
		order.TrackingURL = trackingURL.String
	}
	if carrier.Valid {
		order.Carrier = carrier.String
	}
	if cancelReason.Valid {
		order.CancelReason = cancelReason.String
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	if shippedAt.Valid {
		order.ShippedAt = shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	if canceledAt.Valid {
		order.CanceledAt = canceledAt.Time
	}
	if completedAt.Valid {
		order.CompletedAt = completedAt.Time
	}
	if refundedAt.Valid {
		order.RefundedAt = refundedAt.Time
	}

	if shippingAddressJSON != nil {
		if err := json.Unmarshal(shippingAddressJSON, &order.ShippingAddress); err != nil {
			return nil, err
		}
	}

	return &order, nil
}
