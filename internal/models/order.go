package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending           OrderStatus = "pending"
	StatusPaid              OrderStatus = "paid"
	StatusShipped           OrderStatus = "shipped"
	StatusDelivered         OrderStatus = "delivered"
	StatusValidationPending OrderStatus = "validation_pending"
	StatusCompleted         OrderStatus = "completed"
	StatusDisputeOpened     OrderStatus = "dispute_opened"
	StatusReturnShipped     OrderStatus = "return_shipped"
	StatusReturnReceived    OrderStatus = "return_received"
	StatusRefunded          OrderStatus = "refunded"
	StatusCanceled          OrderStatus = "canceled"
)

// OrderStatuses lists every valid status in rough lifecycle order.
// Transition legality lives in the guard methods, not in this ordering.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusShipped,
	StatusDelivered,
	StatusValidationPending,
	StatusCompleted,
	StatusDisputeOpened,
	StatusReturnShipped,
	StatusReturnReceived,
	StatusRefunded,
	StatusCanceled,
}

// ParseOrderStatus validates a raw status value at the boundary. Unknown
// values are rejected, never coerced.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(value)
	for _, known := range OrderStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not an order status", ErrInvalidStatus, value)
}

// IsTerminal reports whether no further transition is defined for the status.
// A completed order can still accept a return while the return window is
// open, which re-enters the lifecycle through validation_pending.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) CanBeCancelled() bool {
	return s == StatusPending || s == StatusPaid
}

func (s OrderStatus) CanBeShipped() bool {
	return s == StatusPaid
}

func (s OrderStatus) CanBeRefunded() bool {
	switch s {
	case StatusPaid, StatusShipped, StatusDelivered:
		return true
	default:
		return false
	}
}

func (s OrderStatus) CanBeDelivered() bool {
	return s == StatusShipped
}

func (s OrderStatus) CanOpenDispute() bool {
	return s == StatusDelivered
}

// CanAcceptReturn reports whether a return request may be opened against the
// order. The return window check is separate and time-based.
func (s OrderStatus) CanAcceptReturn() bool {
	return s == StatusDelivered || s == StatusCompleted
}

// LineItem is a price snapshot taken at checkout. Items are append-only at
// creation and never recomputed from live catalog data.
type LineItem struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      string    `json:"variant_id,omitempty"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
}

func (li LineItem) SubtotalCents() int {
	return li.UnitPriceCents * li.Quantity
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID               uuid.UUID   `json:"id"`
	OrderNumber      int         `json:"order_number"`
	CustomerID       uuid.UUID   `json:"customer_id"`
	CustomerName     string      `json:"customer_name"`
	CustomerEmail    string      `json:"customer_email"`
	CreatorID        uuid.UUID   `json:"creator_id"`
	Items            []LineItem  `json:"items"`
	ShippingAddress  *Address    `json:"shipping_address,omitempty"`
	TotalCents       int         `json:"total_cents"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	TrackingNumber   string      `json:"tracking_number,omitempty"`
	TrackingURL      string      `json:"tracking_url,omitempty"`
	Carrier          string      `json:"carrier,omitempty"`
	CancelReason     string      `json:"cancel_reason,omitempty"`
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	PaidAt           time.Time   `json:"paid_at,omitzero"`
	ShippedAt        time.Time   `json:"shipped_at,omitzero"`
	DeliveredAt      time.Time   `json:"delivered_at,omitzero"`
	CanceledAt       time.Time   `json:"canceled_at,omitzero"`
	CompletedAt      time.Time   `json:"completed_at,omitzero"`
	RefundedAt       time.Time   `json:"refunded_at,omitzero"`
}

// DeliveredTime returns the delivery timestamp or nil when the order has not
// been delivered. The escrow calculator consumes this form.
func (o *Order) DeliveredTime() *time.Time {
	if o == nil || o.DeliveredAt.IsZero() {
		return nil
	}
	t := o.DeliveredAt
	return &t
}

// NewOrder builds a pending order from checkout input. The total is the sum
// of line-item subtotals at creation time; it is never recomputed afterwards.
func NewOrder(customerID, creatorID uuid.UUID, customerName, customerEmail string, items []LineItem, shippingAddress *Address) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if creatorID == uuid.Nil {
		return nil, fmt.Errorf("%w: creator id is required", ErrValidation)
	}
	if strings.TrimSpace(customerEmail) == "" {
		return nil, fmt.Errorf("%w: customer email is required", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrValidation)
	}

	total := 0
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: line item %d has no product reference", ErrValidation, i)
		}
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("%w: line item %d has no name snapshot", ErrValidation, i)
		}
		if item.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: line item %d has a negative unit price", ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line item %d quantity must be positive", ErrValidation, i)
		}
		total += item.SubtotalCents()
	}

	return &Order{
		CustomerID:      customerID,
		CustomerName:    strings.TrimSpace(customerName),
		CustomerEmail:   strings.TrimSpace(customerEmail),
		CreatorID:       creatorID,
		Items:           items,
		ShippingAddress: shippingAddress,
		TotalCents:      total,
		Status:          StatusPending,
	}, nil
}
