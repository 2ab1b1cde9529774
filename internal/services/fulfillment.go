package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/makershopapp/makershop/internal/escrow"
	"github.com/makershopapp/makershop/internal/logging"
	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/observability"
	"github.com/makershopapp/makershop/internal/policy"
	"github.com/makershopapp/makershop/internal/stripe"
)

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentReference string) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error
	UpdateShipmentDetails(ctx context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
	MarkCanceled(ctx context.Context, orderID uuid.UUID, reason string) error
	MarkRefunded(ctx context.Context, orderID uuid.UUID) error
	CompleteReleased(ctx context.Context, deliveredBefore time.Time) (int64, error)
}

type paymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, params stripe.PaymentIntentParams) (*stripeapi.PaymentIntent, error)
	RefundPayment(ctx context.Context, params stripe.RefundParams) (*stripe.RefundResult, error)
}

// FulfillmentService drives the order lifecycle from checkout to completion.
// Status legality is enforced twice: guard methods give callers a readable
// failure before any money moves, and the store's compare-and-set writes
// close the race window.
type FulfillmentService struct {
	orders      orderStore
	payments    paymentProcessor
	calculator  escrow.Calculator
	policy      policy.Policy
	emailSender OrderEmailSender
	logger      *slog.Logger
	now         func() time.Time
}

func NewFulfillmentService(orders orderStore, payments paymentProcessor, pol policy.Policy, emailSender OrderEmailSender, logger *slog.Logger) *FulfillmentService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &FulfillmentService{
		orders:      orders,
		payments:    payments,
		calculator:  escrow.NewCalculator(pol.EscrowHold()),
		policy:      pol,
		emailSender: emailSender,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *FulfillmentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateOrderInput struct {
	CreatorID       uuid.UUID
	CustomerName    string
	CustomerEmail   string
	Items           []models.LineItem
	ShippingAddress *models.Address
}

// CreateOrderResult carries the persisted order plus the client secret the
// frontend needs to confirm payment.
type CreateOrderResult struct {
	Order               *models.Order
	PaymentClientSecret string
}

func (s *FulfillmentService) CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*CreateOrderResult, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if actor.Role != RoleCustomer && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only customers can place orders", models.ErrUnauthorized)
	}

	order, err := models.NewOrder(actor.ID, input.CreatorID, input.CustomerName, input.CustomerEmail, input.Items, input.ShippingAddress)
	if err != nil {
		meter.Count("order.create.rejected", 1)
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	meter.Count("order.created", 1)
	logger.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber, "total_cents", order.TotalCents)

	result := &CreateOrderResult{Order: order}
	if s.payments != nil {
		intent, err := s.payments.CreatePaymentIntent(ctx, stripe.PaymentIntentParams{
			OrderID:       order.ID,
			AmountCents:   int64(order.TotalCents),
			CustomerEmail: order.CustomerEmail,
		})
		if err != nil {
			meter.Count("order.payment_intent.failed", 1)
			return nil, fmt.Errorf("%w: %v", models.ErrProcessor, err)
		}
		result.PaymentClientSecret = intent.ClientSecret
	}

	return result, nil
}

func (s *FulfillmentService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canViewOrder(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	return order, nil
}

func (s *FulfillmentService) ListOrders(ctx context.Context, actor Actor, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	switch actor.Role {
	case RoleCreator:
		return s.orders.ListByCreator(ctx, actor.ID, limit)
	default:
		return s.orders.ListByCustomer(ctx, actor.ID, limit)
	}
}

// MarkPaid records payment confirmation against a pending order.
func (s *FulfillmentService) MarkPaid(ctx context.Context, actor Actor, orderID uuid.UUID, paymentReference string) (*models.Order, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actsAsCustomer(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	if paymentReference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", models.ErrValidation)
	}

	if err := s.orders.MarkPaid(ctx, orderID, paymentReference); err != nil {
		return nil, err
	}
	meter.Count("order.paid", 1)

	order, err = s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.emailSender.SendOrderConfirmation(ctx, order); err != nil {
		logger.Error("failed to send order confirmation email", "error", err, "order_id", orderID)
	}
	return order, nil
}

type ShipInput struct {
	TrackingNumber string
	Carrier        string
}

// Ship records shipment details and moves the order to shipped. The carrier
// name is normalized before the policy allowlist check so "fed ex" and
// "FedEx" behave the same.
func (s *FulfillmentService) Ship(ctx context.Context, actor Actor, orderID uuid.UUID, input ShipInput) (*models.Order, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actsAsCreator(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	if !order.Status.CanBeShipped() {
		return nil, fmt.Errorf("%w: order is %s, expected paid", models.ErrInvalidTransition, order.Status)
	}

	if strings.TrimSpace(input.TrackingNumber) == "" {
		return nil, fmt.Errorf("%w: tracking number is required", models.ErrValidation)
	}
	carrier := NormalizeCarrierName(input.Carrier)
	if carrier == "" {
		return nil, fmt.Errorf("%w: carrier is required", models.ErrValidation)
	}
	if !s.policy.CarrierAllowed(carrier) {
		return nil, fmt.Errorf("%w: carrier %q is not allowed", models.ErrValidation, carrier)
	}
	trackingURL := BuildTrackingURL(carrier, input.TrackingNumber)

	if err := s.orders.MarkShipped(ctx, orderID, input.TrackingNumber, trackingURL, carrier); err != nil {
		return nil, err
	}
	meter.Count("order.shipped", 1)

	order, err = s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.emailSender.SendOrderShipped(ctx, order); err != nil {
		logger.Error("failed to send shipment email", "error", err, "order_id", orderID)
	}
	return order, nil
}

// UpdateShipment corrects tracking details on an already shipped order.
func (s *FulfillmentService) UpdateShipment(ctx context.Context, actor Actor, orderID uuid.UUID, input ShipInput) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}

	if strings.TrimSpace(input.TrackingNumber) == "" {
		return fmt.Errorf("%w: tracking number is required", models.ErrValidation)
	}
	carrier := NormalizeCarrierName(input.Carrier)
	if carrier == "" {
		return fmt.Errorf("%w: carrier is required", models.ErrValidation)
	}
	if !s.policy.CarrierAllowed(carrier) {
		return fmt.Errorf("%w: carrier %q is not allowed", models.ErrValidation, carrier)
	}
	trackingURL := BuildTrackingURL(carrier, input.TrackingNumber)

	return s.orders.UpdateShipmentDetails(ctx, orderID, input.TrackingNumber, trackingURL, carrier)
}

// ConfirmDelivery marks a shipped order as delivered and starts the escrow
// countdown from the recorded delivery time.
func (s *FulfillmentService) ConfirmDelivery(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actsAsCustomer(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	if !order.Status.CanBeDelivered() {
		return nil, fmt.Errorf("%w: order is %s, expected shipped", models.ErrInvalidTransition, order.Status)
	}

	if err := s.orders.MarkDelivered(ctx, orderID); err != nil {
		return nil, err
	}
	meter.Count("order.delivered", 1)

	return s.orders.GetByID(ctx, orderID)
}

// Cancel voids an order before fulfillment starts. Paid orders are refunded
// at the processor before any local write, so the order can never show
// canceled while the customer's money is still captured.
func (s *FulfillmentService) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.cancel",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("Cancel"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !actsAsCustomer(actor, order) && !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	if !order.Status.CanBeCancelled() {
		return fmt.Errorf("%w: order is %s, expected pending/paid", models.ErrInvalidTransition, order.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: cancellation reason is required", models.ErrValidation)
	}

	if order.Status == models.StatusPaid && order.PaymentReference != "" {
		if s.payments == nil {
			return fmt.Errorf("%w: no payment processor configured", models.ErrProcessor)
		}
		result, err := s.payments.RefundPayment(ctx, stripe.RefundParams{
			OrderID:         order.ID,
			PaymentIntentID: order.PaymentReference,
			AmountCents:     int64(order.TotalCents),
			Reason:          "order_canceled",
		})
		if err != nil {
			meter.Count("order.cancel.refund_failed", 1)
			return fmt.Errorf("%w: %v", models.ErrProcessor, err)
		}
		logger.Info("cancellation refund issued", "order_id", orderID, "refund_id", result.RefundID)
	}

	if err := s.orders.MarkCanceled(ctx, orderID, reason); err != nil {
		return err
	}
	meter.Count("order.canceled", 1, sentry.WithAttributes(
		attribute.String("prior_status", string(order.Status)),
	))
	logger.Info("order canceled", "order_id", orderID, "reason", reason)
	return nil
}

// Refund returns the full payment for a paid, shipped, or delivered order.
// The processor call happens first; a processor failure leaves the order
// status untouched so the operation can be retried.
func (s *FulfillmentService) Refund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.refund",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("Refund"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	if !order.Status.CanBeRefunded() {
		return fmt.Errorf("%w: order is %s, expected paid/shipped/delivered", models.ErrInvalidTransition, order.Status)
	}
	if order.PaymentReference == "" {
		return fmt.Errorf("%w: order has no payment reference", models.ErrValidation)
	}
	if s.payments == nil {
		return fmt.Errorf("%w: no payment processor configured", models.ErrProcessor)
	}

	result, err := s.payments.RefundPayment(ctx, stripe.RefundParams{
		OrderID:         order.ID,
		PaymentIntentID: order.PaymentReference,
		AmountCents:     int64(order.TotalCents),
		Reason:          reason,
	})
	if err != nil {
		meter.Count("order.refund.failed", 1)
		return fmt.Errorf("%w: %v", models.ErrProcessor, err)
	}

	if err := s.orders.MarkRefunded(ctx, orderID); err != nil {
		// Money has moved but the status write lost a race. Surface the
		// transition error; the refund is recorded at the processor under
		// the order ID for reconciliation.
		logger.Error("refund issued but status update failed", "error", err, "order_id", orderID, "refund_id", result.RefundID)
		return err
	}
	meter.Count("order.refunded", 1)
	logger.Info("order refunded", "order_id", orderID, "refund_id", result.RefundID, "amount_cents", result.AmountCents)

	if err := s.emailSender.SendOrderRefunded(ctx, order, order.TotalCents); err != nil {
		logger.Error("failed to send refund email", "error", err, "order_id", orderID)
	}
	return nil
}

// EscrowSchedule computes the current escrow view for an order. The schedule
// is derived on every call and never stored.
func (s *FulfillmentService) EscrowSchedule(ctx context.Context, actor Actor, orderID uuid.UUID) (escrow.Schedule, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return escrow.Schedule{}, err
	}
	if !canViewOrder(actor, order) {
		return escrow.Schedule{}, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	return s.calculator.Evaluate(order.DeliveredTime(), s.now()), nil
}

// CompleteReleased sweeps delivered orders whose escrow hold has fully
// elapsed into the completed status. It is idempotent; re-running it is
// always safe.
func (s *FulfillmentService) CompleteReleased(ctx context.Context) (int64, error) {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.complete_released",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("CompleteReleased"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	cutoff := s.now().Add(-s.calculator.Hold())
	completed, err := s.orders.CompleteReleased(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to complete released orders: %w", err)
	}
	if completed > 0 {
		meter.Count("order.completed", completed)
		logger.Info("completed released orders", "count", completed)
	}
	return completed, nil
}
