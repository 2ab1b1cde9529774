package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/logging"
	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/observability"
	"github.com/makershopapp/makershop/internal/policy"
	"github.com/makershopapp/makershop/internal/stripe"
)

type returnStore interface {
	Create(ctx context.Context, ret *models.ReturnRequest) error
	GetByID(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.ReturnRequest, error)
	Approve(ctx context.Context, returnID uuid.UUID) error
	Reject(ctx context.Context, returnID uuid.UUID, reason string) error
	MarkShippedBack(ctx context.Context, returnID uuid.UUID, trackingNumber string) error
	MarkReceived(ctx context.Context, returnID uuid.UUID) error
	MarkRefunded(ctx context.Context, returnID uuid.UUID) error
}

// ReturnService runs the return flow. Each transition that also moves the
// parent order is committed atomically by the store; this layer adds the
// authorization, the return window check, and the refund call.
type ReturnService struct {
	returns     returnStore
	orders      orderStore
	payments    paymentProcessor
	policy      policy.Policy
	emailSender OrderEmailSender
	logger      *slog.Logger
	now         func() time.Time
}

func NewReturnService(returns returnStore, orders orderStore, payments paymentProcessor, pol policy.Policy, emailSender OrderEmailSender, logger *slog.Logger) *ReturnService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &ReturnService{
		returns:     returns,
		orders:      orders,
		payments:    payments,
		policy:      pol,
		emailSender: emailSender,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ReturnService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateReturnInput struct {
	OrderID uuid.UUID
	Reason  models.ReturnReason
	Details string
}

// Create opens a return request. The return window is measured from the
// order's delivery time and checked only here; once a return exists it runs
// to completion regardless of the window.
func (s *ReturnService) Create(ctx context.Context, actor Actor, input CreateReturnInput) (*models.ReturnRequest, error) {
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !actsAsCustomer(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, input.OrderID)
	}
	if !order.Status.CanAcceptReturn() {
		return nil, fmt.Errorf("%w: order is %s, expected delivered/completed", models.ErrInvalidTransition, order.Status)
	}
	if order.DeliveredAt.IsZero() {
		return nil, fmt.Errorf("%w: order has no delivery time", models.ErrInvalidTransition)
	}
	if s.now().After(order.DeliveredAt.Add(s.policy.ReturnWindow())) {
		meter.Count("return.window_closed", 1)
		return nil, fmt.Errorf("%w: return window closed", models.ErrValidation)
	}

	ret := &models.ReturnRequest{
		OrderID: input.OrderID,
		Reason:  input.Reason,
		Details: input.Details,
	}
	if err := s.returns.Create(ctx, ret); err != nil {
		return nil, err
	}
	meter.Count("return.created", 1)
	return ret, nil
}

func (s *ReturnService) Get(ctx context.Context, actor Actor, returnID uuid.UUID) (*models.ReturnRequest, error) {
	ret, order, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !canViewOrder(actor, order) {
		return nil, fmt.Errorf("%w: return %s", models.ErrUnauthorized, returnID)
	}
	return ret, nil
}

func (s *ReturnService) ListByOrder(ctx context.Context, actor Actor, orderID uuid.UUID) ([]*models.ReturnRequest, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canViewOrder(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	return s.returns.ListByOrder(ctx, orderID)
}

// Approve accepts a requested return. The order stays in validation_pending
// until the customer ships the item back.
func (s *ReturnService) Approve(ctx context.Context, actor Actor, returnID uuid.UUID) error {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	ret, order, err := s.load(ctx, returnID)
	if err != nil {
		return err
	}
	if !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: return %s", models.ErrUnauthorized, returnID)
	}
	if !ret.Status.CanBeApproved() {
		return fmt.Errorf("%w: return is %s, expected requested", models.ErrInvalidTransition, ret.Status)
	}

	if err := s.returns.Approve(ctx, returnID); err != nil {
		return err
	}
	meter.Count("return.approved", 1)

	if err := s.emailSender.SendReturnApproved(ctx, order, ret); err != nil {
		logger.Error("failed to send return approved email", "error", err, "return_id", returnID)
	}
	return nil
}

// Reject declines a requested return and puts the order back to delivered.
// The escrow countdown resumes from the original delivery time.
func (s *ReturnService) Reject(ctx context.Context, actor Actor, returnID uuid.UUID, reason string) error {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	ret, order, err := s.load(ctx, returnID)
	if err != nil {
		return err
	}
	if !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: return %s", models.ErrUnauthorized, returnID)
	}
	if !ret.Status.CanBeRejected() {
		return fmt.Errorf("%w: return is %s, expected requested", models.ErrInvalidTransition, ret.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: rejection reason is required", models.ErrValidation)
	}

	if err := s.returns.Reject(ctx, returnID, reason); err != nil {
		return err
	}
	meter.Count("return.rejected", 1)

	ret.RejectReason = reason
	if err := s.emailSender.SendReturnRejected(ctx, order, ret); err != nil {
		logger.Error("failed to send return rejected email", "error", err, "return_id", returnID)
	}
	return nil
}

// ShipBack records the customer's return shipment.
func (s *ReturnService) ShipBack(ctx context.Context, actor Actor, returnID uuid.UUID, trackingNumber string) error {
	meter := observability.MeterFromContext(ctx)

	ret, order, err := s.load(ctx, returnID)
	if err != nil {
		return err
	}
	if !actsAsCustomer(actor, order) {
		return fmt.Errorf("%w: return %s", models.ErrUnauthorized, returnID)
	}
	if !ret.Status.CanBeShippedBack() {
		return fmt.Errorf("%w: return is %s, expected approved", models.ErrInvalidTransition, ret.Status)
	}

	if err := s.returns.MarkShippedBack(ctx, returnID, trackingNumber); err != nil {
		return err
	}
	meter.Count("return.shipped_back", 1)
	return nil
}

// Receive records that the seller got the item back.
func (s *ReturnService) Receive(ctx context.Context, actor Actor, returnID uuid.UUID) error {
	meter := observability.MeterFromContext(ctx)

	ret, order, err := s.load(ctx, returnID)
	if err != nil {
		return err
	}
	if !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: return %s", models.ErrUnauthorized, returnID)
	}
	if !ret.Status.CanBeReceived() {
		return fmt.Errorf("%w: return is %s, expected shipped_back", models.ErrInvalidTransition, ret.Status)
	}

	if err := s.returns.MarkReceived(ctx, returnID); err != nil {
		return err
	}
	meter.Count("return.received", 1)
	return nil
}

// Refund closes out a received return. The processor refund happens before
// the status writes; if it fails, both the return and the order keep their
// current status and the call can be retried.
func (s *ReturnService) Refund(ctx context.Context, actor Actor, returnID uuid.UUID) error {
	span := sentry.StartSpan(
		ctx,
		"service.returns.refund",
		sentry.WithOpName("service.returns"),
		sentry.WithDescription("Refund"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	ret, order, err := s.load(ctx, returnID)
	if err != nil {
		return err
	}
	if !actsAsCreator(actor, order) {
		return fmt.Errorf("%w: return %s", models.ErrUnauthorized, returnID)
	}
	if !ret.Status.CanBeRefunded() {
		return fmt.Errorf("%w: return is %s, expected received", models.ErrInvalidTransition, ret.Status)
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
		Reason:          string(ret.Reason),
	})
	if err != nil {
		meter.Count("return.refund.failed", 1)
		return fmt.Errorf("%w: %v", models.ErrProcessor, err)
	}

	if err := s.returns.MarkRefunded(ctx, returnID); err != nil {
		logger.Error("refund issued but status update failed", "error", err, "return_id", returnID, "refund_id", result.RefundID)
		return err
	}
	meter.Count("return.refunded", 1)
	logger.Info("return refunded", "return_id", returnID, "order_id", order.ID, "refund_id", result.RefundID)

	if err := s.emailSender.SendOrderRefunded(ctx, order, order.TotalCents); err != nil {
		logger.Error("failed to send refund email", "error", err, "order_id", order.ID)
	}
	return nil
}

func (s *ReturnService) load(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, *models.Order, error) {
	ret, err := s.returns.GetByID(ctx, returnID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.orders.GetByID(ctx, ret.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return ret, order, nil
}
