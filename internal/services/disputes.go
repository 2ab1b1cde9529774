package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/logging"
	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/observability"
	"github.com/makershopapp/makershop/internal/stripe"
)

type disputeStore interface {
	Open(ctx context.Context, dispute *models.Dispute) error
	GetByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Dispute, error)
	Resolve(ctx context.Context, disputeID uuid.UUID, outcome models.DisputeOutcome, resolution string) error
}

// DisputeService lets customers escalate delivered orders and lets platform
// staff resolve the escalation either way.
type DisputeService struct {
	disputes    disputeStore
	orders      orderStore
	payments    paymentProcessor
	emailSender OrderEmailSender
	logger      *slog.Logger
}

func NewDisputeService(disputes disputeStore, orders orderStore, payments paymentProcessor, emailSender OrderEmailSender, logger *slog.Logger) *DisputeService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &DisputeService{
		disputes:    disputes,
		orders:      orders,
		payments:    payments,
		emailSender: emailSender,
		logger:      logger,
	}
}

func (s *DisputeService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type OpenDisputeInput struct {
	OrderID uuid.UUID
	Type    models.DisputeType
	Details string
}

// Open escalates a delivered order. Opening freezes escrow by moving the
// order to dispute_opened, so the completion sweep cannot touch it.
func (s *DisputeService) Open(ctx context.Context, actor Actor, input OpenDisputeInput) (*models.Dispute, error) {
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !actsAsCustomer(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, input.OrderID)
	}
	if !order.Status.CanOpenDispute() {
		return nil, fmt.Errorf("%w: order is %s, expected delivered", models.ErrInvalidTransition, order.Status)
	}

	dispute := &models.Dispute{
		OrderID:  input.OrderID,
		OpenedBy: actor.ID,
		Type:     input.Type,
		Details:  input.Details,
	}
	if err := s.disputes.Open(ctx, dispute); err != nil {
		return nil, err
	}
	meter.Count("dispute.opened", 1, sentry.WithAttributes(
		attribute.String("type", string(dispute.Type)),
	))
	return dispute, nil
}

func (s *DisputeService) Get(ctx context.Context, actor Actor, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, order, err := s.load(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !canViewOrder(actor, order) {
		return nil, fmt.Errorf("%w: dispute %s", models.ErrUnauthorized, disputeID)
	}
	return dispute, nil
}

func (s *DisputeService) ListByOrder(ctx context.Context, actor Actor, orderID uuid.UUID) ([]*models.Dispute, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canViewOrder(actor, order) {
		return nil, fmt.Errorf("%w: order %s", models.ErrUnauthorized, orderID)
	}
	return s.disputes.ListByOrder(ctx, orderID)
}

// Resolve closes a dispute. A release outcome puts the order back to
// delivered with its original escrow clock; a refund outcome moves the money
// first and then terminates the order as refunded.
func (s *DisputeService) Resolve(ctx context.Context, actor Actor, disputeID uuid.UUID, outcome models.DisputeOutcome, resolution string) error {
	span := sentry.StartSpan(
		ctx,
		"service.disputes.resolve",
		sentry.WithOpName("service.disputes"),
		sentry.WithDescription("Resolve"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only platform staff can resolve disputes", models.ErrUnauthorized)
	}

	dispute, order, err := s.load(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute.Status != models.DisputeOpen {
		return fmt.Errorf("%w: dispute is %s, expected open", models.ErrInvalidTransition, dispute.Status)
	}

	if outcome == models.OutcomeRefund {
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
			Reason:          "dispute_" + string(dispute.Type),
		})
		if err != nil {
			meter.Count("dispute.refund.failed", 1)
			return fmt.Errorf("%w: %v", models.ErrProcessor, err)
		}
		logger.Info("dispute refund issued", "dispute_id", disputeID, "order_id", order.ID, "refund_id", result.RefundID)
	}

	if err := s.disputes.Resolve(ctx, disputeID, outcome, resolution); err != nil {
		if outcome == models.OutcomeRefund {
			logger.Error("refund issued but dispute resolution failed", "error", err, "dispute_id", disputeID)
		}
		return err
	}
	meter.Count("dispute.resolved", 1, sentry.WithAttributes(
		attribute.String("outcome", string(outcome)),
	))

	if outcome == models.OutcomeRefund {
		if err := s.emailSender.SendOrderRefunded(ctx, order, order.TotalCents); err != nil {
			logger.Error("failed to send refund email", "error", err, "order_id", order.ID)
		}
	}
	return nil
}

func (s *DisputeService) load(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, *models.Order, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return dispute, order, nil
}
