package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/stripe"
)

// fakeOrderStore mirrors the store's compare-and-set behavior in memory.
type fakeOrderStore struct {
	orders        map[uuid.UUID]*models.Order
	completeCalls []time.Time
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderStore) add(order *models.Order) *models.Order {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderStore) Create(_ context.Context, order *models.Order) error {
	order.ID = uuid.New()
	order.OrderNumber = len(f.orders) + 1
	order.CreatedAt = time.Now()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) ListByCreator(_ context.Context, creatorID uuid.UUID, _ int) ([]*models.Order, error) {
	var orders []*models.Order
	for _, order := range f.orders {
		if order.CreatorID == creatorID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (f *fakeOrderStore) ListByCustomer(_ context.Context, customerID uuid.UUID, _ int) ([]*models.Order, error) {
	var orders []*models.Order
	for _, order := range f.orders {
		if order.CustomerID == customerID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (f *fakeOrderStore) transition(orderID uuid.UUID, from []models.OrderStatus, to models.OrderStatus) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	for _, status := range from {
		if order.Status == status {
			order.Status = to
			return order, nil
		}
	}
	return nil, fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
}

func (f *fakeOrderStore) MarkPaid(_ context.Context, orderID uuid.UUID, paymentReference string) error {
	order, err := f.transition(orderID, []models.OrderStatus{models.StatusPending}, models.StatusPaid)
	if err != nil {
		return err
	}
	order.PaymentReference = paymentReference
	order.PaidAt = time.Now()
	return nil
}

func (f *fakeOrderStore) MarkShipped(_ context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error {
	order, err := f.transition(orderID, []models.OrderStatus{models.StatusPaid}, models.StatusShipped)
	if err != nil {
		return err
	}
	order.TrackingNumber = trackingNumber
	order.TrackingURL = trackingURL
	order.Carrier = carrier
	order.ShippedAt = time.Now()
	return nil
}

func (f *fakeOrderStore) UpdateShipmentDetails(_ context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	if order.Status != models.StatusShipped {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	order.TrackingNumber = trackingNumber
	order.TrackingURL = trackingURL
	order.Carrier = carrier
	return nil
}

func (f *fakeOrderStore) MarkDelivered(_ context.Context, orderID uuid.UUID) error {
	order, err := f.transition(orderID, []models.OrderStatus{models.StatusShipped}, models.StatusDelivered)
	if err != nil {
		return err
	}
	order.DeliveredAt = time.Now()
	return nil
}

func (f *fakeOrderStore) MarkCanceled(_ context.Context, orderID uuid.UUID, reason string) error {
	order, err := f.transition(orderID, []models.OrderStatus{models.StatusPending, models.StatusPaid}, models.StatusCanceled)
	if err != nil {
		return err
	}
	order.CancelReason = reason
	order.CanceledAt = time.Now()
	return nil
}

func (f *fakeOrderStore) MarkRefunded(_ context.Context, orderID uuid.UUID) error {
	order, err := f.transition(orderID, []models.OrderStatus{models.StatusPaid, models.StatusShipped, models.StatusDelivered}, models.StatusRefunded)
	if err != nil {
		return err
	}
	order.RefundedAt = time.Now()
	return nil
}

func (f *fakeOrderStore) CompleteReleased(_ context.Context, deliveredBefore time.Time) (int64, error) {
	f.completeCalls = append(f.completeCalls, deliveredBefore)
	var completed int64
	for _, order := range f.orders {
		if order.Status == models.StatusDelivered && !order.DeliveredAt.After(deliveredBefore) {
			order.Status = models.StatusCompleted
			order.CompletedAt = time.Now()
			completed++
		}
	}
	return completed, nil
}

// fakeReturnStore mirrors the transactional coupling between a return and its
// order by writing straight into the shared fakeOrderStore.
type fakeReturnStore struct {
	orders  *fakeOrderStore
	returns map[uuid.UUID]*models.ReturnRequest
}

func newFakeReturnStore(orders *fakeOrderStore) *fakeReturnStore {
	return &fakeReturnStore{orders: orders, returns: make(map[uuid.UUID]*models.ReturnRequest)}
}

func (f *fakeReturnStore) Create(_ context.Context, ret *models.ReturnRequest) error {
	order, ok := f.orders.orders[ret.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, ret.OrderID)
	}
	if !order.Status.CanAcceptReturn() {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	for _, existing := range f.returns {
		if existing.OrderID == ret.OrderID && !existing.Status.IsTerminal() {
			return models.ErrActiveReturnExists
		}
	}
	ret.ID = uuid.New()
	ret.Status = models.ReturnRequested
	ret.RequestedAt = time.Now()
	f.returns[ret.ID] = ret
	order.Status = models.StatusValidationPending
	return nil
}

func (f *fakeReturnStore) GetByID(_ context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	ret, ok := f.returns[returnID]
	if !ok {
		return nil, fmt.Errorf("%w: return %s", models.ErrNotFound, returnID)
	}
	copied := *ret
	return &copied, nil
}

func (f *fakeReturnStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*models.ReturnRequest, error) {
	var returns []*models.ReturnRequest
	for _, ret := range f.returns {
		if ret.OrderID == orderID {
			returns = append(returns, ret)
		}
	}
	return returns, nil
}

func (f *fakeReturnStore) get(returnID uuid.UUID) (*models.ReturnRequest, *models.Order, error) {
	ret, ok := f.returns[returnID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: return %s", models.ErrNotFound, returnID)
	}
	order, ok := f.orders.orders[ret.OrderID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: order %s", models.ErrNotFound, ret.OrderID)
	}
	return ret, order, nil
}

func (f *fakeReturnStore) Approve(_ context.Context, returnID uuid.UUID) error {
	ret, _, err := f.get(returnID)
	if err != nil {
		return err
	}
	if !ret.Status.CanBeApproved() {
		return fmt.Errorf("%w: return is %s", models.ErrInvalidTransition, ret.Status)
	}
	ret.Status = models.ReturnApproved
	ret.ApprovedAt = time.Now()
	return nil
}

func (f *fakeReturnStore) Reject(_ context.Context, returnID uuid.UUID, reason string) error {
	ret, order, err := f.get(returnID)
	if err != nil {
		return err
	}
	if !ret.Status.CanBeRejected() {
		return fmt.Errorf("%w: return is %s", models.ErrInvalidTransition, ret.Status)
	}
	if order.Status != models.StatusValidationPending {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	ret.Status = models.ReturnRejected
	ret.RejectReason = reason
	ret.RejectedAt = time.Now()
	order.Status = models.StatusDelivered
	return nil
}

func (f *fakeReturnStore) MarkShippedBack(_ context.Context, returnID uuid.UUID, trackingNumber string) error {
	ret, order, err := f.get(returnID)
	if err != nil {
		return err
	}
	if !ret.Status.CanBeShippedBack() {
		return fmt.Errorf("%w: return is %s", models.ErrInvalidTransition, ret.Status)
	}
	if order.Status != models.StatusValidationPending {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	ret.Status = models.ReturnShippedBack
	ret.TrackingNumber = trackingNumber
	ret.ShippedBackAt = time.Now()
	order.Status = models.StatusReturnShipped
	return nil
}

func (f *fakeReturnStore) MarkReceived(_ context.Context, returnID uuid.UUID) error {
	ret, order, err := f.get(returnID)
	if err != nil {
		return err
	}
	if !ret.Status.CanBeReceived() {
		return fmt.Errorf("%w: return is %s", models.ErrInvalidTransition, ret.Status)
	}
	if order.Status != models.StatusReturnShipped {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	ret.Status = models.ReturnReceived
	ret.ReceivedAt = time.Now()
	order.Status = models.StatusReturnReceived
	return nil
}

func (f *fakeReturnStore) MarkRefunded(_ context.Context, returnID uuid.UUID) error {
	ret, order, err := f.get(returnID)
	if err != nil {
		return err
	}
	if !ret.Status.CanBeRefunded() {
		return fmt.Errorf("%w: return is %s", models.ErrInvalidTransition, ret.Status)
	}
	if order.Status != models.StatusReturnReceived {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	ret.Status = models.ReturnRefunded
	ret.RefundedAt = time.Now()
	order.Status = models.StatusRefunded
	order.RefundedAt = time.Now()
	return nil
}

type fakeDisputeStore struct {
	orders   *fakeOrderStore
	disputes map[uuid.UUID]*models.Dispute
}

func newFakeDisputeStore(orders *fakeOrderStore) *fakeDisputeStore {
	return &fakeDisputeStore{orders: orders, disputes: make(map[uuid.UUID]*models.Dispute)}
}

func (f *fakeDisputeStore) Open(_ context.Context, dispute *models.Dispute) error {
	order, ok := f.orders.orders[dispute.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, dispute.OrderID)
	}
	if order.Status != models.StatusDelivered {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	dispute.ID = uuid.New()
	dispute.Status = models.DisputeOpen
	dispute.OpenedAt = time.Now()
	f.disputes[dispute.ID] = dispute
	order.Status = models.StatusDisputeOpened
	return nil
}

func (f *fakeDisputeStore) GetByID(_ context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, ok := f.disputes[disputeID]
	if !ok {
		return nil, fmt.Errorf("%w: dispute %s", models.ErrNotFound, disputeID)
	}
	copied := *dispute
	return &copied, nil
}

func (f *fakeDisputeStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*models.Dispute, error) {
	var disputes []*models.Dispute
	for _, dispute := range f.disputes {
		if dispute.OrderID == orderID {
			disputes = append(disputes, dispute)
		}
	}
	return disputes, nil
}

func (f *fakeDisputeStore) Resolve(_ context.Context, disputeID uuid.UUID, outcome models.DisputeOutcome, resolution string) error {
	dispute, ok := f.disputes[disputeID]
	if !ok {
		return fmt.Errorf("%w: dispute %s", models.ErrNotFound, disputeID)
	}
	if dispute.Status != models.DisputeOpen {
		return fmt.Errorf("%w: dispute is %s", models.ErrInvalidTransition, dispute.Status)
	}
	order, ok := f.orders.orders[dispute.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, dispute.OrderID)
	}
	if order.Status != models.StatusDisputeOpened {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	dispute.Status = models.DisputeResolved
	dispute.Outcome = outcome
	dispute.Resolution = resolution
	dispute.ResolvedAt = time.Now()
	switch outcome {
	case models.OutcomeRelease:
		order.Status = models.StatusDelivered
	case models.OutcomeRefund:
		order.Status = models.StatusRefunded
		order.RefundedAt = time.Now()
	}
	return nil
}

type fakeProcessor struct {
	intents   []stripe.PaymentIntentParams
	intentErr error
	refunds   []stripe.RefundParams
	refundErr error
}

func (f *fakeProcessor) CreatePaymentIntent(_ context.Context, params stripe.PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	f.intents = append(f.intents, params)
	return &stripeapi.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

func (f *fakeProcessor) RefundPayment(_ context.Context, params stripe.RefundParams) (*stripe.RefundResult, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunds = append(f.refunds, params)
	return &stripe.RefundResult{RefundID: "re_test", AmountCents: params.AmountCents, Status: "succeeded"}, nil
}
