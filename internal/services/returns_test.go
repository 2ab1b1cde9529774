package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/policy"
)

func newReturnService(store *fakeOrderStore, returns *fakeReturnStore, processor *fakeProcessor) *ReturnService {
	return NewReturnService(returns, store, processor, policy.Default(), nil, nil)
}

func TestCreateReturnInsideWindow(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	delivered := time.Now().Add(-5 * 24 * time.Hour)
	store.orders[order.ID].DeliveredAt = delivered

	service := newReturnService(store, returns, &fakeProcessor{})

	ret, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{
		OrderID: order.ID,
		Reason:  models.ReasonDefective,
		Details: "arrived cracked",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ret.Status != models.ReturnRequested {
		t.Fatalf("Status = %q, want requested", ret.Status)
	}
	if store.orders[order.ID].Status != models.StatusValidationPending {
		t.Fatalf("order status = %q, want validation_pending", store.orders[order.ID].Status)
	}
}

func TestCreateReturnWindowClosed(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-15 * 24 * time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})

	_, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{
		OrderID: order.ID,
		Reason:  models.ReasonChangedMind,
	})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateReturnWrongStatus(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusShipped)

	service := newReturnService(store, returns, &fakeProcessor{})

	_, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{
		OrderID: order.ID,
		Reason:  models.ReasonDefective,
	})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCreateReturnOnlyForOrderCustomer(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})

	_, err := service.Create(context.Background(), Actor{ID: uuid.New(), Role: RoleCustomer}, CreateReturnInput{
		OrderID: order.ID,
		Reason:  models.ReasonDefective,
	})
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSecondActiveReturnRejected(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})
	customer := customerOf(order)

	first, err := service.Create(context.Background(), customer, CreateReturnInput{OrderID: order.ID, Reason: models.ReasonDefective})
	if err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	// Order moved to validation_pending, so the second request fails the
	// status guard before uniqueness even matters.
	_, err = service.Create(context.Background(), customer, CreateReturnInput{OrderID: order.ID, Reason: models.ReasonOther})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// After a rejection the order is delivered again and a fresh return is
	// allowed.
	if err := service.Reject(context.Background(), creatorOf(order), first.ID, "keep it"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if _, err := service.Create(context.Background(), customer, CreateReturnInput{OrderID: order.ID, Reason: models.ReasonOther}); err != nil {
		t.Fatalf("Create() after rejection error = %v", err)
	}
}

func TestApproveRequiresCreator(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})
	ret, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{OrderID: order.ID, Reason: models.ReasonDefective})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := service.Approve(context.Background(), customerOf(order), ret.ID); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := service.Approve(context.Background(), creatorOf(order), ret.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if err := service.Approve(context.Background(), creatorOf(order), ret.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double approve, got %v", err)
	}
}

func TestRejectRestoresDeliveredOrder(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})
	ret, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{OrderID: order.ID, Reason: models.ReasonChangedMind})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := service.Reject(context.Background(), creatorOf(order), ret.ID, "outside policy"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if store.orders[order.ID].Status != models.StatusDelivered {
		t.Fatalf("order status = %q, want delivered", store.orders[order.ID].Status)
	}
	stored := returns.returns[ret.ID]
	if stored.Status != models.ReturnRejected || stored.RejectReason != "outside policy" {
		t.Fatalf("return = %+v", stored)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})
	ret, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{OrderID: order.ID, Reason: models.ReasonChangedMind})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := service.Reject(context.Background(), creatorOf(order), ret.ID, " "); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if returns.returns[ret.ID].Status != models.ReturnRequested {
		t.Fatalf("return status = %q, want requested", returns.returns[ret.ID].Status)
	}
}

func TestReturnRefundFlow(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)
	processor := &fakeProcessor{}

	service := newReturnService(store, returns, processor)
	customer := customerOf(order)
	creator := creatorOf(order)
	ctx := context.Background()

	ret, err := service.Create(ctx, customer, CreateReturnInput{OrderID: order.ID, Reason: models.ReasonDefective})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := service.Approve(ctx, creator, ret.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if err := service.ShipBack(ctx, customer, ret.ID, "RR123456789"); err != nil {
		t.Fatalf("ShipBack() error = %v", err)
	}
	if store.orders[order.ID].Status != models.StatusReturnShipped {
		t.Fatalf("order status = %q, want return_shipped", store.orders[order.ID].Status)
	}
	if err := service.Receive(ctx, creator, ret.ID); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if err := service.Refund(ctx, creator, ret.ID); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}

	if store.orders[order.ID].Status != models.StatusRefunded {
		t.Fatalf("order status = %q, want refunded", store.orders[order.ID].Status)
	}
	if returns.returns[ret.ID].Status != models.ReturnRefunded {
		t.Fatalf("return status = %q, want refunded", returns.returns[ret.ID].Status)
	}
	if len(processor.refunds) != 1 || processor.refunds[0].AmountCents != int64(order.TotalCents) {
		t.Fatalf("unexpected refunds: %+v", processor.refunds)
	}
}

func TestReturnRefundProcessorFailure(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)
	processor := &fakeProcessor{refundErr: errors.New("stripe down")}

	service := newReturnService(store, returns, processor)
	customer := customerOf(order)
	creator := creatorOf(order)
	ctx := context.Background()

	ret, err := service.Create(ctx, customer, CreateReturnInput{OrderID: order.ID, Reason: models.ReasonDefective})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := service.Approve(ctx, creator, ret.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if err := service.ShipBack(ctx, customer, ret.ID, "RR123"); err != nil {
		t.Fatalf("ShipBack() error = %v", err)
	}
	if err := service.Receive(ctx, creator, ret.ID); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	if err := service.Refund(ctx, creator, ret.ID); !errors.Is(err, models.ErrProcessor) {
		t.Fatalf("expected ErrProcessor, got %v", err)
	}
	if returns.returns[ret.ID].Status != models.ReturnReceived {
		t.Fatalf("return status = %q, want received", returns.returns[ret.ID].Status)
	}
	if store.orders[order.ID].Status != models.StatusReturnReceived {
		t.Fatalf("order status = %q, want return_received", store.orders[order.ID].Status)
	}
}

func TestRefundRequiresReceivedReturn(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)
	processor := &fakeProcessor{}

	service := newReturnService(store, returns, processor)
	creator := creatorOf(order)
	ctx := context.Background()

	ret, err := service.Create(ctx, customerOf(order), CreateReturnInput{OrderID: order.ID, Reason: models.ReasonDefective})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Still in requested: no money may move.
	if err := service.Refund(ctx, creator, ret.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(processor.refunds) != 0 {
		t.Fatalf("processor called on guarded refund: %+v", processor.refunds)
	}

	// Approved is still not received.
	if err := service.Approve(ctx, creator, ret.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if err := service.Refund(ctx, creator, ret.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(processor.refunds) != 0 {
		t.Fatalf("processor called on guarded refund: %+v", processor.refunds)
	}
	if returns.returns[ret.ID].Status != models.ReturnApproved {
		t.Fatalf("return status = %q, want approved", returns.returns[ret.ID].Status)
	}
}

func TestShipBackRequiresApproval(t *testing.T) {
	t.Parallel()

	store := newFakeOrderStore()
	returns := newFakeReturnStore(store)
	order := seedOrder(store, models.StatusDelivered)
	store.orders[order.ID].DeliveredAt = time.Now().Add(-time.Hour)

	service := newReturnService(store, returns, &fakeProcessor{})
	ret, err := service.Create(context.Background(), customerOf(order), CreateReturnInput{OrderID: order.ID, Reason: models.ReasonDefective})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = service.ShipBack(context.Background(), customerOf(order), ret.ID, "RR123")
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
