// Package stripe wraps the Stripe API for payment and refund operations.
package stripe

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// PlatformClient handles platform-level Stripe operations.
type PlatformClient struct {
	client *stripe.Client
}

// NewPlatformClient creates a Stripe client with the platform secret key.
func NewPlatformClient(secretKey string) *PlatformClient {
	return &PlatformClient{
		client: stripe.NewClient(secretKey),
	}
}

// PaymentIntentParams holds parameters for creating a payment intent.
type PaymentIntentParams struct {
	OrderID       uuid.UUID
	AmountCents   int64
	CustomerEmail string
	// ConnectedAccountID routes the charge to a creator's connected account.
	ConnectedAccountID string
}

// CreatePaymentIntent creates a payment intent for an order. The returned
// intent ID becomes the order's payment reference once payment confirms.
func (c *PlatformClient) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	intentParams := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String("usd"),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		ReceiptEmail: stripe.String(params.CustomerEmail),
		Metadata: map[string]string{
			"order_id": params.OrderID.String(),
		},
	}
	if params.CustomerEmail == "" {
		intentParams.ReceiptEmail = nil
	}
	if params.ConnectedAccountID != "" {
		intentParams.SetStripeAccount(params.ConnectedAccountID)
	}

	intent, err := c.client.V1PaymentIntents.Create(ctx, intentParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return intent, nil
}

// RefundParams holds parameters for refunding a captured payment.
type RefundParams struct {
	OrderID         uuid.UUID
	PaymentIntentID string
	AmountCents     int64
	Reason          string
	// ConnectedAccountID must match the account the charge was created on.
	ConnectedAccountID string
}

// RefundResult reports the processor's view of a completed refund request.
type RefundResult struct {
	RefundID    string
	AmountCents int64
	Status      string
}

// RefundPayment issues a refund against the order's payment intent.
func (c *PlatformClient) RefundPayment(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if params.PaymentIntentID == "" {
		return nil, fmt.Errorf("payment intent ID is required")
	}

	refundParams := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(params.PaymentIntentID),
		Metadata: map[string]string{
			"order_id": params.OrderID.String(),
		},
	}
	if params.AmountCents > 0 {
		refundParams.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Reason != "" {
		refundParams.Metadata["reason"] = params.Reason
	}
	if params.ConnectedAccountID != "" {
		refundParams.SetStripeAccount(params.ConnectedAccountID)
	}

	refund, err := c.client.V1Refunds.Create(ctx, refundParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	return &RefundResult{
		RefundID:    refund.ID,
		AmountCents: refund.Amount,
		Status:      string(refund.Status),
	}, nil
}
