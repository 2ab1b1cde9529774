// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// OrderInfo carries everything the order email templates can reference.
type OrderInfo struct {
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	Items           []OrderItem
	Total           string
	ShippingAddress string
	TrackingNumber  string
	TrackingURL     string
	TrackingCarrier string
	OrderDate       string
	RefundAmount    string
	ReturnReason    string
	RejectReason    string
}

// OrderItem represents a single item in an order.
type OrderItem struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

// Renderer provides methods to render email templates.
type Renderer struct {
	templates *template.Template
}

var templateSubjects = map[string]string{
	"order_confirmation": "Order Confirmed - %s",
	"order_shipped":      "Your Order Has Shipped - %s",
	"order_refunded":     "Your Refund Has Been Issued - %s",
	"return_approved":    "Your Return Was Approved - %s",
	"return_rejected":    "Update on Your Return Request - %s",
}

// NewRenderer creates a new email template renderer with built-in templates.
func NewRenderer() (*Renderer, error) {
	bodies := map[string]string{
		"order_confirmation": orderConfirmationText,
		"order_shipped":      orderShippedText,
		"order_refunded":     orderRefundedText,
		"return_approved":    returnApprovedText,
		"return_rejected":    returnRejectedText,
	}

	tmpl := template.New("email")
	for key, body := range bodies {
		if _, err := tmpl.New(key).Parse(body); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", key, err)
		}
	}

	return &Renderer{templates: tmpl}, nil
}

// Render renders an email template with the given data.
func (r *Renderer) Render(ctx context.Context, templateName string, data *OrderInfo) (*Email, error) {
	_ = ctx

	subjectFormat, ok := templateSubjects[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown email template: %s", templateName)
	}

	var textBuf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&textBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: fmt.Sprintf(subjectFormat, data.OrderNumber),
		Text:    textBuf.String(),
	}, nil
}

func send(ctx context.Context, p Provider, templateName string, orderInfo *OrderInfo) error {
	if p == nil {
		return nil
	}

	renderer, err := NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	email, err := renderer.Render(ctx, templateName, orderInfo)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

// SendOrderConfirmation sends an order confirmation email.
func SendOrderConfirmation(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_confirmation", orderInfo)
}

// SendOrderShipped sends an order shipped email.
func SendOrderShipped(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_shipped", orderInfo)
}

// SendOrderRefunded sends a refund confirmation email.
func SendOrderRefunded(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_refunded", orderInfo)
}

// SendReturnApproved tells the customer to ship the item back.
func SendReturnApproved(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "return_approved", orderInfo)
}

// SendReturnRejected tells the customer the return was declined.
func SendReturnRejected(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "return_rejected", orderInfo)
}

const orderConfirmationText = `Thank you for your order!

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}
- {{.Name}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}

Total: {{.Total}}

We'll send you another email when your order ships.
`

const orderShippedText = `Great news! Your order has shipped!

Order Number: {{.OrderNumber}}

{{if .TrackingNumber}}
Tracking Number: {{.TrackingNumber}}
Carrier: {{.TrackingCarrier}}
{{if .TrackingURL}}Track your package: {{.TrackingURL}}{{end}}
{{end}}

Shipping Address:
{{.ShippingAddress}}
`

const orderRefundedText = `Your refund has been issued.

Order Number: {{.OrderNumber}}
Refund Amount: {{.RefundAmount}}

Refunds usually appear on your statement within 5-10 business days.
`

const returnApprovedText = `Your return request was approved.

Order Number: {{.OrderNumber}}
Reason: {{.ReturnReason}}

Please ship the item back to the seller. Once the seller confirms receipt,
your refund will be issued automatically.
`

const returnRejectedText = `Your return request was not approved.

Order Number: {{.OrderNumber}}
{{if .RejectReason}}Seller's note: {{.RejectReason}}{{end}}

If you believe this is a mistake, you can open a dispute from your order page.
`
