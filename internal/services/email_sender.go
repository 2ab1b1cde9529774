package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/makershopapp/makershop/internal/email"
	"github.com/makershopapp/makershop/internal/models"
)

type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOrderShipped(ctx context.Context, order *models.Order) error
	SendOrderRefunded(ctx context.Context, order *models.Order, refundCents int) error
	SendReturnApproved(ctx context.Context, order *models.Order, ret *models.ReturnRequest) error
	SendReturnRejected(ctx context.Context, order *models.Order, ret *models.ReturnRequest) error
}

// ProviderOrderEmailSender renders order emails and delivers them through a
// configured email.Provider.
type ProviderOrderEmailSender struct {
	provider email.Provider
}

func NewProviderOrderEmailSender(provider email.Provider) *ProviderOrderEmailSender {
	return &ProviderOrderEmailSender{provider: provider}
}

func (s *ProviderOrderEmailSender) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return email.SendOrderConfirmation(ctx, s.provider, buildOrderInfo(order))
}

func (s *ProviderOrderEmailSender) SendOrderShipped(ctx context.Context, order *models.Order) error {
	return email.SendOrderShipped(ctx, s.provider, buildOrderInfo(order))
}

func (s *ProviderOrderEmailSender) SendOrderRefunded(ctx context.Context, order *models.Order, refundCents int) error {
	info := buildOrderInfo(order)
	info.RefundAmount = formatCents(refundCents)
	return email.SendOrderRefunded(ctx, s.provider, info)
}

func (s *ProviderOrderEmailSender) SendReturnApproved(ctx context.Context, order *models.Order, ret *models.ReturnRequest) error {
	info := buildOrderInfo(order)
	info.ReturnReason = string(ret.Reason)
	return email.SendReturnApproved(ctx, s.provider, info)
}

func (s *ProviderOrderEmailSender) SendReturnRejected(ctx context.Context, order *models.Order, ret *models.ReturnRequest) error {
	info := buildOrderInfo(order)
	info.ReturnReason = string(ret.Reason)
	info.RejectReason = ret.RejectReason
	return email.SendReturnRejected(ctx, s.provider, info)
}

func buildOrderInfo(order *models.Order) *email.OrderInfo {
	if order == nil {
		return &email.OrderInfo{}
	}

	info := &email.OrderInfo{
		OrderNumber:     fmt.Sprintf("#%d", order.OrderNumber),
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		Total:           formatCents(order.TotalCents),
		TrackingNumber:  order.TrackingNumber,
		TrackingURL:     order.TrackingURL,
		TrackingCarrier: order.Carrier,
		OrderDate:       order.CreatedAt.Format("January 2, 2006"),
		ShippingAddress: formatShippingAddress(order),
	}

	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  formatCents(item.UnitPriceCents),
			TotalPrice: formatCents(item.SubtotalCents()),
		})
	}

	return info
}

func formatShippingAddress(order *models.Order) string {
	if order.ShippingAddress == nil {
		return ""
	}
	address := order.ShippingAddress

	lines := []string{order.CustomerName}
	if address.Line1 != "" {
		lines = append(lines, address.Line1)
	}
	if address.Line2 != "" {
		lines = append(lines, address.Line2)
	}
	if address.City != "" || address.State != "" || address.PostalCode != "" {
		lines = append(lines, fmt.Sprintf("%s, %s %s", address.City, address.State, address.PostalCode))
	}
	if address.Country != "" {
		lines = append(lines, address.Country)
	}
	return strings.Join(lines, "\n")
}

func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(context.Context, *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(context.Context, *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderRefunded(context.Context, *models.Order, int) error {
	return nil
}

func (noopOrderEmailSender) SendReturnApproved(context.Context, *models.Order, *models.ReturnRequest) error {
	return nil
}

func (noopOrderEmailSender) SendReturnRejected(context.Context, *models.Order, *models.ReturnRequest) error {
	return nil
}
