package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/services"
)

type createOrderRequest struct {
	CreatorID       uuid.UUID         `json:"creator_id"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email"`
	Items           []models.LineItem `json:"items"`
	ShippingAddress *models.Address   `json:"shipping_address,omitempty"`
}

type createOrderResponse struct {
	Order               *models.Order `json:"order"`
	PaymentClientSecret string        `json:"payment_client_secret,omitempty"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	result, err := h.fulfillment.CreateOrder(ctx, actor, services.CreateOrderInput{
		CreatorID:       req.CreatorID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, createOrderResponse{
		Order:               result.Order,
		PaymentClientSecret: result.PaymentClientSecret,
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	order, err := h.fulfillment.GetOrder(ctx, actor, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	orders, err := h.fulfillment.ListOrders(ctx, actor, limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	h.writeJSON(ctx, w, http.StatusOK, orders)
}

type payOrderRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (h *Handlers) PayOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req payOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	order, err := h.fulfillment.MarkPaid(ctx, actor, orderID, req.PaymentReference)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, order)
}

type shipOrderRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

func (h *Handlers) ShipOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req shipOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	order, err := h.fulfillment.Ship(ctx, actor, orderID, services.ShipInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, order)
}

func (h *Handlers) UpdateShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req shipOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.fulfillment.UpdateShipment(ctx, actor, orderID, services.ShipInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	}); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	order, err := h.fulfillment.ConfirmDelivery(ctx, actor, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req cancelOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.fulfillment.Cancel(ctx, actor, orderID, req.Reason); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refundOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) RefundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req refundOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.fulfillment.Refund(ctx, actor, orderID, req.Reason); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) OrderEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	orderID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	schedule, err := h.fulfillment.EscrowSchedule(ctx, actor, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, schedule)
}
