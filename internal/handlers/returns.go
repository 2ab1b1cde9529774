package handlers

import (
	"net/http"

	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/services"
)

type createReturnRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

func (h *Handlers) CreateReturn(w http.ResponseWriter, r *http.Request) {
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

	var req createReturnRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	reason, err := models.ParseReturnReason(req.Reason)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	ret, err := h.returns.Create(ctx, actor, services.CreateReturnInput{
		OrderID: orderID,
		Reason:  reason,
		Details: req.Details,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, ret)
}

func (h *Handlers) GetReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	returnID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	ret, err := h.returns.Get(ctx, actor, returnID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, ret)
}

func (h *Handlers) ListOrderReturns(w http.ResponseWriter, r *http.Request) {
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

	returns, err := h.returns.ListByOrder(ctx, actor, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if returns == nil {
		returns = []*models.ReturnRequest{}
	}
	h.writeJSON(ctx, w, http.StatusOK, returns)
}

func (h *Handlers) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	returnID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.returns.Approve(ctx, actor, returnID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rejectReturnRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) RejectReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	returnID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req rejectReturnRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.returns.Reject(ctx, actor, returnID, req.Reason); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shipBackRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

func (h *Handlers) ShipBackReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	returnID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req shipBackRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.returns.ShipBack(ctx, actor, returnID, req.TrackingNumber); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ReceiveReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	returnID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.returns.Receive(ctx, actor, returnID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RefundReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	returnID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.returns.Refund(ctx, actor, returnID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
