package handlers

import (
	"net/http"

	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/services"
)

type openDisputeRequest struct {
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

func (h *Handlers) OpenDispute(w http.ResponseWriter, r *http.Request) {
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

	var req openDisputeRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	disputeType, err := models.ParseDisputeType(req.Type)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	dispute, err := h.disputes.Open(ctx, actor, services.OpenDisputeInput{
		OrderID: orderID,
		Type:    disputeType,
		Details: req.Details,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, dispute)
}

func (h *Handlers) GetDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	disputeID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	dispute, err := h.disputes.Get(ctx, actor, disputeID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, dispute)
}

func (h *Handlers) ListOrderDisputes(w http.ResponseWriter, r *http.Request) {
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

	disputes, err := h.disputes.ListByOrder(ctx, actor, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if disputes == nil {
		disputes = []*models.Dispute{}
	}
	h.writeJSON(ctx, w, http.StatusOK, disputes)
}

type resolveDisputeRequest struct {
	Outcome    string `json:"outcome"`
	Resolution string `json:"resolution,omitempty"`
}

func (h *Handlers) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	disputeID, err := uuidVar(r, "id")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req resolveDisputeRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	outcome, err := models.ParseDisputeOutcome(req.Outcome)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.disputes.Resolve(ctx, actor, disputeID, outcome, req.Resolution); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
