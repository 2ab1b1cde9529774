package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/makershopapp/makershop/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.loggerFromContext(ctx).Error("failed to encode response", "error", err)
	}
}

// writeError maps domain sentinels to HTTP statuses. Anything unmatched is a
// 500 with a generic body; the wrapped detail goes to the log only.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidStatus):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrActiveReturnExists):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, models.ErrProcessor):
		status = http.StatusBadGateway
		message = err.Error()
	default:
		h.loggerFromContext(ctx).Error("request failed", "error", err)
	}

	h.writeJSON(ctx, w, status, errorResponse{Error: message})
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err)
	}
	return nil
}

func uuidVar(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a valid %s", models.ErrValidation, raw, name)
	}
	return id, nil
}
