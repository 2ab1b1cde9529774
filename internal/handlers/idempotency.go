package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/makershopapp/makershop/internal/cache"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

type storedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type recordingResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// WithIdempotency replays the stored response when a client retries a
// money-moving request with the same Idempotency-Key. Keys are scoped to the
// operation and the resource ID, so a reused header on another endpoint is a
// distinct key. Requests without the header pass straight through.
func (h *Handlers) WithIdempotency(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := h.loggerFromContext(ctx)

		clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if clientKey == "" {
			next(w, r)
			return
		}

		key := cache.IdempotencyKey(operation, mux.Vars(r)["id"], clientKey)
		if cached, err := h.cacheProvider.Get(ctx, key); err == nil {
			var stored storedResponse
			if err := json.Unmarshal([]byte(cached), &stored); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(stored.Status)
				if _, err := w.Write([]byte(stored.Body)); err != nil {
					logger.Error("failed to write replayed response", "error", err)
				}
				return
			}
			logger.Warn("discarding corrupt idempotency entry", "key", key)
		} else if !errors.Is(err, cache.ErrNotFound) {
			logger.Error("idempotency cache lookup failed", "error", err, "key", key)
		}

		recorder := &recordingResponseWriter{ResponseWriter: w}
		next(recorder, r)

		// Only successful outcomes are replayable. Failures stay uncached so
		// the client can retry the operation itself.
		if recorder.status < 200 || recorder.status >= 300 {
			return
		}

		payload, err := json.Marshal(storedResponse{Status: recorder.status, Body: recorder.body.String()})
		if err != nil {
			logger.Error("failed to encode idempotency entry", "error", err, "key", key)
			return
		}
		if err := h.cacheProvider.Set(ctx, key, string(payload), idempotencyTTL); err != nil {
			logger.Error("failed to store idempotency entry", "error", err, "key", key)
		}
	}
}
