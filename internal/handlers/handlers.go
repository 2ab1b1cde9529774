package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makershopapp/makershop/internal/cache"
	"github.com/makershopapp/makershop/internal/config"
	"github.com/makershopapp/makershop/internal/logging"
	"github.com/makershopapp/makershop/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP request handlers for the fulfillment API.
type Handlers struct {
	config        *config.Config
	db            *pgxpool.Pool
	fulfillment   *services.FulfillmentService
	returns       *services.ReturnService
	disputes      *services.DisputeService
	cacheProvider cache.Provider
	logger        *slog.Logger
}

type Dependencies struct {
	Config             *config.Config
	DB                 *pgxpool.Pool
	FulfillmentService *services.FulfillmentService
	ReturnService      *services.ReturnService
	DisputeService     *services.DisputeService
	CacheProvider      cache.Provider
	Logger             *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.FulfillmentService == nil {
		return nil, fmt.Errorf("handlers dependencies: fulfillmentService is required")
	}
	if deps.ReturnService == nil {
		return nil, fmt.Errorf("handlers dependencies: returnService is required")
	}
	if deps.DisputeService == nil {
		return nil, fmt.Errorf("handlers dependencies: disputeService is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}

	return &Handlers{
		config:        deps.Config,
		db:            deps.DB,
		fulfillment:   deps.FulfillmentService,
		returns:       deps.ReturnService,
		disputes:      deps.DisputeService,
		cacheProvider: deps.CacheProvider,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
