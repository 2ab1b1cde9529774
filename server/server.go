package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/makershopapp/makershop/internal/config"
	"github.com/makershopapp/makershop/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// All API routes require a bearer token.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireAuth)

	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	api.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("orders.list")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	api.HandleFunc("/orders/{id}/pay", h.WithIdempotency("order.pay", h.PayOrder)).Methods("POST").Name("orders.pay")
	api.HandleFunc("/orders/{id}/ship", h.ShipOrder).Methods("POST").Name("orders.ship")
	api.HandleFunc("/orders/{id}/shipment", h.UpdateShipment).Methods("PUT").Name("orders.shipment.update")
	api.HandleFunc("/orders/{id}/deliver", h.DeliverOrder).Methods("POST").Name("orders.deliver")
	api.HandleFunc("/orders/{id}/cancel", h.WithIdempotency("order.cancel", h.CancelOrder)).Methods("POST").Name("orders.cancel")
	api.HandleFunc("/orders/{id}/refund", h.WithIdempotency("order.refund", h.RefundOrder)).Methods("POST").Name("orders.refund")
	api.HandleFunc("/orders/{id}/escrow", h.OrderEscrow).Methods("GET").Name("orders.escrow")

	api.HandleFunc("/orders/{id}/returns", h.CreateReturn).Methods("POST").Name("returns.create")
	api.HandleFunc("/orders/{id}/returns", h.ListOrderReturns).Methods("GET").Name("returns.list")
	api.HandleFunc("/returns/{id}", h.GetReturn).Methods("GET").Name("returns.get")
	api.HandleFunc("/returns/{id}/approve", h.ApproveReturn).Methods("POST").Name("returns.approve")
	api.HandleFunc("/returns/{id}/reject", h.RejectReturn).Methods("POST").Name("returns.reject")
	api.HandleFunc("/returns/{id}/ship-back", h.ShipBackReturn).Methods("POST").Name("returns.ship_back")
	api.HandleFunc("/returns/{id}/receive", h.ReceiveReturn).Methods("POST").Name("returns.receive")
	api.HandleFunc("/returns/{id}/refund", h.WithIdempotency("return.refund", h.RefundReturn)).Methods("POST").Name("returns.refund")

	api.HandleFunc("/orders/{id}/disputes", h.OpenDispute).Methods("POST").Name("disputes.open")
	api.HandleFunc("/orders/{id}/disputes", h.ListOrderDisputes).Methods("GET").Name("disputes.list")
	api.HandleFunc("/disputes/{id}", h.GetDispute).Methods("GET").Name("disputes.get")
	api.HandleFunc("/disputes/{id}/resolve", h.WithIdempotency("dispute.resolve", h.ResolveDispute)).Methods("POST").Name("disputes.resolve")

	return r
}
