// Package jobs holds the background loops that run beside the HTTP server.
package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

type releaseSweeper interface {
	CompleteReleased(ctx context.Context) (int64, error)
}

// Completer periodically sweeps delivered orders whose escrow hold has
// elapsed into the completed status. The sweep itself is idempotent, so
// overlapping deployments running their own completer are harmless.
type Completer struct {
	sweeper  releaseSweeper
	interval time.Duration
	logger   *slog.Logger
}

func NewCompleter(sweeper releaseSweeper, interval time.Duration, logger *slog.Logger) (*Completer, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("completer: sweeper is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("completer: interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Completer{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With("component", "completer"),
	}, nil
}

// Run sweeps once immediately, then on every tick until the context is
// canceled. Sweep failures are logged and retried on the next tick.
func (c *Completer) Run(ctx context.Context) {
	c.logger.Info("completion sweep started", "interval", c.interval)

	c.sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("completion sweep stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Completer) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := c.sweeper.CompleteReleased(ctx); err != nil {
		c.logger.Error("completion sweep failed", "error", err)
	}
}
