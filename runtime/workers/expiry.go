package workers

import (
	"context"
	"log/slog"
	"time"

	"courier/contract"
)

// Ensure *ExpirySweeper implements the contract.Worker interface at
// compile time.
var _ contract.Worker = (*ExpirySweeper)(nil)

// ExpirySweeper force-closes authenticated sessions whose credential
// expired. A connection must not silently outlive its token: the sweep
// interval plus the grace period bound how long an expired session can
// stay open.
type ExpirySweeper struct {
	registry contract.IRegistry
	interval time.Duration
	grace    time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewExpirySweeper(registry contract.IRegistry, interval, grace time.Duration, log *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		registry: registry,
		interval: interval,
		grace:    grace,
		log:      log,
		now:      time.Now,
	}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep closes every session whose token expiry plus grace has passed.
// Closing a session unregisters it, so the next sweep no longer sees it.
func (w *ExpirySweeper) Sweep() {
	cutoff := w.now().Add(-w.grace)
	for _, session := range w.registry.ExpiredSessions(cutoff) {
		w.log.Info("Closing session with expired credential",
			"deadline", session.Deadline())
		session.Close()
	}
}
