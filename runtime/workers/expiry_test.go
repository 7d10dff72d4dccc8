package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"courier/contract"
	"courier/domain"
	"courier/runtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type closableSink struct {
	deadline time.Time
	closed   bool

	registry  *runtime.Registry
	userID    string
	sessionID uuid.UUID
}

func (s *closableSink) Consume(_ context.Context, _ domain.PrivateMessage) error { return nil }

func (s *closableSink) Deadline() time.Time { return s.deadline }

// Close mirrors the real session: idempotent, unregisters itself.
func (s *closableSink) Close() {
	s.closed = true
	s.registry.Unregister(s.userID, s.sessionID)
}

var _ contract.ICloser = (*closableSink)(nil)

func TestExpirySweeper_Closes_Only_Expired_Sessions(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry()
	now := time.Now()

	stale := &closableSink{deadline: now.Add(-time.Minute), registry: registry,
		userID: "alice", sessionID: uuid.New()}
	fresh := &closableSink{deadline: now.Add(time.Hour), registry: registry,
		userID: "bob", sessionID: uuid.New()}
	registry.Register(stale.userID, stale.sessionID, stale)
	registry.Register(fresh.userID, fresh.sessionID, fresh)

	sweeper := NewExpirySweeper(registry, time.Second, 10*time.Second, slog.Default())
	sweeper.now = func() time.Time { return now }

	// When the sweep runs
	sweeper.Sweep()

	// Then only the session past deadline+grace is closed and gone
	req.True(stale.closed)
	req.False(fresh.closed)
	req.Empty(registry.SinksFor("alice"))
	req.Len(registry.SinksFor("bob"), 1)
}

func TestExpirySweeper_Grace_Period_Delays_Closure(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry()
	now := time.Now()

	// Expired 5s ago, but the grace period is 30s
	recent := &closableSink{deadline: now.Add(-5 * time.Second), registry: registry,
		userID: "alice", sessionID: uuid.New()}
	registry.Register(recent.userID, recent.sessionID, recent)

	sweeper := NewExpirySweeper(registry, time.Second, 30*time.Second, slog.Default())
	sweeper.now = func() time.Time { return now }

	sweeper.Sweep()
	req.False(recent.closed)

	// Once the grace elapses the next sweep closes it
	sweeper.now = func() time.Time { return now.Add(26 * time.Second) }
	sweeper.Sweep()
	req.True(recent.closed)
}
