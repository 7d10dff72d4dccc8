package runtime

import (
	"context"
	"testing"
	"time"

	"courier/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubSink struct{}

func (s stubSink) Consume(_ context.Context, _ domain.PrivateMessage) error {
	return nil
}

func TestRegistry_Register_One_User_Two_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	first, second := uuid.New(), uuid.New()

	// Given no user is connected
	req.Empty(registry.Snapshot())

	// When the same user opens two connections
	registry.Register(userID, first, stubSink{})
	registry.Register(userID, second, stubSink{})

	// Then both sinks are resolvable for that user
	req.Len(registry.SinksFor(userID), 2)
	req.Equal(map[string]int{userID: 2}, registry.Snapshot())
}

func TestRegistry_Register_Is_Idempotent_Per_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	sessionID := uuid.New()

	registry.Register(userID, sessionID, stubSink{})
	registry.Register(userID, sessionID, stubSink{})

	req.Len(registry.SinksFor(userID), 1)
}

func TestRegistry_Unregister_Leaves_Remaining_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	first, second := uuid.New(), uuid.New()

	registry.Register(userID, first, stubSink{})
	registry.Register(userID, second, stubSink{})

	// When one of two connections goes away
	registry.Unregister(userID, first)

	// Then the other stays registered
	req.Len(registry.SinksFor(userID), 1)
}

func TestRegistry_Last_Unregister_Removes_User_Entirely(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	sessionID := uuid.New()

	registry.Register(userID, sessionID, stubSink{})
	registry.Unregister(userID, sessionID)

	// Then the user key is gone, and lookups stay a normal empty result
	req.Empty(registry.Snapshot())
	req.Empty(registry.SinksFor(userID))
}

func TestRegistry_Unregister_Twice_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	sessionID := uuid.New()

	registry.Register(userID, sessionID, stubSink{})
	registry.Unregister(userID, sessionID)

	// A second unregister for the same pairing changes nothing
	registry.Unregister(userID, sessionID)
	req.Empty(registry.Snapshot())

	// Unregistering a user that was never registered is equally safe
	registry.Unregister(uuid.NewString(), uuid.New())
}

func TestRegistry_AllSinks_Spans_Users(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("alice", uuid.New(), stubSink{})
	registry.Register("bob", uuid.New(), stubSink{})
	registry.Register("bob", uuid.New(), stubSink{})

	req.Len(registry.AllSinks(), 3)
}

type expiringSink struct {
	stubSink
	deadline time.Time
	closed   bool
}

func (s *expiringSink) Deadline() time.Time { return s.deadline }

func (s *expiringSink) Close() { s.closed = true }

func TestRegistry_ExpiredSessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	now := time.Now()

	stale := &expiringSink{deadline: now.Add(-time.Minute)}
	fresh := &expiringSink{deadline: now.Add(time.Hour)}
	registry.Register("alice", uuid.New(), stale)
	registry.Register("bob", uuid.New(), fresh)
	// Sinks without a deadline are never reported
	registry.Register("clara", uuid.New(), stubSink{})

	expired := registry.ExpiredSessions(now)
	req.Len(expired, 1)
	req.Same(stale, expired[0].(*expiringSink))
}
