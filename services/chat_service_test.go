package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"courier/contract"
	"courier/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	registered   []string
	unregistered []string
}

func (f *fakeRegistry) Register(userID string, _ uuid.UUID, _ contract.EventSink) {
	f.registered = append(f.registered, userID)
}

func (f *fakeRegistry) Unregister(userID string, _ uuid.UUID) {
	f.unregistered = append(f.unregistered, userID)
}

func (f *fakeRegistry) SinksFor(string) []contract.EventSink { return nil }

func (f *fakeRegistry) AllSinks() []contract.EventSink { return nil }

func (f *fakeRegistry) Snapshot() map[string]int { return nil }

func (f *fakeRegistry) ExpiredSessions(time.Time) []contract.ICloser { return nil }

type fakeRouter struct {
	replayErr       error
	replayBoundary  uint64
	replayedFor     []string
	registrySeen    func() int
	registeredCount []int
}

func (f *fakeRouter) Send(context.Context, domain.Identity, string, string) (domain.PrivateMessage, error) {
	return domain.PrivateMessage{}, nil
}

func (f *fakeRouter) Conversation(string, string) ([]domain.PrivateMessage, error) {
	return nil, nil
}

func (f *fakeRouter) Replay(userID string) (uint64, []domain.PrivateMessage, error) {
	f.replayedFor = append(f.replayedFor, userID)
	if f.registrySeen != nil {
		f.registeredCount = append(f.registeredCount, f.registrySeen())
	}
	return f.replayBoundary, nil, f.replayErr
}

func (f *fakeRouter) Announce(context.Context, domain.Identity, string) error { return nil }

type noopSink struct{}

func (noopSink) Consume(context.Context, domain.PrivateMessage) error { return nil }

func TestAttach_Registers_Before_Replaying(t *testing.T) {
	req := require.New(t)
	registry := &fakeRegistry{}
	router := &fakeRouter{replayBoundary: 7}
	// Observe the registry state at the exact moment of the replay call
	router.registrySeen = func() int { return len(registry.registered) }
	service := NewChatService(router, registry)

	boundary, _, err := service.Attach("alice", uuid.New(), noopSink{})

	req.NoError(err)
	req.Equal(uint64(7), boundary)
	req.Equal([]string{"alice"}, router.replayedFor)
	// The registration was already visible when the replay ran
	req.Equal([]int{1}, router.registeredCount)
	req.Empty(registry.unregistered)
}

func TestAttach_Rolls_Back_Registration_On_Replay_Failure(t *testing.T) {
	req := require.New(t)
	registry := &fakeRegistry{}
	router := &fakeRouter{replayErr: fmt.Errorf("store is down")}
	service := NewChatService(router, registry)

	_, _, err := service.Attach("alice", uuid.New(), noopSink{})

	req.Error(err)
	req.Equal([]string{"alice"}, registry.registered)
	req.Equal([]string{"alice"}, registry.unregistered)
}

func TestDetach_Unregisters(t *testing.T) {
	req := require.New(t)
	registry := &fakeRegistry{}
	service := NewChatService(&fakeRouter{}, registry)

	service.Detach("alice", uuid.New())
	req.Equal([]string{"alice"}, registry.unregistered)
}
