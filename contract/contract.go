package contract

import (
	"context"
	"reflect"
	"time"

	"courier/domain"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound deliveries for one live connection.
// Consume must never block the router: a sink that cannot keep up
// drops or buffers on its own account.
type EventSink interface {
	Consume(ctx context.Context, msg domain.PrivateMessage) error
}

// IRegistry is the live mapping from a verified user id to that user's
// currently open connections. It is the single source of truth for
// "is this user reachable right now".
type IRegistry interface {
	Register(userID string, sessionID uuid.UUID, sink EventSink)
	Unregister(userID string, sessionID uuid.UUID)
	SinksFor(userID string) []EventSink
	AllSinks() []EventSink
	Snapshot() map[string]int
	ExpiredSessions(now time.Time) []ICloser
}

// IMessageRouter persists and delivers private messages.
type IMessageRouter interface {
	Send(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.PrivateMessage, error)
	Conversation(userID, peerID string) ([]domain.PrivateMessage, error)
	Replay(userID string) (uint64, []domain.PrivateMessage, error)
	Announce(ctx context.Context, sender domain.Identity, content string) error
}

// ICloser is a live session handle the expiry sweeper can force-close.
type ICloser interface {
	Deadline() time.Time
	Close()
}
