package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"courier/contract"
	"courier/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session state machine: Connecting -> Authenticated -> Closed.
// Closed is terminal; no messages are processed in Connecting.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateClosed
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// Ping period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	_ contract.EventSink = (*Session)(nil)
	_ contract.ICloser   = (*Session)(nil)
)

// Session owns one live websocket connection, its verified identity
// and its outbound delivery queue. All writes to the transport go
// through the write pump goroutine; the router and the read loop only
// ever enqueue frames.
type Session struct {
	ID       uuid.UUID
	identity domain.Identity

	conn      *websocket.Conn
	log       *slog.Logger
	expiresAt time.Time

	state    atomic.Int32
	outbound chan ServerFrame
	done     chan struct{}

	// Highest message id covered by the replay batch. Live deliveries
	// at or below it are dropped: the replay already carries them, so
	// the two paths stay disjoint (see ChatService.Attach).
	replayBoundary uint64

	closeOnce sync.Once
	onClose   func(*Session)
	maxFrame  int64
}

func NewSession(conn *websocket.Conn, identity domain.Identity, expiresAt time.Time,
	bufferSize int, maxFrame int64, log *slog.Logger, onClose func(*Session)) *Session {
	s := &Session{
		ID:        uuid.New(),
		identity:  identity,
		conn:      conn,
		log:       log,
		expiresAt: expiresAt,
		outbound:  make(chan ServerFrame, bufferSize),
		done:      make(chan struct{}),
		onClose:   onClose,
		maxFrame:  maxFrame,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) Identity() domain.Identity { return s.identity }

func (s *Session) State() State { return State(s.state.Load()) }

// Deadline reports when the session's credential expires. The expiry
// sweeper force-closes sessions past this instant plus grace.
func (s *Session) Deadline() time.Time { return s.expiresAt }

// MarkAuthenticated records the replay snapshot boundary and moves the
// session to its steady state. Must be called after registration and
// before the write pump starts, so the boundary filter is in place for
// every frame that reaches the wire.
func (s *Session) MarkAuthenticated(replayBoundary uint64) {
	s.replayBoundary = replayBoundary
	s.state.Store(int32(StateAuthenticated))
}

// Consume implements contract.EventSink: it enqueues a delivery for
// the write pump. A closed session drops silently; a full buffer on a
// live session is logged as backpressure and the message is dropped,
// to never block the router. The message stays durable either way.
func (s *Session) Consume(ctx context.Context, msg domain.PrivateMessage) error {
	if s.State() == StateClosed {
		return nil
	}

	kind := KindNewPrivateMessage
	if msg.ID == 0 {
		kind = KindAnnouncement
	}
	frame := ServerFrame{Kind: kind, Message: &msg}

	select {
	case s.outbound <- frame:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("outbound buffer full, dropping delivery",
			"session_id", s.ID,
			"user_id", s.identity.UserID,
			"message_id", msg.ID)
		return nil
	}
}

// push enqueues a frame produced by the session's own read loop
// (acks, errors, conversation results). Unlike router deliveries it
// blocks until the write pump has room, providing natural
// backpressure on the requesting client.
func (s *Session) push(frame ServerFrame) {
	select {
	case s.outbound <- frame:
	case <-s.done:
	}
}

// Close is idempotent and always safe: it detaches the session from
// the presence registry, stops both pumps and closes the transport.
// Any delivery handed to a closed session is dropped, never queued.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.onClose != nil {
			s.onClose(s)
		}
		_ = s.conn.Close()
	})
}

// WritePump is the single writer to the transport. It first pushes the
// replay batch, then drains the outbound queue, dropping deliveries
// already covered by the replay boundary. Runs in its own goroutine.
func (s *Session) WritePump(history []domain.PrivateMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	if err := s.writeFrame(ServerFrame{Kind: KindPreviousMessages, Messages: history}); err != nil {
		return
	}

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			if s.coveredByReplay(frame) {
				continue
			}
			if err := s.writeFrame(frame); err != nil {
				s.log.Debug("write failed, closing session",
					"session_id", s.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) coveredByReplay(frame ServerFrame) bool {
	return frame.Kind == KindNewPrivateMessage &&
		frame.Message != nil &&
		frame.Message.ID <= s.replayBoundary
}

func (s *Session) writeFrame(frame ServerFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

// ReadPump consumes inbound frames until the peer goes away or a
// protocol violation occurs. Request-level failures are answered on
// the same connection and never end the loop.
func (s *Session) ReadPump(ctx context.Context, handle func(ctx context.Context, session *Session, frame ClientFrame)) {
	defer s.Close()

	s.conn.SetReadLimit(s.maxFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("unexpected close", "session_id", s.ID, "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if s.State() != StateAuthenticated {
			// No frame is processed outside the steady state.
			return
		}
		handle(ctx, s, frame)
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (user %s)", s.ID, s.identity.UserID)
}
