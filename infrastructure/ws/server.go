package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"courier/auth"
	"courier/services"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Server hosts the real-time endpoint. The bearer credential is
// carried by the upgrade request itself (Authorization header or token
// query parameter): an absent or invalid credential rejects the
// connection before the upgrade, so no message kind is ever accepted
// from an unauthenticated peer.
type Server struct {
	log         *slog.Logger
	verifier    auth.Verifier
	chatService services.IChatService
	upgrader    websocket.Upgrader
	bufferSize  int
	maxFrame    int64
}

func NewServer(log *slog.Logger, verifier auth.Verifier, chatService services.IChatService,
	bufferSize int, maxFrame int64, handshakeTimeout time.Duration) *Server {
	return &Server{
		log:         log,
		verifier:    verifier,
		chatService: chatService,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			// Browser clients are expected from any origin; identity
			// comes from the token, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
		maxFrame:   maxFrame,
	}
}

// Register mounts the real-time endpoint on the echo application.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/ws", s.HandleConnection)
}

// HandleConnection runs the whole lifecycle of one connection:
// verify, upgrade, register-then-replay, then the two pumps until the
// peer disconnects. It blocks for the lifetime of the connection.
func (s *Server) HandleConnection(c echo.Context) error {
	identity, expiresAt, err := s.verifier.Verify(bearerToken(c.Request()))
	if err != nil {
		s.log.Warn("rejected connection", "remote", c.RealIP(), "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		return nil
	}

	session := NewSession(conn, identity, expiresAt, s.bufferSize, s.maxFrame, s.log, func(closing *Session) {
		s.chatService.Detach(closing.identity.UserID, closing.ID)
		s.log.Info("session closed", "session_id", closing.ID, "user_id", closing.identity.UserID)
	})

	// Register-before-replay: registration first so a message arriving
	// concurrently with the replay query is enqueued live rather than
	// lost. The boundary keeps the two paths disjoint.
	boundary, history, err := s.chatService.Attach(identity.UserID, session.ID, session)
	if err != nil {
		s.log.Error("history replay failed", "user_id", identity.UserID, "error", err)
		_ = conn.WriteJSON(errorFrame(err))
		_ = conn.Close()
		return nil
	}
	session.MarkAuthenticated(boundary)

	s.log.Info("session authenticated",
		"session_id", session.ID,
		"user_id", identity.UserID,
		"replayed", len(history))

	go session.WritePump(history)
	session.ReadPump(c.Request().Context(), s.handleFrame)
	return nil
}

// handleFrame dispatches one inbound request from an authenticated
// session. Request-level errors are pushed back on the same
// connection; they never close it.
func (s *Server) handleFrame(ctx context.Context, session *Session, frame ClientFrame) {
	switch frame.Kind {
	case KindSendPrivate:
		message, err := s.chatService.Send(ctx, session.Identity(), frame.ReceiverID, frame.Content)
		if err != nil {
			session.push(errorFrame(err))
			return
		}
		session.push(ServerFrame{Kind: KindAck, Message: &message})

	case KindGetConversation:
		messages, err := s.chatService.Conversation(session.Identity().UserID, frame.PeerID)
		if err != nil {
			session.push(errorFrame(err))
			return
		}
		session.push(ServerFrame{Kind: KindConversation, PeerID: frame.PeerID, Messages: messages})

	default:
		session.push(ServerFrame{Kind: KindError, Code: CodeBadFrame,
			Error: "unknown frame kind " + frame.Kind})
	}
}

// bearerToken extracts the credential from the upgrade request:
// Authorization header first, token query parameter as the fallback
// for browser websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
