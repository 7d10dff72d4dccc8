package services

import (
	"context"

	"courier/contract"
	"courier/domain"

	"github.com/google/uuid"
)

// IChatService is the thin facade the transport layer talks to,
// keeping connection handlers free of orchestration detail.
type IChatService interface {
	Send(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.PrivateMessage, error)
	Conversation(userID, peerID string) ([]domain.PrivateMessage, error)
	// Attach registers the connection then queries the replay batch, in
	// that order, so a message arriving concurrently with the replay is
	// never lost. Returns the replay snapshot boundary and the batch.
	Attach(userID string, sessionID uuid.UUID, sink contract.EventSink) (uint64, []domain.PrivateMessage, error)
	Detach(userID string, sessionID uuid.UUID)
}

type ChatService struct {
	router   contract.IMessageRouter
	registry contract.IRegistry
}

func NewChatService(router contract.IMessageRouter, registry contract.IRegistry) *ChatService {
	return &ChatService{router: router, registry: registry}
}

func (s *ChatService) Send(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.PrivateMessage, error) {
	return s.router.Send(ctx, sender, receiverID, content)
}

func (s *ChatService) Conversation(userID, peerID string) ([]domain.PrivateMessage, error) {
	return s.router.Conversation(userID, peerID)
}

func (s *ChatService) Attach(userID string, sessionID uuid.UUID, sink contract.EventSink) (uint64, []domain.PrivateMessage, error) {
	// Register-before-replay: the registry must already reflect this
	// connection when the replay boundary is read.
	s.registry.Register(userID, sessionID, sink)

	boundary, messages, err := s.router.Replay(userID)
	if err != nil {
		s.registry.Unregister(userID, sessionID)
		return 0, nil, err
	}
	return boundary, messages, nil
}

func (s *ChatService) Detach(userID string, sessionID uuid.UUID) {
	s.registry.Unregister(userID, sessionID)
}
