package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"courier/contract"
	"courier/domain"
	"courier/errors"
	"courier/moderation"
	"courier/repositories"

	"github.com/samber/lo"
)

// RecipientResolver decides which live sinks a routed message reaches.
// Point-to-point delivery and broadcast are the same routing logic
// with different resolution strategies.
type RecipientResolver interface {
	Resolve(registry contract.IRegistry, receiverID string) []contract.EventSink
}

// DirectResolver targets the receiver's own connections only.
type DirectResolver struct{}

func (DirectResolver) Resolve(registry contract.IRegistry, receiverID string) []contract.EventSink {
	return registry.SinksFor(receiverID)
}

// BroadcastResolver targets every registered connection. This is the
// degenerate "everyone is the recipient" case used for announcements.
type BroadcastResolver struct{}

func (BroadcastResolver) Resolve(registry contract.IRegistry, _ string) []contract.EventSink {
	return registry.AllSinks()
}

// Router is the orchestrator for private messages: it validates and
// sanitizes content, persists through the message store, then resolves
// the recipient's live connections and enqueues delivery to each.
// Persistence success is a precondition for any delivery attempt, so
// the store is always a superset of what was ever delivered.
type Router struct {
	log              *slog.Logger
	repository       repositories.IMessageRepository
	registry         contract.IRegistry
	moderator        *moderation.Moderator
	resolver         RecipientResolver
	maxContentLength int
	replayLimit      int
}

func NewRouter(log *slog.Logger, repository repositories.IMessageRepository,
	registry contract.IRegistry, moderator *moderation.Moderator,
	maxContentLength, replayLimit int) *Router {
	return &Router{
		log:              log,
		repository:       repository,
		registry:         registry,
		moderator:        moderator,
		resolver:         DirectResolver{},
		maxContentLength: maxContentLength,
		replayLimit:      replayLimit,
	}
}

// Send routes one private message: validate, sanitize, persist,
// deliver, acknowledge. An offline receiver is not an error; the
// message stays retrievable through conversation queries and replay.
func (r *Router) Send(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.PrivateMessage, error) {
	if err := r.validateContent(content); err != nil {
		return domain.PrivateMessage{}, err
	}
	if strings.TrimSpace(receiverID) == "" {
		return domain.PrivateMessage{}, errors.ErrRecipientUnknown
	}

	if r.moderator != nil {
		content = r.moderator.Censor(content)
	}

	stored, err := r.repository.StoreMessage(sender.UserID, receiverID, content)
	if err != nil {
		r.log.Error("message persistence failed",
			"sender_id", sender.UserID,
			"receiver_id", receiverID,
			"error", err)
		return domain.PrivateMessage{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	message := repositories.ToPrivateMessage(stored)
	r.deliver(ctx, r.resolver.Resolve(r.registry, receiverID), message)
	return message, nil
}

// Announce pushes an ephemeral notice from the given identity to every
// registered connection, bypassing persistence. Announcements are not
// part of any conversation.
func (r *Router) Announce(ctx context.Context, sender domain.Identity, content string) error {
	if err := r.validateContent(content); err != nil {
		return err
	}
	message := domain.PrivateMessage{
		SenderID: sender.UserID,
		Content:  content,
	}
	r.deliver(ctx, BroadcastResolver{}.Resolve(r.registry, ""), message)
	return nil
}

func (r *Router) deliver(ctx context.Context, sinks []contract.EventSink, message domain.PrivateMessage) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, message); err != nil {
			// A failed enqueue never fails the send: the message is
			// durable and will surface on the recipient's next replay.
			r.log.Warn("delivery enqueue failed",
				"message_id", message.ID,
				"receiver_id", message.ReceiverID,
				"error", err)
		}
	}
}

// Conversation returns the full ordered history between two users,
// oldest first.
func (r *Router) Conversation(userID, peerID string) ([]domain.PrivateMessage, error) {
	if strings.TrimSpace(peerID) == "" {
		return nil, errors.ErrRecipientUnknown
	}
	messages, err := r.repository.GetConversation(userID, peerID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return lo.Map(messages, func(m repositories.DiskMessage, _ int) domain.PrivateMessage {
		return repositories.ToPrivateMessage(m)
	}), nil
}

// Replay produces the one-shot history batch for a freshly
// authenticated connection: the most recent messages involving the
// user, bounded by the configured replay limit, ordered oldest first
// by message id.
//
// The returned boundary is the store's high-water mark at the moment
// of the query. The session must be registered before Replay is called
// and must drop live deliveries with id <= boundary, which makes the
// replay batch and the live stream disjoint by construction.
func (r *Router) Replay(userID string) (uint64, []domain.PrivateMessage, error) {
	boundary, err := r.repository.LastMessageID()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	messages, err := r.repository.GetRecentForUser(userID, boundary, r.replayLimit)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	return boundary, lo.Map(messages, func(m repositories.DiskMessage, _ int) domain.PrivateMessage {
		return repositories.ToPrivateMessage(m)
	}), nil
}

func (r *Router) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrInvalidContent
	}
	if utf8.RuneCountInString(content) > r.maxContentLength {
		return errors.ErrInvalidContent
	}
	return nil
}
