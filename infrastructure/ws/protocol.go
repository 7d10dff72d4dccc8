package ws

import (
	gerrors "errors"

	"courier/domain"
	"courier/errors"
)

// Inbound frame kinds accepted on an authenticated connection.
const (
	KindSendPrivate     = "send_private"
	KindGetConversation = "get_conversation"
)

// Outbound frame kinds.
const (
	KindAck               = "ack"
	KindNewPrivateMessage = "new_private_message"
	KindPreviousMessages  = "previous_messages"
	KindConversation      = "conversation"
	KindAnnouncement      = "announcement"
	KindError             = "error"
)

// Request-level error codes carried on error frames. The connection
// stays open after any of these.
const (
	CodeInvalidContent   = "invalid_content"
	CodeStorageError     = "storage_error"
	CodeRecipientUnknown = "recipient_unknown"
	CodeBadFrame         = "bad_frame"
)

// ClientFrame is one inbound request from the client.
type ClientFrame struct {
	Kind       string `json:"kind"`
	ReceiverID string `json:"receiver_id,omitempty"`
	PeerID     string `json:"peer_id,omitempty"`
	Content    string `json:"content,omitempty"`
}

// ServerFrame is one outbound event pushed to the client.
type ServerFrame struct {
	Kind     string                  `json:"kind"`
	Message  *domain.PrivateMessage  `json:"message,omitempty"`
	Messages []domain.PrivateMessage `json:"messages,omitempty"`
	PeerID   string                  `json:"peer_id,omitempty"`
	Code     string                  `json:"code,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// errorFrame maps a request-level failure to its wire representation.
// Storage internals are never leaked: the client sees a generic
// failure string while details go to the server log only.
func errorFrame(err error) ServerFrame {
	frame := ServerFrame{Kind: KindError}
	switch {
	case gerrors.Is(err, errors.ErrInvalidContent):
		frame.Code = CodeInvalidContent
		frame.Error = errors.ErrInvalidContent.Error()
	case gerrors.Is(err, errors.ErrRecipientUnknown):
		frame.Code = CodeRecipientUnknown
		frame.Error = errors.ErrRecipientUnknown.Error()
	case gerrors.Is(err, errors.ErrStorage):
		frame.Code = CodeStorageError
		frame.Error = "message could not be stored"
	default:
		frame.Code = CodeBadFrame
		frame.Error = "malformed request"
	}
	return frame
}
