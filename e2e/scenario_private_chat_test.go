package e2e

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"courier/infrastructure/ws"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// PrivateChatSuite runs against a live server instance. Set SERVER_ADDR
// to enable it, e.g. SERVER_ADDR=localhost:8080 go test ./e2e/...
type PrivateChatSuite struct {
	suite.Suite
	Config Config
}

func TestPrivateChatSuite(t *testing.T) {
	if os.Getenv("SERVER_ADDR") == "" {
		t.Skip("skip e2e suite: SERVER_ADDR is not set")
	}
	suite.Run(t, new(PrivateChatSuite))
}

// SetupSuite loads the environment configuration before running tests
func (s *PrivateChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// step prints a colorized header for a test step in logs
func (s *PrivateChatSuite) step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

type account struct {
	Token  string
	UserID string
}

func (s *PrivateChatSuite) registerUser(label string) account {
	body, err := json.Marshal(map[string]string{
		"email":         fmt.Sprintf("%s-%s@example.com", label, uuid.NewString()),
		"display_label": label,
		"password":      "ComplexPass123!",
	})
	s.Require().NoError(err)

	resp, err := http.Post(
		fmt.Sprintf("http://%s/auth/register", s.Config.ServerAddr),
		"application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var payload struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&payload))
	s.Require().NotEmpty(payload.Token)
	return account{Token: payload.Token, UserID: s.userIDFromToken(payload.Token)}
}

// userIDFromToken reads the user id claim straight out of the JWT
// payload. The client holds the token anyway, no extra endpoint needed.
func (s *PrivateChatSuite) userIDFromToken(token string) string {
	parts := strings.Split(token, ".")
	s.Require().Len(parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	s.Require().NoError(err)

	var claims struct {
		UserID string `json:"user_id"`
	}
	s.Require().NoError(json.Unmarshal(raw, &claims))
	s.Require().NotEmpty(claims.UserID)
	return claims.UserID
}

func (s *PrivateChatSuite) dial(token string) (*websocket.Conn, ws.ServerFrame) {
	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.ServerAddr, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	var history ws.ServerFrame
	s.Require().NoError(s.readFrame(conn, &history))
	s.Require().Equal(ws.KindPreviousMessages, history.Kind)
	return conn, history
}

func (s *PrivateChatSuite) readFrame(conn *websocket.Conn, frame *ws.ServerFrame) error {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	err := conn.ReadJSON(frame)
	if err == nil && s.Config.DebugJSON {
		dump, _ := json.MarshalIndent(frame, "", "  ")
		s.T().Logf("frame: %s", dump)
	}
	return err
}

func (s *PrivateChatSuite) TestLiveExchange() {
	s.step("live exchange between two connected users")
	alice := s.registerUser("alice")
	bob := s.registerUser("bob")

	aliceConn, aliceHistory := s.dial(alice.Token)
	bobConn, _ := s.dial(bob.Token)
	s.Empty(aliceHistory.Messages)

	s.Require().NoError(bobConn.WriteJSON(ws.ClientFrame{
		Kind:       ws.KindSendPrivate,
		ReceiverID: alice.UserID,
		Content:    "hello alice",
	}))

	var ack ws.ServerFrame
	s.Require().NoError(s.readFrame(bobConn, &ack))
	s.Require().Equal(ws.KindAck, ack.Kind)
	s.Equal(bob.UserID, ack.Message.SenderID)
	s.NotZero(ack.Message.ID)

	var delivery ws.ServerFrame
	s.Require().NoError(s.readFrame(aliceConn, &delivery))
	s.Equal(ws.KindNewPrivateMessage, delivery.Kind)
	s.Equal("hello alice", delivery.Message.Content)
	s.Equal(bob.UserID, delivery.Message.SenderID)
}

func (s *PrivateChatSuite) TestOfflineDeliveryViaReplay() {
	s.step("offline recipient catches up through history")
	alice := s.registerUser("alice")
	carol := s.registerUser("carol")

	aliceConn, _ := s.dial(alice.Token)
	s.Require().NoError(aliceConn.WriteJSON(ws.ClientFrame{
		Kind:       ws.KindSendPrivate,
		ReceiverID: carol.UserID,
		Content:    "read this later",
	}))
	var ack ws.ServerFrame
	s.Require().NoError(s.readFrame(aliceConn, &ack))
	s.Require().Equal(ws.KindAck, ack.Kind)

	// Carol was never connected: the message must surface in her
	// history frame on first connect.
	_, history := s.dial(carol.Token)
	s.Require().NotEmpty(history.Messages)
	last := history.Messages[len(history.Messages)-1]
	s.Equal("read this later", last.Content)
	s.Equal(alice.UserID, last.SenderID)
}

func (s *PrivateChatSuite) TestConversationQuery() {
	s.step("conversation query returns ordered history")
	alice := s.registerUser("alice")
	dave := s.registerUser("dave")

	aliceConn, _ := s.dial(alice.Token)
	daveConn, _ := s.dial(dave.Token)

	for _, content := range []string{"one", "two"} {
		s.Require().NoError(aliceConn.WriteJSON(ws.ClientFrame{
			Kind:       ws.KindSendPrivate,
			ReceiverID: dave.UserID,
			Content:    content,
		}))
		var ack ws.ServerFrame
		s.Require().NoError(s.readFrame(aliceConn, &ack))
		s.Require().Equal(ws.KindAck, ack.Kind)
	}

	s.Require().NoError(daveConn.WriteJSON(ws.ClientFrame{
		Kind:   ws.KindGetConversation,
		PeerID: alice.UserID,
	}))

	// Live deliveries may interleave ahead of the conversation frame.
	var conv ws.ServerFrame
	for {
		s.Require().NoError(s.readFrame(daveConn, &conv))
		if conv.Kind == ws.KindConversation {
			break
		}
		s.Require().Equal(ws.KindNewPrivateMessage, conv.Kind)
	}
	s.Require().Len(conv.Messages, 2)
	s.Equal("one", conv.Messages[0].Content)
	s.Equal("two", conv.Messages[1].Content)
}
