package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"

	"github.com/unihub/chat-service/internal/domain"
	"github.com/unihub/chat-service/internal/memstore"
	"github.com/unihub/chat-service/internal/security"
	"github.com/unihub/chat-service/internal/service"
)

const (
	testSecret = "test-secret"
	testIssuer = "unihub-auth"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *service.ChatService) {
	t.Helper()

	store := memstore.New()
	store.PutUser(domain.User{ID: 1, DisplayName: "Alice"})
	store.PutUser(domain.User{ID: 2, DisplayName: "Bob"})
	store.PutUser(domain.User{ID: 3, DisplayName: "Carol"})

	hub := NewHub()
	svc := service.NewChatService(
		store.Conversations(), store.Participants(), store.Messages(),
		store.Reactions(), store.Receipts(), store.Users(), hub,
	)
	verifier := security.NewVerifier(testSecret, testIssuer, 30*time.Second)
	wsServer := NewServer(hub, svc, verifier, time.Second)

	r := chi.NewRouter()
	r.Get("/ws/conversations/{id}", wsServer.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func wsToken(t *testing.T, userID int64) string {
	t.Helper()
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.StandardClaims{
		Subject:   fmt.Sprint(userID),
		Issuer:    testIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func dialWS(t *testing.T, srv *httptest.Server, conversationID string, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/conversations/" + conversationID + "?access_token=" + wsToken(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

func TestHandleWSAuth(t *testing.T) {
	srv, svc := newWSTestServer(t)
	conv, err := svc.CreateConversation(context.Background(), 1, service.CreateConversationInput{ParticipantIDs: []int64{2}})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	resp, err := http.Get(srv.URL + "/ws/conversations/" + conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", resp.StatusCode)
	}

	// посторонний отсекается до upgrade
	resp, err = http.Get(srv.URL + "/ws/conversations/" + conv.ID + "?access_token=" + wsToken(t, 3))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider: status %d, want 403", resp.StatusCode)
	}
}

func TestHandleWSStateAndSend(t *testing.T) {
	srv, svc := newWSTestServer(t)
	conv, err := svc.CreateConversation(context.Background(), 1, service.CreateConversationInput{ParticipantIDs: []int64{2}})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	conn := dialWS(t, srv, conv.ID, 1)

	state := readFrame(t, conn)
	if state.Type != TypeState {
		t.Fatalf("first frame = %q, want %q", state.Type, TypeState)
	}

	if err := conn.WriteJSON(Message{Type: TypeSend, Payload: SendPayload{Content: "hello"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// отправитель получает и broadcast, и ack; порядок не важен
	var gotBroadcast, gotAck bool
	for i := 0; i < 2; i++ {
		frame := readFrame(t, conn)
		switch frame.Type {
		case service.KindMessage:
			gotBroadcast = true
		case TypeAck:
			raw, _ := json.Marshal(frame.Payload)
			var ack AckPayload
			if err := json.Unmarshal(raw, &ack); err != nil || ack.MessageID == "" {
				t.Fatalf("bad ack payload: %s", raw)
			}
			gotAck = true
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
	if !gotBroadcast || !gotAck {
		t.Fatalf("broadcast=%v ack=%v, want both", gotBroadcast, gotAck)
	}
}

func TestHandleWSFanOutToPeer(t *testing.T) {
	srv, svc := newWSTestServer(t)
	conv, err := svc.CreateConversation(context.Background(), 1, service.CreateConversationInput{ParticipantIDs: []int64{2}})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	sender := dialWS(t, srv, conv.ID, 1)
	peer := dialWS(t, srv, conv.ID, 2)
	readFrame(t, sender) // state
	readFrame(t, peer)   // state

	if err := sender.WriteJSON(Message{Type: TypeSend, Payload: SendPayload{Content: "ping"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, peer)
	if frame.Type != service.KindMessage {
		t.Fatalf("peer frame = %q, want %q", frame.Type, service.KindMessage)
	}
	if frame.Topic != service.ConversationTopic(conv.ID) {
		t.Fatalf("peer topic = %q", frame.Topic)
	}
}

func TestHandleWSTyping(t *testing.T) {
	srv, svc := newWSTestServer(t)
	conv, err := svc.CreateConversation(context.Background(), 1, service.CreateConversationInput{ParticipantIDs: []int64{2}})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	sender := dialWS(t, srv, conv.ID, 1)
	peer := dialWS(t, srv, conv.ID, 2)
	readFrame(t, sender)
	readFrame(t, peer)

	if err := sender.WriteJSON(Message{Type: TypeTyping, Payload: TypingPayload{IsTyping: true}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, peer)
	if frame.Type != service.KindTyping {
		t.Fatalf("peer frame = %q, want %q", frame.Type, service.KindTyping)
	}
}

// Хаб и read/write-циклы закрывают соединение независимо друг от друга:
// конкурентный Close не должен паниковать на повторном close канала.
func TestConnCloseConcurrent(t *testing.T) {
	up := websocket.Upgrader{}
	ready := make(chan *wsConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ready <- newWsConn(c, "conv-1", 1)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var conn *wsConn
	select {
	case conn = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server side connection not established")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Close()
		}()
	}
	wg.Wait()

	select {
	case <-conn.closed:
	default:
		t.Fatal("closed channel still open after Close")
	}
}
