package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/unihub/chat-service/internal/domain"
	"github.com/unihub/chat-service/internal/metrics"
	"github.com/unihub/chat-service/internal/security"
	"github.com/unihub/chat-service/internal/service"
)

// ChatEngine — то, что транспорту нужно от движка.
type ChatEngine interface {
	GetConversation(ctx context.Context, userID int64, conversationID string) (*service.ConversationView, error)
	SendMessage(ctx context.Context, senderID int64, in service.SendMessageInput) (*service.MessageView, error)
	Typing(ctx context.Context, userID int64, conversationID string, isTyping bool) error
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	engine   ChatEngine
	verifier *security.Verifier

	pingEvery time.Duration
}

func NewServer(hub *Hub, engine ChatEngine, verifier *security.Verifier, pingEvery time.Duration) *Server {
	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}
	return &Server{
		hub:      hub,
		engine:   engine,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: pingEvery,
	}
}

// WS endpoint: GET /ws/conversations/{id}?access_token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if token == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	claims, err := s.verifier.ParseAndValidate(token)
	if err != nil {
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}

	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	// Проверка участия до upgrade: посторонний не подписывается на топик.
	state, err := s.engine.GetConversation(r.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthorized) || errors.Is(err, domain.ErrConversationNotFound) {
			http.Error(w, "not authorized", http.StatusForbidden)
			return
		}
		slog.Error("ws conversation state failed", "conversation", conversationID, "user", userID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, conversationID, userID)
	s.hub.Add(c)
	metrics.WSConnections.Inc()

	if err := c.Send(Message{Type: TypeState, Payload: state}); err != nil {
		slog.Warn("ws send initial state failed", "conversation", conversationID, "user", userID, "err", err)
	}

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c)
	metrics.WSConnections.Dec()

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conversation", conversationID, "user", userID, "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeSend:
			var p SendPayload
			if decode(msg.Payload, &p) != nil {
				continue
			}
			s.handleSend(ctx, c, p)
		case TypeTyping:
			var p TypingPayload
			if decode(msg.Payload, &p) != nil {
				continue
			}
			if err := s.engine.Typing(ctx, c.userID, c.conversationID, p.IsTyping); err != nil {
				slog.Debug("ws typing failed", "conversation", c.conversationID, "user", c.userID, "err", err)
			}
		default:
			// ignore
		}
	}
}

func (s *Server) handleSend(ctx context.Context, c *wsConn, p SendPayload) {
	msgType, err := domain.ParseMessageType(p.Type)
	if err != nil {
		_ = c.Send(Message{Type: TypeAck, Payload: ErrorPayload{Error: "unknown message type"}})
		return
	}

	// Broadcast всем подписчикам делает движок; здесь только лёгкий ack
	// отправителю, чтобы клиент снял pending.
	view, err := s.engine.SendMessage(ctx, c.userID, service.SendMessageInput{
		ConversationID: c.conversationID,
		Content:        p.Content,
		Type:           msgType,
		FileURL:        p.FileURL,
		FileName:       p.FileName,
		FileSize:       p.FileSize,
		ReplyToID:      p.ReplyToID,
	})
	if err != nil {
		slog.Warn("ws send failed", "conversation", c.conversationID, "user", c.userID, "err", err)
		_ = c.Send(Message{Type: TypeAck, Payload: ErrorPayload{Error: "send failed"}})
		return
	}
	_ = c.Send(Message{Type: TypeAck, Payload: AckPayload{MessageID: view.ID}})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

func decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn           *websocket.Conn
	conversationID string
	userID         int64
	sendMu         chan struct{}
	closed         chan struct{}
	closeOnce      sync.Once
}

func newWsConn(c *websocket.Conn, conversationID string, userID int64) *wsConn {
	return &wsConn{
		conn:           c,
		conversationID: conversationID,
		userID:         userID,
		sendMu:         make(chan struct{}, 1),
		closed:         make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

// Close безопасен при конкурентных вызовах: хаб и read/write-циклы могут
// закрывать соединение одновременно.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

func (c *wsConn) UserID() int64          { return c.userID }
func (c *wsConn) ConversationID() string { return c.conversationID }
