package ws

import (
	"strings"
	"sync"

	"github.com/unihub/chat-service/internal/metrics"
	"github.com/unihub/chat-service/internal/service"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	UserID() int64
	ConversationID() string
}

// Hub держит подписки по диалогам и реализует service.Broadcaster:
// движок публикует в топик, hub раскладывает по подключениям.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // conversationID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.ConversationID()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.ConversationID()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.ConversationID()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.ConversationID())
		}
	}
}

// Publish — best-effort fan-out; медленное или мёртвое подключение никогда
// не превращается в ошибку вызвавшей мутации.
func (h *Hub) Publish(topic string, payload any) {
	conversationID, kind, ok := splitTopic(topic)
	if !ok {
		return
	}
	h.Broadcast(conversationID, Message{
		Type:    kind,
		Topic:   topic,
		Payload: payload,
	})
}

func (h *Hub) Broadcast(conversationID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[conversationID]; ok {
		for c := range rs {
			if err := c.Send(msg); err != nil {
				metrics.BroadcastsDropped.Inc()
			}
		}
	}
}

// splitTopic разбирает conversation/{id}[/{kind}]; kind по умолчанию message.
func splitTopic(topic string) (conversationID, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != "conversation" || parts[1] == "" {
		return "", "", false
	}
	kind = service.KindMessage
	if len(parts) >= 3 && parts[2] != "" {
		kind = parts[2]
	}
	return parts[1], kind, true
}
