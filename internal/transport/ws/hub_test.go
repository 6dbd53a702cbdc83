package ws

import (
	"errors"
	"sync"
	"testing"

	"github.com/unihub/chat-service/internal/service"
)

type fakeConn struct {
	mu             sync.Mutex
	userID         int64
	conversationID string
	got            []Message
	failSend       bool
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.got = append(c.got, msg)
	return nil
}

func (c *fakeConn) Close() error           { return nil }
func (c *fakeConn) UserID() int64          { return c.userID }
func (c *fakeConn) ConversationID() string { return c.conversationID }

func (c *fakeConn) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.got))
	copy(out, c.got)
	return out
}

func TestSplitTopic(t *testing.T) {
	cases := []struct {
		topic string
		id    string
		kind  string
		ok    bool
	}{
		{"conversation/abc", "abc", service.KindMessage, true},
		{"conversation/abc/typing", "abc", service.KindTyping, true},
		{"conversation/abc/read", "abc", service.KindRead, true},
		{"conversation/", "", "", false},
		{"rooms/abc", "", "", false},
		{"garbage", "", "", false},
	}
	for _, tc := range cases {
		id, kind, ok := splitTopic(tc.topic)
		if ok != tc.ok || id != tc.id || kind != tc.kind {
			t.Fatalf("splitTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.topic, id, kind, ok, tc.id, tc.kind, tc.ok)
		}
	}
}

func TestPublishFansOutToConversation(t *testing.T) {
	hub := NewHub()
	a := &fakeConn{userID: 1, conversationID: "c1"}
	b := &fakeConn{userID: 2, conversationID: "c1"}
	other := &fakeConn{userID: 3, conversationID: "c2"}
	hub.Add(a)
	hub.Add(b)
	hub.Add(other)

	hub.Publish(service.ConversationTopic("c1"), "payload")

	if len(a.received()) != 1 || len(b.received()) != 1 {
		t.Fatalf("participants did not receive broadcast: a=%d b=%d", len(a.received()), len(b.received()))
	}
	if len(other.received()) != 0 {
		t.Fatalf("foreign conversation received broadcast")
	}
	if got := a.received()[0]; got.Type != service.KindMessage || got.Topic != "conversation/c1" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestPublishSubTopicKeepsKind(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{userID: 1, conversationID: "c1"}
	hub.Add(c)

	hub.Publish(service.SubTopic("c1", service.KindTyping), "payload")

	msgs := c.received()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Type != service.KindTyping {
		t.Fatalf("kind lost: %q", msgs[0].Type)
	}
}

func TestRemoveStopsDelivery(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{userID: 1, conversationID: "c1"}
	hub.Add(c)
	hub.Remove(c)

	hub.Publish(service.ConversationTopic("c1"), "payload")
	if len(c.received()) != 0 {
		t.Fatalf("removed connection still receives broadcasts")
	}
}

func TestBrokenConnDoesNotBlockOthers(t *testing.T) {
	hub := NewHub()
	bad := &fakeConn{userID: 1, conversationID: "c1", failSend: true}
	good := &fakeConn{userID: 2, conversationID: "c1"}
	hub.Add(bad)
	hub.Add(good)

	hub.Publish(service.ConversationTopic("c1"), "payload")
	if len(good.received()) != 1 {
		t.Fatalf("healthy connection starved by broken one")
	}
}

func TestPublishUnknownTopicIgnored(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{userID: 1, conversationID: "c1"}
	hub.Add(c)

	hub.Publish("bogus/topic", "payload")
	if len(c.received()) != 0 {
		t.Fatalf("malformed topic should be dropped")
	}
}
