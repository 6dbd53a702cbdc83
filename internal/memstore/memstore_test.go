package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unihub/chat-service/internal/domain"
)

func newStore() *Store {
	s := New()
	s.PutUser(domain.User{ID: 1, DisplayName: "Alice"})
	s.PutUser(domain.User{ID: 2, DisplayName: "Bob"})
	return s
}

func TestMonotonicClock(t *testing.T) {
	s := New()
	// замороженные часы: без монотонной поправки все метки совпали бы
	frozen := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return frozen })

	s.mu.Lock()
	a := s.now()
	b := s.now()
	c := s.now()
	s.mu.Unlock()

	if !b.After(a) || !c.After(b) {
		t.Fatalf("clock not strictly monotonic: %v %v %v", a, b, c)
	}
}

func TestCreateDirectReturnsExisting(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	first, err := s.Conversations().CreateDirect(ctx, 1, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.Conversations().CreateDirect(ctx, 2, 1)
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("got new conversation for same pair: %s != %s", second.ID, first.ID)
	}
}

func TestCreateDirectConcurrent(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			conv, err := s.Conversations().CreateDirect(ctx, 1, 2)
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent creates produced different conversations")
		}
	}
}

func TestAppendTouchesConversation(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	content := "hi"
	msg := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: &content, Type: domain.MessageText}
	if err := s.Messages().Append(ctx, msg); err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("append did not assign id")
	}

	reloaded, _ := s.Conversations().Get(ctx, conv.ID)
	if !reloaded.UpdatedAt.After(conv.UpdatedAt) {
		t.Fatalf("conversation not touched: %v <= %v", reloaded.UpdatedAt, conv.UpdatedAt)
	}
}

func TestEditAndDeleteRequireSender(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	content := "mine"
	msg := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: &content, Type: domain.MessageText}
	_ = s.Messages().Append(ctx, msg)

	if _, err := s.Messages().Edit(ctx, msg.ID, 2, "hijack"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("foreign edit: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := s.Messages().SoftDelete(ctx, msg.ID, 2); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("foreign delete: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := s.Messages().Edit(ctx, "missing", 1, "x"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("missing edit: expected ErrMessageNotFound, got %v", err)
	}

	deleted, err := s.Messages().SoftDelete(ctx, msg.ID, 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Content != nil || !deleted.IsDeleted {
		t.Fatalf("soft delete did not clear content: %+v", deleted)
	}
}

func TestToggleReactionConcurrent(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	content := "react"
	msg := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: &content, Type: domain.MessageText}
	_ = s.Messages().Append(ctx, msg)

	// чётное число переключений возвращает в исходное состояние
	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Reactions().Toggle(ctx, msg.ID, 2, "🔥"); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	rs, err := s.Reactions().ListByMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("even toggles must cancel out, got %d reactions", len(rs))
	}
}

func TestRecordReceiptIdempotent(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	content := "seen"
	msg := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: &content, Type: domain.MessageText}
	_ = s.Messages().Append(ctx, msg)

	at := time.Now()
	if err := s.Receipts().Record(ctx, msg.ID, 2, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Receipts().Record(ctx, msg.ID, 2, at.Add(time.Minute)); err != nil {
		t.Fatalf("repeat record: %v", err)
	}

	rs, _ := s.Receipts().ListByMessage(ctx, msg.ID)
	if len(rs) != 1 {
		t.Fatalf("expected single receipt, got %d", len(rs))
	}
}

func TestCountUnread(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	for _, text := range []string{"a", "b", "c"} {
		c := text
		_ = s.Messages().Append(ctx, &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: &c, Type: domain.MessageText})
	}

	n, err := s.Participants().CountUnread(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("unread=%d, want 3", n)
	}

	readAt, err := s.Participants().SetLastRead(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("set last read: %v", err)
	}
	if readAt.IsZero() {
		t.Fatal("expected stamped last_read_at")
	}
	n, _ = s.Participants().CountUnread(ctx, conv.ID, 2)
	if n != 0 {
		t.Fatalf("unread=%d after read, want 0", n)
	}
}

// Отметка прочтения ставится часами хранилища, а не часами вызывающего:
// SetLastRead всегда позже created_at последнего сообщения.
func TestSetLastReadUsesStoreClock(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	c := "hello"
	msg := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: &c, Type: domain.MessageText}
	if err := s.Messages().Append(ctx, msg); err != nil {
		t.Fatalf("append: %v", err)
	}

	readAt, err := s.Participants().SetLastRead(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("set last read: %v", err)
	}
	if !readAt.After(msg.CreatedAt) {
		t.Fatalf("last_read_at=%v not after message created_at=%v", readAt, msg.CreatedAt)
	}
}

func TestSetHiddenUnknownParticipant(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	conv, _ := s.Conversations().CreateDirect(ctx, 1, 2)
	if err := s.Participants().SetHidden(ctx, conv.ID, 99, true); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}
