// Package memstore — потокобезопасное хранилище в памяти. Используется в
// storage.backend=memory (локальная разработка) и в тестах движка; состояние
// принадлежит одному Store и доступно только через его методы.
package memstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unihub/chat-service/internal/domain"
)

type Store struct {
	mu    sync.RWMutex
	nowFn func() time.Time
	last  time.Time

	users     map[int64]domain.User
	convs     map[string]*domain.Conversation
	parts     map[string]map[int64]*domain.Participant
	msgs      map[string]*domain.Message
	reactions map[string][]domain.Reaction
	receipts  map[string][]domain.ReadReceipt
}

func New() *Store {
	return &Store{
		nowFn:     time.Now,
		users:     make(map[int64]domain.User),
		convs:     make(map[string]*domain.Conversation),
		parts:     make(map[string]map[int64]*domain.Participant),
		msgs:      make(map[string]*domain.Message),
		reactions: make(map[string][]domain.Reaction),
		receipts:  make(map[string][]domain.ReadReceipt),
	}
}

// SetClock подменяет источник времени (тесты).
func (s *Store) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// now строго монотонен: два последовательных вызова никогда не дают одинаковый
// timestamp, порядок сообщений внутри диалога всегда тотальный. Вызывать под mu.
func (s *Store) now() time.Time {
	t := s.nowFn()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// --- users ---

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) resolve(id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// --- conversations ---

func (s *Store) createGroup(conv *domain.Conversation, participants []domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv.ID = uuid.NewString()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	saved := *conv
	s.convs[conv.ID] = &saved
	s.parts[conv.ID] = make(map[int64]*domain.Participant)
	for _, p := range participants {
		if err := s.addParticipant(conv.ID, p.UserID, p.IsAdmin, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createDirect(creatorID, otherID int64) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findDirect(creatorID, otherID); existing != nil {
		c := *existing
		return &c, nil
	}

	now := s.now()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   false,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[conv.ID] = conv
	s.parts[conv.ID] = make(map[int64]*domain.Participant)
	if err := s.addParticipant(conv.ID, creatorID, true, now); err != nil {
		return nil, err
	}
	if err := s.addParticipant(conv.ID, otherID, false, now); err != nil {
		return nil, err
	}

	c := *conv
	return &c, nil
}

func (s *Store) addParticipant(conversationID string, userID int64, isAdmin bool, at time.Time) error {
	rows := s.parts[conversationID]
	if _, ok := rows[userID]; ok {
		return domain.ErrAlreadyParticipant
	}
	rows[userID] = &domain.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		IsAdmin:        isAdmin,
		JoinedAt:       at,
	}
	return nil
}

func (s *Store) getConversation(id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	c := *conv
	return &c, nil
}

func (s *Store) listForUser(userID int64) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Conversation
	for id, conv := range s.convs {
		p, ok := s.parts[id][userID]
		if !ok || p.IsHidden {
			continue
		}
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// findDirect — вызывать под mu.
func (s *Store) findDirect(userA, userB int64) *domain.Conversation {
	for id, conv := range s.convs {
		if conv.IsGroup {
			continue
		}
		rows := s.parts[id]
		if _, okA := rows[userA]; !okA {
			continue
		}
		if _, okB := rows[userB]; okB {
			return conv
		}
	}
	return nil
}

// --- participants ---

func (s *Store) findParticipant(conversationID string, userID int64) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[conversationID][userID]
	if !ok {
		return nil, nil
	}
	row := *p
	return &row, nil
}

func (s *Store) listParticipants(conversationID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.parts[conversationID]
	out := make([]domain.Participant, 0, len(rows))
	for _, p := range rows {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *Store) setHidden(conversationID string, userID int64, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[conversationID][userID]
	if !ok {
		return domain.ErrNotAuthorized
	}
	p.IsHidden = hidden
	return nil
}

// setLastRead штампует отметку теми же часами, что и created_at сообщений:
// сравнение «строго позже last_read_at» в countUnread корректно только в
// пределах одного источника времени.
func (s *Store) setLastRead(conversationID string, userID int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[conversationID][userID]
	if !ok {
		return time.Time{}, domain.ErrNotAuthorized
	}
	t := s.now()
	p.LastReadAt = &t
	return t, nil
}

func (s *Store) countUnread(conversationID string, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return 0, domain.ErrConversationNotFound
	}
	since := conv.CreatedAt
	if p, ok := s.parts[conversationID][userID]; ok && p.LastReadAt != nil {
		since = *p.LastReadAt
	}

	var count int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && !m.IsDeleted && m.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

// --- messages ---

func (s *Store) appendMessage(m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[m.ConversationID]
	if !ok {
		return domain.ErrConversationNotFound
	}

	now := s.now()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	conv.UpdatedAt = now

	saved := *m
	s.msgs[m.ID] = &saved
	return nil
}

func (s *Store) getMessage(id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *Store) pageMessages(conversationID string, offset, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conversationMessages(conversationID)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(msgs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return msgs[offset:end], nil
}

func (s *Store) searchMessages(conversationID, query string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []domain.Message
	for _, m := range s.conversationMessages(conversationID) {
		if m.Content != nil && strings.Contains(strings.ToLower(*m.Content), needle) {
			out = append(out, m)
		}
	}
	return out, nil
}

// conversationMessages — неудалённые сообщения диалога, created_at DESC.
// Вызывать под mu.
func (s *Store) conversationMessages(conversationID string) []domain.Message {
	var out []domain.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) editMessage(messageID string, requesterID int64, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.msgs[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	if m.SenderID != requesterID {
		return nil, domain.ErrNotAuthorized
	}

	c := content
	m.Content = &c
	m.IsEdited = true
	m.UpdatedAt = s.now()

	copied := *m
	return &copied, nil
}

func (s *Store) softDeleteMessage(messageID string, requesterID int64) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.msgs[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	if m.SenderID != requesterID {
		return nil, domain.ErrNotAuthorized
	}

	m.IsDeleted = true
	m.Content = nil
	m.UpdatedAt = s.now()

	copied := *m
	return &copied, nil
}

// --- reactions ---

func (s *Store) toggleReaction(messageID string, userID int64, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.reactions[messageID]
	for i, r := range rows {
		if r.UserID == userID && r.Emoji == emoji {
			s.reactions[messageID] = append(rows[:i], rows[i+1:]...)
			return false, nil
		}
	}
	s.reactions[messageID] = append(rows, domain.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: s.now(),
	})
	return true, nil
}

func (s *Store) reactionsByMessage(messageID string) ([]domain.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Reaction, len(s.reactions[messageID]))
	copy(out, s.reactions[messageID])
	return out, nil
}

// --- receipts ---

func (s *Store) recordReceipt(messageID string, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.receipts[messageID] {
		if r.UserID == userID {
			return nil
		}
	}
	s.receipts[messageID] = append(s.receipts[messageID], domain.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    at,
	})
	return nil
}

func (s *Store) receiptsByMessage(messageID string) ([]domain.ReadReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReadReceipt, len(s.receipts[messageID]))
	copy(out, s.receipts[messageID])
	return out, nil
}
