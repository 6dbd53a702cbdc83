package memstore

import (
	"context"
	"time"

	"github.com/unihub/chat-service/internal/domain"
)

// Представления по агрегатам: один Store раздаётся наружу в той же нарезке,
// что и репозитории postgres, и удовлетворяет интерфейсам сервисного слоя.

type Conversations struct{ s *Store }
type Participants struct{ s *Store }
type Messages struct{ s *Store }
type Reactions struct{ s *Store }
type Receipts struct{ s *Store }
type Users struct{ s *Store }

func (s *Store) Conversations() *Conversations { return &Conversations{s} }
func (s *Store) Participants() *Participants   { return &Participants{s} }
func (s *Store) Messages() *Messages           { return &Messages{s} }
func (s *Store) Reactions() *Reactions         { return &Reactions{s} }
func (s *Store) Receipts() *Receipts           { return &Receipts{s} }
func (s *Store) Users() *Users                 { return &Users{s} }

func (v *Conversations) CreateGroup(_ context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	return v.s.createGroup(conv, participants)
}

func (v *Conversations) CreateDirect(_ context.Context, creatorID, otherID int64) (*domain.Conversation, error) {
	return v.s.createDirect(creatorID, otherID)
}

func (v *Conversations) Get(_ context.Context, id string) (*domain.Conversation, error) {
	return v.s.getConversation(id)
}

func (v *Conversations) ListForUser(_ context.Context, userID int64) ([]domain.Conversation, error) {
	return v.s.listForUser(userID)
}

func (v *Conversations) FindDirect(_ context.Context, userA, userB int64) (*domain.Conversation, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if conv := v.s.findDirect(userA, userB); conv != nil {
		c := *conv
		return &c, nil
	}
	return nil, nil
}

func (v *Participants) Find(_ context.Context, conversationID string, userID int64) (*domain.Participant, error) {
	return v.s.findParticipant(conversationID, userID)
}

func (v *Participants) ListByConversation(_ context.Context, conversationID string) ([]domain.Participant, error) {
	return v.s.listParticipants(conversationID)
}

func (v *Participants) SetHidden(_ context.Context, conversationID string, userID int64, hidden bool) error {
	return v.s.setHidden(conversationID, userID, hidden)
}

func (v *Participants) SetLastRead(_ context.Context, conversationID string, userID int64) (time.Time, error) {
	return v.s.setLastRead(conversationID, userID)
}

func (v *Participants) CountUnread(_ context.Context, conversationID string, userID int64) (int64, error) {
	return v.s.countUnread(conversationID, userID)
}

func (v *Messages) Append(_ context.Context, m *domain.Message) error {
	return v.s.appendMessage(m)
}

func (v *Messages) Get(_ context.Context, id string) (*domain.Message, error) {
	return v.s.getMessage(id)
}

func (v *Messages) Page(_ context.Context, conversationID string, offset, limit int) ([]domain.Message, error) {
	return v.s.pageMessages(conversationID, offset, limit)
}

func (v *Messages) Search(_ context.Context, conversationID, query string) ([]domain.Message, error) {
	return v.s.searchMessages(conversationID, query)
}

func (v *Messages) Edit(_ context.Context, messageID string, requesterID int64, content string) (*domain.Message, error) {
	return v.s.editMessage(messageID, requesterID, content)
}

func (v *Messages) SoftDelete(_ context.Context, messageID string, requesterID int64) (*domain.Message, error) {
	return v.s.softDeleteMessage(messageID, requesterID)
}

func (v *Reactions) Toggle(_ context.Context, messageID string, userID int64, emoji string) (bool, error) {
	return v.s.toggleReaction(messageID, userID, emoji)
}

func (v *Reactions) ListByMessage(_ context.Context, messageID string) ([]domain.Reaction, error) {
	return v.s.reactionsByMessage(messageID)
}

func (v *Receipts) Record(_ context.Context, messageID string, userID int64, at time.Time) error {
	return v.s.recordReceipt(messageID, userID, at)
}

func (v *Receipts) ListByMessage(_ context.Context, messageID string) ([]domain.ReadReceipt, error) {
	return v.s.receiptsByMessage(messageID)
}

func (v *Users) Resolve(_ context.Context, id int64) (*domain.User, error) {
	return v.s.resolve(id)
}
