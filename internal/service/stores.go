package service

import (
	"context"
	"time"

	"github.com/unihub/chat-service/internal/domain"
)

// Интерфейсы хранилищ объявлены на стороне потребителя (ChatService);
// реализации — internal/postgres и internal/memstore.

type ConversationStore interface {
	// CreateGroup создаёт диалог и всех участников в одной транзакции.
	CreateGroup(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error
	// CreateDirect идемпотентен: возвращает существующий 1:1 диалог пары,
	// если он уже есть; гонка параллельных созданий сериализуется в хранилище.
	CreateDirect(ctx context.Context, creatorID, otherID int64) (*domain.Conversation, error)
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	// ListForUser — диалоги с нескрытым участием, updated_at DESC.
	ListForUser(ctx context.Context, userID int64) ([]domain.Conversation, error)
	FindDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, error)
}

type ParticipantStore interface {
	// Find возвращает (nil, nil), если строки участия нет.
	Find(ctx context.Context, conversationID string, userID int64) (*domain.Participant, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Participant, error)
	SetHidden(ctx context.Context, conversationID string, userID int64, hidden bool) error
	// SetLastRead штампует отметку часами хранилища (теми же, что created_at
	// сообщений) и возвращает её; иначе skew часов ломает счётчик непрочитанных.
	SetLastRead(ctx context.Context, conversationID string, userID int64) (time.Time, error)
	// CountUnread — сообщения строго позже last_read_at (или created_at диалога,
	// если участник ни разу не читал), без удалённых.
	CountUnread(ctx context.Context, conversationID string, userID int64) (int64, error)
}

type MessageStore interface {
	// Append сохраняет сообщение и двигает updated_at диалога в одной транзакции.
	Append(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, id string) (*domain.Message, error)
	// Page — неудалённые сообщения, created_at DESC.
	Page(ctx context.Context, conversationID string, offset, limit int) ([]domain.Message, error)
	Search(ctx context.Context, conversationID, query string) ([]domain.Message, error)
	// Edit и SoftDelete атомарно проверяют авторство.
	Edit(ctx context.Context, messageID string, requesterID int64, content string) (*domain.Message, error)
	SoftDelete(ctx context.Context, messageID string, requesterID int64) (*domain.Message, error)
}

type ReactionStore interface {
	// Toggle: есть строка (message, user, emoji) — снять, нет — поставить.
	Toggle(ctx context.Context, messageID string, userID int64, emoji string) (added bool, err error)
	ListByMessage(ctx context.Context, messageID string) ([]domain.Reaction, error)
}

type ReceiptStore interface {
	Record(ctx context.Context, messageID string, userID int64, at time.Time) error
	ListByMessage(ctx context.Context, messageID string) ([]domain.ReadReceipt, error)
}

// UserDirectory — внешний справочник пользователей (таблица auth-сервиса).
type UserDirectory interface {
	Resolve(ctx context.Context, id int64) (*domain.User, error)
}
