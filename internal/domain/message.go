package domain

import (
	"fmt"
	"time"
)

// MessageType — закрытый набор типов сообщений. Новые значения добавляются
// здесь и во всех switch по типу.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageText, MessageFile, MessageSystem:
		return MessageType(s), nil
	case "":
		return MessageText, nil
	default:
		return "", fmt.Errorf("%w: unknown message type %q", ErrValidation, s)
	}
}

type Message struct {
	ID             string      `db:"id"`
	ConversationID string      `db:"conversation_id"`
	SenderID       int64       `db:"sender_id"`
	Content        *string     `db:"content"` // nil после soft-delete
	Type           MessageType `db:"type"`
	FileURL        *string     `db:"file_url"`
	FileName       *string     `db:"file_name"`
	FileSize       *int64      `db:"file_size"`
	ReplyToID      *string     `db:"reply_to_id"`
	IsEdited       bool        `db:"is_edited"`
	IsDeleted      bool        `db:"is_deleted"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}
