package domain

import "time"

// Participant — членство пользователя в диалоге. Скрытие (IsHidden) не удаляет
// строку: диалог остаётся видимым остальным участникам.
type Participant struct {
	ConversationID string     `db:"conversation_id"`
	UserID         int64      `db:"user_id"`
	IsAdmin        bool       `db:"is_admin"`
	IsHidden       bool       `db:"is_hidden"`
	JoinedAt       time.Time  `db:"joined_at"`
	LastReadAt     *time.Time `db:"last_read_at"` // nil — ни разу не читал
}
