package domain

import "time"

// Reaction уникальна по тройке (message, user, emoji); повторное добавление
// снимает реакцию (toggle).
type Reaction struct {
	MessageID string    `db:"message_id"`
	UserID    int64     `db:"user_id"`
	Emoji     string    `db:"emoji"`
	CreatedAt time.Time `db:"created_at"`
}

// ReadReceipt — отметка «сообщение просмотрено», не путать с участниковским
// last_read_at (тот считает непрочитанные на уровне диалога).
type ReadReceipt struct {
	MessageID string    `db:"message_id"`
	UserID    int64     `db:"user_id"`
	ReadAt    time.Time `db:"read_at"`
}
