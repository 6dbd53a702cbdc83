package domain

import "time"

type Conversation struct {
	ID          string    `db:"id"`
	IsGroup     bool      `db:"is_group"`
	GroupName   *string   `db:"group_name"`
	GroupAvatar *string   `db:"group_avatar"`
	CreatedBy   int64     `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// DefaultGroupName подставляется, если групповой чат создан без названия.
const DefaultGroupName = "Untitled"
