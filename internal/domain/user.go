package domain

type User struct {
	ID          int64  `db:"id"`
	DisplayName string `db:"display_name"`
	Email       string `db:"email"`
}
