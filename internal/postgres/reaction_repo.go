package postgres

import (
	"context"

	"github.com/unihub/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReactionRepository struct {
	db *pgxpool.Pool
}

func NewReactionRepository(db *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Toggle: сначала пробуем снять реакцию; если снимать нечего — ставим.
// Уникальный индекс по тройке сериализует гонки параллельных toggle.
func (r *ReactionRepository) Toggle(ctx context.Context, messageID string, userID int64, emoji string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3
	`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}

	added := false
	if cmd.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_reactions (message_id, user_id, emoji)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, messageID, userID, emoji); err != nil {
			return false, err
		}
		added = true
	}

	return added, tx.Commit(ctx)
}

func (r *ReactionRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.Reaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at ASC, user_id ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		var re domain.Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, rows.Err()
}
