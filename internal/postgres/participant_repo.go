package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/unihub/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticipantRepository struct {
	db *pgxpool.Pool
}

func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Find(ctx context.Context, conversationID string, userID int64) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.QueryRow(ctx, `
		SELECT conversation_id, user_id, is_admin, is_hidden, joined_at, last_read_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID).
		Scan(&p.ConversationID, &p.UserID, &p.IsAdmin, &p.IsHidden, &p.JoinedAt, &p.LastReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, user_id, is_admin, is_hidden, joined_at, last_read_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY joined_at ASC, user_id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.IsAdmin, &p.IsHidden, &p.JoinedAt, &p.LastReadAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ParticipantRepository) SetHidden(ctx context.Context, conversationID string, userID int64, hidden bool) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE conversation_participants SET is_hidden = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, hidden)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotAuthorized
	}
	return nil
}

// SetLastRead штампует отметку часами Postgres: created_at сообщений тоже
// ставит база, поэтому сравнение в CountUnread не зависит от часов сервиса.
func (r *ParticipantRepository) SetLastRead(ctx context.Context, conversationID string, userID int64) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE conversation_participants SET last_read_at = now()
		WHERE conversation_id = $1 AND user_id = $2
		RETURNING last_read_at
	`, conversationID, userID).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrNotAuthorized
		}
		return time.Time{}, err
	}
	return at, nil
}

// CountUnread: сообщения строго позже last_read_at; если участник ни разу не
// читал — позже created_at самого диалога. Удалённые не считаются.
func (r *ParticipantRepository) CountUnread(ctx context.Context, conversationID string, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = $1
		  AND m.is_deleted = false
		  AND m.created_at > COALESCE(
			(SELECT p.last_read_at
			 FROM conversation_participants p
			 WHERE p.conversation_id = $1 AND p.user_id = $2),
			c.created_at)
	`, conversationID, userID).Scan(&count)
	return count, err
}
