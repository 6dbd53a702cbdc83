package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/unihub/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conversationColumns = `id, is_group, group_name, group_avatar, created_by, created_at, updated_at`

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// rowQueryer покрывает и пул, и транзакцию.
type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.IsGroup, &c.GroupName, &c.GroupAvatar, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) CreateGroup(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO conversations (is_group, group_name, group_avatar, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, conv.IsGroup, conv.GroupName, conv.GroupAvatar, conv.CreatedBy)
	if err := row.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return err
	}

	for _, p := range participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, conv.ID, p.UserID, p.IsAdmin); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CreateDirect сериализует параллельные создания одной пары advisory-локом:
// проигравшая транзакция увидит диалог победителя и вернёт его.
func (r *ConversationRepository) CreateDirect(ctx context.Context, creatorID, otherID int64) (*domain.Conversation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lo, hi := creatorID, otherID
	if lo > hi {
		lo, hi = hi, lo
	}
	key := fmt.Sprintf("direct:%d:%d", lo, hi)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, err
	}

	existing, err := findDirect(ctx, tx, creatorID, otherID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return existing, nil
	}

	conv := &domain.Conversation{IsGroup: false, CreatedBy: creatorID}
	row := tx.QueryRow(ctx, `
		INSERT INTO conversations (is_group, created_by)
		VALUES (false, $1)
		RETURNING id, created_at, updated_at
	`, creatorID)
	if err := row.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
		VALUES ($1, $2, true), ($1, $3, false)
	`, conv.ID, creatorID, otherID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]domain.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.group_avatar, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.is_hidden = false
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.IsGroup, &c.GroupName, &c.GroupAvatar, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	return findDirect(ctx, r.db, userA, userB)
}

func findDirect(ctx context.Context, q rowQueryer, userA, userB int64) (*domain.Conversation, error) {
	c, err := scanConversation(q.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE is_group = false
		  AND id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = $1)
		  AND id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = $2)
		LIMIT 1
	`, userA, userB))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}
