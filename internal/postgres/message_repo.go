package postgres

import (
	"context"
	"errors"

	"github.com/unihub/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, conversation_id, sender_id, content, type, file_url, file_name, file_size, reply_to_id, is_edited, is_deleted, created_at, updated_at`

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type,
		&m.FileURL, &m.FileName, &m.FileSize, &m.ReplyToID,
		&m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Append пишет сообщение и двигает updated_at диалога в одной транзакции:
// порядок в диалоге задаётся created_at, который назначает база.
func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, type, file_url, file_name, file_size, reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, m.ConversationID, m.SenderID, m.Content, m.Type, m.FileURL, m.FileName, m.FileSize, m.ReplyToID)
	if err := row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET updated_at = $2 WHERE id = $1
	`, m.ConversationID, m.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) Page(ctx context.Context, conversationID string, offset, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND is_deleted = false
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, conversationID, NormalizeOffset(offset), NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *MessageRepository) Search(ctx context.Context, conversationID, query string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		  AND is_deleted = false
		  AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC, id DESC
	`, conversationID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type,
			&m.FileURL, &m.FileName, &m.FileSize, &m.ReplyToID,
			&m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Edit проверяет авторство тем же UPDATE: чужое сообщение просто не совпадёт
// по sender_id.
func (r *MessageRepository) Edit(ctx context.Context, messageID string, requesterID int64, content string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `
		UPDATE messages
		SET content = $3, is_edited = true, updated_at = now()
		WHERE id = $1 AND sender_id = $2
		RETURNING `+messageColumns, messageID, requesterID, content))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missingOrForeign(ctx, messageID)
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) SoftDelete(ctx context.Context, messageID string, requesterID int64) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `
		UPDATE messages
		SET is_deleted = true, content = NULL, updated_at = now()
		WHERE id = $1 AND sender_id = $2
		RETURNING `+messageColumns, messageID, requesterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missingOrForeign(ctx, messageID)
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) missingOrForeign(ctx context.Context, messageID string) error {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrNotAuthorized
	}
	return domain.ErrMessageNotFound
}
