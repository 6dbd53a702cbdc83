package postgres

import (
	"context"
	"time"

	"github.com/unihub/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReceiptRepository struct {
	db *pgxpool.Pool
}

func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) Record(ctx context.Context, messageID string, userID int64, at time.Time) error {
	// не больше одной отметки на пару (message, user)
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_read_receipts (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID, at)
	return err
}

func (r *ReceiptRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.ReadReceipt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT message_id, user_id, read_at
		FROM message_read_receipts
		WHERE message_id = $1
		ORDER BY read_at ASC, user_id ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReadReceipt
	for rows.Next() {
		var rr domain.ReadReceipt
		if err := rows.Scan(&rr.MessageID, &rr.UserID, &rr.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
