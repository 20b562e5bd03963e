package repository

import (
	"context"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx pgx.Tx) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (id, thread_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ThreadID, m.Role, m.Content, m.CreatedAt,
	)
	return err
}

// GetMessagesByThreadID returns a thread's transcript in conversation order.
func (r *MessageRepository) GetMessagesByThreadID(ctx context.Context, threadID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, thread_id, role, content, created_at
		 FROM messages WHERE thread_id = $1 ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}
