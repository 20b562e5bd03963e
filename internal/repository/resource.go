package repository

import (
	"context"
	"errors"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/pagination"
	"github.com/HirotoShioi/medical-assistant-ai/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResourceRepository struct {
	db dbtx
}

func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{db: pool}
}

func NewResourceRepositoryWithTx(tx pgx.Tx) *ResourceRepository {
	return &ResourceRepository{db: tx}
}

func (r *ResourceRepository) Create(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO resources (id, thread_id, title, content, summary, file_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.ThreadID, res.Title, res.Content, res.Summary, res.FileType, res.CreatedAt,
	)
	return err
}

func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	var res domain.Resource
	err := r.db.QueryRow(ctx,
		`SELECT id, thread_id, title, content, summary, file_type, created_at
		 FROM resources WHERE id = $1`,
		id,
	).Scan(&res.ID, &res.ThreadID, &res.Title, &res.Content, &res.Summary, &res.FileType, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *ResourceRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, thread_id, title, content, summary, file_type, created_at
		 FROM resources WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResourceRows(rows)
}

func (r *ResourceRepository) ListByThread(ctx context.Context, threadID string) ([]*domain.Resource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, thread_id, title, content, summary, file_type, created_at
		 FROM resources WHERE thread_id = $1 ORDER BY created_at DESC, id DESC`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResourceRows(rows)
}

func (r *ResourceRepository) ListByThreadWithCursor(ctx context.Context, threadID string, cursor *pagination.Cursor, limit int) (*service.ResourcePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, thread_id, title, content, summary, file_type, created_at
			 FROM resources
			 WHERE thread_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			threadID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, thread_id, title, content, summary, file_type, created_at
			 FROM resources
			 WHERE thread_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			threadID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanResourceRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.ResourcePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Delete removes the resource; embedded chunks cascade at the schema level.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

func scanResourceRows(rows pgx.Rows) ([]*domain.Resource, error) {
	var results []*domain.Resource
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.ID, &res.ThreadID, &res.Title, &res.Content, &res.Summary, &res.FileType, &res.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}
