package repository

import (
	"context"
	"time"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of embedded chunks and vector search.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Insert(ctx context.Context, c *domain.EmbeddedChunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO embedded_chunks (id, resource_id, thread_id, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID,
		nullableString(c.ResourceID),
		c.ThreadID,
		c.Content,
		pgvector.NewVector(c.Embedding),
		createdAt,
	)
	return err
}

// SearchByThread returns the chunks of one thread closest to the query
// embedding by cosine distance, best first.
func (r *ChunkRepository) SearchByThread(ctx context.Context, threadID string, embedding []float32, limit int) ([]*domain.ChunkMatch, error) {
	if limit <= 0 {
		limit = 4
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, resource_id, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM embedded_chunks
		 WHERE thread_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), threadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ChunkMatch
	for rows.Next() {
		var m domain.ChunkMatch
		var resourceID *string
		if err := rows.Scan(&m.ChunkID, &resourceID, &m.Content, &m.Similarity); err != nil {
			return nil, err
		}
		if resourceID != nil {
			m.ResourceID = *resourceID
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}

// DeleteOrphanedBefore prunes chunks that predate resource tracking and are
// older than the cutoff. Returns the number of deleted rows.
func (r *ChunkRepository) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM embedded_chunks WHERE resource_id IS NULL AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// EmbeddingDimension reads the declared dimension of the embedding
// column. The schema pins it at migration time, so a configured
// dimension that differs would fail every insert; the server checks
// this at startup instead.
func (r *ChunkRepository) EmbeddingDimension(ctx context.Context) (int, error) {
	var dim int
	err := r.db.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'embedded_chunks'::regclass AND attname = 'embedding'`,
	).Scan(&dim)
	if err != nil {
		return 0, err
	}
	return dim, nil
}

// CountByResource reports how many chunks a resource currently has.
func (r *ChunkRepository) CountByResource(ctx context.Context, resourceID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM embedded_chunks WHERE resource_id = $1`,
		resourceID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
