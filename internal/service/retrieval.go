package service

import (
	"context"
	"strings"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the per-query match limit for similarity search.
const DefaultTopK = 4

// Retriever runs multi-query similarity search over a thread's embedded
// chunks and merges the per-query results into one deduplicated list.
type Retriever struct {
	chunkRepo ChunkRepositoryInterface
	embedder  EmbeddingClient
	topK      int
}

// NewRetriever creates a new Retriever instance
func NewRetriever(chunkRepo ChunkRepositoryInterface, embedder EmbeddingClient) *Retriever {
	return &Retriever{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		topK:      DefaultTopK,
	}
}

// WithTopK replaces the per-query match limit.
func (r *Retriever) WithTopK(k int) *Retriever {
	if k > 0 {
		r.topK = k
	}
	return r
}

// Retrieve embeds every query, searches the thread's chunks per query, and
// returns the merged contents ordered by (query index, rank) with each chunk
// appearing once at its first occurrence. Queries run concurrently; the
// merged order is still deterministic. Any query failing fails the whole
// retrieval.
func (r *Retriever) Retrieve(ctx context.Context, threadID string, queries []string) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		ThreadID:  threadID,
		Operation: "retrieve",
	})
	defer span.End()

	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, domain.ErrNoQueries
	}

	results := make([][]*domain.ChunkMatch, len(cleaned))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range cleaned {
		g.Go(func() error {
			embedding, err := r.embedder.GenerateEmbedding(gctx, query)
			if err != nil {
				return domain.UpstreamError("embedding", err)
			}
			matches, err := r.chunkRepo.SearchByThread(gctx, threadID, embedding, r.topK)
			if err != nil {
				return err
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	// results is indexed by query, each slice ordered by rank, so walking it
	// in order yields (query index, rank) order regardless of which
	// goroutine finished first.
	seen := make(map[string]struct{})
	contents := make([]string, 0, len(cleaned)*r.topK)
	for _, matches := range results {
		for _, m := range matches {
			if _, ok := seen[m.ChunkID]; ok {
				continue
			}
			seen[m.ChunkID] = struct{}{}
			contents = append(contents, m.Content)
		}
	}

	return contents, nil
}
