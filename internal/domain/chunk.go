package domain

import "time"

// EmbeddedChunk is the retrievable unit: a bounded fragment of a resource's
// content, concatenated with its situating context, plus the embedding
// vector. ResourceID is empty only for legacy free-floating chunks written
// before resource ownership was enforced; those rows are pruned by the
// maintenance worker. ThreadID is denormalized so retrieval scoping never
// needs a join.
type EmbeddedChunk struct {
	ID         string
	ResourceID string
	ThreadID   string
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkMatch is one similarity-search hit.
type ChunkMatch struct {
	ChunkID    string
	ResourceID string
	Content    string
	Similarity float32
}
