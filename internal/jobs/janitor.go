package jobs

import (
	"context"
	"log"
	"time"
)

// OrphanedChunkDeleter prunes chunks that lost their owning resource.
type OrphanedChunkDeleter interface {
	DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultRetention is how long untracked chunks survive before the janitor
// removes them. Rows inserted before resource tracking existed have no
// resource id and can never be cleaned up by a resource delete.
const DefaultRetention = 24 * time.Hour

// ChunkJanitor implements JobProcessor by pruning legacy chunks past their
// retention window.
type ChunkJanitor struct {
	deleter   OrphanedChunkDeleter
	retention time.Duration
}

// NewChunkJanitor creates a new ChunkJanitor instance
func NewChunkJanitor(deleter OrphanedChunkDeleter, retention time.Duration) *ChunkJanitor {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &ChunkJanitor{deleter: deleter, retention: retention}
}

// ProcessJobs deletes orphaned chunks older than the retention window.
func (j *ChunkJanitor) ProcessJobs(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.deleter.DeleteOrphanedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Printf("janitor: pruned %d orphaned chunks older than %v", deleted, j.retention)
	}
	return nil
}
