package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/pagination"
	"github.com/HirotoShioi/medical-assistant-ai/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ModelClient defines the completion boundary. Implementations perform no
// retries; a failed call is the failure of the unit being processed.
type ModelClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompleteJSON(ctx context.Context, system, prompt string, out any) error
}

// ResourceRepositoryInterface defines the repository interface for resource persistence
type ResourceRepositoryInterface interface {
	Create(ctx context.Context, r *domain.Resource) error
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Resource, error)
	ListByThread(ctx context.Context, threadID string) ([]*domain.Resource, error)
	ListByThreadWithCursor(ctx context.Context, threadID string, cursor *pagination.Cursor, limit int) (*ResourcePageResult, error)
	Delete(ctx context.Context, id string) error
}

// ChunkRepositoryInterface defines the repository interface for embedded chunks
type ChunkRepositoryInterface interface {
	Insert(ctx context.Context, c *domain.EmbeddedChunk) error
	SearchByThread(ctx context.Context, threadID string, embedding []float32, limit int) ([]*domain.ChunkMatch, error)
}

// ArchiveStore persists a copy of the raw normalized content alongside the
// database row. Optional; a nil store disables archiving.
type ArchiveStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

type ResourcePageResult struct {
	Items      []*domain.Resource
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

const summarySystemMessage = "You are a medical data analysis assistant."

const summarizePrompt = `Summarize the following document in at most 100 words.
Focus on the key medical information: symptoms, diagnosis, treatment, medication, and relevant history.
Use only the information present in the document. Answer with the summary and nothing else.

<document>
%s
</document>`

// defaultIngestConcurrency bounds the enrich+embed fan-out per ingestion.
const defaultIngestConcurrency = 8

// ResourceService handles ingestion and lifecycle of resources and their
// embedded chunks.
type ResourceService struct {
	repo        ResourceRepositoryInterface
	chunkRepo   ChunkRepositoryInterface
	embedder    EmbeddingClient
	model       ModelClient
	enricher    *ContextEnricher
	archive     ArchiveStore
	uuidGen     UUIDGenerator
	chunkCfg    ChunkConfig
	concurrency int
}

// NewResourceService creates a new ResourceService instance
func NewResourceService(
	repo ResourceRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	embedder EmbeddingClient,
	model ModelClient,
) *ResourceService {
	return &ResourceService{
		repo:        repo,
		chunkRepo:   chunkRepo,
		embedder:    embedder,
		model:       model,
		enricher:    NewContextEnricher(model),
		uuidGen:     &DefaultUUIDGenerator{},
		chunkCfg:    DefaultChunkConfig(),
		concurrency: defaultIngestConcurrency,
	}
}

// WithArchive enables raw-content archiving for ingested resources.
func (s *ResourceService) WithArchive(archive ArchiveStore) *ResourceService {
	s.archive = archive
	return s
}

// WithUUIDGenerator replaces the UUID generator (for testing).
func (s *ResourceService) WithUUIDGenerator(gen UUIDGenerator) *ResourceService {
	s.uuidGen = gen
	return s
}

// WithChunkConfig replaces the chunking configuration.
func (s *ResourceService) WithChunkConfig(cfg ChunkConfig) *ResourceService {
	s.chunkCfg = cfg
	return s
}

// WithConcurrency bounds the per-ingestion chunk fan-out (for testing).
func (s *ResourceService) WithConcurrency(n int) *ResourceService {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// IngestInput represents the input for ingesting a resource
type IngestInput struct {
	ThreadID string
	Title    string
	Content  string
	FileType domain.FileType
}

// IngestResult reports what was persisted. FailedChunks is nonzero when the
// resource exists with fewer chunks than its content would imply.
type IngestResult struct {
	Resource     *domain.Resource
	ChunkCount   int
	FailedChunks int
}

// Ingest summarizes the content, persists the resource, then enriches and
// embeds every chunk concurrently. Chunks are independent: a failed chunk
// leaves a partial resource rather than rolling the ingestion back, and
// re-ingesting is the only repair path. There is no dedup by content hash,
// so ingesting the same content twice creates a duplicate resource.
func (s *ResourceService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.Ingest", telemetry.SpanAttributes{
		ThreadID:  input.ThreadID,
		Operation: "ingest",
	})
	defer span.End()

	if strings.TrimSpace(input.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	summary, err := s.model.Complete(ctx, summarySystemMessage, fmt.Sprintf(summarizePrompt, input.Content))
	if err != nil {
		return nil, domain.UpstreamError("summary", err)
	}

	resource := domain.NewResource(
		s.uuidGen.NewString(),
		input.ThreadID,
		input.Title,
		input.Content,
		summary,
		input.FileType,
		time.Now().UTC(),
	)

	if err := domain.ValidateResource(resource); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.PutObject(ctx, archiveKey(resource), []byte(resource.Content), archiveContentType(resource.FileType)); err != nil {
			log.Printf("archive: failed to store resource %s: %v", resource.ID, err)
		}
	}

	chunks := chunkText(resource.Content, s.chunkCfg)

	var (
		mu       sync.Mutex
		firstErr error
		failed   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, chunk := range chunks {
		g.Go(func() error {
			if err := s.embedChunk(gctx, resource, chunk); err != nil {
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			// Chunks fail independently; never cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	result := &IngestResult{
		Resource:     resource,
		ChunkCount:   len(chunks),
		FailedChunks: failed,
	}

	if failed > 0 {
		return result, &domain.PartialIngestionError{
			ResourceID:   resource.ID,
			TotalChunks:  len(chunks),
			FailedChunks: failed,
			Cause:        firstErr,
		}
	}

	return result, nil
}

func (s *ResourceService) embedChunk(ctx context.Context, resource *domain.Resource, chunk string) error {
	enriched, err := s.enricher.Situate(ctx, resource.Content, chunk)
	if err != nil {
		return domain.UpstreamError("situate", err)
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, enriched)
	if err != nil {
		return domain.UpstreamError("embedding", err)
	}

	return s.chunkRepo.Insert(ctx, &domain.EmbeddedChunk{
		ID:         s.uuidGen.NewString(),
		ResourceID: resource.ID,
		ThreadID:   resource.ThreadID,
		Content:    enriched,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	})
}

// DeleteByID deletes the resource; its chunks cascade on the resource id so
// a racing ingestion for the same id cannot leave orphans. Deleting an
// unknown id returns ErrResourceNotFound and touches nothing else.
func (s *ResourceService) DeleteByID(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.DeleteByID", telemetry.SpanAttributes{
		ResourceID: id,
		Operation:  "delete",
	})
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.DeleteObject(ctx, "resources/"+id); err != nil {
			log.Printf("archive: failed to delete resource %s: %v", id, err)
		}
	}

	return nil
}

// GetByID retrieves a resource by ID
func (s *ResourceService) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIDs retrieves resources in batch. The order of the returned slice is
// unspecified; callers must not assume positional correspondence with ids.
func (s *ResourceService) GetByIDs(ctx context.Context, ids []string) ([]*domain.Resource, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// ListByThread retrieves all resources for a thread, newest first.
func (s *ResourceService) ListByThread(ctx context.Context, threadID string) ([]*domain.Resource, error) {
	return s.repo.ListByThread(ctx, threadID)
}

type ListResourcesInput struct {
	ThreadID string
	Cursor   string
	Limit    int
}

type ListResourcesOutput struct {
	Items   []*domain.Resource
	Cursor  string
	HasMore bool
}

func (s *ResourceService) ListResources(ctx context.Context, input ListResourcesInput) (*ListResourcesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.ListResources", telemetry.SpanAttributes{
		ThreadID:  input.ThreadID,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.repo.ListByThreadWithCursor(ctx, input.ThreadID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListResourcesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Summaries returns the id→summary view of a thread's resources used by
// summary-based section selection.
func (s *ResourceService) Summaries(ctx context.Context, threadID string) ([]domain.ResourceSummary, error) {
	resources, err := s.repo.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ResourceSummary, 0, len(resources))
	for _, r := range resources {
		summaries = append(summaries, domain.ResourceSummary{ID: r.ID, Summary: r.Summary})
	}
	return summaries, nil
}

func archiveKey(r *domain.Resource) string {
	return "resources/" + r.ID
}

func archiveContentType(t domain.FileType) string {
	switch t {
	case domain.FileTypeMarkdown:
		return "text/markdown"
	case domain.FileTypeJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}
