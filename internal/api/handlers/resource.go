package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api"
	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/service"
	"github.com/go-chi/chi/v5"
)

type ResourceService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	DeleteByID(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	ListResources(ctx context.Context, input service.ListResourcesInput) (*service.ListResourcesOutput, error)
}

type ResourceHandler struct {
	svc ResourceService
}

func NewResourceHandler(svc ResourceService) *ResourceHandler {
	return &ResourceHandler{svc: svc}
}

type IngestResourceRequest struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileType string `json:"file_type"`
}

type IngestResourceResponse struct {
	ResourceID   string `json:"resource_id"`
	ChunkCount   int    `json:"chunk_count"`
	FailedChunks int    `json:"failed_chunks"`
}

type ResourceResponse struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	FileType  string `json:"file_type"`
	CreatedAt string `json:"created_at"`
}

func resourceToResponse(r *domain.Resource) *ResourceResponse {
	return &ResourceResponse{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		Title:     r.Title,
		Summary:   r.Summary,
		FileType:  string(r.FileType),
		CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Ingest accepts a document and answers once every chunk has been tried.
// A partially ingested resource is still created, so the response stays 201
// with failed_chunks reporting the shortfall.
func (h *ResourceHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ThreadID == "" {
		api.Error(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	fileType := domain.FileType(req.FileType)
	if req.FileType == "" {
		fileType = domain.FileTypePlain
	}

	result, err := h.svc.Ingest(r.Context(), service.IngestInput{
		ThreadID: req.ThreadID,
		Title:    req.Title,
		Content:  req.Content,
		FileType: fileType,
	})
	if err != nil {
		var partial *domain.PartialIngestionError
		if !errors.As(err, &partial) {
			api.HandleError(w, err)
			return
		}
	}

	api.Success(w, http.StatusCreated, &IngestResourceResponse{
		ResourceID:   result.Resource.ID,
		ChunkCount:   result.ChunkCount,
		FailedChunks: result.FailedChunks,
	})
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	resource, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resourceToResponse(resource))
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteByID(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type ResourceListResponse struct {
	Items   []*ResourceResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		api.Error(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	result, err := h.svc.ListResources(r.Context(), service.ListResourcesInput{
		ThreadID: threadID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ResourceResponse, 0, len(result.Items))
	for _, res := range result.Items {
		items = append(items, resourceToResponse(res))
	}

	api.Success(w, http.StatusOK, &ResourceListResponse{
		Items:   items,
		Cursor:  result.Cursor,
		HasMore: result.HasMore,
	})
}
