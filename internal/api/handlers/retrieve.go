package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api"
)

type RetrievalService interface {
	Retrieve(ctx context.Context, threadID string, queries []string) ([]string, error)
}

type RetrieveHandler struct {
	svc RetrievalService
}

func NewRetrieveHandler(svc RetrievalService) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	ThreadID string   `json:"thread_id"`
	Queries  []string `json:"queries"`
}

type RetrieveResponse struct {
	Contents []string `json:"contents"`
}

func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ThreadID == "" {
		api.Error(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	contents, err := h.svc.Retrieve(r.Context(), req.ThreadID, req.Queries)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if contents == nil {
		contents = []string{}
	}
	api.Success(w, http.StatusOK, &RetrieveResponse{Contents: contents})
}
