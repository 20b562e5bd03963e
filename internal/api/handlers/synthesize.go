package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api"
	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/service"
)

type SynthesisService interface {
	Generate(ctx context.Context, input service.SynthesisInput) (*service.SynthesisResult, error)
}

type SynthesizeHandler struct {
	svc SynthesisService
}

func NewSynthesizeHandler(svc SynthesisService) *SynthesizeHandler {
	return &SynthesizeHandler{svc: svc}
}

type SectionSpecRequest struct {
	Title         string `json:"title"`
	Example       string `json:"example"`
	Instructions  string `json:"instructions"`
	SystemMessage string `json:"system_message"`
}

type SynthesizeRequest struct {
	ThreadID string               `json:"thread_id"`
	Sections []SectionSpecRequest `json:"sections"`
	FailFast bool                 `json:"fail_fast"`
}

type SynthesizeResponse struct {
	Document       string   `json:"document"`
	FailedSections []string `json:"failed_sections"`
}

func (h *SynthesizeHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ThreadID == "" {
		api.Error(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if len(req.Sections) == 0 {
		api.Error(w, http.StatusBadRequest, "at least one section is required")
		return
	}

	sections := make([]*domain.SectionSpec, 0, len(req.Sections))
	for _, s := range req.Sections {
		if s.Title == "" {
			api.Error(w, http.StatusBadRequest, "section title is required")
			return
		}
		sections = append(sections, &domain.SectionSpec{
			ThreadID:      req.ThreadID,
			Title:         s.Title,
			Example:       s.Example,
			Instructions:  s.Instructions,
			SystemMessage: s.SystemMessage,
		})
	}

	result, err := h.svc.Generate(r.Context(), service.SynthesisInput{
		ThreadID: req.ThreadID,
		Sections: sections,
		FailFast: req.FailFast,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	failed := result.FailedSections
	if failed == nil {
		failed = []string{}
	}
	api.Success(w, http.StatusOK, &SynthesizeResponse{
		Document:       result.Document,
		FailedSections: failed,
	})
}
