package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const sectionSystemMessage = "You are a medical documentation assistant. You write precise clinical prose and never invent facts that are not present in the provided material."

const selectResourcesPrompt = `%s

## Chat history
%s

## Uploaded documents
%s

## Instructions
Select the resource ids from the list above that are relevant to writing this section.

Respond with JSON of the form {"resource_ids": ["..."]} and nothing else.`

const extractPrompt = `%s

## Chat history
%s

## Documents
%s

## Instructions
Extract the information needed to write this section from the documents above. Include the important points and key phrases. Respond with plain text and nothing else.`

const derivePromptPrompt = `%s

## Chat history
%s

## Uploaded documents
%s

## Instructions
Write a prompt for generating this section. Keep the following in mind:

- Use the example as a reference.
- Include the context and constraints needed to keep the model from producing incorrect information.
- The prompt should be concise and give concrete instructions.
- Respond with the prompt text and nothing else.`

const draftPrompt = `%s

## Chat history
%s

## Information from documents
%s

## Instructions
Generate the section based on the information above. Respond with the section text and nothing else.`

// SelectionStrategy chooses which content feeds a section.
type SelectionStrategy interface {
	SelectContents(ctx context.Context, gc *domain.GenerationContext, spec *domain.SectionSpec) ([]string, error)
}

// resourceFetcher is the slice of the resource service section selection needs.
type resourceFetcher interface {
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Resource, error)
}

// SummaryBasedSelection asks the model which resources matter for the
// section, using each resource's summary, then loads the full contents of
// the selected resources.
type SummaryBasedSelection struct {
	model     ModelClient
	resources resourceFetcher
}

func NewSummaryBasedSelection(model ModelClient, resources resourceFetcher) *SummaryBasedSelection {
	return &SummaryBasedSelection{model: model, resources: resources}
}

type resourceSelection struct {
	ResourceIDs []string `json:"resource_ids"`
}

func (s *SummaryBasedSelection) SelectContents(ctx context.Context, gc *domain.GenerationContext, spec *domain.SectionSpec) ([]string, error) {
	prompt := fmt.Sprintf(selectResourcesPrompt,
		sectionPrompt(spec),
		concatMessages(gc.Messages),
		concatSummaries(gc.Summaries),
	)

	var selection resourceSelection
	if err := s.model.CompleteJSON(ctx, systemMessage(spec), prompt, &selection); err != nil {
		return nil, domain.UpstreamError("select resources", err)
	}

	// The model can hallucinate ids; only ids from the candidate list count.
	candidates := make(map[string]struct{}, len(gc.Summaries))
	for _, rs := range gc.Summaries {
		candidates[rs.ID] = struct{}{}
	}
	ids := make([]string, 0, len(selection.ResourceIDs))
	for _, id := range selection.ResourceIDs {
		if _, ok := candidates[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	resources, err := s.resources.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	contents := make([]string, 0, len(resources))
	for _, r := range resources {
		contents = append(contents, r.Content)
	}
	return contents, nil
}

// ChunkBasedSelection feeds a section from similarity search over the
// thread's embedded chunks instead of whole resources.
type ChunkBasedSelection struct {
	retriever *Retriever
}

func NewChunkBasedSelection(retriever *Retriever) *ChunkBasedSelection {
	return &ChunkBasedSelection{retriever: retriever}
}

func (s *ChunkBasedSelection) SelectContents(ctx context.Context, gc *domain.GenerationContext, spec *domain.SectionSpec) ([]string, error) {
	query := spec.Title
	if spec.Instructions != "" {
		query += "\n" + spec.Instructions
	}
	return s.retriever.Retrieve(ctx, gc.ThreadID, []string{query})
}

// SectionGenerator produces one document section through a four step
// pipeline: select content, extract facts, derive a generation prompt, and
// draft the section from the derived prompt and the extracted facts.
type SectionGenerator struct {
	model     ModelClient
	selection SelectionStrategy
}

func NewSectionGenerator(model ModelClient, selection SelectionStrategy) *SectionGenerator {
	return &SectionGenerator{model: model, selection: selection}
}

// Generate runs the section pipeline. Extraction and prompt derivation both
// read the same selected contents and run concurrently; the draft waits for
// both.
func (g *SectionGenerator) Generate(ctx context.Context, gc *domain.GenerationContext, spec *domain.SectionSpec) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "SectionGenerator.Generate", telemetry.SpanAttributes{
		ThreadID:  gc.ThreadID,
		Section:   spec.Title,
		Operation: "generate_section",
	})
	defer span.End()

	if err := domain.ValidateSectionSpec(spec); err != nil {
		return "", err
	}

	contents, err := g.selection.SelectContents(ctx, gc, spec)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	joined := strings.Join(contents, "\n")
	messages := concatMessages(gc.Messages)

	var extracted, derived string
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		prompt := fmt.Sprintf(extractPrompt, sectionPrompt(spec), messages, joined)
		out, err := g.model.Complete(egctx, systemMessage(spec), prompt)
		if err != nil {
			return domain.UpstreamError("extract", err)
		}
		extracted = out
		return nil
	})
	eg.Go(func() error {
		prompt := fmt.Sprintf(derivePromptPrompt, sectionPrompt(spec), messages, joined)
		out, err := g.model.Complete(egctx, systemMessage(spec), prompt)
		if err != nil {
			return domain.UpstreamError("derive prompt", err)
		}
		derived = out
		return nil
	})
	if err := eg.Wait(); err != nil {
		span.SetError(err)
		return "", err
	}

	prompt := fmt.Sprintf(draftPrompt, derived, messages, extracted)
	section, err := g.model.Complete(ctx, systemMessage(spec), prompt)
	if err != nil {
		span.SetError(err)
		return "", domain.UpstreamError("draft", err)
	}

	return section, nil
}

// sectionPrompt renders the static header shared by every step of the
// pipeline.
func sectionPrompt(spec *domain.SectionSpec) string {
	return fmt.Sprintf("# %s\n\n## Instructions\n%s\n\n## Example\n%s", spec.Title, spec.Instructions, spec.Example)
}

func systemMessage(spec *domain.SectionSpec) string {
	if spec.SystemMessage != "" {
		return spec.SystemMessage
	}
	return sectionSystemMessage
}

// concatMessages renders a chat transcript as "role: content" lines.
func concatMessages(messages []*domain.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

// concatSummaries renders resource summaries as "- id: summary" lines.
func concatSummaries(summaries []domain.ResourceSummary) string {
	lines := make([]string, 0, len(summaries))
	for _, rs := range summaries {
		lines = append(lines, fmt.Sprintf("- %s: %s", rs.ID, rs.Summary))
	}
	return strings.Join(lines, "\n")
}
