package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const sectionFailedPlaceholder = "_This section could not be generated._"

const combinePrompt = `## Sections
%s

## Instructions
Combine the sections above into a single coherent document. Keep every section, in order, under its own heading. You may only copy or rephrase text that is already present in the sections; never add new facts. Respond with the document text and nothing else.`

// MessageReader loads a thread's chat transcript.
type MessageReader interface {
	GetMessagesByThreadID(ctx context.Context, threadID string) ([]*domain.Message, error)
}

// SummaryLister loads the id→summary view of a thread's resources.
type SummaryLister interface {
	Summaries(ctx context.Context, threadID string) ([]domain.ResourceSummary, error)
}

// Assembler merges generated sections into the final document.
type Assembler interface {
	Assemble(ctx context.Context, sections []GeneratedSection) (string, error)
}

// GeneratedSection pairs a section title with its generated body.
type GeneratedSection struct {
	Title string
	Body  string
}

// ConcatAssembler joins sections as markdown, each under its own heading.
type ConcatAssembler struct{}

func (ConcatAssembler) Assemble(_ context.Context, sections []GeneratedSection) (string, error) {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, fmt.Sprintf("# %s\n\n%s", s.Title, s.Body))
	}
	return strings.Join(parts, "\n\n"), nil
}

// CombineAssembler runs one more completion over the concatenated sections
// to smooth transitions. The prompt forbids new facts, but the result is
// still model output; use ConcatAssembler when verbatim sections are
// required.
type CombineAssembler struct {
	model ModelClient
}

func NewCombineAssembler(model ModelClient) *CombineAssembler {
	return &CombineAssembler{model: model}
}

func (a *CombineAssembler) Assemble(ctx context.Context, sections []GeneratedSection) (string, error) {
	concatenated, _ := ConcatAssembler{}.Assemble(ctx, sections)
	out, err := a.model.Complete(ctx, sectionSystemMessage, fmt.Sprintf(combinePrompt, concatenated))
	if err != nil {
		return "", domain.UpstreamError("combine", err)
	}
	return out, nil
}

// SynthesisInput describes one document to synthesize.
type SynthesisInput struct {
	ThreadID string
	Sections []*domain.SectionSpec
	// FailFast makes the first section failure abort the whole synthesis
	// instead of leaving a placeholder.
	FailFast bool
}

// SynthesisResult carries the assembled document and the titles of sections
// that fell back to a placeholder.
type SynthesisResult struct {
	Document       string
	FailedSections []string
}

// DocumentSynthesizer generates every section of a document concurrently and
// assembles the results.
type DocumentSynthesizer struct {
	generator *SectionGenerator
	messages  MessageReader
	summaries SummaryLister
	assembler Assembler
}

func NewDocumentSynthesizer(
	generator *SectionGenerator,
	messages MessageReader,
	summaries SummaryLister,
	assembler Assembler,
) *DocumentSynthesizer {
	if assembler == nil {
		assembler = ConcatAssembler{}
	}
	return &DocumentSynthesizer{
		generator: generator,
		messages:  messages,
		summaries: summaries,
		assembler: assembler,
	}
}

// Generate loads the thread context once, generates all sections in
// parallel, and assembles them in input order. By default a failed section
// becomes a placeholder and is reported in FailedSections; if every section
// fails the synthesis fails with ErrAllSectionsFailed.
func (s *DocumentSynthesizer) Generate(ctx context.Context, input SynthesisInput) (*SynthesisResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentSynthesizer.Generate", telemetry.SpanAttributes{
		ThreadID:  input.ThreadID,
		Operation: "synthesize",
	})
	defer span.End()

	if len(input.Sections) == 0 {
		return nil, domain.ErrNoSections
	}
	for _, spec := range input.Sections {
		if err := domain.ValidateSectionSpec(spec); err != nil {
			return nil, err
		}
	}

	var (
		messages  []*domain.Message
		summaries []domain.ResourceSummary
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		messages, err = s.messages.GetMessagesByThreadID(egctx, input.ThreadID)
		return err
	})
	eg.Go(func() error {
		var err error
		summaries, err = s.summaries.Summaries(egctx, input.ThreadID)
		return err
	})
	if err := eg.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	gc := &domain.GenerationContext{
		ThreadID:  input.ThreadID,
		Messages:  messages,
		Summaries: summaries,
	}

	sections := make([]GeneratedSection, len(input.Sections))
	errs := make([]error, len(input.Sections))

	sg, sgctx := errgroup.WithContext(ctx)
	for i, spec := range input.Sections {
		sg.Go(func() error {
			body, err := s.generator.Generate(sgctx, gc, spec)
			if err != nil {
				errs[i] = err
				if input.FailFast {
					return err
				}
				sections[i] = GeneratedSection{Title: spec.Title, Body: sectionFailedPlaceholder}
				return nil
			}
			sections[i] = GeneratedSection{Title: spec.Title, Body: body}
			return nil
		})
	}
	if err := sg.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	failed := make([]string, 0)
	for i, err := range errs {
		if err != nil {
			failed = append(failed, input.Sections[i].Title)
			telemetry.CaptureError(ctx, err)
		}
	}
	if len(failed) == len(input.Sections) {
		return nil, domain.ErrAllSectionsFailed
	}

	document, err := s.assembler.Assemble(ctx, sections)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &SynthesisResult{
		Document:       document,
		FailedSections: failed,
	}, nil
}
