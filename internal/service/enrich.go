package service

import (
	"context"
	"fmt"
	"strings"
)

// situatingSeparator joins a chunk with its situating context before
// embedding. Retrieval returns the joined text as-is.
const situatingSeparator = "\n\n"

// situatePrompt keeps the full document at the front of the prompt so the
// repeated prefix is byte-identical across every chunk of one ingestion
// run, which lets request-level prompt caching reuse it.
const situatePrompt = `<document>
%s
</document>

Here is the chunk we want to situate within the whole document

<chunk>
%s
</chunk>

Please give a short succinct context to situate this chunk within the overall document for the purposes of improving search retrieval of the chunk. Answer only with the succinct context and nothing else.`

// ContextEnricher annotates chunks with a short description of where they
// sit in the source document (contextual retrieval). A bare chunk like
// "the dose was doubled" embeds poorly without knowing which drug the
// document is about.
type ContextEnricher struct {
	model ModelClient
}

// NewContextEnricher creates a new ContextEnricher instance
func NewContextEnricher(model ModelClient) *ContextEnricher {
	return &ContextEnricher{model: model}
}

// Situate returns the chunk concatenated with a model-generated situating
// context. A failed call fails only the chunk being processed; callers
// treat other chunks independently.
func (e *ContextEnricher) Situate(ctx context.Context, fullDocument, chunk string) (string, error) {
	situating, err := e.model.Complete(ctx, "", fmt.Sprintf(situatePrompt, fullDocument, chunk))
	if err != nil {
		return "", fmt.Errorf("failed to situate chunk: %w", err)
	}
	situating = strings.TrimSpace(situating)
	if situating == "" {
		return chunk, nil
	}
	return chunk + situatingSeparator + situating, nil
}
