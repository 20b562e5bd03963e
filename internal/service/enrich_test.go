package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextEnricher_Situate(t *testing.T) {
	ctx := context.Background()

	t.Run("prepends chunk to generated context", func(t *testing.T) {
		var seenPrompt string
		model := &scriptedModel{
			complete: func(system, prompt string) (string, error) {
				seenPrompt = prompt
				return "This chunk is from the admission note.", nil
			},
		}
		enricher := NewContextEnricher(model)

		enriched, err := enricher.Situate(ctx, "full document text", "the chunk")

		require.NoError(t, err)
		assert.Equal(t, "the chunk\n\nThis chunk is from the admission note.", enriched)
		// The document precedes the chunk in the prompt so repeated calls
		// over the same document share a prefix.
		docIdx := strings.Index(seenPrompt, "full document text")
		chunkIdx := strings.Index(seenPrompt, "the chunk")
		require.GreaterOrEqual(t, docIdx, 0)
		require.GreaterOrEqual(t, chunkIdx, 0)
		assert.Less(t, docIdx, chunkIdx)
	})

	t.Run("returns chunk unchanged when model yields empty context", func(t *testing.T) {
		model := &scriptedModel{
			complete: func(_, _ string) (string, error) { return "  ", nil },
		}
		enricher := NewContextEnricher(model)

		enriched, err := enricher.Situate(ctx, "doc", "the chunk")

		require.NoError(t, err)
		assert.Equal(t, "the chunk", enriched)
	})

	t.Run("propagates model failure", func(t *testing.T) {
		model := &scriptedModel{
			complete: func(_, _ string) (string, error) { return "", errors.New("model down") },
		}
		enricher := NewContextEnricher(model)

		_, err := enricher.Situate(ctx, "doc", "chunk")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "situate")
	})
}
