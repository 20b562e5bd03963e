package service

import "unicode"

// ChunkConfig controls how resource content is split for embedding.
type ChunkConfig struct {
	TargetChars int
	MinChars    int
	Overlap     int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetChars: 1000,
		MinChars:    200,
		Overlap:     200,
	}
}

// chunkText splits text into overlapping segments of at most TargetChars
// runes, preferring to cut at paragraph, then sentence, then word
// boundaries. Every segment is an exact substring of the input: the first
// starts at offset zero, the last ends at the end, and each successive
// segment begins inside the previous one, so no part of the input is lost
// at a boundary. Input shorter than the target yields a single segment;
// empty input yields nothing.
func chunkText(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	spans := chunkSpans(runes, cfg)
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, string(runes[s.start:s.end]))
	}
	return chunks
}

// span is one chunk's half-open rune interval within the source text.
type span struct {
	start, end int
}

func chunkSpans(runes []rune, cfg ChunkConfig) []span {
	if len(runes) == 0 {
		return nil
	}
	if cfg.TargetChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap >= cfg.TargetChars {
		cfg.Overlap = cfg.TargetChars / 2
	}
	if cfg.MinChars > cfg.TargetChars {
		cfg.MinChars = 0
	}

	if len(runes) <= cfg.TargetChars {
		return []span{{0, len(runes)}}
	}

	spans := make([]span, 0, len(runes)/cfg.TargetChars+1)
	start := 0
	for {
		if len(runes)-start <= cfg.TargetChars {
			spans = append(spans, span{start, len(runes)})
			return spans
		}

		end := cutPoint(runes, start, cfg)
		spans = append(spans, span{start, end})

		next := overlapStart(runes, start, end, cfg.Overlap)
		if next <= start {
			next = end
		}
		start = next
	}
}

// cutPoint picks the end of the chunk starting at start. It scans the
// window backwards for the strongest boundary that still leaves at least
// MinChars in the chunk, falling back to a hard cut at TargetChars when
// the window contains no break at all.
func cutPoint(runes []rune, start int, cfg ChunkConfig) int {
	limit := start + cfg.TargetChars
	floor := start + cfg.MinChars
	if floor <= start {
		floor = start + 1
	}

	for _, level := range []int{boundaryParagraph, boundarySentence, boundaryWord} {
		for i := limit; i >= floor; i-- {
			if boundaryLevel(runes, i) >= level {
				return i
			}
		}
	}

	return limit
}

// overlapStart picks where the next chunk begins: the first word boundary
// at or after end-overlap, so consecutive chunks share roughly Overlap
// runes. Returns end (no overlap) when the tail has no break.
func overlapStart(runes []rune, start, end, overlap int) int {
	target := end - overlap
	if target <= start {
		target = start + 1
	}
	for i := target; i < end; i++ {
		if boundaryLevel(runes, i) >= boundaryWord {
			return i
		}
	}
	return end
}

const (
	boundaryNone = iota
	boundaryWord
	boundarySentence
	boundaryParagraph
)

// boundaryLevel reports how strong a cut between runes[i-1] and runes[i]
// would be.
func boundaryLevel(runes []rune, i int) int {
	if i <= 0 || i >= len(runes) {
		return boundaryNone
	}
	if !unicode.IsSpace(runes[i-1]) {
		return boundaryNone
	}
	if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
		return boundaryParagraph
	}
	if i >= 2 && isSentenceEnd(runes[i-2]) {
		return boundarySentence
	}
	return boundaryWord
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
