package domain

// SectionSpec configures one named, independently drafted part of a
// synthesized document. It is never persisted.
type SectionSpec struct {
	ThreadID      string
	Title         string
	Example       string
	Instructions  string
	SystemMessage string
}

// GenerationContext is the ephemeral grounding passed into every section
// pipeline: the conversation so far plus the id→summary view of the
// thread's resources. Selection models see summaries, never full content.
type GenerationContext struct {
	ThreadID  string
	Messages  []*Message
	Summaries []ResourceSummary
}

// ValidateSectionSpec validates a SectionSpec instance. Failures are
// VALIDATION_ERRORs so they surface as 400s.
func ValidateSectionSpec(s *SectionSpec) error {
	if s == nil {
		return NewDomainError(ErrCodeValidation, "section spec cannot be nil")
	}

	if s.Title == "" {
		return NewDomainError(ErrCodeValidation, "section spec Title is required")
	}

	if s.ThreadID == "" {
		return NewDomainError(ErrCodeValidation, "section spec ThreadID is required")
	}

	return nil
}
