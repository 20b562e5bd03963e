package domain

import (
	"fmt"
	"time"
)

// FileType describes the origin format of a resource's normalized text.
type FileType string

const (
	FileTypeMarkdown FileType = "markdown"
	FileTypePlain    FileType = "plain"
	FileTypeJSON     FileType = "json"
	FileTypePDF      FileType = "pdf"
	FileTypeImage    FileType = "image"
)

// Resource is a user-attached unit of knowledge scoped to a conversation
// thread. Content is immutable after creation; a resource is replaced by
// delete+recreate, never edited in place.
type Resource struct {
	ID        string
	ThreadID  string
	Title     string
	Content   string
	Summary   string
	FileType  FileType
	CreatedAt time.Time
}

// ResourceSummary pairs a resource id with its machine-generated abstract.
// It is what a selection model sees instead of full content.
type ResourceSummary struct {
	ID      string
	Summary string
}

// NewResource creates a new Resource instance
func NewResource(id, threadID, title, content, summary string, fileType FileType, createdAt time.Time) *Resource {
	return &Resource{
		ID:        id,
		ThreadID:  threadID,
		Title:     title,
		Content:   content,
		Summary:   summary,
		FileType:  fileType,
		CreatedAt: createdAt,
	}
}

// ValidateResource validates a Resource instance. Every failure is a
// VALIDATION_ERROR so the HTTP layer answers 400, not 500.
func ValidateResource(r *Resource) error {
	if r == nil {
		return NewDomainError(ErrCodeValidation, "resource cannot be nil")
	}

	if r.ID == "" {
		return NewDomainError(ErrCodeValidation, "resource ID is required")
	}

	if r.ThreadID == "" {
		return NewDomainError(ErrCodeValidation, "resource ThreadID is required")
	}

	if r.Title == "" {
		return NewDomainError(ErrCodeValidation, "resource Title is required")
	}

	if r.Content == "" {
		return ErrEmptyContent
	}

	if !isValidFileType(r.FileType) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("resource FileType is invalid: %s", r.FileType))
	}

	return nil
}

func isValidFileType(t FileType) bool {
	switch t {
	case FileTypeMarkdown, FileTypePlain, FileTypeJSON, FileTypePDF, FileTypeImage:
		return true
	}
	return false
}
