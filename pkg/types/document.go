package types

import (
	"time"
	"unicode/utf8"
)

// MaxTitleLength bounds a document title, counted in characters
const MaxTitleLength = 512

// Document is a stored text document as seen by callers
type Document struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`

	CreatedAt    time.Time `json:"-"`
	HasEmbedding bool      `json:"-"` // Whether a vector is currently stored
}

// ValidateInput checks the caller-supplied fields of a new document
func ValidateInput(title, content string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if content == "" {
		return ErrEmptyContent
	}
	return nil
}
