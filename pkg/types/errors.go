package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidDocumentID = errors.New("invalid document ID")
	ErrInvalidScore      = errors.New("score must be a finite non-negative distance")
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrTitleTooLong      = errors.New("title exceeds maximum length")
	ErrEmptyContent      = errors.New("content cannot be empty")
)
