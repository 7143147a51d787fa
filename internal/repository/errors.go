package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the base sentinel for lookups of absent entities.
	// Entity-specific sentinels below wrap it, so errors.Is(err, ErrNotFound)
	// matches any of them.
	ErrNotFound = errors.New("not found")

	ErrSubjectNotFound   = fmt.Errorf("subject %w", ErrNotFound)
	ErrLectureNotFound   = fmt.Errorf("lecture %w", ErrNotFound)
	ErrFlashcardNotFound = fmt.Errorf("flashcard %w", ErrNotFound)
	ErrNoteNotFound      = fmt.Errorf("note %w", ErrNotFound)
	ErrTempFileNotFound  = fmt.Errorf("temp file %w", ErrNotFound)

	// ErrDuplicate means a create-only write hit an existing key.
	ErrDuplicate = errors.New("already exists")
)

// ValidationError reports a rejected write: which entity and field failed
// and, for batch operations, the zero-based position of the offending
// item. A batch is rejected whole; Index points at the first bad item.
type ValidationError struct {
	Entity string
	Field  string
	Index  int // position within a batch, -1 for single-item operations
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid %s at index %d: %s: %s", e.Entity, e.Index, e.Field, e.Msg)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Msg)
}

func newValidationError(entity, field, msg string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Index: -1, Msg: msg}
}
