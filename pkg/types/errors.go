package types

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrInvalidConfiguration reports bad chunking or component parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument reports a bad call argument such as k <= 0
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch reports an embedding whose length differs from the index dimension
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrProvider reports a failed embedding or generation call
	ErrProvider = errors.New("provider error")

	// Validation errors
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrEmptyVector    = errors.New("embedding cannot be empty")
	ErrMissingChunkID = errors.New("chunk ID is required")
)

// DimensionError describes an embedding that does not fit the index.
type DimensionError struct {
	Op       string // Operation that detected the mismatch (add, search, retrieve)
	Expected int
	Got      int
	Position int // Batch position of the offending entry, -1 for queries
}

func (e *DimensionError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s: %v: entry %d has dimension %d, index dimension is %d",
			e.Op, ErrDimensionMismatch, e.Position, e.Got, e.Expected)
	}
	return fmt.Sprintf("%s: %v: query has dimension %d, index dimension is %d",
		e.Op, ErrDimensionMismatch, e.Got, e.Expected)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// NewDimensionError builds a DimensionError for a batch entry or, with position -1, a query.
func NewDimensionError(op string, expected, got, position int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Position: position}
}

// ProviderError wraps a failure from an external embedding or generation provider.
// It matches both ErrProvider and the underlying cause with errors.Is.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, ErrProvider, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}

// NewProviderError wraps err as a ProviderError. A nil err stays nil.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ProviderError
	if errors.As(err, &existing) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
