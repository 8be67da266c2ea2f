package generator

import (
	"context"
	"errors"
)

// InsufficientInformation is the answer given when the context cannot support one.
// The prompt asks the model to use exactly this sentence.
const InsufficientInformation = "I don't have enough information to answer that."

// OpGenerate names generation in error context
const OpGenerate = "generate"

var (
	ErrUnsupportedProvider = errors.New("unsupported generation provider")
	ErrEmptyCompletion     = errors.New("model returned an empty completion")
)

// Generator produces an answer to query grounded on the retrieved passages.
// Passages are ordered most relevant first.
type Generator interface {
	Generate(ctx context.Context, query string, passages []string) (string, error)
}
