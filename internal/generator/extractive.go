package generator

import (
	"context"
	"strings"
)

// ExtractiveGenerator answers with the most relevant passage verbatim. It
// needs no model and is deterministic, which makes it the offline default.
type ExtractiveGenerator struct{}

var _ Generator = ExtractiveGenerator{}

// NewExtractive creates an extractive generator
func NewExtractive() ExtractiveGenerator {
	return ExtractiveGenerator{}
}

// Generate returns the first non-blank passage, or InsufficientInformation
func (ExtractiveGenerator) Generate(ctx context.Context, query string, passages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, p := range passages {
		if text := strings.TrimSpace(p); text != "" {
			return text, nil
		}
	}
	return InsufficientInformation, nil
}

// Provider returns "extractive"
func (ExtractiveGenerator) Provider() string {
	return ProviderExtractive
}

// Model returns an empty string; no model is involved
func (ExtractiveGenerator) Model() string {
	return ""
}
