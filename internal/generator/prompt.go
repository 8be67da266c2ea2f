package generator

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const promptTemplate = `Context:
{{.context}}

Task:
{{.query}}

Answer the question using the provided context. If the context doesn't contain the answer, say "` + InsufficientInformation + `"`

var ragPrompt = prompts.NewPromptTemplate(promptTemplate, []string{"context", "query"})

// BuildPrompt renders the grounded-answer prompt. Passages are joined by a
// blank line in the order given.
func BuildPrompt(query string, passages []string) (string, error) {
	prompt, err := ragPrompt.Format(map[string]any{
		"context": strings.Join(passages, "\n\n"),
		"query":   query,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return prompt, nil
}
