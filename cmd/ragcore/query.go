package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/loader"
	"github.com/dshills/ragcore/pkg/types"
)

type passageOutput struct {
	Rank     int               `json:"rank"`
	Score    float64           `json:"score"`
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type answerOutput struct {
	Answer       string          `json:"answer"`
	Insufficient bool            `json:"insufficient"`
	Passages     []passageOutput `json:"passages"`
}

func toPassages(results []types.Result) []passageOutput {
	out := make([]passageOutput, len(results))
	for i, r := range results {
		out[i] = passageOutput{Rank: r.Rank, Score: r.Score, ID: r.ID, Text: r.Text, Metadata: r.Metadata}
	}
	return out
}

// queryOptions are shared by search and ask
type queryOptions struct {
	docs   string
	k      int
	asJSON bool
}

func (q *queryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.docs, "docs", "", "corpus directory or manifest to index before querying")
	cmd.Flags().IntVarP(&q.k, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	cmd.Flags().BoolVar(&q.asJSON, "json", false, "print JSON instead of text")
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve the passages most similar to a query",
		Long: `Search the index and print the closest passages with their cosine scores.

Examples:
  ragcore search "capital of France" --docs ./docs -k 5
  ragcore search "capital of France" --backend sqlite --index-path ./ragcore.db --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := indexDocs(ctx, a, q.docs); err != nil {
					return err
				}

				k := q.k
				if k <= 0 {
					k = a.Orchestrator.TopK()
				}
				results, err := a.Orchestrator.Search(ctx, query, k)
				if err != nil {
					return err
				}

				if q.asJSON {
					return writeJSON(cmd.OutOrStdout(), toPassages(results))
				}
				printResults(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}

	q.bind(cmd)
	return cmd
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed corpus",
		Long: `Retrieve the passages most similar to the question and generate an answer
grounded on them. When no passage is relevant the answer says so.

Examples:
  ragcore ask "What is the capital of France?" --docs ./docs
  OPENAI_API_KEY=... ragcore ask "Who designed the Louvre pyramid?" --docs ./docs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := indexDocs(ctx, a, q.docs); err != nil {
					return err
				}

				answer, err := a.Orchestrator.QueryK(ctx, question, q.k)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if q.asJSON {
					return writeJSON(out, answerOutput{
						Answer:       answer.Text,
						Insufficient: answer.Insufficient,
						Passages:     toPassages(answer.Passages),
					})
				}

				fmt.Fprintln(out, answer.Text)
				if len(answer.Passages) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Sources:")
					printResults(out, answer.Passages)
				}
				return nil
			})
		},
	}

	q.bind(cmd)
	return cmd
}

func printResults(w io.Writer, results []types.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching passages.")
		return
	}
	for _, r := range results {
		source := r.Metadata[loader.MetaSource]
		if source == "" {
			source = r.Metadata[types.MetaDocumentID]
		}
		fmt.Fprintf(w, "%d. [%.4f] %s\n", r.Rank, r.Score, source)
		fmt.Fprintf(w, "   %s\n", preview(r.Text, 200))
	}
}

// preview flattens whitespace and truncates to n runes
func preview(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
