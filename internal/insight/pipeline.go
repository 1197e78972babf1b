package insight

import (
	"context"
	"fmt"
	"log/slog"

	"spend-insight/internal/embeddings"
	"spend-insight/internal/llm"
	"spend-insight/internal/vecindex"
)

// Sentinel responses. These are ordinary return values, not errors; the
// caller gets a string either way.
const (
	SentinelNoExpenses = "no valid expenses found"
	SentinelNoInsight  = "model returned no meaningful insight"
)

const (
	// topK is the number of nearest expenses retrieved per question.
	topK = 3
	// minInsightLength is the shortest cleaned response accepted before
	// the single retry is spent.
	minInsightLength = 10
)

// Pipeline answers a spending question: embed the question, retrieve
// the nearest expenses, aggregate them, and prompt the model with the
// grounded context. The only failures it propagates are the ones that
// make any answer impossible (query embedding, search, and generation
// faulting on both attempts); everything else resolves to a sentinel.
type Pipeline struct {
	log      *slog.Logger
	embedder embeddings.Embedder
	index    vecindex.Index
	llm      llm.Client
}

func New(log *slog.Logger, embedder embeddings.Embedder, index vecindex.Index, client llm.Client) *Pipeline {
	return &Pipeline{log: log, embedder: embedder, index: index, llm: client}
}

func (p *Pipeline) Run(ctx context.Context, question string) (string, error) {
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := p.index.Search(ctx, vec, topK)
	if err != nil {
		return "", fmt.Errorf("failed to search expenses: %w", err)
	}

	expenses := FromHits(hits)
	if dropped := len(hits) - len(expenses); dropped > 0 {
		p.log.Warn("dropped hits with corrupt metadata", "dropped", dropped)
	}
	if len(expenses) == 0 {
		return SentinelNoExpenses, nil
	}

	summary := Summarize(expenses)
	contextBlock := RenderContext(expenses, summary)

	text, genErr := p.generate(ctx, insightPrompt(contextBlock))
	if genErr != nil {
		p.log.Warn("generation failed on first attempt", "err", genErr)
		text = ""
	}
	cleaned := Clean(text)

	// A cleaned response shorter than minInsightLength is degenerate:
	// spend the single retry on a simplified prompt and prefer its
	// output when non-empty.
	if len(cleaned) < minInsightLength {
		retryText, retryErr := p.generate(ctx, retryPrompt(contextBlock))
		if retryErr != nil {
			if genErr != nil {
				return "", fmt.Errorf("failed to generate insight: %w", retryErr)
			}
			p.log.Warn("generation failed on retry", "err", retryErr)
		} else if rc := Clean(retryText); rc != "" {
			cleaned = rc
		}
	}

	if cleaned == "" {
		return SentinelNoInsight, nil
	}
	return cleaned, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	return p.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}
