package stream

import (
	"context"

	"github.com/rcliao/cogmem/internal/scoring"
)

const (
	// DefaultContextBudget is the token budget used when ContextParams.Budget is unset.
	DefaultContextBudget = 2000

	contextCandidates = 50
	minExcerptTokens  = 25
)

// ContextParams holds parameters for assembling a prompt context.
type ContextParams struct {
	Query string
	Filter
	Budget int // tokens
}

// ContextEntry is a packed stream entry. Excerpt marks truncated content.
type ContextEntry struct {
	ScoredEntry
	Excerpt bool `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context.
type ContextResult struct {
	Budget  int            `json:"budget"`
	Used    int            `json:"used"`
	Entries []ContextEntry `json:"entries"`
}

// Context packs the best-scoring entries into a token budget, greedily in
// score order. When the next entry does not fit and enough budget remains,
// a truncated excerpt of it closes the context.
func (l *Log) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	results, err := l.Search(ctx, SearchParams{
		Query:  p.Query,
		Filter: p.Filter,
		Limit:  contextCandidates,
	})
	if err != nil {
		return nil, err
	}

	out := &ContextResult{Budget: budget, Entries: []ContextEntry{}}
	for _, r := range results {
		cost := r.TokenEstimate
		if out.Used+cost <= budget {
			out.Entries = append(out.Entries, ContextEntry{ScoredEntry: r})
			out.Used += cost
			continue
		}

		remaining := budget - out.Used
		if remaining >= minExcerptTokens {
			r.Content = excerpt(r.Content, remaining)
			r.TokenEstimate = scoring.EstimateTokens(r.Content)
			out.Entries = append(out.Entries, ContextEntry{ScoredEntry: r, Excerpt: true})
			out.Used += r.TokenEstimate
		}
		break
	}
	return out, nil
}

// excerpt truncates content to roughly tokens tokens, ending with an ellipsis.
func excerpt(content string, tokens int) string {
	runes := []rune(content)
	limit := scoring.CharsForTokens(tokens) - 1
	if limit < 0 {
		limit = 0
	}
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "…"
}
