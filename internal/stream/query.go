package stream

import (
	"context"
	"sort"

	"github.com/rcliao/cogmem/internal/model"
	"github.com/rcliao/cogmem/internal/scoring"
)

// DefaultSearchLimit caps Search results when SearchParams.Limit is unset.
const DefaultSearchLimit = 5

// Filter narrows the candidate set. Zero values mean "no filter".
type Filter struct {
	Role          string
	Issue         int
	Type          model.EntryType
	MinImportance int
}

// SearchParams holds parameters for a scored search.
type SearchParams struct {
	Query string
	Filter
	MinCycle *int // inclusive
	MaxCycle *int // inclusive
	Limit    int
}

// ScoredEntry is a stream entry with its composite recall score.
type ScoredEntry struct {
	model.StreamEntry
	Score           float64 `json:"score"`
	Recency         float64 `json:"recency"`
	ImportanceScore float64 `json:"importanceScore"`
	Relevance       float64 `json:"relevance"`
}

func (f Filter) match(e *model.StreamEntry) bool {
	if f.Role != "" && e.Role != f.Role {
		return false
	}
	if f.Issue != 0 && !e.HasIssue(f.Issue) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.MinImportance > 0 && e.Importance < f.MinImportance {
		return false
	}
	return true
}

// Search ranks entries by recency + importance + relevance to the query.
// Recency is measured against the newest cycle in the whole log, not the
// filtered candidates.
func (l *Log) Search(ctx context.Context, p SearchParams) ([]ScoredEntry, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	currentCycle := l.maxCycle()
	weights := scoring.DefaultWeights()

	var results []ScoredEntry
	for i := range l.entries {
		e := &l.entries[i]
		if !p.Filter.match(e) {
			continue
		}
		if p.MinCycle != nil && e.Cycle < *p.MinCycle {
			continue
		}
		if p.MaxCycle != nil && e.Cycle > *p.MaxCycle {
			continue
		}

		recency := scoring.Recency(currentCycle - e.Cycle)
		importance := scoring.Importance(e.Importance)
		relevance := scoring.Relevance(p.Query, e.Content)

		results = append(results, ScoredEntry{
			StreamEntry:     *e,
			Score:           weights.Composite(recency, importance, relevance),
			Recency:         recency,
			ImportanceScore: importance,
			Relevance:       relevance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ByCycleRange returns entries with start <= cycle <= end, newest first.
func (l *Log) ByCycleRange(ctx context.Context, start, end int, f Filter) ([]model.StreamEntry, error) {
	return l.collect(ctx, 0, func(e *model.StreamEntry) bool {
		return e.Cycle >= start && e.Cycle <= end && f.match(e)
	})
}

// ByRole returns a role's entries, newest first. limit <= 0 returns all.
func (l *Log) ByRole(ctx context.Context, role string, limit int) ([]model.StreamEntry, error) {
	return l.collect(ctx, limit, func(e *model.StreamEntry) bool {
		return e.Role == role
	})
}

// ByIssue returns entries referencing an issue, newest first. limit <= 0
// returns all.
func (l *Log) ByIssue(ctx context.Context, issue, limit int) ([]model.StreamEntry, error) {
	return l.collect(ctx, limit, func(e *model.StreamEntry) bool {
		return e.HasIssue(issue)
	})
}

// LastEntryForRole returns the most recently appended entry for role, or nil.
func (l *Log) LastEntryForRole(ctx context.Context, role string) (*model.StreamEntry, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Role == role {
			e := l.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

// collect filters entries and orders them by cycle descending; entries of
// the same cycle are ordered most recently appended first.
func (l *Log) collect(ctx context.Context, limit int, keep func(*model.StreamEntry) bool) ([]model.StreamEntry, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	out := []model.StreamEntry{}
	for i := len(l.entries) - 1; i >= 0; i-- {
		if keep(&l.entries[i]) {
			out = append(out, l.entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cycle > out[j].Cycle
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Log) maxCycle() int {
	maxCycle := 0
	for i, e := range l.entries {
		if i == 0 || e.Cycle > maxCycle {
			maxCycle = e.Cycle
		}
	}
	return maxCycle
}
