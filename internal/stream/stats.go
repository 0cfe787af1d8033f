package stream

import (
	"context"

	"github.com/rcliao/cogmem/internal/model"
)

// Stats summarizes the stream.
type Stats struct {
	Path          string                  `json:"path"`
	Entries       int                     `json:"entries"`
	OldestCycle   int                     `json:"oldestCycle"`
	NewestCycle   int                     `json:"newestCycle"`
	TotalTokens   int                     `json:"totalTokens"`
	ByRole        map[string]int          `json:"byRole"`
	ByType        map[model.EntryType]int `json:"byType"`
	LastTimestamp string                  `json:"lastTimestamp"`
}

// Stats returns counts and cycle bounds. An empty log yields a zero shape.
func (l *Log) Stats(ctx context.Context) (*Stats, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	st := &Stats{
		Path:   l.path,
		ByRole: map[string]int{},
		ByType: map[model.EntryType]int{},
	}

	for i, e := range l.entries {
		if i == 0 || e.Cycle < st.OldestCycle {
			st.OldestCycle = e.Cycle
		}
		if i == 0 || e.Cycle > st.NewestCycle {
			st.NewestCycle = e.Cycle
		}
		st.Entries++
		st.TotalTokens += e.TokenEstimate
		st.ByRole[e.Role]++
		st.ByType[e.Type]++
		st.LastTimestamp = e.Timestamp
	}

	return st, nil
}
