// Package model defines the core memory data types.
package model

// EntryType classifies a stream entry.
type EntryType string

const (
	TypeAction      EntryType = "action"
	TypeObservation EntryType = "observation"
	TypeReflection  EntryType = "reflection"
	TypeDecision    EntryType = "decision"
)

// ValidEntryTypes are the allowed stream entry types.
var ValidEntryTypes = map[EntryType]bool{
	TypeAction:      true,
	TypeObservation: true,
	TypeReflection:  true,
	TypeDecision:    true,
}

// StreamEntry is one immutable fact in the append-only memory stream.
type StreamEntry struct {
	ID            string    `json:"id"`
	Cycle         int       `json:"cycle"`
	Timestamp     string    `json:"timestamp"`
	Role          string    `json:"role"`
	Action        string    `json:"action"`
	Content       string    `json:"content"`
	Importance    int       `json:"importance"`
	Type          EntryType `json:"type"`
	Tags          []string  `json:"tags"`
	IssueRefs     []int     `json:"issueRefs"`
	PRRefs        []int     `json:"prRefs"`
	TokenEstimate int       `json:"tokenEstimate"`
}

// HasIssue reports whether the entry references the given issue number.
func (e *StreamEntry) HasIssue(n int) bool {
	for _, ref := range e.IssueRefs {
		if ref == n {
			return true
		}
	}
	return false
}
