package model

// Kind is the category of a tracked memory entry.
type Kind string

const (
	KindDecision  Kind = "decision"
	KindLesson    Kind = "lesson"
	KindStatus    Kind = "status"
	KindRoleState Kind = "role_state"
	KindBlocker   Kind = "blocker"
	KindQuestion  Kind = "question"
	KindMetric    Kind = "metric"
	KindThread    Kind = "thread"
)

// ValidKinds are the known entry kinds.
var ValidKinds = map[Kind]bool{
	KindDecision:  true,
	KindLesson:    true,
	KindStatus:    true,
	KindRoleState: true,
	KindBlocker:   true,
	KindQuestion:  true,
	KindMetric:    true,
	KindThread:    true,
}

// Tier is an entry's retrieval tier.
type Tier string

const (
	TierHot       Tier = "hot"
	TierWarm      Tier = "warm"
	TierCold      Tier = "cold"
	TierForgotten Tier = "forgotten"
)

// MemoryImportance is the decay-tracked score for one logical entry.
type MemoryImportance struct {
	EntryID         string  `json:"entryId"`
	Kind            Kind    `json:"kind"`
	KindWeight      float64 `json:"kindWeight"`
	AccessCount     int     `json:"accessCount"`
	LastAccessCycle int     `json:"lastAccessCycle"`
	CreatedCycle    int     `json:"createdCycle"`
	Score           float64 `json:"score"`
}

// ReferenceCycle is the cycle recency is measured from: the last access if
// the entry was ever accessed, otherwise its creation.
func (m *MemoryImportance) ReferenceCycle() int {
	if m.LastAccessCycle != 0 {
		return m.LastAccessCycle
	}
	return m.CreatedCycle
}
