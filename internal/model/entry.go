package model

// MemoryEntry is a typed record extracted from the markdown memory bank.
type MemoryEntry struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Content string   `json:"content"`
	Role    string   `json:"role,omitempty"`
	Date    string   `json:"date,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// EmbeddedEntry pairs a memory entry with its embedding vector.
type EmbeddedEntry struct {
	MemoryEntry
	Embedding []float32 `json:"embedding"`
}
