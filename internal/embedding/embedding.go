// Package embedding provides a pluggable interface for text embedding
// providers plus the vector math shared by the semantic index.
package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
)

var (
	// ErrDimensionMismatch means two vectors that must share a length do not.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrVocabularyNotBuilt is returned by TfIdfProvider before BuildVocabulary.
	ErrVocabularyNotBuilt = errors.New("tf-idf vocabulary not built")
)

// Provider generates fixed-length embedding vectors from text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// VocabularyBuilder is implemented by providers that must see the corpus
// before embedding.
type VocabularyBuilder interface {
	BuildVocabulary(corpus []string)
}

// CosineSimilarity computes cosine similarity between two vectors. A zero
// magnitude on either side yields 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) []float32 {
	m := Magnitude(v)
	if m == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / m)
	}
	return v
}

// MarshalVector encodes v as little-endian float32s.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// UnmarshalVector decodes a blob written by MarshalVector.
func UnmarshalVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("decode vector: length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// NewFromEnv creates a provider from environment variables.
// COGMEM_EMBED_PROVIDER: "tfidf" (default) | "ollama" | "openai"
// COGMEM_EMBED_MODEL: model name
// COGMEM_EMBED_URL: base URL override
// COGMEM_EMBED_DIMS: requested dimensions for openai
// OPENAI_API_KEY: for openai provider
func NewFromEnv(tfidf TfIdfConfig) (Provider, error) {
	provider := os.Getenv("COGMEM_EMBED_PROVIDER")
	model := os.Getenv("COGMEM_EMBED_MODEL")
	url := os.Getenv("COGMEM_EMBED_URL")

	switch provider {
	case "", "tfidf":
		return NewTfIdf(tfidf), nil
	case "ollama":
		return NewOllama(url, model), nil
	case "openai":
		dims := 0
		if s := os.Getenv("COGMEM_EMBED_DIMS"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("parse COGMEM_EMBED_DIMS: %w", err)
			}
			dims = n
		}
		p, err := NewOpenAI(OpenAIConfig{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    url,
			Model:      model,
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
