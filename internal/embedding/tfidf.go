package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TfIdfConfig configures a TfIdfProvider. Zero fields take defaults.
type TfIdfConfig struct {
	MaxDimensions int // default 512
	MinTermLength int // default 2
}

const (
	defaultMaxDimensions = 512
	defaultMinTermLength = 2
	vocabVersion         = 1
)

// TfIdfProvider embeds text as tf-idf weights over a vocabulary built from a
// corpus. It needs no network and no model files.
type TfIdfProvider struct {
	cfg   TfIdfConfig
	index map[string]int
	idf   []float64
}

// NewTfIdf returns a provider with no vocabulary.
func NewTfIdf(cfg TfIdfConfig) *TfIdfProvider {
	if cfg.MaxDimensions <= 0 {
		cfg.MaxDimensions = defaultMaxDimensions
	}
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = defaultMinTermLength
	}
	return &TfIdfProvider{cfg: cfg}
}

// Dimensions is the fixed vector length, independent of vocabulary size.
func (p *TfIdfProvider) Dimensions() int { return p.cfg.MaxDimensions }

// Built reports whether a vocabulary is available.
func (p *TfIdfProvider) Built() bool { return p.index != nil }

// Vocabulary returns the terms in column order.
func (p *TfIdfProvider) Vocabulary() []string {
	terms := make([]string, len(p.idf))
	for t, i := range p.index {
		terms[i] = t
	}
	return terms
}

// IDF returns the inverse document frequency of term and whether it is in
// the vocabulary.
func (p *TfIdfProvider) IDF(term string) (float64, bool) {
	i, ok := p.index[term]
	if !ok {
		return 0, false
	}
	return p.idf[i], true
}

// BuildVocabulary keeps the MaxDimensions terms with the highest document
// frequency, ties in first-seen order, and computes idf = ln(N / (1 + df)).
func (p *TfIdfProvider) BuildVocabulary(corpus []string) {
	df := make(map[string]int)
	var order []string
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range p.tokenize(doc) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if _, ok := df[tok]; !ok {
				order = append(order, tok)
			}
			df[tok]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return df[order[i]] > df[order[j]]
	})
	if len(order) > p.cfg.MaxDimensions {
		order = order[:p.cfg.MaxDimensions]
	}

	n := float64(len(corpus))
	p.index = make(map[string]int, len(order))
	p.idf = make([]float64, len(order))
	for i, term := range order {
		p.index[term] = i
		p.idf[i] = math.Log(n / float64(1+df[term]))
	}
}

func (p *TfIdfProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if p.index == nil {
		return nil, ErrVocabularyNotBuilt
	}

	tf := make(map[string]int)
	maxTf := 0
	for _, tok := range p.tokenize(text) {
		tf[tok]++
		if tf[tok] > maxTf {
			maxTf = tf[tok]
		}
	}

	v := make([]float32, p.cfg.MaxDimensions)
	for term, count := range tf {
		i, ok := p.index[term]
		if !ok {
			continue
		}
		v[i] = float32(float64(count) / float64(maxTf) * p.idf[i])
	}
	return Normalize(v), nil
}

func (p *TfIdfProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *TfIdfProvider) tokenize(text string) []string {
	// Punctuation is dropped, not split on: "event-log" is one term.
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(text))
	fields := strings.Fields(stripped)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= p.cfg.MinTermLength {
			out = append(out, f)
		}
	}
	return out
}

type vocabFile struct {
	Version       int       `json:"version"`
	MaxDimensions int       `json:"maxDimensions"`
	MinTermLength int       `json:"minTermLength"`
	Terms         []string  `json:"terms"`
	IDF           []float64 `json:"idf"`
}

// SaveVocabulary writes the vocabulary to path as JSON.
func (p *TfIdfProvider) SaveVocabulary(path string) error {
	if p.index == nil {
		return ErrVocabularyNotBuilt
	}
	data, err := json.Marshal(vocabFile{
		Version:       vocabVersion,
		MaxDimensions: p.cfg.MaxDimensions,
		MinTermLength: p.cfg.MinTermLength,
		Terms:         p.Vocabulary(),
		IDF:           p.idf,
	})
	if err != nil {
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create vocabulary dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write vocabulary %s: %w", path, err)
	}
	return nil
}

// LoadVocabulary replaces the vocabulary and settings with those saved at
// path.
func (p *TfIdfProvider) LoadVocabulary(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	var vf vocabFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	if vf.Version != vocabVersion {
		return fmt.Errorf("vocabulary %s: unsupported version %d", path, vf.Version)
	}
	if len(vf.Terms) != len(vf.IDF) || len(vf.Terms) > vf.MaxDimensions {
		return fmt.Errorf("vocabulary %s: %d terms, %d idf values, %d dimensions",
			path, len(vf.Terms), len(vf.IDF), vf.MaxDimensions)
	}

	p.cfg = TfIdfConfig{MaxDimensions: vf.MaxDimensions, MinTermLength: vf.MinTermLength}
	p.index = make(map[string]int, len(vf.Terms))
	for i, t := range vf.Terms {
		p.index[t] = i
	}
	p.idf = vf.IDF
	return nil
}
