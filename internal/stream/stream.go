// Package stream implements the append-only memory stream: a JSONL event log
// of what each role did each cycle, with scored recall.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/cogmem/internal/model"
	"github.com/rcliao/cogmem/internal/scoring"
)

// DefaultImportance is used when AppendParams.Importance is left at zero.
const DefaultImportance = 5

const maxLineSize = 16 << 20

// Options configures a Log.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// AppendParams holds parameters for appending a stream entry.
type AppendParams struct {
	Cycle   int
	Role    string
	Action  string
	Content string

	// Importance is 1-10. Zero is treated as unset and becomes
	// DefaultImportance (5), not 1; other values are clamped to [1,10].
	Importance int

	Type      model.EntryType
	Tags      []string
	IssueRefs []int
	PRRefs    []int
}

// Log is a JSONL-backed memory stream. Entries are loaded lazily on first
// read and cached until Reload.
type Log struct {
	path    string
	logger  *slog.Logger
	now     func() time.Time
	entropy *rand.Rand

	loaded  bool
	entries []model.StreamEntry
}

// Open returns a Log backed by the JSONL file at path. No I/O happens until
// the log is first used.
func Open(path string, opts Options) *Log {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Log{
		path:    path,
		logger:  opts.Logger,
		now:     opts.Now,
		entropy: rand.New(rand.NewSource(opts.Now().UnixNano())),
	}
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

func (l *Log) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), l.entropy).String()
}

// Append validates p, writes one JSON line to the backing file and adds the
// entry to the cache.
func (l *Log) Append(ctx context.Context, p AppendParams) (*model.StreamEntry, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	importance := p.Importance
	if importance == 0 {
		importance = DefaultImportance
	}

	typ := p.Type
	if !model.ValidEntryTypes[typ] {
		typ = model.TypeAction
	}

	issues, prs := ExtractRefs(p.Content)

	now := l.now().UTC()
	entry := model.StreamEntry{
		ID:            l.newID(now),
		Cycle:         p.Cycle,
		Timestamp:     now.Format(time.RFC3339),
		Role:          p.Role,
		Action:        p.Action,
		Content:       p.Content,
		Importance:    scoring.ClampImportance(importance),
		Type:          typ,
		Tags:          dedupeStrings(p.Tags),
		IssueRefs:     mergeRefs(p.IssueRefs, issues),
		PRRefs:        mergeRefs(p.PRRefs, prs),
		TokenEstimate: scoring.EstimateTokens(p.Content),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode stream entry: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create stream dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", l.path, err)
	}
	if err := terminateTornLine(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("repair stream %s: %w", l.path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return nil, fmt.Errorf("append stream entry to %s (line may be partially written): %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close stream %s: %w", l.path, err)
	}

	l.entries = append(l.entries, entry)
	l.logger.Debug("stream append", "id", entry.ID, "cycle", entry.Cycle, "role", entry.Role)

	return &entry, nil
}

// terminateTornLine writes a newline when the file does not end with one, so
// a fragment left by an interrupted write cannot swallow the next line.
func terminateTornLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return err
	}
	r, err := os.Open(f.Name())
	if err != nil {
		return err
	}
	defer r.Close()
	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}

// Reload discards the cache and re-reads the backing file.
func (l *Log) Reload(ctx context.Context) error {
	l.loaded = false
	l.entries = nil
	return l.ensureLoaded(ctx)
}

// Entries returns a copy of every entry in insertion order.
func (l *Log) Entries(ctx context.Context) ([]model.StreamEntry, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make([]model.StreamEntry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

func (l *Log) ensureLoaded(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	entries, err := l.read(ctx)
	if err != nil {
		return err
	}
	l.entries = entries
	l.loaded = true
	return nil
}

// read parses the backing file. A missing file is an empty log; lines that
// fail to parse are skipped with a warning.
func (l *Log) read(ctx context.Context) ([]model.StreamEntry, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", l.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var entries []model.StreamEntry
	lineNum := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var e model.StreamEntry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			l.logger.Warn("skipping malformed stream line", "file", l.path, "line", lineNum, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream %s at line %d: %w", l.path, lineNum+1, err)
	}

	l.logger.Debug("stream loaded", "file", l.path, "entries", len(entries), "skipped", skipped)
	return entries, nil
}

var (
	prRefRe    = regexp.MustCompile(`(?i)\b(?:PR\s*#?|pull/)(\d+)\b`)
	issueRefRe = regexp.MustCompile(`#(\d+)\b`)
)

// ExtractRefs finds issue ("#12") and pull request ("PR #12", "PR 12",
// "pull/12") references in text.
func ExtractRefs(text string) (issues, prs []int) {
	prSpans := prRefRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range prSpans {
		if n, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
			prs = append(prs, n)
		}
	}

	for _, m := range issueRefRe.FindAllStringSubmatchIndex(text, -1) {
		if insideSpan(m[0], prSpans) {
			continue
		}
		if n, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
			issues = append(issues, n)
		}
	}
	return issues, prs
}

func insideSpan(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

// mergeRefs unions the ref lists, sorted ascending without duplicates.
func mergeRefs(lists ...[]int) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, list := range lists {
		for _, n := range list {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
