package importance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rcliao/cogmem/internal/model"
)

// stateVersion is the only persisted document version Load accepts.
const stateVersion = 1

type stateDoc struct {
	Version         int                                `json:"version"`
	LastUpdateCycle int                                `json:"lastUpdateCycle"`
	LastUpdated     string                             `json:"lastUpdated"`
	Entries         map[string]*model.MemoryImportance `json:"entries"`
}

// Options configures a Tracker.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// LifecycleResult lists the tier moves recommended by CheckLifecycle.
type LifecycleResult struct {
	DemoteToWarm []string `json:"demoteToWarm"`
	DemoteToCold []string `json:"demoteToCold"`
	PromoteToHot []string `json:"promoteToHot"`
	CanForget    []string `json:"canForget"`
}

// Tracker holds importance records in memory between Load and Save. State is
// loaded lazily on first use and written only when dirty.
type Tracker struct {
	path   string
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	loaded          bool
	dirty           bool
	lastUpdateCycle int
	entries         map[string]*model.MemoryImportance
}

// NewTracker returns a Tracker persisted at path. A zero cfg means
// DefaultConfig.
func NewTracker(path string, cfg Config, opts Options) *Tracker {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Tracker{
		path:    path,
		cfg:     cfg,
		logger:  opts.Logger,
		now:     opts.Now,
		entries: make(map[string]*model.MemoryImportance),
	}
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Path returns the state file path.
func (t *Tracker) Path() string { return t.path }

// Dirty reports whether in-memory state differs from what was last loaded or
// saved.
func (t *Tracker) Dirty() bool { return t.dirty }

func (t *Tracker) ensureLoaded() error {
	if t.loaded {
		return nil
	}
	return t.Load()
}

// Load replaces in-memory state with the contents of the state file. A
// missing file or an unknown document version yields empty state.
func (t *Tracker) Load() error {
	t.entries = make(map[string]*model.MemoryImportance)
	t.lastUpdateCycle = 0
	t.dirty = false

	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		t.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read importance state %s: %w", t.path, err)
	}

	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse importance state %s: %w", t.path, err)
	}
	t.loaded = true

	if doc.Version != stateVersion {
		t.logger.Warn("importance state version mismatch, starting empty",
			"file", t.path, "version", doc.Version, "want", stateVersion)
		return nil
	}

	for id, m := range doc.Entries {
		if m == nil {
			continue
		}
		m.EntryID = id
		m.Score = clamp01(m.Score)
		t.entries[id] = m
	}
	t.lastUpdateCycle = doc.LastUpdateCycle
	t.logger.Debug("importance state loaded", "file", t.path, "entries", len(t.entries))
	return nil
}

// Save writes state to disk if it is dirty. The file is replaced atomically.
func (t *Tracker) Save() error {
	if !t.dirty {
		return nil
	}

	doc := stateDoc{
		Version:         stateVersion,
		LastUpdateCycle: t.lastUpdateCycle,
		LastUpdated:     t.now().UTC().Format(time.RFC3339),
		Entries:         t.entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode importance state: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create importance dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", t.path, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write importance state %s (not saved): %w", t.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file for %s (not saved): %w", t.path, err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace importance state %s (not saved): %w", t.path, err)
	}

	t.dirty = false
	t.logger.Debug("importance state saved", "file", t.path, "entries", len(t.entries))
	return nil
}

// GetOrCreate returns the record for id, creating it at cycle if unseen.
// kind only matters on creation.
func (t *Tracker) GetOrCreate(id string, kind model.Kind, cycle int) (model.MemoryImportance, error) {
	if err := t.ensureLoaded(); err != nil {
		return model.MemoryImportance{}, err
	}
	return *t.getOrCreate(id, kind, cycle), nil
}

func (t *Tracker) getOrCreate(id string, kind model.Kind, cycle int) *model.MemoryImportance {
	if m, ok := t.entries[id]; ok {
		return m
	}
	m := &model.MemoryImportance{
		EntryID:      id,
		Kind:         kind,
		KindWeight:   KindWeight(kind),
		CreatedCycle: cycle,
	}
	m.Score = score(t.cfg, m, cycle, m.CreatedCycle)
	t.entries[id] = m
	t.dirty = true
	return m
}

// TrackAccess records an access to id at cycle and rescores it.
func (t *Tracker) TrackAccess(id string, kind model.Kind, cycle int) (model.MemoryImportance, error) {
	if err := t.ensureLoaded(); err != nil {
		return model.MemoryImportance{}, err
	}
	m := t.getOrCreate(id, kind, cycle)
	m.AccessCount++
	m.LastAccessCycle = cycle
	m.Score = score(t.cfg, m, cycle, m.LastAccessCycle)
	t.dirty = true
	return *m, nil
}

// RefreshAll rescores every record as of cycle.
func (t *Tracker) RefreshAll(cycle int) error {
	if err := t.ensureLoaded(); err != nil {
		return err
	}
	for _, m := range t.entries {
		m.Score = score(t.cfg, m, cycle, m.ReferenceCycle())
	}
	t.lastUpdateCycle = cycle
	t.dirty = true
	return nil
}

// CheckLifecycle recommends tier moves for the given tier membership.
// Promotion out of warm is checked before any demotion, and an id gets at
// most one recommendation. Untracked ids are skipped. Forget eligibility
// uses the stored score, so callers normally RefreshAll first.
func (t *Tracker) CheckLifecycle(cycle int, hot, warm, cold []string) (*LifecycleResult, error) {
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}

	res := &LifecycleResult{
		DemoteToWarm: []string{},
		DemoteToCold: []string{},
		PromoteToHot: []string{},
		CanForget:    []string{},
	}
	decided := make(map[string]bool)
	age := func(m *model.MemoryImportance) int { return cycle - m.ReferenceCycle() }

	for _, id := range warm {
		m, ok := t.entries[id]
		if !ok || decided[id] {
			continue
		}
		if m.AccessCount >= t.cfg.PromoteMinAccesses && cycle-m.LastAccessCycle <= t.cfg.PromoteWindowCycles {
			res.PromoteToHot = append(res.PromoteToHot, id)
			decided[id] = true
		}
	}

	for _, id := range hot {
		m, ok := t.entries[id]
		if !ok || decided[id] {
			continue
		}
		if age(m) >= t.cfg.HotDemotionCycles {
			res.DemoteToWarm = append(res.DemoteToWarm, id)
			decided[id] = true
		}
	}

	for _, id := range warm {
		m, ok := t.entries[id]
		if !ok || decided[id] {
			continue
		}
		if age(m) >= t.cfg.WarmDemotionCycles {
			res.DemoteToCold = append(res.DemoteToCold, id)
			decided[id] = true
		}
	}

	for _, id := range cold {
		m, ok := t.entries[id]
		if !ok || decided[id] {
			continue
		}
		if age(m) >= t.cfg.ColdForgetCycles && m.Score < t.cfg.ForgetThreshold {
			res.CanForget = append(res.CanForget, id)
			decided[id] = true
		}
	}

	t.logger.Debug("lifecycle check", "cycle", cycle,
		"promote", len(res.PromoteToHot), "toWarm", len(res.DemoteToWarm),
		"toCold", len(res.DemoteToCold), "forget", len(res.CanForget))
	return res, nil
}

// RemoveEntries deletes tracking records and returns how many existed. The
// underlying content is the caller's to remove.
func (t *Tracker) RemoveEntries(ids []string) (int, error) {
	if err := t.ensureLoaded(); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, ok := t.entries[id]; ok {
			delete(t.entries, id)
			n++
		}
	}
	if n > 0 {
		t.dirty = true
	}
	return n, nil
}

// Get returns the record for id.
func (t *Tracker) Get(id string) (model.MemoryImportance, bool, error) {
	if err := t.ensureLoaded(); err != nil {
		return model.MemoryImportance{}, false, err
	}
	m, ok := t.entries[id]
	if !ok {
		return model.MemoryImportance{}, false, nil
	}
	return *m, true, nil
}

// Entries returns all records ordered by score descending, then id.
func (t *Tracker) Entries() ([]model.MemoryImportance, error) {
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]model.MemoryImportance, 0, len(t.entries))
	for _, m := range t.entries {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

// LastUpdateCycle returns the cycle of the most recent RefreshAll.
func (t *Tracker) LastUpdateCycle() (int, error) {
	if err := t.ensureLoaded(); err != nil {
		return 0, err
	}
	return t.lastUpdateCycle, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
