package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"COGMEM_DIR", "COGMEM_CONFIG", "COGMEM_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dir != dir {
		t.Errorf("dir = %q, want %q", cfg.Dir, dir)
	}
	if cfg.StreamFile != filepath.Join(dir, "stream.jsonl") {
		t.Errorf("stream file = %q", cfg.StreamFile)
	}
	if cfg.SemanticDB != filepath.Join(dir, "semantic.db") {
		t.Errorf("semantic db = %q", cfg.SemanticDB)
	}
	if cfg.Semantic.Store != StoreSQLite {
		t.Errorf("store = %q", cfg.Semantic.Store)
	}
	if cfg.Importance.ColdForgetCycles != 200 {
		t.Errorf("importance defaults not applied: %+v", cfg.Importance)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.Level())
	}
	if cfg.Source != "" {
		t.Errorf("no config file expected, got %q", cfg.Source)
	}
}

func TestLoadTOMLFromDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	toml := `
stream_file = "logs/stream.jsonl"
log_level = "debug"

[importance]
forget_threshold = 0.25
hot_demotion_cycles = 4

[semantic]
store = "chromem"
max_dimensions = 128
top_k = 3
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StreamFile != filepath.Join(dir, "logs", "stream.jsonl") {
		t.Errorf("stream file = %q", cfg.StreamFile)
	}
	if cfg.Importance.ForgetThreshold != 0.25 || cfg.Importance.HotDemotionCycles != 4 {
		t.Errorf("importance = %+v", cfg.Importance)
	}
	if cfg.Importance.WarmDemotionCycles != 50 {
		t.Errorf("unset importance fields should default, got %d", cfg.Importance.WarmDemotionCycles)
	}
	if cfg.Semantic.Store != StoreChromem || cfg.Semantic.MaxDimensions != 128 || cfg.Semantic.TopK != 3 {
		t.Errorf("semantic = %+v", cfg.Semantic)
	}
	if cfg.SemanticDB != filepath.Join(dir, "chromem") {
		t.Errorf("chromem store should default to a directory, got %q", cfg.SemanticDB)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.Level())
	}
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	toml := "[importance]\naccess_weight = 0\nforget_threshold = 0\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Importance.AccessWeight != 0 || cfg.Importance.ForgetThreshold != 0 {
		t.Errorf("explicit zeros replaced: %+v", cfg.Importance)
	}
	if cfg.Importance.RecencyWeight != 0.3 || cfg.Importance.ColdForgetCycles != 200 {
		t.Errorf("absent keys should keep defaults: %+v", cfg.Importance)
	}

	yamlDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(yamlDir, "config.yaml"), []byte("importance:\n  recency_weight: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(Options{Dir: yamlDir})
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Importance.RecencyWeight != 0 || cfg.Importance.AccessWeight != 0.3 {
		t.Errorf("yaml importance = %+v", cfg.Importance)
	}
}

func TestLoadYAMLExplicitPath(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "cogmem.yaml")
	yaml := "dir: " + dataDir + "\nvocab_file: /tmp/vocab.json\nsemantic:\n  store: memory\n  min_score: 0.2\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{Path: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Source != path {
		t.Errorf("source = %q", cfg.Source)
	}
	if cfg.Dir != dataDir {
		t.Errorf("dir from file = %q, want %q", cfg.Dir, dataDir)
	}
	if cfg.VocabFile != "/tmp/vocab.json" {
		t.Errorf("absolute path changed: %q", cfg.VocabFile)
	}
	if cfg.Semantic.Store != StoreMemory || cfg.Semantic.MinScore != 0.2 {
		t.Errorf("semantic = %+v", cfg.Semantic)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	fileDir := t.TempDir()
	envDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("dir = \""+fileDir+"\"\nlog_level = \"error\"\n"), 0o644)

	t.Setenv("COGMEM_CONFIG", path)
	t.Setenv("COGMEM_DIR", envDir)
	t.Setenv("COGMEM_LOG_LEVEL", "warn")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dir != envDir {
		t.Errorf("env dir should win over file, got %q", cfg.Dir)
	}
	if cfg.Level() != slog.LevelWarn {
		t.Errorf("env log level should win, got %v", cfg.Level())
	}

	flagDir := t.TempDir()
	cfg, _ = Load(Options{Dir: flagDir})
	if cfg.Dir != flagDir {
		t.Errorf("flag dir should win over env, got %q", cfg.Dir)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	if _, err := Load(Options{Path: filepath.Join(dir, "missing.toml")}); err == nil {
		t.Error("expected error for missing explicit config")
	}

	ini := filepath.Join(dir, "config.ini")
	os.WriteFile(ini, []byte("x=1"), 0o644)
	if _, err := Load(Options{Path: ini}); err == nil {
		t.Error("expected error for unsupported extension")
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[semantic]\nstore = \"redis\"\n"), 0o644)
	if _, err := Load(Options{Path: bad}); err == nil {
		t.Error("expected error for unknown store")
	}

	broken := filepath.Join(dir, "broken.toml")
	os.WriteFile(broken, []byte("[semantic\n"), 0o644)
	if _, err := Load(Options{Path: broken}); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("COGMEM_LOG_LEVEL", "loud")
	if _, err := Load(Options{Dir: dir}); err == nil {
		t.Error("expected error for invalid log level")
	}
}
