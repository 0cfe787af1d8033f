// Package config loads cogmem settings from defaults, an optional TOML or
// YAML file, and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/cogmem/internal/importance"
)

// Store backends for the semantic index.
const (
	StoreMemory  = "memory"
	StoreSQLite  = "sqlite"
	StoreChromem = "chromem"
)

// Config holds resolved settings. File paths are absolute after Load.
type Config struct {
	Dir            string            `toml:"dir" yaml:"dir"`
	StreamFile     string            `toml:"stream_file" yaml:"stream_file"`
	ImportanceFile string            `toml:"importance_file" yaml:"importance_file"`
	SemanticDB     string            `toml:"semantic_db" yaml:"semantic_db"`
	VocabFile      string            `toml:"vocab_file" yaml:"vocab_file"`
	BankFile       string            `toml:"bank_file" yaml:"bank_file"`
	LogLevel       string            `toml:"log_level" yaml:"log_level"`
	Importance     importance.Config `toml:"importance" yaml:"importance"`
	Semantic       Semantic          `toml:"semantic" yaml:"semantic"`

	// Source is the config file that was read, if any.
	Source string `toml:"-" yaml:"-"`
}

// Semantic configures the semantic index.
type Semantic struct {
	MaxDimensions int     `toml:"max_dimensions" yaml:"max_dimensions"`
	MinTermLength int     `toml:"min_term_length" yaml:"min_term_length"`
	TopK          int     `toml:"top_k" yaml:"top_k"`
	MinScore      float64 `toml:"min_score" yaml:"min_score"`
	Store         string  `toml:"store" yaml:"store"`
	CacheSize     int64   `toml:"cache_size" yaml:"cache_size"`
}

// Options are the command-line overrides, applied last.
type Options struct {
	Path string // explicit config file
	Dir  string // data directory
}

// DefaultDir returns ~/.cogmem.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cogmem"
	}
	return filepath.Join(home, ".cogmem")
}

// Load resolves configuration: defaults, then the config file, then
// environment variables, then opts.
func Load(opts Options) (*Config, error) {
	dir := firstNonEmpty(opts.Dir, os.Getenv("COGMEM_DIR"))
	dirPinned := dir != ""
	if dir == "" {
		dir = DefaultDir()
	}
	dir = expandHome(dir)

	// Decoding leaves absent keys alone, so the file overrides defaults key by key.
	cfg := &Config{Importance: importance.DefaultConfig()}

	path := firstNonEmpty(opts.Path, os.Getenv("COGMEM_CONFIG"))
	if path != "" {
		if err := decodeFile(expandHome(path), cfg); err != nil {
			return nil, err
		}
	} else {
		for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
			candidate := filepath.Join(dir, name)
			err := decodeFile(candidate, cfg)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			break
		}
	}

	if dirPinned || cfg.Dir == "" {
		cfg.Dir = dir
	}
	cfg.Dir = expandHome(cfg.Dir)
	if level := os.Getenv("COGMEM_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config %s: unsupported format (use .toml or .yaml)", path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Source = path
	return nil
}

func (c *Config) resolve() error {
	if c.Semantic.Store == "" {
		c.Semantic.Store = StoreSQLite
	}
	switch c.Semantic.Store {
	case StoreMemory, StoreSQLite, StoreChromem:
	default:
		return fmt.Errorf("config: unknown semantic store %q (want memory, sqlite or chromem)", c.Semantic.Store)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	semanticDB := "semantic.db"
	if c.Semantic.Store == StoreChromem {
		semanticDB = "chromem"
	}

	c.StreamFile = c.path(c.StreamFile, "stream.jsonl")
	c.ImportanceFile = c.path(c.ImportanceFile, "importance.json")
	c.SemanticDB = c.path(c.SemanticDB, semanticDB)
	c.VocabFile = c.path(c.VocabFile, "vocab.json")
	c.BankFile = c.path(c.BankFile, "bank.md")
	return nil
}

// path resolves p against the data directory, falling back to def.
func (c *Config) path(p, def string) string {
	if p == "" {
		p = def
	}
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", s)
	}
	return l, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
