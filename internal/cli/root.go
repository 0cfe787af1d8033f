// Package cli implements the cogmem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/config"
	"github.com/rcliao/cogmem/internal/importance"
	"github.com/rcliao/cogmem/internal/stream"
)

var (
	dirFlag    string
	configFlag string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "cogmem",
	Short: "Cognitive memory for agent teams",
	Long: "A memory engine for autonomous agent teams: an append-only event log, " +
		"decaying importance tiers, and a semantic index over the markdown memory bank.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Data directory (default: $COGMEM_DIR or ~/.cogmem)")
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file, .toml or .yaml (default: $COGMEM_CONFIG or <dir>/config.toml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging on stderr")
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func loadConfig() *config.Config {
	cfg, err := config.Load(config.Options{Path: configFlag, Dir: dirFlag})
	if err != nil {
		exitErr("load config", err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openLog(cfg *config.Config, logger *slog.Logger) *stream.Log {
	return stream.Open(cfg.StreamFile, stream.Options{Logger: logger})
}

func openTracker(cfg *config.Config, logger *slog.Logger) *importance.Tracker {
	return importance.NewTracker(cfg.ImportanceFile, cfg.Importance, importance.Options{Logger: logger})
}

// printJSON writes v to stdout, indented when stdout is a terminal.
func printJSON(v any) {
	var (
		b   []byte
		err error
	)
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Println(string(b))
}

// emit prints v as JSON, or through text when --format=text.
func emit(v any, text func(w io.Writer)) {
	switch formatFlag {
	case "text":
		if text != nil {
			text(os.Stdout)
			return
		}
		printJSON(v)
	case "json", "":
		printJSON(v)
	default:
		exitErr("output", fmt.Errorf("unknown format %q (want json or text)", formatFlag))
	}
}

// readContent returns args joined, or stdin when no args are given and
// stdin is not a terminal.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
