package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/config"
	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
	"github.com/rcliao/cogmem/internal/store"
)

func init() {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show semantic index statistics",
		Run:   runSemanticStats,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export indexed entries as JSONL (sqlite store only)",
		Run:   runSemanticExport,
	}
	exportCmd.Flags().StringP("kind", "k", "", "Filter by kind")
	exportCmd.Flags().Bool("vectors", false, "Include embedding vectors")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	semanticCmd.AddCommand(statsCmd, exportCmd)
}

type semanticStats struct {
	Store      string       `json:"store"`
	Path       string       `json:"path"`
	Entries    int          `json:"entries"`
	Dimensions int          `json:"dimensions"`
	Vocabulary int          `json:"vocabulary,omitempty"`
	SQLite     *store.Stats `json:"sqlite,omitempty"`
}

func runSemanticStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	idx := openIndex(cmd.Context(), cfg, newLogger(cfg), true)
	defer idx.close()

	n, err := idx.mgr.Count(cmd.Context())
	if err != nil {
		idx.close()
		exitErr("stats", err)
	}

	st := semanticStats{
		Store:      cfg.Semantic.Store,
		Path:       cfg.SemanticDB,
		Entries:    n,
		Dimensions: idx.provider.Dimensions(),
	}
	if tf, ok := idx.provider.(*embedding.TfIdfProvider); ok {
		st.Vocabulary = len(tf.Vocabulary())
	}
	if s, ok := idx.store.(*store.SQLiteStore); ok {
		if st.SQLite, err = s.Stats(cmd.Context()); err != nil {
			idx.close()
			exitErr("stats", err)
		}
	}

	emit(st, func(w io.Writer) {
		fmt.Fprintf(w, "store:   %s (%s)\n", st.Store, st.Path)
		fmt.Fprintf(w, "entries: %d\n", st.Entries)
		fmt.Fprintf(w, "dims:    %d\n", st.Dimensions)
		if st.SQLite != nil {
			for _, k := range st.SQLite.Kinds {
				fmt.Fprintf(w, "  %s: %d\n", k.Kind, k.Count)
			}
		}
	})
}

func runSemanticExport(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	vectors, _ := cmd.Flags().GetBool("vectors")
	output, _ := cmd.Flags().GetString("output")

	cfg := loadConfig()
	if cfg.Semantic.Store != config.StoreSQLite {
		exitErr("export", fmt.Errorf("export needs the sqlite store, configured store is %q", cfg.Semantic.Store))
	}

	s, err := store.NewSQLiteStore(cfg.SemanticDB)
	if err != nil {
		exitErr("open semantic store", err)
	}
	defer s.Close()

	entries, err := s.ExportAll(cmd.Context(), model.Kind(kind))
	if err != nil {
		exitErr("export", err)
	}

	w := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			exitErr("create output", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	for _, e := range entries {
		var v any = e
		if !vectors {
			v = e.MemoryEntry
		}
		if err := enc.Encode(v); err != nil {
			exitErr("export", err)
		}
	}

	if output != "" {
		fmt.Fprintf(os.Stderr, "exported %d entries to %s\n", len(entries), output)
	}
}
