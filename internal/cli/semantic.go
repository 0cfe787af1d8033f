package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/config"
	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/semantic"
	"github.com/rcliao/cogmem/internal/store"
	"github.com/rcliao/cogmem/internal/store/chromem"
)

var semanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Index the memory bank and query it by meaning",
}

func init() {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Extract and index entries from the markdown memory bank",
		Run:   runSemanticIndex,
	}
	indexCmd.Flags().String("bank", "", "Memory bank file (default: bank_file from config)")

	queryCmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Find bank entries similar to the query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSemanticQuery,
	}
	queryCmd.Flags().String("bank", "", "Memory bank file, indexed first with the memory store")
	queryCmd.Flags().IntP("top-k", "k", 0, "Max results (default: top_k from config, else 5)")
	queryCmd.Flags().Float64("min-score", 0, "Minimum similarity (default: min_score from config, else 0.1; negative disables)")

	semanticCmd.AddCommand(indexCmd, queryCmd)
	RootCmd.AddCommand(semanticCmd)
}

// index bundles the semantic manager with the provider and store it owns.
type index struct {
	cfg      *config.Config
	logger   *slog.Logger
	bankFile string
	provider embedding.Provider
	store    store.Store
	mgr      *semantic.Manager
}

// openIndex wires provider, store and manager from cfg. loadVocab restores a
// saved TF-IDF vocabulary; indexing rebuilds it from the configured settings.
func openIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger, loadVocab bool) *index {
	provider, err := embedding.NewFromEnv(embedding.TfIdfConfig{
		MaxDimensions: cfg.Semantic.MaxDimensions,
		MinTermLength: cfg.Semantic.MinTermLength,
	})
	if err != nil {
		exitErr("embedding provider", err)
	}
	if tf, ok := provider.(*embedding.TfIdfProvider); ok && loadVocab {
		err := tf.LoadVocabulary(cfg.VocabFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			exitErr("load vocabulary", err)
		}
	}

	st, err := openVectorStore(cfg)
	if err != nil {
		exitErr("open semantic store", err)
	}

	mgr, err := semantic.NewManager(provider, st, semantic.Options{
		Logger:    logger,
		CacheSize: cfg.Semantic.CacheSize,
	})
	if err != nil {
		st.Close()
		exitErr("semantic manager", err)
	}

	logger.DebugContext(ctx, "semantic index opened", "store", cfg.Semantic.Store, "path", cfg.SemanticDB, "dims", provider.Dimensions())
	return &index{cfg: cfg, logger: logger, bankFile: cfg.BankFile, provider: provider, store: st, mgr: mgr}
}

func openVectorStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Semantic.Store {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreChromem:
		s, err := chromem.Open(cfg.SemanticDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := store.NewSQLiteStore(cfg.SemanticDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// indexBank re-reads the bank file, indexes it and persists the vocabulary.
func (x *index) indexBank(ctx context.Context) (int, error) {
	b, err := os.ReadFile(x.bankFile)
	if err != nil {
		return 0, fmt.Errorf("read memory bank %s: %w", x.bankFile, err)
	}

	n, err := x.mgr.IndexBank(ctx, string(b))
	if err != nil {
		return 0, err
	}
	if tf, ok := x.provider.(*embedding.TfIdfProvider); ok && n > 0 {
		if err := tf.SaveVocabulary(x.cfg.VocabFile); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (x *index) close() {
	x.mgr.Close()
	if err := x.store.Close(); err != nil {
		x.logger.Warn("close semantic store", "err", err)
	}
}

func runSemanticIndex(cmd *cobra.Command, args []string) {
	bankFile, _ := cmd.Flags().GetString("bank")

	cfg := loadConfig()
	idx := openIndex(cmd.Context(), cfg, newLogger(cfg), false)
	defer idx.close()
	if bankFile != "" {
		idx.bankFile = bankFile
	}

	n, err := idx.indexBank(cmd.Context())
	if err != nil {
		idx.close()
		exitErr("index", err)
	}

	out := map[string]any{"bank": idx.bankFile, "indexed": n}
	emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "indexed %d entries from %s\n", n, idx.bankFile)
	})
}

func runSemanticQuery(cmd *cobra.Command, args []string) {
	bankFile, _ := cmd.Flags().GetString("bank")
	topK, _ := cmd.Flags().GetInt("top-k")
	minScore, _ := cmd.Flags().GetFloat64("min-score")

	cfg := loadConfig()
	idx := openIndex(cmd.Context(), cfg, newLogger(cfg), cfg.Semantic.Store != config.StoreMemory)
	defer idx.close()
	if bankFile != "" {
		idx.bankFile = bankFile
	}

	if cfg.Semantic.Store == config.StoreMemory {
		if _, err := idx.indexBank(cmd.Context()); err != nil {
			idx.close()
			exitErr("index", err)
		}
	}

	opts := semantic.QueryOpts{TopK: cfg.Semantic.TopK, MinScore: cfg.Semantic.MinScore}
	if cmd.Flags().Changed("top-k") {
		opts.TopK = topK
	}
	if cmd.Flags().Changed("min-score") {
		opts.MinScore = minScore
	}

	results, err := idx.mgr.Query(cmd.Context(), strings.Join(args, " "), opts)
	if err != nil {
		idx.close()
		if errors.Is(err, embedding.ErrVocabularyNotBuilt) {
			exitErr("query", fmt.Errorf("%w (run `cogmem semantic index` first)", err))
		}
		exitErr("query", err)
	}
	if results == nil {
		results = []store.Result{}
	}

	emit(results, func(w io.Writer) {
		for _, r := range results {
			fmt.Fprintf(w, "%.3f  %-22s %s\n", r.Score, r.ID, r.Content)
		}
	})
}
