package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/stream"
)

func init() {
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Recall entries by recency, importance and relevance",
		Run:   runLogSearch,
	}
	filterFlags(search)
	search.Flags().Int("min-cycle", -1, "Earliest cycle (inclusive)")
	search.Flags().Int("max-cycle", -1, "Latest cycle (inclusive)")
	search.Flags().IntP("limit", "l", stream.DefaultSearchLimit, "Max results")

	ctxCmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Pack the best-scoring entries into a token budget",
		Run:   runLogContext,
	}
	filterFlags(ctxCmd)
	ctxCmd.Flags().IntP("budget", "b", stream.DefaultContextBudget, "Token budget")

	logCmd.AddCommand(search, ctxCmd)
}

func runLogSearch(cmd *cobra.Command, args []string) {
	minCycle, _ := cmd.Flags().GetInt("min-cycle")
	maxCycle, _ := cmd.Flags().GetInt("max-cycle")
	limit, _ := cmd.Flags().GetInt("limit")

	p := stream.SearchParams{
		Query:  strings.Join(args, " "),
		Filter: readFilter(cmd),
		Limit:  limit,
	}
	if cmd.Flags().Changed("min-cycle") {
		p.MinCycle = &minCycle
	}
	if cmd.Flags().Changed("max-cycle") {
		p.MaxCycle = &maxCycle
	}

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	results, err := l.Search(cmd.Context(), p)
	if err != nil {
		exitErr("search", err)
	}
	if results == nil {
		results = []stream.ScoredEntry{}
	}

	emit(results, func(w io.Writer) {
		for _, r := range results {
			fmt.Fprintf(w, "%.3f ", r.Score)
			writeEntry(w, r.StreamEntry)
		}
	})
}

func runLogContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	res, err := l.Context(cmd.Context(), stream.ContextParams{
		Query:  strings.Join(args, " "),
		Filter: readFilter(cmd),
		Budget: budget,
	})
	if err != nil {
		exitErr("context", err)
	}

	emit(res, func(w io.Writer) {
		for _, e := range res.Entries {
			fmt.Fprintf(w, "- [cycle %d, %s] %s\n", e.Cycle, e.Role, e.Content)
		}
		fmt.Fprintf(w, "(%d/%d tokens)\n", res.Used, res.Budget)
	})
}
