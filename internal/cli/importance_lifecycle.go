package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/importance"
	"github.com/rcliao/cogmem/internal/model"
)

func init() {
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute every score at the given cycle",
		Run:   runImportanceRefresh,
	}
	refresh.Flags().IntP("cycle", "c", 0, "Current cycle (required)")
	refresh.MarkFlagRequired("cycle")

	lifecycle := &cobra.Command{
		Use:   "lifecycle",
		Short: "Recommend tier promotions, demotions and forgets",
		Run:   runImportanceLifecycle,
	}
	lifecycle.Flags().IntP("cycle", "c", 0, "Current cycle (required)")
	for _, tier := range []model.Tier{model.TierHot, model.TierWarm, model.TierCold} {
		lifecycle.Flags().StringSlice(string(tier), nil, "Entry ids currently in the "+string(tier)+" tier")
	}
	lifecycle.MarkFlagRequired("cycle")

	forget := &cobra.Command{
		Use:   "forget <id>...",
		Short: "Drop importance records, and optionally their semantic vectors",
		Args:  cobra.MinimumNArgs(1),
		Run:   runImportanceForget,
	}
	forget.Flags().Bool("semantic", false, "Also remove the entries from the semantic index")

	importanceCmd.AddCommand(refresh, lifecycle, forget)
}

func runImportanceRefresh(cmd *cobra.Command, args []string) {
	cycle, _ := cmd.Flags().GetInt("cycle")

	cfg := loadConfig()
	t := openTracker(cfg, newLogger(cfg))

	if err := t.RefreshAll(cycle); err != nil {
		exitErr("refresh", err)
	}
	saveTracker(t)

	entries, err := t.Entries()
	if err != nil {
		exitErr("refresh", err)
	}
	out := map[string]any{"cycle": cycle, "entries": len(entries)}
	emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "refreshed %d entries at cycle %d\n", len(entries), cycle)
	})
}

func runImportanceLifecycle(cmd *cobra.Command, args []string) {
	cycle, _ := cmd.Flags().GetInt("cycle")
	hot, _ := cmd.Flags().GetStringSlice(string(model.TierHot))
	warm, _ := cmd.Flags().GetStringSlice(string(model.TierWarm))
	cold, _ := cmd.Flags().GetStringSlice(string(model.TierCold))

	cfg := loadConfig()
	t := openTracker(cfg, newLogger(cfg))

	res, err := t.CheckLifecycle(cycle, hot, warm, cold)
	if err != nil {
		exitErr("lifecycle", err)
	}

	emit(res, func(w io.Writer) { writeLifecycle(w, res) })
}

func writeLifecycle(w io.Writer, res *importance.LifecycleResult) {
	for _, row := range []struct {
		to  model.Tier
		ids []string
	}{
		{model.TierHot, res.PromoteToHot},
		{model.TierWarm, res.DemoteToWarm},
		{model.TierCold, res.DemoteToCold},
		{model.TierForgotten, res.CanForget},
	} {
		if len(row.ids) > 0 {
			fmt.Fprintf(w, "-> %s: %s\n", row.to, strings.Join(row.ids, ", "))
		}
	}
}

func runImportanceForget(cmd *cobra.Command, args []string) {
	withSemantic, _ := cmd.Flags().GetBool("semantic")

	cfg := loadConfig()
	logger := newLogger(cfg)
	t := openTracker(cfg, logger)

	removed, err := t.RemoveEntries(args)
	if err != nil {
		exitErr("forget", err)
	}
	saveTracker(t)

	out := map[string]int{"importance": removed}
	if withSemantic {
		idx := openIndex(cmd.Context(), cfg, logger, false)
		defer idx.close()
		n, err := idx.mgr.Remove(cmd.Context(), args)
		if err != nil {
			exitErr("forget semantic", err)
		}
		out["semantic"] = n
	}

	emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "forgot %d importance records", out["importance"])
		if withSemantic {
			fmt.Fprintf(w, ", %d vectors", out["semantic"])
		}
		fmt.Fprintln(w)
	})
}
