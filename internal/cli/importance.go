package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/importance"
	"github.com/rcliao/cogmem/internal/model"
)

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Track entry importance and tier lifecycle",
}

func init() {
	track := &cobra.Command{
		Use:   "track <id>",
		Short: "Record an access to a memory entry",
		Args:  cobra.ExactArgs(1),
		Run:   runImportanceTrack,
	}
	track.Flags().StringP("kind", "k", string(model.KindThread), "Entry kind, used when the entry is first seen")
	track.Flags().IntP("cycle", "c", 0, "Current cycle (required)")
	track.MarkFlagRequired("cycle")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an entry's importance record",
		Args:  cobra.ExactArgs(1),
		Run:   runImportanceGet,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List importance records, highest score first",
		Run:   runImportanceList,
	}
	list.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	importanceCmd.AddCommand(track, get, list)
	RootCmd.AddCommand(importanceCmd)
}

func saveTracker(t *importance.Tracker) {
	if err := t.Save(); err != nil {
		exitErr("save importance", err)
	}
}

func writeImportance(w io.Writer, m model.MemoryImportance) {
	fmt.Fprintf(w, "%.3f  %-12s %s (accesses %d, last cycle %d)\n", m.Score, m.Kind, m.EntryID, m.AccessCount, m.ReferenceCycle())
}

func runImportanceTrack(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	cycle, _ := cmd.Flags().GetInt("cycle")

	cfg := loadConfig()
	logger := newLogger(cfg)
	t := openTracker(cfg, logger)

	if !model.ValidKinds[model.Kind(kind)] {
		logger.Warn("unknown kind, using default weight", "kind", kind, "weight", importance.DefaultKindWeight)
	}

	m, err := t.TrackAccess(args[0], model.Kind(kind), cycle)
	if err != nil {
		exitErr("track", err)
	}
	saveTracker(t)

	emit(m, func(w io.Writer) { writeImportance(w, m) })
}

func runImportanceGet(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	t := openTracker(cfg, newLogger(cfg))

	m, ok, err := t.Get(args[0])
	if err != nil {
		exitErr("get", err)
	}
	if !ok {
		exitErr("get", fmt.Errorf("no importance record for %q", args[0]))
	}

	emit(m, func(w io.Writer) { writeImportance(w, m) })
}

func runImportanceList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	t := openTracker(cfg, newLogger(cfg))

	entries, err := t.Entries()
	if err != nil {
		exitErr("list", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	emit(entries, func(w io.Writer) {
		for _, m := range entries {
			writeImportance(w, m)
		}
	})
}
