package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory stream statistics",
		Run:   runLogStats,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all stream entries as JSONL",
		Run:   runLogExport,
	}
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	logCmd.AddCommand(statsCmd, exportCmd)
}

func runLogStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	st, err := l.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	emit(st, func(w io.Writer) {
		fmt.Fprintf(w, "path:    %s\n", st.Path)
		fmt.Fprintf(w, "entries: %d (cycles %d-%d, ~%d tokens)\n", st.Entries, st.OldestCycle, st.NewestCycle, st.TotalTokens)
		for role, n := range st.ByRole {
			fmt.Fprintf(w, "  %s: %d\n", role, n)
		}
	})
}

func runLogExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	entries, err := l.Entries(cmd.Context())
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
		if err := enc.Encode(e); err != nil {
			exitErr("export", err)
		}
	}

	if output != "" {
		fmt.Fprintf(os.Stderr, "exported %d entries to %s\n", len(entries), output)
	}
}
