package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/model"
)

func init() {
	rangeCmd := &cobra.Command{
		Use:   "range <start> <end>",
		Short: "List entries in a cycle range, newest first",
		Args:  cobra.ExactArgs(2),
		Run:   runLogRange,
	}
	filterFlags(rangeCmd)

	roleCmd := &cobra.Command{
		Use:   "role <role>",
		Short: "List a role's entries, newest first",
		Args:  cobra.ExactArgs(1),
		Run:   runLogRole,
	}
	roleCmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	issueCmd := &cobra.Command{
		Use:   "issue <number>",
		Short: "List entries referencing an issue, newest first",
		Args:  cobra.ExactArgs(1),
		Run:   runLogIssue,
	}
	issueCmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	lastCmd := &cobra.Command{
		Use:   "last <role>",
		Short: "Show the most recent entry for a role",
		Args:  cobra.ExactArgs(1),
		Run:   runLogLast,
	}

	logCmd.AddCommand(rangeCmd, roleCmd, issueCmd, lastCmd)
}

func atoi(name, s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		exitErr("parse "+name, err)
	}
	return n
}

func emitEntries(entries []model.StreamEntry) {
	emit(entries, func(w io.Writer) { writeEntries(w, entries) })
}

func runLogRange(cmd *cobra.Command, args []string) {
	start, end := atoi("start", args[0]), atoi("end", args[1])

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	entries, err := l.ByCycleRange(cmd.Context(), start, end, readFilter(cmd))
	if err != nil {
		exitErr("range", err)
	}
	emitEntries(entries)
}

func runLogRole(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	entries, err := l.ByRole(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("role", err)
	}
	emitEntries(entries)
}

func runLogIssue(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	issue := atoi("issue", args[0])

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	entries, err := l.ByIssue(cmd.Context(), issue, limit)
	if err != nil {
		exitErr("issue", err)
	}
	emitEntries(entries)
}

func runLogLast(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	e, err := l.LastEntryForRole(cmd.Context(), args[0])
	if err != nil {
		exitErr("last", err)
	}
	if e == nil {
		exitErr("last", fmt.Errorf("no entries for role %q", args[0]))
	}
	emit(e, func(w io.Writer) { writeEntry(w, *e) })
}
