package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/cogmem/internal/model"
	"github.com/rcliao/cogmem/internal/stream"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Append to and recall from the memory stream",
}

func init() {
	cmd := &cobra.Command{
		Use:   "append [content]",
		Short: "Append an entry to the memory stream",
		Long:  "Append an entry. Content can be a positional arg or piped via stdin.",
		Run:   runLogAppend,
	}

	cmd.Flags().IntP("cycle", "c", 0, "Cycle number (required)")
	cmd.Flags().StringP("role", "r", "", "Role that produced the entry (required)")
	cmd.Flags().StringP("action", "a", "", "Short action label")
	cmd.Flags().IntP("importance", "i", 0, "Importance 1-10 (default 5)")
	cmd.Flags().StringP("type", "t", string(model.TypeAction), "Type: action, observation, reflection, decision")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().IntSlice("issues", nil, "Issue numbers referenced")
	cmd.Flags().IntSlice("prs", nil, "PR numbers referenced")

	cmd.MarkFlagRequired("cycle")
	cmd.MarkFlagRequired("role")

	logCmd.AddCommand(cmd)
	RootCmd.AddCommand(logCmd)
}

func runLogAppend(cmd *cobra.Command, args []string) {
	cycle, _ := cmd.Flags().GetInt("cycle")
	role, _ := cmd.Flags().GetString("role")
	action, _ := cmd.Flags().GetString("action")
	imp, _ := cmd.Flags().GetInt("importance")
	typ, _ := cmd.Flags().GetString("type")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	issues, _ := cmd.Flags().GetIntSlice("issues")
	prs, _ := cmd.Flags().GetIntSlice("prs")

	content, err := readContent(args)
	if err != nil {
		exitErr("append", err)
	}
	if strings.TrimSpace(content) == "" {
		exitErr("append", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	cfg := loadConfig()
	l := openLog(cfg, newLogger(cfg))

	e, err := l.Append(cmd.Context(), stream.AppendParams{
		Cycle:      cycle,
		Role:       role,
		Action:     action,
		Content:    strings.TrimSpace(content),
		Importance: imp,
		Type:       model.EntryType(typ),
		Tags:       tags,
		IssueRefs:  issues,
		PRRefs:     prs,
	})
	if err != nil {
		exitErr("append", err)
	}

	emit(e, func(w io.Writer) { writeEntry(w, *e) })
}

func writeEntry(w io.Writer, e model.StreamEntry) {
	fmt.Fprintf(w, "[%d] %s/%s (%s, %d) %s\n", e.Cycle, e.Role, e.Type, e.Action, e.Importance, e.Content)
}

func writeEntries(w io.Writer, entries []model.StreamEntry) {
	for _, e := range entries {
		writeEntry(w, e)
	}
}

func filterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("role", "r", "", "Filter by role")
	cmd.Flags().Int("issue", 0, "Filter by referenced issue")
	cmd.Flags().StringP("type", "t", "", "Filter by type")
	cmd.Flags().Int("min-importance", 0, "Minimum importance")
}

func readFilter(cmd *cobra.Command) stream.Filter {
	role, _ := cmd.Flags().GetString("role")
	issue, _ := cmd.Flags().GetInt("issue")
	typ, _ := cmd.Flags().GetString("type")
	minImp, _ := cmd.Flags().GetInt("min-importance")
	return stream.Filter{Role: role, Issue: issue, Type: model.EntryType(typ), MinImportance: minImp}
}
