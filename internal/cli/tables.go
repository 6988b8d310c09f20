package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// TableLink is one parent link in the tables listing.
type TableLink struct {
	Parent    string `json:"parent"`
	Condition string `json:"condition"`
	Context   string `json:"context,omitempty"`
}

// TableEntry describes one graph table.
type TableEntry struct {
	Name    string      `json:"name"`
	Root    bool        `json:"root,omitempty"`
	Parents []TableLink `json:"parents,omitempty"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	var contextFilter string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the schema graph tables and how they join",
		Long: `List every table of the schema graph with its parent links.

Links that only apply in one context are marked [hospital] or [ed].
With --context, only the links active in that context are shown.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, contextFilter, cmd)
		},
	}

	cmd.Flags().StringVar(&contextFilter, "context", "", "only show links active in this context (hospital|ed)")

	return cmd
}

func runTables(opts *RootOptions, contextFilter string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	graph, err := opts.loadGraph()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}

	var entries []TableEntry
	for _, t := range graph.Tables() {
		entry := TableEntry{Name: t.Name, Root: t.Name == graph.Root()}
		for _, l := range t.Parents {
			if contextFilter != "" && l.Context != "" && string(l.Context) != contextFilter {
				continue
			}
			entry.Parents = append(entry.Parents, TableLink{
				Parent:    l.Parent,
				Condition: fmt.Sprintf("%s.%s = %s.%s", l.Parent, l.ParentColumn, t.Name, l.LocalColumn),
				Context:   string(l.Context),
			})
		}
		entries = append(entries, entry)
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%d table(s), root %s\n\n", len(entries), graph.Root())
	for _, e := range entries {
		if e.Root {
			fmt.Fprintf(w, "%s (root)\n", e.Name)
			continue
		}
		links := make([]string, 0, len(e.Parents))
		for _, l := range e.Parents {
			s := l.Condition
			if l.Context != "" {
				s += " [" + l.Context + "]"
			}
			links = append(links, s)
		}
		fmt.Fprintf(w, "%s <- %s\n", e.Name, strings.Join(links, "; "))
	}
	return nil
}
