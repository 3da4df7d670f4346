package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitprobe/packages/scenario"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var sf suiteFlags
	cmd := &cobra.Command{
		Use:   "list [file|directory...]",
		Short: "List the scenarios a run would execute",
		Long: `List scenarios grouped by where they are defined. Filters behave as
they do for run, including "only" markers.

Examples:
  hitprobe list
  hitprobe list ./e2e --builtin
  hitprobe list ./e2e --tags smoke`,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, _, err := loadSuite(args, sf.builtin)
			if err != nil {
				return err
			}
			selected := suite.Select(sf.filter())
			printSuite(cmd, selected)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d scenarios selected\n", len(selected), len(suite))
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func printSuite(cmd *cobra.Command, suite scenario.Suite) {
	w := cmd.OutOrStdout()
	current := ""
	for _, sc := range suite {
		origin := sourceFile(sc.Source)
		if origin != current {
			fmt.Fprintf(w, "\n%s:\n", origin)
			current = origin
		}
		fmt.Fprintf(w, "  - %s\n", sc.Name)
		var notes []string
		if len(sc.Tags) > 0 {
			notes = append(notes, "tags: "+strings.Join(sc.Tags, ", "))
		}
		if sc.Only {
			notes = append(notes, "only")
		}
		if sc.Timeout > 0 {
			notes = append(notes, "timeout: "+sc.Timeout.String())
		}
		if len(notes) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(notes, "; "))
		}
	}
}

// sourceFile drops the line number from a "file:line" source.
func sourceFile(source string) string {
	if i := strings.LastIndex(source, ":"); i > 0 {
		return source[:i]
	}
	if source == "" {
		return scenario.BuiltinSource
	}
	return source
}
