package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath  string
		limit   int
		runID   string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded with run --history-db, newest first, or the
scenario outcomes of one run.

Examples:
  hitprobe history --db .hitprobe/history.db
  hitprobe history --db .hitprobe/history.db --limit 50
  hitprobe history --db .hitprobe/history.db --run 3f2c0d7e-...`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return exitWith(ExitUsageError, fmt.Errorf("--db is required"))
			}
			store, err := history.Open(dbPath)
			if err != nil {
				return exitWith(ExitConfigError, err)
			}
			defer store.Close()

			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)
			if noColor {
				green.DisableColor()
				red.DisableColor()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if runID != "" {
				scenarios, err := store.Scenarios(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(scenarios) == 0 {
					return fmt.Errorf("run %s not found", runID)
				}
				fmt.Fprintln(w, "#\tRESULT\tSCENARIO\tATTEMPTS\tSTATUS\tDURATION\tERROR")
				for _, sc := range scenarios {
					result := green.Sprint("pass")
					if !sc.Passed {
						result = red.Sprint("fail")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
						sc.Position+1, result, sc.Name, sc.Attempts, statusText(sc.Status),
						sc.Duration, sc.Error)
				}
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			fmt.Fprintln(w, "STARTED\tRESULT\tPASSED\tFAILED\tATTEMPTS\tDURATION\tTARGET\tRUN")
			for _, r := range runs {
				result := green.Sprint("pass")
				if !r.AllPassed() {
					result = red.Sprint("fail")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), result, r.Passed, r.Failed,
					r.Attempts, r.Duration, r.BaseURL, r.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "History database written by run --history-db")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show (0 = all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the scenarios of one run")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func statusText(status int) string {
	if status == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", status)
}
