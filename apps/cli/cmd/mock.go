package cmd

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/mock"
	"github.com/spf13/cobra"
)

func newMockCmd() *cobra.Command {
	var (
		port      int
		delay     time.Duration
		failFirst int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a fake backend implementing the probed API",
		Long: `Start an HTTP server that implements the surface the built-in suite
exercises: GET /ping, the GraphiQL page on GET /graphql, and the hello query
and createUser mutation on POST /graphql. Users live in memory; a duplicate
username is rejected.

Examples:
  hitprobe mock
  hitprobe mock --port 3000 --delay 100ms
  hitprobe mock --fail-first 3   # first 3 requests get 503, to exercise retries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := mock.NewServer(
				mock.WithPort(port),
				mock.WithDelay(delay),
				mock.WithFailFirst(failFirst),
				mock.WithVerbose(verbose),
			)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Mock backend listening on http://localhost:%d\n", port)
			for _, r := range server.Routes() {
				fmt.Fprintf(w, "  %-4s %s\n", r.Method, r.Path)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if err := server.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(w, "Mock backend stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().DurationVarP(&delay, "delay", "d", 0, "Delay added to every response (e.g. 100ms)")
	cmd.Flags().IntVar(&failFirst, "fail-first", 0, "Answer the first N requests with 503")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")
	return cmd
}
