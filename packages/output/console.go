package output

import (
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/hitprobe/packages/export/metrics"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) paint(attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	if f.noColor {
		c.DisableColor()
	}
	return c.SprintFunc()
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := f.paint(color.FgGreen)
	red := f.paint(color.FgRed)
	yellow := f.paint(color.FgYellow)
	cyan := f.paint(color.FgCyan)
	bold := f.paint(color.Bold)

	target := result.BaseURL
	if target == "" {
		target = "(no base URL)"
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold(fmt.Sprintf("Running %s against %s", plural(result.Total(), "scenario"), target)))

	for _, r := range result.Results {
		if r.Passed {
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name,
				cyan(fmt.Sprintf("(%s, %dms)", plural(r.Attempts, "attempt"), r.DurationMs())))
		} else if r.Attempts == 0 {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name, yellow("(not started)"))
		} else {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name,
				cyan(fmt.Sprintf("(%s, %dms)", plural(r.Attempts, "attempt"), r.DurationMs())))
		}

		if f.verbose {
			if r.Source != "" {
				fmt.Fprintf(f.writer, "    Source: %s\n", r.Source)
			}
			for _, a := range r.History {
				status := "-"
				if a.Status != 0 {
					status = fmt.Sprintf("%d", a.Status)
				}
				fmt.Fprintf(f.writer, "    attempt %d: %s (%dms)", a.Number, status, a.Duration.Milliseconds())
				if a.Err != nil {
					fmt.Fprintf(f.writer, " %s", diagnostic(a.Err))
				}
				fmt.Fprintln(f.writer)
			}
		}

		if !r.Passed {
			fmt.Fprintf(f.writer, "    %s [%s] %s\n", red("→"), r.ErrorKind, diagnostic(r.LastError))
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Scenarios: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", result.Total())
	fmt.Fprintf(f.writer, "Attempts:  %d\n", result.TotalAttempts())

	if lat := metrics.Summarize(result.Durations()); lat.Count > 0 {
		fmt.Fprintf(f.writer, "Latency:   min %dms  p50 %dms  p95 %dms  p99 %dms  max %dms\n",
			lat.Min.Milliseconds(), lat.P50.Milliseconds(), lat.P95.Milliseconds(),
			lat.P99.Milliseconds(), lat.Max.Milliseconds())
	}
	fmt.Fprintf(f.writer, "Time:      %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := f.paint(color.FgRed)
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := f.paint(color.Bold)
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitprobe"), version)
}
