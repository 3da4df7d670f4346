package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/assertions"
	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
)

// Formatter renders run results.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that buffer results and write them
// as one document.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap"}

type Options struct {
	Verbose bool
	NoColor bool
}

func New(name string, w io.Writer, opts Options) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (available: %s)", name, strings.Join(Formats, ", "))
	}
}

// ExitCode is 0 when the run completed and every scenario passed, 1 otherwise.
func ExitCode(result *runner.RunResult) int {
	if result == nil || !result.AllPassed() {
		return 1
	}
	return 0
}

// diagnostic flattens a scenario error to a single line.
func diagnostic(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}

func assertionError(err error) *assertions.AssertionError {
	var ae *assertions.AssertionError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
