package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
)

// TAPFormatter formats run results in TAP (Test Anything Protocol) version 13
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
	bailOut   string
}

type tapResult struct {
	number   int
	name     string
	passed   bool
	kind     runner.ErrorKind
	message  string
	attempts int
	status   int
	source   string
	expected any
	actual   any
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		tr := tapResult{
			number:   f.testCount,
			name:     r.Name,
			passed:   r.Passed,
			kind:     r.ErrorKind,
			message:  diagnostic(r.LastError),
			attempts: r.Attempts,
			status:   r.LastStatus,
			source:   r.Source,
		}
		if ae := assertionError(r.LastError); ae != nil && ae.Message == "" {
			tr.expected = ae.Expected
			tr.actual = ae.Actual
		}
		f.results = append(f.results, tr)
	}
}

// FormatError makes Flush emit a "Bail out!" line for an error that stopped
// the run as a whole.
func (f *TAPFormatter) FormatError(err error) {
	f.bailOut = diagnostic(err)
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		fmt.Fprintf(f.writer, "  ---\n")
		fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.message))
		fmt.Fprintf(f.writer, "  kind: %s\n", r.kind)
		fmt.Fprintf(f.writer, "  attempts: %d\n", r.attempts)
		if r.status != 0 {
			fmt.Fprintf(f.writer, "  status: %d\n", r.status)
		}
		if r.expected != nil || r.actual != nil {
			fmt.Fprintf(f.writer, "  expected: %s\n", escapeYAML(fmt.Sprintf("%v", r.expected)))
			fmt.Fprintf(f.writer, "  actual: %s\n", escapeYAML(fmt.Sprintf("%v", r.actual)))
		}
		if r.source != "" {
			fmt.Fprintf(f.writer, "  at: %s\n", escapeYAML(r.source))
		}
		severity := "fail"
		if r.kind != runner.KindAssertion {
			severity = "error"
		}
		fmt.Fprintf(f.writer, "  severity: %s\n", severity)
		fmt.Fprintf(f.writer, "  ...\n")
	}

	if f.bailOut != "" {
		fmt.Fprintf(f.writer, "Bail out! %s\n", f.bailOut)
	}
	fmt.Fprintf(f.writer, "# time %dms\n", totalDuration.Milliseconds())
	return nil
}

func escapeYAML(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
