package output

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/assertions"
	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notStarted = fmt.Errorf("%w before start", fmt.Errorf("%w: %v", runner.ErrCancelled, context.Canceled))

func mixedRun() *runner.RunResult {
	mismatch := &assertions.AssertionError{
		Subject:  "body.errors",
		Operator: "falsy",
		Expected: "falsy",
		Actual:   []any{map[string]any{"message": "username \"bob\" is already taken"}},
	}
	warming := &assertions.AssertionError{Subject: "status", Operator: "equals", Expected: 200, Actual: 503}

	return &runner.RunResult{
		ID:        "3f2c0d7e-0000-4000-8000-000000000001",
		BaseURL:   "http://localhost:8080",
		StartedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Duration:  612 * time.Millisecond,
		Passed:    3,
		Failed:    2,
		Results: []*runner.ScenarioResult{
			{
				Name: "GET /ping returns pong", Source: "builtin", Passed: true, State: runner.StatePassed,
				Attempts: 1, LastStatus: 200, Duration: 12 * time.Millisecond,
				History: []runner.Attempt{{Number: 1, Status: 200, Duration: 12 * time.Millisecond}},
			},
			{
				Name: "POST /graphql hello query", Source: "builtin", Passed: true, State: runner.StatePassed,
				Attempts: 2, LastStatus: 200, Duration: 180 * time.Millisecond,
				History: []runner.Attempt{
					{Number: 1, Status: 503, Duration: 4 * time.Millisecond, Err: warming},
					{Number: 2, Status: 200, Duration: 9 * time.Millisecond},
				},
			},
			{
				Name: "POST /graphql createUser mutation", Source: "scenarios/users.probe.yaml:12", State: runner.StateFailed,
				Attempts: 3, LastStatus: 200, Duration: 340 * time.Millisecond,
				LastError: mismatch, ErrorKind: runner.KindAssertion,
			},
			{
				Name: "GET /graphql serves explorer UI", Source: "builtin", Passed: true, State: runner.StatePassed,
				Attempts: 1, LastStatus: 200, Duration: 20 * time.Millisecond,
			},
			{
				Name: "GraphiQL page is served and contains UI", Source: "builtin", Tags: []string{"exploratory"},
				State: runner.StateFailed, LastError: notStarted, ErrorKind: runner.KindCancelled,
			},
		},
	}
}

func passingRun() *runner.RunResult {
	return &runner.RunResult{
		ID:        "3f2c0d7e-0000-4000-8000-000000000002",
		StartedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Duration:  25 * time.Millisecond,
		Passed:    1,
		Results: []*runner.ScenarioResult{
			{Name: "ping", Passed: true, State: runner.StatePassed, Attempts: 1, Duration: 25 * time.Millisecond},
		},
	}
}

func TestConsoleFormatterGolden(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatHeader("v1.2.3")
	f.FormatResult(mixedRun())

	g := goldie.New(t)
	g.Assert(t, "console_mixed", buf.Bytes())
}

func TestConsoleFormatterVerbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	f.FormatResult(mixedRun())

	out := buf.String()
	assert.Contains(t, out, "    Source: scenarios/users.probe.yaml:12\n")
	assert.Contains(t, out, "    attempt 1: 503 (4ms) status equals: expected 200, got 503\n")
	assert.Contains(t, out, "    attempt 2: 200 (9ms)\n")
}

func TestConsoleFormatterAllPassed(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResult(passingRun())

	out := buf.String()
	assert.Contains(t, out, "Running 1 scenario against (no base URL)")
	assert.Contains(t, out, "Scenarios: 1 passed, 1 total\n")
	assert.NotContains(t, out, "→")
}

func TestConsoleFormatterEmptyRun(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResult(&runner.RunResult{BaseURL: "http://x"})

	out := buf.String()
	assert.Contains(t, out, "Scenarios: 0 total\n")
	assert.NotContains(t, out, "Latency:")
}

func TestConsoleFormatterError(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatError(errors.New("base URL unreachable"))
	assert.Equal(t, "Error: base URL unreachable\n", buf.String())
}

func TestDiagnosticIsSingleLine(t *testing.T) {
	err := errors.New("first line\n  second\tline ")
	assert.Equal(t, "first line second line", diagnostic(err))
	assert.Empty(t, diagnostic(nil))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatHeader("v1.2.3")
	f.FormatResult(mixedRun())
	f.FormatResult(passingRun())
	require.NoError(t, f.Flush(700*time.Millisecond))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 6, Passed: 4, Failed: 2, Attempts: 8}, out.Summary)
	assert.Equal(t, 700.0, out.Duration)
	require.Len(t, out.Runs, 2)

	run := out.Runs[0]
	assert.Equal(t, "http://localhost:8080", run.BaseURL)
	assert.Equal(t, "2026-03-14T09:26:53Z", run.StartedAt)
	require.NotNil(t, run.Latency)
	assert.InDelta(t, 12.0, run.Latency.Min, 0.1)
	assert.InDelta(t, 340.0, run.Latency.Max, 0.5)
	require.Len(t, run.Scenarios, 5)

	failed := run.Scenarios[2]
	assert.False(t, failed.Passed)
	assert.Equal(t, "failed", failed.State)
	assert.Equal(t, "assertion", failed.ErrorKind)
	assert.Equal(t, 3, failed.Attempts)
	require.NotNil(t, failed.Assertion)
	assert.Equal(t, "body.errors", failed.Assertion.Subject)
	assert.Equal(t, "falsy", failed.Assertion.Expected)

	skipped := run.Scenarios[4]
	assert.Equal(t, 0, skipped.Attempts)
	assert.Equal(t, "cancelled", skipped.ErrorKind)
	assert.Equal(t, "cancelled: context canceled before start", skipped.Error)
	assert.Equal(t, []string{"exploratory"}, skipped.Tags)

	retried := run.Scenarios[1]
	require.Len(t, retried.History, 2)
	assert.Equal(t, 503, retried.History[0].Status)
	assert.NotEmpty(t, retried.History[0].Error)
	assert.Empty(t, retried.History[1].Error)

	assert.Nil(t, out.Runs[1].Scenarios[0].Assertion)
}

func TestJSONFormatterNoRuns(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	require.NoError(t, f.Flush(0))
	assert.Contains(t, buf.String(), `"runs": []`)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(mixedRun())
	require.NoError(t, f.Flush(612*time.Millisecond))

	require.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, "hitprobe", suites.Name)
	assert.Equal(t, 5, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, "2026-03-14T09:26:53Z", suites.Timestamp)
	require.Len(t, suites.TestSuites, 1)

	suite := suites.TestSuites[0]
	assert.Equal(t, "http://localhost:8080", suite.Name)
	require.Len(t, suite.TestCases, 5)

	assert.Equal(t, "builtin", suite.TestCases[0].ClassName)
	assert.Nil(t, suite.TestCases[0].Failure)
	assert.Nil(t, suite.TestCases[0].Error)

	failed := suite.TestCases[2]
	assert.Equal(t, "scenarios/users.probe.yaml", failed.ClassName)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "AssertionError", failed.Failure.Type)
	assert.Contains(t, failed.Failure.Content, "after 3 attempts")

	cancelled := suite.TestCases[4]
	require.NotNil(t, cancelled.Error)
	assert.Equal(t, "cancelled", cancelled.Error.Type)
	assert.Contains(t, cancelled.Error.Message, "before start")

	assert.Empty(t, suite.TestCases[0].SystemOut)
	assert.Contains(t, suite.TestCases[1].SystemOut, "attempt 1: 503 (4ms)")
	assert.Contains(t, suite.TestCases[1].SystemOut, "attempt 2: 200 (9ms)\n")
	assert.Contains(t, suite.Properties, JUnitProperty{Name: "run.id", Value: "3f2c0d7e-0000-4000-8000-000000000001"})
	assert.Contains(t, suite.Properties, JUnitProperty{Name: "attempts", Value: "7"})
}

func TestFormatError_MachineFormats(t *testing.T) {
	preflight := errors.New("service http://localhost:8080/ping not ready: connection refused")

	t.Run("junit", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewJUnitFormatter(JUnitWithWriter(&buf))
		f.FormatError(preflight)
		require.NoError(t, f.Flush(0))

		var suites JUnitTestSuites
		require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
		assert.Equal(t, 1, suites.Errors)
		require.Len(t, suites.TestSuites, 1)
		tc := suites.TestSuites[0].TestCases[0]
		assert.Equal(t, "preflight", tc.Name)
		require.NotNil(t, tc.Error)
		assert.Contains(t, tc.Error.Message, "not ready")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewJSONFormatter(JSONWithWriter(&buf))
		f.FormatError(preflight)
		require.NoError(t, f.Flush(0))

		var out JSONOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, []string{preflight.Error()}, out.Errors)
		assert.Empty(t, out.Runs)
	})

	t.Run("tap", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewTAPFormatter(TAPWithWriter(&buf))
		f.FormatError(preflight)
		require.NoError(t, f.Flush(0))
		assert.Equal(t, "TAP version 13\n1..0\nBail out! "+preflight.Error()+"\n# time 0ms\n", buf.String())
	})
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(mixedRun())
	require.NoError(t, f.Flush(612*time.Millisecond))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "TAP version 13\n1..5\n"))
	assert.Contains(t, out, "ok 1 - GET /ping returns pong\n")
	assert.Contains(t, out, "not ok 3 - POST /graphql createUser mutation\n")
	assert.Contains(t, out, "  kind: assertion\n  attempts: 3\n  status: 200\n")
	assert.Contains(t, out, "  expected: falsy\n")
	assert.Contains(t, out, "  severity: fail\n")
	assert.Contains(t, out, "not ok 5 - GraphiQL page is served and contains UI\n")
	assert.Contains(t, out, "  message: \"cancelled: context canceled before start\"\n")
	assert.Contains(t, out, "  severity: error\n")
	assert.True(t, strings.HasSuffix(out, "# time 612ms\n"))
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{"a: b", `"a: b"`},
		{`say "hi"`, `"say \"hi\""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeYAML(tt.in), tt.in)
	}
}

func TestNew(t *testing.T) {
	for _, name := range append([]string{"", "JSON"}, Formats...) {
		t.Run(name, func(t *testing.T) {
			f, err := New(name, &bytes.Buffer{}, Options{NoColor: true})
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}

	f, err := New("console", &bytes.Buffer{}, Options{})
	require.NoError(t, err)
	_, flushable := f.(Flushable)
	assert.False(t, flushable)

	f, err = New("junit", &bytes.Buffer{}, Options{})
	require.NoError(t, err)
	_, flushable = f.(Flushable)
	assert.True(t, flushable)

	_, err = New("html", &bytes.Buffer{}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "html"`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(passingRun()))
	assert.Equal(t, 1, ExitCode(mixedRun()))
	assert.Equal(t, 1, ExitCode(nil))
	assert.Equal(t, 0, ExitCode(&runner.RunResult{}))
}
