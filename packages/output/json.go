package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/hitprobe/packages/export/metrics"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Runs     []JSONRun   `json:"runs"`
	Summary  JSONSummary `json:"summary"`
	Duration float64     `json:"duration"`
	Errors   []string    `json:"errors,omitempty"`
}

type JSONRun struct {
	ID        string         `json:"id"`
	BaseURL   string         `json:"baseURL"`
	StartedAt string         `json:"startedAt"`
	Duration  float64        `json:"duration"`
	Summary   JSONSummary    `json:"summary"`
	Latency   *JSONLatency   `json:"latency,omitempty"`
	Scenarios []JSONScenario `json:"scenarios"`
}

// JSONSummary counts scenarios by outcome
type JSONSummary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Attempts int `json:"attempts"`
}

// JSONLatency is expressed in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

type JSONScenario struct {
	Name       string         `json:"name"`
	Source     string         `json:"source,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Passed     bool           `json:"passed"`
	State      string         `json:"state"`
	Attempts   int            `json:"attempts"`
	Duration   float64        `json:"duration"`
	LastStatus int            `json:"lastStatus,omitempty"`
	ErrorKind  string         `json:"errorKind,omitempty"`
	Error      string         `json:"error,omitempty"`
	Assertion  *JSONAssertion `json:"assertion,omitempty"`
	History    []JSONAttempt  `json:"history,omitempty"`
}

// JSONAssertion details a failed expectation
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

type JSONAttempt struct {
	Number   int     `json:"number"`
	Status   int     `json:"status,omitempty"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// JSONFormatter formats run results as one JSON document
type JSONFormatter struct {
	writer io.Writer
	runs   []JSONRun
	errors []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		runs:   make([]JSONRun, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	run := JSONRun{
		ID:        result.ID,
		BaseURL:   result.BaseURL,
		StartedAt: result.StartedAt.UTC().Format(time.RFC3339),
		Duration:  ms(result.Duration),
		Summary: JSONSummary{
			Total:    result.Total(),
			Passed:   result.Passed,
			Failed:   result.Failed,
			Attempts: result.TotalAttempts(),
		},
		Scenarios: make([]JSONScenario, 0, len(result.Results)),
	}

	if lat := metrics.Summarize(result.Durations()); lat.Count > 0 {
		run.Latency = &JSONLatency{
			Min:  ms(lat.Min),
			Mean: ms(lat.Mean),
			P50:  ms(lat.P50),
			P95:  ms(lat.P95),
			P99:  ms(lat.P99),
			Max:  ms(lat.Max),
		}
	}

	for _, r := range result.Results {
		sc := JSONScenario{
			Name:       r.Name,
			Source:     r.Source,
			Tags:       r.Tags,
			Passed:     r.Passed,
			State:      r.State.String(),
			Attempts:   r.Attempts,
			Duration:   ms(r.Duration),
			LastStatus: r.LastStatus,
			ErrorKind:  string(r.ErrorKind),
		}
		if r.LastError != nil {
			sc.Error = r.LastError.Error()
		}
		if ae := assertionError(r.LastError); ae != nil {
			sc.Assertion = &JSONAssertion{
				Subject:  ae.Subject,
				Operator: ae.Operator,
				Expected: ae.Expected,
				Actual:   ae.Actual,
				Message:  ae.Message,
			}
		}
		for _, a := range r.History {
			att := JSONAttempt{Number: a.Number, Status: a.Status, Duration: ms(a.Duration)}
			if a.Err != nil {
				att.Error = a.Err.Error()
			}
			sc.History = append(sc.History, att)
		}
		run.Scenarios = append(run.Scenarios, sc)
	}

	f.runs = append(f.runs, run)
}

// FormatError records errors outside any scenario, such as a failed
// preflight. Scenario failures are part of their results.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, diagnostic(err))
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, r := range f.runs {
		summary.Total += r.Summary.Total
		summary.Passed += r.Summary.Passed
		summary.Failed += r.Summary.Failed
		summary.Attempts += r.Summary.Attempts
	}

	output := JSONOutput{
		Runs:     f.runs,
		Summary:  summary,
		Duration: ms(totalDuration),
		Errors:   f.errors,
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
