package runner

import "time"

// Attempt records one try of a scenario.
type Attempt struct {
	Number   int
	Status   int
	Duration time.Duration
	Err      error
}

// ScenarioResult is the final outcome of one scenario. It is not modified
// once the run returns.
type ScenarioResult struct {
	Name       string
	Source     string
	Tags       []string
	Passed     bool
	State      State
	Attempts   int
	LastError  error
	ErrorKind  ErrorKind
	LastStatus int
	Duration   time.Duration
	History    []Attempt
}

func (r *ScenarioResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

type RunResult struct {
	ID        string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Results   []*ScenarioResult
	Passed    int
	Failed    int
}

// AllPassed is true when no scenario failed.
func (r *RunResult) AllPassed() bool {
	return r.Failed == 0
}

func (r *RunResult) Total() int {
	return len(r.Results)
}

func (r *RunResult) FailedResults() []*ScenarioResult {
	var failed []*ScenarioResult
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r *RunResult) TotalAttempts() int {
	n := 0
	for _, res := range r.Results {
		n += res.Attempts
	}
	return n
}

// Durations returns the scenario durations of every result that made at
// least one attempt.
func (r *RunResult) Durations() []time.Duration {
	var out []time.Duration
	for _, res := range r.Results {
		if res.Attempts > 0 {
			out = append(out, res.Duration)
		}
	}
	return out
}
