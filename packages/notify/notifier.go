// Package notify posts run summaries to chat services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a scenario fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every scenario passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after a failing one
	NotifyRecovery NotifyOn = "recovery"
)

func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(strings.ToLower(strings.TrimSpace(s))) {
	case "", NotifyFailure:
		return NotifyFailure, nil
	case NotifyAlways:
		return NotifyAlways, nil
	case NotifySuccess:
		return NotifySuccess, nil
	case NotifyRecovery:
		return NotifyRecovery, nil
	default:
		return "", fmt.Errorf("unknown notify mode %q", s)
	}
}

// RunSummary is what notifiers receive about a run.
type RunSummary struct {
	RunID           string           `json:"run_id"`
	BaseURL         string           `json:"base_url"`
	TotalScenarios  int              `json:"total_scenarios"`
	PassedScenarios int              `json:"passed_scenarios"`
	FailedScenarios int              `json:"failed_scenarios"`
	Attempts        int              `json:"attempts"`
	Duration        time.Duration    `json:"duration"`
	FailedResults   []FailedScenario `json:"failed_results,omitempty"`
	IsRecovery      bool             `json:"is_recovery,omitempty"`
}

type FailedScenario struct {
	Name     string `json:"name"`
	Source   string `json:"source,omitempty"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

func Summarize(result *runner.RunResult) *RunSummary {
	s := &RunSummary{
		RunID:           result.ID,
		BaseURL:         result.BaseURL,
		TotalScenarios:  result.Total(),
		PassedScenarios: result.Passed,
		FailedScenarios: result.Failed,
		Attempts:        result.TotalAttempts(),
		Duration:        result.Duration,
	}
	for _, r := range result.FailedResults() {
		fs := FailedScenario{
			Name:     r.Name,
			Source:   r.Source,
			Kind:     string(r.ErrorKind),
			Attempts: r.Attempts,
		}
		if r.LastError != nil {
			fs.Error = r.LastError.Error()
		}
		s.FailedResults = append(s.FailedResults, fs)
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
	Name() string
}

// Manager decides whether a run is worth a notification and fans it out.
// It remembers the outcome of the previous run for recovery detection.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetPrevious seeds the outcome of the run before the next one, typically
// from the history store.
func (m *Manager) SetPrevious(passed bool) {
	m.lastState = passed
}

// ShouldNotify applies the policy without changing state.
func (m *Manager) ShouldNotify(summary *RunSummary) bool {
	success := summary.FailedScenarios == 0
	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifyFailure:
		return !success
	case NotifySuccess:
		return success
	case NotifyRecovery:
		return !success || !m.lastState
	default:
		return false
	}
}

// Notify sends the summary to every notifier when the policy allows it.
// Errors from individual notifiers are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	success := summary.FailedScenarios == 0
	should := m.ShouldNotify(summary)
	summary.IsRecovery = success && !m.lastState
	m.lastState = success

	if !should {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
