package runner

import (
	"fmt"
	"time"
)

// State is the lifecycle position of one scenario within a run.
type State int

const (
	StatePending State = iota
	StateRunning
	StateRetrying
	StatePassed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) IsTerminal() bool {
	return s == StatePassed || s == StateFailed
}

// CanTransition reports whether from -> to is a legal move.
//
//	Pending  -> Running | Failed (cancelled before start)
//	Running  -> Passed | Failed | Retrying
//	Retrying -> Running | Failed (cancelled during backoff)
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StatePassed || to == StateFailed || to == StateRetrying
	case StateRetrying:
		return to == StateRunning || to == StateFailed
	default:
		return false
	}
}

// Transition is reported to Config.OnTransition for every state change.
type Transition struct {
	Index    int
	Scenario string
	From     State
	To       State
	Attempt  int
	Err      error
	At       time.Time
}

// tracker owns the state of one scenario. It is used by a single goroutine.
type tracker struct {
	index   int
	name    string
	state   State
	attempt int
	notify  func(Transition)
}

func (t *tracker) advance(to State, err error) {
	if !CanTransition(t.state, to) {
		panic(fmt.Sprintf("runner: illegal transition %s -> %s for scenario %q", t.state, to, t.name))
	}
	tr := Transition{
		Index:    t.index,
		Scenario: t.name,
		From:     t.state,
		To:       to,
		Attempt:  t.attempt,
		Err:      err,
		At:       time.Now(),
	}
	t.state = to
	if t.notify != nil {
		t.notify(tr)
	}
}
