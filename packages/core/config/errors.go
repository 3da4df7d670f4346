package config

import "fmt"

// Error is a fatal configuration problem detected before any scenario runs.
type Error struct {
	Field   string
	Value   any
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("invalid config: %s", e.Field)
	if e.Value != nil && e.Value != "" {
		msg += fmt.Sprintf(" (%v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
