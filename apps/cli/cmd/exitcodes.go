package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/config"
	"github.com/abdul-hamid-achik/hitprobe/packages/scenario"
)

// Exit codes for hitprobe CLI
const (
	// ExitSuccess indicates all scenarios passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more scenarios failed
	ExitTestFailure = 1

	// ExitParseError indicates a scenario file could not be loaded
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates the backend was unreachable before any
	// scenario ran
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the process exit code for err. A nil Err means the
// failure was already reported and nothing more should be printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	var parseErr *scenario.ParseError
	if errors.As(err, &parseErr) {
		return ExitParseError
	}
	return ExitTestFailure
}
