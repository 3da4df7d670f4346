package assertions

import (
	"fmt"
	"strings"
)

// AssertionError is an expected/actual mismatch found while evaluating a
// response.
type AssertionError struct {
	Subject  string
	Operator string
	Expected any
	Actual   any
	Message  string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Subject)
	if e.Operator != "" {
		b.WriteString(" ")
		b.WriteString(e.Operator)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
		return b.String()
	}
	fmt.Fprintf(&b, ": expected %s, got %s", formatValue(e.Expected, 80), formatValue(e.Actual, 80))
	return b.String()
}

// formatValue formats a value for display, truncating long values
func formatValue(v any, maxLen int) string {
	var str string
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		str = fmt.Sprintf("%q", val)
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	default:
		str = fmt.Sprintf("%v", v)
	}
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
