package assertions

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitprobe/packages/http"
)

// Func checks a response and returns nil or an *AssertionError. Funcs must
// be pure: no I/O, no shared state.
type Func func(resp *http.Response) error

// All runs checks in order and returns the first failure.
func All(checks ...Func) Func {
	return func(resp *http.Response) error {
		for _, check := range checks {
			if err := check(resp); err != nil {
				return err
			}
		}
		return nil
	}
}

// Status2xx requires a successful status code.
func Status2xx() Func {
	return func(resp *http.Response) error {
		if resp.IsSuccess() {
			return nil
		}
		return &AssertionError{
			Subject:  "status",
			Operator: "ok",
			Expected: "2xx",
			Actual:   resp.StatusCode,
		}
	}
}

func Status(code int) Func {
	return func(resp *http.Response) error {
		if resp.StatusCode == code {
			return nil
		}
		return &AssertionError{
			Subject:  "status",
			Operator: "equals",
			Expected: code,
			Actual:   resp.StatusCode,
		}
	}
}

// JSONEquals requires the whole body to be JSON deeply equal to expected.
// Expected is normalized through the JSON decoder so Go literals compare
// against decoded numbers correctly.
func JSONEquals(expected any) Func {
	want := normalize(expected)
	return func(resp *http.Response) error {
		if !resp.HasJSON() {
			return &AssertionError{
				Subject:  "body",
				Operator: "equals",
				Expected: want,
				Actual:   truncate(resp.BodyText, 80),
				Message:  "response body is not JSON",
			}
		}
		if reflect.DeepEqual(resp.BodyJSON, want) {
			return nil
		}
		return &AssertionError{
			Subject:  "body",
			Operator: "equals",
			Expected: want,
			Actual:   resp.BodyJSON,
		}
	}
}

// JSONPathEquals requires the value at a gjson path to equal expected.
func JSONPathEquals(path string, expected any) Func {
	want := normalize(expected)
	subject := "body." + path
	return func(resp *http.Response) error {
		result := resp.JSON().Get(path)
		if !result.Exists() {
			return &AssertionError{
				Subject:  subject,
				Operator: "equals",
				Expected: want,
				Actual:   nil,
				Message:  fmt.Sprintf("expected %s, got nothing", formatValue(want, 80)),
			}
		}
		actual := result.Value()
		if ok, _ := equals(actual, want); ok {
			return nil
		}
		return &AssertionError{
			Subject:  subject,
			Operator: "equals",
			Expected: want,
			Actual:   actual,
		}
	}
}

// JSONPathFalsy requires the value at a gjson path to be absent, null,
// false, zero, or empty.
func JSONPathFalsy(path string) Func {
	subject := "body." + path
	return func(resp *http.Response) error {
		result := resp.JSON().Get(path)
		if !result.Exists() {
			return nil
		}
		actual := result.Value()
		if !truthy(actual) {
			return nil
		}
		return &AssertionError{
			Subject:  subject,
			Operator: "falsy",
			Expected: "falsy",
			Actual:   actual,
		}
	}
}

// BodyContains requires a literal substring in the body text.
func BodyContains(substr string) Func {
	return func(resp *http.Response) error {
		if strings.Contains(resp.BodyText, substr) {
			return nil
		}
		return &AssertionError{
			Subject:  "body",
			Operator: "contains",
			Expected: substr,
			Actual:   truncate(resp.BodyText, 80),
		}
	}
}

// BodyMatches requires the body text to match a regular expression.
func BodyMatches(pattern *regexp.Regexp) Func {
	return func(resp *http.Response) error {
		if pattern.MatchString(resp.BodyText) {
			return nil
		}
		return &AssertionError{
			Subject:  "body",
			Operator: "matches",
			Expected: "/" + pattern.String() + "/",
			Actual:   truncate(resp.BodyText, 80),
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
