package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitprobe/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

type Operator string

const (
	OpOK          Operator = "ok"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpIContains   Operator = "icontains"
	OpNotContains Operator = "notContains"
	OpMatches     Operator = "matches"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "notExists"
	OpTruthy      Operator = "truthy"
	OpFalsy       Operator = "falsy"
	OpType        Operator = "type"
	OpLength      Operator = "length"
	OpGreater     Operator = "gt"
	OpGreaterEq   Operator = "gte"
	OpLess        Operator = "lt"
	OpLessEq      Operator = "lte"
	OpIn          Operator = "in"
	OpSchema      Operator = "schema"
)

var operatorAliases = map[string]Operator{
	"==": OpEquals,
	"!=": OpNotEquals,
	">":  OpGreater,
	">=": OpGreaterEq,
	"<":  OpLess,
	"<=": OpLessEq,
	"~":  OpMatches,
}

var knownOperators = map[Operator]bool{
	OpOK: true, OpEquals: true, OpNotEquals: true, OpContains: true,
	OpIContains: true, OpNotContains: true, OpMatches: true, OpExists: true,
	OpNotExists: true, OpTruthy: true, OpFalsy: true, OpType: true,
	OpLength: true, OpGreater: true, OpGreaterEq: true, OpLess: true,
	OpLessEq: true, OpIn: true, OpSchema: true,
}

// ParseOperator accepts operator names and their symbolic aliases.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	if op, ok := operatorAliases[s]; ok {
		return op, nil
	}
	op := Operator(s)
	if !knownOperators[op] {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// Expectation is a declarative check, typically loaded from a scenario file.
type Expectation struct {
	Subject  string
	Operator Operator
	Value    any
}

// Validate reports expectations that can never be evaluated.
func (x Expectation) Validate() error {
	if strings.TrimSpace(x.Subject) == "" {
		return fmt.Errorf("expectation has no subject")
	}
	if !knownOperators[x.Operator] {
		return fmt.Errorf("unknown operator %q", x.Operator)
	}
	if x.Operator == OpMatches {
		if _, err := compilePattern(x.Value); err != nil {
			return err
		}
	}
	return nil
}

type Evaluator struct {
	baseDir string // Base directory for resolving schema file paths

	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

func NewEvaluator(baseDir string) *Evaluator {
	return &Evaluator{
		baseDir: baseDir,
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Compile loads what an expectation needs beyond the response, so that
// evaluating it later does no I/O. Schema files are read and compiled here;
// a missing or invalid schema is reported now instead of on every attempt.
func (e *Evaluator) Compile(x Expectation) error {
	if x.Operator != OpSchema {
		return nil
	}
	if inline, ok := x.Value.(map[string]any); ok {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(inline)); err != nil {
			return fmt.Errorf("invalid inline schema: %w", err)
		}
		return nil
	}

	path := e.schemaPath(x.Value)
	e.mu.RLock()
	_, done := e.schemas[path]
	e.mu.RUnlock()
	if done {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid schema %s: %w", path, err)
	}

	e.mu.Lock()
	e.schemas[path] = schema
	e.mu.Unlock()
	return nil
}

func (e *Evaluator) schemaPath(v any) string {
	path := fmt.Sprintf("%v", v)
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}
	return path
}

// Func turns expectations into a single check.
func (e *Evaluator) Func(expectations []Expectation) Func {
	return func(resp *http.Response) error {
		for _, x := range expectations {
			if err := e.Evaluate(resp, x); err != nil {
				return err
			}
		}
		return nil
	}
}

// Evaluate returns nil when the expectation holds, or an *AssertionError.
func (e *Evaluator) Evaluate(resp *http.Response, x Expectation) error {
	actual, found := subjectValue(resp, x.Subject)

	var ok bool
	var msg string
	switch x.Operator {
	case OpExists:
		ok = found && actual != nil
	case OpNotExists:
		ok = !found || actual == nil
	default:
		ok, msg = e.compare(actual, x.Operator, x.Value)
	}

	if ok {
		return nil
	}

	if x.Operator == OpLength {
		actual = computeLength(actual)
	}
	return &AssertionError{
		Subject:  x.Subject,
		Operator: string(x.Operator),
		Expected: x.Value,
		Actual:   actual,
		Message:  msg,
	}
}

// subjectValue resolves status, duration, header <name>, body and
// body.<path>. A bare path is treated as body.<path>.
func subjectValue(resp *http.Response, subject string) (any, bool) {
	subject = strings.TrimSpace(subject)
	switch {
	case subject == "status":
		return resp.StatusCode, true
	case subject == "duration":
		return resp.DurationMs(), true
	case strings.HasPrefix(subject, "header"):
		name := strings.TrimSpace(strings.TrimPrefix(subject, "header"))
		if name == "" {
			return resp.Headers, true
		}
		v := resp.Header(name)
		return v, v != ""
	case subject == "body":
		if resp.HasJSON() {
			return resp.BodyJSON, true
		}
		return resp.BodyText, true
	case strings.HasPrefix(subject, "body."):
		return jsonPath(resp, strings.TrimPrefix(subject, "body."))
	default:
		return jsonPath(resp, subject)
	}
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
var bracketPattern = regexp.MustCompile(`\[(\d+)\]`)

func convertBracketNotation(path string) string {
	result := bracketPattern.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

func jsonPath(resp *http.Response, path string) (any, bool) {
	result := resp.JSON().Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Evaluator) compare(actual any, op Operator, expected any) (bool, string) {
	switch op {
	case OpOK:
		code, ok := toInt(actual)
		if ok && code >= 200 && code < 300 {
			return true, ""
		}
		return false, fmt.Sprintf("expected 2xx, got %v", actual)
	case OpEquals:
		return equals(actual, normalize(expected))
	case OpNotEquals:
		if passed, _ := equals(actual, normalize(expected)); passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case OpContains:
		return contains(actual, expected, false)
	case OpIContains:
		return contains(actual, expected, true)
	case OpNotContains:
		if passed, _ := contains(actual, expected, false); passed {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case OpMatches:
		return matches(actual, expected)
	case OpTruthy:
		if truthy(actual) {
			return true, ""
		}
		return false, fmt.Sprintf("expected truthy, got %v", formatValue(actual, 80))
	case OpFalsy:
		if !truthy(actual) {
			return true, ""
		}
		return false, fmt.Sprintf("expected falsy, got %v", formatValue(actual, 80))
	case OpType:
		return typeCheck(actual, expected)
	case OpLength:
		return length(actual, expected)
	case OpGreater:
		return compareNumeric(actual, expected, ">")
	case OpGreaterEq:
		return compareNumeric(actual, expected, ">=")
	case OpLess:
		return compareNumeric(actual, expected, "<")
	case OpLessEq:
		return compareNumeric(actual, expected, "<=")
	case OpIn:
		return in(actual, expected)
	case OpSchema:
		return e.schema(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

// normalize round-trips a value through JSON so that Go literals such as
// int or map[string]string compare equal to decoded JSON.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	switch actual.(type) {
	case map[string]any, []any:
	default:
		if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
			return true, ""
		}
	}

	return false, fmt.Sprintf("expected %s, got %s", formatValue(expected, 80), formatValue(actual, 80))
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		// Arrays and objects are truthy even when empty.
		return true
	}
}

func contains(actual, expected any, fold bool) (bool, string) {
	if arr, ok := actual.([]any); ok {
		for _, item := range arr {
			if passed, _ := equals(item, normalize(expected)); passed {
				return true, ""
			}
		}
		return false, fmt.Sprintf("expected array to contain %v", expected)
	}

	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if fold {
		actualStr = strings.ToLower(actualStr)
		expectedStr = strings.ToLower(expectedStr)
	}
	if strings.Contains(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s to contain %q", formatValue(actual, 80), fmt.Sprintf("%v", expected))
}

func compilePattern(expected any) (*regexp.Regexp, error) {
	pattern := fmt.Sprintf("%v", expected)
	flags := ""
	if strings.HasPrefix(pattern, "/") {
		if end := strings.LastIndex(pattern, "/"); end > 0 {
			flags = pattern[end+1:]
			pattern = pattern[1:end]
		}
	}
	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %v", err)
	}
	return re, nil
}

func matches(actual, expected any) (bool, string) {
	re, err := compilePattern(expected)
	if err != nil {
		return false, err.Error()
	}
	actualStr := fmt.Sprintf("%v", actual)
	if re.MatchString(actualStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s to match /%v/", formatValue(actual, 80), re.String())
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return -1
	}
}

func length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func in(actual, expected any) (bool, string) {
	arr, ok := normalize(expected).([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	var actualType string

	switch actual.(type) {
	case nil:
		actualType = "null"
	case bool:
		actualType = "boolean"
	case float64, float32, int, int64, int32:
		actualType = "number"
	case string:
		actualType = "string"
	case []any:
		actualType = "array"
	case map[string]any:
		actualType = "object"
	default:
		actualType = reflect.TypeOf(actual).String()
	}

	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

func compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (e *Evaluator) schema(actual, expected any) (bool, string) {
	var schema *gojsonschema.Schema

	if inline, ok := expected.(map[string]any); ok {
		var err error
		if schema, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(inline)); err != nil {
			return false, fmt.Sprintf("invalid inline schema: %v", err)
		}
	} else {
		path := e.schemaPath(expected)
		e.mu.RLock()
		schema = e.schemas[path]
		e.mu.RUnlock()
		if schema == nil {
			return false, fmt.Sprintf("schema %s was not compiled", path)
		}
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(actualJSON))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
}
