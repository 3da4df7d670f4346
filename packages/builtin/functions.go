package builtin

import (
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Func func(args []string) any

// Registry holds the template functions available as {{name(args)}} in
// scenario files.
type Registry struct {
	funcs map[string]Func
	now   func() time.Time
	newID func() string
}

type Option func(*Registry)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDSource replaces uuid generation, for deterministic tests.
func WithIDSource(newID func() string) Option {
	return func(r *Registry) {
		r.newID = newID
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = func(_ []string) any {
		return r.now().UTC().Format(time.RFC3339)
	}
	r.funcs["timestamp"] = func(_ []string) any {
		return r.now().Unix()
	}
	r.funcs["timestampMs"] = func(_ []string) any {
		return r.now().UnixMilli()
	}
	r.funcs["uuid"] = func(_ []string) any {
		return r.newID()
	}
	r.funcs["shortId"] = func(_ []string) any {
		id := strings.ReplaceAll(r.newID(), "-", "")
		if len(id) > shortIDLength {
			id = id[:shortIDLength]
		}
		return id
	}
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = func(_ []string) any {
		return fmt.Sprintf("e2e_%d_%s@example.com", r.now().UnixMilli(), randomString(6, lowerAlpha))
	}
	r.funcs["lower"] = func(args []string) any {
		if len(args) < 1 {
			return ""
		}
		return strings.ToLower(args[0])
	}
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as uuid() or randomString(8).
func (r *Registry) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, false
	}

	fn, ok := r.funcs[matches[1]]
	if !ok {
		return nil, false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	return fn(args), true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

const (
	lowerAlpha   = "abcdefghijklmnopqrstuvwxyz"
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	shortIDLength = 12
)

func funcRandomString(args []string) any {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			length = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: randomString() length argument %q is not a valid integer\n", args[0])
		}
	}
	return randomString(length, alphanumeric)
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
