package env

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitprobe/packages/builtin"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

type WarnFunc func(format string, args ...any)

// Resolver expands {{...}} placeholders in scenario values. A placeholder is
// an OS environment variable ({{$NAME}}), a template function call
// ({{uuid()}}) or a named variable ({{username}}).
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return NewResolverWithFuncs(builtin.NewRegistry())
}

func NewResolverWithFuncs(funcs *builtin.Registry) *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		funcs:     funcs,
	}
}

// SetWarnFunc sets the hook called for placeholders that cannot be resolved.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// Resolve replaces every placeholder in input. Unresolvable placeholders are
// left in place and reported through the warn hook.
func (r *Resolver) Resolve(input string) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		val, ok := r.lookup(strings.TrimSpace(match[2 : len(match)-2]))
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", val)
	})
}

func (r *Resolver) lookup(expr string) (any, bool) {
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		if val, ok := os.LookupEnv(name); ok {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", name)
		return nil, false
	}

	if strings.Contains(expr, "(") {
		if result, ok := r.funcs.Call(expr); ok {
			return result, true
		}
		r.warn("unresolved function call: %s", expr)
		return nil, false
	}

	if val, ok := r.GetVariable(expr); ok {
		return val, true
	}
	r.warn("unresolved variable: %s", expr)
	return nil, false
}

// ResolveValue walks strings, maps and slices. A string that is exactly one
// placeholder keeps the type of the resolved value, so {{count}} may yield a
// number inside a JSON body.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		m := placeholderPattern.FindStringSubmatchIndex(val)
		if m != nil && m[0] == 0 && m[1] == len(val) {
			if resolved, ok := r.lookup(strings.TrimSpace(val[m[2]:m[3]])); ok {
				return resolved
			}
			return val
		}
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// Define resolves vars and stores them. Variables may refer to each other;
// each function call is evaluated exactly once, so a generated identifier
// is shared by every later reference.
func (r *Resolver) Define(vars map[string]any) error {
	pending := make(map[string]any, len(vars))
	for k, v := range vars {
		pending[k] = v
	}

	for len(pending) > 0 {
		progressed := false
		for _, name := range sortedKeys(pending) {
			if refersTo(pending[name], pending) {
				continue
			}
			r.SetVariable(name, r.ResolveValue(pending[name]))
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("circular variable references: %s", strings.Join(sortedKeys(pending), ", "))
		}
	}
	return nil
}

func refersTo(v any, names map[string]any) bool {
	switch val := v.(type) {
	case string:
		for _, m := range placeholderPattern.FindAllStringSubmatch(val, -1) {
			if _, ok := names[strings.TrimSpace(m[1])]; ok {
				return true
			}
		}
	case map[string]any:
		for _, item := range val {
			if refersTo(item, names) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if refersTo(item, names) {
				return true
			}
		}
	}
	return false
}

// UnresolvedVariables lists plain variable names in input that have no value.
func (r *Resolver) UnresolvedVariables(input string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || strings.Contains(expr, "(") {
			continue
		}
		if _, ok := r.GetVariable(expr); !ok {
			names = append(names, expr)
		}
	}
	return names
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolverWithFuncs(r.funcs)
	clone.warnFunc = r.warnFunc
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	return clone
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
