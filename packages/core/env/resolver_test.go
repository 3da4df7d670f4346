package env

import (
	"fmt"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverResolve(t *testing.T) {
	t.Setenv("HITPROBE_TEST_HOST", "api.internal")

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  string
	}{
		{
			name:     "no placeholders",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "hello {{name}}",
			variables: map[string]any{"name": "world"},
			expected:  "hello world",
		},
		{
			name:      "whitespace inside braces",
			input:     "{{ greeting }} {{name}}!",
			variables: map[string]any{"greeting": "Hello", "name": "World"},
			expected:  "Hello World!",
		},
		{
			name:     "environment variable",
			input:    "http://{{$HITPROBE_TEST_HOST}}/ping",
			expected: "http://api.internal/ping",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
		{
			name:      "number variable",
			input:     "limit={{n}}",
			variables: map[string]any{"n": 5},
			expected:  "limit=5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolverFunctions(t *testing.T) {
	fixed := time.UnixMilli(1760000000000)
	r := NewResolverWithFuncs(builtin.NewRegistry(
		builtin.WithClock(func() time.Time { return fixed }),
		builtin.WithIDSource(func() string { return "0000-1111" }),
	))

	assert.Equal(t, "e2euser_1760000000000", r.Resolve("e2euser_{{timestampMs()}}"))
	assert.Equal(t, "id-0000-1111", r.Resolve("id-{{uuid()}}"))
}

func TestResolverWarnings(t *testing.T) {
	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{$HITPROBE_SURELY_UNSET_VAR}} {{nothing()}}")

	assert.Equal(t, []string{
		"unresolved variable: missing",
		"unresolved environment variable: $HITPROBE_SURELY_UNSET_VAR",
		"unresolved function call: nothing()",
	}, warnings)
}

func TestResolverResolveValue(t *testing.T) {
	r := NewResolver()
	r.SetVariables(map[string]any{"user": "alice", "count": 3})

	body := map[string]any{
		"query": "query { user(name: \"{{user}}\") { id } }",
		"variables": map[string]any{
			"u":     "{{user}}",
			"limit": "{{count}}",
			"list":  []any{"{{user}}", 1, true},
		},
	}

	got := r.ResolveValue(body).(map[string]any)
	assert.Equal(t, "query { user(name: \"alice\") { id } }", got["query"])

	vars := got["variables"].(map[string]any)
	assert.Equal(t, "alice", vars["u"])
	assert.Equal(t, 3, vars["limit"])
	assert.Equal(t, []any{"alice", 1, true}, vars["list"])

	// the input is not modified
	assert.Equal(t, "{{user}}", body["variables"].(map[string]any)["u"])
}

func TestResolverDefine(t *testing.T) {
	calls := 0
	funcs := builtin.NewRegistry(builtin.WithIDSource(func() string {
		calls++
		return fmt.Sprintf("id%d", calls)
	}))
	r := NewResolverWithFuncs(funcs)

	err := r.Define(map[string]any{
		"suffix":   "{{uuid()}}",
		"username": "e2euser_{{suffix}}",
		"email":    "e2e_{{suffix}}@example.com",
		"password": "password123",
	})
	require.NoError(t, err)

	username, _ := r.GetVariable("username")
	email, _ := r.GetVariable("email")
	assert.Equal(t, "e2euser_id1", username)
	assert.Equal(t, "e2e_id1@example.com", email)
	assert.Equal(t, 1, calls)
}

func TestResolverDefineCycle(t *testing.T) {
	r := NewResolver()
	err := r.Define(map[string]any{
		"a": "{{b}}",
		"b": "{{a}}",
		"c": "plain",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a, b")

	c, ok := r.GetVariable("c")
	assert.True(t, ok)
	assert.Equal(t, "plain", c)
}

func TestResolverUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  []string
	}{
		{"no placeholders", "hello world", nil, nil},
		{"resolved", "{{foo}}", map[string]any{"foo": "bar"}, nil},
		{"unresolved", "{{foo}} and {{bar}}", map[string]any{"bar": 1}, []string{"foo"}},
		{"functions and env ignored", "{{uuid()}} {{$HOME}}", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			assert.Equal(t, tt.expected, r.UnresolvedVariables(tt.input))
		})
	}
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", 1)

	clone := r.Clone()
	clone.SetVariable("b", 2)

	_, ok := r.GetVariable("b")
	assert.False(t, ok)
	v, ok := clone.GetVariable("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPrefixedVars(t *testing.T) {
	environ := []string{
		VarPrefix + "token=abc",
		VarPrefix + "query=a=b",
		VarPrefix + "=ignored",
		"PATH=/usr/bin",
		"malformed",
	}

	vars := PrefixedVars(environ, VarPrefix)
	assert.Equal(t, map[string]any{"token": "abc", "query": "a=b"}, vars)
}

func TestOverlay(t *testing.T) {
	base := map[string]any{"token": "file", "x": 1}
	merged := Overlay(base, map[string]any{"token": "env"}, nil, map[string]any{"y": 2})

	assert.Equal(t, map[string]any{"token": "env", "x": 1, "y": 2}, merged)
	assert.Equal(t, "file", base["token"], "base must not change")
}
