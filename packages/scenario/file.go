package scenario

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/assertions"
	"github.com/abdul-hamid-achik/hitprobe/packages/builtin"
	"github.com/abdul-hamid-achik/hitprobe/packages/core/env"
	"github.com/abdul-hamid-achik/hitprobe/packages/http"
	"gopkg.in/yaml.v3"
)

// DefaultGraphQLPath is the request path of a graphql request that names none.
const DefaultGraphQLPath = "/graphql"

// FileExtensions are the suffixes CollectFiles picks up inside directories.
var FileExtensions = []string{".probe.yaml", ".probe.yml"}

type fileSpec struct {
	Name      string            `yaml:"name"`
	Vars      map[string]any    `yaml:"vars"`
	Headers   map[string]string `yaml:"headers"`
	Tags      []string          `yaml:"tags"`
	Scenarios []yaml.Node       `yaml:"scenarios"`
}

type scenarioSpec struct {
	Name    string            `yaml:"name"`
	Only    bool              `yaml:"only"`
	Tags    []string          `yaml:"tags"`
	Timeout int               `yaml:"timeout"`
	Vars    map[string]any    `yaml:"vars"`
	Request requestSpec       `yaml:"request"`
	Expect  []expectationSpec `yaml:"expect"`
}

type requestSpec struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`
	GraphQL *graphQLSpec      `yaml:"graphql"`
}

type graphQLSpec struct {
	Query     string         `yaml:"query"`
	Variables map[string]any `yaml:"variables"`
}

type expectationSpec struct {
	Subject string `yaml:"subject"`
	Op      string `yaml:"op"`
	Value   any    `yaml:"value"`
}

// ParseError points at the file, and when known the scenario, that could not
// be loaded.
type ParseError struct {
	File  string
	Index int
	Line  int
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: scenario #%d: %v", e.File, e.Line, e.Index+1, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%s: scenario #%d: %v", e.File, e.Index+1, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Loader reads scenario files. Placeholders are resolved once, at load time,
// so a scenario's request and expectations see the same generated values.
type Loader struct {
	funcs *builtin.Registry
	vars  map[string]any
	warn  env.WarnFunc
}

type LoaderOption func(*Loader)

func WithFuncs(funcs *builtin.Registry) LoaderOption {
	return func(l *Loader) {
		l.funcs = funcs
	}
}

// WithVars adds variables visible to every file, below file-level vars.
func WithVars(vars map[string]any) LoaderOption {
	return func(l *Loader) {
		l.vars = env.Overlay(l.vars, vars)
	}
}

func WithWarnFunc(fn env.WarnFunc) LoaderOption {
	return func(l *Loader) {
		l.warn = fn
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		funcs: builtin.NewRegistry(),
		vars:  env.PrefixedVars(os.Environ(), env.VarPrefix),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func LoadFile(path string, opts ...LoaderOption) (Suite, error) {
	return NewLoader(opts...).LoadFile(path)
}

func LoadFiles(paths []string, opts ...LoaderOption) (Suite, error) {
	return NewLoader(opts...).LoadFiles(paths)
}

func (l *Loader) LoadFiles(paths []string) (Suite, error) {
	var suite Suite
	for _, p := range paths {
		s, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		suite = append(suite, s...)
	}
	return suite, nil
}

func (l *Loader) LoadFile(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: path, Index: -1, Err: err}
	}
	return l.Parse(path, data)
}

// Parse builds scenarios from file contents; name is used in errors and as
// the scenarios' Source.
func (l *Loader) Parse(name string, data []byte) (Suite, error) {
	var doc fileSpec
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: name, Index: -1, Err: err}
	}
	if len(doc.Scenarios) == 0 {
		return nil, &ParseError{File: name, Index: -1, Err: errors.New("no scenarios defined")}
	}

	resolver := env.NewResolverWithFuncs(l.funcs)
	resolver.SetWarnFunc(l.warn)
	resolver.SetVariables(l.vars)

	if err := resolver.Define(doc.Vars); err != nil {
		return nil, &ParseError{File: name, Index: -1, Err: err}
	}

	evaluator := assertions.NewEvaluator(filepath.Dir(name))

	suite := make(Suite, 0, len(doc.Scenarios))
	for i := range doc.Scenarios {
		node := &doc.Scenarios[i]
		var ss scenarioSpec
		if err := node.Decode(&ss); err != nil {
			return nil, &ParseError{File: name, Index: i, Line: node.Line, Err: err}
		}

		sc, err := l.build(ss, doc, resolver.Clone(), evaluator)
		if err != nil {
			return nil, &ParseError{File: name, Index: i, Line: node.Line, Err: err}
		}
		sc.Source = fmt.Sprintf("%s:%d", name, node.Line)
		suite = append(suite, sc)
	}

	return suite, nil
}

func (l *Loader) build(ss scenarioSpec, file fileSpec, r *env.Resolver, e *assertions.Evaluator) (*Scenario, error) {
	if strings.TrimSpace(ss.Name) == "" {
		return nil, errors.New("name is required")
	}
	if err := r.Define(ss.Vars); err != nil {
		return nil, err
	}

	req := http.Request{
		Method:  strings.ToUpper(ss.Request.Method),
		Path:    r.Resolve(ss.Request.Path),
		Headers: make(map[string]string),
	}
	for k, v := range file.Headers {
		req.Headers[k] = r.Resolve(v)
	}
	for k, v := range ss.Request.Headers {
		req.Headers[k] = r.Resolve(v)
	}

	switch {
	case ss.Request.GraphQL != nil && ss.Request.Body != nil:
		return nil, errors.New("request.body and request.graphql are mutually exclusive")
	case ss.Request.GraphQL != nil:
		body := map[string]any{"query": r.Resolve(ss.Request.GraphQL.Query)}
		if len(ss.Request.GraphQL.Variables) > 0 {
			body["variables"] = r.ResolveValue(ss.Request.GraphQL.Variables)
		}
		req.Body = body
		if req.Method == "" {
			req.Method = "POST"
		}
		if req.Path == "" {
			req.Path = DefaultGraphQLPath
		}
	case ss.Request.Body != nil:
		req.Body = r.ResolveValue(ss.Request.Body)
	}
	if req.Method == "" {
		req.Method = "GET"
	}
	if req.Path == "" {
		return nil, errors.New("request.path is required")
	}

	if len(ss.Expect) == 0 {
		return nil, errors.New("at least one expectation is required")
	}
	expectations := make([]assertions.Expectation, 0, len(ss.Expect))
	for j, x := range ss.Expect {
		op := x.Op
		if op == "" {
			op = string(assertions.OpEquals)
		}
		parsed, err := assertions.ParseOperator(op)
		if err != nil {
			return nil, fmt.Errorf("expect[%d]: %w", j, err)
		}
		exp := assertions.Expectation{
			Subject:  r.Resolve(x.Subject),
			Operator: parsed,
			Value:    r.ResolveValue(x.Value),
		}
		if err := exp.Validate(); err != nil {
			return nil, fmt.Errorf("expect[%d]: %w", j, err)
		}
		if err := e.Compile(exp); err != nil {
			return nil, fmt.Errorf("expect[%d]: %w", j, err)
		}
		expectations = append(expectations, exp)
	}

	if ss.Timeout < 0 {
		return nil, errors.New("timeout must not be negative")
	}

	return &Scenario{
		Name:    r.Resolve(ss.Name),
		Request: req,
		Assert:  e.Func(expectations),
		Only:    ss.Only,
		Tags:    append(append([]string{}, file.Tags...), ss.Tags...),
		Timeout: time.Duration(ss.Timeout) * time.Millisecond,
	}, nil
}

// CollectFiles expands directories into the scenario files they contain.
// Explicit file arguments are kept whatever their extension.
func CollectFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsScenarioFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}

	return files, nil
}

func IsScenarioFile(path string) bool {
	for _, ext := range FileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
