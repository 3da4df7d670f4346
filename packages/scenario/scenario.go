package scenario

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/assertions"
	"github.com/abdul-hamid-achik/hitprobe/packages/http"
)

// AssertFunc returns nil when the response is acceptable.
type AssertFunc = assertions.Func

// Scenario is one independent probe: a request and the check applied to its
// response. Scenarios are not modified after they are built.
type Scenario struct {
	Name    string
	Request http.Request
	Assert  AssertFunc
	Only    bool
	Tags    []string
	// Timeout overrides the run's per-attempt timeout when positive.
	Timeout time.Duration
	// Source is "builtin" or file:line.
	Source string
}

func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Suite is an ordered list of scenarios.
type Suite []*Scenario

// Validate reports every structural problem in the suite.
func (s Suite) Validate() error {
	var errs []error
	seen := make(map[string]string, len(s))

	for i, sc := range s {
		if sc == nil {
			errs = append(errs, fmt.Errorf("scenario #%d is nil", i+1))
			continue
		}
		where := sc.Source
		if where == "" {
			where = fmt.Sprintf("#%d", i+1)
		}
		switch {
		case strings.TrimSpace(sc.Name) == "":
			errs = append(errs, fmt.Errorf("%s: scenario name is empty", where))
		case seen[sc.Name] != "":
			errs = append(errs, fmt.Errorf("%s: duplicate scenario name %q (first defined at %s)", where, sc.Name, seen[sc.Name]))
		default:
			seen[sc.Name] = where
		}
		if sc.Assert == nil {
			errs = append(errs, fmt.Errorf("%s: scenario %q has no assertion", where, sc.Name))
		}
		if sc.Request.Path == "" {
			errs = append(errs, fmt.Errorf("%s: scenario %q has no request path", where, sc.Name))
		}
		if sc.Request.Method != "" && !validMethod(sc.Request.Method) {
			errs = append(errs, fmt.Errorf("%s: scenario %q has unsupported method %q", where, sc.Name, sc.Request.Method))
		}
	}

	return errors.Join(errs...)
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
		return true
	}
	return false
}

func (s Suite) HasOnly() bool {
	for _, sc := range s {
		if sc.Only {
			return true
		}
	}
	return false
}

// OnlyNames lists the scenarios marked "only".
func (s Suite) OnlyNames() []string {
	var names []string
	for _, sc := range s {
		if sc.Only {
			names = append(names, sc.Name)
		}
	}
	return names
}

func (s Suite) Names() []string {
	names := make([]string, len(s))
	for i, sc := range s {
		names[i] = sc.Name
	}
	return names
}

// Filter narrows a suite. Names are glob patterns (path.Match syntax) and
// any match selects the scenario; Tags select scenarios carrying any of them.
type Filter struct {
	Names       []string
	Tags        []string
	ExcludeTags []string
}

// Select returns the scenarios that pass the filter. When any remaining
// scenario is marked "only", just those are returned.
func (s Suite) Select(f Filter) Suite {
	var out Suite
	for _, sc := range s {
		if f.matches(sc) {
			out = append(out, sc)
		}
	}

	if !out.HasOnly() {
		return out
	}
	var only Suite
	for _, sc := range out {
		if sc.Only {
			only = append(only, sc)
		}
	}
	return only
}

func (f Filter) matches(sc *Scenario) bool {
	for _, tag := range f.ExcludeTags {
		if sc.HasTag(tag) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		tagged := false
		for _, tag := range f.Tags {
			if sc.HasTag(tag) {
				tagged = true
				break
			}
		}
		if !tagged {
			return false
		}
	}

	if len(f.Names) == 0 {
		return true
	}
	for _, pattern := range f.Names {
		if ok, err := path.Match(pattern, sc.Name); err == nil && ok {
			return true
		}
		if strings.Contains(strings.ToLower(sc.Name), strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
