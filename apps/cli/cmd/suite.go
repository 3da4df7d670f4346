package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitprobe/packages/scenario"
	"github.com/spf13/cobra"
)

// suiteFlags choose which scenarios run.
type suiteFlags struct {
	builtin     bool
	names       []string
	tags        []string
	excludeTags []string
}

func (s *suiteFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&s.builtin, "builtin", false, "Include the built-in backend suite even when scenario files are given")
	f.StringSliceVarP(&s.names, "name", "n", nil, "Run only scenarios whose name matches (glob or substring, repeatable)")
	f.StringSliceVarP(&s.tags, "tags", "t", nil, "Run only scenarios with any of these tags (comma-separated)")
	f.StringSliceVar(&s.excludeTags, "exclude-tags", nil, "Skip scenarios with any of these tags (comma-separated)")
}

func (s *suiteFlags) filter() scenario.Filter {
	return scenario.Filter{
		Names:       trimAll(s.names),
		Tags:        trimAll(s.tags),
		ExcludeTags: trimAll(s.excludeTags),
	}
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// loadSuite builds the full, validated suite: the built-in backend suite
// when no paths are given (or includeBuiltin is set) followed by every
// scenario file found under paths. It also returns the files it read.
func loadSuite(paths []string, includeBuiltin bool) (scenario.Suite, []string, error) {
	var suite scenario.Suite
	if len(paths) == 0 || includeBuiltin {
		suite = append(suite, scenario.Backend(scenario.UniqueIdentity)...)
	}

	var files []string
	if len(paths) > 0 {
		var err error
		files, err = scenario.CollectFiles(paths)
		if err != nil {
			return nil, nil, exitWith(ExitUsageError, err)
		}
		if len(files) == 0 {
			return nil, nil, exitWith(ExitUsageError, fmt.Errorf("no scenario files (%s) found in %s",
				strings.Join(scenario.FileExtensions, ", "), strings.Join(paths, ", ")))
		}

		fromFiles, err := scenario.LoadFiles(files, scenario.WithWarnFunc(warnf))
		if err != nil {
			return nil, nil, err
		}
		suite = append(suite, fromFiles...)
	}

	if err := suite.Validate(); err != nil {
		return nil, nil, exitWith(ExitParseError, err)
	}
	return suite, files, nil
}
