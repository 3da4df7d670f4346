package env

import "strings"

// VarPrefix marks process environment variables that become scenario
// variables: HITPROBE_VAR_token=abc is available as {{token}}.
const VarPrefix = "HITPROBE_VAR_"

// PrefixedVars picks the KEY=value entries of environ (as returned by
// os.Environ) whose key starts with prefix and keys them by the rest of the
// name. Entries equal to the bare prefix are ignored.
func PrefixedVars(environ []string, prefix string) map[string]any {
	vars := make(map[string]any)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name, found := strings.CutPrefix(key, prefix)
		if !found || name == "" {
			continue
		}
		vars[name] = value
	}
	return vars
}

// Overlay returns a new map holding base with each layer applied on top.
func Overlay(base map[string]any, layers ...map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
