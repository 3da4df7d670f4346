package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by FromEnv.
const (
	EnvBaseURL  = "BASE_URL"
	EnvCI       = "CI"
	EnvTimeout  = "HITPROBE_TIMEOUT"
	EnvRetries  = "HITPROBE_RETRIES"
	EnvWorkers  = "HITPROBE_WORKERS"
	EnvReporter = "HITPROBE_REPORTER"
	EnvNoColor  = "HITPROBE_NO_COLOR"
)

type LookupFunc func(key string) (string, bool)

// FromEnv builds the environment layer of the configuration.
func FromEnv(lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := &Config{}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := lookup(EnvCI); ok {
		cfg.CI = IsTruthy(v)
	}
	if v, ok := lookup(EnvReporter); ok && v != "" {
		cfg.Reporter = v
	}
	if v, ok := lookup(EnvNoColor); ok && v != "" {
		cfg.NoColor = BoolPtr(IsTruthy(v))
	}

	var err error
	if cfg.Timeout, err = envPositiveInt(lookup, EnvTimeout); err != nil {
		return nil, err
	}
	if cfg.Workers, err = envPositiveInt(lookup, EnvWorkers); err != nil {
		return nil, err
	}
	retries, present, err := envInt(lookup, EnvRetries)
	if err != nil {
		return nil, err
	}
	if present {
		cfg.Retries = IntPtr(retries)
	}

	return cfg, nil
}

// envPositiveInt reads key as an integer of at least 1. It returns 0 when key
// is unset or empty so the value falls through to lower layers.
func envPositiveInt(lookup LookupFunc, key string) (int, error) {
	n, present, err := envInt(lookup, key)
	if err != nil || !present {
		return 0, err
	}
	if n < 1 {
		v, _ := lookup(key)
		return 0, &Error{Field: key, Value: v, Message: "must be at least 1"}
	}
	return n, nil
}

func envInt(lookup LookupFunc, key string) (n int, present bool, err error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, true, &Error{Field: key, Value: v, Message: "not an integer"}
	}
	return n, true, nil
}

// IsTruthy reports whether an environment flag is on: 1, true or yes.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
