package config

const (
	DefaultBaseURL       = "http://localhost:8080"
	DefaultTimeout       = 10000
	DefaultRetryDelay    = 250
	DefaultMaxRetryDelay = 5000
	DefaultWorkers       = 1
	DefaultReporter      = "console"

	ciRetries = 2
)

func DefaultConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       DefaultTimeout,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		Workers:       DefaultWorkers,
		Reporter:      DefaultReporter,
	}
}

// Resolve layers the sources in order of increasing precedence over the
// defaults and validates the result.
func Resolve(layers ...*Config) (*Config, error) {
	cfg := DefaultConfig()
	for _, layer := range layers {
		cfg = cfg.Merge(layer)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
