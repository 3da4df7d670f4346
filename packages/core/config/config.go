package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the run configuration. Durations are in milliseconds. Pointer
// fields distinguish "not set" from an explicit zero so that CI defaults and
// Merge only apply to values nobody chose.
type Config struct {
	BaseURL         string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries         *int              `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay      int               `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"`
	MaxRetryDelay   int               `json:"maxRetryDelay,omitempty" yaml:"maxRetryDelay,omitempty"`
	Workers         int               `json:"workers,omitempty" yaml:"workers,omitempty"`
	FailFast        *bool             `json:"failFast,omitempty" yaml:"failFast,omitempty"`
	ForbidOnly      *bool             `json:"forbidOnly,omitempty" yaml:"forbidOnly,omitempty"`
	GlobalTimeout   int               `json:"globalTimeout,omitempty" yaml:"globalTimeout,omitempty"`
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Reporter        string            `json:"reporter,omitempty" yaml:"reporter,omitempty"`
	OutputFile      string            `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	WaitFor         int               `json:"waitFor,omitempty" yaml:"waitFor,omitempty"`
	HistoryDB       string            `json:"historyDB,omitempty" yaml:"historyDB,omitempty"`
	MetricsFile     string            `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`
	Notify          *NotifyConfig     `json:"notify,omitempty" yaml:"notify,omitempty"`

	// CI is taken from the environment only.
	CI bool `json:"-" yaml:"-"`
}

type NotifyConfig struct {
	SlackWebhook string `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	On           string `json:"on,omitempty" yaml:"on,omitempty"`
}

func BoolPtr(b bool) *bool {
	return &b
}

func IntPtr(n int) *int {
	return &n
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetRetries returns the retry budget. Unset retries default to 2 on CI.
func (c *Config) GetRetries() int {
	if c.Retries != nil {
		return *c.Retries
	}
	if c.CI {
		return ciRetries
	}
	return 0
}

// GetForbidOnly reports whether "only" scenarios are rejected. Defaults to
// true on CI.
func (c *Config) GetForbidOnly() bool {
	return getBool(c.ForbidOnly, c.CI)
}

func (c *Config) GetFailFast() bool {
	return getBool(c.FailFast, false)
}

func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) TimeoutDuration() time.Duration {
	return ms(c.Timeout)
}

func (c *Config) RetryDelayDuration() time.Duration {
	return ms(c.RetryDelay)
}

func (c *Config) MaxRetryDelayDuration() time.Duration {
	return ms(c.MaxRetryDelay)
}

func (c *Config) GlobalTimeoutDuration() time.Duration {
	return ms(c.GlobalTimeout)
}

func (c *Config) WaitForDuration() time.Duration {
	return ms(c.WaitFor)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ConfigFilenames are searched in order when no explicit path is given.
var ConfigFilenames = []string{
	".hitprobe.json",
	"hitprobe.json",
	".hitprobe.yaml",
	"hitprobe.yaml",
	".hitprobe.yml",
	"hitprobe.yml",
}

// LoadConfig loads path, or searches the working directory when path is
// empty. With no file found it returns an empty Config, so that merging it
// over DefaultConfig changes nothing.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return &Config{}, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Field: "config", Value: path, Message: "file not found", Err: err}
		}
		return nil, &Error{Field: "config", Value: path, Message: "cannot read file", Err: err}
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &Error{Field: "config", Value: path, Message: "cannot parse file", Err: err}
	}

	return cfg, nil
}

// Merge returns a copy of c with every field set in other applied on top.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout != 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries != nil {
		result.Retries = other.Retries
	}
	if other.RetryDelay != 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.MaxRetryDelay != 0 {
		result.MaxRetryDelay = other.MaxRetryDelay
	}
	if other.Workers != 0 {
		result.Workers = other.Workers
	}
	if other.GlobalTimeout != 0 {
		result.GlobalTimeout = other.GlobalTimeout
	}
	if other.RateLimit != 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Reporter != "" {
		result.Reporter = other.Reporter
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.WaitFor != 0 {
		result.WaitFor = other.WaitFor
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.MetricsFile != "" {
		result.MetricsFile = other.MetricsFile
	}

	if other.FailFast != nil {
		result.FailFast = other.FailFast
	}
	if other.ForbidOnly != nil {
		result.ForbidOnly = other.ForbidOnly
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.CI {
		result.CI = true
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if other.Notify != nil {
		merged := NotifyConfig{}
		if result.Notify != nil {
			merged = *result.Notify
		}
		if other.Notify.SlackWebhook != "" {
			merged.SlackWebhook = other.Notify.SlackWebhook
		}
		if other.Notify.SlackChannel != "" {
			merged.SlackChannel = other.Notify.SlackChannel
		}
		if other.Notify.On != "" {
			merged.On = other.Notify.On
		}
		result.Notify = &merged
	}

	return &result
}
