package config

import (
	"net/url"

	"github.com/abdul-hamid-achik/hitprobe/packages/http"
)

var validReporters = map[string]bool{
	"console": true,
	"json":    true,
	"junit":   true,
	"tap":     true,
}

// Validate checks a fully merged config and returns the first problem as
// an *Error.
func (c *Config) Validate() error {
	if err := http.ValidateBaseURL(c.BaseURL); err != nil {
		return &Error{Field: "baseURL", Value: c.BaseURL, Message: "must be an absolute http(s) URL", Err: err}
	}
	if c.Timeout <= 0 {
		return &Error{Field: "timeout", Value: c.Timeout, Message: "must be greater than 0"}
	}
	if c.Retries != nil && *c.Retries < 0 {
		return &Error{Field: "retries", Value: *c.Retries, Message: "must not be negative"}
	}
	if c.Workers < 1 {
		return &Error{Field: "workers", Value: c.Workers, Message: "must be at least 1"}
	}
	if c.RetryDelay < 0 {
		return &Error{Field: "retryDelay", Value: c.RetryDelay, Message: "must not be negative"}
	}
	if c.MaxRetryDelay < 0 {
		return &Error{Field: "maxRetryDelay", Value: c.MaxRetryDelay, Message: "must not be negative"}
	}
	if c.GlobalTimeout < 0 {
		return &Error{Field: "globalTimeout", Value: c.GlobalTimeout, Message: "must not be negative"}
	}
	if c.WaitFor < 0 {
		return &Error{Field: "waitFor", Value: c.WaitFor, Message: "must not be negative"}
	}
	if c.RateLimit < 0 {
		return &Error{Field: "rateLimit", Value: c.RateLimit, Message: "must not be negative"}
	}
	if c.Reporter != "" && !validReporters[c.Reporter] {
		return &Error{Field: "reporter", Value: c.Reporter, Message: "must be one of console, json, junit, tap"}
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return &Error{Field: "proxy", Value: c.Proxy, Message: "not a valid URL", Err: err}
		}
	}
	if c.Notify != nil && c.Notify.On != "" {
		switch c.Notify.On {
		case "always", "failure", "success", "recovery":
		default:
			return &Error{Field: "notify.on", Value: c.Notify.On, Message: "must be one of always, failure, success, recovery"}
		}
	}
	return nil
}
