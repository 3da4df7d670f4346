package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/config"
	"github.com/abdul-hamid-achik/hitprobe/packages/core/env"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// settingsFlags are the run flags that map onto config.Config.
type settingsFlags struct {
	configPath string
	envFile    string

	baseURL       string
	timeout       time.Duration
	retries       int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	workers       int
	failFast      bool
	forbidOnly    bool
	globalTimeout time.Duration
	rateLimit     float64
	headers       []string
	proxy         string
	insecure      bool
	noRedirects   bool
	output        string
	outputFile    string
	noColor       bool
	waitFor       time.Duration
	historyDB     string
	metricsFile   string
	notifyOn      string
	slackWebhook  string
	slackChannel  string
}

func (s *settingsFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.configPath, "config", "", "Path to config file (default: search for .hitprobe.{json,yaml} in the working directory)")
	f.StringVar(&s.envFile, "env-file", defaultEnvFile, "Path to .env file exported before reading the environment")

	f.StringVarP(&s.baseURL, "base-url", "u", "", "Backend base URL (env: BASE_URL, default "+config.DefaultBaseURL+")")
	f.DurationVar(&s.timeout, "timeout", 0, "Per-attempt timeout (env: HITPROBE_TIMEOUT in ms, default 10s)")
	f.IntVar(&s.retries, "retries", 0, "Extra attempts after a failure (env: HITPROBE_RETRIES, default 0, 2 on CI)")
	f.DurationVar(&s.retryDelay, "retry-delay", 0, "Delay before the first retry, doubled on each further retry (default 250ms)")
	f.DurationVar(&s.maxRetryDelay, "max-retry-delay", 0, "Upper bound for the retry delay (default 5s)")
	f.IntVarP(&s.workers, "workers", "j", 0, "Scenarios run concurrently (env: HITPROBE_WORKERS, default 1)")
	f.BoolVar(&s.failFast, "fail-fast", false, "Stop starting scenarios after the first failure")
	f.BoolVar(&s.forbidOnly, "forbid-only", false, "Fail when a scenario is marked only (default on CI)")
	f.DurationVar(&s.globalTimeout, "global-timeout", 0, "Abort the whole run after this long (0 = no limit)")
	f.Float64Var(&s.rateLimit, "rate-limit", 0, "Maximum requests per second across all workers (0 = unlimited)")
	f.StringArrayVarP(&s.headers, "header", "H", nil, "Default request header, \"Name: value\" (repeatable)")
	f.StringVar(&s.proxy, "proxy", "", "Proxy URL for HTTP requests")
	f.BoolVarP(&s.insecure, "insecure", "k", false, "Disable TLS certificate validation")
	f.BoolVar(&s.noRedirects, "no-follow-redirects", false, "Do not follow HTTP redirects")
	f.StringVarP(&s.output, "output", "o", "", "Output format: console, json, junit, tap (env: HITPROBE_REPORTER)")
	f.StringVar(&s.outputFile, "output-file", "", "Write output to file (default: stdout)")
	f.BoolVar(&s.noColor, "no-color", false, "Disable colored output (env: HITPROBE_NO_COLOR)")
	f.DurationVar(&s.waitFor, "wait-for", 0, "Poll the backend until it is up, for at most this long, before running")
	f.StringVar(&s.historyDB, "history-db", "", "SQLite file to record run history in")
	f.StringVar(&s.metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format after each run")
	f.StringVar(&s.notifyOn, "notify-on", "", "When to notify: always, failure, success, recovery (default failure)")
	f.StringVar(&s.slackWebhook, "slack-webhook", "", "Slack incoming webhook URL (env: SLACK_WEBHOOK)")
	f.StringVar(&s.slackChannel, "slack-channel", "", "Slack channel override")
}

func millis(d time.Duration) int {
	return int(d / time.Millisecond)
}

// layer returns the config values of the flags the user actually set.
func (s *settingsFlags) layer(cmd *cobra.Command) (*config.Config, error) {
	changed := cmd.Flags().Changed
	cfg := &config.Config{}

	if changed("base-url") {
		cfg.BaseURL = s.baseURL
	}
	if changed("timeout") {
		cfg.Timeout = millis(s.timeout)
		if cfg.Timeout <= 0 {
			return nil, &config.Error{Field: "timeout", Value: s.timeout, Message: "must be at least 1ms"}
		}
	}
	if changed("retries") {
		cfg.Retries = config.IntPtr(s.retries)
	}
	if changed("retry-delay") {
		cfg.RetryDelay = millis(s.retryDelay)
	}
	if changed("max-retry-delay") {
		cfg.MaxRetryDelay = millis(s.maxRetryDelay)
	}
	if changed("workers") {
		cfg.Workers = s.workers
		if s.workers == 0 {
			return nil, &config.Error{Field: "workers", Value: 0, Message: "must be at least 1"}
		}
	}
	if changed("fail-fast") {
		cfg.FailFast = config.BoolPtr(s.failFast)
	}
	if changed("forbid-only") {
		cfg.ForbidOnly = config.BoolPtr(s.forbidOnly)
	}
	if changed("global-timeout") {
		cfg.GlobalTimeout = millis(s.globalTimeout)
	}
	if changed("rate-limit") {
		cfg.RateLimit = s.rateLimit
	}
	if len(s.headers) > 0 {
		headers, err := parseHeaders(s.headers)
		if err != nil {
			return nil, err
		}
		cfg.Headers = headers
	}
	if changed("proxy") {
		cfg.Proxy = s.proxy
	}
	if changed("insecure") {
		cfg.ValidateSSL = config.BoolPtr(!s.insecure)
	}
	if changed("no-follow-redirects") {
		cfg.FollowRedirects = config.BoolPtr(!s.noRedirects)
	}
	if changed("output") {
		cfg.Reporter = strings.ToLower(s.output)
	}
	if changed("output-file") {
		cfg.OutputFile = s.outputFile
	}
	if changed("no-color") {
		cfg.NoColor = config.BoolPtr(s.noColor)
	}
	if changed("wait-for") {
		cfg.WaitFor = millis(s.waitFor)
	}
	if changed("history-db") {
		cfg.HistoryDB = s.historyDB
	}
	if changed("metrics-file") {
		cfg.MetricsFile = s.metricsFile
	}
	if changed("notify-on") || changed("slack-webhook") || changed("slack-channel") {
		cfg.Notify = &config.NotifyConfig{
			SlackWebhook: s.slackWebhook,
			SlackChannel: s.slackChannel,
			On:           s.notifyOn,
		}
	}
	return cfg, nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			name, value, ok = strings.Cut(h, "=")
		}
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, exitWith(ExitUsageError, fmt.Errorf("invalid header %q (want \"Name: value\")", h))
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// resolve layers defaults < config file < .env < environment <
// flags and validates the result.
func (s *settingsFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	fileCfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return nil, err
	}

	if s.envFile != "" {
		if _, err := env.LoadAndExportDotEnv(s.envFile); err != nil {
			// a missing default .env is normal; a missing explicit one is not
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
				return nil, &config.Error{Field: "env-file", Value: s.envFile, Message: "cannot load", Err: err}
			}
		}
	}

	envCfg, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("SLACK_WEBHOOK"); v != "" {
		envCfg.Notify = &config.NotifyConfig{SlackWebhook: v}
	}

	flagCfg, err := s.layer(cmd)
	if err != nil {
		return nil, err
	}

	return config.Resolve(fileCfg, envCfg, flagCfg)
}

// newLogger returns the runner logger for the -v count: nothing by default,
// info with -v and debug with -vv.
func newLogger(verbosity int) *slog.Logger {
	if verbosity <= 0 {
		return slog.New(slog.DiscardHandler)
	}
	level := slog.LevelInfo
	if verbosity > 1 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
