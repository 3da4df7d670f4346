package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/config"
	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/hitprobe/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitprobe/packages/history"
	"github.com/abdul-hamid-achik/hitprobe/packages/http"
	"github.com/abdul-hamid-achik/hitprobe/packages/notify"
	"github.com/abdul-hamid-achik/hitprobe/packages/output"
	"github.com/spf13/cobra"
)

const (
	waitForInterval = 500 * time.Millisecond
	notifyTimeout   = 15 * time.Second
)

type runOptions struct {
	settings    settingsFlags
	suite       suiteFlags
	waitPath    string
	metricsPort int
	watch       bool
	verbose     int
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [file|directory...]",
		Short: "Run scenarios against the backend",
		Long: `Run end-to-end scenarios against a live backend.

With no arguments the built-in backend suite runs. Arguments name scenario
files (*.probe.yaml, *.probe.yml) or directories containing them.

Examples:
  hitprobe run
  hitprobe run --base-url http://staging:8080 --retries 2
  hitprobe run ./e2e --builtin --workers 4 -o junit --output-file report.xml
  hitprobe run ./e2e --tags smoke --fail-fast
  hitprobe run ./e2e --wait-for 30s --global-timeout 2m
  hitprobe run ./e2e --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	o.settings.register(cmd)
	o.suite.register(cmd)
	cmd.Flags().StringVar(&o.waitPath, "wait-path", "/ping", "Path polled by --wait-for")
	cmd.Flags().IntVar(&o.metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port while running (0 = off)")
	cmd.Flags().BoolVarP(&o.watch, "watch", "w", false, "Re-run when scenario files change")
	cmd.Flags().CountVarP(&o.verbose, "verbose", "v", "Verbose output (-v logs run events, -vv every attempt)")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.settings.resolve(cmd)
	if err != nil {
		return err
	}
	if o.watch && len(args) == 0 {
		return exitWith(ExitUsageError, errors.New("--watch needs scenario files or directories to watch"))
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	s, err := newSession(ctx, cmd, cfg, o)
	if err != nil {
		return err
	}
	defer s.close()

	err = s.runOnce(ctx, args)
	if !o.watch {
		return err
	}
	s.report(err)
	return s.watch(ctx, args)
}

// signalContext is cancelled on SIGINT or SIGTERM with the signal as cause.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping gracefully...")
			cancel(fmt.Errorf("received %s", sig))
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel(nil)
	}
}

// session holds what survives between runs in watch mode.
type session struct {
	cmd     *cobra.Command
	cfg     *config.Config
	opts    *runOptions
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Collector
	store   *history.Store
	notify  *notify.Manager

	stopMetrics context.CancelFunc
	lastErr     error
}

func newSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config, o *runOptions) (*session, error) {
	s := &session{
		cmd:     cmd,
		cfg:     cfg,
		opts:    o,
		logger:  newLogger(o.verbose),
		metrics: metrics.NewCollector(),
		client: http.NewClient(
			http.WithBaseURL(cfg.BaseURL),
			http.WithTimeout(cfg.TimeoutDuration()),
			http.WithDefaultHeaders(cfg.Headers),
			http.WithFollowRedirects(cfg.GetFollowRedirects()),
			http.WithValidateSSL(cfg.GetValidateSSL()),
			http.WithProxy(cfg.Proxy),
		),
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, &config.Error{Field: "historyDB", Value: cfg.HistoryDB, Message: "cannot open", Err: err}
		}
		s.store = store
	}

	if cfg.Notify != nil && cfg.Notify.SlackWebhook != "" {
		on, err := notify.ParseNotifyOn(cfg.Notify.On)
		if err != nil {
			s.close()
			return nil, &config.Error{Field: "notify.on", Value: cfg.Notify.On, Message: "invalid", Err: err}
		}
		var slackOpts []notify.SlackOption
		if cfg.Notify.SlackChannel != "" {
			slackOpts = append(slackOpts, notify.WithSlackChannel(cfg.Notify.SlackChannel))
		}
		s.notify = notify.NewManager(on, notify.NewSlackNotifier(cfg.Notify.SlackWebhook, slackOpts...))

		if s.store != nil {
			if last, err := s.store.Last(ctx); err == nil {
				s.notify.SetPrevious(last.AllPassed())
			} else if !errors.Is(err, history.ErrNoRuns) {
				warnf("cannot read last run from history: %v", err)
			}
		}
	}

	if o.metricsPort > 0 {
		mctx, cancel := context.WithCancel(context.Background())
		s.stopMetrics = cancel
		addr := fmt.Sprintf(":%d", o.metricsPort)
		go func() {
			if err := s.metrics.ListenAndServe(mctx, addr); err != nil {
				warnf("%v", err)
			}
		}()
		fmt.Fprintf(cmd.ErrOrStderr(), "Prometheus metrics available at http://localhost%s/metrics\n", addr)
	}

	return s, nil
}

func (s *session) close() {
	if s.stopMetrics != nil {
		s.stopMetrics()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			warnf("closing history db: %v", err)
		}
	}
}

// runOnce loads the suite, runs it and publishes the result. The returned
// error carries the exit code.
func (s *session) runOnce(ctx context.Context, args []string) error {
	cfg := s.cfg

	suite, _, err := loadSuite(args, s.opts.suite.builtin)
	if err != nil {
		return err
	}
	if cfg.GetForbidOnly() && suite.HasOnly() {
		return &config.Error{
			Field:   "forbidOnly",
			Value:   strings.Join(suite.OnlyNames(), ", "),
			Message: "scenarios are marked only",
		}
	}
	selected := suite.Select(s.opts.suite.filter())
	if len(selected) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no scenarios match the given filters (%d defined)", len(suite)))
	}

	out := s.cmd.OutOrStdout()
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	formatter, err := output.New(cfg.Reporter, out, output.Options{
		Verbose: s.opts.verbose > 0,
		NoColor: cfg.GetNoColor(),
	})
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	if d := cfg.WaitForDuration(); d > 0 {
		wctx, cancel := context.WithTimeout(ctx, d)
		err := s.client.WaitFor(wctx, s.opts.waitPath, waitForInterval)
		cancel()
		if err != nil {
			formatter.FormatError(err)
			if ferr := flush(formatter, 0); ferr != nil {
				warnf("%v", ferr)
			}
			return exitWith(ExitNetworkError, fmt.Errorf("preflight failed: %w", err))
		}
	}

	runCtx := ctx
	if d := cfg.GlobalTimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, d, fmt.Errorf("global timeout of %s exceeded", d))
		defer cancel()
	}

	rcfg := runner.Config{
		Retries:       cfg.GetRetries(),
		RetryDelay:    cfg.RetryDelayDuration(),
		MaxRetryDelay: cfg.MaxRetryDelayDuration(),
		Timeout:       cfg.TimeoutDuration(),
		Workers:       cfg.Workers,
		FailFast:      cfg.GetFailFast(),
		RateLimit:     cfg.RateLimit,
		Logger:        s.logger,
	}
	if s.opts.verbose > 1 {
		rcfg.OnTransition = func(tr runner.Transition) {
			s.logger.Debug("state change", "scenario", tr.Scenario, "from", tr.From, "to", tr.To, "attempt", tr.Attempt, "error", tr.Err)
		}
	}

	result := runner.New(s.client, rcfg).Run(runCtx, selected)

	formatter.FormatResult(result)
	if err := flush(formatter, result.Duration); err != nil {
		return err
	}

	s.publish(ctx, result)

	if code := output.ExitCode(result); code != ExitSuccess {
		return exitWith(code, nil)
	}
	return nil
}

func flush(f output.Formatter, d time.Duration) error {
	if flushable, ok := f.(output.Flushable); ok {
		if err := flushable.Flush(d); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}
	return nil
}

// publish records the result in metrics and history and sends
// notifications. Failures here are warnings, never a failed run.
func (s *session) publish(ctx context.Context, result *runner.RunResult) {
	s.metrics.Observe(result)
	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			warnf("%v", err)
		}
	}

	// the run context may already be cancelled; recording must still happen
	bg := context.WithoutCancel(ctx)

	if s.store != nil {
		if err := s.store.Save(bg, result); err != nil {
			warnf("failed to save run history: %v", err)
		}
	}

	if s.notify != nil {
		nctx, cancel := context.WithTimeout(bg, notifyTimeout)
		defer cancel()
		if err := s.notify.Notify(nctx, notify.Summarize(result)); err != nil {
			warnf("failed to send notification: %v", err)
		}
	}
}

// report prints a run error the way run() would, for watch mode where the
// command keeps going.
func (s *session) report(err error) {
	s.lastErr = err
	var exitErr *ExitError
	if err == nil || (errors.As(err, &exitErr) && exitErr.Err == nil) {
		return
	}
	fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
}
