package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/http"
	"github.com/abdul-hamid-achik/hitprobe/packages/scenario"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers = 1
	DefaultTimeout = 10 * time.Second
)

// Prober sends one request per attempt. *http.Client implements it.
type Prober interface {
	Send(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error)
}

type Config struct {
	// Retries is the number of extra attempts after a failed one.
	Retries       int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// Timeout bounds each attempt.
	Timeout time.Duration
	Workers int
	// FailFast stops the run after the first scenario that fails for good.
	FailFast bool
	// RateLimit caps attempts per second across all workers; 0 means no limit.
	RateLimit float64
	Logger    *slog.Logger
	// OnTransition is called for every state change. Calls are serialized.
	OnTransition func(Transition)
}

type Runner struct {
	client  Prober
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger

	mu sync.Mutex
}

func New(client Prober, cfg Config) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	r := &Runner{
		client: client,
		config: cfg,
		logger: cfg.Logger,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r
}

// Run executes every scenario and returns one result per scenario, in input
// order. It never returns early: cancelled or aborted scenarios are recorded
// as failed.
func (r *Runner) Run(ctx context.Context, scenarios []*scenario.Scenario) *RunResult {
	start := time.Now()
	result := &RunResult{
		ID:        uuid.NewString(),
		StartedAt: start,
		Results:   make([]*ScenarioResult, len(scenarios)),
	}
	if b, ok := r.client.(interface{ BaseURL() string }); ok {
		result.BaseURL = b.BaseURL()
	}

	log := r.logger.With("run", result.ID)
	log.Info("run started", "scenarios", len(scenarios), "workers", r.config.Workers, "retries", r.config.Retries)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sem := make(chan struct{}, r.config.Workers)
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		t := r.newTracker(i, sc)

		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			if acquired {
				<-sem
			}
			result.Results[i] = r.skip(runCtx, sc, t, log)
			continue
		}

		wg.Add(1)
		go func(idx int, sc *scenario.Scenario, t *tracker) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.runScenario(runCtx, sc, t, log)
			result.Results[idx] = res
			if !res.Passed && r.config.FailFast {
				cancel(ErrAborted)
			}
		}(i, sc, t)
	}

	wg.Wait()

	for _, res := range result.Results {
		if res.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	result.Duration = time.Since(start)

	log.Info("run finished", "passed", result.Passed, "failed", result.Failed, "duration", result.Duration)
	return result
}

func (r *Runner) newTracker(idx int, sc *scenario.Scenario) *tracker {
	t := &tracker{index: idx, name: sc.Name, state: StatePending}
	if r.config.OnTransition != nil {
		t.notify = func(tr Transition) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.config.OnTransition(tr)
		}
	}
	return t
}

// skip finalizes a scenario that never got a worker slot.
func (r *Runner) skip(ctx context.Context, sc *scenario.Scenario, t *tracker, log *slog.Logger) *ScenarioResult {
	err := interruption(ctx)
	if !errors.Is(err, ErrAborted) {
		err = fmt.Errorf("%w before start", err)
	}
	t.advance(StateFailed, err)
	log.Debug("scenario not started", "scenario", sc.Name, "reason", err)
	return &ScenarioResult{
		Name:      sc.Name,
		Source:    sc.Source,
		Tags:      sc.Tags,
		State:     StateFailed,
		LastError: err,
		ErrorKind: Classify(err),
	}
}

func (r *Runner) runScenario(ctx context.Context, sc *scenario.Scenario, t *tracker, log *slog.Logger) *ScenarioResult {
	res := &ScenarioResult{
		Name:   sc.Name,
		Source: sc.Source,
		Tags:   sc.Tags,
	}
	log = log.With("scenario", sc.Name)

	timeout := r.config.Timeout
	if sc.Timeout > 0 {
		timeout = sc.Timeout
	}
	maxAttempts := r.config.Retries + 1
	start := time.Now()

	finish := func(state State, err error) *ScenarioResult {
		t.advance(state, err)
		res.State = state
		res.Passed = state == StatePassed
		res.LastError = err
		res.ErrorKind = Classify(err)
		res.Duration = time.Since(start)
		log.Info("scenario finished", "state", state, "attempts", res.Attempts, "duration", res.Duration)
		return res
	}

	for attempt := 1; ; attempt++ {
		if err := r.wait(ctx); err != nil {
			return finish(StateFailed, err)
		}

		t.attempt = attempt
		t.advance(StateRunning, nil)
		res.Attempts = attempt

		attemptStart := time.Now()
		status, err := r.attempt(ctx, sc, timeout)
		res.History = append(res.History, Attempt{
			Number:   attempt,
			Status:   status,
			Duration: time.Since(attemptStart),
			Err:      err,
		})
		if status != 0 {
			res.LastStatus = status
		}

		if err == nil {
			return finish(StatePassed, nil)
		}
		log.Debug("attempt failed", "attempt", attempt, "kind", Classify(err), "error", err)

		if ctx.Err() != nil {
			// a transport failure here is the aborted call itself; an
			// assertion failure keeps its own diagnostic
			var transportErr *http.TransportError
			if errors.As(err, &transportErr) {
				err = fmt.Errorf("%w during attempt %d: %w", interruption(ctx), attempt, err)
			}
			return finish(StateFailed, err)
		}
		if attempt >= maxAttempts {
			return finish(StateFailed, err)
		}

		t.advance(StateRetrying, err)
		delay := Backoff(r.config.RetryDelay, r.config.MaxRetryDelay, attempt)
		log.Warn("retrying scenario", "attempt", attempt, "delay", delay, "error", err)

		if !sleep(ctx, delay) {
			return finish(StateFailed, fmt.Errorf("%w while waiting to retry: %w", interruption(ctx), err))
		}
	}
}

// attempt sends the request once and applies the assertion. The returned
// status is 0 when no response arrived.
func (r *Runner) attempt(ctx context.Context, sc *scenario.Scenario, timeout time.Duration) (int, error) {
	req := sc.Request.Clone()
	resp, err := r.client.Send(ctx, req, timeout)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, sc.Assert(resp)
}

func (r *Runner) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before attempt", interruption(ctx))
	}
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w before attempt", interruption(ctx))
		}
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

// interruption describes why ctx is done: ErrAborted when fail-fast stopped
// the run, otherwise ErrCancelled with the underlying cause.
func interruption(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrAborted) {
		return ErrAborted
	}
	if cause == nil {
		cause = ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrCancelled, cause)
}

// Backoff returns the delay after the given failed attempt:
// base * 2^(attempt-1), capped at max when max is positive.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
