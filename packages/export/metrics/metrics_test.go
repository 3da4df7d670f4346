package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(allPass bool) *runner.RunResult {
	res := &runner.RunResult{
		Duration: 1500 * time.Millisecond,
		Results: []*runner.ScenarioResult{
			{Name: "ping", Passed: true, State: runner.StatePassed, Attempts: 1, Duration: 20 * time.Millisecond},
			{Name: "hello", Passed: true, State: runner.StatePassed, Attempts: 2, Duration: 300 * time.Millisecond},
		},
		Passed: 2,
	}
	if !allPass {
		res.Results = append(res.Results,
			&runner.ScenarioResult{
				Name: "create user", State: runner.StateFailed, Attempts: 3,
				Duration: time.Second, LastError: errors.New("boom"), ErrorKind: runner.KindAssertion,
			},
			&runner.ScenarioResult{
				Name: "graphiql", State: runner.StateFailed,
				LastError: runner.ErrAborted, ErrorKind: runner.KindAborted,
			},
		)
		res.Failed = 2
	}
	return res
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Latency{}, Summarize(nil))
	})

	t.Run("single value", func(t *testing.T) {
		l := Summarize([]time.Duration{42 * time.Millisecond})
		assert.Equal(t, 1, l.Count)
		assert.InDelta(t, 42*time.Millisecond, l.Min, float64(100*time.Microsecond))
		assert.InDelta(t, 42*time.Millisecond, l.Max, float64(100*time.Microsecond))
		assert.InDelta(t, 42*time.Millisecond, l.P99, float64(100*time.Microsecond))
	})

	t.Run("percentiles are ordered", func(t *testing.T) {
		var ds []time.Duration
		for i := 1; i <= 100; i++ {
			ds = append(ds, time.Duration(i)*time.Millisecond)
		}
		l := Summarize(ds)
		assert.Equal(t, 100, l.Count)
		assert.LessOrEqual(t, l.Min, l.P50)
		assert.LessOrEqual(t, l.P50, l.P95)
		assert.LessOrEqual(t, l.P95, l.P99)
		assert.LessOrEqual(t, l.P99, l.Max)
		assert.InDelta(t, 50*time.Millisecond, l.P50, float64(time.Millisecond))
		assert.InDelta(t, 95*time.Millisecond, l.P95, float64(time.Millisecond))
	})

	t.Run("out of range values are clamped", func(t *testing.T) {
		l := Summarize([]time.Duration{0, 2 * time.Hour})
		assert.Equal(t, 2, l.Count)
		assert.Equal(t, time.Microsecond, l.Min)
		assert.InDelta(t, time.Hour, l.Max, float64(10*time.Second))
	})
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollectorObserve(t *testing.T) {
	c := NewCollector()
	c.Observe(sampleRun(false))

	out := scrape(t, c)
	assert.Contains(t, out, `hitprobe_scenarios_total{outcome="passed"} 2`)
	assert.Contains(t, out, `hitprobe_scenarios_total{outcome="failed"} 2`)
	assert.Contains(t, out, `hitprobe_scenario_failures_total{kind="assertion"} 1`)
	assert.Contains(t, out, `hitprobe_scenario_failures_total{kind="aborted"} 1`)
	assert.Contains(t, out, "hitprobe_attempts_total 6")
	assert.Contains(t, out, "hitprobe_last_run_success 0")
	assert.Contains(t, out, "hitprobe_last_run_duration_seconds 1.5")
	assert.Contains(t, out, `hitprobe_scenario_duration_seconds_count{scenario="create user"} 1`)
	assert.NotContains(t, out, `scenario="graphiql"`)
}

func TestCollectorAccumulatesRuns(t *testing.T) {
	c := NewCollector()
	c.Observe(sampleRun(false))
	c.Observe(sampleRun(true))
	c.Observe(nil)

	out := scrape(t, c)
	assert.Contains(t, out, "hitprobe_runs_total 2")
	assert.Contains(t, out, `hitprobe_scenarios_total{outcome="passed"} 4`)
	assert.Contains(t, out, "hitprobe_last_run_success 1")
}

func TestCollectorWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.Observe(sampleRun(true))

	path := filepath.Join(t.TempDir(), "hitprobe.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE hitprobe_scenarios_total counter")
	assert.Contains(t, string(data), "hitprobe_last_run_success 1")
}

func TestCollectorWriteTextfileBadPath(t *testing.T) {
	c := NewCollector()
	err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing metrics")
}

func TestCollectorServe(t *testing.T) {
	c := NewCollector()
	c.Observe(sampleRun(true))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "hitprobe_runs_total 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
