package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runAt(id string, started time.Time, pass bool) *runner.RunResult {
	res := &runner.RunResult{
		ID:        id,
		BaseURL:   "http://localhost:8080",
		StartedAt: started,
		Duration:  450 * time.Millisecond,
		Results: []*runner.ScenarioResult{
			{Name: "ping", Source: "builtin", Passed: true, State: runner.StatePassed, Attempts: 1, LastStatus: 200, Duration: 12 * time.Millisecond},
		},
		Passed: 1,
	}
	if !pass {
		res.Results = append(res.Results, &runner.ScenarioResult{
			Name: "create user", Source: "users.probe.yaml:4", State: runner.StateFailed,
			Attempts: 3, LastStatus: 500, Duration: 300 * time.Millisecond,
			LastError: errors.New("status equals: expected 200, got 500"), ErrorKind: runner.KindAssertion,
		})
		res.Failed = 1
	}
	return res
}

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")

	s, err := Open("sqlite://" + path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// reopening an existing database keeps working
	s, err = Open("sqlite:" + path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestSaveAndLast(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Last(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, runAt("run-1", started, false)))

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", last.ID)
	assert.Equal(t, "http://localhost:8080", last.BaseURL)
	assert.True(t, last.StartedAt.Equal(started))
	assert.Equal(t, 450*time.Millisecond, last.Duration)
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, 1, last.Passed)
	assert.Equal(t, 1, last.Failed)
	assert.Equal(t, 4, last.Attempts)
	assert.False(t, last.AllPassed())

	scenarios, err := s.Scenarios(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, Scenario{
		Position: 0, Name: "ping", Source: "builtin", Passed: true,
		Attempts: 1, Status: 200, Duration: 12 * time.Millisecond,
	}, scenarios[0])
	assert.Equal(t, "create user", scenarios[1].Name)
	assert.False(t, scenarios[1].Passed)
	assert.Equal(t, "assertion", scenarios[1].ErrorKind)
	assert.Equal(t, "status equals: expected 200, got 500", scenarios[1].Error)
}

func TestRecentOrdering(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, runAt("old", base, true)))
	require.NoError(t, s.Save(ctx, runAt("new", base.Add(2*time.Minute), true)))
	require.NoError(t, s.Save(ctx, runAt("mid", base.Add(time.Minute), false)))

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)

	runs, err = s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", last.ID)
	assert.True(t, last.AllPassed())
}

func TestSaveRejectsDuplicatesAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	assert.Error(t, s.Save(ctx, nil))
	assert.Error(t, s.Save(ctx, &runner.RunResult{}))

	run := runAt("dup", time.Now(), true)
	require.NoError(t, s.Save(ctx, run))
	err := s.Save(ctx, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save run dup")

	// the failed save left nothing behind
	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestScenariosUnknownRun(t *testing.T) {
	s := openStore(t)
	scenarios, err := s.Scenarios(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}
