package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name  string
	err   error
	calls []*RunSummary
}

func (r *recordingNotifier) Notify(_ context.Context, s *RunSummary) error {
	copied := *s
	r.calls = append(r.calls, &copied)
	return r.err
}

func (r *recordingNotifier) Name() string { return r.name }

func summary(failed int) *RunSummary {
	return &RunSummary{TotalScenarios: 5, PassedScenarios: 5 - failed, FailedScenarios: failed}
}

func TestParseNotifyOn(t *testing.T) {
	tests := []struct {
		in      string
		want    NotifyOn
		wantErr bool
	}{
		{"", NotifyFailure, false},
		{"always", NotifyAlways, false},
		{"FAILURE", NotifyFailure, false},
		{" success ", NotifySuccess, false},
		{"recovery", NotifyRecovery, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParseNotifyOn(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestManagerPolicies(t *testing.T) {
	// outcomes of consecutive runs: failed scenario counts
	runs := []int{0, 2, 1, 0, 0}

	tests := []struct {
		on   NotifyOn
		want []bool
	}{
		{NotifyAlways, []bool{true, true, true, true, true}},
		{NotifyFailure, []bool{false, true, true, false, false}},
		{NotifySuccess, []bool{true, false, false, true, true}},
		{NotifyRecovery, []bool{false, true, true, true, false}},
	}

	for _, tt := range tests {
		t.Run(string(tt.on), func(t *testing.T) {
			rec := &recordingNotifier{name: "rec"}
			m := NewManager(tt.on, rec)
			for i, failed := range runs {
				before := len(rec.calls)
				require.NoError(t, m.Notify(context.Background(), summary(failed)))
				assert.Equal(t, tt.want[i], len(rec.calls) > before, "run %d", i)
			}
		})
	}
}

func TestManagerRecoveryFlag(t *testing.T) {
	rec := &recordingNotifier{name: "rec"}
	m := NewManager(NotifyRecovery, rec)
	m.SetPrevious(false)

	require.NoError(t, m.Notify(context.Background(), summary(0)))
	require.Len(t, rec.calls, 1)
	assert.True(t, rec.calls[0].IsRecovery)

	require.NoError(t, m.Notify(context.Background(), summary(0)))
	assert.Len(t, rec.calls, 1)
}

func TestManagerJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingNotifier{name: "ok"}
	bad := &recordingNotifier{name: "bad", err: boom}
	m := NewManager(NotifyAlways, bad)
	m.AddNotifier(ok)

	err := m.Notify(context.Background(), summary(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.calls, 1)
}

func TestSummarize(t *testing.T) {
	result := &runner.RunResult{
		ID:       "run-1",
		BaseURL:  "http://localhost:8080",
		Duration: time.Second,
		Passed:   1,
		Failed:   1,
		Results: []*runner.ScenarioResult{
			{Name: "ping", Passed: true, Attempts: 1},
			{Name: "create user", Source: "users.probe.yaml:3", Attempts: 3,
				LastError: errors.New("status equals: expected 200, got 500"), ErrorKind: runner.KindAssertion},
		},
	}

	s := Summarize(result)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 2, s.TotalScenarios)
	assert.Equal(t, 4, s.Attempts)
	require.Len(t, s.FailedResults, 1)
	assert.Equal(t, FailedScenario{
		Name: "create user", Source: "users.probe.yaml:3", Kind: "assertion",
		Error: "status equals: expected 200, got 500", Attempts: 3,
	}, s.FailedResults[0])
}

func TestSlackNotifier(t *testing.T) {
	var mu sync.Mutex
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackNotifier(srv.URL, WithSlackChannel("#e2e"))
	assert.Equal(t, "slack", s.Name())

	sum := &RunSummary{
		RunID: "run-9", BaseURL: "http://api", TotalScenarios: 3, PassedScenarios: 2, FailedScenarios: 1,
		Attempts: 5, Duration: 1234 * time.Millisecond,
		FailedResults: []FailedScenario{{Name: "hello", Kind: "timeout", Error: "POST /graphql: timed out", Attempts: 3}},
	}
	require.NoError(t, s.Notify(context.Background(), sum))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "#e2e", got.Channel)
	assert.Equal(t, "hitprobe", got.Username)
	require.Len(t, got.Attachments, 1)
	att := got.Attachments[0]
	assert.Equal(t, "danger", att.Color)
	assert.Equal(t, ":x: 1 of 3 scenarios failed", att.Title)
	assert.Contains(t, att.Text, "• `hello` [timeout]")
	assert.Contains(t, att.Text, "POST /graphql: timed out")
	assert.Equal(t, "hitprobe run run-9", att.Footer)
}

func TestSlackNotifierRecoveryAndTruncation(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewSlackNotifier(srv.URL)
	require.NoError(t, s.Notify(context.Background(), &RunSummary{TotalScenarios: 2, PassedScenarios: 2, IsRecovery: true}))
	assert.Equal(t, ":tada: Scenarios recovered", got.Attachments[0].Title)
	assert.Equal(t, "good", got.Attachments[0].Color)

	many := &RunSummary{TotalScenarios: 12, FailedScenarios: 12}
	for i := 0; i < 12; i++ {
		many.FailedResults = append(many.FailedResults, FailedScenario{Name: fmt.Sprintf("s%d", i), Kind: "transport"})
	}
	require.NoError(t, s.Notify(context.Background(), many))
	assert.Contains(t, got.Attachments[0].Text, "_and 2 more_")
	assert.NotContains(t, got.Attachments[0].Text, "`s10`")
}

func TestSlackNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlackNotifier(srv.URL).Notify(context.Background(), summary(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "invalid_token")
}
