package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/kernelkit/test-system-status/internal/adapter/driving/http"
	"github.com/kernelkit/test-system-status/internal/config"
	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// --- Mock implementations ---

type mockSource struct {
	latest     *model.Snapshot
	refreshed  *model.Snapshot
	refreshErr error
	refreshes  int
}

func (m *mockSource) Latest() *model.Snapshot { return m.latest }

func (m *mockSource) Refresh(_ context.Context) (*model.Snapshot, error) {
	m.refreshes++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	m.latest = m.refreshed
	return m.refreshed, nil
}

// --- Test helpers ---

var (
	testTime    = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-02-10T12:00:00Z"
)

func testConfig() *config.Config {
	return &config.Config{
		GitHubToken: "ghp_secret",
		Repositories: []model.Target{
			{Owner: "kernelkit", Repo: "infix", Branch: "main", Enabled: true},
			{Owner: "kernelkit", Repo: "infix", Branch: "stable", Enabled: false},
		},
		Settings: config.Settings{
			RefreshIntervalSeconds: 300,
			TestJobPatterns:        config.DefaultTestJobPatterns,
			DisplayJobPatterns:     config.DefaultDisplayJobPatterns,
			RecentRuns:             5,
		},
	}
}

func setupMux(source *mockSource) http.Handler {
	h := httphandler.NewHandler(source, testConfig(), slog.Default())
	return httphandler.NewServeMux(h, slog.Default())
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func sampleSnapshot() *model.Snapshot {
	logs := "Starting test 0021-ospf.py\nnot ok 1\n"
	gist := "- :red_circle: : 0042-foo_bar.py"

	return &model.Snapshot{
		Timestamp: testTime,
		Repositories: []model.RepositoryReport{
			{
				Repo:   "kernelkit/infix",
				Branch: "main",
				Commit: &model.CommitSummary{SHA: "abc1234", Message: "Bump version", Author: "Jane Doe", Date: testTime},
				Workflow: &model.WorkflowRun{
					ID: 200, Name: "Kernelkit Trigger", Status: "completed", Conclusion: "failure",
					URL: "https://github.com/kernelkit/infix/actions/runs/200", CreatedAt: testTime, UpdatedAt: testTime,
				},
				Checks: []model.CheckRun{
					{Name: "test-run-x86_64", Status: "completed", Conclusion: "failure", DetailsURL: "https://ci/details", StartedAt: testTime},
					{Name: "build-x86_64", Status: "in_progress"},
				},
				Jobs: []model.JobExecution{
					{ID: 1, Name: "Build infix / build-x86_64", Conclusion: model.ConclusionSuccess, URL: "https://job/1"},
					{ID: 2, Name: "Test / test-run-x86_64", Conclusion: model.ConclusionFailure, URL: "https://job/2", Steps: []model.StepResult{
						{Name: "Checkout", Conclusion: model.ConclusionSuccess, Number: 1},
						{Name: "Run tests", Conclusion: model.ConclusionFailure, Number: 2},
					}},
					{ID: 3, Name: "Test / test-run-arm", Conclusion: model.ConclusionNone},
				},
				FailedJobs: []model.JobExecution{
					{ID: 2, Name: "Test / test-run-x86_64", Conclusion: model.ConclusionFailure, URL: "https://job/2", Steps: []model.StepResult{
						{Name: "Checkout", Conclusion: model.ConclusionSuccess, Number: 1},
						{Name: "Run tests", Conclusion: model.ConclusionFailure, Number: 2},
					}},
				},
				FailedTestJobs: []model.TestJobResult{
					{
						Job:     model.JobExecution{ID: 2, Name: "Test / test-run-x86_64", Conclusion: model.ConclusionFailure, URL: "https://job/2"},
						Logs:    &logs,
						Failure: &model.FailureExtraction{SourceName: "Test / test-run-x86_64", FailedFiles: []string{"ospf"}},
					},
				},
				Statuses: []model.StatusCheck{
					{
						Context: "ci/regression", State: model.StatusFailure, Description: "Regression failed",
						TargetURL: "https://gist.github.com/ci/0f1e", CreatedAt: testTime, UpdatedAt: testTime,
						GistContent: &gist,
						Failure:     &model.FailureExtraction{SourceName: "ci/regression", FailedFiles: []string{"foo_bar"}},
					},
				},
				Overall: model.OverallFailure,
			},
			{Repo: "kernelkit/missing", Branch: "main", Error: "Not Found", Overall: model.OverallError},
		},
	}
}

// --- Tests ---

func TestStatus_NotYetAvailable(t *testing.T) {
	source := &mockSource{}
	mux := setupMux(source)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, 0, source.refreshes)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "status not yet available", body["error"])
}

func TestStatus_Feed(t *testing.T) {
	mux := setupMux(&mockSource{latest: sampleSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var feed struct {
		Timestamp    string           `json:"timestamp"`
		Repositories []map[string]any `json:"repositories"`
	}
	decodeJSON(t, rec, &feed)

	assert.Equal(t, testTimeStr, feed.Timestamp)
	require.Len(t, feed.Repositories, 2)

	repo := feed.Repositories[0]
	assert.Equal(t, "kernelkit/infix", repo["repo"])
	assert.Equal(t, "main", repo["branch"])
	assert.Equal(t, "failure", repo["overallStatus"])
	assert.NotContains(t, repo, "error")

	commit := repo["commit"].(map[string]any)
	assert.Equal(t, "abc1234", commit["sha"])
	assert.Equal(t, testTimeStr, commit["date"])

	workflow := repo["workflow"].(map[string]any)
	assert.Equal(t, "Kernelkit Trigger", workflow["name"])
	assert.Equal(t, "failure", workflow["conclusion"])

	checks := repo["checks"].([]any)
	require.Len(t, checks, 2)
	assert.Nil(t, checks[1].(map[string]any)["conclusion"])
	assert.Nil(t, checks[1].(map[string]any)["started_at"])

	testChecks := repo["testChecks"].([]any)
	require.Len(t, testChecks, 1)
	assert.Equal(t, "https://ci/details", testChecks[0].(map[string]any)["details_url"])

	allJobs := repo["allJobs"].([]any)
	require.Len(t, allJobs, 3)
	assert.Nil(t, allJobs[2].(map[string]any)["conclusion"])

	failedJobs := repo["failedJobs"].([]any)
	require.Len(t, failedJobs, 1)
	steps := failedJobs[0].(map[string]any)["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "Run tests", steps[0].(map[string]any)["name"])
	assert.Equal(t, float64(2), steps[0].(map[string]any)["number"])

	failedTestJobs := repo["failedTestJobs"].([]any)
	require.Len(t, failedTestJobs, 1)
	ftj := failedTestJobs[0].(map[string]any)
	assert.Equal(t, "https://job/2", ftj["html_url"])
	assert.Contains(t, ftj["logs"], "Starting test")
	assert.Equal(t, []any{"ospf"}, ftj["failure"].(map[string]any)["failedFiles"])

	statuses := repo["statuses"].([]any)
	require.Len(t, statuses, 1)
	assert.NotContains(t, statuses[0], "gistContent")

	allStatuses := repo["allStatuses"].([]any)
	require.Len(t, allStatuses, 1)
	enriched := allStatuses[0].(map[string]any)
	assert.Equal(t, "- :red_circle: : 0042-foo_bar.py", enriched["gistContent"])
	assert.Equal(t, []any{"foo_bar"}, enriched["failure"].(map[string]any)["failedFiles"])

	errored := feed.Repositories[1]
	assert.Equal(t, map[string]any{
		"repo":   "kernelkit/missing",
		"branch": "main",
		"error":  "Not Found",
	}, errored)
}

func TestStatus_EmptyCollectionsAreArrays(t *testing.T) {
	mux := setupMux(&mockSource{latest: &model.Snapshot{
		Timestamp:    testTime,
		Repositories: []model.RepositoryReport{{Repo: "kernelkit/infix", Branch: "main", Overall: model.OverallError}},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Repositories []map[string]any `json:"repositories"`
	}
	decodeJSON(t, rec, &feed)
	require.Len(t, feed.Repositories, 1)

	repo := feed.Repositories[0]
	assert.Nil(t, repo["workflow"])
	assert.Nil(t, repo["commit"])
	for _, key := range []string{"checks", "statuses", "testChecks", "failedJobs", "failedTestJobs", "allJobs", "allStatuses"} {
		assert.Equal(t, []any{}, repo[key], key)
	}
}

func TestStatus_NonGistStatusHasNullGistContent(t *testing.T) {
	mux := setupMux(&mockSource{latest: &model.Snapshot{
		Timestamp: testTime,
		Repositories: []model.RepositoryReport{{
			Repo:     "kernelkit/infix",
			Branch:   "main",
			Workflow: &model.WorkflowRun{Name: "Kernelkit Trigger", Status: "completed", Conclusion: "success"},
			Statuses: []model.StatusCheck{
				{Context: "ci/external", State: model.StatusFailure, TargetURL: "https://ci.example.org/job/31"},
			},
			Overall: model.OverallFailure,
		}},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Repositories []map[string]any `json:"repositories"`
	}
	decodeJSON(t, rec, &feed)
	require.Len(t, feed.Repositories, 1)

	allStatuses := feed.Repositories[0]["allStatuses"].([]any)
	require.Len(t, allStatuses, 1)
	enriched := allStatuses[0].(map[string]any)
	assert.Equal(t, "https://ci.example.org/job/31", enriched["target_url"])
	require.Contains(t, enriched, "gistContent")
	assert.Nil(t, enriched["gistContent"])
	require.Contains(t, enriched, "failure")
	assert.Nil(t, enriched["failure"])

	statuses := feed.Repositories[0]["statuses"].([]any)
	assert.NotContains(t, statuses[0], "gistContent")
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		source     *mockSource
		wantStatus int
	}{
		{
			name:       "success",
			source:     &mockSource{refreshed: sampleSnapshot()},
			wantStatus: http.StatusOK,
		},
		{
			name:       "failure",
			source:     &mockSource{refreshErr: errors.New("context canceled")},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := setupMux(tc.source)

			req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, 1, tc.source.refreshes)
		})
	}
}

func TestRefresh_RejectsGet(t *testing.T) {
	source := &mockSource{refreshed: sampleSnapshot()}
	mux := setupMux(source)

	req := httptest.NewRequest(http.MethodGet, "/api/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, source.refreshes)
}

func TestConfig_OmitsToken(t *testing.T) {
	mux := setupMux(&mockSource{})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ghp_secret")

	var body httphandler.ConfigResponse
	decodeJSON(t, rec, &body)
	require.Len(t, body.Repositories, 2)
	assert.Equal(t, "stable", body.Repositories[1].Branch)
	assert.False(t, body.Repositories[1].Enabled)
	assert.Equal(t, 300, body.Settings.RefreshInterval)
	assert.Equal(t, 5, body.Settings.RecentRuns)
	assert.Equal(t, config.DefaultTestJobPatterns, body.Settings.TestJobPatterns)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name         string
		source       *mockSource
		wantLastPoll string
	}{
		{name: "before first poll", source: &mockSource{}},
		{name: "after poll", source: &mockSource{latest: sampleSnapshot()}, wantLastPoll: testTimeStr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := setupMux(tc.source)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var body httphandler.HealthResponse
			decodeJSON(t, rec, &body)
			assert.Equal(t, "ok", body.Status)
			assert.NotEmpty(t, body.Time)
			assert.Equal(t, tc.wantLastPoll, body.LastPoll)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "internal server error", body["error"])
}
