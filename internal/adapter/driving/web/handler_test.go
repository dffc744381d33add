package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

type mockSource struct {
	latest     *model.Snapshot
	refreshErr error
	refreshes  int
}

func (m *mockSource) Latest() *model.Snapshot { return m.latest }

func (m *mockSource) Refresh(_ context.Context) (*model.Snapshot, error) {
	m.refreshes++
	return m.latest, m.refreshErr
}

func setupMux(source *mockSource) http.Handler {
	h := NewHandler(source, displayPatterns, 300, slog.Default())
	h.now = func() time.Time { return testNow }
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	return mux
}

func dashboardSnapshot(overall model.OverallStatus) *model.Snapshot {
	return &model.Snapshot{
		Timestamp: testNow.Add(-3 * time.Minute),
		Repositories: []model.RepositoryReport{
			{
				Repo:   "kernelkit/infix",
				Branch: "main",
				Commit: &model.CommitSummary{SHA: "abc1234", Date: testNow.Add(-10 * time.Minute)},
				Jobs: []model.JobExecution{
					{Name: "Test / test-run-x86_64", Conclusion: model.ConclusionFailure, URL: "https://github.com/kernelkit/infix/actions/runs/1/job/2"},
				},
				FailedTestJobs: []model.TestJobResult{{
					Job:     model.JobExecution{Name: "Test / test-run-x86_64", Conclusion: model.ConclusionFailure},
					Failure: &model.FailureExtraction{SourceName: "Test / test-run-x86_64", FailedFiles: []string{"ospf"}},
				}},
				Statuses: []model.StatusCheck{
					{Context: "ci/<script>", State: model.StatusFailure, Description: "boom & bust"},
				},
				Overall: overall,
			},
			{Repo: "kernelkit/missing", Branch: "main", Error: "Not Found", Overall: model.OverallError},
		},
	}
}

func TestDashboard_Loading(t *testing.T) {
	mux := setupMux(&mockSource{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Loading repository status")
	assert.Contains(t, body, `content="300"`)
}

func TestDashboard_RendersCards(t *testing.T) {
	mux := setupMux(&mockSource{latest: dashboardSnapshot(model.OverallFailure)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Last updated: 3m ago")
	assert.Contains(t, body, `class="repo-card failed"`)
	assert.Contains(t, body, "abc1234 • 10m ago")
	assert.Contains(t, body, "test-run-x86_64</a> failed tests:")
	assert.Contains(t, body, `<div class="failed-test-files">ospf</div>`)
	assert.Contains(t, body, `<span class="count-item failed">2 failed</span>`)

	// The error card shows only its message.
	assert.Contains(t, body, `class="repo-card error"`)
	assert.Contains(t, body, `<div class="error-message">Not Found</div>`)

	// Provider text is escaped.
	assert.NotContains(t, body, "ci/<script>")
	assert.Contains(t, body, "ci/&lt;script&gt;")
	assert.Contains(t, body, "boom &amp; bust")

	// A CSRF cookie is issued for the refresh form.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Contains(t, body, `value="`+cookies[0].Value+`"`)
}

func TestDashboard_PendingShortensReload(t *testing.T) {
	mux := setupMux(&mockSource{latest: dashboardSnapshot(model.OverallPending)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), `content="60"`)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name          string
		cookie        string
		formToken     string
		refreshErr    error
		wantStatus    int
		wantRefreshes int
	}{
		{name: "valid token", cookie: "tok", formToken: "tok", wantStatus: http.StatusSeeOther, wantRefreshes: 1},
		{name: "refresh error still redirects", cookie: "tok", formToken: "tok", refreshErr: errors.New("canceled"), wantStatus: http.StatusSeeOther, wantRefreshes: 1},
		{name: "mismatched token", cookie: "tok", formToken: "other", wantStatus: http.StatusForbidden},
		{name: "missing cookie", formToken: "tok", wantStatus: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			source := &mockSource{refreshErr: tc.refreshErr}
			mux := setupMux(source)

			form := url.Values{csrfFormField: {tc.formToken}}
			req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantRefreshes, source.refreshes)
			if tc.wantStatus == http.StatusSeeOther {
				assert.Equal(t, "/", rec.Header().Get("Location"))
			}
		})
	}
}

func TestStaticAssets(t *testing.T) {
	mux := setupMux(&mockSource{})

	req := httptest.NewRequest(http.MethodGet, "/static/style.css", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".repo-card")
}
