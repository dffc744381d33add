package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kernelkit/test-system-status/internal/config"
	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// testCheckPrefix selects the check runs reported as testChecks.
const testCheckPrefix = "test-run-"

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusFeed is the JSON data feed of one snapshot. Each repository entry is
// either a RepositoryStatusResponse or a RepositoryErrorResponse.
type StatusFeed struct {
	Timestamp    string `json:"timestamp"`
	Repositories []any  `json:"repositories"`
}

// RepositoryErrorResponse is the degraded entry of a repository whose
// mandatory fetches failed.
type RepositoryErrorResponse struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Error  string `json:"error"`
}

// RepositoryStatusResponse is the full entry of one repository/branch pair.
type RepositoryStatusResponse struct {
	Repo           string                   `json:"repo"`
	Branch         string                   `json:"branch"`
	Commit         *CommitResponse          `json:"commit"`
	Workflow       *WorkflowResponse        `json:"workflow"`
	Checks         []CheckRunResponse       `json:"checks"`
	Statuses       []StatusResponse         `json:"statuses"`
	TestChecks     []CheckRunResponse       `json:"testChecks"`
	FailedJobs     []FailedJobResponse      `json:"failedJobs"`
	FailedTestJobs []FailedTestJobResponse  `json:"failedTestJobs"`
	AllJobs        []JobResponse            `json:"allJobs"`
	AllStatuses    []EnrichedStatusResponse `json:"allStatuses"`
	OverallStatus  string                   `json:"overallStatus"`
}

// CommitResponse is the head commit of the branch.
type CommitResponse struct {
	SHA     string  `json:"sha"`
	Message string  `json:"message"`
	Author  string  `json:"author"`
	Date    *string `json:"date"`
}

// WorkflowResponse is the most recent workflow run.
type WorkflowResponse struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Conclusion *string `json:"conclusion"`
	URL        string  `json:"url"`
	CreatedAt  *string `json:"created_at"`
	UpdatedAt  *string `json:"updated_at"`
}

// CheckRunResponse is one check run. DetailsURL is only set for test checks.
type CheckRunResponse struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Conclusion  *string `json:"conclusion"`
	URL         string  `json:"url"`
	StartedAt   *string `json:"started_at"`
	CompletedAt *string `json:"completed_at"`
	DetailsURL  string  `json:"details_url,omitempty"`
}

// StatusResponse is one commit status as reported by the provider.
type StatusResponse struct {
	Context     string  `json:"context"`
	State       string  `json:"state"`
	Description string  `json:"description"`
	TargetURL   string  `json:"target_url"`
	CreatedAt   *string `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
}

// EnrichedStatusResponse is a commit status of allStatuses. GistContent and
// Failure are null when the status has no gist or no identified failures.
type EnrichedStatusResponse struct {
	StatusResponse
	GistContent *string          `json:"gistContent"`
	Failure     *FailureResponse `json:"failure"`
}

// JobResponse is one deduplicated job.
type JobResponse struct {
	Name       string  `json:"name"`
	Conclusion *string `json:"conclusion"`
	HTMLURL    string  `json:"html_url"`
}

// StepResponse is one failed or cancelled step of a failed job.
type StepResponse struct {
	Name       string `json:"name"`
	Conclusion string `json:"conclusion"`
	Number     int64  `json:"number"`
}

// FailedJobResponse is a failed or cancelled job with its failed steps.
type FailedJobResponse struct {
	JobResponse
	Steps []StepResponse `json:"steps"`
}

// FailedTestJobResponse is a failed test job with its log, when available.
type FailedTestJobResponse struct {
	JobResponse
	Logs    *string          `json:"logs"`
	Failure *FailureResponse `json:"failure"`
}

// FailureResponse names the individual failed tests found for an item.
type FailureResponse struct {
	SourceName  string   `json:"sourceName"`
	FailedFiles []string `json:"failedFiles"`
}

// ConfigResponse is the watched repository list and dashboard settings.
type ConfigResponse struct {
	Repositories []RepositoryConfigResponse `json:"repositories"`
	Settings     SettingsResponse           `json:"settings"`
}

// RepositoryConfigResponse is one configured repository/branch pair.
type RepositoryConfigResponse struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Enabled bool   `json:"enabled"`
}

// SettingsResponse mirrors the settings block of the repository file.
type SettingsResponse struct {
	RefreshInterval    int      `json:"refreshInterval"`
	TestJobPatterns    []string `json:"testJobPatterns"`
	DisplayJobPatterns []string `json:"displayJobPatterns"`
	RecentRuns         int      `json:"recentRuns"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Time     string `json:"time"`
	LastPoll string `json:"last_poll,omitempty"`
}

// toStatusFeed converts a snapshot to the data feed.
func toStatusFeed(snapshot model.Snapshot) StatusFeed {
	repos := make([]any, 0, len(snapshot.Repositories))
	for _, r := range snapshot.Repositories {
		if r.IsError() {
			repos = append(repos, RepositoryErrorResponse{Repo: r.Repo, Branch: r.Branch, Error: r.Error})
			continue
		}
		repos = append(repos, toRepositoryStatusResponse(r))
	}

	return StatusFeed{
		Timestamp:    snapshot.Timestamp.UTC().Format(time.RFC3339),
		Repositories: repos,
	}
}

func toRepositoryStatusResponse(r model.RepositoryReport) RepositoryStatusResponse {
	resp := RepositoryStatusResponse{
		Repo:           r.Repo,
		Branch:         r.Branch,
		Checks:         make([]CheckRunResponse, 0, len(r.Checks)),
		Statuses:       make([]StatusResponse, 0, len(r.Statuses)),
		TestChecks:     []CheckRunResponse{},
		FailedJobs:     make([]FailedJobResponse, 0, len(r.FailedJobs)),
		FailedTestJobs: make([]FailedTestJobResponse, 0, len(r.FailedTestJobs)),
		AllJobs:        make([]JobResponse, 0, len(r.Jobs)),
		AllStatuses:    make([]EnrichedStatusResponse, 0, len(r.Statuses)),
		OverallStatus:  string(r.Overall),
	}

	if r.Commit != nil {
		resp.Commit = &CommitResponse{
			SHA:     r.Commit.SHA,
			Message: r.Commit.Message,
			Author:  r.Commit.Author,
			Date:    formatTime(r.Commit.Date),
		}
	}

	if r.Workflow != nil {
		resp.Workflow = &WorkflowResponse{
			Name:       r.Workflow.Name,
			Status:     r.Workflow.Status,
			Conclusion: nullable(r.Workflow.Conclusion),
			URL:        r.Workflow.URL,
			CreatedAt:  formatTime(r.Workflow.CreatedAt),
			UpdatedAt:  formatTime(r.Workflow.UpdatedAt),
		}
	}

	for _, c := range r.Checks {
		resp.Checks = append(resp.Checks, toCheckRunResponse(c))
		if strings.HasPrefix(c.Name, testCheckPrefix) {
			tc := toCheckRunResponse(c)
			tc.DetailsURL = c.DetailsURL
			resp.TestChecks = append(resp.TestChecks, tc)
		}
	}

	for _, s := range r.Statuses {
		resp.Statuses = append(resp.Statuses, toStatusResponse(s))
		resp.AllStatuses = append(resp.AllStatuses, EnrichedStatusResponse{
			StatusResponse: toStatusResponse(s),
			GistContent:    s.GistContent,
			Failure:        toFailureResponse(s.Failure),
		})
	}

	for _, j := range r.Jobs {
		resp.AllJobs = append(resp.AllJobs, toJobResponse(j))
	}

	for _, j := range r.FailedJobs {
		failed := j.FailedSteps()
		steps := make([]StepResponse, 0, len(failed))
		for _, s := range failed {
			steps = append(steps, StepResponse{Name: s.Name, Conclusion: string(s.Conclusion), Number: s.Number})
		}
		resp.FailedJobs = append(resp.FailedJobs, FailedJobResponse{JobResponse: toJobResponse(j), Steps: steps})
	}

	for _, tj := range r.FailedTestJobs {
		resp.FailedTestJobs = append(resp.FailedTestJobs, FailedTestJobResponse{
			JobResponse: toJobResponse(tj.Job),
			Logs:        tj.Logs,
			Failure:     toFailureResponse(tj.Failure),
		})
	}

	return resp
}

func toCheckRunResponse(c model.CheckRun) CheckRunResponse {
	return CheckRunResponse{
		Name:        c.Name,
		Status:      c.Status,
		Conclusion:  nullable(c.Conclusion),
		URL:         c.URL,
		StartedAt:   formatTime(c.StartedAt),
		CompletedAt: formatTime(c.CompletedAt),
	}
}

func toStatusResponse(s model.StatusCheck) StatusResponse {
	return StatusResponse{
		Context:     s.Context,
		State:       string(s.State),
		Description: s.Description,
		TargetURL:   s.TargetURL,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

func toJobResponse(j model.JobExecution) JobResponse {
	return JobResponse{
		Name:       j.Name,
		Conclusion: nullable(string(j.Conclusion)),
		HTMLURL:    j.URL,
	}
}

func toFailureResponse(f *model.FailureExtraction) *FailureResponse {
	if f == nil {
		return nil
	}
	return &FailureResponse{SourceName: f.SourceName, FailedFiles: f.FailedFiles}
}

func toConfigResponse(cfg *config.Config) ConfigResponse {
	repos := make([]RepositoryConfigResponse, 0, len(cfg.Repositories))
	for _, t := range cfg.Repositories {
		repos = append(repos, RepositoryConfigResponse{
			Owner:   t.Owner,
			Repo:    t.Repo,
			Branch:  t.Branch,
			Enabled: t.Enabled,
		})
	}

	return ConfigResponse{
		Repositories: repos,
		Settings: SettingsResponse{
			RefreshInterval:    cfg.Settings.RefreshIntervalSeconds,
			TestJobPatterns:    cfg.Settings.TestJobPatterns,
			DisplayJobPatterns: cfg.Settings.DisplayJobPatterns,
			RecentRuns:         cfg.Settings.RecentRuns,
		},
	}
}

// nullable maps the empty string to JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// formatTime renders t as RFC 3339, or JSON null for the zero time.
func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
