// Package github implements the CIProvider port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/kernelkit/test-system-status/internal/domain/model"
	"github.com/kernelkit/test-system-status/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CIProvider = (*Client)(nil)

const (
	shortSHALength = 7
	maxRedirects   = 3
	// maxLogBytes caps how much of a job log is read into memory.
	maxLogBytes = 16 << 20
)

// Client implements the driven.CIProvider port using the go-github library.
type Client struct {
	gh *gh.Client
	// logHTTP downloads job logs from the pre-signed URLs GitHub redirects to.
	// It carries no GitHub credentials.
	logHTTP *http.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, PAT auth when token is non-empty)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{
		gh:      client,
		logHTTP: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:      client,
		logHTTP: httpClient,
	}, nil
}

// GetBranch returns the head commit of a branch.
func (c *Client) GetBranch(ctx context.Context, repoFullName string, branch string) (*model.CommitSummary, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	b, resp, err := c.gh.Repositories.GetBranch(ctx, owner, repo, branch, maxRedirects)
	if err != nil {
		return nil, providerError(fmt.Sprintf("get branch %s@%s", repoFullName, branch), resp, err)
	}

	logRateLimit(resp, repoFullName+"/branch", 0, 1)

	return mapCommit(b.GetCommit()), nil
}

// ListWorkflowRuns returns up to limit workflow runs of a branch, most recent first.
func (c *Client) ListWorkflowRuns(ctx context.Context, repoFullName string, branch string, limit int) ([]model.WorkflowRun, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListWorkflowRunsOptions{
		Branch:      branch,
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	result, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, opts)
	if err != nil {
		return nil, providerError(fmt.Sprintf("list workflow runs for %s@%s", repoFullName, branch), resp, err)
	}

	logRateLimit(resp, repoFullName+"/actions/runs", 0, len(result.WorkflowRuns))

	runs := make([]model.WorkflowRun, 0, len(result.WorkflowRuns))
	for _, r := range result.WorkflowRuns {
		if len(runs) == limit {
			break
		}
		runs = append(runs, mapWorkflowRun(r))
	}

	return runs, nil
}

// ListCheckRuns retrieves all check runs for the given ref (commit SHA or branch).
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) ListCheckRuns(ctx context.Context, repoFullName string, ref string) ([]model.CheckRun, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	allRuns := []model.CheckRun{}

	for {
		result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, providerError(fmt.Sprintf("list check runs for %s@%s (page %d)", repoFullName, ref, opts.Page), resp, err)
		}

		logRateLimit(resp, repoFullName+"/check-runs", opts.Page, len(result.CheckRuns))

		for _, cr := range result.CheckRuns {
			allRuns = append(allRuns, mapCheckRun(cr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allRuns, nil
}

// GetCommitStatuses returns the individual commit statuses of a ref.
func (c *Client) GetCommitStatuses(ctx context.Context, repoFullName string, ref string) ([]model.StatusCheck, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	cs, resp, err := c.gh.Repositories.GetCombinedStatus(ctx, owner, repo, ref, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, providerError(fmt.Sprintf("fetch combined status for %s@%s", repoFullName, ref), resp, err)
	}

	logRateLimit(resp, repoFullName+"/status", 0, len(cs.Statuses))

	statuses := make([]model.StatusCheck, 0, len(cs.Statuses))
	for _, s := range cs.Statuses {
		statuses = append(statuses, mapStatus(s))
	}

	return statuses, nil
}

// ListRunJobs retrieves all jobs of a workflow run.
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) ListRunJobs(ctx context.Context, repoFullName string, runID int64) ([]model.JobExecution, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListWorkflowJobsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var allJobs []model.JobExecution

	for {
		result, resp, err := c.gh.Actions.ListWorkflowJobs(ctx, owner, repo, runID, opts)
		if err != nil {
			return nil, providerError(fmt.Sprintf("list jobs for %s run %d (page %d)", repoFullName, runID, opts.Page), resp, err)
		}

		logRateLimit(resp, repoFullName+"/actions/jobs", opts.Page, len(result.Jobs))

		for _, j := range result.Jobs {
			allJobs = append(allJobs, mapJob(j))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allJobs, nil
}

// GetJobLogs resolves the log download URL of a job and reads the plain-text log.
func (c *Client) GetJobLogs(ctx context.Context, repoFullName string, jobID int64) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	op := fmt.Sprintf("fetch logs for %s job %d", repoFullName, jobID)

	logURL, resp, err := c.gh.Actions.GetWorkflowJobLogs(ctx, owner, repo, jobID, maxRedirects)
	if err != nil {
		return "", providerError(op, resp, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL.String(), nil)
	if err != nil {
		return "", &model.ProviderError{Op: op, Err: err}
	}

	logResp, err := c.logHTTP.Do(req)
	if err != nil {
		return "", &model.ProviderError{Op: op, Err: err}
	}
	defer logResp.Body.Close()

	if logResp.StatusCode != http.StatusOK {
		return "", &model.ProviderError{
			Op:         op,
			StatusCode: logResp.StatusCode,
			Message:    http.StatusText(logResp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(logResp.Body, maxLogBytes))
	if err != nil {
		return "", &model.ProviderError{Op: op, Err: err}
	}

	slog.Debug("job logs fetched", "repo", repoFullName, "job_id", jobID, "bytes", len(body))

	return string(body), nil
}

// GetGist returns the content of the first file of a gist, ordered by filename.
func (c *Client) GetGist(ctx context.Context, gistID string) (string, error) {
	gist, resp, err := c.gh.Gists.Get(ctx, gistID)
	if err != nil {
		return "", providerError("fetch gist "+gistID, resp, err)
	}

	logRateLimit(resp, "gists/"+gistID, 0, len(gist.Files))

	if len(gist.Files) == 0 {
		return "", &model.ProviderError{Op: "fetch gist " + gistID, Message: "gist has no files"}
	}

	names := make([]string, 0, len(gist.Files))
	for name := range gist.Files {
		names = append(names, string(name))
	}
	sort.Strings(names)

	file := gist.Files[gh.GistFilename(names[0])]
	return file.GetContent(), nil
}

// providerError wraps a go-github failure in a model.ProviderError, keeping the
// HTTP status and GitHub's own message when available.
func providerError(op string, resp *gh.Response, err error) error {
	pe := &model.ProviderError{Op: op, Err: err}

	var errResp *gh.ErrorResponse
	var rateErr *gh.RateLimitError
	switch {
	case errors.As(err, &errResp):
		pe.Message = errResp.Message
	case errors.As(err, &rateErr):
		pe.Message = rateErr.Message
	}

	if resp != nil && resp.Response != nil {
		pe.StatusCode = resp.StatusCode
	}

	return pe
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapCommit converts a go-github RepositoryCommit to a domain CommitSummary.
func mapCommit(rc *gh.RepositoryCommit) *model.CommitSummary {
	sha := rc.GetSHA()
	if len(sha) > shortSHALength {
		sha = sha[:shortSHALength]
	}

	message, _, _ := strings.Cut(rc.GetCommit().GetMessage(), "\n")
	author := rc.GetCommit().GetAuthor()

	return &model.CommitSummary{
		SHA:     sha,
		Message: message,
		Author:  author.GetName(),
		Date:    author.GetDate().Time,
	}
}

// mapWorkflowRun converts a go-github WorkflowRun to a domain WorkflowRun.
func mapWorkflowRun(r *gh.WorkflowRun) model.WorkflowRun {
	return model.WorkflowRun{
		ID:         r.GetID(),
		Name:       r.GetName(),
		Status:     r.GetStatus(),
		Conclusion: r.GetConclusion(),
		URL:        r.GetHTMLURL(),
		CreatedAt:  r.GetCreatedAt().Time,
		UpdatedAt:  r.GetUpdatedAt().Time,
	}
}

// mapCheckRun converts a go-github CheckRun to a domain model CheckRun.
func mapCheckRun(cr *gh.CheckRun) model.CheckRun {
	var startedAt, completedAt time.Time
	if cr.StartedAt != nil {
		startedAt = cr.GetStartedAt().Time
	}
	if cr.CompletedAt != nil {
		completedAt = cr.GetCompletedAt().Time
	}

	return model.CheckRun{
		Name:        cr.GetName(),
		Status:      cr.GetStatus(),
		Conclusion:  cr.GetConclusion(),
		URL:         cr.GetHTMLURL(),
		DetailsURL:  cr.GetDetailsURL(),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}

// mapStatus converts a go-github RepoStatus to a domain StatusCheck.
func mapStatus(s *gh.RepoStatus) model.StatusCheck {
	return model.StatusCheck{
		Context:     s.GetContext(),
		State:       model.StatusState(s.GetState()),
		Description: s.GetDescription(),
		TargetURL:   s.GetTargetURL(),
		CreatedAt:   s.GetCreatedAt().Time,
		UpdatedAt:   s.GetUpdatedAt().Time,
	}
}

// mapJob converts a go-github WorkflowJob to a domain JobExecution.
func mapJob(j *gh.WorkflowJob) model.JobExecution {
	steps := make([]model.StepResult, 0, len(j.Steps))
	for _, s := range j.Steps {
		steps = append(steps, model.StepResult{
			Name:       s.GetName(),
			Conclusion: model.JobConclusion(s.GetConclusion()),
			Number:     s.GetNumber(),
		})
	}

	return model.JobExecution{
		ID:         j.GetID(),
		RunID:      j.GetRunID(),
		Name:       j.GetName(),
		Conclusion: model.JobConclusion(j.GetConclusion()),
		URL:        j.GetHTMLURL(),
		Steps:      steps,
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
