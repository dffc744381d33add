package application

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kernelkit/test-system-status/internal/domain/model"
	"github.com/kernelkit/test-system-status/internal/domain/port/driven"
)

// workflowRunLimit is how many workflow runs are listed per branch.
const workflowRunLimit = 50

var gistIDRe = regexp.MustCompile(`gist\.github\.com/[^/]+/([a-f0-9]+)`)

// ReportBuilder assembles the health report of one repository/branch pair from
// the CI provider. It holds no state between builds.
type ReportBuilder struct {
	provider        driven.CIProvider
	recentRuns      int
	testJobPatterns []string
}

// NewReportBuilder creates a ReportBuilder. recentRuns is the number of most
// recent workflow runs whose jobs are inspected; testJobPatterns selects test
// jobs by name substring.
func NewReportBuilder(provider driven.CIProvider, recentRuns int, testJobPatterns []string) *ReportBuilder {
	return &ReportBuilder{
		provider:        provider,
		recentRuns:      recentRuns,
		testJobPatterns: testJobPatterns,
	}
}

// Build produces the report for target. It never fails: when one of the
// branch, workflow run, check run, or status fetches fails the error variant
// of the report is returned instead. Failures of the job, gist, and log
// fetches only drop that piece of enrichment.
func (b *ReportBuilder) Build(ctx context.Context, target model.Target) model.RepositoryReport {
	start := time.Now()
	repoFullName := target.FullName()

	var (
		commit   *model.CommitSummary
		runs     []model.WorkflowRun
		checks   []model.CheckRun
		statuses []model.StatusCheck
	)

	var initial errgroup.Group
	initial.Go(func() error {
		var err error
		commit, err = b.provider.GetBranch(ctx, repoFullName, target.Branch)
		return err
	})
	initial.Go(func() error {
		var err error
		runs, err = b.provider.ListWorkflowRuns(ctx, repoFullName, target.Branch, workflowRunLimit)
		return err
	})
	initial.Go(func() error {
		var err error
		checks, err = b.provider.ListCheckRuns(ctx, repoFullName, target.Branch)
		return err
	})
	initial.Go(func() error {
		var err error
		statuses, err = b.provider.GetCommitStatuses(ctx, repoFullName, target.Branch)
		return err
	})

	if err := initial.Wait(); err != nil {
		slog.Error("repository status fetch failed", "repo", repoFullName, "branch", target.Branch, "error", err)
		return errorReport(target, err)
	}

	runJobs, enriched := b.fetchEnrichment(ctx, target, runs, statuses)

	var combined []model.JobExecution
	for _, jobs := range runJobs {
		combined = append(combined, jobs...)
	}
	jobSet := Deduplicate(combined)

	slog.Debug("jobs deduplicated",
		"repo", repoFullName,
		"branch", target.Branch,
		"fetched", len(combined),
		"unique", jobSet.Len(),
	)

	testJobs := b.fetchTestJobLogs(ctx, target, jobSet.FilterByName(b.testJobPatterns).FailedOrCancelled())
	for i := range testJobs {
		src := FailureSource{Name: testJobs[i].Job.Name}
		if testJobs[i].Logs != nil {
			src.JobLogs = *testJobs[i].Logs
		}
		testJobs[i].Failure = ExtractFailures(src)
	}

	for i := range enriched {
		if !enriched[i].IsFailed() {
			continue
		}
		src := FailureSource{Name: enriched[i].Context, Description: enriched[i].Description}
		if enriched[i].GistContent != nil {
			src.GistContent = *enriched[i].GistContent
		}
		enriched[i].Failure = ExtractFailures(src)
	}

	var workflow *model.WorkflowRun
	if len(runs) > 0 {
		latest := runs[0]
		workflow = &latest
	}

	report := model.RepositoryReport{
		Repo:           repoFullName,
		Branch:         target.Branch,
		Commit:         commit,
		Workflow:       workflow,
		Checks:         checks,
		Jobs:           jobSet.Jobs(),
		FailedJobs:     jobSet.FailedOrCancelled(),
		FailedTestJobs: testJobs,
		Statuses:       enriched,
		Overall:        ComputeOverallStatus(workflow, checks, enriched),
	}

	slog.Info("repository report built",
		"repo", repoFullName,
		"branch", target.Branch,
		"overall", string(report.Overall),
		"jobs", len(report.Jobs),
		"failed_test_jobs", len(testJobs),
		"statuses", len(enriched),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return report
}

// fetchEnrichment concurrently fetches the jobs of the most recent runs and
// the gist content behind failed statuses. Each fetch writes only its own slot
// and a failing fetch leaves that slot empty.
func (b *ReportBuilder) fetchEnrichment(
	ctx context.Context,
	target model.Target,
	runs []model.WorkflowRun,
	statuses []model.StatusCheck,
) ([][]model.JobExecution, []model.StatusCheck) {
	repoFullName := target.FullName()

	recent := runs[:min(len(runs), b.recentRuns)]
	runJobs := make([][]model.JobExecution, len(recent))

	enriched := make([]model.StatusCheck, len(statuses))
	copy(enriched, statuses)

	var g errgroup.Group

	for i, run := range recent {
		g.Go(func() error {
			jobs, err := b.provider.ListRunJobs(ctx, repoFullName, run.ID)
			if err != nil {
				slog.Error("fetch run jobs failed", "repo", repoFullName, "branch", target.Branch, "run_id", run.ID, "error", err)
				return nil
			}
			for j := range jobs {
				jobs[j].RunID = run.ID
				jobs[j].RunRecency = i
			}
			runJobs[i] = jobs
			return nil
		})
	}

	for i := range enriched {
		gistID, ok := gistIDFor(enriched[i])
		if !ok {
			continue
		}
		g.Go(func() error {
			content, err := b.provider.GetGist(ctx, gistID)
			if err != nil {
				slog.Error("fetch gist failed", "repo", repoFullName, "context", enriched[i].Context, "gist_id", gistID, "error", err)
				return nil
			}
			enriched[i].GistContent = &content
			return nil
		})
	}

	_ = g.Wait() // Every goroutine returns nil; failures are logged in place.

	return runJobs, enriched
}

// fetchTestJobLogs concurrently fetches the log of each failed test job.
// A failed fetch yields a nil Logs field.
func (b *ReportBuilder) fetchTestJobLogs(ctx context.Context, target model.Target, jobs []model.JobExecution) []model.TestJobResult {
	repoFullName := target.FullName()
	results := make([]model.TestJobResult, len(jobs))

	var g errgroup.Group
	for i, job := range jobs {
		results[i].Job = job
		g.Go(func() error {
			logs, err := b.provider.GetJobLogs(ctx, repoFullName, job.ID)
			if err != nil {
				slog.Error("fetch job logs failed", "repo", repoFullName, "job", job.Name, "job_id", job.ID, "error", err)
				return nil
			}
			results[i].Logs = &logs
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// gistIDFor returns the gist ID referenced by a failed status, if any.
func gistIDFor(status model.StatusCheck) (string, bool) {
	if status.State != model.StatusFailure || !status.HasGistLink() {
		return "", false
	}
	m := gistIDRe.FindStringSubmatch(status.TargetURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// errorReport builds the degraded report variant. The provider's own message
// is preferred over the wrapped error text.
func errorReport(target model.Target, err error) model.RepositoryReport {
	msg := err.Error()
	var pe *model.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		msg = pe.Message
	}

	return model.RepositoryReport{
		Repo:    target.FullName(),
		Branch:  target.Branch,
		Error:   msg,
		Overall: model.OverallError,
	}
}
