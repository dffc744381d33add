package driven

import (
	"context"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// CIProvider defines the driven port for reading CI state from the provider API.
// Every method fails with a *model.ProviderError when the upstream call fails.
type CIProvider interface {
	// GetBranch returns the head commit of the given branch.
	GetBranch(ctx context.Context, repoFullName string, branch string) (*model.CommitSummary, error)
	// ListWorkflowRuns returns up to limit workflow runs for the branch, most recent first.
	ListWorkflowRuns(ctx context.Context, repoFullName string, branch string, limit int) ([]model.WorkflowRun, error)
	// ListCheckRuns returns the check runs attached to ref (commit SHA or branch).
	ListCheckRuns(ctx context.Context, repoFullName string, ref string) ([]model.CheckRun, error)
	// GetCommitStatuses returns the individual commit statuses for ref.
	GetCommitStatuses(ctx context.Context, repoFullName string, ref string) ([]model.StatusCheck, error)
	// ListRunJobs returns the jobs of one workflow run. RunRecency is left zero;
	// the caller assigns it.
	ListRunJobs(ctx context.Context, repoFullName string, runID int64) ([]model.JobExecution, error)
	// GetJobLogs returns the plain-text execution log of a job.
	GetJobLogs(ctx context.Context, repoFullName string, jobID int64) (string, error)
	// GetGist returns the content of the first file of a gist.
	GetGist(ctx context.Context, gistID string) (string, error)
}
