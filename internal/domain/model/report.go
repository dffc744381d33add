package model

import "time"

// CommitSummary describes the head commit of a branch.
type CommitSummary struct {
	SHA     string // Abbreviated to 7 characters.
	Message string // First line only.
	Author  string
	Date    time.Time
}

// RepositoryReport is the health report of one repository/branch pair for one
// poll cycle. It is immutable once built. A report with a non-empty Error is
// the degraded variant and carries only Repo, Branch, and Error.
type RepositoryReport struct {
	Repo   string // "owner/repo".
	Branch string
	Error  string

	Commit   *CommitSummary
	Workflow *WorkflowRun // nil when the branch has no workflow runs.
	Checks   []CheckRun

	// Jobs is the deduplicated job list in first-seen order.
	Jobs           []JobExecution
	FailedJobs     []JobExecution
	FailedTestJobs []TestJobResult
	Statuses       []StatusCheck

	Overall OverallStatus
}

// IsError reports whether the report is the degraded error variant.
func (r RepositoryReport) IsError() bool {
	return r.Error != ""
}

// Snapshot is the result of one batch build across all enabled targets.
type Snapshot struct {
	Timestamp    time.Time
	Repositories []RepositoryReport
}

// HasPending reports whether any repository in the snapshot is still pending.
func (s Snapshot) HasPending() bool {
	for _, r := range s.Repositories {
		if r.Overall == OverallPending {
			return true
		}
	}
	return false
}
