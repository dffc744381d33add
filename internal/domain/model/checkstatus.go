package model

import (
	"strings"
	"time"
)

// CheckRun represents an individual check run from the GitHub Checks API.
type CheckRun struct {
	Name        string
	Status      string // queued, in_progress, completed.
	Conclusion  string // success, failure, neutral, cancelled, skipped, timed_out, action_required.
	URL         string
	DetailsURL  string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Verdict maps the check run to the same verdict scale as a workflow run.
func (c CheckRun) Verdict() OverallStatus {
	return RunVerdict(c.Status, c.Conclusion)
}

// StatusCheck represents an individual commit status from the GitHub Status API,
// optionally enriched with the gist content its target URL points at and the
// failures extracted from it.
type StatusCheck struct {
	Context     string // Unique key (e.g., "ci/regression").
	State       StatusState
	Description string
	TargetURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// GistContent is nil unless the status failed, links to a gist, and the
	// gist could be fetched.
	GistContent *string
	Failure     *FailureExtraction
}

// IsFailed reports whether the status signals an explicit failure.
func (s StatusCheck) IsFailed() bool {
	return s.State == StatusFailure || s.State == StatusError
}

// HasGistLink reports whether the target URL points at a hosted gist.
func (s StatusCheck) HasGistLink() bool {
	return strings.Contains(s.TargetURL, "gist.github.com")
}

// RunVerdict maps a run's status/conclusion pair to a verdict:
// completed+success is success, completed+anything else is failure,
// in_progress or queued is pending, everything else is error.
func RunVerdict(status, conclusion string) OverallStatus {
	switch status {
	case RunStatusCompleted:
		if conclusion == string(ConclusionSuccess) {
			return OverallSuccess
		}
		return OverallFailure
	case RunStatusInProgress, RunStatusQueued:
		return OverallPending
	default:
		return OverallError
	}
}
