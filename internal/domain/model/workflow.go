package model

import "time"

// WorkflowRun is one execution of a workflow definition for a branch.
// The most recent run doubles as the report's workflow summary.
type WorkflowRun struct {
	ID         int64
	Name       string
	Status     string // queued, in_progress, completed.
	Conclusion string // success, failure, cancelled, ... (empty until completed).
	URL        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Verdict maps the run's status/conclusion to a verdict.
func (w WorkflowRun) Verdict() OverallStatus {
	return RunVerdict(w.Status, w.Conclusion)
}
