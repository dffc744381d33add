package model

// JobExecution is one job of one workflow run. Several executions may share a
// Name when they come from different runs of the same branch.
type JobExecution struct {
	ID         int64
	RunID      int64
	Name       string
	Conclusion JobConclusion
	URL        string
	Steps      []StepResult
	// RunRecency is the position of the owning run in the run list, 0 being
	// the most recent run.
	RunRecency int
}

// StepResult is one step of a job execution.
type StepResult struct {
	Name       string
	Conclusion JobConclusion
	Number     int64
}

// IsFailedOrCancelled reports whether the job concluded with failure or cancellation.
func (j JobExecution) IsFailedOrCancelled() bool {
	return j.Conclusion == ConclusionFailure || j.Conclusion == ConclusionCancelled
}

// FailedSteps returns the steps that concluded with failure or cancellation.
func (j JobExecution) FailedSteps() []StepResult {
	steps := make([]StepResult, 0, len(j.Steps))
	for _, s := range j.Steps {
		if s.Conclusion == ConclusionFailure || s.Conclusion == ConclusionCancelled {
			steps = append(steps, s)
		}
	}
	return steps
}

// TestJobResult is a failed test job enriched with its execution log.
type TestJobResult struct {
	Job JobExecution
	// Logs is nil when the log could not be fetched.
	Logs    *string
	Failure *FailureExtraction
}
