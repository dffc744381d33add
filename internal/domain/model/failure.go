package model

// FailureExtraction lists the individual tests a job log, gist, or status
// description reported as failed. Only the log parser produces it.
type FailureExtraction struct {
	SourceName  string
	FailedFiles []string
}
