package model

// OverallStatus is the single health verdict of a repository/branch pair.
type OverallStatus string

const (
	OverallSuccess OverallStatus = "success"
	OverallFailure OverallStatus = "failure"
	OverallPending OverallStatus = "pending"
	OverallError   OverallStatus = "error"
)

// JobConclusion is the outcome of a job execution. The empty value means the
// job has not concluded yet (GitHub reports null while queued or running).
type JobConclusion string

const (
	ConclusionNone      JobConclusion = ""
	ConclusionSuccess   JobConclusion = "success"
	ConclusionFailure   JobConclusion = "failure"
	ConclusionCancelled JobConclusion = "cancelled" //nolint:misspell // GitHub API uses British "cancelled"
)

// StatusState represents the state of a commit status.
type StatusState string

const (
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
	StatusError   StatusState = "error"
	StatusPending StatusState = "pending"
)

// Run lifecycle values shared by workflow runs and check runs.
const (
	RunStatusCompleted  = "completed"
	RunStatusInProgress = "in_progress"
	RunStatusQueued     = "queued"
)
