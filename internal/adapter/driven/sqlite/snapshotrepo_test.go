package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

func sampleSnapshot(ts time.Time) model.Snapshot {
	logs := "Starting test 0001-ping.py\nnot ok 1"
	gist := "- :red_circle: : 0007-foo_bar.py"

	return model.Snapshot{
		Timestamp: ts,
		Repositories: []model.RepositoryReport{
			{
				Repo:   "kernelkit/infix",
				Branch: "main",
				Commit: &model.CommitSummary{SHA: "0123456", Message: "Fix dhcp", Author: "Jane", Date: ts},
				Workflow: &model.WorkflowRun{
					ID: 10, Name: "Build & Test", Status: "completed", Conclusion: "failure",
				},
				Jobs: []model.JobExecution{
					{ID: 1, Name: "test-run-x86_64", Conclusion: model.ConclusionFailure},
				},
				FailedTestJobs: []model.TestJobResult{
					{
						Job:     model.JobExecution{ID: 1, Name: "test-run-x86_64", Conclusion: model.ConclusionFailure},
						Logs:    &logs,
						Failure: &model.FailureExtraction{SourceName: "test-run-x86_64", FailedFiles: []string{"ping"}},
					},
				},
				Statuses: []model.StatusCheck{
					{Context: "ael/regression", State: model.StatusFailure, GistContent: &gist},
				},
				Overall: model.OverallFailure,
			},
			{
				Repo:    "kernelkit/curiOS",
				Branch:  "main",
				Error:   "Not Found",
				Overall: model.OverallError,
			},
		},
	}
}

func TestSnapshotRepo_GetLatestEmpty(t *testing.T) {
	repo := NewSnapshotRepo(setupTestDB(t))

	snapshot, err := repo.GetLatest(context.Background())

	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestSnapshotRepo_RoundTrip(t *testing.T) {
	repo := NewSnapshotRepo(setupTestDB(t))
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.ReplaceSnapshot(ctx, sampleSnapshot(ts)))

	got, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, ts.Equal(got.Timestamp))
	require.Len(t, got.Repositories, 2)

	first := got.Repositories[0]
	assert.Equal(t, "kernelkit/infix", first.Repo)
	assert.Equal(t, model.OverallFailure, first.Overall)
	require.Len(t, first.FailedTestJobs, 1)
	require.NotNil(t, first.FailedTestJobs[0].Failure)
	assert.Equal(t, []string{"ping"}, first.FailedTestJobs[0].Failure.FailedFiles)
	require.NotNil(t, first.Statuses[0].GistContent)
	assert.Equal(t, "- :red_circle: : 0007-foo_bar.py", *first.Statuses[0].GistContent)

	second := got.Repositories[1]
	assert.True(t, second.IsError())
	assert.Equal(t, "Not Found", second.Error)
}

func TestSnapshotRepo_ReplaceKeepsOnlyLatest(t *testing.T) {
	repo := NewSnapshotRepo(setupTestDB(t))
	ctx := context.Background()

	first := sampleSnapshot(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.ReplaceSnapshot(ctx, first))

	second := model.Snapshot{
		Timestamp: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		Repositories: []model.RepositoryReport{
			{Repo: "kernelkit/infix", Branch: "main", Overall: model.OverallSuccess},
		},
	}
	require.NoError(t, repo.ReplaceSnapshot(ctx, second))

	got, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, second.Timestamp.Equal(got.Timestamp))
	require.Len(t, got.Repositories, 1)
	assert.Equal(t, model.OverallSuccess, got.Repositories[0].Overall)
}
