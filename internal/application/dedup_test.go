package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelkit/test-system-status/internal/application"
	"github.com/kernelkit/test-system-status/internal/domain/model"
)

func job(id int64, name string, conclusion model.JobConclusion, recency int) model.JobExecution {
	return model.JobExecution{ID: id, Name: name, Conclusion: conclusion, RunRecency: recency}
}

// TestDeduplicate_RecentPendingBeatsOlderFailure verifies that a job still
// running in the newest run hides the failed execution of an older run.
func TestDeduplicate_RecentPendingBeatsOlderFailure(t *testing.T) {
	set := application.Deduplicate([]model.JobExecution{
		job(10, "test-run-x86_64", model.ConclusionNone, 0),
		job(5, "test-run-x86_64", model.ConclusionFailure, 1),
	})

	got, ok := set.Get("test-run-x86_64")
	require.True(t, ok)
	assert.Equal(t, int64(10), got.ID)
	assert.Equal(t, model.ConclusionNone, got.Conclusion)
	assert.Empty(t, set.FailedOrCancelled())
}

func TestDeduplicate_FirstSeenWinsRegardlessOfConclusion(t *testing.T) {
	set := application.Deduplicate([]model.JobExecution{
		job(1, "build-x86_64", model.ConclusionFailure, 0),
		job(2, "build-aarch64", model.ConclusionSuccess, 0),
		job(3, "build-x86_64", model.ConclusionSuccess, 1),
		job(4, "build-aarch64", model.ConclusionFailure, 1),
	})

	require.Equal(t, 2, set.Len())
	jobs := set.Jobs()
	assert.Equal(t, []int64{1, 2}, []int64{jobs[0].ID, jobs[1].ID})

	failed := set.FailedOrCancelled()
	require.Len(t, failed, 1)
	assert.Equal(t, "build-x86_64", failed[0].Name)
}

func TestDeduplicate_Idempotent(t *testing.T) {
	input := []model.JobExecution{
		job(1, "a", model.ConclusionSuccess, 0),
		job(2, "b", model.ConclusionCancelled, 0),
		job(3, "a", model.ConclusionFailure, 1),
	}

	once := application.Deduplicate(input)
	twice := application.Deduplicate(once.Jobs())

	assert.Equal(t, once.Jobs(), twice.Jobs())
}

func TestDeduplicate_Empty(t *testing.T) {
	set := application.Deduplicate(nil)

	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.Jobs())
	assert.Empty(t, set.FailedOrCancelled())
	_, ok := set.Get("anything")
	assert.False(t, ok)
}

func TestJobSet_FailedOrCancelledIncludesCancelled(t *testing.T) {
	set := application.Deduplicate([]model.JobExecution{
		job(1, "a", model.ConclusionCancelled, 0),
		job(2, "b", model.ConclusionFailure, 0),
		job(3, "c", model.ConclusionSuccess, 0),
	})

	failed := set.FailedOrCancelled()

	require.Len(t, failed, 2)
	assert.Equal(t, "a", failed[0].Name)
	assert.Equal(t, "b", failed[1].Name)
}

func TestJobSet_FilterByName(t *testing.T) {
	set := application.Deduplicate([]model.JobExecution{
		job(1, "Build infix / build-x86_64", model.ConclusionSuccess, 0),
		job(2, "Test / test-run-x86_64", model.ConclusionFailure, 0),
		job(3, "Regression Test", model.ConclusionCancelled, 0),
		job(4, "lint", model.ConclusionFailure, 0),
	})

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{name: "test patterns", patterns: []string{"test-run-", "Regression Test"}, want: []string{"Test / test-run-x86_64", "Regression Test"}},
		{name: "build patterns", patterns: []string{"build-"}, want: []string{"Build infix / build-x86_64"}},
		{name: "no patterns", patterns: nil, want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filtered := set.FilterByName(tc.patterns)
			names := make([]string, 0, filtered.Len())
			for _, j := range filtered.Jobs() {
				names = append(names, j.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}

	// Filtering does not change the source set.
	assert.Equal(t, 4, set.Len())
}
