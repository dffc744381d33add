package application

import (
	"strings"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// JobSet is an immutable, name-keyed view of job executions that remembers the
// order in which names were first seen.
type JobSet struct {
	order  []string
	byName map[string]model.JobExecution
}

// Deduplicate collapses jobs to one execution per name. Jobs must be ordered
// most recent run first: the first execution seen for a name is kept and any
// later one is discarded, whatever its conclusion. A pending job from a fresh
// run therefore hides a failed job of the same name from an older run.
func Deduplicate(jobs []model.JobExecution) JobSet {
	set := JobSet{
		order:  make([]string, 0, len(jobs)),
		byName: make(map[string]model.JobExecution, len(jobs)),
	}
	for _, job := range jobs {
		if _, seen := set.byName[job.Name]; seen {
			continue
		}
		set.byName[job.Name] = job
		set.order = append(set.order, job.Name)
	}
	return set
}

// Len returns the number of distinct job names.
func (s JobSet) Len() int {
	return len(s.order)
}

// Get returns the retained execution for name.
func (s JobSet) Get(name string) (model.JobExecution, bool) {
	job, ok := s.byName[name]
	return job, ok
}

// Jobs returns the retained executions in first-seen order.
func (s JobSet) Jobs() []model.JobExecution {
	jobs := make([]model.JobExecution, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.byName[name])
	}
	return jobs
}

// FailedOrCancelled returns the retained executions that failed or were cancelled.
func (s JobSet) FailedOrCancelled() []model.JobExecution {
	jobs := make([]model.JobExecution, 0)
	for _, name := range s.order {
		if job := s.byName[name]; job.IsFailedOrCancelled() {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// FilterByName returns the subset of jobs whose name contains any of substrings.
func (s JobSet) FilterByName(substrings []string) JobSet {
	filtered := JobSet{
		order:  make([]string, 0, len(s.order)),
		byName: make(map[string]model.JobExecution),
	}
	for _, name := range s.order {
		if containsAny(name, substrings) {
			filtered.byName[name] = s.byName[name]
			filtered.order = append(filtered.order, name)
		}
	}
	return filtered
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
