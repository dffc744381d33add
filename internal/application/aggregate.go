package application

import "github.com/kernelkit/test-system-status/internal/domain/model"

// ComputeOverallStatus combines the latest workflow run, the check runs, and
// the commit statuses of a branch into one verdict. Rules, first match wins:
//  1. no workflow run: error
//  2. any failed check or failed/errored status: failure
//  3. any pending status, or a pending workflow: pending
//  4. successful workflow with statuses: success only if every status succeeded, else pending
//  5. otherwise the workflow's own verdict
func ComputeOverallStatus(workflow *model.WorkflowRun, checks []model.CheckRun, statuses []model.StatusCheck) model.OverallStatus {
	if workflow == nil {
		return model.OverallError
	}

	base := workflow.Verdict()

	var hasFailing, hasPending bool

	for _, c := range checks {
		if c.Verdict() == model.OverallFailure {
			hasFailing = true
		}
	}

	for _, s := range statuses {
		switch {
		case s.IsFailed():
			hasFailing = true
		case s.State == model.StatusPending:
			hasPending = true
		}
	}

	if hasFailing {
		return model.OverallFailure
	}
	if hasPending || base == model.OverallPending {
		return model.OverallPending
	}
	if base == model.OverallSuccess && len(statuses) > 0 {
		for _, s := range statuses {
			if s.State != model.StatusSuccess {
				return model.OverallPending
			}
		}
		return model.OverallSuccess
	}
	return base
}
