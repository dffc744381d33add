package web

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	vm "github.com/kernelkit/test-system-status/internal/adapter/driving/web/viewmodel"
	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// jobPrefixRe matches the "<workflow> / " prefix of a job name, up to the last separator.
var jobPrefixRe = regexp.MustCompile(`.*/ `)

// toDashboardViewModel converts a snapshot into the dashboard page model.
// A nil snapshot renders the loading state.
func toDashboardViewModel(snapshot *model.Snapshot, displayPatterns []string, refreshSeconds int, now time.Time) vm.DashboardViewModel {
	page := vm.DashboardViewModel{
		Title:          "Test System Status",
		LastUpdated:    "--",
		RefreshSeconds: refreshSeconds,
	}

	if snapshot == nil {
		page.Loading = true
		return page
	}

	page.LastUpdated = formatRelative(snapshot.Timestamp, now)
	page.Cards = make([]vm.RepoCardViewModel, 0, len(snapshot.Repositories))
	for _, r := range snapshot.Repositories {
		page.Cards = append(page.Cards, toRepoCardViewModel(r, displayPatterns, now))
	}

	return page
}

// toRepoCardViewModel converts one report into a card. Test items are the
// display jobs followed by every commit status.
func toRepoCardViewModel(r model.RepositoryReport, displayPatterns []string, now time.Time) vm.RepoCardViewModel {
	card := vm.RepoCardViewModel{
		Repo:    r.Repo,
		Branch:  r.Branch,
		Error:   r.Error,
		Overall: string(r.Overall),
	}
	if r.IsError() {
		return card
	}

	card.ShortSHA = "--"
	card.CommitAge = "--"
	if r.Commit != nil {
		card.ShortSHA = r.Commit.SHA
		card.CommitAge = formatRelative(r.Commit.Date, now)
	}

	failures := make(map[string]*model.FailureExtraction, len(r.FailedTestJobs))
	for _, tj := range r.FailedTestJobs {
		failures[tj.Job.Name] = tj.Failure
	}

	for _, j := range r.Jobs {
		if !matchesAny(j.Name, displayPatterns) {
			continue
		}
		card.Tests = append(card.Tests, jobDetail(j, failures[j.Name]))
	}
	for _, s := range r.Statuses {
		card.Tests = append(card.Tests, statusDetail(s))
	}

	for _, t := range card.Tests {
		switch t.Outcome {
		case "passed":
			card.Counts.Passed++
		case "failed":
			card.Counts.Failed++
		case "cancelled":
			card.Counts.Cancelled++
		default:
			card.Counts.Pending++
		}
	}

	return card
}

func jobDetail(j model.JobExecution, failure *model.FailureExtraction) vm.TestDetailViewModel {
	detail := vm.TestDetailViewModel{
		Name: cleanJobName(j.Name),
		URL:  j.URL,
	}

	switch j.Conclusion {
	case model.ConclusionSuccess:
		detail.Outcome = "passed"
	case model.ConclusionFailure:
		detail.Outcome = "failed"
	case model.ConclusionCancelled:
		detail.Outcome = "cancelled"
	default:
		detail.Outcome = "pending"
	}
	detail.Dot = dotFor(detail.Outcome)

	if failure != nil {
		detail.FailedTests = failure.FailedFiles
	}

	return detail
}

func statusDetail(s model.StatusCheck) vm.TestDetailViewModel {
	detail := vm.TestDetailViewModel{
		Name:        s.Context,
		URL:         s.TargetURL,
		Description: s.Description,
	}

	switch {
	case s.State == model.StatusSuccess:
		detail.Outcome = "passed"
	case s.IsFailed():
		detail.Outcome = "failed"
	default:
		detail.Outcome = "pending"
	}
	detail.Dot = dotFor(detail.Outcome)

	if s.Failure != nil {
		detail.FailedTests = s.Failure.FailedFiles
	}
	if s.GistContent != nil {
		detail.GistHTML = RenderMarkdown(*s.GistContent)
	}

	return detail
}

func dotFor(outcome string) string {
	switch outcome {
	case "passed":
		return "success"
	case "failed":
		return "failure"
	case "pending":
		return "pending"
	default:
		return "error"
	}
}

// cleanJobName drops the "<workflow> / " prefix GitHub puts on reusable
// workflow jobs, e.g. "Test / test-run-x86_64" becomes "test-run-x86_64".
func cleanJobName(name string) string {
	return jobPrefixRe.ReplaceAllString(name, "")
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// formatRelative renders t relative to now: "just now", "Nm ago", "Nh ago",
// or the calendar date once a day has passed.
func formatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "--"
	}

	minutes := int(now.Sub(t) / time.Minute)
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return t.Local().Format("2006-01-02")
	}
}
