// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// DashboardViewModel holds everything the dashboard page renders.
type DashboardViewModel struct {
	Title          string
	LastUpdated    string // Relative age of the snapshot, "--" before the first poll.
	RefreshSeconds int
	CSRFToken      string
	Loading        bool
	Cards          []RepoCardViewModel
}

// RepoCardViewModel holds presentation-ready data for one repository card.
type RepoCardViewModel struct {
	Repo    string
	Branch  string
	Error   string // Non-empty for the degraded card; nothing else is shown.
	Overall string // success, failure, pending, error.

	ShortSHA  string
	CommitAge string
	Counts    TestCounts
	Tests     []TestDetailViewModel
}

// Failed reports whether the card gets the failure highlight.
func (c RepoCardViewModel) Failed() bool {
	return c.Overall == "failure"
}

// CardClass returns the CSS classes of the card's outer element.
func (c RepoCardViewModel) CardClass() string {
	switch {
	case c.Error != "":
		return "repo-card error"
	case c.Failed():
		return "repo-card failed"
	default:
		return "repo-card"
	}
}

// TestCounts tallies test items by outcome.
type TestCounts struct {
	Passed    int
	Failed    int
	Pending   int
	Cancelled int
}

// Total returns the number of counted test items.
func (c TestCounts) Total() int {
	return c.Passed + c.Failed + c.Pending + c.Cancelled
}

// CountItem is one non-zero entry of the card's count line.
type CountItem struct {
	N     int
	Class string // passed, failed, pending, cancelled.
}

// Items returns the non-zero counts in display order.
func (c TestCounts) Items() []CountItem {
	items := make([]CountItem, 0, 4)
	for _, item := range []CountItem{
		{c.Passed, "passed"},
		{c.Failed, "failed"},
		{c.Pending, "pending"},
		{c.Cancelled, "cancelled"},
	} {
		if item.N > 0 {
			items = append(items, item)
		}
	}
	return items
}

// TestDetailViewModel is one line of a card's test list: a build/test job or
// a commit status.
type TestDetailViewModel struct {
	Name        string
	Outcome     string // passed, failed, pending, cancelled.
	Dot         string // CSS status dot: success, failure, pending, error.
	URL         string
	Description string // Shown for failed items without identified tests.
	FailedTests []string
	GistHTML    string // Sanitized HTML of the gist report, if any.
}

// HasFailedTests reports whether individual failed tests were identified.
func (t TestDetailViewModel) HasFailedTests() bool {
	return t.Outcome == "failed" && len(t.FailedTests) > 0
}
