package model

// Target is one configured repository/branch pair to watch.
type Target struct {
	Owner   string
	Repo    string
	Branch  string
	Enabled bool
}

// FullName returns the "owner/repo" form of the target.
func (t Target) FullName() string {
	return t.Owner + "/" + t.Repo
}
