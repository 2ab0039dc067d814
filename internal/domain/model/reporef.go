package model

// RepoRef identifies a GitHub repository by owner and name.
type RepoRef struct {
	Owner string
	Repo  string
}

// FullName returns the "owner/repo" form.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Repo
}
