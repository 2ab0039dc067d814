package application

import (
	"regexp"
	"strings"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// repoURLPattern captures the first two path segments after github.com. The
// scheme, a www. prefix, and any trailing segments (e.g. /tree/main) are
// irrelevant to the match.
var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)(?:/|$)`)

// ParseRepoURL extracts the owner and repository name from a GitHub
// repository URL. A trailing ".git" suffix is stripped first. It reports
// false when the URL does not contain a github.com/<owner>/<repo> path.
func ParseRepoURL(rawURL string) (model.RepoRef, bool) {
	clean := strings.TrimSuffix(rawURL, ".git")

	m := repoURLPattern.FindStringSubmatch(clean)
	if m == nil {
		return model.RepoRef{}, false
	}

	return model.RepoRef{Owner: m[1], Repo: m[2]}, true
}
