package driven

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// UpstreamError reports a non-success HTTP response from an upstream API.
// Body is kept for server-side logging only and must not be echoed to callers.
type UpstreamError struct {
	StatusCode int
	Reason     string
	Body       string
}

// Error returns the error message.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, e.Reason)
}

// ReadmeFetcher defines the driven port for retrieving a repository README
// from the upstream content API.
type ReadmeFetcher interface {
	// FetchReadme performs exactly one upstream request for the repository's
	// README. A non-success response is returned as *UpstreamError. A success
	// response without a content field yields an EncodedReadme with empty Content.
	FetchReadme(ctx context.Context, ref model.RepoRef) (model.EncodedReadme, error)
}
