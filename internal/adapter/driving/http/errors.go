package httphandler

import (
	"errors"
	"net/http"

	"github.com/ericfisherdev/repobrief/internal/application"
)

const genericFailureMessage = "Failed to fetch README from GitHub"

// errorResponseFor maps a pipeline failure to the HTTP status and message sent
// to the caller. Model and parse failures share the generic fetch-failure
// response; the precise kind is only logged.
func errorResponseFor(err error) (int, string) {
	var perr *application.PipelineError
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, genericFailureMessage
	}

	switch perr.Kind {
	case application.KindMissingAPIKey:
		return http.StatusBadRequest, `API key required in header as "apikey"`
	case application.KindInvalidAPIKey:
		return http.StatusUnauthorized, "Invalid API key"
	case application.KindInvalidRequestBody:
		return http.StatusBadRequest, "Invalid JSON body"
	case application.KindMissingURL:
		return http.StatusBadRequest, `Missing "url" in request body`
	case application.KindInvalidRepoURL:
		return http.StatusBadRequest, "Invalid GitHub repository URL"
	case application.KindUpstreamFetchFailed:
		if perr.UpstreamStatus >= 400 && perr.UpstreamStatus <= 599 {
			reason := perr.UpstreamReason
			if reason == "" {
				reason = http.StatusText(perr.UpstreamStatus)
			}
			return perr.UpstreamStatus, "GitHub API error: " + reason
		}
		return http.StatusInternalServerError, genericFailureMessage
	case application.KindContentNotFound:
		return http.StatusNotFound, "README.md not found in repository"
	default:
		return http.StatusInternalServerError, genericFailureMessage
	}
}
