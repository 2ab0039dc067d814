package application

import "fmt"

// ErrorKind classifies a failed summarize request. Kinds are listed in the
// order of the stage that detects them; exactly one is produced per failure.
type ErrorKind string

const (
	KindMissingAPIKey         ErrorKind = "missing_api_key"
	KindInvalidAPIKey         ErrorKind = "invalid_api_key"
	KindInvalidRequestBody    ErrorKind = "invalid_request_body"
	KindMissingURL            ErrorKind = "missing_url"
	KindInvalidRepoURL        ErrorKind = "invalid_repo_url"
	KindUpstreamFetchFailed   ErrorKind = "upstream_fetch_failed"
	KindContentNotFound       ErrorKind = "content_not_found"
	KindModelInvocationFailed ErrorKind = "model_invocation_failed"
	KindOutputParseFailed     ErrorKind = "output_parse_failed"
)

// PipelineError is the terminal failure of a summarize request. Detail and
// Err are diagnostic and stay server-side; the driving adapter maps Kind (and
// UpstreamStatus) to the caller-facing response.
type PipelineError struct {
	Kind   ErrorKind
	Detail string

	// UpstreamStatus and UpstreamReason are set only for
	// KindUpstreamFetchFailed when the upstream answered with a non-success status.
	UpstreamStatus int
	UpstreamReason string

	Err error
}

// NewPipelineError creates a PipelineError of the given kind.
func NewPipelineError(kind ErrorKind, detail string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Detail: detail, Err: err}
}

// Error returns the error message.
func (e *PipelineError) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *PipelineError) Unwrap() error {
	return e.Err
}
