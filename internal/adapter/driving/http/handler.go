// Package httphandler is the HTTP driving adapter exposing the summarizer API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/repobrief/internal/application"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// maxBodyBytes caps request bodies; a summarize request carries a single URL.
const maxBodyBytes = 1 << 20

// apiKeyHeader carries the caller's API key on summarize requests.
const apiKeyHeader = "apikey"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	pipeline *application.SummaryPipeline
	keys     driven.KeyStore
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(pipeline *application.SummaryPipeline, keys driven.KeyStore, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		keys:     keys,
		logger:   logger,
	}
}

// RegisterAPIRoutes registers the JSON API routes on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/github-summarizer", h.Summarize)
	mux.HandleFunc("POST /api/validate-key", h.ValidateKey)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request id, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Summarize authorizes the caller, then fetches and summarizes the README of
// the repository named by the body's "url" field.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pipeline.Authorize(ctx, r.Header.Get(apiKeyHeader)); err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	rawURL, err := readRepoURL(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	result, err := h.pipeline.Summarize(ctx, rawURL)
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummarizeResponse(result))
}

// ValidateKey reports whether the apiKey in the body is a known key.
func (h *Handler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	var req ValidateKeyRequest
	if err := decodeBody(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidateKeyResponse{Error: "Invalid JSON body"})
		return
	}

	if req.APIKey == "" {
		writeJSON(w, http.StatusBadRequest, ValidateKeyResponse{Error: "API key required"})
		return
	}

	valid, err := h.keys.Validate(r.Context(), req.APIKey)
	if err != nil {
		h.logger.Error("failed to validate api key",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ValidateKeyResponse{Valid: valid})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writePipelineError maps err to the caller-facing status and message.
// Diagnostic detail has already been logged by the pipeline.
func (h *Handler) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorResponseFor(err)

	var perr *application.PipelineError
	if errors.As(err, &perr) {
		h.logger.Info("summarize request rejected",
			"request_id", RequestIDFromContext(r.Context()),
			"kind", perr.Kind,
			"status", status,
		)
	} else {
		h.logger.Error("summarize request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}

	writeError(w, status, message)
}

// errTrailingData reports bytes after the first JSON value of a request body.
var errTrailingData = errors.New("unexpected data after JSON value")

// decodeBody decodes exactly one JSON value from body into v. Anything but
// whitespace after that value is rejected.
func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// readRepoURL extracts the "url" field from a summarize request body.
// Absent, null or empty values are MissingURL; non-string values are InvalidRepoURL.
func readRepoURL(body io.Reader) (string, error) {
	var payload any
	if err := decodeBody(body, &payload); err != nil {
		return "", application.NewPipelineError(application.KindInvalidRequestBody, "request body is not JSON", err)
	}
	if payload == nil {
		return "", application.NewPipelineError(application.KindInvalidRequestBody, "request body is null", nil)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return "", application.NewPipelineError(application.KindMissingURL, "request body is not an object", nil)
	}

	switch v := obj["url"].(type) {
	case nil:
		return "", application.NewPipelineError(application.KindMissingURL, "url absent from request body", nil)
	case string:
		if v == "" {
			return "", application.NewPipelineError(application.KindMissingURL, "url is empty", nil)
		}
		return v, nil
	case bool:
		if !v {
			return "", application.NewPipelineError(application.KindMissingURL, "url is false", nil)
		}
	case float64:
		if v == 0 {
			return "", application.NewPipelineError(application.KindMissingURL, "url is zero", nil)
		}
	}

	return "", application.NewPipelineError(application.KindInvalidRepoURL, "url is not a string", nil)
}
