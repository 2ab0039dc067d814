package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// SummarizeResponse is the JSON body of a successful summarize request.
type SummarizeResponse struct {
	Readme    string   `json:"readme"`
	Summary   string   `json:"summary"`
	CoolFacts []string `json:"coolFacts"`
}

// ValidateKeyRequest is the JSON body for the key validation endpoint.
type ValidateKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// ValidateKeyResponse is the JSON body returned by the key validation endpoint.
type ValidateKeyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toSummarizeResponse converts a domain RepoSummary to its JSON representation.
// CoolFacts is always an array, never null.
func toSummarizeResponse(s *model.RepoSummary) SummarizeResponse {
	facts := s.CoolFacts
	if facts == nil {
		facts = []string{}
	}

	return SummarizeResponse{
		Readme:    s.Readme,
		Summary:   s.Summary,
		CoolFacts: facts,
	}
}
