package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/repobrief/internal/adapter/driving/http"
	"github.com/ericfisherdev/repobrief/internal/application"
	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockKeyStore struct {
	keys map[string]bool
	err  error
}

func (m *mockKeyStore) Validate(_ context.Context, value string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.keys[value], nil
}

func (m *mockKeyStore) GetByValue(_ context.Context, value string) (*model.APIKey, error) {
	if m.keys[value] {
		return &model.APIKey{ID: 1, Name: "test", Value: value}, nil
	}
	return nil, driven.ErrKeyNotFound
}

type mockFetcher struct {
	mu     sync.Mutex
	calls  int
	readme model.EncodedReadme
	err    error
}

func (m *mockFetcher) FetchReadme(_ context.Context, _ model.RepoRef) (model.EncodedReadme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.readme, m.err
}

type mockGenerator struct {
	reply string
	err   error
}

func (m *mockGenerator) Generate(_ context.Context, _ driven.GenerationRequest) (string, error) {
	return m.reply, m.err
}

// --- Test helpers ---

const validKey = "test-key"

type testServer struct {
	mux     http.Handler
	keys    *mockKeyStore
	fetcher *mockFetcher
	gen     *mockGenerator
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	ts := &testServer{
		keys: &mockKeyStore{keys: map[string]bool{validKey: true}},
		fetcher: &mockFetcher{readme: model.EncodedReadme{
			Path:     "README.md",
			Encoding: "base64",
			Content:  "IyBIZWxsbw==",
		}},
		gen:  &mockGenerator{reply: `{"summary":"A greeting repo","coolFacts":["First GitHub repo"]}`},
		logs: logs,
	}

	prompts, err := application.NewPromptBuilder(application.PromptOptions{})
	require.NoError(t, err)
	summarizer, err := application.NewSummarizer(ts.gen, application.SummarizerOptions{Temperature: 0.3}, logger)
	require.NoError(t, err)
	pipeline := application.NewSummaryPipeline(ts.keys, ts.fetcher, prompts, summarizer, application.PipelineOptions{}, logger)

	ts.mux = httphandler.NewServeMux(httphandler.NewHandler(pipeline, ts.keys, logger), logger)
	return ts
}

func (ts *testServer) summarize(t *testing.T, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/github-summarizer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("apikey", apiKey)
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decodeJSON(t, rec, &body)
	msg, ok := body["error"].(string)
	require.True(t, ok, "response has no error field: %v", body)
	return msg
}

// --- Tests ---

func TestSummarize_Success(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.summarize(t, validKey, `{"url":"https://github.com/octocat/Hello-World"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, map[string]any{
		"readme":    "# Hello",
		"summary":   "A greeting repo",
		"coolFacts": []any{"First GitHub repo"},
	}, body)
}

func TestSummarize_EmptyCoolFactsIsArray(t *testing.T) {
	ts := newTestServer(t)
	ts.gen.reply = `{"summary":"s","coolFacts":[]}`

	rec := ts.summarize(t, validKey, `{"url":"https://github.com/octocat/Hello-World"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"coolFacts":[]`)
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		body       string
		setup      func(ts *testServer)
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing api key",
			body:       `{"url":"https://github.com/octocat/Hello-World"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  `API key required in header as "apikey"`,
		},
		{
			name:       "unknown api key",
			apiKey:     "nope",
			body:       `{"url":"https://github.com/octocat/Hello-World"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid API key",
		},
		{
			name:       "key store failure",
			apiKey:     validKey,
			body:       `{"url":"https://github.com/octocat/Hello-World"}`,
			setup:      func(ts *testServer) { ts.keys.err = errors.New("db down") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid API key",
		},
		{
			name:       "invalid json",
			apiKey:     validKey,
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid JSON body",
		},
		{
			name:       "trailing garbage after json",
			apiKey:     validKey,
			body:       `{"url":"https://github.com/octocat/Hello-World"} not json`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid JSON body",
		},
		{
			name:       "two json values",
			apiKey:     validKey,
			body:       `{"url":"https://github.com/octocat/Hello-World"}{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid JSON body",
		},
		{
			name:       "trailing whitespace allowed",
			apiKey:     validKey,
			body:       "{\"url\":\"https://gitlab.com/a/b\"}\n  \n",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid GitHub repository URL",
		},
		{
			name:       "null body",
			apiKey:     validKey,
			body:       `null`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid JSON body",
		},
		{
			name:       "missing url",
			apiKey:     validKey,
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  `Missing "url" in request body`,
		},
		{
			name:       "empty url",
			apiKey:     validKey,
			body:       `{"url":""}`,
			wantStatus: http.StatusBadRequest,
			wantError:  `Missing "url" in request body`,
		},
		{
			name:       "array body",
			apiKey:     validKey,
			body:       `["https://github.com/octocat/Hello-World"]`,
			wantStatus: http.StatusBadRequest,
			wantError:  `Missing "url" in request body`,
		},
		{
			name:       "non-string url",
			apiKey:     validKey,
			body:       `{"url":42}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid GitHub repository URL",
		},
		{
			name:       "not a github url",
			apiKey:     validKey,
			body:       `{"url":"https://gitlab.com/octocat/Hello-World"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid GitHub repository URL",
		},
		{
			name:   "upstream 404",
			apiKey: validKey,
			body:   `{"url":"https://github.com/octocat/missing"}`,
			setup: func(ts *testServer) {
				ts.fetcher.err = &driven.UpstreamError{StatusCode: http.StatusNotFound, Reason: "Not Found", Body: "Not Found"}
			},
			wantStatus: http.StatusNotFound,
			wantError:  "GitHub API error: Not Found",
		},
		{
			name:   "upstream 403",
			apiKey: validKey,
			body:   `{"url":"https://github.com/octocat/Hello-World"}`,
			setup: func(ts *testServer) {
				ts.fetcher.err = &driven.UpstreamError{StatusCode: http.StatusForbidden, Reason: "Forbidden", Body: "rate limited"}
			},
			wantStatus: http.StatusForbidden,
			wantError:  "GitHub API error: Forbidden",
		},
		{
			name:       "network failure",
			apiKey:     validKey,
			body:       `{"url":"https://github.com/octocat/Hello-World"}`,
			setup:      func(ts *testServer) { ts.fetcher.err = errors.New("dial tcp: i/o timeout") },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to fetch README from GitHub",
		},
		{
			name:   "readme content absent",
			apiKey: validKey,
			body:   `{"url":"https://github.com/octocat/Hello-World"}`,
			setup: func(ts *testServer) {
				ts.fetcher.readme = model.EncodedReadme{Path: "README.md"}
			},
			wantStatus: http.StatusNotFound,
			wantError:  "README.md not found in repository",
		},
		{
			name:   "undecodable readme",
			apiKey: validKey,
			body:   `{"url":"https://github.com/octocat/Hello-World"}`,
			setup: func(ts *testServer) {
				ts.fetcher.readme = model.EncodedReadme{Encoding: "base64", Content: "@@@"}
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to fetch README from GitHub",
		},
		{
			name:       "model failure",
			apiKey:     validKey,
			body:       `{"url":"https://github.com/octocat/Hello-World"}`,
			setup:      func(ts *testServer) { ts.gen.err = errors.New("503 from model") },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to fetch README from GitHub",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tc.setup != nil {
				tc.setup(ts)
			}

			rec := ts.summarize(t, tc.apiKey, tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantError, errorMessage(t, rec))
		})
	}
}

func TestSummarize_MissingKeyStopsBeforeFetch(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.summarize(t, "", `{"url":"https://github.com/octocat/Hello-World"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ts.fetcher.calls)
}

func TestSummarize_MalformedModelOutput(t *testing.T) {
	ts := newTestServer(t)
	ts.gen.reply = "not json"

	rec := ts.summarize(t, validKey, `{"url":"https://github.com/octocat/Hello-World"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch README from GitHub", errorMessage(t, rec))

	logs := ts.logs.String()
	assert.Contains(t, logs, `raw_output="not json"`)
	assert.Contains(t, logs, "kind=output_parse_failed")
	assert.NotContains(t, rec.Body.String(), "not json")
}

func TestSummarize_UpstreamBodyNotLeaked(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.err = &driven.UpstreamError{StatusCode: http.StatusBadGateway, Reason: "Bad Gateway", Body: "internal-trace-id-123"}

	rec := ts.summarize(t, validKey, `{"url":"https://github.com/octocat/Hello-World"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "internal-trace-id-123")
	assert.Contains(t, ts.logs.String(), "internal-trace-id-123")
}

func TestSummarize_RepeatedRequestsAreNotCached(t *testing.T) {
	ts := newTestServer(t)

	for range 2 {
		rec := ts.summarize(t, validKey, `{"url":"https://github.com/octocat/Hello-World"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2, ts.fetcher.calls)
}

func TestSummarize_WrongMethod(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/github-summarizer", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		storeErr   error
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "known key",
			body:       `{"apiKey":"test-key"}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"valid": true},
		},
		{
			name:       "unknown key",
			body:       `{"apiKey":"other"}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"valid": false},
		},
		{
			name:       "missing key",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"valid": false, "error": "API key required"},
		},
		{
			name:       "invalid json",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"valid": false, "error": "Invalid JSON body"},
		},
		{
			name:       "trailing garbage after json",
			body:       `{"apiKey":"test-key"} not json`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"valid": false, "error": "Invalid JSON body"},
		},
		{
			name:       "store failure",
			body:       `{"apiKey":"test-key"}`,
			storeErr:   errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"error": "internal server error"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.keys.err = tc.storeErr

			req := httptest.NewRequest(http.MethodPost, "/api/validate-key", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			ts.mux.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			var body map[string]any
			decodeJSON(t, rec, &body)
			assert.Equal(t, tc.wantBody, body)
		})
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}
