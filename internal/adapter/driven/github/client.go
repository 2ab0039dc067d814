// Package github implements the ReadmeFetcher port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// DefaultBaseURL is the public GitHub REST API root.
const DefaultBaseURL = "https://api.github.com/"

// Compile-time interface satisfaction check.
var _ driven.ReadmeFetcher = (*ReadmeClient)(nil)

// ReadmeClient implements the driven.ReadmeFetcher port using the go-github library.
// It performs exactly one request per FetchReadme call and keeps no response cache.
type ReadmeClient struct {
	gh *gh.Client
}

// NewReadmeClient creates a GitHub README client with the following transport stack:
//  1. oauth2 (bearer token, only when token is non-empty)
//  2. go-github-ratelimit (rate limit detection in no-sleep mode: a limited
//     response is returned as-is and never retried)
//  3. go-github (GitHub REST API client)
//
// A secondary rate limit therefore surfaces as a 403/429 *driven.UpstreamError
// after exactly one upstream call. An empty baseURL selects DefaultBaseURL.
func NewReadmeClient(token, baseURL string) (*ReadmeClient, error) {
	var base http.RoundTripper = http.DefaultTransport
	if token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
	}

	limited := github_ratelimit.NewClient(base, github_secondary_ratelimit.WithNoSleep(nil))
	return NewReadmeClientWithHTTPClient(limited, baseURL)
}

// NewReadmeClientWithHTTPClient creates a ReadmeClient with a custom http.Client and base URL.
// Tests use it to point the client at an httptest server.
func NewReadmeClientWithHTTPClient(httpClient *http.Client, baseURL string) (*ReadmeClient, error) {
	client := gh.NewClient(httpClient)

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// go-github requires a trailing slash on BaseURL.
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &ReadmeClient{gh: client}, nil
}

// FetchReadme retrieves the README envelope for ref from GET /repos/{owner}/{repo}/readme.
// The base64 payload is returned undecoded. A non-2xx answer is reported as
// *driven.UpstreamError; transport failures are wrapped as-is.
func (c *ReadmeClient) FetchReadme(ctx context.Context, ref model.RepoRef) (model.EncodedReadme, error) {
	content, resp, err := c.gh.Repositories.GetReadme(ctx, ref.Owner, ref.Repo, nil)
	logRateLimit(resp, ref.FullName())

	if err != nil {
		if upErr := upstreamError(resp, err); upErr != nil {
			return model.EncodedReadme{}, upErr
		}
		return model.EncodedReadme{}, fmt.Errorf("fetching readme for %s: %w", ref.FullName(), err)
	}

	if content == nil {
		return model.EncodedReadme{}, nil
	}

	encoded := model.EncodedReadme{
		Path:     content.GetPath(),
		Encoding: content.GetEncoding(),
	}
	// Content is read directly: RepositoryContent.GetContent decodes it.
	if content.Content != nil {
		encoded.Content = *content.Content
	}

	return encoded, nil
}

// upstreamError converts an HTTP-level failure into *driven.UpstreamError.
// It returns nil when no failing status is available (network errors,
// cancellation, or an undecodable 2xx body).
func upstreamError(resp *gh.Response, err error) *driven.UpstreamError {
	if resp == nil || resp.Response == nil {
		return nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	upErr := &driven.UpstreamError{
		StatusCode: resp.StatusCode,
		Reason:     http.StatusText(resp.StatusCode),
	}

	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) {
		upErr.Body = errResp.Message
	} else {
		upErr.Body = err.Error()
	}

	return upErr
}

func logRateLimit(resp *gh.Response, repo string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", "readme",
		"repo", repo,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 10 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
