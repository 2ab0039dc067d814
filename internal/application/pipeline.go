package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// Stage names one step of a summarize request, used in logs.
type Stage string

const (
	StageAuth      Stage = "auth"
	StageParseURL  Stage = "parse_url"
	StageFetch     Stage = "fetch"
	StageDecode    Stage = "decode"
	StageSummarize Stage = "summarize"
)

// PipelineOptions bounds the two I/O waits of a request.
type PipelineOptions struct {
	FetchTimeout time.Duration
	ModelTimeout time.Duration
}

// SummaryPipeline sequences authorization, URL parsing, README fetch, decode,
// prompt building and structured summarization for one request. Any stage
// failure is terminal: no partial results are returned. It holds no mutable
// state, so one instance serves concurrent requests.
type SummaryPipeline struct {
	keys       driven.KeyStore
	fetcher    driven.ReadmeFetcher
	prompts    *PromptBuilder
	summarizer *Summarizer
	opts       PipelineOptions
	logger     *slog.Logger
}

// NewSummaryPipeline creates a SummaryPipeline with all required collaborators.
func NewSummaryPipeline(
	keys driven.KeyStore,
	fetcher driven.ReadmeFetcher,
	prompts *PromptBuilder,
	summarizer *Summarizer,
	opts PipelineOptions,
	logger *slog.Logger,
) *SummaryPipeline {
	return &SummaryPipeline{
		keys:       keys,
		fetcher:    fetcher,
		prompts:    prompts,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
	}
}

// Authorize checks apiKey against the key store. It must succeed before
// Summarize is called. Key store errors are reported as KindInvalidAPIKey.
func (p *SummaryPipeline) Authorize(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return NewPipelineError(KindMissingAPIKey, "apikey header absent", nil)
	}

	valid, err := p.keys.Validate(ctx, apiKey)
	if err != nil {
		p.logger.Error("api key lookup failed", "stage", StageAuth, "error", err)
		return NewPipelineError(KindInvalidAPIKey, "key store lookup failed", err)
	}
	if !valid {
		return NewPipelineError(KindInvalidAPIKey, "unknown api key", nil)
	}

	return nil
}

// Summarize runs the README-to-summary stages for rawURL. Failures are
// returned as *PipelineError.
func (p *SummaryPipeline) Summarize(ctx context.Context, rawURL string) (*model.RepoSummary, error) {
	if rawURL == "" {
		return nil, NewPipelineError(KindMissingURL, "url absent from request body", nil)
	}

	ref, ok := ParseRepoURL(rawURL)
	if !ok {
		return nil, p.fail(StageParseURL, model.RepoRef{},
			NewPipelineError(KindInvalidRepoURL, fmt.Sprintf("no github.com/<owner>/<repo> in %q", rawURL), nil))
	}

	encoded, err := p.fetch(ctx, ref)
	if err != nil {
		return nil, p.fail(StageFetch, ref, err)
	}

	if encoded.Content == "" {
		return nil, p.fail(StageFetch, ref,
			NewPipelineError(KindContentNotFound, "readme envelope has no content", nil))
	}

	readme, err := decodeReadme(encoded)
	if err != nil {
		return nil, p.fail(StageDecode, ref,
			NewPipelineError(KindUpstreamFetchFailed, "readme payload could not be decoded", err))
	}

	prompt := p.prompts.Build(readme)
	if prompt.Truncated {
		p.logger.Warn("readme truncated for prompt",
			"repo", ref.FullName(),
			"readme_bytes", len(readme.Raw),
			"prompt_readme_bytes", prompt.ReadmeBytes,
		)
	}

	summary, err := p.summarize(ctx, prompt.Text)
	if err != nil {
		return nil, p.fail(StageSummarize, ref, err)
	}

	return &model.RepoSummary{
		Repo:      ref,
		Readme:    readme.Raw,
		Summary:   summary.Summary,
		CoolFacts: summary.CoolFacts,
	}, nil
}

// fetch performs the single upstream README call under the fetch deadline.
func (p *SummaryPipeline) fetch(ctx context.Context, ref model.RepoRef) (model.EncodedReadme, error) {
	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}

	encoded, err := p.fetcher.FetchReadme(ctx, ref)
	if err == nil {
		return encoded, nil
	}

	var upErr *driven.UpstreamError
	if errors.As(err, &upErr) {
		return model.EncodedReadme{}, &PipelineError{
			Kind:           KindUpstreamFetchFailed,
			Detail:         "upstream returned non-success status",
			UpstreamStatus: upErr.StatusCode,
			UpstreamReason: upErr.Reason,
			Err:            err,
		}
	}

	detail := "upstream request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "upstream request exceeded deadline"
	}
	return model.EncodedReadme{}, NewPipelineError(KindUpstreamFetchFailed, detail, err)
}

// summarize runs the structured summarizer under the model deadline.
func (p *SummaryPipeline) summarize(ctx context.Context, prompt string) (model.Summary, error) {
	if p.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ModelTimeout)
		defer cancel()
	}

	return p.summarizer.Summarize(ctx, prompt)
}

// fail logs the diagnostic detail of a stage failure and returns err unchanged.
func (p *SummaryPipeline) fail(stage Stage, ref model.RepoRef, err error) error {
	attrs := []any{"stage", stage, "error", err}
	if ref.Owner != "" {
		attrs = append(attrs, "owner", ref.Owner, "repo", ref.Repo)
	}

	var perr *PipelineError
	if errors.As(err, &perr) {
		attrs = append(attrs, "kind", perr.Kind)
		if perr.UpstreamStatus != 0 {
			attrs = append(attrs, "upstream_status", perr.UpstreamStatus)
		}
		var upErr *driven.UpstreamError
		if errors.As(perr.Err, &upErr) && upErr.Body != "" {
			attrs = append(attrs, "upstream_body", upErr.Body)
		}
	}

	p.logger.Error("summarize pipeline failed", attrs...)
	return err
}
