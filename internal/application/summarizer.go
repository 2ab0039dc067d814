package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// ParseOutcome tags the result of validating model output.
type ParseOutcome int

const (
	ParseOutcomeParsed ParseOutcome = iota
	ParseOutcomeMalformed
)

// ParseResult is either Parsed(Summary) or Malformed(Raw). Reason explains
// a Malformed outcome.
type ParseResult struct {
	Outcome ParseOutcome
	Summary model.Summary
	Raw     string
	Reason  error
}

// SummarizerOptions tunes the generation call.
type SummarizerOptions struct {
	Temperature float32
	// StrictSchema forwards the summary schema to the backend as a
	// response-format constraint in addition to the prompt instructions.
	StrictSchema bool
}

// Summarizer invokes the text generator and validates its reply against
// SummarySchema. It never returns a partially populated summary.
type Summarizer struct {
	gen    driven.TextGenerator
	schema *jsonschema.Definition
	opts   SummarizerOptions
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer backed by gen.
func NewSummarizer(gen driven.TextGenerator, opts SummarizerOptions, logger *slog.Logger) (*Summarizer, error) {
	schema, err := SummarySchema()
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		gen:    gen,
		schema: schema,
		opts:   opts,
		logger: logger,
	}, nil
}

// Summarize sends prompt to the generator and parses the reply. Failures are
// *PipelineError with KindModelInvocationFailed or KindOutputParseFailed.
func (s *Summarizer) Summarize(ctx context.Context, prompt string) (model.Summary, error) {
	req := driven.GenerationRequest{
		Prompt:      prompt,
		Temperature: s.opts.Temperature,
	}
	if s.opts.StrictSchema {
		req.Schema = s.schema
		req.SchemaName = summarySchemaName
	}

	raw, err := s.gen.Generate(ctx, req)
	if err != nil {
		detail := "generation call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "generation call exceeded deadline"
		}
		return model.Summary{}, NewPipelineError(KindModelInvocationFailed, detail, err)
	}

	result := s.Parse(raw)
	if result.Outcome == ParseOutcomeMalformed {
		s.logger.Warn("model output failed schema validation",
			"reason", result.Reason,
			"raw_output", result.Raw,
		)
		return model.Summary{}, NewPipelineError(KindOutputParseFailed, "model output does not match summary schema", result.Reason)
	}

	return result.Summary, nil
}

// Parse validates raw model text against SummarySchema. Invalid JSON, missing
// required fields, and wrongly typed fields all yield ParseOutcomeMalformed.
func (s *Summarizer) Parse(raw string) ParseResult {
	content := stripCodeFences(raw)
	if content == "" {
		return ParseResult{Outcome: ParseOutcomeMalformed, Raw: raw, Reason: errors.New("empty output")}
	}

	var out model.Summary
	if err := jsonschema.VerifySchemaAndUnmarshal(*s.schema, []byte(content), &out); err != nil {
		return ParseResult{Outcome: ParseOutcomeMalformed, Raw: raw, Reason: err}
	}

	if out.CoolFacts == nil {
		out.CoolFacts = []string{}
	}

	return ParseResult{Outcome: ParseOutcomeParsed, Summary: out, Raw: raw}
}

// stripCodeFences removes markdown code fences that some models wrap around JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (```json or ```)
		if i := strings.Index(s, "\n"); i != -1 {
			s = s[i+1:]
		}
		// Remove closing fence
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
