package application

import (
	"fmt"
	"unicode/utf8"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// truncationMarker is appended to README text cut to fit the prompt budget.
const truncationMarker = "\n\n[README truncated]"

const promptTemplate = `You are an expert at summarizing GitHub README files. Read the README below and provide:
1. A concise summary of what the project is about, as a single string.
2. A list of the coolest or most interesting facts about the project, as an array of strings.

%s

README:
"""
%s
"""`

// PromptOptions controls how README text is prepared for the prompt.
type PromptOptions struct {
	// MaxReadmeBytes caps the README text embedded in the prompt. Zero disables the cap.
	MaxReadmeBytes int
	// Compact strips markdown syntax and raw HTML before embedding.
	Compact bool
}

// Prompt is a built model-facing instruction.
type Prompt struct {
	Text string
	// ReadmeBytes is the size of the README text actually embedded.
	ReadmeBytes int
	Truncated   bool
}

// PromptBuilder builds summary prompts that embed the output format
// instructions derived from SummarySchema.
type PromptBuilder struct {
	instructions string
	opts         PromptOptions
}

// NewPromptBuilder creates a PromptBuilder. It fails only if the summary
// schema cannot be derived or rendered.
func NewPromptBuilder(opts PromptOptions) (*PromptBuilder, error) {
	schema, err := SummarySchema()
	if err != nil {
		return nil, err
	}

	instructions, err := FormatInstructions(schema)
	if err != nil {
		return nil, err
	}

	return &PromptBuilder{instructions: instructions, opts: opts}, nil
}

// Build embeds the README into the summary instruction.
func (b *PromptBuilder) Build(readme model.ReadmeContent) Prompt {
	text := readme.Raw
	if b.opts.Compact {
		text = CompactReadme(text)
	}

	text, truncated := truncateUTF8(text, b.opts.MaxReadmeBytes)
	size := len(text)
	if truncated {
		text += truncationMarker
	}

	return Prompt{
		Text:        fmt.Sprintf(promptTemplate, b.instructions, text),
		ReadmeBytes: size,
		Truncated:   truncated,
	}
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
// A limit of zero or less disables truncation.
func truncateUTF8(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut], true
}
