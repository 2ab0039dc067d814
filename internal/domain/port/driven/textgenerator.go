package driven

import (
	"context"
	"encoding/json"
)

// GenerationRequest is a single-turn text generation call.
type GenerationRequest struct {
	// Prompt is sent as one user-role message.
	Prompt      string
	Temperature float32

	// Schema, when non-nil, asks backends that support it to constrain the
	// reply to this JSON schema. Backends without support ignore it.
	Schema     json.Marshaler
	SchemaName string
}

// TextGenerator defines the driven port for a generative-text backend.
type TextGenerator interface {
	// Generate returns the reply text. Multi-part replies are concatenated and
	// non-text parts are dropped.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
