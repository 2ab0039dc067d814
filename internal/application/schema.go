package application

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// summarySchemaName is the schema identifier sent to backends that accept a
// named response schema.
const summarySchemaName = "readme_summary"

// summarySchema is derived once from the model.Summary struct tags. The prompt
// instructions and the output validator both read it, so they cannot drift.
var summarySchema = sync.OnceValues(func() (*jsonschema.Definition, error) {
	return jsonschema.GenerateSchemaForType(model.Summary{})
})

// SummarySchema returns the JSON schema every successful model reply must satisfy.
func SummarySchema() (*jsonschema.Definition, error) {
	schema, err := summarySchema()
	if err != nil {
		return nil, fmt.Errorf("generate summary schema: %w", err)
	}
	return schema, nil
}

// FormatInstructions renders the schema as model-facing output instructions.
func FormatInstructions(schema *jsonschema.Definition) (string, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal summary schema: %w", err)
	}

	return fmt.Sprintf(formatInstructionsTemplate, string(data)), nil
}

const formatInstructionsTemplate = `Respond with a single JSON object that conforms to the JSON Schema below. Do not add any text before or after the object.

For example, for the schema {"type":"object","properties":{"foo":{"type":"array","items":{"type":"string"}}},"required":["foo"]} the object {"foo":["bar","baz"]} is valid, while {"properties":{"foo":["bar","baz"]}} is not.

Schema:
%s`
