package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/util"
)

// Schema describes the JSON shape a structured call should produce
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Generation is the result of one model call. Object holds the extracted
// JSON value when a schema was requested and the reply contained valid JSON,
// and is nil otherwise. Callers must not assume its shape.
type Generation struct {
	Text   string
	Object json.RawMessage
}

// TextGenerator produces text or structured output from a single prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, schema *Schema) (*Generation, error)
}

// ChatModel continues a multi-turn conversation. onDelta, when non-nil,
// receives the reply incrementally.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, onDelta func(string)) (string, error)
}

// ModelGenerator binds a Client to one configured model
type ModelGenerator struct {
	client       *Client
	model        config.ModelConfig
	apiKey       string
	systemPrompt string
}

// NewModelGenerator creates a generator for a model. systemPrompt may be empty.
func NewModelGenerator(client *Client, model config.ModelConfig, apiKey, systemPrompt string) *ModelGenerator {
	return &ModelGenerator{
		client:       client,
		model:        model,
		apiKey:       apiKey,
		systemPrompt: systemPrompt,
	}
}

// Generate implements TextGenerator
func (g *ModelGenerator) Generate(ctx context.Context, prompt string, schema *Schema) (*Generation, error) {
	var format *ResponseFormat
	if schema != nil {
		switch g.model.StructuredOutput {
		case config.StructuredJSONSchema:
			format = &ResponseFormat{
				Type: "json_schema",
				JSONSchema: &JSONSchemaFormat{
					Name:        schema.Name,
					Description: schema.Description,
					Schema:      schema.Definition,
				},
			}
		case config.StructuredPrompt:
			prompt += schemaInstructions(schema)
		default:
			// json_object mode needs the schema spelled out in the prompt
			format = &ResponseFormat{Type: "json_object"}
			prompt += schemaInstructions(schema)
		}
	}

	messages := make([]Message, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: g.systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	resp, err := g.client.StructuredCompletion(ctx, g.model, g.apiKey, messages, format)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", g.model.ModelName, err)
	}

	text := util.StripThinkTags(resp.Choices[0].Message.Content)
	gen := &Generation{Text: text}

	if schema != nil && text != "" {
		raw := util.SanitizeJSON(util.ExtractJSON(text))
		if json.Valid([]byte(raw)) {
			gen.Object = json.RawMessage(raw)
		}
	}

	return gen, nil
}

// Chat implements ChatModel. The configured system prompt is not added;
// callers place their own system message first.
func (g *ModelGenerator) Chat(ctx context.Context, messages []Message, onDelta func(string)) (string, error) {
	var (
		resp *ChatCompletionResponse
		err  error
	)
	if onDelta != nil {
		resp, err = g.client.ChatCompletionStreaming(ctx, g.model, g.apiKey, messages, nil, onDelta)
	} else {
		resp, err = g.client.ChatCompletion(ctx, g.model, g.apiKey, messages)
	}
	if err != nil {
		return "", fmt.Errorf("model %s: %w", g.model.ModelName, err)
	}
	return util.StripThinkTags(resp.Choices[0].Message.Content), nil
}

func schemaInstructions(schema *Schema) string {
	def, err := json.MarshalIndent(schema.Definition, "", "  ")
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRespond with a single JSON value and nothing else. It must match this JSON Schema")
	if schema.Name != "" {
		b.WriteString(" (" + schema.Name + ")")
	}
	b.WriteString(":\n")
	b.Write(def)
	return b.String()
}
