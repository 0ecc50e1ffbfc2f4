package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/hangeul/internal/assessment"
)

const questionsSchemaURL = "schema://questions.json"

// questionsSchema describes the data field of the questions endpoint.
// Structural rules that need cross-field checks live in Question.Validate.
var questionsSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []any{"id", "text", "options", "correct_option_index"},
		"properties": map[string]any{
			"id":   map[string]any{"type": []any{"string", "integer"}},
			"text": map[string]any{"type": "string"},
			"kind": map[string]any{
				"type": "string",
				"enum": []any{"text", "image", "audio", "video", ""},
			},
			"media_refs": map[string]any{
				"type":     "array",
				"maxItems": assessment.MaxMediaRefs,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"url"},
					"properties": map[string]any{
						"url":  map[string]any{"type": "string", "minLength": 1},
						"type": map[string]any{"type": "string"},
					},
				},
			},
			"options": map[string]any{
				"type":     "array",
				"minItems": assessment.OptionCount,
				"maxItems": assessment.OptionCount,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"content"},
					"properties": map[string]any{
						"id":      map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
						"kind": map[string]any{
							"type": "string",
							"enum": []any{"text", "image", "audio", ""},
						},
					},
				},
			},
			"correct_option_index": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": assessment.OptionCount - 1,
			},
			"explanation": map[string]any{"type": "string"},
			"prompt_box": map[string]any{
				"type": []any{"object", "null"},
				"properties": map[string]any{
					"text":      map[string]any{"type": "string"},
					"media_url": map[string]any{"type": "string"},
					"placement": map[string]any{
						"type": "string",
						"enum": []any{"top", "middle", "bottom", ""},
					},
				},
			},
		},
	},
}

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func questionSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		// The compiler wants a decoded JSON value, not a Go literal.
		raw, err := json.Marshal(questionsSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(questionsSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(questionsSchemaURL)
	})
	return compiledSchema, compileErr
}

// wireQuestion accepts numeric IDs, which some backends emit.
type wireQuestion struct {
	assessment.Question
	ID json.RawMessage `json:"id"`
}

// DecodeQuestions validates a raw question list against the schema, decodes
// it, normalizes every question and checks structural rules. It returns
// either the full set or a *PayloadError.
func DecodeQuestions(op string, data json.RawMessage) ([]assessment.Question, error) {
	schema, err := questionSchema()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, &PayloadError{Op: op, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &PayloadError{Op: op, Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	var wire []wireQuestion
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &PayloadError{Op: op, Err: err}
	}

	questions := make([]assessment.Question, 0, len(wire))
	seen := make(map[string]bool, len(wire))
	for _, w := range wire {
		q := w.Question
		q.ID = decodeID(w.ID)
		q.Normalize()
		if err := q.Validate(); err != nil {
			return nil, &PayloadError{Op: op, Err: err}
		}
		if seen[q.ID] {
			return nil, &PayloadError{Op: op, Err: fmt.Errorf("duplicate question id %q", q.ID)}
		}
		seen[q.ID] = true
		questions = append(questions, q)
	}
	return questions, nil
}

func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
