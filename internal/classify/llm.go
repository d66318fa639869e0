package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/llm"
)

const resultSchema = `{
  "type": "object",
  "required": ["reason_type", "reason_text"],
  "properties": {
    "reason_type": {"type": "string", "minLength": 1},
    "reason_text": {"type": "string"}
  }
}`

const systemPrompt = "You are an expert business analyst specializing in requirement evolution."

// LLMClassifier asks a chat model for the primary reason behind a change.
type LLMClassifier struct {
	client      llm.Completer
	catalog     *catalog.Catalog
	temperature float64
	schema      *gojsonschema.Schema
}

// NewLLMClassifier builds a classifier over client. A nil catalog uses the default.
func NewLLMClassifier(client llm.Completer, cat *catalog.Catalog, temperature float64) (*LLMClassifier, error) {
	if cat == nil {
		cat = catalog.Default()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling result schema: %w", err)
	}
	return &LLMClassifier{
		client:      client,
		catalog:     cat,
		temperature: temperature,
		schema:      schema,
	}, nil
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	temp := c.temperature
	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: c.Prompt(req)},
		},
		Temperature: &temp,
		JSONMode:    true,
	})
	if err != nil {
		return Result{}, err
	}
	return c.parse(resp.Content)
}

// Prompt renders the user message for req.
func (c *LLMClassifier) Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze the changes between these two requirement document versions.\n\n")
	fmt.Fprintf(&b, "Old Version:\n%s\n\n", req.OldText)
	fmt.Fprintf(&b, "New Version:\n%s\n\n", req.NewText)
	fmt.Fprintf(&b, "Diff:\n%s\n\n", req.DiffText)
	b.WriteString("Identify the PRIMARY reason for this change. If several distinct edits are shown, ")
	b.WriteString("report the dominant or most critical one.\n\n")
	b.WriteString("Possible reason types:\n")
	b.WriteString(c.catalog.PromptList())
	b.WriteString("\n\n")
	if req.Directive != "" {
		b.WriteString(req.Directive)
		b.WriteString("\n\n")
	}
	b.WriteString(`Respond with a single JSON object: {"reason_type": "<one of the reason types>", "reason_text": "<short explanation>"}`)
	return b.String()
}

var errNoJSON = errors.New("model reply contains no JSON object")

func (c *LLMClassifier) parse(content string) (Result, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return Result{}, errNoJSON
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Result{}, fmt.Errorf("decoding model reply: %w", err)
	}

	verdict, err := c.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Result{}, fmt.Errorf("validating model reply: %w", err)
	}
	if !verdict.Valid() {
		msgs := make([]string, 0, len(verdict.Errors()))
		for _, e := range verdict.Errors() {
			msgs = append(msgs, e.String())
		}
		return Result{}, fmt.Errorf("model reply does not match schema: %s", strings.Join(msgs, "; "))
	}

	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return Result{}, fmt.Errorf("decoding model reply: %w", err)
	}
	return res, nil
}
