// Package extract talks to the text-understanding service that turns free
// text into model.RawEventFields.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	appLog "addtocal/internal/log"
	"addtocal/internal/model"
)

// replySchemaJSON constrains the JSON object the model must return. title and
// date are not required here: an empty reply is reported as a missing field
// by the normalizer, not as a broken response.
const replySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "title":       {"type": ["string", "null"]},
    "date":        {"type": ["string", "null"]},
    "time":        {"type": ["string", "null"]},
    "endTime":     {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]},
    "location":    {"type": ["string", "null"]},
    "brief":       {"type": ["boolean", "null"]}
  }
}`

var replySchema = mustCompileSchema(replySchemaJSON, "event-reply.schema.json")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// responseSchema is sent with the request so the service constrains its own
// output (OpenAPI subset, upper-case types).
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"title":       map[string]any{"type": "STRING"},
		"date":        map[string]any{"type": "STRING", "description": "YYYY-MM-DD"},
		"time":        map[string]any{"type": "STRING", "description": "HH:mm or null", "nullable": true},
		"endTime":     map[string]any{"type": "STRING", "description": "HH:mm or null", "nullable": true},
		"description": map[string]any{"type": "STRING"},
		"location":    map[string]any{"type": "STRING"},
		"brief":       map[string]any{"type": "BOOLEAN"},
	},
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// maxReplyBytes caps how much of a response body is read.
const maxReplyBytes = 1 << 20

// Gemini is an extractor backed by the Gemini generateContent REST API.
type Gemini struct {
	client   *http.Client
	endpoint string
	model    string
	apiKey   string
	hints    []string
}

// GeminiOptions configures NewGemini.
type GeminiOptions struct {
	// Endpoint is the API base, e.g. "https://generativelanguage.googleapis.com/v1beta".
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
	// Hints are appended to the prompt as high-priority rules.
	Hints []string
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// NewGemini creates a Gemini extractor.
func NewGemini(opts GeminiOptions) *Gemini {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Gemini{
		client:   client,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		model:    opts.Model,
		apiKey:   opts.APIKey,
		hints:    opts.Hints,
	}
}

// Extract sends text to the service and decodes its reply. Every failure is
// wrapped in model.ErrExtractionFailed.
func (g *Gemini) Extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error) {
	raw, err := g.extract(ctx, text, ref)
	if err != nil {
		appLog.Error("extraction failed", err, "model", g.model)
		return model.RawEventFields{}, fmt.Errorf("%w: %v", model.ErrExtractionFailed, err)
	}
	appLog.Debug("extraction succeeded", "model", g.model, "title", raw.Title, "date", raw.Date)
	return raw, nil
}

func (g *Gemini) extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error) {
	if g.apiKey == "" {
		return model.RawEventFields{}, errors.New("no API key configured")
	}

	prompt, err := BuildPrompt(text, ref, g.hints)
	if err != nil {
		return model.RawEventFields{}, err
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		return model.RawEventFields{}, err
	}

	url := g.endpoint + "/models/" + g.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.RawEventFields{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return model.RawEventFields{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return model.RawEventFields{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return model.RawEventFields{}, fmt.Errorf("API request failed: %s", resp.Status)
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return model.RawEventFields{}, fmt.Errorf("decoding response envelope: %w", err)
	}
	if gr.PromptFeedback.BlockReason != "" {
		return model.RawEventFields{}, fmt.Errorf("request blocked: %s", gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return model.RawEventFields{}, errors.New("response has no candidates")
	}

	return DecodeReply(gr.Candidates[0].Content.Parts[0].Text)
}

// DecodeReply validates the model's JSON text against the reply schema and
// decodes it.
func DecodeReply(text string) (model.RawEventFields, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return model.RawEventFields{}, fmt.Errorf("reply is not JSON: %w", err)
	}
	if err := replySchema.Validate(doc); err != nil {
		return model.RawEventFields{}, fmt.Errorf("reply does not match schema: %w", err)
	}

	var raw model.RawEventFields
	if err := mapstructure.Decode(doc, &raw); err != nil {
		return model.RawEventFields{}, fmt.Errorf("decoding reply: %w", err)
	}
	return raw, nil
}
