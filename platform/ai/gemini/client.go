// Package gemini provides a thin client over the Gemini API for single-shot
// structured JSON inference. This is part of the platform layer and contains
// no business logic.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatwidget_backend/platform/config"

	"google.golang.org/genai"
)

// Client wraps the genai SDK for JSON-mode completions. The qualification
// engine never streams; every call is one prompt pair in, one JSON object out.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// New creates a Gemini client from configuration.
func New(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	timeout := cfg.GetInferenceTimeout()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		client:  client,
		model:   cfg.GetGeminiModel(),
		timeout: timeout,
	}, nil
}

// GenerateJSON sends a system+user prompt pair with JSON response mode and
// returns the raw JSON text. Callers own unmarshalling and validation;
// a non-JSON or empty body is returned as an error so callers can apply
// their fallback decision.
func (c *Client) GenerateJSON(ctx context.Context, system, user string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := stripCodeFence(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("empty model response")
	}
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return nil, fmt.Errorf("non-JSON model response")
	}

	return []byte(text), nil
}

// stripCodeFence removes a markdown code fence the model sometimes emits
// despite JSON response mode.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
