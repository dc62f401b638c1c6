package explain

import (
	"context"
	"errors"

	"github.com/sells-group/saferoute/pkg/anthropic"
)

const systemPrompt = `You assess pedestrian route safety for people walking alone at night. ` +
	`Be concrete and practical. Do not invent infrastructure that is not listed.`

// AnthropicConfig configures the Anthropic-backed transport.
type AnthropicConfig struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
}

// AnthropicTransport implements Transport with the Anthropic Messages API.
type AnthropicTransport struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicTransport wraps client as a Transport.
func NewAnthropicTransport(client anthropic.Client, cfg AnthropicConfig) *AnthropicTransport {
	if cfg.Model == "" {
		cfg.Model = anthropic.DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	return &AnthropicTransport{client: client, cfg: cfg}
}

// Complete sends prompt as a single user message and returns the response text.
func (t *AnthropicTransport) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := t.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       t.cfg.Model,
		MaxTokens:   t.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: t.cfg.Temperature,
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return "", &TransportError{Err: err, StatusCode: apiErr.StatusCode, QuotaExhausted: apiErr.RateLimited()}
		}
		return "", &TransportError{Err: err}
	}

	resp.Usage.LogCost(t.cfg.Model, "explain")
	return resp.Text(), nil
}
