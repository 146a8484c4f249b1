package core

import "context"

// Provider is the contract the core requires from any generative responder.
// It exposes text generation and strict-JSON structured output while staying
// provider-agnostic. Implementations must distinguish "unavailable" (typed
// error) from a successful response.
type Provider interface {
	GenerateText(ctx context.Context, req GenerateRequest) (*TextResult, error)
	GenerateObject(ctx context.Context, req GenerateRequest) (*ObjectResultRaw, error)
	Capabilities() Capabilities
}

// GenerateRequest is a single generation request.
type GenerateRequest struct {
	Model       string         `json:"model,omitempty"`
	System      string         `json:"system,omitempty"`
	Prompt      string         `json:"prompt"`
	Temperature float32        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TextResult is a non-streaming generation response.
type TextResult struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// ObjectResultRaw contains structured JSON output as raw bytes.
type ObjectResultRaw struct {
	JSON     []byte `json:"json"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// Capabilities describes the features supported by a provider.
type Capabilities struct {
	StrictJSON bool
	Images     bool
	Safety     bool

	MaxInputTokens  int
	MaxOutputTokens int

	Provider string
	Models   []string
}

// Classifier is the uniform capability wrapping one safety-signal source.
// Callers never branch on the concrete classifier type. Provider-backed
// implementations signal unavailability with a classifier_unavailable error
// instead of silently returning safe.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, payload string, ec EvalContext) (Verdict, error)
}
