// Package gemini provides the Generative Language API client used for
// semantic safety analysis, intent classification, and response generation.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/internal/httpclient"
	"github.com/finchkit/finch/obs"
)

// Client implements core.Provider.
type Client struct {
	opts       options
	httpClient *http.Client
}

func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.New(httpclient.WithTimeout(o.timeout))
	}
	return &Client{opts: o, httpClient: o.httpClient}
}

func (c *Client) GenerateText(ctx context.Context, req core.GenerateRequest) (_ *core.TextResult, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.gemini.GenerateText",
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.operation", "generateContent"),
	)
	defer func() { recorder.End(err) }()

	model := chooseModel(req.Model, c.opts.model)
	recorder.AddAttributes(attribute.String("ai.model", model))

	start := time.Now()
	resp, err := c.doRequest(ctx, model, buildPayload(req, false))
	if err != nil {
		return nil, err
	}
	text := resp.JoinText()
	if text == "" {
		return nil, core.NewError(core.ErrProviderError, "gemini: empty response")
	}
	return &core.TextResult{
		Text:      text,
		Model:     model,
		Provider:  "gemini",
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

func (c *Client) GenerateObject(ctx context.Context, req core.GenerateRequest) (_ *core.ObjectResultRaw, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.gemini.GenerateObject",
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.operation", "generateContent"),
	)
	defer func() { recorder.End(err) }()

	model := chooseModel(req.Model, c.opts.model)
	recorder.AddAttributes(attribute.String("ai.model", model))

	resp, err := c.doRequest(ctx, model, buildPayload(req, true))
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.JoinText())
	if text == "" {
		return nil, core.NewError(core.ErrProviderError, "gemini: empty structured response")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return nil, core.NewError(core.ErrProviderError,
			"gemini: structured output is not valid json", core.WithWrapped(err))
	}
	return &core.ObjectResultRaw{
		JSON:     compact.Bytes(),
		Model:    model,
		Provider: "gemini",
	}, nil
}

func (c *Client) Capabilities() core.Capabilities {
	return core.Capabilities{
		StrictJSON: true,
		Safety:     true,
		Provider:   "gemini",
		Models:     []string{"gemini-2.0-flash", "gemini-2.0-flash-lite"},
	}
}

func buildPayload(req core.GenerateRequest, strictJSON bool) *generateRequest {
	payload := &generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	config := &generationConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if strictJSON {
		config.ResponseMIMEType = "application/json"
	}
	payload.GenerationConfig = config
	return payload
}

func (c *Client) doRequest(ctx context.Context, model string, payload *generateRequest) (*generateResponse, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, err
	}
	fullURL := strings.TrimRight(c.opts.baseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent"
	if c.opts.apiKey != "" {
		fullURL += "?key=" + url.QueryEscape(c.opts.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewError(core.ErrProviderError, "gemini request failed", core.WithWrapped(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewError(core.ErrProviderError,
			fmt.Sprintf("gemini: %s: %s", resp.Status, data))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, core.NewError(core.ErrProviderError, "decode gemini response", core.WithWrapped(err))
	}
	return &parsed, nil
}

func chooseModel(requested, configured string) string {
	if requested != "" {
		return requested
	}
	return configured
}
