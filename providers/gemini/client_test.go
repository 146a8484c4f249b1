package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/finchkit/finch/core"
)

type roundTrip func(*http.Request) (*http.Response, error)

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req)
}

func textTransport(text string, capture **generateRequest) roundTrip {
	return func(req *http.Request) (*http.Response, error) {
		if capture != nil {
			var payload generateRequest
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return nil, err
			}
			*capture = &payload
		}
		resp := generateResponse{Candidates: []candidate{{Content: content{Parts: []part{{Text: text}}}}}}
		buf, _ := json.Marshal(resp)
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewReader(buf)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}
}

func TestGenerateText(t *testing.T) {
	var captured *generateRequest
	client := New(
		WithAPIKey("key"),
		WithModel("gemini-2.0-flash"),
		WithHTTPClient(&http.Client{Transport: textTransport("Hello!", &captured)}),
	)

	res, err := client.GenerateText(context.Background(), core.GenerateRequest{
		System: "Be friendly.",
		Prompt: "say hello",
	})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if res.Text != "Hello!" || res.Provider != "gemini" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "Be friendly." {
		t.Fatalf("system instruction not sent: %+v", captured)
	}
	if captured.GenerationConfig.ResponseMIMEType != "" {
		t.Fatal("text generation must not force a JSON MIME type")
	}
}

func TestGenerateObjectForcesJSON(t *testing.T) {
	var captured *generateRequest
	client := New(
		WithAPIKey("key"),
		WithHTTPClient(&http.Client{Transport: textTransport(` {"ok": true} `, &captured)}),
	)

	res, err := client.GenerateObject(context.Background(), core.GenerateRequest{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("GenerateObject: %v", err)
	}
	if string(res.JSON) != `{"ok":true}` {
		t.Fatalf("JSON not compacted: %s", res.JSON)
	}
	if captured.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Fatalf("expected JSON MIME type, got %q", captured.GenerationConfig.ResponseMIMEType)
	}
}

func TestGenerateObjectRejectsNonJSON(t *testing.T) {
	client := New(
		WithAPIKey("key"),
		WithHTTPClient(&http.Client{Transport: textTransport("sorry, I cannot", nil)}),
	)
	_, err := client.GenerateObject(context.Background(), core.GenerateRequest{Prompt: "analyze"})
	if !core.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestUpstreamErrorSurfaces(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 429,
			Status:     "429 Too Many Requests",
			Body:       io.NopCloser(bytes.NewBufferString(`{"error":"quota"}`)),
		}, nil
	})
	client := New(WithAPIKey("key"), WithHTTPClient(&http.Client{Transport: transport}))
	_, err := client.GenerateText(context.Background(), core.GenerateRequest{Prompt: "hi"})
	if !core.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRequestModelOverridesDefault(t *testing.T) {
	var gotPath string
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return textTransport("ok", nil)(req)
	})
	client := New(WithAPIKey("key"), WithHTTPClient(&http.Client{Transport: transport}))
	if _, err := client.GenerateText(context.Background(), core.GenerateRequest{
		Model:  "gemini-2.0-flash-lite",
		Prompt: "hi",
	}); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash-lite:generateContent" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}
