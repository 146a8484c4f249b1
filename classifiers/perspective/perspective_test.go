package perspective

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

func scoreTransport(scores map[string]float64) roundTrip {
	return func(req *http.Request) (*http.Response, error) {
		attrs := make(map[string]attributeScore, len(scores))
		for name, value := range scores {
			attrs[name] = attributeScore{SummaryScore: summaryScore{Value: value}}
		}
		buf, _ := json.Marshal(analyzeResponse{AttributeScores: attrs})
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewReader(buf)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}
}

func newClassifier(t *testing.T, transport roundTrip) *Classifier {
	t.Helper()
	c, err := New(
		WithAPIKey("key"),
		WithHTTPClient(&http.Client{Transport: transport}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLowScoresAreSafe(t *testing.T) {
	c := newClassifier(t, scoreTransport(map[string]float64{"TOXICITY": 0.1, "THREAT": 0.05}))
	v, err := c.Classify(context.Background(), "dinosaurs are cool",
		core.EvalContext{Profile: core.ChildProfile{Age: 7, Band: core.BandMiddleChildhood}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelSafe {
		t.Fatalf("got %s (%s)", v.Label, v.Reason)
	}
}

func TestWorstAttributeWins(t *testing.T) {
	c := newClassifier(t, scoreTransport(map[string]float64{"TOXICITY": 0.5, "THREAT": 0.92}))
	v, err := c.Classify(context.Background(), "threatening message",
		core.EvalContext{Profile: core.ChildProfile{Age: 10, Band: core.BandLateChildhood}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelUnsafe || v.Category != core.CategoryViolence {
		t.Fatalf("got %s/%s", v.Label, v.Category)
	}
	if v.Severity != core.SeverityCritical {
		t.Fatalf("severity = %s", v.Severity)
	}
	if v.Confidence != 0.92 {
		t.Fatalf("confidence = %v", v.Confidence)
	}
}

func TestBandsShiftThreshold(t *testing.T) {
	transport := scoreTransport(map[string]float64{"PROFANITY": 0.6})

	young := newClassifier(t, transport)
	v, err := young.Classify(context.Background(), "mildly rude",
		core.EvalContext{Profile: core.ChildProfile{Age: 5, Band: core.BandEarlyChildhood}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelUnsafe || v.Category != core.CategoryProfanity {
		t.Fatalf("young band should flag 0.6, got %s/%s", v.Label, v.Category)
	}

	older := newClassifier(t, transport)
	v, err = older.Classify(context.Background(), "mildly rude",
		core.EvalContext{Profile: core.ChildProfile{Age: 16, Band: core.BandLateTeen}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelSafe {
		t.Fatalf("late teen band should pass 0.6, got %s (%s)", v.Label, v.Reason)
	}
}

func TestMissingBandFallsBackToAge(t *testing.T) {
	c := newClassifier(t, scoreTransport(map[string]float64{"INSULT": 0.5}))
	v, err := c.Classify(context.Background(), "you are silly",
		core.EvalContext{Profile: core.ChildProfile{Age: 4}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelUnsafe {
		t.Fatal("age 4 maps to the strictest band and 0.5 should flag")
	}
}

func TestServiceErrorIsUnavailable(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 503,
			Status:     "503 Service Unavailable",
			Body:       io.NopCloser(bytes.NewBufferString(`{"error":"overloaded"}`)),
		}, nil
	})
	c := newClassifier(t, transport)
	_, err := c.Classify(context.Background(), "hello", core.EvalContext{})
	if !core.IsClassifierUnavailable(err) {
		t.Fatalf("expected classifier_unavailable, got %v", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(); !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
