package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/finchkit/finch/core"
)

type fakeProvider struct {
	json string
	err  error
	last core.GenerateRequest
}

func (f *fakeProvider) GenerateText(ctx context.Context, req core.GenerateRequest) (*core.TextResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) GenerateObject(ctx context.Context, req core.GenerateRequest) (*core.ObjectResultRaw, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &core.ObjectResultRaw{JSON: []byte(f.json), Provider: "fake"}, nil
}

func (f *fakeProvider) Capabilities() core.Capabilities {
	return core.Capabilities{StrictJSON: true, Provider: "fake"}
}

func newClassifier(t *testing.T, p core.Provider) *Classifier {
	t.Helper()
	c, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestUnsafeAnalysis(t *testing.T) {
	p := &fakeProvider{json: `{"safe": false, "confidence": 0.88, "category": "self_harm", "severity": "critical", "reason": "distress signals", "suggestion": "talk to a trusted adult"}`}
	v, err := newClassifier(t, p).Classify(context.Background(), "i want to disappear forever",
		core.EvalContext{Profile: core.ChildProfile{Age: 12, Band: core.BandLateChildhood}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelUnsafe || v.Category != core.CategorySelfHarm || v.Severity != core.SeverityCritical {
		t.Fatalf("got %s/%s/%s", v.Label, v.Category, v.Severity)
	}
	if v.Confidence != 0.88 {
		t.Fatalf("confidence = %v", v.Confidence)
	}
}

func TestSafeAnalysis(t *testing.T) {
	p := &fakeProvider{json: `{"safe": true, "confidence": 0.97, "category": "none", "severity": "none", "reason": "benign question"}`}
	v, err := newClassifier(t, p).Classify(context.Background(), "how do volcanoes work?",
		core.EvalContext{Profile: core.ChildProfile{Age: 9}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelSafe || v.Category != core.CategoryNone {
		t.Fatalf("got %s/%s", v.Label, v.Category)
	}
}

func TestFencedJSONTolerated(t *testing.T) {
	p := &fakeProvider{json: "```json\n{\"safe\": true, \"confidence\": 0.9, \"category\": \"none\", \"severity\": \"none\"}\n```"}
	v, err := newClassifier(t, p).Classify(context.Background(), "hello", core.EvalContext{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Label != core.LabelSafe {
		t.Fatalf("got %s", v.Label)
	}
}

func TestUnsafeDefaultsFillIn(t *testing.T) {
	p := &fakeProvider{json: `{"safe": false, "confidence": 0.6, "category": "made_up", "severity": ""}`}
	v, err := newClassifier(t, p).Classify(context.Background(), "x", core.EvalContext{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Category != core.CategoryAgeUnfit || v.Severity != core.SeverityMedium {
		t.Fatalf("got %s/%s", v.Category, v.Severity)
	}
}

func TestProviderFailureIsUnavailable(t *testing.T) {
	p := &fakeProvider{err: core.NewError(core.ErrProviderError, "upstream 503")}
	_, err := newClassifier(t, p).Classify(context.Background(), "hello", core.EvalContext{})
	if !core.IsClassifierUnavailable(err) {
		t.Fatalf("expected classifier_unavailable, got %v", err)
	}
}

func TestMalformedJSONIsUnavailable(t *testing.T) {
	p := &fakeProvider{json: `i refuse to answer in JSON`}
	_, err := newClassifier(t, p).Classify(context.Background(), "hello", core.EvalContext{})
	if !core.IsClassifierUnavailable(err) {
		t.Fatalf("expected classifier_unavailable, got %v", err)
	}
}

func TestOutputEvaluationChangesPrompt(t *testing.T) {
	p := &fakeProvider{json: `{"safe": true, "confidence": 1, "category": "none", "severity": "none"}`}
	c := newClassifier(t, p)
	if _, err := c.Classify(context.Background(), "hi there", core.EvalContext{Output: true}); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if p.last.System == "" || p.last.Temperature != 0.1 {
		t.Fatalf("unexpected request: %+v", p.last)
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(nil); !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
