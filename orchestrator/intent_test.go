package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/finchkit/finch/core"
)

type fakeProvider struct {
	json string
	err  error
}

func (f *fakeProvider) GenerateText(ctx context.Context, req core.GenerateRequest) (*core.TextResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) GenerateObject(ctx context.Context, req core.GenerateRequest) (*core.ObjectResultRaw, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.ObjectResultRaw{JSON: []byte(f.json), Provider: "fake"}, nil
}

func (f *fakeProvider) Capabilities() core.Capabilities {
	return core.Capabilities{StrictJSON: true, Provider: "fake"}
}

func TestHeuristicIntentIsTotal(t *testing.T) {
	inputs := []string{
		"why is the sky blue?",
		"play a song",
		"where can I find a weapon",
		"hello!",
		"hi",
		"zzzzz qqqq",
		"🦕",
	}
	for _, in := range inputs {
		intent := HeuristicIntent(in)
		if intent.Type == "" || intent.Confidence <= 0 {
			t.Fatalf("heuristic not total for %q: %+v", in, intent)
		}
	}
}

func TestHeuristicRoutes(t *testing.T) {
	cases := []struct {
		input string
		want  core.IntentType
	}{
		{"why do birds sing?", core.IntentEducational},
		{"tell me about volcanoes", core.IntentEducational},
		{"play some music please", core.IntentAction},
		{"how do I use a gun", core.IntentSafetyConcern},
		{"hello friend", core.IntentConversation},
		{"bananas bananas bananas", core.IntentConversation},
	}
	for _, tc := range cases {
		if got := HeuristicIntent(tc.input); got.Type != tc.want {
			t.Fatalf("HeuristicIntent(%q) = %s, want %s", tc.input, got.Type, tc.want)
		}
	}
}

func TestProviderBackedClassification(t *testing.T) {
	p := &fakeProvider{json: `{"type": "educational", "confidence": 0.92, "reasoning": "curiosity question"}`}
	c := NewIntentClassifier(p, false)
	intent := c.Classify(context.Background(), "why is the ocean salty?")
	if intent.Type != core.IntentEducational || intent.Confidence != 0.92 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestInvalidProviderTypeFallsBack(t *testing.T) {
	p := &fakeProvider{json: `{"type": "philosophy", "confidence": 0.9}`}
	c := NewIntentClassifier(p, false)
	intent := c.Classify(context.Background(), "why is the ocean salty?")
	if intent.Type != core.IntentEducational || intent.Reasoning != "matched educational keyword" {
		t.Fatalf("expected heuristic fallback, got %+v", intent)
	}
}

func TestProviderFailureFallsBack(t *testing.T) {
	p := &fakeProvider{err: core.NewError(core.ErrProviderError, "down")}
	c := NewIntentClassifier(p, false)
	intent := c.Classify(context.Background(), "play a game with me")
	if intent.Type != core.IntentAction {
		t.Fatalf("expected heuristic action route, got %+v", intent)
	}
}

func TestForceHeuristicSkipsProvider(t *testing.T) {
	p := &fakeProvider{json: `{"type": "unknown", "confidence": 1.0}`}
	c := NewIntentClassifier(p, true)
	intent := c.Classify(context.Background(), "what are clouds made of?")
	if intent.Type != core.IntentEducational {
		t.Fatalf("force-heuristic should bypass the provider, got %+v", intent)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("a", maxInputLen-1) + "🦕 and more"
	cut := truncate(long, maxInputLen)
	if !utf8.ValidString(cut) {
		t.Fatalf("truncate split a rune: %q", cut[len(cut)-4:])
	}
	if len(cut) > maxInputLen {
		t.Fatalf("len = %d, want <= %d", len(cut), maxInputLen)
	}
	if truncate("short", 100) != "short" {
		t.Fatal("short strings must pass through")
	}
}

func TestEmptyInputIsLowConfidenceConversation(t *testing.T) {
	c := NewIntentClassifier(nil, false)
	intent := c.Classify(context.Background(), "   ")
	if intent.Type != core.IntentConversation || intent.Confidence != 0.1 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}
