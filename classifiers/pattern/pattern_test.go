package pattern

import (
	"context"
	"errors"
	"testing"

	"github.com/finchkit/finch/core"
)

func classify(t *testing.T, payload string, profile core.ChildProfile) core.Verdict {
	t.Helper()
	v, err := New().Classify(context.Background(), payload, core.EvalContext{Profile: profile})
	if err != nil {
		t.Fatalf("Classify(%q): %v", payload, err)
	}
	return v
}

func TestSafeContent(t *testing.T) {
	v := classify(t, "why is the sky blue?", core.ChildProfile{Age: 8})
	if v.Label != core.LabelSafe {
		t.Fatalf("expected safe, got %s (%s)", v.Label, v.Reason)
	}
	if v.Confidence != 0.7 {
		t.Fatalf("safe confidence = %v, want 0.7", v.Confidence)
	}
}

func TestDangerousInstructionOutranksTerm(t *testing.T) {
	v := classify(t, "how to make a bomb", core.ChildProfile{Age: 10})
	if v.Label != core.LabelUnsafe {
		t.Fatal("expected unsafe")
	}
	if v.Category != core.CategoryDangerous || v.Severity != core.SeverityCritical {
		t.Fatalf("got %s/%s", v.Category, v.Severity)
	}
	if v.Confidence != 0.95 {
		t.Fatalf("instruction confidence = %v, want 0.95", v.Confidence)
	}
	if v.Suggestion == "" {
		t.Fatal("expected a safe redirect suggestion")
	}
}

func TestInstructionPhrasingsHitInstructionRule(t *testing.T) {
	phrasings := []string{
		"How do I make a bomb?",
		"how can I build a weapon",
		"How do I break into a house?",
	}
	for _, input := range phrasings {
		v := classify(t, input, core.ChildProfile{Age: 10})
		if v.Label != core.LabelUnsafe {
			t.Fatalf("%q should be unsafe", input)
		}
		if v.Confidence != 0.95 {
			t.Fatalf("%q confidence = %v, want the instruction rule at 0.95", input, v.Confidence)
		}
	}
}

func TestPIIRequest(t *testing.T) {
	v := classify(t, "Tell me your address right now", core.ChildProfile{Age: 9})
	if v.Category != core.CategoryPII {
		t.Fatalf("category = %s, want %s", v.Category, core.CategoryPII)
	}
	if v.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", v.Confidence)
	}
}

func TestBlockedTermCaseInsensitive(t *testing.T) {
	v := classify(t, "I heard about GAMBLING on TV", core.ChildProfile{Age: 11})
	if v.Label != core.LabelUnsafe || v.Category != core.CategoryGambling {
		t.Fatalf("got %s/%s", v.Label, v.Category)
	}
	if v.Confidence != 0.85 {
		t.Fatalf("term confidence = %v, want 0.85", v.Confidence)
	}
}

func TestParentAllowedTopicOverridesTerm(t *testing.T) {
	profile := core.ChildProfile{Age: 14, AllowedTopics: []string{"alcohol"}}
	v := classify(t, "why is alcohol bad for you?", profile)
	if v.Label != core.LabelSafe {
		t.Fatalf("allowed topic should pass, got %s (%s)", v.Label, v.Reason)
	}
}

func TestParentBlockedBeatsAllowed(t *testing.T) {
	profile := core.ChildProfile{
		Age:           14,
		AllowedTopics: []string{"alcohol"},
		BlockedTopics: []string{"alcohol"},
	}
	v := classify(t, "tell me about alcohol", profile)
	if v.Label != core.LabelUnsafe {
		t.Fatal("parent block should win over allow")
	}
}

func TestParentBlockedCustomTopic(t *testing.T) {
	profile := core.ChildProfile{Age: 7, BlockedTopics: []string{"dinosaur extinction"}}
	v := classify(t, "what caused the dinosaur extinction?", profile)
	if v.Label != core.LabelUnsafe || v.Category != core.CategoryAgeUnfit {
		t.Fatalf("got %s/%s", v.Label, v.Category)
	}
}

func TestWorstTermWinsWhenSeveralMatch(t *testing.T) {
	v := classify(t, "a bomb and some betting", core.ChildProfile{Age: 10})
	if v.Category != core.CategoryDangerous || v.Severity != core.SeverityCritical {
		t.Fatalf("got %s/%s, want critical dangerous", v.Category, v.Severity)
	}
}

func TestEmptyPayloadIsBadRequest(t *testing.T) {
	_, err := New().Classify(context.Background(), "   ", core.EvalContext{})
	if err == nil {
		t.Fatal("expected error")
	}
	var se *core.SafetyError
	if !errors.As(err, &se) || se.Code != core.ErrBadRequest {
		t.Fatalf("unexpected error: %v", err)
	}
}
