package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/obs"
)

const maxInputLen = 2000

const intentPrompt = `You classify a child's message for an educational, playful AI companion.
Return ONLY a JSON object without code fences. Categories:
educational: factual / curiosity / learning questions
conversational: greetings, feelings, casual talk
action: explicit request to play music, start activity, do something
safety_concern: dangerous, self-harm, adult, violence, highly inappropriate
unknown: anything else or unclear

Fields: type, confidence (0-1), reasoning (short).`

// IntentClassifier routes requests. Provider-backed when available, with a
// total, side-effect-free keyword heuristic as fallback.
type IntentClassifier struct {
	provider       core.Provider
	forceHeuristic bool
}

// NewIntentClassifier builds the classifier. A nil provider means heuristic
// only.
func NewIntentClassifier(provider core.Provider, forceHeuristic bool) *IntentClassifier {
	return &IntentClassifier{provider: provider, forceHeuristic: forceHeuristic}
}

// Classify produces a routing intent. It never returns an error: any
// provider failure or invalid response falls back to the heuristic.
func (c *IntentClassifier) Classify(ctx context.Context, input string) core.Intent {
	input = truncate(strings.TrimSpace(input), maxInputLen)
	if input == "" {
		return core.Intent{Type: core.IntentConversation, Confidence: 0.1, Reasoning: "empty or invalid input"}
	}
	if c.provider == nil || c.forceHeuristic {
		obs.RecordHeuristicIntent()
		return HeuristicIntent(input)
	}

	res, err := c.provider.GenerateObject(ctx, core.GenerateRequest{
		System:      intentPrompt,
		Prompt:      fmt.Sprintf("Message: %q", input),
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		obs.RecordHeuristicIntent()
		return HeuristicIntent(input)
	}
	var parsed struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal(res.JSON, &parsed); err != nil {
		obs.RecordHeuristicIntent()
		return HeuristicIntent(input)
	}
	intentType := core.IntentType(parsed.Type)
	switch intentType {
	case core.IntentEducational, core.IntentConversation, core.IntentAction,
		core.IntentSafetyConcern, core.IntentUnknown:
	default:
		obs.RecordHeuristicIntent()
		return HeuristicIntent(input)
	}
	return core.Intent{Type: intentType, Confidence: clamp(parsed.Confidence), Reasoning: parsed.Reasoning}
}

var (
	educationalKeywords = []string{"why", "what", "how", "when", "where", "who", "tell me", "explain"}
	actionKeywords      = []string{"play", "music", "song", "game"}
	safetyKeywords      = []string{"hurt", "kill", "weapon", "bomb", "gun", "drugs"}
	greetingKeywords    = []string{"hi", "hello", "hey"}
)

// HeuristicIntent is the deterministic fallback route. Total: every input
// maps to some intent.
func HeuristicIntent(input string) core.Intent {
	text := strings.ToLower(strings.TrimSpace(input))
	if containsAny(text, safetyKeywords) {
		return core.Intent{Type: core.IntentSafetyConcern, Confidence: 0.9, Reasoning: "matched safety keyword"}
	}
	if containsAny(text, actionKeywords) {
		return core.Intent{Type: core.IntentAction, Confidence: 0.7, Reasoning: "matched action keyword"}
	}
	if containsAny(text, educationalKeywords) {
		return core.Intent{Type: core.IntentEducational, Confidence: 0.6, Reasoning: "matched educational keyword"}
	}
	for _, g := range greetingKeywords {
		if text == g || strings.HasPrefix(text, g+" ") || strings.HasPrefix(text, g+",") {
			return core.Intent{Type: core.IntentConversation, Confidence: 0.5, Reasoning: "greeting detected"}
		}
	}
	return core.Intent{Type: core.IntentConversation, Confidence: 0.3, Reasoning: "default fallback"}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
