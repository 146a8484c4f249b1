// Package gemini implements the generative semantic classifier. It asks a
// core.Provider for a strict-JSON safety analysis of the payload, catching
// contextual harm that blocklists and toxicity scores miss.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finchkit/finch/core"
)

const systemPrompt = `You are a safety analyst for a children's voice assistant.
Analyze the content for safety concerns considering the child's age.
Respond with ONLY a JSON object, no markdown fences, in this exact shape:
{"safe": bool, "confidence": 0.0-1.0, "category": string, "severity": "none|low|medium|high|critical", "reason": string, "suggestion": string}
Valid categories: violence, sexual, hate_speech, harassment, self_harm, dangerous,
drugs_alcohol, profanity, personal_information, deception, age_inappropriate, gambling, none.
Flag content that is technically clean but inappropriate for the age, including
grooming patterns, scary themes for young children, and manipulative requests.`

// analysis is the provider's response contract.
type analysis struct {
	Safe       bool    `json:"safe"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Reason     string  `json:"reason"`
	Suggestion string  `json:"suggestion"`
}

// Classifier performs semantic safety analysis via a generative provider.
type Classifier struct {
	provider core.Provider
	model    string
}

// Option configures the classifier.
type Option func(*Classifier)

// WithModel overrides the model requested from the provider.
func WithModel(model string) Option {
	return func(c *Classifier) { c.model = model }
}

// New constructs the semantic classifier around a provider.
func New(provider core.Provider, opts ...Option) (*Classifier, error) {
	if provider == nil {
		return nil, core.NewError(core.ErrConfiguration, "gemini classifier requires a provider")
	}
	c := &Classifier{provider: provider}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements core.Classifier.
func (c *Classifier) Name() string { return "gemini" }

// Classify sends the payload for semantic analysis. Any provider failure,
// including malformed JSON in the response, surfaces as a
// classifier_unavailable error so the engine treats this layer as failed
// rather than trusting a partial answer.
func (c *Classifier) Classify(ctx context.Context, payload string, ec core.EvalContext) (core.Verdict, error) {
	role := "a child said"
	if ec.Output {
		role = "the assistant wants to reply"
	}
	prompt := fmt.Sprintf("Child age: %d (%s). Content to analyze (%s): %q",
		ec.Profile.Age, ec.Profile.Band, role, payload)

	res, err := c.provider.GenerateObject(ctx, core.GenerateRequest{
		Model:       c.model,
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return core.Verdict{}, core.NewError(core.ErrClassifierUnavailable,
			"semantic analysis unavailable", core.WithWrapped(err))
	}

	var a analysis
	if err := json.Unmarshal(trimFences(res.JSON), &a); err != nil {
		return core.Verdict{}, core.NewError(core.ErrClassifierUnavailable,
			"semantic analysis returned malformed JSON", core.WithWrapped(err))
	}
	return a.verdict(), nil
}

func (a analysis) verdict() core.Verdict {
	v := core.Verdict{
		Label:      core.LabelSafe,
		Confidence: clamp(a.Confidence),
		Category:   normalizeCategory(a.Category),
		Severity:   normalizeSeverity(a.Severity),
		Reason:     a.Reason,
		Suggestion: a.Suggestion,
	}
	if !a.Safe {
		v.Label = core.LabelUnsafe
		if v.Category == core.CategoryNone {
			v.Category = core.CategoryAgeUnfit
		}
		if v.Severity == core.SeverityNone {
			v.Severity = core.SeverityMedium
		}
	}
	return v
}

// trimFences strips markdown code fences some models wrap JSON in despite
// instructions.
func trimFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
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

var knownCategories = map[core.Category]bool{
	core.CategoryViolence:     true,
	core.CategorySexual:       true,
	core.CategoryHateSpeech:   true,
	core.CategoryHarassment:   true,
	core.CategorySelfHarm:     true,
	core.CategoryDangerous:    true,
	core.CategoryDrugsAlcohol: true,
	core.CategoryProfanity:    true,
	core.CategoryPII:          true,
	core.CategoryDeception:    true,
	core.CategoryAgeUnfit:     true,
	core.CategoryGambling:     true,
}

func normalizeCategory(raw string) core.Category {
	c := core.Category(strings.ToLower(strings.TrimSpace(raw)))
	if knownCategories[c] {
		return c
	}
	return core.CategoryNone
}

func normalizeSeverity(raw string) core.Severity {
	switch s := core.Severity(strings.ToLower(strings.TrimSpace(raw))); s {
	case core.SeverityLow, core.SeverityMedium, core.SeverityHigh, core.SeverityCritical:
		return s
	default:
		return core.SeverityNone
	}
}
