// Package pattern implements the synchronous regex/blocklist classifier: the
// first, cheapest safety layer. It has no external dependencies and cannot
// fail except on empty input.
package pattern

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/finchkit/finch/core"
)

type term struct {
	category core.Category
	severity core.Severity
}

type rule struct {
	re       *regexp.Regexp
	category core.Category
	severity core.Severity
	reason   string
}

var blockedTerms = map[string]term{
	"weapon":          {core.CategoryViolence, core.SeverityHigh},
	"bomb":            {core.CategoryDangerous, core.SeverityCritical},
	"explosive":       {core.CategoryDangerous, core.SeverityCritical},
	"gun":             {core.CategoryViolence, core.SeverityHigh},
	"knife attack":    {core.CategoryViolence, core.SeverityCritical},
	"drugs":           {core.CategoryDrugsAlcohol, core.SeverityHigh},
	"alcohol":         {core.CategoryDrugsAlcohol, core.SeverityMedium},
	"smoking":         {core.CategoryDrugsAlcohol, core.SeverityMedium},
	"vaping":          {core.CategoryDrugsAlcohol, core.SeverityMedium},
	"suicide":         {core.CategorySelfHarm, core.SeverityCritical},
	"self-harm":       {core.CategorySelfHarm, core.SeverityCritical},
	"eating disorder": {core.CategorySelfHarm, core.SeverityHigh},
	"pornography":     {core.CategorySexual, core.SeverityCritical},
	"sexual":          {core.CategorySexual, core.SeverityHigh},
	"nude":            {core.CategorySexual, core.SeverityHigh},
	"gambling":        {core.CategoryGambling, core.SeverityMedium},
	"betting":         {core.CategoryGambling, core.SeverityMedium},
	"hacking":         {core.CategoryDangerous, core.SeverityMedium},
	"malware":         {core.CategoryDangerous, core.SeverityHigh},
}

var dangerousRules = []rule{
	{
		re:       regexp.MustCompile(`(?i)how (to|do i|can i) (make|build|create|construct) (a )?(bomb|weapon|explosive|gun)`),
		category: core.CategoryDangerous,
		severity: core.SeverityCritical,
		reason:   "dangerous instruction request",
	},
	{
		re:       regexp.MustCompile(`(?i)how (to|do i|can i) (hurt|harm|kill|attack|murder)`),
		category: core.CategoryViolence,
		severity: core.SeverityCritical,
		reason:   "violent instruction request",
	},
	{
		re:       regexp.MustCompile(`(?i)how (to|do i|can i) (steal|hack|break into)`),
		category: core.CategoryDangerous,
		severity: core.SeverityHigh,
		reason:   "dangerous instruction request",
	},
	{
		re:       regexp.MustCompile(`(?i)(credit card|password|social security) number`),
		category: core.CategoryPII,
		severity: core.SeverityHigh,
		reason:   "personal information request",
	},
}

var piiRules = []rule{
	{
		re:       regexp.MustCompile(`(?i)(what is|tell me|give me) your (address|phone|school|password)`),
		category: core.CategoryPII,
		severity: core.SeverityHigh,
		reason:   "personal information request",
	},
	{
		re:       regexp.MustCompile(`(?i)where do you live`),
		category: core.CategoryPII,
		severity: core.SeverityMedium,
		reason:   "personal information request",
	},
	{
		re:       regexp.MustCompile(`(?i)what('s| is) your (real|full) name`),
		category: core.CategoryPII,
		severity: core.SeverityMedium,
		reason:   "personal information request",
	},
	{
		re:       regexp.MustCompile(`(?i)(send|share) (me )?(a )?photo of (yourself|you)`),
		category: core.CategoryPII,
		severity: core.SeverityHigh,
		reason:   "personal information request",
	},
}

// Safe redirect suggestions for common blocked topics.
var redirects = map[string]string{
	"bomb":    "I can't help with that because it's dangerous. But I can tell you how fireworks create bright colors!",
	"weapon":  "I can't help with that. Would you like to learn about how knights protected castles instead?",
	"drugs":   "That's not something I can help with. How about we learn about how doctors help people stay healthy?",
	"hacking": "I can't help with that. But I can teach you about how computers work to keep information safe!",
}

// Classifier is the blocklist layer.
type Classifier struct{}

// New constructs the pattern classifier.
func New() *Classifier { return &Classifier{} }

// Name implements core.Classifier.
func (c *Classifier) Name() string { return "pattern" }

// Classify scans the payload against instruction patterns, PII patterns, and
// blocked terms, in decreasing order of confidence. Parent topic overrides
// from the profile are honored for plain term matches.
func (c *Classifier) Classify(ctx context.Context, payload string, ec core.EvalContext) (core.Verdict, error) {
	if strings.TrimSpace(payload) == "" {
		return core.Verdict{}, core.NewError(core.ErrBadRequest, "empty payload")
	}
	lower := strings.ToLower(payload)

	for _, r := range dangerousRules {
		if r.re.MatchString(payload) {
			return core.Verdict{
				Label:      core.LabelUnsafe,
				Confidence: 0.95,
				Category:   r.category,
				Severity:   r.severity,
				Reason:     r.reason,
				Suggestion: findRedirect(lower),
			}, nil
		}
	}

	for _, r := range piiRules {
		if r.re.MatchString(payload) {
			return core.Verdict{
				Label:      core.LabelUnsafe,
				Confidence: 0.9,
				Category:   r.category,
				Severity:   r.severity,
				Reason:     r.reason,
				Suggestion: "I keep my personal information private, and you should too! Is there something else I can help you with?",
			}, nil
		}
	}

	for _, word := range sortedTerms() {
		if !strings.Contains(lower, word) {
			continue
		}
		if topicListed(ec.Profile.BlockedTopics, word) {
			// Parent-blocked always takes precedence over allowed.
		} else if topicListed(ec.Profile.AllowedTopics, word) {
			continue
		}
		t := blockedTerms[word]
		return core.Verdict{
			Label:      core.LabelUnsafe,
			Confidence: 0.85,
			Category:   t.category,
			Severity:   t.severity,
			Reason:     "blocked term: " + word,
			Suggestion: findRedirect(lower),
		}, nil
	}

	for _, topic := range ec.Profile.BlockedTopics {
		if topic != "" && strings.Contains(lower, strings.ToLower(topic)) {
			return core.Verdict{
				Label:      core.LabelUnsafe,
				Confidence: 0.9,
				Category:   core.CategoryAgeUnfit,
				Severity:   core.SeverityLow,
				Reason:     "parent-blocked topic: " + topic,
				Suggestion: "I'm not able to talk about that. Let's explore something else!",
			}, nil
		}
	}

	// Blocklists only; confidence stays modest so other layers can weigh in.
	return core.Verdict{
		Label:      core.LabelSafe,
		Confidence: 0.7,
		Category:   core.CategoryNone,
		Reason:     "no blocklist matches",
	}, nil
}

func findRedirect(lower string) string {
	for _, keyword := range []string{"bomb", "weapon", "drugs", "hacking"} {
		if strings.Contains(lower, keyword) {
			return redirects[keyword]
		}
	}
	return ""
}

func topicListed(topics []string, term string) bool {
	for _, t := range topics {
		if strings.EqualFold(t, term) {
			return true
		}
	}
	return false
}

var termOrder = func() []string {
	words := make([]string, 0, len(blockedTerms))
	for w := range blockedTerms {
		words = append(words, w)
	}
	// Critical terms first so the reported category is the worst match.
	sort.Slice(words, func(i, j int) bool {
		a, b := blockedTerms[words[i]], blockedTerms[words[j]]
		if a.severity.Rank() != b.severity.Rank() {
			return a.severity.Rank() > b.severity.Rank()
		}
		return words[i] < words[j]
	})
	return words
}()

func sortedTerms() []string { return termOrder }
