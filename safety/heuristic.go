package safety

import (
	"sort"
	"strings"

	"github.com/finchkit/finch/core"
)

// Heuristic is the deterministic fallback used when every classifier failed.
// It is total (always produces a decision) and side-effect free; anything not
// on the explicit allowlist is blocked.
type Heuristic struct {
	// Allowlist holds exact lowercase phrases that remain allowed even with
	// no classifier input.
	Allowlist []string `yaml:"allowlist" json:"allowlist"`

	// Keywords refine the blocked category reported for the parent trace.
	Keywords map[string]core.Category `yaml:"keywords" json:"keywords"`
}

// DefaultHeuristic returns the conservative keyword fallback.
func DefaultHeuristic() Heuristic {
	return Heuristic{
		Allowlist: []string{
			"hi", "hello", "hey", "thank you", "thanks", "bye", "goodbye",
		},
		Keywords: map[string]core.Category{
			"bomb":      core.CategoryDangerous,
			"explosive": core.CategoryDangerous,
			"weapon":    core.CategoryViolence,
			"gun":       core.CategoryViolence,
			"kill":      core.CategoryViolence,
			"hurt":      core.CategoryViolence,
			"suicide":   core.CategorySelfHarm,
			"self-harm": core.CategorySelfHarm,
			"drugs":     core.CategoryDrugsAlcohol,
			"alcohol":   core.CategoryDrugsAlcohol,
			"sexual":    core.CategorySexual,
			"nude":      core.CategorySexual,
			"gambling":  core.CategoryGambling,
			"password":  core.CategoryPII,
			"address":   core.CategoryPII,
		},
	}
}

// Decide produces the degraded decision for a payload. Zero-trust toward
// uncertainty: only allowlisted phrases pass.
func (h Heuristic) Decide(payload string) core.Decision {
	normalized := strings.ToLower(strings.TrimSpace(payload))
	for _, phrase := range h.Allowlist {
		if normalized == phrase {
			return core.Decision{
				Action:   core.ActionAllow,
				Degraded: true,
				Reason:   "degraded fallback: allowlisted phrase",
			}
		}
	}

	category := core.CategoryNone
	for _, keyword := range sortedKeys(h.Keywords) {
		if strings.Contains(normalized, keyword) {
			category = h.Keywords[keyword]
			break
		}
	}

	return core.Decision{
		Action:             core.ActionBlock,
		TriggeringCategory: category,
		Degraded:           true,
		ParentAlert:        true,
		Reason:             "degraded fallback: no classifier available",
	}
}

func sortedKeys(m map[string]core.Category) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
