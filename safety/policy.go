package safety

import (
	"time"

	"github.com/finchkit/finch/core"
)

// CategoryPolicy decides how one concern category converts into an action
// once a verdict clears its confidence threshold.
type CategoryPolicy struct {
	Threshold float64     `yaml:"threshold" json:"threshold"`
	Action    core.Action `yaml:"action" json:"action"`
}

// Policy is the injected aggregation policy: thresholds and category-action
// mapping are configuration, not engine constants.
type Policy struct {
	Categories map[core.Category]CategoryPolicy `yaml:"categories" json:"categories"`

	// DefaultThreshold applies to categories without an explicit entry.
	DefaultThreshold float64 `yaml:"default_threshold" json:"default_threshold"`

	// ConfidenceMargin is the tie-break margin: a safe verdict must exceed a
	// disagreeing non-safe verdict's confidence by at least this much to win.
	ConfidenceMargin float64 `yaml:"confidence_margin" json:"confidence_margin"`
}

// DefaultPolicy returns the conservative baseline used when no policy file is
// configured. Soft categories rewrite; everything else blocks.
func DefaultPolicy() Policy {
	return Policy{
		DefaultThreshold: 0.5,
		ConfidenceMargin: 0.25,
		Categories: map[core.Category]CategoryPolicy{
			core.CategoryViolence:     {Threshold: 0.5, Action: core.ActionBlock},
			core.CategorySexual:       {Threshold: 0.4, Action: core.ActionBlock},
			core.CategoryHateSpeech:   {Threshold: 0.5, Action: core.ActionBlock},
			core.CategoryHarassment:   {Threshold: 0.5, Action: core.ActionBlock},
			core.CategorySelfHarm:     {Threshold: 0.3, Action: core.ActionBlock},
			core.CategoryDangerous:    {Threshold: 0.4, Action: core.ActionBlock},
			core.CategoryDrugsAlcohol: {Threshold: 0.5, Action: core.ActionBlock},
			core.CategoryPII:          {Threshold: 0.5, Action: core.ActionBlock},
			core.CategoryDeception:    {Threshold: 0.6, Action: core.ActionBlock},
			core.CategoryGambling:     {Threshold: 0.6, Action: core.ActionRewrite},
			core.CategoryProfanity:    {Threshold: 0.6, Action: core.ActionRewrite},
			core.CategoryAgeUnfit:     {Threshold: 0.6, Action: core.ActionRewrite},
		},
	}
}

// For returns the category policy, falling back to a blocking default.
func (p Policy) For(cat core.Category) CategoryPolicy {
	if cp, ok := p.Categories[cat]; ok {
		return cp
	}
	return CategoryPolicy{Threshold: p.DefaultThreshold, Action: core.ActionBlock}
}

// Validate rejects malformed policies at load time.
func (p Policy) Validate() error {
	if p.DefaultThreshold < 0 || p.DefaultThreshold > 1 {
		return core.NewError(core.ErrConfiguration, "default_threshold must be in [0,1]")
	}
	if p.ConfidenceMargin < 0 || p.ConfidenceMargin > 1 {
		return core.NewError(core.ErrConfiguration, "confidence_margin must be in [0,1]")
	}
	for cat, cp := range p.Categories {
		if cp.Threshold < 0 || cp.Threshold > 1 {
			return core.NewError(core.ErrConfiguration, "threshold out of range for category "+string(cat))
		}
		switch cp.Action {
		case core.ActionBlock, core.ActionRewrite:
		default:
			return core.NewError(core.ErrConfiguration, "category "+string(cat)+" must map to block or rewrite")
		}
	}
	return nil
}

// Adapter pairs a classifier with its timeout budget. Failures are retried
// once at RetryTimeout before counting as failed.
type Adapter struct {
	Classifier   core.Classifier
	Timeout      time.Duration
	RetryTimeout time.Duration
}

func (a Adapter) timeouts() (time.Duration, time.Duration) {
	primary := a.Timeout
	if primary <= 0 {
		primary = 2 * time.Second
	}
	retry := a.RetryTimeout
	if retry <= 0 || retry > primary {
		retry = primary / 2
	}
	return primary, retry
}
