package core

// Label is one classifier's normalized judgment of a payload.
type Label string

const (
	LabelSafe      Label = "safe"
	LabelUnsafe    Label = "unsafe"
	LabelUncertain Label = "uncertain"
)

// Action is the engine's aggregated, actionable judgment.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionRewrite Action = "rewrite"
	ActionBlock   Action = "block"
)

// Category enumerates safety concern categories.
type Category string

const (
	CategoryViolence     Category = "violence"
	CategorySexual       Category = "sexual"
	CategoryHateSpeech   Category = "hate_speech"
	CategoryHarassment   Category = "harassment"
	CategorySelfHarm     Category = "self_harm"
	CategoryDangerous    Category = "dangerous"
	CategoryDrugsAlcohol Category = "drugs_alcohol"
	CategoryProfanity    Category = "profanity"
	CategoryPII          Category = "personal_information"
	CategoryDeception    Category = "deception"
	CategoryAgeUnfit     Category = "age_inappropriate"
	CategoryGambling     Category = "gambling"
	CategoryNone         Category = "none"
)

// Severity ranks how serious a concern is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering position of the severity; unknown values rank
// lowest.
func (s Severity) Rank() int { return severityRank[s] }

// Verdict is one classifier's normalized safety judgment for a single
// payload. Produced once per invocation and never mutated afterward.
type Verdict struct {
	Classifier string   `json:"classifier"`
	Label      Label    `json:"label"`
	Confidence float64  `json:"confidence"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Reason     string   `json:"reason,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	LatencyMS  int64    `json:"latency_ms"`
	Failed     bool     `json:"failed"`
}

// Unsafe reports whether the verdict flags the payload.
func (v Verdict) Unsafe() bool { return !v.Failed && v.Label != LabelSafe }

// Decision is the engine's aggregated safety judgment combining all
// verdicts for one evaluation call. Immutable once returned.
type Decision struct {
	Action             Action    `json:"action"`
	TriggeringCategory Category  `json:"triggering_category,omitempty"`
	Verdicts           []Verdict `json:"verdicts"`
	Degraded           bool      `json:"degraded"`
	Reason             string    `json:"reason,omitempty"`
	Suggestion         string    `json:"suggestion,omitempty"`
	ParentAlert        bool      `json:"parent_alert"`
	LatencyMS          int64     `json:"latency_ms"`

	// ReviewID is set when the evaluation was queued for human review.
	ReviewID string `json:"review_id,omitempty"`
}

// Allowed reports whether content may be released.
func (d Decision) Allowed() bool { return d.Action == ActionAllow }

// Traceable reports whether a restrictive decision carries at least one
// non-safe verdict. Pure-fallback decisions are exempt and must be flagged
// degraded instead.
func (d Decision) Traceable() bool {
	if d.Action == ActionAllow || d.Degraded {
		return true
	}
	for _, v := range d.Verdicts {
		if v.Unsafe() {
			return true
		}
	}
	return false
}

// EvalContext carries the per-child context handed to classifiers.
type EvalContext struct {
	Profile   ChildProfile
	SessionID string
	Output    bool // true when evaluating agent output rather than child input
}

// Intent is the routing classification for one request.
type Intent struct {
	Type       IntentType `json:"type"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
}

// IntentType enumerates the reasoning routes.
type IntentType string

const (
	IntentEducational   IntentType = "educational"
	IntentConversation  IntentType = "conversational"
	IntentAction        IntentType = "action"
	IntentSafetyConcern IntentType = "safety_concern"
	IntentUnknown       IntentType = "unknown"
)
