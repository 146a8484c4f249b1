// Package alerts builds parent-facing alerts from restrictive safety
// decisions and delivers them to the dashboard collaborator through a Sink.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/finchkit/finch/core"
)

// Urgency grades how quickly a parent should look at an alert.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParentAlert is the notification handed to the dashboard collaborator.
type ParentAlert struct {
	ID        string        `json:"id"`
	ChildID   string        `json:"child_id"`
	Subject   string        `json:"subject"`
	Message   string        `json:"message"`
	Urgency   Urgency       `json:"urgency"`
	FollowUp  bool          `json:"follow_up_recommended"`
	Decision  core.Decision `json:"decision"`
	CreatedAt time.Time     `json:"created_at"`
}

// Sink receives alerts. The dashboard collaborator implements this; the core
// never formats alerts for display.
type Sink interface {
	Deliver(ctx context.Context, alert ParentAlert) error
}

const alertPrompt = `You write short parent notifications for a children's voice assistant.
The child %s (age %d) triggered a safety action.
Category: %s. Severity: %s. Action taken: %s.
Respond with ONLY a JSON object: {"subject": string, "message": "2-3 sentence explanation", "follow_up_recommended": bool, "urgency": "low"|"medium"|"high"}.
Be factual and reassuring; the system already handled the incident.`

// Builder constructs alerts, optionally phrasing them through a provider
// with the deterministic template as fallback.
type Builder struct {
	provider core.Provider
}

// NewBuilder constructs a Builder. provider may be nil for template-only
// operation.
func NewBuilder(provider core.Provider) *Builder {
	return &Builder{provider: provider}
}

// Build produces the alert for a restrictive decision. Provider failures
// fall back to the template silently; alert generation must never fail a
// request.
func (b *Builder) Build(ctx context.Context, profile core.ChildProfile, content string, decision core.Decision) ParentAlert {
	alert := templateAlert(profile, decision)
	alert.ID = uuid.NewString()
	alert.ChildID = profile.ChildID
	alert.CreatedAt = time.Now().UTC()
	alert.Decision = decision

	if b.provider == nil {
		return alert
	}
	phrased, err := b.phrase(ctx, profile, content, decision)
	if err != nil {
		return alert
	}
	if phrased.Subject != "" {
		alert.Subject = phrased.Subject
	}
	if phrased.Message != "" {
		alert.Message = phrased.Message
	}
	if phrased.Urgency != "" {
		alert.Urgency = normalizeUrgency(phrased.Urgency, alert.Urgency)
	}
	alert.FollowUp = alert.FollowUp || phrased.FollowUp
	return alert
}

type phrasedAlert struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	FollowUp bool   `json:"follow_up_recommended"`
	Urgency  string `json:"urgency"`
}

func (b *Builder) phrase(ctx context.Context, profile core.ChildProfile, content string, decision core.Decision) (phrasedAlert, error) {
	content = truncate(content, 100)
	severity := worstSeverity(decision)
	prompt := fmt.Sprintf(alertPrompt,
		profile.Name, profile.Age, decision.TriggeringCategory, severity, decision.Action)
	res, err := b.provider.GenerateObject(ctx, core.GenerateRequest{
		Prompt:      prompt + "\nChild said: " + content,
		Temperature: 0.2,
		MaxTokens:   256,
	})
	if err != nil {
		return phrasedAlert{}, err
	}
	var phrased phrasedAlert
	if err := json.Unmarshal(res.JSON, &phrased); err != nil {
		return phrasedAlert{}, err
	}
	return phrased, nil
}

func templateAlert(profile core.ChildProfile, decision core.Decision) ParentAlert {
	severity := worstSeverity(decision)
	alert := ParentAlert{
		Subject:  fmt.Sprintf("Safety Log - %s", profile.Name),
		Urgency:  UrgencyLow,
		FollowUp: false,
	}
	switch severity {
	case core.SeverityCritical, core.SeverityHigh:
		alert.Subject = fmt.Sprintf("Important Safety Alert - %s", profile.Name)
		alert.Urgency = UrgencyHigh
		alert.FollowUp = true
	case core.SeverityMedium:
		alert.Subject = fmt.Sprintf("Safety Notice - %s", profile.Name)
		alert.Urgency = UrgencyMedium
		alert.FollowUp = true
	}
	alert.Message = fmt.Sprintf(
		"A safety concern was detected in %s's interaction. The system took action: %s. Reason: %s",
		profile.Name, decision.Action, decision.Reason)
	return alert
}

// worstSeverity scans the contributing verdicts; degraded decisions with no
// verdicts rate high out of caution.
func worstSeverity(decision core.Decision) core.Severity {
	worst := core.SeverityNone
	for _, v := range decision.Verdicts {
		if v.Failed {
			continue
		}
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
	}
	if worst == core.SeverityNone && decision.Degraded {
		return core.SeverityHigh
	}
	return worst
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

func normalizeUrgency(raw string, fallback Urgency) Urgency {
	switch Urgency(raw) {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return Urgency(raw)
	default:
		return fallback
	}
}

// InMemorySink collects alerts for tests and the demo CLI.
type InMemorySink struct {
	mu     sync.Mutex
	alerts []ParentAlert
}

// NewInMemorySink builds an empty sink.
func NewInMemorySink() *InMemorySink { return &InMemorySink{} }

// Deliver implements Sink.
func (s *InMemorySink) Deliver(ctx context.Context, alert ParentAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// Alerts returns a copy of everything delivered so far.
func (s *InMemorySink) Alerts() []ParentAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ParentAlert(nil), s.alerts...)
}
