// Package orchestrator owns the per-request state machine: intent
// classification, plan construction, tool dispatch, the two mandatory safety
// checkpoints, and age adaptation. Content never reaches the caller without
// an allow decision on it.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finchkit/finch/ageadapt"
	"github.com/finchkit/finch/alerts"
	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/memory"
	"github.com/finchkit/finch/obs"
	"github.com/finchkit/finch/safety"
	"github.com/finchkit/finch/tools"
)

// Child-facing fallback lines. Refusals are always polite and never expose
// raw errors.
const (
	redirectResponse = "Let's explore something fun instead! Would you like to learn about space, dinosaurs, or animals?"
	blockResponse    = "I'm not able to help with that, but I'd love to help you learn about something else! What are you curious about?"
	fallbackResponse = "Hmm, let me think of a better way to explain that! Could you ask me in a different way?"
	errorResponse    = "Oops! Something didn't work quite right. Let's try again!"
)

// Result is the outcome of one processed request.
type Result struct {
	Response       string
	State          core.RequestState
	Intent         core.Intent
	Plan           *core.Plan
	InputDecision  *core.Decision
	OutputDecision *core.Decision
	Alerted        bool
}

// Orchestrator executes requests. Construction wires all collaborators; the
// registry is immutable afterwards.
type Orchestrator struct {
	engine   *safety.Engine
	router   *tools.Router
	store    memory.Store
	intents  *IntentClassifier
	provider core.Provider
	builder  *alerts.Builder
	sink     alerts.Sink
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithProvider sets the generative responder used for conversational replies
// and provider-backed intent classification.
func WithProvider(p core.Provider) Option {
	return func(o *Orchestrator) { o.provider = p }
}

// WithIntentClassifier overrides the default classifier.
func WithIntentClassifier(c *IntentClassifier) Option {
	return func(o *Orchestrator) { o.intents = c }
}

// WithAlertSink sets the dashboard collaborator receiving parent alerts.
func WithAlertSink(s alerts.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithAlertBuilder overrides the default template-only alert builder.
func WithAlertBuilder(b *alerts.Builder) Option {
	return func(o *Orchestrator) { o.builder = b }
}

// New wires an Orchestrator. Missing engine, router, or store is a
// configuration error; everything else has a working default.
func New(engine *safety.Engine, router *tools.Router, store memory.Store, opts ...Option) (*Orchestrator, error) {
	if engine == nil {
		return nil, core.NewError(core.ErrConfiguration, "orchestrator requires a safety engine")
	}
	if router == nil {
		return nil, core.NewError(core.ErrConfiguration, "orchestrator requires a tool router")
	}
	if store == nil {
		return nil, core.NewError(core.ErrConfiguration, "orchestrator requires a session store")
	}
	o := &Orchestrator{engine: engine, router: router, store: store}
	for _, opt := range opts {
		opt(o)
	}
	if o.intents == nil {
		o.intents = NewIntentClassifier(o.provider, false)
	}
	if o.builder == nil {
		o.builder = alerts.NewBuilder(nil)
	}
	return o, nil
}

// Process runs one request through the full state machine. The only error
// return is cancellation; every other failure resolves to a safe child-facing
// response.
func (o *Orchestrator) Process(ctx context.Context, req core.Request, profile core.ChildProfile) (_ *Result, err error) {
	ctx, recorder := obs.StartRequest(ctx, "orchestrator.Process",
		attribute.String("finch.child_id", req.ChildID),
		attribute.String("finch.modality", string(req.Modality)),
	)
	defer func() { recorder.End(err) }()

	o.store.AddTurn(req.ChildID, memory.Turn{Role: "child", Content: req.Content})

	intent := o.intents.Classify(ctx, req.Content)
	recorder.AddAttributes(attribute.String("finch.intent", string(intent.Type)))

	plan := o.buildPlan(req, intent)
	result := &Result{State: core.StateIntentClassified, Intent: intent, Plan: plan}

	ec := core.EvalContext{Profile: profile, SessionID: req.SessionID}

	// Input checkpoint.
	step(plan, core.StepSafetyCheck, core.StepRunning)
	inputDecision, err := o.engine.Evaluate(ctx, req.Content, ec)
	if err != nil {
		step(plan, core.StepSafetyCheck, core.StepFailed)
		return nil, err
	}
	result.InputDecision = &inputDecision
	result.State = core.StateInputChecked
	step(plan, core.StepSafetyCheck, core.StepDone)

	if !inputDecision.Allowed() {
		return o.blocked(ctx, req, profile, plan, result, &inputDecision, req.Content)
	}

	// Tool execution, or conversational generation when the plan has no tool.
	content := o.produce(ctx, req, profile, plan, intent)
	result.State = core.StateToolExecuted

	// Output checkpoint runs even when no tool was invoked.
	outEC := ec
	outEC.Output = true
	step(plan, core.StepSafetyCheck, core.StepRunning)
	outputDecision, err := o.engine.Evaluate(ctx, content, outEC)
	if err != nil {
		step(plan, core.StepSafetyCheck, core.StepFailed)
		return nil, err
	}
	step(plan, core.StepSafetyCheck, core.StepDone)
	result.OutputDecision = &outputDecision
	result.State = core.StateOutputChecked

	switch outputDecision.Action {
	case core.ActionBlock:
		return o.blocked(ctx, req, profile, plan, result, &outputDecision, content)
	case core.ActionRewrite:
		rewritten := ageadapt.Adapt(content, profile)
		redecision, rerr := o.engine.Evaluate(ctx, rewritten, outEC)
		if rerr != nil {
			return nil, rerr
		}
		o.emitAlert(ctx, req, profile, result, &outputDecision, content)
		if !redecision.Allowed() {
			return o.blocked(ctx, req, profile, plan, result, &redecision, rewritten)
		}
		result.OutputDecision = &redecision
		content = rewritten
	}

	// Age adaptation and response.
	step(plan, core.StepAdapt, core.StepDone)
	content = ageadapt.Adapt(content, profile)
	result.State = core.StateAdapted

	step(plan, core.StepRespond, core.StepDone)
	result.Response = content
	result.State = core.StateResponded
	o.finish(req, profile, plan, result, content)
	return result, nil
}

// buildPlan lays out the ordered steps for the intent. Every plan carries
// both checkpoints regardless of route.
func (o *Orchestrator) buildPlan(req core.Request, intent core.Intent) *core.Plan {
	steps := []core.PlanStep{
		{Kind: core.StepInterpret, Status: core.StepDone, Output: string(intent.Type)},
		{Kind: core.StepSafetyCheck, Status: core.StepPending, Input: req.Content},
	}
	switch intent.Type {
	case core.IntentEducational:
		steps = append(steps, core.PlanStep{
			Kind: core.StepToolCall, Status: core.StepPending,
			Tool: "search_educational", Args: map[string]any{"query": req.Content},
		})
	case core.IntentAction:
		steps = append(steps, core.PlanStep{
			Kind: core.StepToolCall, Status: core.StepPending,
			Tool: "play_music", Args: map[string]any{"mood": "fun"},
		})
	}
	steps = append(steps,
		core.PlanStep{Kind: core.StepSafetyCheck, Status: core.StepPending},
		core.PlanStep{Kind: core.StepAdapt, Status: core.StepPending},
		core.PlanStep{Kind: core.StepRespond, Status: core.StepPending},
	)
	return &core.Plan{RequestID: req.ID, Intent: intent, Steps: steps}
}

// produce yields the unchecked response content for the plan: tool result,
// safety redirect, or conversational reply. Tool failures become a gentle
// error line, never a hard failure.
func (o *Orchestrator) produce(ctx context.Context, req core.Request, profile core.ChildProfile, plan *core.Plan, intent core.Intent) string {
	if intent.Type == core.IntentSafetyConcern {
		return redirectResponse
	}
	toolStep := findStep(plan, core.StepToolCall)
	if toolStep == nil {
		return o.converse(ctx, req, profile)
	}

	toolStep.Status = core.StepRunning
	outcome, err := o.router.Dispatch(ctx, toolStep.Tool, toolStep.Args, core.ToolMeta{
		RequestID: req.ID,
		SessionID: req.SessionID,
		Profile:   profile,
	})
	if err != nil {
		toolStep.Status = core.StepFailed
		toolStep.Err = err.Error()
		return errorResponse
	}
	toolStep.Status = core.StepDone
	toolStep.Output = outcome.Content
	return formatToolResponse(outcome)
}

// converse generates a plain conversational reply, provider-backed when
// possible.
func (o *Orchestrator) converse(ctx context.Context, req core.Request, profile core.ChildProfile) string {
	if o.provider != nil {
		if reply := o.generateReply(ctx, req, profile); reply != "" {
			return reply
		}
	}
	lower := strings.ToLower(req.Content)
	if containsAny(lower, greetingKeywords) {
		return fmt.Sprintf("Hi there, %s! How are you today?", profile.Name)
	}
	if strings.Contains(lower, "thank") {
		return "You're welcome! Is there anything else you'd like to explore?"
	}
	return "That's interesting! I'd love to help you learn more. Could you tell me a bit more about what you're curious about?"
}

func (o *Orchestrator) generateReply(ctx context.Context, req core.Request, profile core.ChildProfile) string {
	var history strings.Builder
	for _, t := range o.store.RecentTurns(req.ChildID, 5) {
		fmt.Fprintf(&history, "%s: %s\n", t.Role, t.Content)
	}
	res, err := o.provider.GenerateText(ctx, core.GenerateRequest{
		System: fmt.Sprintf(
			"You are a warm, playful companion for %s, age %d. Keep replies short, kind, and age-appropriate. Recent conversation:\n%s",
			profile.Name, profile.Age, history.String()),
		Prompt:      req.Content,
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Text)
}

// formatToolResponse turns a tool outcome into child-friendly text.
func formatToolResponse(outcome *core.ToolOutcome) string {
	switch outcome.Tool {
	case "search_educational":
		var data struct {
			Content       string   `json:"content"`
			RelatedTopics []string `json:"related_topics"`
		}
		if err := json.Unmarshal([]byte(outcome.Content), &data); err != nil || data.Content == "" {
			return outcome.Content
		}
		response := data.Content
		if len(data.RelatedTopics) > 0 {
			n := len(data.RelatedTopics)
			if n > 3 {
				n = 3
			}
			response += fmt.Sprintf(" Would you like to learn more about %s?", strings.Join(data.RelatedTopics[:n], ", "))
		}
		return response
	case "play_music":
		var data struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(outcome.Content), &data); err != nil || data.Message == "" {
			return "Here's some music for you!"
		}
		return data.Message
	default:
		return outcome.Content
	}
}

// blocked finalizes a request in the blocked terminal state with a polite
// redirect, a parent alert, and a safety event.
func (o *Orchestrator) blocked(ctx context.Context, req core.Request, profile core.ChildProfile, plan *core.Plan, result *Result, decision *core.Decision, content string) (*Result, error) {
	response := blockResponse
	if decision.Suggestion != "" {
		response = decision.Suggestion
	} else if decision.Degraded {
		response = redirectResponse
	}

	o.emitAlert(ctx, req, profile, result, decision, content)
	o.store.LogSafetyEvent(memory.SafetyEvent{
		ChildID:  req.ChildID,
		Content:  content,
		Decision: *decision,
	})

	result.Response = response
	result.State = core.StateBlocked
	o.finish(req, profile, plan, result, response)
	return result, nil
}

// emitAlert delivers a parent alert when a sink is configured, and for
// restrictive decisions also flags the result.
func (o *Orchestrator) emitAlert(ctx context.Context, req core.Request, profile core.ChildProfile, result *Result, decision *core.Decision, content string) {
	result.Alerted = true
	if o.sink == nil {
		return
	}
	alert := o.builder.Build(ctx, profile, content, *decision)
	// Delivery failure must not fail the request.
	_ = o.sink.Deliver(ctx, alert)
}

// finish records the assistant turn and appends the trace exactly once.
func (o *Orchestrator) finish(req core.Request, profile core.ChildProfile, plan *core.Plan, result *Result, response string) {
	o.store.AddTurn(req.ChildID, memory.Turn{Role: "assistant", Content: response})

	var decision core.Decision
	if result.OutputDecision != nil {
		decision = *result.OutputDecision
	} else if result.InputDecision != nil {
		decision = *result.InputDecision
	}
	o.store.AppendTrace(memory.TraceRecord{
		RequestID:   req.ID,
		ChildID:     req.ChildID,
		SessionID:   req.SessionID,
		State:       string(result.State),
		PlanSummary: plan.Summary(),
		Decision:    decision,
	})
}

func step(plan *core.Plan, kind core.StepKind, status core.StepStatus) {
	for i := range plan.Steps {
		s := &plan.Steps[i]
		if s.Kind == kind && s.Status != core.StepDone && s.Status != core.StepFailed {
			s.Status = status
			return
		}
	}
}

func findStep(plan *core.Plan, kind core.StepKind) *core.PlanStep {
	for i := range plan.Steps {
		if plan.Steps[i].Kind == kind {
			return &plan.Steps[i]
		}
	}
	return nil
}
