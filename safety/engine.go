// Package safety runs the configured classifier adapters over a payload and
// aggregates their verdicts into one actionable decision.
package safety

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/obs"
)

// Engine fans a payload out to every configured adapter concurrently, bounds
// each by its own timeout, and merges the surviving verdicts under a
// most-restrictive-wins policy. Total latency is the max of the per-adapter
// budgets, not their sum.
type Engine struct {
	adapters  []Adapter
	policy    Policy
	heuristic Heuristic
	reviews   ReviewSink
}

// ReviewSink receives gray-area evaluations for human review: degraded
// fallbacks and below-threshold disagreements the classifiers could not
// settle cleanly. The returned id travels on the decision so the outcome can
// be looked up once a reviewer rules.
type ReviewSink interface {
	Enqueue(content, childID string, verdicts []core.Verdict) string
}

// Option configures the engine.
type Option func(*Engine)

// WithHeuristic overrides the degraded-mode fallback.
func WithHeuristic(h Heuristic) Option {
	return func(e *Engine) { e.heuristic = h }
}

// WithReviewQueue routes uncertain evaluations to a human review sink.
func WithReviewQueue(sink ReviewSink) Option {
	return func(e *Engine) { e.reviews = sink }
}

// New constructs the engine. An empty adapter set is a configuration error:
// the engine must never run on fallback alone by construction.
func New(policy Policy, adapters []Adapter, opts ...Option) (*Engine, error) {
	if len(adapters) == 0 {
		return nil, core.NewError(core.ErrConfiguration, "safety engine requires at least one classifier adapter")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, a := range adapters {
		if a.Classifier == nil {
			return nil, core.NewError(core.ErrConfiguration, "nil classifier adapter")
		}
		name := a.Classifier.Name()
		if seen[name] {
			return nil, core.NewError(core.ErrConfiguration, "duplicate classifier adapter "+name)
		}
		seen[name] = true
	}
	e := &Engine{adapters: adapters, policy: policy, heuristic: DefaultHeuristic()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs every adapter over the payload and aggregates the verdicts.
// Adapter failures are absorbed as failed verdicts; the only error returned
// is cancellation of the owning context, in which case no partial decision is
// surfaced.
func (e *Engine) Evaluate(ctx context.Context, payload string, ec core.EvalContext) (core.Decision, error) {
	ctx, recorder := obs.StartRequest(ctx, "safety.Evaluate",
		attribute.Bool("finch.output_check", ec.Output),
	)
	start := time.Now()

	verdicts := make([]core.Verdict, len(e.adapters))
	var wg sync.WaitGroup
	for i, adapter := range e.adapters {
		wg.Add(1)
		go func(idx int, a Adapter) {
			defer wg.Done()
			verdicts[idx] = e.invoke(ctx, a, payload, ec)
		}(i, adapter)
	}
	wg.Wait()

	// Session teardown: in-flight results are discarded, never surfaced.
	if err := ctx.Err(); err != nil {
		canceled := core.NewError(core.ErrCanceled, "evaluation canceled", core.WithWrapped(err))
		recorder.End(canceled)
		return core.Decision{}, canceled
	}

	decision := e.aggregate(payload, ec, verdicts)
	decision.LatencyMS = time.Since(start).Milliseconds()
	obs.RecordDecision(string(decision.Action), decision.Degraded)
	recorder.AddAttributes(
		attribute.String("finch.action", string(decision.Action)),
		attribute.Bool("finch.degraded", decision.Degraded),
	)
	recorder.End(nil)
	return decision, nil
}

// invoke runs one adapter bounded by its timeout, retrying once at a reduced
// timeout before counting the adapter as failed. Retries happen only at this
// boundary so total evaluation latency stays bounded.
func (e *Engine) invoke(ctx context.Context, a Adapter, payload string, ec core.EvalContext) core.Verdict {
	primary, retry := a.timeouts()
	name := a.Classifier.Name()

	verdict, err := e.attempt(ctx, a, payload, ec, primary)
	if err != nil && ctx.Err() == nil {
		verdict, err = e.attempt(ctx, a, payload, ec, retry)
	}
	if err != nil {
		obs.RecordClassifierFailure(name)
		return core.Verdict{Classifier: name, Failed: true, Reason: err.Error()}
	}
	obs.RecordVerdict(name, string(verdict.Label))
	return verdict
}

func (e *Engine) attempt(ctx context.Context, a Adapter, payload string, ec core.EvalContext, timeout time.Duration) (core.Verdict, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	verdict, err := a.Classifier.Classify(attemptCtx, payload, ec)
	if err != nil {
		return core.Verdict{}, core.WrapError(err, core.ErrClassifierUnavailable)
	}
	verdict.Classifier = a.Classifier.Name()
	verdict.LatencyMS = time.Since(start).Milliseconds()
	return verdict, nil
}

// aggregate applies the most-restrictive-wins policy over the collected
// verdicts. Fallback and below-threshold-disagreement outcomes are queued
// for human review when a sink is configured.
func (e *Engine) aggregate(payload string, ec core.EvalContext, verdicts []core.Verdict) core.Decision {
	live := verdicts[:0:0]
	for _, v := range verdicts {
		if !v.Failed {
			live = append(live, v)
		}
	}

	// Total classifier unavailability: deterministic conservative fallback.
	if len(live) == 0 {
		decision := e.heuristic.Decide(payload)
		decision.Verdicts = verdicts
		decision.ReviewID = e.enqueueReview(payload, ec, verdicts)
		return decision
	}

	// Any non-failed verdict above its category threshold decides outright.
	var triggering *core.Verdict
	for i := range live {
		v := &live[i]
		if !v.Unsafe() {
			continue
		}
		cp := e.policy.For(v.Category)
		if v.Confidence < cp.Threshold {
			continue
		}
		if triggering == nil || moreRestrictive(*v, *triggering) {
			triggering = v
		}
	}
	if triggering != nil {
		cp := e.policy.For(triggering.Category)
		return core.Decision{
			Action:             cp.Action,
			TriggeringCategory: triggering.Category,
			Verdicts:           verdicts,
			Reason:             triggering.Reason,
			Suggestion:         triggering.Suggestion,
			ParentAlert:        triggering.Severity.Rank() >= core.SeverityHigh.Rank() || cp.Action == core.ActionBlock,
		}
	}

	// Below-threshold disagreement: the restrictive side wins unless a safe
	// verdict beats it by the configured margin.
	var worst *core.Verdict
	var bestSafe float64
	for i := range live {
		v := &live[i]
		if v.Unsafe() {
			if worst == nil || moreRestrictive(*v, *worst) {
				worst = v
			}
			continue
		}
		if v.Confidence > bestSafe {
			bestSafe = v.Confidence
		}
	}
	if worst != nil && bestSafe-worst.Confidence < e.policy.ConfidenceMargin {
		cp := e.policy.For(worst.Category)
		return core.Decision{
			Action:             cp.Action,
			TriggeringCategory: worst.Category,
			Verdicts:           verdicts,
			Reason:             worst.Reason,
			Suggestion:         worst.Suggestion,
			ParentAlert:        worst.Severity.Rank() >= core.SeverityHigh.Rank(),
			ReviewID:           e.enqueueReview(payload, ec, verdicts),
		}
	}

	return core.Decision{
		Action:   core.ActionAllow,
		Verdicts: verdicts,
		Reason:   "no safety concerns detected",
	}
}

func (e *Engine) enqueueReview(payload string, ec core.EvalContext, verdicts []core.Verdict) string {
	if e.reviews == nil {
		return ""
	}
	return e.reviews.Enqueue(payload, ec.Profile.ChildID, verdicts)
}

func moreRestrictive(a, b core.Verdict) bool {
	if a.Severity.Rank() != b.Severity.Rank() {
		return a.Severity.Rank() > b.Severity.Rank()
	}
	return a.Confidence > b.Confidence
}
