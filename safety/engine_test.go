package safety

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finchkit/finch/core"
)

type fakeClassifier struct {
	name    string
	verdict core.Verdict
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(ctx context.Context, payload string, ec core.EvalContext) (core.Verdict, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return core.Verdict{}, ctx.Err()
		}
	}
	if f.err != nil {
		return core.Verdict{}, f.err
	}
	return f.verdict, nil
}

func safeVerdict(name string, confidence float64) *fakeClassifier {
	return &fakeClassifier{name: name, verdict: core.Verdict{
		Label: core.LabelSafe, Confidence: confidence, Category: core.CategoryNone,
	}}
}

func unsafeVerdict(name string, cat core.Category, sev core.Severity, confidence float64) *fakeClassifier {
	return &fakeClassifier{name: name, verdict: core.Verdict{
		Label: core.LabelUnsafe, Confidence: confidence, Category: cat, Severity: sev,
	}}
}

func newEngine(t *testing.T, adapters ...Adapter) *Engine {
	t.Helper()
	e, err := New(DefaultPolicy(), adapters)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return e
}

func adapter(c core.Classifier) Adapter {
	return Adapter{Classifier: c, Timeout: 200 * time.Millisecond}
}

func TestAllSafeAllows(t *testing.T) {
	e := newEngine(t,
		adapter(safeVerdict("pattern", 0.7)),
		adapter(safeVerdict("semantic", 0.9)),
	)
	d, err := e.Evaluate(context.Background(), "why do leaves fall in autumn?", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionAllow {
		t.Fatalf("expected allow, got %s", d.Action)
	}
	if d.Degraded {
		t.Fatalf("expected degraded=false")
	}
}

func TestUnsafeAboveThresholdBlocks(t *testing.T) {
	e := newEngine(t,
		adapter(unsafeVerdict("pattern", core.CategoryDangerous, core.SeverityCritical, 0.95)),
		adapter(safeVerdict("semantic", 0.9)),
	)
	d, err := e.Evaluate(context.Background(), "how do i make a bomb?", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionBlock {
		t.Fatalf("expected block, got %s", d.Action)
	}
	if d.TriggeringCategory != core.CategoryDangerous {
		t.Fatalf("unexpected category %s", d.TriggeringCategory)
	}
	if !d.ParentAlert {
		t.Fatalf("expected a parent alert for a critical block")
	}
	if !d.Traceable() {
		t.Fatalf("restrictive decision must carry a non-safe verdict")
	}
}

func TestSoftCategoryRewrites(t *testing.T) {
	e := newEngine(t,
		adapter(unsafeVerdict("complexity", core.CategoryAgeUnfit, core.SeverityLow, 0.8)),
	)
	d, err := e.Evaluate(context.Background(), "quantum chromodynamics lecture", core.EvalContext{Output: true})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionRewrite {
		t.Fatalf("expected rewrite, got %s", d.Action)
	}
}

func TestSingleFailureDoesNotDegrade(t *testing.T) {
	e := newEngine(t,
		adapter(safeVerdict("pattern", 0.9)),
		adapter(&fakeClassifier{name: "semantic", err: errors.New("quota exhausted")}),
	)
	d, err := e.Evaluate(context.Background(), "tell me about dinosaurs", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionAllow {
		t.Fatalf("expected allow, got %s", d.Action)
	}
	if d.Degraded {
		t.Fatalf("engine must not degrade while one adapter succeeded")
	}
	var failed int
	for _, v := range d.Verdicts {
		if v.Failed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed verdict, got %d", failed)
	}
}

func TestFailedAdapterRetriesOnce(t *testing.T) {
	failing := &fakeClassifier{name: "semantic", err: errors.New("unavailable")}
	e := newEngine(t, adapter(safeVerdict("pattern", 0.9)), adapter(failing))
	if _, err := e.Evaluate(context.Background(), "hello", core.EvalContext{}); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if got := failing.calls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}
}

func TestTotalFailureDegradesToBlock(t *testing.T) {
	e := newEngine(t,
		adapter(&fakeClassifier{name: "a", err: errors.New("down")}),
		adapter(&fakeClassifier{name: "b", err: errors.New("down")}),
	)
	d, err := e.Evaluate(context.Background(), "tell me about volcanoes", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionBlock {
		t.Fatalf("expected block, got %s", d.Action)
	}
	if !d.Degraded {
		t.Fatalf("expected degraded decision")
	}
	for _, v := range d.Verdicts {
		if !v.Failed {
			t.Fatalf("expected only failed verdicts, got %+v", v)
		}
	}
}

func TestTotalFailureAllowsAllowlistedPhrase(t *testing.T) {
	e := newEngine(t, adapter(&fakeClassifier{name: "a", err: errors.New("down")}))
	d, err := e.Evaluate(context.Background(), "hello", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionAllow || !d.Degraded {
		t.Fatalf("expected degraded allow, got %s degraded=%v", d.Action, d.Degraded)
	}
}

func TestTieBreakRestrictiveWins(t *testing.T) {
	// Below threshold and within the margin: unsafe outranks safe.
	e := newEngine(t,
		adapter(safeVerdict("pattern", 0.5)),
		adapter(unsafeVerdict("toxicity", core.CategoryHarassment, core.SeverityMedium, 0.45)),
	)
	d, err := e.Evaluate(context.Background(), "borderline", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action == core.ActionAllow {
		t.Fatalf("restrictive verdict must win inside the margin")
	}
}

func TestTieBreakSafeWinsBeyondMargin(t *testing.T) {
	e := newEngine(t,
		adapter(safeVerdict("pattern", 0.95)),
		adapter(unsafeVerdict("toxicity", core.CategoryHarassment, core.SeverityLow, 0.2)),
	)
	d, err := e.Evaluate(context.Background(), "borderline", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionAllow {
		t.Fatalf("expected allow when safe confidence clears the margin, got %s", d.Action)
	}
}

func TestLatencyBoundedByAdapterTimeout(t *testing.T) {
	slow := &fakeClassifier{name: "slow", delay: 5 * time.Second}
	e := newEngine(t,
		Adapter{Classifier: slow, Timeout: 50 * time.Millisecond, RetryTimeout: 25 * time.Millisecond},
		adapter(safeVerdict("pattern", 0.9)),
	)
	start := time.Now()
	d, err := e.Evaluate(context.Background(), "hello there", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("evaluation took %v, expected it bounded by adapter timeouts", elapsed)
	}
	if d.Degraded {
		t.Fatalf("expected degraded=false with one live adapter")
	}
}

func TestCanceledContextSurfacesNoDecision(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(t, adapter(safeVerdict("pattern", 0.9)))
	_, err := e.Evaluate(ctx, "hello", core.EvalContext{})
	if !core.IsCanceled(err) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestNewRejectsEmptyAdapterSet(t *testing.T) {
	_, err := New(DefaultPolicy(), nil)
	if !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsDuplicateAdapters(t *testing.T) {
	_, err := New(DefaultPolicy(), []Adapter{
		adapter(safeVerdict("pattern", 0.9)),
		adapter(safeVerdict("pattern", 0.9)),
	})
	if !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeReviewSink struct {
	content  string
	childID  string
	verdicts []core.Verdict
	calls    int
}

func (f *fakeReviewSink) Enqueue(content, childID string, verdicts []core.Verdict) string {
	f.calls++
	f.content = content
	f.childID = childID
	f.verdicts = verdicts
	return "review-1"
}

func TestDisagreementQueuesForReview(t *testing.T) {
	sink := &fakeReviewSink{}
	e, err := New(DefaultPolicy(), []Adapter{
		adapter(safeVerdict("pattern", 0.6)),
		adapter(unsafeVerdict("semantic", core.CategoryAgeUnfit, core.SeverityMedium, 0.5)),
	}, WithReviewQueue(sink))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ec := core.EvalContext{Profile: core.ChildProfile{ChildID: "child-1"}}
	d, err := e.Evaluate(context.Background(), "is dynamite a tool?", ec)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action == core.ActionAllow {
		t.Fatalf("expected a restrictive action on disagreement, got %s", d.Action)
	}
	if d.ReviewID != "review-1" {
		t.Fatalf("ReviewID = %q, want the queued item id", d.ReviewID)
	}
	if sink.calls != 1 || sink.childID != "child-1" || sink.content != "is dynamite a tool?" {
		t.Fatalf("sink saw calls=%d child=%q content=%q", sink.calls, sink.childID, sink.content)
	}
	if len(sink.verdicts) != 2 {
		t.Fatalf("sink received %d verdicts, want 2", len(sink.verdicts))
	}
}

func TestDegradedFallbackQueuesForReview(t *testing.T) {
	sink := &fakeReviewSink{}
	broken := &fakeClassifier{name: "pattern", err: errors.New("upstream down")}
	e, err := New(DefaultPolicy(), []Adapter{adapter(broken)}, WithReviewQueue(sink))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d, err := e.Evaluate(context.Background(), "what sound do owls make?", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !d.Degraded {
		t.Fatalf("expected a degraded decision")
	}
	if d.ReviewID != "review-1" || sink.calls != 1 {
		t.Fatalf("ReviewID = %q, sink calls = %d; want queued once", d.ReviewID, sink.calls)
	}
}

func TestCleanDecisionsSkipReview(t *testing.T) {
	sink := &fakeReviewSink{}
	e, err := New(DefaultPolicy(), []Adapter{
		adapter(safeVerdict("pattern", 0.9)),
		adapter(unsafeVerdict("semantic", core.CategoryDangerous, core.SeverityCritical, 0.95)),
	}, WithReviewQueue(sink))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d, err := e.Evaluate(context.Background(), "how do i make a bomb?", core.EvalContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if d.Action != core.ActionBlock {
		t.Fatalf("expected block, got %s", d.Action)
	}
	if d.ReviewID != "" || sink.calls != 0 {
		t.Fatalf("above-threshold block must not queue a review, got id %q calls %d", d.ReviewID, sink.calls)
	}
}
