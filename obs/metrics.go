package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce      sync.Once
	requestCounter   metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	verdictCounter   metric.Int64Counter
	decisionCounter  metric.Int64Counter
	failureCounter   metric.Int64Counter
	degradedCounter  metric.Int64Counter
	toolErrorCounter metric.Int64Counter
	heuristicCounter metric.Int64Counter

	bgOnce sync.Once
	bgCtx  context.Context
)

func installMetrics(m metric.Meter) {
	metricsOnce.Do(func() {
		if m == nil {
			return
		}
		requestCounter, _ = m.Int64Counter("finch.requests", metric.WithDescription("Requests entering the safety core"))
		latencyHistogram, _ = m.Float64Histogram("finch.latency_ms", metric.WithDescription("Operation latency (ms)"))
		verdictCounter, _ = m.Int64Counter("finch.verdicts", metric.WithDescription("Classifier verdicts by label"))
		decisionCounter, _ = m.Int64Counter("finch.decisions", metric.WithDescription("Safety decisions by action"))
		failureCounter, _ = m.Int64Counter("finch.classifier.failures", metric.WithDescription("Classifier failures and timeouts"))
		degradedCounter, _ = m.Int64Counter("finch.evaluations.degraded", metric.WithDescription("Evaluations decided by the degraded fallback"))
		toolErrorCounter, _ = m.Int64Counter("finch.tool.errors", metric.WithDescription("Tool routing and execution failures"))
		heuristicCounter, _ = m.Int64Counter("finch.intent.heuristic", metric.WithDescription("Intent classifications served by the heuristic fallback"))
	})
}

func recordRequest(attrs ...attribute.KeyValue) {
	add(requestCounter, attrs...)
}

func recordLatency(ms float64, attrs ...attribute.KeyValue) {
	if latencyHistogram == nil {
		return
	}
	if len(attrs) > 0 {
		latencyHistogram.Record(backgroundContext(), ms, metric.WithAttributes(attrs...))
	} else {
		latencyHistogram.Record(backgroundContext(), ms)
	}
}

// RecordVerdict counts one classifier verdict.
func RecordVerdict(classifier, label string) {
	add(verdictCounter,
		attribute.String("finch.classifier", classifier),
		attribute.String("finch.label", label),
	)
}

// RecordDecision counts one aggregated decision.
func RecordDecision(action string, degraded bool) {
	add(decisionCounter,
		attribute.String("finch.action", action),
		attribute.Bool("finch.degraded", degraded),
	)
	if degraded {
		add(degradedCounter)
	}
}

// RecordClassifierFailure counts an adapter failure or timeout.
func RecordClassifierFailure(classifier string) {
	add(failureCounter, attribute.String("finch.classifier", classifier))
}

// RecordToolError counts a routing or execution failure.
func RecordToolError(tool string) {
	add(toolErrorCounter, attribute.String("finch.tool", tool))
}

// RecordHeuristicIntent counts a fallback intent classification.
func RecordHeuristicIntent() {
	add(heuristicCounter)
}

func add(counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	if len(attrs) > 0 {
		counter.Add(backgroundContext(), 1, metric.WithAttributes(attrs...))
	} else {
		counter.Add(backgroundContext(), 1)
	}
}

func backgroundContext() context.Context {
	bgOnce.Do(func() {
		bgCtx = context.Background()
	})
	return bgCtx
}
