package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	ctx := context.Background()
	metrics := newTestProvider(t).Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordGoogleAPIOperation(ctx, ServiceGmail, "list_threads", StatusSuccess, 200*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceGmail, "modify_thread", StatusError, 500*time.Millisecond)
}

func TestMetrics_RecordCacheAndTriage(t *testing.T) {
	ctx := context.Background()
	metrics := newTestProvider(t).Metrics()

	for _, result := range []string{CacheHit, CacheMiss, CacheStale} {
		metrics.RecordCacheLookup(ctx, result)
	}
	metrics.RecordCacheWrite(ctx, StatusSuccess)
	metrics.RecordCacheWrite(ctx, StatusError)

	for _, outcome := range []string{OutcomeMoved, OutcomeDeclined, OutcomeUnmatched, OutcomeSkipped} {
		metrics.RecordTriageOutcome(ctx, outcome)
	}
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx := context.Background()
	metrics := newTestProvider(t).Metrics()

	metrics.RecordToolInvocation(ctx, "triage_list_labels", StatusSuccess, 100*time.Millisecond)
	metrics.RecordToolInvocation(ctx, "triage_modify_labels", StatusError, 50*time.Millisecond)
}

func TestMetrics_ZeroAndNilAreNoOps(t *testing.T) {
	ctx := context.Background()

	for name, m := range map[string]*Metrics{"zero": {}, "nil": nil} {
		t.Run(name, func(t *testing.T) {
			m.RecordGoogleAPIOperation(ctx, ServiceGmail, "get_thread", StatusSuccess, time.Second)
			m.RecordCacheLookup(ctx, CacheHit)
			m.RecordCacheWrite(ctx, StatusSuccess)
			m.RecordTriageOutcome(ctx, OutcomeMoved)
			m.RecordToolInvocation(ctx, "triage_get_thread", StatusSuccess, time.Second)
		})
	}
}
