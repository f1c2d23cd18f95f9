// Package instrumentation provides OpenTelemetry instrumentation for mailtriage.
//
// # Metrics
//
// Google API:
//   - google_api_operations_total: Google API calls by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API call durations
//
// Thread cache:
//   - thread_cache_lookups_total: Lookups by result (hit, miss, stale)
//   - thread_cache_writes_total: Writes by status
//
// Triage:
//   - triage_threads_total: Threads seen by the triage driver, by outcome
//     (moved, declined, unmatched, skipped)
//
// MCP tools:
//   - mcp_tool_invocations_total: Tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of tool durations
//
// # Tracing
//
// Spans are created for Google API calls (google.<service>.<operation>) and
// MCP tool invocations (tool.<name>).
//
// # Configuration
//
// Instrumentation is off for batch runs unless enabled:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: mailtriage)
//
// With the Prometheus exporter, a batch run can dump its metrics with
// Provider.WriteMetricsFile for a node_exporter textfile collector.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordGoogleAPIOperation(ctx, "gmail", "get_thread", "success", time.Since(start))
package instrumentation
