// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the mcp-gmail server.
//
// # Metrics
//
// Gmail API:
//   - gmail_api_operations_total: Counter of API calls by service, operation, status
//   - gmail_api_operation_duration_seconds: Histogram of call durations, retries included
//   - gmail_api_retries_total: Counter of retries after 429/5xx responses
//   - gmail_circuit_breaker_transitions_total: Counter of breaker state changes
//
// OAuth:
//   - oauth_auth_total: Counter of interactive authorizations by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// MCP tools and server:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//   - gmail_service_handles: Number of cached per-account service handles
//   - http_requests_total, http_request_duration_seconds: metrics server requests
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and Gmail API
// calls (google.gmail.<operation>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation for serve (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mcp-gmail)
//   - PROMETHEUS_ENDPOINT: scrape path on --metrics-addr (default: /metrics)
//   - METRICS_DETAILED_LABELS: attach the account name to tool metrics
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: tool call audit records
//
// Malformed values are rejected by ConfigFromEnv. The stdout exporters write
// to standard error.
//
// # Example Usage
//
//	config, err := instrumentation.ConfigFromEnv(os.LookupEnv)
//	if err != nil {
//		return err
//	}
//	provider, err := instrumentation.NewProvider(ctx, config)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordGoogleAPIOperation(ctx, "gmail", "messages.list", "success", time.Since(start))
package instrumentation
