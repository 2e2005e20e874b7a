package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
	attrBreaker   = "breaker"
	attrState     = "state"
)

// Bucket boundaries in seconds. Gmail calls include retries and sends with
// attachments, so the API and tool buckets reach 30s.
var (
	httpBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}
	apiBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// Metrics records what the server does against Gmail. A nil *Metrics is
// valid and records nothing, as is the zero value returned by a disabled
// provider.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram
	googleAPIRetriesTotal      metric.Int64Counter
	circuitBreakerTransitions  metric.Int64Counter

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	serviceHandles metric.Int64UpDownCounter

	// detailedLabels adds the account to tool metrics.
	detailedLabels bool
}

type counterDef struct {
	dst        *metric.Int64Counter
	name, desc string
	unit       string
}

type histogramDef struct {
	dst        *metric.Float64Histogram
	name, desc string
	buckets    []float64
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	counters := []counterDef{
		{&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests to the metrics server", "{request}"},
		{&m.googleAPIOperationsTotal, "gmail_api_operations_total", "Total number of Gmail API operations", "{operation}"},
		{&m.googleAPIRetriesTotal, "gmail_api_retries_total", "Total number of Gmail API retries after transient failures", "{retry}"},
		{&m.circuitBreakerTransitions, "gmail_circuit_breaker_transitions_total", "Circuit breaker state transitions", "{transition}"},
		{&m.oauthAuthTotal, "oauth_auth_total", "Total number of interactive OAuth authorizations", "{attempt}"},
		{&m.oauthTokenRefreshTotal, "oauth_token_refresh_total", "Total number of OAuth token refresh attempts", "{attempt}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
	}
	for _, d := range counters {
		c, err := meter.Int64Counter(d.name, metric.WithDescription(d.desc), metric.WithUnit(d.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", d.name, err)
		}
		*d.dst = c
	}

	histograms := []histogramDef{
		{&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds", httpBuckets},
		{&m.googleAPIOperationDuration, "gmail_api_operation_duration_seconds", "Gmail API operation duration in seconds, retries included", apiBuckets},
		{&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds", apiBuckets},
	}
	for _, d := range histograms {
		h, err := meter.Float64Histogram(d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(d.buckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", d.name, err)
		}
		*d.dst = h
	}

	var err error
	m.serviceHandles, err = meter.Int64UpDownCounter("gmail_service_handles",
		metric.WithDescription("Number of cached per-account Gmail service handles"),
		metric.WithUnit("{handle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_service_handles gauge: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records a request served by the metrics server.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records one invoker call, e.g. service "gmail" and
// operation "messages.send". duration includes the retries.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIRetry counts one retry of operation after a transient failure.
func (m *Metrics) RecordGoogleAPIRetry(ctx context.Context, service, operation string) {
	if m == nil || m.googleAPIRetriesTotal == nil {
		return
	}

	m.googleAPIRetriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
	))
}

// RecordCircuitBreakerState counts a transition of the named breaker into state.
func (m *Metrics) RecordCircuitBreakerState(ctx context.Context, breaker, state string) {
	if m == nil || m.circuitBreakerTransitions == nil {
		return
	}

	m.circuitBreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrBreaker, breaker),
		attribute.String(attrState, state),
	))
}

// RecordOAuthAuth counts a loopback authorization by result.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh counts a refresh by result: success, failure or
// expired (the refresh token itself was revoked).
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records a tool call without account information.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithAccount(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithAccount records a tool call. The account label is
// attached only with detailed labels.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// AddServiceHandles adjusts the cached service handle gauge by delta.
func (m *Metrics) AddServiceHandles(ctx context.Context, delta int64) {
	if m == nil || m.serviceHandles == nil {
		return
	}

	m.serviceHandles.Add(ctx, delta)
}
