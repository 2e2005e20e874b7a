package instrumentation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(metrics, tracing string) Config {
	return Config{
		ServiceName:        "mcp-gmail-test",
		ServiceVersion:     "1.0.0",
		Enabled:            true,
		MetricsExporter:    metrics,
		TracingExporter:    tracing,
		TraceSamplingRate:  1,
		PrometheusEndpoint: "/metrics",
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "mcp-gmail-test"})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.False(t, provider.PrometheusEnabled())
	assert.Nil(t, provider.MetricsHandler())
	require.NotNil(t, provider.Metrics())
	assert.NotNil(t, provider.Tracer("test"))

	// The no-op recorder accepts calls.
	provider.Metrics().RecordToolInvocation(context.Background(), "search_emails", StatusSuccess, time.Millisecond)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name       string
		metrics    string
		tracing    string
		prometheus bool
		wantErr    string
	}{
		{name: "prometheus", metrics: ExporterPrometheus, tracing: ExporterNone, prometheus: true},
		{name: "stdout", metrics: ExporterStdout, tracing: ExporterStdout},
		{name: "unknown metrics exporter", metrics: "statsd", tracing: ExporterNone, wantErr: "unsupported metrics exporter"},
		{name: "unknown tracing exporter", metrics: ExporterPrometheus, tracing: "jaeger", wantErr: "unsupported tracing exporter"},
		{name: "otlp tracing without endpoint", metrics: ExporterPrometheus, tracing: ExporterOTLP, wantErr: "OTLP endpoint is required"},
		{name: "otlp metrics without endpoint", metrics: ExporterOTLP, tracing: ExporterNone, wantErr: "OTLP endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			config := testConfig(tt.metrics, tt.tracing)
			provider, err := NewProvider(ctx, config, WithDiagnosticsWriter(&bytes.Buffer{}))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

			assert.True(t, provider.Enabled())
			assert.NotNil(t, provider.Metrics())
			assert.Equal(t, tt.prometheus, provider.PrometheusEnabled())
			assert.Equal(t, tt.prometheus, provider.MetricsHandler() != nil)
		})
	}
}

func TestProvider_MetricsHandler(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, testConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	provider.Metrics().RecordGoogleAPIOperation(ctx, ServiceGmail, "messages.list", StatusSuccess, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	provider.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "gmail_api_operations_total")
	assert.Contains(t, body, `operation="messages.list"`)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `service_name="mcp-gmail-test"`)
}

func TestProvider_MetricsPath(t *testing.T) {
	config := testConfig(ExporterPrometheus, ExporterNone)
	config.PrometheusEndpoint = ""
	provider, err := NewProvider(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	assert.Equal(t, "/metrics", provider.MetricsPath())

	config.PrometheusEndpoint = "/internal/metrics"
	provider, err = NewProvider(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	assert.Equal(t, "/internal/metrics", provider.MetricsPath())
}

func TestProvider_StdoutGoesToDiagnosticsWriter(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	provider, err := NewProvider(ctx, testConfig(ExporterStdout, ExporterStdout), WithDiagnosticsWriter(&buf))
	require.NoError(t, err)

	_, span := provider.Tracer("test").Start(ctx, "tool.search_emails")
	span.End()

	require.NoError(t, provider.Shutdown(ctx))
	assert.Contains(t, buf.String(), "tool.search_emails")
	assert.Contains(t, buf.String(), "mcp-gmail-test")
}
