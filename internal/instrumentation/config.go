package instrumentation

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
)

// Config controls the telemetry of the serve command. One-shot CLI commands
// never build a provider.
type Config struct {
	// ServiceName is reported as service.name (OTEL_SERVICE_NAME).
	ServiceName string

	ServiceVersion string

	// ServiceInstanceID defaults to the hostname when empty.
	ServiceInstanceID string

	// Enabled turns metrics, tracing and audit records on (INSTRUMENTATION_ENABLED).
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none. The stdout exporters
	// write to standard error.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme, e.g. localhost:4318.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP data without TLS. Spans carry message IDs and
	// search queries, so keep it for local collectors.
	OTLPInsecure bool

	// TraceSamplingRate is the parent based ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// PrometheusEndpoint is the path of the scrape endpoint on --metrics-addr.
	PrometheusEndpoint string

	// DetailedLabels attaches the account name to tool metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled emits one audit record per tool call.
	Enabled bool

	// IncludePII logs recipient addresses and account names in clear text
	// instead of hashing them.
	IncludePII bool
}

// DefaultConfig returns the configuration used when no environment
// variables are set.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "mcp-gmail",
		ServiceVersion:     "unknown",
		Enabled:            true,
		MetricsExporter:    ExporterPrometheus,
		TracingExporter:    ExporterNone,
		TraceSamplingRate:  0.1,
		PrometheusEndpoint: "/metrics",
		AuditLogging: AuditLoggingConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv overlays the variables found by lookup on DefaultConfig.
// Unparseable values are reported instead of silently falling back, and the
// result is validated.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := envReader{lookup: lookup}
	c := DefaultConfig()

	env.str("OTEL_SERVICE_NAME", &c.ServiceName)
	env.str("OTEL_SERVICE_INSTANCE_ID", &c.ServiceInstanceID)
	env.boolean("INSTRUMENTATION_ENABLED", &c.Enabled)
	env.str("METRICS_EXPORTER", &c.MetricsExporter)
	env.str("TRACING_EXPORTER", &c.TracingExporter)
	env.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)
	env.boolean("OTEL_EXPORTER_OTLP_INSECURE", &c.OTLPInsecure)
	env.float("OTEL_TRACES_SAMPLER_ARG", &c.TraceSamplingRate)
	env.str("PROMETHEUS_ENDPOINT", &c.PrometheusEndpoint)
	env.boolean("METRICS_DETAILED_LABELS", &c.DetailedLabels)
	env.boolean("AUDIT_LOGGING_ENABLED", &c.AuditLogging.Enabled)
	env.boolean("AUDIT_LOGGING_INCLUDE_PII", &c.AuditLogging.IncludePII)

	if err := errors.Join(env.errs...); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// envReader assigns set, non-empty variables and collects parse errors.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	return v, ok && v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (r *envReader) float(key string, dst *float64) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return
	}
	*dst = f
}

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Validate checks exporter names, the sampling rate and that OTLP exporters
// have an endpoint. Empty exporter names are accepted.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %v", c.MetricsExporter, metricsExporters)
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %v", c.TracingExporter, tracingExporters)
	}
	if c.OTLPEndpoint == "" {
		switch ExporterOTLP {
		case c.TracingExporter:
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		case c.MetricsExporter:
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}
	return nil
}

// Label values shared by the recorders.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	ServiceGmail = "gmail"
	ServiceOAuth = "oauth"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
