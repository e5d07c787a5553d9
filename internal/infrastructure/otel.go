package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"gradecli/internal/config"
)

const (
	ServiceName = "gradecli"
	MeterName   = "gradecli"
)

// TelemetryOptions selects the exporters. File paths must be resolved.
type TelemetryOptions struct {
	EnableMetrics bool
	EnableTracing bool
	MetricsFile   string
	TraceFile     string
}

// TelemetryOptionsFrom combines the telemetry switches with resolved paths.
func TelemetryOptionsFrom(cfg config.TelemetryConfig, paths *config.Paths) TelemetryOptions {
	return TelemetryOptions{
		EnableMetrics: cfg.EnableMetrics,
		EnableTracing: cfg.EnableTracing,
		MetricsFile:   paths.MetricsFile,
		TraceFile:     paths.TraceFile,
	}
}

// Telemetry holds the OpenTelemetry providers for one CLI invocation.
// Disabled signals fall back to no-op providers so callers never branch.
type Telemetry struct {
	opts           TelemetryOptions
	registry       *promclient.Registry
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	traceFile      *os.File
	logger         *slog.Logger

	Tracer  trace.Tracer
	Metrics *GradingMetrics
}

// InitializeTelemetry builds the providers described by opts.
func InitializeTelemetry(opts TelemetryOptions, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Telemetry{opts: opts, logger: logger}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(config.AppVersion),
	)

	var meter metric.Meter
	if opts.EnableMetrics {
		t.registry = promclient.NewRegistry()
		exporter, err := prometheus.New(
			prometheus.WithRegisterer(t.registry),
			prometheus.WithoutTargetInfo(),
			prometheus.WithoutScopeInfo(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		meter = t.meterProvider.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
	} else {
		meter = metricnoop.NewMeterProvider().Meter(MeterName)
	}

	metrics, err := NewGradingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	t.Metrics = metrics

	if opts.EnableTracing {
		if err := t.initializeTracing(res); err != nil {
			return nil, err
		}
	} else {
		t.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
	}

	logger.Debug("Telemetry initialized",
		slog.Bool("metrics_enabled", opts.EnableMetrics),
		slog.Bool("tracing_enabled", opts.EnableTracing))
	return t, nil
}

func (t *Telemetry) initializeTracing(res *resource.Resource) error {
	if t.opts.TraceFile == "" {
		return fmt.Errorf("trace file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(t.opts.TraceFile), 0o755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.OpenFile(t.opts.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	t.traceFile = f
	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.Tracer = t.tracerProvider.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
	return nil
}

// Flush writes the current metric values to the textfile, if metrics are on.
func (t *Telemetry) Flush() error {
	if t == nil || t.registry == nil || t.opts.MetricsFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.opts.MetricsFile), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := promclient.WriteToTextfile(t.opts.MetricsFile, t.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// Shutdown flushes metrics and spans and releases the trace file.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error

	if err := t.Flush(); err != nil {
		errs = append(errs, err)
	}
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if t.traceFile != nil {
		if err := t.traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("trace file close: %w", err))
		}
		t.traceFile = nil
	}
	return errors.Join(errs...)
}

// GradingMetrics holds the scoring and archive instruments.
type GradingMetrics struct {
	SheetsScored     metric.Int64Counter
	RowsDropped      metric.Int64Counter
	Advisories       metric.Int64Counter
	DocumentsWritten metric.Int64Counter
	CorruptDocuments metric.Int64Counter
	ScoringDuration  metric.Float64Histogram
	FilesFailed      metric.Int64Counter
}

// NewGradingMetrics registers the instruments on meter.
func NewGradingMetrics(meter metric.Meter) (*GradingMetrics, error) {
	sheetsScored, err := meter.Int64Counter(
		"sheets_scored",
		metric.WithDescription("Total number of sheets scored"),
	)
	if err != nil {
		return nil, err
	}

	rowsDropped, err := meter.Int64Counter(
		"rows_dropped",
		metric.WithDescription("Total number of rows dropped during normalization"),
	)
	if err != nil {
		return nil, err
	}

	advisories, err := meter.Int64Counter(
		"advisories",
		metric.WithDescription("Total number of scoring advisories"),
	)
	if err != nil {
		return nil, err
	}

	written, err := meter.Int64Counter(
		"archive_documents_written",
		metric.WithDescription("Total number of archive documents written"),
	)
	if err != nil {
		return nil, err
	}

	corrupt, err := meter.Int64Counter(
		"archive_corrupt_documents",
		metric.WithDescription("Total number of corrupt archive documents skipped while listing"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"scoring_duration",
		metric.WithDescription("Time to score one input file"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter(
		"files_failed",
		metric.WithDescription("Total number of input files that failed to score"),
	)
	if err != nil {
		return nil, err
	}

	return &GradingMetrics{
		SheetsScored:     sheetsScored,
		RowsDropped:      rowsDropped,
		Advisories:       advisories,
		DocumentsWritten: written,
		CorruptDocuments: corrupt,
		ScoringDuration:  duration,
		FilesFailed:      failed,
	}, nil
}

// RecordSheet records one scored sheet.
func (m *GradingMetrics) RecordSheet(ctx context.Context, sheet string, dropped, advisories int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("sheet", sheet))
	m.SheetsScored.Add(ctx, 1, attrs)
	if dropped > 0 {
		m.RowsDropped.Add(ctx, int64(dropped), attrs)
	}
	if advisories > 0 {
		m.Advisories.Add(ctx, int64(advisories), attrs)
	}
}

// RecordFile records the outcome of scoring one input file.
func (m *GradingMetrics) RecordFile(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := attribute.String("status", "success")
	if err != nil {
		status = attribute.String("status", "failure")
		m.FilesFailed.Add(ctx, 1)
	}
	m.ScoringDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(status))
}

// RecordDocumentWritten counts one archive write.
func (m *GradingMetrics) RecordDocumentWritten(ctx context.Context) {
	if m == nil {
		return
	}
	m.DocumentsWritten.Add(ctx, 1)
}

// RecordCorruptDocuments counts documents skipped by a listing.
func (m *GradingMetrics) RecordCorruptDocuments(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CorruptDocuments.Add(ctx, int64(n))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}
