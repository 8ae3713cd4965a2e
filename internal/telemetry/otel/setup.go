// Package otel wires OpenTelemetry for the auth service: OTLP/gRPC trace, metric and log providers
// described by a storehub resource, and an audit sink that turns audit events into log records and
// counter increments.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.uber.org/zap"

	"storehub/backend/internal/audit"
)

const defaultMetricInterval = 10 * time.Second

// Config selects where telemetry goes and how the service identifies itself.
type Config struct {
	// Endpoint is the OTLP gRPC collector as host:port or URL; a path is ignored. Empty disables export.
	Endpoint string
	// Insecure forces plaintext even for https endpoints (OTEL_EXPORTER_OTLP_INSECURE).
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	// Environment is reported as deployment.environment.name.
	Environment string
	// MetricInterval is the push interval of the metric reader; 10s when zero.
	MetricInterval time.Duration
}

// Enabled reports whether telemetry is exported.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Providers holds the trace, metric and log providers of the process.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	// shutdown runs in reverse registration order.
	shutdown []func(context.Context) error
	logger   *zap.Logger
}

// NewProviders builds the providers for cfg. When export is disabled the providers record nothing
// and Shutdown is a no-op. logger may be nil.
func NewProviders(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Providers{logger: logger}
	if !cfg.Enabled() {
		p.TracerProvider = sdktrace.NewTracerProvider()
		p.MeterProvider = metric.NewMeterProvider()
		p.LoggerProvider = sdklog.NewLoggerProvider()
		return p, nil
	}

	target, plaintext, err := collectorTarget(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	plaintext = plaintext || cfg.Insecure
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	if err := p.startTracing(ctx, target, plaintext, res); err != nil {
		return nil, p.abort(ctx, err)
	}
	if err := p.startMetrics(ctx, target, plaintext, res, cfg.MetricInterval); err != nil {
		return nil, p.abort(ctx, err)
	}
	if err := p.startLogs(ctx, target, plaintext, res); err != nil {
		return nil, p.abort(ctx, err)
	}
	logger.Info("telemetry export enabled", zap.String("collector", target), zap.Bool("plaintext", plaintext))
	return p, nil
}

// collectorTarget reduces an endpoint to the host:port dialed by the OTLP gRPC exporters and reports
// whether the connection is plaintext (anything but https).
func collectorTarget(endpoint string) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "storehub-backend"
	}
	kvs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		kvs = append(kvs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		kvs = append(kvs, semconv.DeploymentEnvironmentName(cfg.Environment))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, kvs...), nil
}

func (p *Providers) startTracing(ctx context.Context, target string, plaintext bool, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if plaintext {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("otlp trace exporter: %w", err)
	}
	p.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	p.shutdown = append(p.shutdown, p.TracerProvider.Shutdown)
	return nil
}

func (p *Providers) startMetrics(ctx context.Context, target string, plaintext bool, res *resource.Resource, interval time.Duration) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if plaintext {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("otlp metric exporter: %w", err)
	}
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	p.MeterProvider = metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(interval))),
	)
	p.shutdown = append(p.shutdown, p.MeterProvider.Shutdown)
	return nil
}

func (p *Providers) startLogs(ctx context.Context, target string, plaintext bool, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if plaintext {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("otlp log exporter: %w", err)
	}
	p.LoggerProvider = sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)), sdklog.WithResource(res))
	p.shutdown = append(p.shutdown, p.LoggerProvider.Shutdown)
	return nil
}

// abort shuts down whatever was started before err and returns err.
func (p *Providers) abort(ctx context.Context, err error) error {
	_ = p.Shutdown(ctx)
	return err
}

// Shutdown flushes and stops the providers, logs first. It returns every shutdown error joined.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			p.logger.Warn("telemetry: shutdown", zap.Error(err))
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

// SetGlobal installs the tracer and meter providers and the W3C propagators for otelhttp, otelgrpc and
// the auth service spans. The logger provider stays local; AuditSink uses it.
func (p *Providers) SetGlobal() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
}

// AuditSink returns an audit sink emitting log records through LoggerProvider and counting events on
// MeterProvider.
func (p *Providers) AuditSink() audit.Sink {
	return NewAuditSink(p.LoggerProvider, p.MeterProvider)
}
