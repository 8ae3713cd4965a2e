package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"storehub/backend/internal/audit"
	"storehub/backend/internal/audit/domain"
)

// recordEmitter is the part of otellog.Logger used by the audit sink.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

const instrumentationScope = "storehub.audit"

// NewAuditSink returns an audit.Sink that emits events as OTel log records via logs and counts them
// as storehub.audit.events{action,outcome} on meters. Either provider may be nil; with both nil the
// sink does nothing.
func NewAuditSink(logs *sdklog.LoggerProvider, meters otelmetric.MeterProvider) audit.Sink {
	if logs == nil && meters == nil {
		return noopSink{}
	}
	s := &logSink{}
	if logs != nil {
		s.logger = logs.Logger(instrumentationScope)
	}
	if meters != nil {
		// Instrument creation only fails on an invalid name; the sink then just emits logs.
		s.events, _ = meters.Meter(instrumentationScope).Int64Counter("storehub.audit.events",
			otelmetric.WithDescription("Audit events recorded, by action and outcome."),
			otelmetric.WithUnit("{event}"))
	}
	return s
}

// NewAuditSinkWithLogger returns an audit.Sink emitting to l.
func NewAuditSinkWithLogger(l recordEmitter) audit.Sink {
	return &logSink{logger: l}
}

type noopSink struct{}

func (noopSink) Record(context.Context, *domain.Event) error { return nil }

type logSink struct {
	logger recordEmitter
	events otelmetric.Int64Counter
}

// Record converts the event to a log record: body "auth.<action>", one attribute per non-empty field,
// INFO severity for success and WARN for failure.
func (s *logSink) Record(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return nil
	}
	if s.events != nil {
		s.events.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("action", string(e.Action)),
			attribute.String("outcome", string(e.Outcome)),
		))
	}
	if s.logger == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue("auth." + string(e.Action)))
	if e.Outcome == domain.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}
	for _, kv := range []struct{ key, val string }{
		{"audit.id", e.ID},
		{"account_id", e.AccountID},
		{"username", e.Username},
		{"action", string(e.Action)},
		{"outcome", string(e.Outcome)},
		{"client.address", e.IP},
		{"detail", e.Detail},
	} {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	s.logger.Emit(ctx, rec)
	return nil
}
