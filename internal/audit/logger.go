// Package audit records authentication outcomes to one or more sinks. Recording is best-effort:
// sink failures are logged and never reach the audited operation.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storehub/backend/internal/audit/domain"
)

// recordTimeout bounds a single asynchronous record across all sinks.
const recordTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown waits for in-flight asynchronous records.
const ShutdownDrainDuration = recordTimeout

// Sink receives audit events (database, Kafka, OTel logs).
type Sink interface {
	Record(ctx context.Context, e *domain.Event) error
}

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Logger fans audit events out to its sinks.
type Logger struct {
	sinks       []Sink
	ipExtractor IPExtractor
	logger      *zap.Logger
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewLogger returns a Logger writing to sinks. Nil sinks are skipped. ipExtractor may be nil;
// then ClientIP is used.
func NewLogger(logger *zap.Logger, ipExtractor IPExtractor, sinks ...Sink) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ipExtractor == nil {
		ipExtractor = ClientIP
	}
	l := &Logger{ipExtractor: ipExtractor, logger: logger, now: time.Now}
	for _, s := range sinks {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	return l
}

// LogEvent fills ID, IP and CreatedAt when unset and writes e to every sink synchronously.
func (l *Logger) LogEvent(ctx context.Context, e *domain.Event) {
	if l == nil || e == nil {
		return
	}
	l.prepare(ctx, e)
	l.write(ctx, e)
}

// RecordAsync writes e in a goroutine with a fixed timeout so the caller is not blocked.
// Request cancellation does not abort the write.
func (l *Logger) RecordAsync(ctx context.Context, e *domain.Event) {
	if l == nil || e == nil || len(l.sinks) == 0 {
		return
	}
	l.prepare(ctx, e)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		l.write(recCtx, e)
	}()
}

// Wait blocks until in-flight asynchronous records finish or ctx is done.
func (l *Logger) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (l *Logger) prepare(ctx context.Context, e *domain.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.IP == "" {
		e.IP = l.ipExtractor(ctx)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}
}

func (l *Logger) write(ctx context.Context, e *domain.Event) {
	for _, s := range l.sinks {
		if err := s.Record(ctx, e); err != nil {
			l.logger.Warn("audit: sink failed",
				zap.String("action", string(e.Action)),
				zap.String("outcome", string(e.Outcome)),
				zap.Error(err))
		}
	}
}

type ipKey struct{}

// WithClientIP returns a context carrying the caller's IP for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIP returns the IP set by WithClientIP, or "unknown".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}
