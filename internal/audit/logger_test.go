package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storehub/backend/internal/audit/domain"
)

type memSink struct {
	mu     sync.Mutex
	events []*domain.Event
	err    error
	delay  time.Duration
}

func (s *memSink) Record(ctx context.Context, e *domain.Event) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) all() []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Event(nil), s.events...)
}

func TestLogger_LogEventFillsDefaults(t *testing.T) {
	sink := &memSink{}
	l := NewLogger(nil, nil, sink)
	ctx := WithClientIP(context.Background(), "192.168.1.1")

	l.LogEvent(ctx, &domain.Event{AccountID: "u1", Action: domain.ActionLogin, Outcome: domain.OutcomeSuccess})

	events := sink.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "192.168.1.1", e.IP)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, "u1", e.AccountID)
}

func TestLogger_SinkFailureIsLoggedAndOthersStillReceive(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	failing := &memSink{err: errors.New("db down")}
	ok := &memSink{}
	l := NewLogger(zap.New(core), func(context.Context) string { return "10.0.0.9" }, failing, nil, ok)

	l.LogEvent(context.Background(), &domain.Event{Action: domain.ActionLogout, Outcome: domain.OutcomeSuccess})

	assert.Len(t, ok.all(), 1)
	assert.Equal(t, "10.0.0.9", ok.all()[0].IP)
	assert.Equal(t, 1, logs.FilterMessage("audit: sink failed").Len())
}

func TestLogger_RecordAsyncSurvivesCancelledRequest(t *testing.T) {
	sink := &memSink{delay: 20 * time.Millisecond}
	l := NewLogger(nil, nil, sink)
	ctx, cancel := context.WithCancel(context.Background())

	l.RecordAsync(ctx, &domain.Event{Action: domain.ActionRefresh, Outcome: domain.OutcomeFailure})
	cancel()

	waitCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	l.Wait(waitCtx)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "unknown", sink.all()[0].IP)
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), &domain.Event{})
	l.RecordAsync(context.Background(), &domain.Event{})

	NewLogger(nil, nil).RecordAsync(context.Background(), &domain.Event{})
}
