package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCleaner struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

type fakePruner struct{ calls int }

func (f *fakePruner) Prune() int {
	f.calls++
	return 0
}

func TestNewCleanup_RejectsBadSchedule(t *testing.T) {
	_, err := NewCleanup("every now and then", &fakeCleaner{}, nil)
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cleaner := &fakeCleaner{n: 3}
	pruner := &fakePruner{}
	c, err := NewCleanup("@every 1h", cleaner, zap.New(core), pruner, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), c.RunOnce(context.Background()))
	assert.Equal(t, int32(1), cleaner.calls.Load())
	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 1, logs.FilterMessage("expired sessions removed").Len())
}

func TestRunOnce_LogsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c, err := NewCleanup("@every 1h", &fakeCleaner{err: errors.New("db down")}, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, int64(0), c.RunOnce(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("cleanup expired sessions").Len())
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	cleaner := &fakeCleaner{}
	c, err := NewCleanup("@every 1s", cleaner, nil)
	require.NoError(t, err)

	c.Start()
	assert.Eventually(t, func() bool { return cleaner.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Stop(ctx)
}
