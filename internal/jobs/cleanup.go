// Package jobs runs periodic maintenance: removal of expired session records and idle rate limiter state.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// runTimeout bounds one cleanup run.
const runTimeout = time.Minute

// SessionCleaner deletes expired sessions. The auth service implements it.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Pruner drops idle in-memory state. *middleware.IPRateLimiter implements it.
type Pruner interface {
	Prune() int
}

// Cleanup runs the session cleaner (and optional pruners) on a cron schedule.
type Cleanup struct {
	cron    *cron.Cron
	cleaner SessionCleaner
	pruners []Pruner
	logger  *zap.Logger
}

// NewCleanup parses schedule (standard cron or descriptors such as "@every 1h") and returns an unstarted job.
func NewCleanup(schedule string, cleaner SessionCleaner, logger *zap.Logger, pruners ...Pruner) (*Cleanup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cleanup{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		cleaner: cleaner,
		logger:  logger.Named("session_cleanup"),
	}
	for _, p := range pruners {
		if p != nil {
			c.pruners = append(c.pruners, p)
		}
	}
	if _, err := c.cron.AddFunc(schedule, func() { c.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", schedule, err)
	}
	return c, nil
}

// Start runs the schedule in the background.
func (c *Cleanup) Start() {
	c.cron.Start()
}

// Stop halts the schedule and waits for a running cleanup to finish or ctx to end.
func (c *Cleanup) Stop(ctx context.Context) {
	done := c.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// RunOnce performs one cleanup pass and returns the number of sessions removed.
func (c *Cleanup) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	n, err := c.cleaner.CleanupExpired(ctx)
	if err != nil {
		c.logger.Error("cleanup expired sessions", zap.Error(err))
	} else if n > 0 {
		c.logger.Info("expired sessions removed", zap.Int64("count", n))
	}
	for _, p := range c.pruners {
		p.Prune()
	}
	return n
}
