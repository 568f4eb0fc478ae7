// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Second

type TokenSweeper interface {
	SweepRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
	now func() time.Time
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		c:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		log: log,
		now: time.Now,
	}
}

// SweepTokens deletes expired refresh tokens on the cron schedule, e.g. "@every 1h".
func (s *Scheduler) SweepTokens(schedule string, st TokenSweeper) error {
	if _, err := s.c.AddFunc(schedule, func() { s.sweep(st) }); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return nil
}

func (s *Scheduler) sweep(st TokenSweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	n, err := st.SweepRefreshTokens(ctx, s.now())
	if err != nil {
		s.log.Error("token sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("expired refresh tokens removed", zap.Int64("count", n))
	}
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() { <-s.c.Stop().Done() }

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Sugar().Debugw(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Sugar().Errorw(msg, append(kv, "error", err)...)
}
