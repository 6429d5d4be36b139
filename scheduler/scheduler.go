package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Second

// Target is a store whose expired records must be deleted by hand.
type Target interface {
	Table() string
	Expire(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deletes expired records on a cron schedule.
type Sweeper struct {
	targets []Target
	now     func() time.Time
	log     *zap.Logger
	cron    *cron.Cron
}

func NewSweeper(log *zap.Logger, targets ...Target) *Sweeper {
	return &Sweeper{targets: targets, now: time.Now, log: log.Named("sweeper")}
}

// Sweep expires every target once. A failing target does not stop the rest.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	var failed int
	for _, t := range s.targets {
		n, err := t.Expire(ctx, now)
		if err != nil {
			failed++
			s.log.Error("Sweep: expiry failed", zap.String("table", t.Table()), zap.Error(err))
			continue
		}
		if n > 0 {
			s.log.Info("Sweep: expired records", zap.String("table", t.Table()), zap.Int64("count", n))
		}
	}
	if failed > 0 {
		return fmt.Errorf("Sweep: %d of %d tables failed", failed, len(s.targets))
	}
	return nil
}

// Start runs Sweep on schedule until Stop.
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_ = s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("Start: invalid schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.log.Info("Start: sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
