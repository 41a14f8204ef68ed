package rollup

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
)

// Scheduler produces the previous day's daily_statistics rows once per
// elapsed calendar day. The engine stays a plain callable; the trigger
// cadence lives entirely here.
type Scheduler struct {
	engine    *Engine
	interval  time.Duration
	statTypes []string

	nowFn func() time.Time

	// completedThrough is the most recent day whose rows were produced.
	completedThrough time.Time
}

// NewScheduler creates a cron scheduler over the rollup engine.
// interval is how often it checks whether a calendar day has elapsed; the
// engine's idempotency makes an occasional redundant run harmless.
func NewScheduler(engine *Engine, interval time.Duration, statTypes []string) *Scheduler {
	if engine == nil {
		panic("rollup: engine must not be nil")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if len(statTypes) == 0 {
		statTypes = []string{v1.StatTypeGeneral}
	}
	return &Scheduler{
		engine:    engine,
		interval:  interval,
		statTypes: statTypes,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Start runs the scheduler until the context is cancelled.
// An initial catch-up run fires immediately so a restart does not wait a full
// interval before producing yesterday's rows.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting daily rollup scheduler",
		"interval", s.interval,
		"stat_types", s.statTypes)

	s.runPending(ctx)

	for {
		select {
		case <-ticker.C:
			s.runPending(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

// runPending rolls up the previous calendar day if it hasn't been produced
// yet in this process. Reruns after a restart are safe: the engine overwrites
// the same keys with identical values.
func (s *Scheduler) runPending(ctx context.Context) {
	yesterday := s.nowFn().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	if !s.completedThrough.Before(yesterday) {
		return
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, statType := range s.statTypes {
		statType := statType
		g.Go(func() error {
			_, err := s.engine.Run(groupCtx, yesterday, statType)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("[Scheduler] Daily rollup run failed",
			"stat_date", yesterday.Format(v1.DateFormat),
			"error", err)
		// Leave completedThrough untouched so the next tick retries.
		return
	}

	s.completedThrough = yesterday
	slog.Info("[Scheduler] Daily rollup run complete",
		"stat_date", yesterday.Format(v1.DateFormat),
		"stat_types", s.statTypes)
}
