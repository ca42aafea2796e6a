package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ellavondegurechaff/vmq/pool/logger"
)

// Scheduler takes snapshots on a standard five-field cron schedule.
type Scheduler struct {
	archiver *Archiver
	schedule cron.Schedule
	spec     string
	timeout  time.Duration
}

func NewScheduler(archiver *Archiver, spec string, timeout time.Duration) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid archive schedule %q: %w", spec, err)
	}
	return &Scheduler{
		archiver: archiver,
		schedule: schedule,
		spec:     spec,
		timeout:  timeout,
	}, nil
}

// Next returns the first run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is done, then waits for a running snapshot to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.runOnce(ctx) }))
	c.Start()

	logger.LogJob("Archive scheduler started",
		slog.String("schedule", s.spec),
		slog.Time("next_run", s.Next(time.Now())))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.archiver.Snapshot(ctx); err != nil {
		logger.LogError("Scheduled snapshot failed", err, slog.String("schedule", s.spec))
	}
}
