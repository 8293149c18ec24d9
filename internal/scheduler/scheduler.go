// Package scheduler runs the daily batch unattended on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"marketlab/internal/domain"
	"marketlab/internal/orchestrator"
)

// Scheduler wraps a cron instance around the orchestrator's daily run.
type Scheduler struct {
	cron *cron.Cron
	orch *orchestrator.Orchestrator
	log  *slog.Logger
	ctx  context.Context
}

// New creates a Scheduler. The context bounds every scheduled run.
func New(ctx context.Context, orch *orchestrator.Orchestrator, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		orch: orch,
		log:  log.With("component", "scheduler"),
		ctx:  ctx,
	}
}

// Register schedules the daily run at the given six-field cron spec. The run
// targets the current date; the orchestrator's own calendar gate skips
// non-trading days.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.dailyRun); err != nil {
		return fmt.Errorf("registering daily run: %w", err)
	}
	return nil
}

// Start begins executing scheduled runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	sctx := s.cron.Stop()
	<-sctx.Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes the daily run immediately, outside the schedule.
func (s *Scheduler) RunNow() {
	s.dailyRun()
}

func (s *Scheduler) dailyRun() {
	date := domain.Day(time.Now().UTC())
	s.log.Info("scheduled run starting", "date", date.Format(domain.DateFormat))

	summary, err := s.orch.RunForDate(s.ctx, date, orchestrator.RunOptions{})
	if err != nil {
		s.log.Error("scheduled run failed", "err", err)
		return
	}
	if !summary.AllSucceeded() {
		s.log.Warn("scheduled run finished with failures",
			"attempted", summary.SymbolsAttempted,
			"succeeded", summary.SymbolsSucceeded,
		)
		return
	}
	s.log.Info("scheduled run finished", "attempted", summary.SymbolsAttempted)
}
