// Package jobs runs periodic work next to the table server: dealing games
// left waiting, pruning completed games and logging registry statistics.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/viettienlv97/game-server/internal/registry"
)

// Registry is the part of the table registry the jobs act on.
type Registry interface {
	PruneCompleted(ctx context.Context, olderThan time.Duration) (int, error)
	DealWaiting(ctx context.Context, commit registry.CommitFunc) (int, error)
	Stats() registry.Stats
}

// Config holds the job schedules in cron syntax, descriptors such as
// "@hourly" and "@every 5m" included. An empty schedule disables its job.
type Config struct {
	PruneSchedule string
	PruneAfter    time.Duration
	StatsSchedule string
	DealSchedule  string
	// OnDeal receives the change of every game the deal job starts.
	OnDeal registry.CommitFunc
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron       *cron.Cron
	registry   Registry
	logger     *log.Logger
	pruneAfter time.Duration
	onDeal     registry.CommitFunc
}

// NewScheduler registers the configured jobs. It fails on a malformed
// schedule.
func NewScheduler(reg Registry, cfg Config, logger *log.Logger) (*Scheduler, error) {
	logger = logger.WithPrefix("jobs")
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(logger.StandardLog())),
		)),
		registry:   reg,
		logger:     logger,
		pruneAfter: cfg.PruneAfter,
		onDeal:     cfg.OnDeal,
	}

	if cfg.PruneSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.PruneSchedule, func() { _, _ = s.Prune(context.Background()) }); err != nil {
			return nil, fmt.Errorf("prune schedule %q: %w", cfg.PruneSchedule, err)
		}
	}
	if cfg.StatsSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.StatsSchedule, func() { s.ReportStats() }); err != nil {
			return nil, fmt.Errorf("stats schedule %q: %w", cfg.StatsSchedule, err)
		}
	}
	if cfg.DealSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.DealSchedule, func() { _, _ = s.Deal(context.Background()) }); err != nil {
			return nil, fmt.Errorf("deal schedule %q: %w", cfg.DealSchedule, err)
		}
	}
	return s, nil
}

// Jobs is the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", s.Jobs())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// Prune forgets completed games older than the configured age.
func (s *Scheduler) Prune(ctx context.Context) (int, error) {
	n, err := s.registry.PruneCompleted(ctx, s.pruneAfter)
	if err != nil {
		s.logger.Error("Prune failed", "error", err)
		return n, err
	}
	if n > 0 {
		s.logger.Info("Pruned completed games", "count", n, "olderThan", s.pruneAfter)
	}
	return n, nil
}

// Deal starts the games that tables left waiting with enough seats.
func (s *Scheduler) Deal(ctx context.Context) (int, error) {
	n, err := s.registry.DealWaiting(ctx, s.onDeal)
	if err != nil {
		s.logger.Error("Deal failed", "dealt", n, "error", err)
		return n, err
	}
	if n > 0 {
		s.logger.Info("Dealt waiting games", "count", n)
	}
	return n, nil
}

// ReportStats logs a registry snapshot.
func (s *Scheduler) ReportStats() registry.Stats {
	st := s.registry.Stats()
	s.logger.Info("Registry stats",
		"tables", st.Tables,
		"running", st.RunningGames,
		"seated", st.SeatedPlayers,
		"rake", st.RakeCollected)
	return st
}
