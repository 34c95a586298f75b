// Package jobs runs periodic maintenance in the background.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/kobeya/studypartner/internal/embedding"
	"github.com/kobeya/studypartner/internal/storage"
	"github.com/kobeya/studypartner/internal/sync"
)

// Job is a named task run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler manages scheduled tasks for the application.
type Scheduler struct {
	cron   *gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. Jobs receive a context that is cancelled on Stop.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules job. Jobs with a non-positive interval are skipped. A run
// never overlaps the previous run of the same job.
func (s *Scheduler) Add(job Job) error {
	if job.Interval <= 0 {
		slog.Info("Job disabled", "job", job.Name)
		return nil
	}
	_, err := s.cron.Every(job.Interval).SingletonMode().Do(func() {
		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			slog.Error("Job failed", "job", job.Name, "error", err)
			return
		}
		slog.Debug("Job finished", "job", job.Name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}
	return nil
}

// Start begins running all scheduled tasks without blocking.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

// SyncJob imports all wordlist sources.
func SyncJob(db *storage.DB, scorer sync.DifficultyScorer, reposDir string, interval time.Duration) Job {
	return Job{
		Name:     "wordlist-sync",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := sync.RunSync(ctx, db, scorer, reposDir)
			return err
		},
	}
}

// CleanupJob drops expired embeddings from the memory cache and, when
// tier is not nil, from the database.
func CleanupJob(memory *embedding.MemoryCache, tier *embedding.SQLiteTier, interval time.Duration) Job {
	return Job{
		Name:     "embedding-cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			var removed int64
			if memory != nil {
				removed += int64(memory.CleanupExpired())
			}
			if tier != nil {
				n, err := tier.Cleanup(ctx)
				if err != nil {
					return err
				}
				removed += n
			}
			if removed > 0 {
				slog.Info("Removed expired embeddings", "count", removed)
			}
			return nil
		},
	}
}
