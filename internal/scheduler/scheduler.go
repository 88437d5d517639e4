// Package scheduler runs scheduled duplicate searches on cron expressions.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/doppelfm/doppel/internal/db"
	"github.com/doppelfm/doppel/internal/dupes"
	"github.com/doppelfm/doppel/internal/services"
)

// Scheduler polls for due scheduled searches once a minute and runs them
// through the search service. A search already in flight makes a due job
// skip that tick; it stays due and runs on the next one.
type Scheduler struct {
	db     *db.DB
	search *services.Search
	log    zerolog.Logger
	parser cron.Parser

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a scheduler. Cron expressions use the standard five fields.
func New(database *db.DB, search *services.Search, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		db:     database,
		search: search,
		log:    logger,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Start begins the scheduling loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop halts the loop, cancels any search it started, and waits for
// spawned job goroutines to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.checkDue(ctx)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.checkDue(ctx)
		}
	}
}

func (s *Scheduler) checkDue(ctx context.Context) {
	searches, err := s.db.GetEnabledScheduledSearches()
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: failed to load scheduled searches")
		return
	}

	now := time.Now()
	for _, sched := range searches {
		if sched.NextRunAt == nil || sched.NextRunAt.After(now) {
			continue
		}
		s.wg.Add(1)
		go s.runScheduled(ctx, sched)
	}
}

func (s *Scheduler) runScheduled(ctx context.Context, sched *db.ScheduledSearch) {
	defer s.wg.Done()

	if ctx.Err() != nil {
		return
	}
	if len(sched.Roots) == 0 {
		s.log.Warn().Int64("scheduled_id", sched.ID).Msg("scheduler: no roots configured, skipping")
		return
	}

	req := dupes.Request{
		Roots: sched.Roots,
		Options: dupes.Options{
			ByName:    sched.ByName,
			BySize:    sched.BySize,
			ByContent: sched.ByContent,
		},
	}

	s.log.Info().
		Int64("scheduled_id", sched.ID).
		Str("name", sched.Name).
		Msg("scheduler: running scheduled search")

	_, err := s.search.FindDuplicates(ctx, req, &sched.ID)
	switch {
	case errors.Is(err, dupes.ErrBusy):
		// Leave next_run_at untouched so the job retries next tick.
		s.log.Info().Int64("scheduled_id", sched.ID).Msg("scheduler: search busy, retrying next tick")
		return
	case errors.Is(err, dupes.ErrCancelled):
		s.log.Info().Int64("scheduled_id", sched.ID).Msg("scheduler: scheduled search cancelled")
	case err != nil:
		s.log.Error().Err(err).Int64("scheduled_id", sched.ID).Msg("scheduler: scheduled search failed")
	}

	now := time.Now()
	next, err := s.NextRun(sched.CronExpression, now)
	if err != nil {
		s.log.Error().Err(err).Int64("scheduled_id", sched.ID).Msg("scheduler: invalid cron expression")
		return
	}
	if err := s.db.UpdateScheduledSearchRun(sched.ID, now, next); err != nil {
		s.log.Error().Err(err).Int64("scheduled_id", sched.ID).Msg("scheduler: failed to update run times")
	}
}

// NextRun computes the next fire time for a cron expression after from.
func (s *Scheduler) NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}
