// Package services wires the duplicate-search engine to persistence and
// progress subscribers, enforcing the one-active-search rule.
package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/doppelfm/doppel/internal/db"
	"github.com/doppelfm/doppel/internal/dupes"
	"github.com/doppelfm/doppel/internal/types"
)

// subscriber wraps a channel with safe close handling. The mutex keeps a
// broadcast from racing an Unsubscribe onto a just-closed channel.
type subscriber struct {
	ch     chan *types.SearchProgress
	mu     sync.RWMutex
	closed bool
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

func (sub *subscriber) send(progress *types.SearchProgress) bool {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	if sub.closed {
		return false
	}
	select {
	case sub.ch <- progress:
		return true
	default:
		return false
	}
}

// Search owns the single in-flight duplicate search. Starting a second
// search while one runs fails with dupes.ErrBusy; the handle is released
// on every terminal transition, including failures.
type Search struct {
	db      *db.DB
	engine  *dupes.Engine
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc

	subMu       sync.RWMutex
	subscribers []*subscriber
}

// NewSearch creates the search service.
func NewSearch(database *db.DB, engine *dupes.Engine, logger zerolog.Logger, timeout time.Duration) *Search {
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return &Search{
		db:      database,
		engine:  engine,
		log:     logger,
		timeout: timeout,
	}
}

// Subscribe returns a channel receiving progress for every search run by
// this service. The channel is buffered; slow consumers miss intermediate
// updates instead of blocking the engine.
func (s *Search) Subscribe() chan *types.SearchProgress {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	sub := &subscriber{
		ch: make(chan *types.SearchProgress, 64),
	}
	s.subscribers = append(s.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Search) Unsubscribe(ch chan *types.SearchProgress) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, sub := range s.subscribers {
		if sub.ch == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			sub.close()
			break
		}
	}
}

// broadcast sends progress to all subscribers
func (s *Search) broadcast(progress *types.SearchProgress) {
	s.subMu.RLock()
	// Copy the slice to avoid holding the lock during sends.
	subs := make([]*subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.send(progress)
	}
}

// Active reports whether a search is currently running.
func (s *Search) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cancel signals the active search, if any. Cancellation is cooperative:
// the run observes it within one unit of work and ends without a result.
func (s *Search) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// FindDuplicates runs a search to completion and returns the groups.
// It returns dupes.ErrBusy immediately when a search is already running
// and dupes.ErrCancelled when the run was cancelled; callers must treat
// the latter as a silent terminal state, not a failure. scheduledID links
// the stored run to a scheduled search, nil for interactive runs.
func (s *Search) FindDuplicates(ctx context.Context, req dupes.Request, scheduledID *int64) ([]types.DuplicateGroup, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, dupes.ErrBusy
	}
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	run, err := s.db.CreateSearchRun(scheduledID, req.Roots,
		req.Options.ByName, req.Options.BySize, req.Options.ByContent)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("run_id", run.ID).
		Strs("roots", req.Roots).
		Bool("by_name", req.Options.ByName).
		Bool("by_size", req.Options.BySize).
		Bool("by_content", req.Options.ByContent).
		Msg("duplicate search started")

	emit := func(p dupes.Progress) {
		s.broadcast(&types.SearchProgress{
			RunID:   run.ID,
			Stage:   p.Stage,
			Current: p.Current,
			Total:   p.Total,
			Message: p.Message,
			Status:  types.StatusRunning,
		})
	}

	result, err := s.engine.Find(runCtx, req, emit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			msg := "search cancelled"
			s.db.CompleteSearchRun(run.ID, db.SearchRunStatusCancelled, &msg)
			s.broadcast(&types.SearchProgress{RunID: run.ID, Status: types.StatusCancelled})
			s.log.Info().Int64("run_id", run.ID).Msg("duplicate search cancelled")
			return nil, dupes.ErrCancelled
		}

		msg := err.Error()
		s.db.CompleteSearchRun(run.ID, db.SearchRunStatusFailed, &msg)
		s.broadcast(&types.SearchProgress{RunID: run.ID, Status: types.StatusFailed, Message: msg})
		s.log.Error().Err(err).Int64("run_id", run.ID).Msg("duplicate search failed")
		return nil, err
	}

	for _, g := range result.Groups {
		dg := &db.DuplicateGroup{
			SearchRunID: run.ID,
			Digest:      g.Digest,
			FileSize:    g.Size,
			FileCount:   len(g.Paths),
			WastedBytes: g.Size * int64(len(g.Paths)-1),
			Files:       g.Paths,
		}
		if err := s.db.CreateDuplicateGroup(dg); err != nil {
			s.log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to store duplicate group")
		}
	}

	stats := result.Stats
	s.db.UpdateSearchRunStats(run.ID, stats.FilesScanned, stats.Candidates,
		stats.FilesHashed, stats.FilesSkipped, int64(len(result.Groups)), stats.WastedBytes)
	s.db.CompleteSearchRun(run.ID, db.SearchRunStatusCompleted, nil)

	s.broadcast(&types.SearchProgress{
		RunID:   run.ID,
		Stage:   dupes.StageFinalizing,
		Current: int64(len(result.Groups)),
		Total:   int64(len(result.Groups)),
		Status:  types.StatusCompleted,
	})
	s.log.Info().
		Int64("run_id", run.ID).
		Int("groups", len(result.Groups)).
		Int64("files_scanned", stats.FilesScanned).
		Int64("wasted_bytes", stats.WastedBytes).
		Msg("duplicate search completed")

	return toDuplicateGroups(result.Groups), nil
}

// toDuplicateGroups stats each member to build the caller-facing entries.
// A file deleted since hashing keeps its recorded size and a zero mtime.
func toDuplicateGroups(groups []dupes.Group) []types.DuplicateGroup {
	out := make([]types.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		files := make([]types.FileEntry, 0, len(g.Paths))
		for _, p := range g.Paths {
			entry := types.FileEntry{
				Path: p,
				Name: filepath.Base(p),
				Size: g.Size,
			}
			if info, err := os.Stat(p); err == nil {
				entry.Size = info.Size()
				entry.Modified = info.ModTime().Unix()
			}
			files = append(files, entry)
		}
		out = append(out, types.DuplicateGroup{Size: g.Size, Files: files})
	}
	return out
}
