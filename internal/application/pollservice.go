// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kernelkit/test-system-status/internal/domain/model"
	"github.com/kernelkit/test-system-status/internal/domain/port/driven"
)

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	done chan *model.Snapshot
}

// PollService periodically rebuilds the reports of all enabled targets,
// publishes the latest snapshot, and persists it.
type PollService struct {
	builder       *ReportBuilder
	store         driven.SnapshotStore
	targets       []model.Target
	interval      time.Duration
	maxConcurrent int
	latest        atomic.Pointer[model.Snapshot]
	refreshCh     chan refreshRequest
}

// NewPollService creates a new PollService with all required dependencies.
// store may be nil, in which case snapshots are kept in memory only.
func NewPollService(
	builder *ReportBuilder,
	store driven.SnapshotStore,
	targets []model.Target,
	interval time.Duration,
	maxConcurrent int,
) *PollService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &PollService{
		builder:       builder,
		store:         store,
		targets:       targets,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		refreshCh:     make(chan refreshRequest),
	}
}

// Start begins the polling loop. It restores the persisted snapshot, runs an
// immediate poll, then polls on an interval adapted to the latest snapshot. It
// also serves manual refresh requests. Start blocks until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	s.restore(ctx)
	s.pollAll(ctx)

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-timer.C:
			s.pollAll(ctx)
			timer.Reset(s.nextInterval())
		case req := <-s.refreshCh:
			req.done <- s.pollAll(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.nextInterval())
		}
	}
}

// Latest returns the most recently built snapshot, or nil before the first poll.
func (s *PollService) Latest() *model.Snapshot {
	return s.latest.Load()
}

// Refresh triggers an immediate rebuild, bypassing the polling interval. It
// blocks until the rebuild completes or the context is canceled.
func (s *PollService) Refresh(ctx context.Context) (*model.Snapshot, error) {
	req := refreshRequest{done: make(chan *model.Snapshot, 1)}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case snapshot := <-req.done:
		return snapshot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BuildAll builds the reports of all enabled targets concurrently. Reports keep
// the configured target order; a failing repository yields its error report
// and never affects the others.
func (s *PollService) BuildAll(ctx context.Context) model.Snapshot {
	enabled := make([]model.Target, 0, len(s.targets))
	for _, t := range s.targets {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}

	reports := make([]model.RepositoryReport, len(enabled))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, target := range enabled {
		g.Go(func() error {
			reports[i] = s.builder.Build(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	return model.Snapshot{
		Timestamp:    time.Now().UTC(),
		Repositories: reports,
	}
}

// pollAll rebuilds every report, publishes the snapshot, and persists it.
func (s *PollService) pollAll(ctx context.Context) *model.Snapshot {
	start := time.Now()

	snapshot := s.BuildAll(ctx)
	s.latest.Store(&snapshot)

	var errCount int
	for _, r := range snapshot.Repositories {
		if r.IsError() {
			errCount++
		}
	}

	if s.store != nil {
		if err := s.store.ReplaceSnapshot(ctx, snapshot); err != nil {
			slog.Error("persist snapshot failed", "error", err)
		}
	}

	slog.Info("poll cycle complete",
		"repos", len(snapshot.Repositories),
		"errors", errCount,
		"tier", classifySnapshot(&snapshot).String(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return &snapshot
}

// restore publishes the persisted snapshot so the dashboard has data before
// the first poll completes.
func (s *PollService) restore(ctx context.Context) {
	if s.store == nil {
		return
	}

	snapshot, err := s.store.GetLatest(ctx)
	if err != nil {
		slog.Error("load persisted snapshot failed", "error", err)
		return
	}
	if snapshot == nil {
		return
	}

	s.latest.Store(snapshot)
	slog.Info("persisted snapshot restored",
		"repos", len(snapshot.Repositories),
		"timestamp", snapshot.Timestamp,
	)
}

func (s *PollService) nextInterval() time.Duration {
	return tierInterval(classifySnapshot(s.Latest()), s.interval)
}
