// Package scheduler drives periodic sync passes: frequent incremental
// exports, an occasional full export, and a delayed full-sync recovery when
// incremental passes keep failing.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lorekeep/lorekeep/internal/graphsync"
)

// Syncer is the part of the sync engine the scheduler drives.
type Syncer interface {
	IncrementalExport(ctx context.Context) (*graphsync.Result, error)
	FullExport(ctx context.Context) (*graphsync.Result, error)
}

// Config controls the scheduler's timing and failure handling.
type Config struct {
	IncrementalInterval time.Duration
	FullInterval        time.Duration
	FailureThreshold    int           // consecutive failures before escalating
	RecoveryDelay       time.Duration // wait before the recovery full sync
	ShutdownTimeout     time.Duration // bound on the final full sync at Stop
}

// Scheduler owns the background sync timers. Start it once; Stop cancels the
// timers, waits for the loop to exit, and attempts one final full sync.
type Scheduler struct {
	syncer Syncer
	cfg    Config
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Scheduler. It does nothing until Start is called.
func New(syncer Syncer, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{syncer: syncer, cfg: cfg, logger: logger}
}

// Start launches the timer loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
	s.logger.Info("sync scheduler started",
		"incremental_interval", s.cfg.IncrementalInterval,
		"full_interval", s.cfg.FullInterval)
}

// Stop cancels the timers, waits for the loop to exit, then attempts one
// best-effort full sync bounded by the shutdown timeout.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if _, err := s.syncer.FullExport(ctx); err != nil {
		s.logger.Warn("final full sync failed", "error", err)
	} else {
		s.logger.Info("final full sync complete")
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	incremental := time.NewTicker(s.cfg.IncrementalInterval)
	defer incremental.Stop()
	full := time.NewTicker(s.cfg.FullInterval)
	defer full.Stop()

	// Armed after repeated incremental failures; nil channel otherwise.
	var recovery *time.Timer
	var recoveryC <-chan time.Time

	failures := 0
	for {
		select {
		case <-ctx.Done():
			if recovery != nil {
				recovery.Stop()
			}
			return

		case <-incremental.C:
			if s.runIncremental(ctx) {
				failures = 0
				continue
			}
			failures++
			if failures >= s.cfg.FailureThreshold && recoveryC == nil {
				s.logger.Warn("repeated sync failures, scheduling full-sync recovery",
					"failures", failures, "delay", s.cfg.RecoveryDelay)
				recovery = time.NewTimer(s.cfg.RecoveryDelay)
				recoveryC = recovery.C
				failures = 0
			}

		case <-full.C:
			s.runFull(ctx, "periodic")

		case <-recoveryC:
			recovery = nil
			recoveryC = nil
			s.runFull(ctx, "recovery")
		}
	}
}

// runIncremental reports whether the pass counts as healthy. A pass skipped
// because another is in flight is not a failure.
func (s *Scheduler) runIncremental(ctx context.Context) bool {
	_, err := s.syncer.IncrementalExport(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, graphsync.ErrSyncInFlight) {
		s.logger.Debug("incremental sync skipped, pass already running")
		return true
	}
	s.logger.Error("incremental sync failed", "error", err)
	return false
}

func (s *Scheduler) runFull(ctx context.Context, reason string) {
	if _, err := s.syncer.FullExport(ctx); err != nil {
		if errors.Is(err, graphsync.ErrSyncInFlight) {
			s.logger.Debug("full sync skipped, pass already running", "reason", reason)
			return
		}
		s.logger.Error("full sync failed", "reason", reason, "error", err)
		return
	}
	s.logger.Info("full sync complete", "reason", reason)
}
