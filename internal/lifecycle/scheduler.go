package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs reconciliation passes on a fixed interval.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler creates a scheduler over the given manager.
func NewScheduler(manager *Manager, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		manager:  manager,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the reconciliation loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info().Dur("interval", s.interval).Msg("reconciliation scheduler started")

	go s.loop(runCtx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately so a restart catches up without waiting a tick.
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.manager.Reconcile(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("reconciliation pass failed")
	}
}

// Stop halts the loop and waits for any in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info().Msg("reconciliation scheduler stopped")
}
