// Package scheduler runs cancelable one-shot deferred tasks keyed by entity
// id. Scheduling a key again replaces the pending task. Callbacks fire on
// their own goroutine, so callers make them idempotent; a callback may still
// run once concurrently with its Cancel.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

type Scheduler struct {
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

type Option func(s *Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		timers: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs fn after d, replacing any pending task under the same key.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.Stop()
		s.logger.Debug("deferred task replaced", "key", key)
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[key] == timer {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = timer
}

// Cancel stops the pending task for key. Returns false when nothing was
// pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, key)
	return true
}

// Pending reports the number of scheduled tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending task. Used at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
