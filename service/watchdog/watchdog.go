// Package watchdog fires callbacks for deadlines observed on a ticking clock.
package watchdog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// DefaultInterval is the sweep period used when none is configured
const DefaultInterval = 10 * time.Millisecond

type entry struct {
	id       uint64
	deadline time.Time
	onExpire func()
}

// Service tracks deadlines and invokes their callbacks once expired
type Service struct {
	clock    clock.WithTicker
	interval time.Duration
	logger   logr.Logger

	mux     sync.Mutex
	seq     uint64
	entries map[uint64]*entry
}

// Option configures the watchdog
type Option func(s *Service)

// WithClock sets the clock
func WithClock(clk clock.WithTicker) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithInterval sets the sweep interval
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a watchdog
func New(options ...Option) *Service {
	ret := &Service{interval: DefaultInterval, logger: logr.Discard(), entries: map[uint64]*entry{}}
	for _, option := range options {
		option(ret)
	}
	if ret.clock == nil {
		ret.clock = clock.RealClock{}
	}
	return ret
}

// Now returns the watchdog clock time
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Watch schedules onExpire to run once timeout elapsed; the returned function
// cancels the watch. A non positive timeout is never watched.
func (s *Service) Watch(timeout time.Duration, onExpire func()) (cancel func()) {
	if timeout <= 0 || onExpire == nil {
		return func() {}
	}
	s.mux.Lock()
	s.seq++
	id := s.seq
	s.entries[id] = &entry{id: id, deadline: s.clock.Now().Add(timeout), onExpire: onExpire}
	s.mux.Unlock()
	return func() {
		s.mux.Lock()
		delete(s.entries, id)
		s.mux.Unlock()
	}
}

// Pending returns the number of active watches
func (s *Service) Pending() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.entries)
}

// Check fires every expired watch in deadline order and returns their count
func (s *Service) Check() int {
	now := s.clock.Now()
	var expired []*entry
	s.mux.Lock()
	for id, candidate := range s.entries {
		if !now.Before(candidate.deadline) {
			expired = append(expired, candidate)
			delete(s.entries, id)
		}
	}
	s.mux.Unlock()
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].deadline.Equal(expired[j].deadline) {
			return expired[i].id < expired[j].id
		}
		return expired[i].deadline.Before(expired[j].deadline)
	})
	for _, item := range expired {
		item.onExpire()
	}
	return len(expired)
}

// Run sweeps expired watches until ctx is cancelled
func (s *Service) Run(ctx context.Context) {
	s.logger.V(1).Info("starting watchdog loop", "interval", s.interval)
	defer s.logger.V(1).Info("watchdog loop stopped")
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if count := s.Check(); count > 0 {
				s.logger.V(2).Info("deadlines expired", "count", count)
			}
		}
	}
}
