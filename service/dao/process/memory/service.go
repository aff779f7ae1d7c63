package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/viant/floor/runtime/execution"
	"github.com/viant/floor/service/dao"
	"github.com/viant/floor/service/dao/criteria"
	"github.com/viant/floor/service/dao/store"
)

// DefaultRetention is how long a finished process stays listed
const DefaultRetention = 10 * time.Minute

// Service keeps processes in memory: running ones until they finish, finished
// ones for the retention period.
type Service struct {
	retention time.Duration
	cache     *store.Cache[string, execution.Process]
	mux       sync.Mutex
	running   bool
}

var _ dao.Service[string, execution.Process] = (*Service)(nil)

// Option configures the service
type Option func(s *Service)

// WithRetention sets how long a finished process is kept
func WithRetention(retention time.Duration) Option {
	return func(s *Service) {
		s.retention = retention
	}
}

// New creates a process store; Start runs its expiration loop
func New(options ...Option) *Service {
	ret := &Service{retention: DefaultRetention}
	for _, option := range options {
		option(ret)
	}
	ret.cache = store.New[string, execution.Process](ret.retention,
		func(p *execution.Process) string { return p.ID },
		store.WithRetention[string, execution.Process](retentionOf),
	)
	return ret
}

func retentionOf(p *execution.Process) time.Duration {
	if p.State() == execution.StateRunning {
		return ttlcache.NoTTL
	}
	return ttlcache.DefaultTTL
}

// Start runs the expiration loop until Close
func (s *Service) Start() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.cache.Start()
}

// Close stops the expiration loop
func (s *Service) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cache.Stop()
}

// Observe implements execution.Listener: it saves the process on start and
// once more when it finished so that its retention starts.
func (s *Service) Observe(p *execution.Process) {
	_ = s.Save(context.Background(), p)
}

func (s *Service) Save(ctx context.Context, p *execution.Process) error {
	return s.cache.Save(ctx, p)
}

func (s *Service) Load(ctx context.Context, id string) (*execution.Process, error) {
	return s.cache.Load(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, id)
}

// List returns processes matching the State and Function parameters, oldest first
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Process, error) {
	processes, err := s.cache.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*execution.Process, 0, len(processes))
	for _, p := range processes {
		fields := map[string]string{dao.ParameterState: p.State(), dao.ParameterFunction: p.Function}
		if !criteria.Filter(fields, parameters) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
