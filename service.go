package floor

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/floor/extension"
	"github.com/viant/floor/model"
	"github.com/viant/floor/policy"
	"github.com/viant/floor/runtime/execution"
	"github.com/viant/floor/service/dao"
	pmemory "github.com/viant/floor/service/dao/process/memory"
	"github.com/viant/floor/service/event"
	"github.com/viant/floor/service/meta"
	"k8s.io/utils/clock"
)

// Service assembles a runtime from options
type Service struct {
	runtime         *Runtime
	registry        *extension.Registry
	config          *Config
	office          *model.Office
	officeURL       string
	metaService     *meta.Service
	logger          logr.Logger
	registerer      prometheus.Registerer
	clock           clock.WithTicker
	policy          *policy.Policy
	processDAO      dao.Service[string, execution.Process]
	eventService    *event.Service
	processListener func(*event.Event[ProcessEvent])
}

// New creates a service
func New(options ...Option) *Service {
	ret := &Service{registry: extension.New(), logger: logr.Discard()}
	for _, option := range options {
		option(ret)
	}
	ret.ensureBaseSetup()
	ret.runtime = &Runtime{service: ret}
	return ret
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.metaService == nil {
		s.metaService = meta.New(afs.New(), "")
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.policy == nil {
		s.policy = policy.FromConfig(s.config.Policy)
	}
	if s.processDAO == nil {
		s.processDAO = pmemory.New(pmemory.WithRetention(s.config.Retention))
	}
	if s.eventService == nil {
		s.eventService = event.New(event.WithLogger(s.logger))
	}
}

// Registry returns the registry resolving the office names
func (s *Service) Registry() *extension.Registry {
	return s.registry
}

// Runtime returns the runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}
