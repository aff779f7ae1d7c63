package floor

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/policy"
	"github.com/viant/floor/runtime/execution"
	"github.com/viant/floor/service/dao"
	"github.com/viant/floor/service/event"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/service/meta"
	"github.com/viant/floor/service/team"
	"github.com/viant/floor/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"k8s.io/utils/clock"
)

// Option configures the service
type Option func(s *Service)

// WithConfig sets the runtime configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithOffice sets the office to run
func WithOffice(office *model.Office) Option {
	return func(s *Service) {
		s.office = office
	}
}

// WithOfficeURL sets the location the office is loaded from on Start
func WithOfficeURL(URL string) Option {
	return func(s *Service) {
		s.officeURL = URL
	}
}

// WithMetaService sets the document loader used for the office
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithFunction registers function logic
func WithFunction(name string, fn types.Function) Option {
	return func(s *Service) {
		s.registry.RegisterFunction(name, fn)
	}
}

// WithDuty registers duty logic
func WithDuty(name string, duty types.Duty) Option {
	return func(s *Service) {
		s.registry.RegisterDuty(name, duty)
	}
}

// WithSource registers a managed object source
func WithSource(name string, source managed.Source) Option {
	return func(s *Service) {
		s.registry.RegisterSource(name, source)
	}
}

// WithGovernance registers a governance factory
func WithGovernance(name string, factory governance.Factory) Option {
	return func(s *Service) {
		s.registry.RegisterGovernance(name, factory)
	}
}

// WithTeam registers a custom team kind
func WithTeam(kind string, factory team.Factory) Option {
	return func(s *Service) {
		s.registry.RegisterTeam(kind, factory)
	}
}

// WithProxy decorates every function logic
func WithProxy(proxy types.Proxy) Option {
	return func(s *Service) {
		s.registry.RegisterProxy(proxy)
	}
}

// WithLogger sets the logger
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetricsRegisterer registers kernel metrics with registerer
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = registerer
	}
}

// WithClock sets the clock driving timeouts
func WithClock(clk clock.WithTicker) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithPolicy sets the admission policy; it takes precedence over Config.Policy
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithProcessDAO sets the process store
func WithProcessDAO(dao dao.Service[string, execution.Process]) Option {
	return func(s *Service) {
		s.processDAO = dao
	}
}

// WithEventService sets the service publishing process events
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithProcessListener registers a handler of process lifecycle events
func WithProcessListener(handler func(*event.Event[ProcessEvent])) Option {
	return func(s *Service) {
		s.processListener = handler
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom exporter
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
