package extension

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/service/action/nop"
	"github.com/viant/floor/service/action/printer"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/service/team"
)

// Registry resolves the logic, sources, governances and team kinds an
// office refers to by name.
type Registry struct {
	mux         sync.RWMutex
	functions   map[string]types.Function
	duties      map[string]types.Duty
	sources     map[string]managed.Source
	governances map[string]governance.Factory
	teams       map[string]team.Factory
	proxies     []types.Proxy
}

// Option configures a registry
type Option func(r *Registry)

// WithOutput sets the writer of the built-in print function
func WithOutput(w io.Writer) Option {
	return func(r *Registry) {
		r.functions[printer.Name] = printer.New(w).Function
	}
}

// New creates a registry with the built-in nop and print logic
func New(options ...Option) *Registry {
	ret := &Registry{
		functions:   map[string]types.Function{nop.Name: nop.Function},
		duties:      map[string]types.Duty{nop.Name: nop.Duty},
		sources:     map[string]managed.Source{},
		governances: map[string]governance.Factory{},
		teams:       map[string]team.Factory{},
	}
	ret.functions[printer.Name] = printer.New(nil).Function
	for _, option := range options {
		option(ret)
	}
	return ret
}

// RegisterFunction registers function logic
func (r *Registry) RegisterFunction(name string, fn types.Function) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.functions[name] = fn
}

// RegisterDuty registers duty logic
func (r *Registry) RegisterDuty(name string, duty types.Duty) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.duties[name] = duty
}

// RegisterSource registers a managed object source
func (r *Registry) RegisterSource(name string, source managed.Source) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.sources[name] = source
}

// RegisterGovernance registers a governance factory
func (r *Registry) RegisterGovernance(name string, factory governance.Factory) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.governances[name] = factory
}

// RegisterTeam registers a custom team kind
func (r *Registry) RegisterTeam(kind string, factory team.Factory) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.teams[kind] = factory
}

// RegisterProxy decorates every function logic looked up afterwards
func (r *Registry) RegisterProxy(proxy types.Proxy) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.proxies = append(r.proxies, proxy)
}

// Function returns function logic wrapped by the registered proxies
func (r *Registry) Function(name string) (types.Function, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	fn, ok := r.functions[name]
	if !ok {
		return nil, types.NewLogicNotFoundError(name)
	}
	for _, proxy := range r.proxies {
		fn = proxy(name, fn)
	}
	return fn, nil
}

// Duty returns duty logic
func (r *Registry) Duty(name string) (types.Duty, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	duty, ok := r.duties[name]
	if !ok {
		return nil, types.NewLogicNotFoundError(name)
	}
	return duty, nil
}

// Source returns a managed object source
func (r *Registry) Source(name string) (managed.Source, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	source, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("source %v not registered", name)
	}
	return source, nil
}

// Governance returns a governance factory
func (r *Registry) Governance(name string) (governance.Factory, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	factory, ok := r.governances[name]
	if !ok {
		return nil, fmt.Errorf("governance %v not registered", name)
	}
	return factory, nil
}

// Team creates a team of a registered or built-in kind
func (r *Registry) Team(meta *model.Team, options ...team.Option) (team.Team, error) {
	r.mux.RLock()
	factory, ok := r.teams[meta.Kind]
	r.mux.RUnlock()
	if ok {
		return factory(meta, options...)
	}
	return team.New(meta, options...)
}

// Validate checks that everything the office refers to is registered
func (r *Registry) Validate(office *model.Office) error {
	var errs []error
	r.mux.RLock()
	for _, aTeam := range office.Teams {
		if _, ok := r.teams[aTeam.Kind]; ok {
			continue
		}
		if !isBuiltinKind(aTeam.Kind) {
			errs = append(errs, fmt.Errorf("team %v: unsupported kind %q", aTeam.Name, aTeam.Kind))
		}
	}
	for _, object := range office.ManagedObjects {
		if _, ok := r.sources[object.Source]; !ok {
			errs = append(errs, fmt.Errorf("managed object %v: source %v not registered", object.Name, object.Source))
		}
	}
	for _, aGovernance := range office.Governances {
		if _, ok := r.governances[aGovernance.Factory]; !ok {
			errs = append(errs, fmt.Errorf("governance %v: factory %v not registered", aGovernance.Name, aGovernance.Factory))
		}
	}
	for _, function := range office.Functions {
		if _, ok := r.functions[function.Logic]; !ok {
			errs = append(errs, fmt.Errorf("function %v: logic %v not registered", function.Name, function.Logic))
		}
		for _, duty := range append(append([]*model.Duty{}, function.Pre...), function.Post...) {
			if _, ok := r.duties[duty.Logic]; !ok {
				errs = append(errs, fmt.Errorf("function %v: duty %v: logic %v not registered", function.Name, duty.Name, duty.Logic))
			}
		}
	}
	r.mux.RUnlock()
	return errors.Join(errs...)
}

func isBuiltinKind(kind string) bool {
	for _, candidate := range team.Kinds() {
		if candidate == kind {
			return true
		}
	}
	return false
}
