package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/floor/escalation"
	"github.com/viant/floor/extension"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/policy"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/service/metrics"
	"github.com/viant/floor/service/team"
	"github.com/viant/floor/service/watchdog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotStarted is returned when invoking a function before Start
	ErrNotStarted = errors.New("kernel not started")
	// ErrClosed is returned when invoking a function after Shutdown
	ErrClosed = errors.New("kernel closed")
	// ErrNotAdmitted is returned when the admission policy refused an invocation
	ErrNotAdmitted = errors.New("invocation not admitted")
)

// Listener is notified when a process starts and when it finishes
type Listener func(process *Process)

// Kernel runs processes of an office: it owns the teams, the managed object
// sources and pools, and the watchdog synthesizing timeouts.
type Kernel struct {
	office    *model.Office
	registry  *extension.Registry
	logger    logr.Logger
	metrics   *metrics.Recorder
	watchdog  *watchdog.Service
	policy    *policy.Policy
	listeners []Listener

	functions   []types.Function
	duties      map[*model.Duty]types.Duty
	sources     []managed.Source
	metadata    []*managed.Metadata
	pools       []*managed.Pool
	governances []governance.Factory
	teams       []team.Team
	passive     team.Team

	mux       sync.RWMutex
	started   bool
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	processes map[string]*Process
	loops     sync.WaitGroup
}

// New creates a kernel for the office; every name the office refers to must
// be registered.
func New(office *model.Office, registry *extension.Registry, options ...Option) (*Kernel, error) {
	if office == nil {
		return nil, fmt.Errorf("office was nil")
	}
	if err := office.Init(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = extension.New()
	}
	if err := registry.Validate(office); err != nil {
		return nil, err
	}
	ret := &Kernel{
		office:    office,
		registry:  registry,
		logger:    logr.Discard(),
		duties:    map[*model.Duty]types.Duty{},
		processes: map[string]*Process{},
	}
	for _, option := range options {
		option(ret)
	}
	if ret.watchdog == nil {
		ret.watchdog = watchdog.New(watchdog.WithLogger(ret.logger))
	}
	if err := ret.resolve(); err != nil {
		return nil, err
	}
	return ret, nil
}

// resolve binds every office name to its registered implementation
func (k *Kernel) resolve() error {
	var err error
	k.functions = make([]types.Function, len(k.office.Functions))
	for i, function := range k.office.Functions {
		if k.functions[i], err = k.registry.Function(function.Logic); err != nil {
			return fmt.Errorf("function %v: %w", function.Name, err)
		}
		for _, duty := range append(append([]*model.Duty{}, function.Pre...), function.Post...) {
			if k.duties[duty], err = k.registry.Duty(duty.Logic); err != nil {
				return fmt.Errorf("function %v: duty %v: %w", function.Name, duty.Name, err)
			}
		}
	}
	k.sources = make([]managed.Source, len(k.office.ManagedObjects))
	k.metadata = make([]*managed.Metadata, len(k.office.ManagedObjects))
	k.pools = make([]*managed.Pool, len(k.office.ManagedObjects))
	for i, object := range k.office.ManagedObjects {
		if k.sources[i], err = k.registry.Source(object.Source); err != nil {
			return fmt.Errorf("managed object %v: %w", object.Name, err)
		}
	}
	k.governances = make([]governance.Factory, len(k.office.Governances))
	for i, meta := range k.office.Governances {
		if k.governances[i], err = k.registry.Governance(meta.Factory); err != nil {
			return fmt.Errorf("governance %v: %w", meta.Name, err)
		}
	}
	options := []team.Option{team.WithLogger(k.logger), team.WithListener(k.onJob)}
	k.teams = make([]team.Team, len(k.office.Teams))
	for i, meta := range k.office.Teams {
		if k.teams[i], err = k.registry.Team(meta, options...); err != nil {
			return err
		}
	}
	k.passive, _ = team.NewPassive(&model.Team{Name: "passive", Kind: model.TeamPassive, Index: -1}, options...)
	return nil
}

// Office returns the kernel office
func (k *Kernel) Office() *model.Office {
	return k.office
}

// Start initialises sources, starts teams, the watchdog loop and the sources
// instigating processing.
func (k *Kernel) Start(ctx context.Context) error {
	k.mux.Lock()
	if k.started {
		k.mux.Unlock()
		return nil
	}
	if k.closed {
		k.mux.Unlock()
		return ErrClosed
	}
	k.ctx, k.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := k.initSources(); err != nil {
		k.cancel()
		k.mux.Unlock()
		return err
	}
	teams := k.allTeams()
	for i, aTeam := range teams {
		if err := aTeam.Start(k.ctx); err != nil {
			for _, started := range teams[:i] {
				if sErr := started.Shutdown(ctx); sErr != nil {
					k.logger.Error(sErr, "failed to shut down team", "team", started.Name())
				}
			}
			k.cancel()
			k.mux.Unlock()
			return fmt.Errorf("team %v: failed to start: %w", aTeam.Name(), err)
		}
	}
	k.started = true
	k.mux.Unlock()

	k.loops.Add(1)
	go func() {
		defer k.loops.Done()
		k.watchdog.Run(k.ctx)
	}()
	for _, source := range k.distinctSources() {
		starter, ok := source.(managed.Starter)
		if !ok {
			continue
		}
		if err := starter.Start(k.ctx, k); err != nil {
			return fmt.Errorf("failed to start source: %w", err)
		}
	}
	k.logger.V(1).Info("kernel started", "office", k.office.Name, "teams", len(k.teams))
	return nil
}

// initSources initialises every source and creates the pools; pooled
// managed objects of one declared object type share a pool, sourced and
// bounded by the first of them. Caller holds the lock.
func (k *Kernel) initSources() error {
	pools := map[interface{}]*managed.Pool{}
	for i, object := range k.office.ManagedObjects {
		sourceContext, err := managed.NewSourceContext(object.Name, object.Properties, k.logger.WithValues("managedObject", object.Name))
		if err != nil {
			return err
		}
		metadata, err := k.sources[i].Init(sourceContext)
		if err != nil {
			return fmt.Errorf("managed object %v: failed to init source %v: %w", object.Name, object.Source, err)
		}
		if metadata == nil {
			metadata = &managed.Metadata{}
		}
		k.metadata[i] = metadata
		if object.Pool == nil {
			continue
		}
		var key interface{} = object.Name
		if metadata.ObjectType != nil {
			key = metadata.ObjectType
		}
		pool, ok := pools[key]
		if !ok {
			pool = managed.NewPool(object.Name, k.sources[i], object.Pool.Max)
			pools[key] = pool
		}
		k.pools[i] = pool
	}
	return nil
}

// Invoke implements managed.Invoker
func (k *Kernel) Invoke(ctx context.Context, function string, parameter interface{}) error {
	_, err := k.InvokeFunction(ctx, function, parameter)
	return err
}

// InvokeFunction starts a process running the named function
func (k *Kernel) InvokeFunction(ctx context.Context, name string, parameter interface{}) (*Handle, error) {
	function, ok := k.office.Function(name)
	if !ok {
		return nil, fmt.Errorf("function %v not found", name)
	}
	admission := policy.FromContext(ctx)
	if admission == nil {
		admission = k.policy
	}
	if !admission.Admit(ctx, name, parameter) {
		return nil, fmt.Errorf("function %v: %w", name, ErrNotAdmitted)
	}
	k.mux.Lock()
	switch {
	case k.closed:
		k.mux.Unlock()
		return nil, ErrClosed
	case !k.started:
		k.mux.Unlock()
		return nil, ErrNotStarted
	}
	process := newProcess(ctx, k, function)
	k.processes[process.ID] = process
	k.mux.Unlock()

	k.metrics.ProcessStarted()
	k.notify(process)
	process.start(function, parameter)
	return process.handle, nil
}

// Process returns a running process
func (k *Kernel) Process(id string) (*Process, bool) {
	k.mux.RLock()
	defer k.mux.RUnlock()
	process, ok := k.processes[id]
	return process, ok
}

// Processes returns the running processes
func (k *Kernel) Processes() []*Process {
	k.mux.RLock()
	defer k.mux.RUnlock()
	result := make([]*Process, 0, len(k.processes))
	for _, process := range k.processes {
		result = append(result, process)
	}
	return result
}

// Shutdown stops sources, drains teams in parallel and tears down the
// processes still running.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.mux.Lock()
	if k.closed {
		k.mux.Unlock()
		return nil
	}
	k.closed = true
	started := k.started
	k.mux.Unlock()
	if !started {
		return nil
	}
	var errs []error
	for _, source := range k.distinctSources() {
		if stopper, ok := source.(managed.Stopper); ok {
			if err := stopper.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, aTeam := range k.allTeams() {
		aTeam := aTeam
		group.Go(func() error {
			if err := aTeam.Shutdown(groupCtx); err != nil {
				return fmt.Errorf("team %v: %w", aTeam.Name(), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		errs = append(errs, err)
	}
	for _, process := range k.Processes() {
		process.abort(&escalation.TeamShutdownFailure{Team: "*"})
	}
	for _, process := range k.Processes() {
		select {
		case <-process.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("process %v: %w", process.ID, ctx.Err()))
		}
	}
	closed := map[*managed.Pool]bool{}
	for _, pool := range k.pools {
		if pool == nil || closed[pool] {
			continue
		}
		closed[pool] = true
		if err := pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	k.cancel()
	k.loops.Wait()
	k.logger.V(1).Info("kernel stopped", "office", k.office.Name)
	return errors.Join(errs...)
}

func (k *Kernel) allTeams() []team.Team {
	return append(append([]team.Team{}, k.teams...), k.passive)
}

// distinctSources returns the source of each registered name once; sources
// may be func values, so they are told apart by name
func (k *Kernel) distinctSources() []managed.Source {
	var result []managed.Source
	seen := map[string]bool{}
	for i, object := range k.office.ManagedObjects {
		if seen[object.Source] {
			continue
		}
		seen[object.Source] = true
		result = append(result, k.sources[i])
	}
	return result
}

func (k *Kernel) team(index int) team.Team {
	if index < 0 || index >= len(k.teams) {
		return k.passive
	}
	return k.teams[index]
}

// newContainer creates a container of the managed object at index
func (k *Kernel) newContainer(index int) *managed.Container {
	object := k.office.ManagedObjects[index]
	container := managed.NewContainer(object, k.sources[index], k.pools[index], k.metadata[index])
	container.OnRelease(func(state managed.State) {
		k.metrics.RecordObject(object.Name, string(state))
	})
	return container
}

// newGovernance creates a governance container of the governance at index
func (k *Kernel) newGovernance(index int) *governance.Container {
	meta := k.office.Governances[index]
	container := governance.NewContainer(meta, k.governances[index]())
	container.OnChange(func(state governance.State) {
		if state.IsTerminal() {
			k.metrics.RecordGovernance(meta.Name, string(state))
		}
	})
	return container
}

func (k *Kernel) onJob(teamName string, aJob team.Job, elapsed time.Duration) {
	kind := "job"
	if actual, ok := aJob.(*job); ok {
		kind = actual.kind.String()
	}
	k.metrics.RecordJob(teamName, kind, elapsed)
}

func (k *Kernel) finished(process *Process) {
	k.mux.Lock()
	delete(k.processes, process.ID)
	k.mux.Unlock()
	k.notify(process)
}

func (k *Kernel) notify(process *Process) {
	for _, listener := range k.listeners {
		listener(process)
	}
}
