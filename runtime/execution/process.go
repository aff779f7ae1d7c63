package execution

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/floor/escalation"
	"github.com/viant/floor/internal/idgen"
	"github.com/viant/floor/model"
	"github.com/viant/floor/progress"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/tracing"
)

// Process state constants
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Process is the state of one function invocation of the office: its
// threads, the process scoped containers and the escalation handlers
// applying to all its threads.
type Process struct {
	ID        string
	Function  string
	CreatedAt time.Time

	kernel   *Kernel
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logr.Logger
	span     *tracing.Span
	progress *progress.Progress
	handle   *Handle
	done     chan struct{}

	mux         sync.Mutex
	state       string
	finishedAt  *time.Time
	threads     []*Thread
	sequence    int
	containers  map[int]*managed.Container
	invocations map[*invocation]bool
	running     int
	terminating bool
	finished    bool
	failure     *escalation.FatalFailure
}

func newProcess(ctx context.Context, k *Kernel, function *model.Function) *Process {
	if ctx == nil {
		ctx = context.Background()
	}
	ret := &Process{
		ID:          idgen.New(),
		Function:    function.Name,
		CreatedAt:   k.watchdog.Now(),
		kernel:      k,
		state:       StateRunning,
		done:        make(chan struct{}),
		containers:  map[int]*managed.Container{},
		invocations: map[*invocation]bool{},
	}
	spanCtx, span := tracing.StartSpan(ctx, "process.run "+function.Name, tracing.KindInternal)
	span.WithAttributes(map[string]string{"process.id": ret.ID, "office": k.office.Name})
	ret.span = span
	processCtx, tracker := progress.WithNewTracker(context.WithoutCancel(spanCtx), ret.ID, function.Name, nil)
	ret.progress = tracker
	ret.ctx, ret.cancel = context.WithCancel(processCtx)
	ret.logger = k.logger.WithValues("process", ret.ID)
	ret.handle = &Handle{process: ret}
	return ret
}

// State returns the process state
func (p *Process) State() string {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.state
}

// FinishedAt returns when the process finished, nil while running
func (p *Process) FinishedAt() *time.Time {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.finishedAt
}

// Failure returns the fatal failure of a failed process
func (p *Process) Failure() *escalation.FatalFailure {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.failure
}

// Done is closed once the process finished and released its containers. An
// object still awaited by a job detached on timeout is destroyed once it is
// delivered.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Progress returns the job counters of the process
func (p *Process) Progress() progress.Progress {
	return p.progress.Snapshot()
}

// Handle returns the invocation handle
func (p *Process) Handle() *Handle {
	return p.handle
}

// Threads returns the number of active threads
func (p *Process) Threads() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.threads)
}

func (p *Process) nextID(prefix string) string {
	p.sequence++
	return prefix + itoa(p.sequence)
}

// start creates the root thread running function
func (p *Process) start(function *model.Function, parameter interface{}) {
	eff := &effects{}
	p.mux.Lock()
	thread := p.newThread(p.kernel.office.ThreadEscalations)
	flow := p.newFlow(thread, nil)
	thread.push(flow)
	p.newInvocation(flow, function, parameter)
	p.advance(thread, eff)
	p.settle(eff)
	p.mux.Unlock()
	p.logger.V(1).Info("process started", "function", function.Name)
	eff.run(p)
}

// container returns the container of the object at index in the job's scope;
// caller holds the lock
func (p *Process) container(j *job, index int) *managed.Container {
	var containers map[int]*managed.Container
	switch p.kernel.office.ManagedObjects[index].Scope {
	case model.ScopeProcess:
		containers = p.containers
	case model.ScopeThread:
		containers = j.thread.containers
	default:
		containers = j.invocation.containers
	}
	container, ok := containers[index]
	if !ok {
		container = p.kernel.newContainer(index)
		containers[index] = container
	}
	return container
}

// execute hands the job to its team
func (p *Process) execute(j *job) {
	aTeam := p.kernel.team(j.teamIndex)
	if err := aTeam.Execute(j); err != nil {
		j.Abort(&escalation.TeamShutdownFailure{Team: aTeam.Name()})
	}
}

// settle finishes the process once nothing runs anymore; caller holds the lock
func (p *Process) settle(eff *effects) {
	if p.finished || p.running > 0 {
		return
	}
	if p.terminating {
		p.teardown(eff)
		return
	}
	if len(p.threads) > 0 {
		return
	}
	p.finished = true
	eff.release = append(eff.release, sorted(p.containers)...)
	eff.actions = append(eff.actions, func() { p.close(nil) })
}

// fatal stops scheduling; teardown follows once running jobs returned.
// Caller holds the lock.
func (p *Process) fatal(j *job, failure error, eff *effects) {
	if p.terminating {
		return
	}
	p.terminating = true
	function := p.Function
	if j != nil && j.function != nil {
		function = j.function.Name
	}
	p.failure = &escalation.FatalFailure{ProcessID: p.ID, Function: function, Err: failure}
	p.kernel.metrics.RecordEscalation(failureType(failure), "fatal")
	p.logger.Error(failure, "process terminated", "function", function)
	discarded := 0
	for _, thread := range p.threads {
		for _, flow := range thread.stack {
			for _, pending := range flow.queue {
				pending.state = jobDiscarded
				discarded++
			}
			flow.queue = nil
		}
		current := thread.current
		if current == nil || current == j {
			continue
		}
		switch current.state {
		case jobQueued:
			current.state = jobDiscarded
			discarded++
		case jobSuspended:
			current.state = jobDiscarded
			current.stopWatching()
			eff.unuse = append(eff.unuse, current)
			discarded++
		}
	}
	p.progress.Update(progress.Delta{Discarded: discarded})
	p.cancel()
}

// abort terminates the process with failure
func (p *Process) abort(failure error) {
	eff := &effects{}
	p.mux.Lock()
	if p.finished {
		p.mux.Unlock()
		return
	}
	p.fatal(nil, failure, eff)
	p.settle(eff)
	p.mux.Unlock()
	eff.run(p)
}

// teardown disregards active governance then releases every container,
// function scope first; caller holds the lock
func (p *Process) teardown(eff *effects) {
	p.finished = true
	invocations := make([]*invocation, 0, len(p.invocations))
	for inv := range p.invocations {
		invocations = append(invocations, inv)
	}
	sort.Slice(invocations, func(i, j int) bool { return invocations[i].sequence < invocations[j].sequence })
	for _, inv := range invocations {
		inv.finished = true
		for _, owned := range inv.governances {
			eff.disregard = append(eff.disregard, owned.container)
		}
		eff.release = append(eff.release, sorted(inv.containers)...)
	}
	p.invocations = map[*invocation]bool{}
	for _, thread := range p.threads {
		eff.disregard = append(eff.disregard, thread.activeGovernances()...)
		eff.release = append(eff.release, sorted(thread.containers)...)
		thread.finished = true
		for _, flow := range thread.stack {
			flow.close()
		}
		thread.stack = nil
		done := thread.done
		eff.actions = append(eff.actions, func() { close(done) })
	}
	p.threads = nil
	eff.release = append(eff.release, sorted(p.containers)...)
	failure := p.failure
	eff.actions = append(eff.actions, func() { p.close(failure) })
}

// close marks the process finished once every container was released
func (p *Process) close(failure *escalation.FatalFailure) {
	now := p.kernel.watchdog.Now()
	var err error
	p.mux.Lock()
	p.finishedAt = &now
	p.state = StateCompleted
	if failure != nil {
		p.state = StateFailed
		err = failure
	}
	state := p.state
	p.mux.Unlock()
	p.cancel()
	tracing.EndSpan(p.span, err)
	p.kernel.metrics.ProcessFinished(state)
	p.logger.V(1).Info("process finished", "state", state, "elapsed", now.Sub(p.CreatedAt))
	p.kernel.finished(p)
	close(p.done)
}

// effects collects the side effects of a state change; they run after the
// process lock is released: waiters are withdrawn, governance is disregarded
// before any container is released, then the remaining actions run in order.
type effects struct {
	unuse     []*job
	disregard []*governance.Container
	release   []*managed.Container
	actions   []func()
}

func (e *effects) run(p *Process) {
	for _, j := range e.unuse {
		j.dispose()
	}
	ctx := context.WithoutCancel(p.ctx)
	for _, container := range e.disregard {
		if err := container.ForceDisregard(ctx); err != nil {
			p.logger.Error(err, "failed to disregard governance", "governance", container.Name())
		}
	}
	for _, container := range e.release {
		if err := container.Release(); err != nil {
			p.logger.Error(err, "failed to release managed object", "managedObject", container.Name())
		}
	}
	for _, action := range e.actions {
		action()
	}
}

func sorted(containers map[int]*managed.Container) []*managed.Container {
	indices := make([]int, 0, len(containers))
	for index := range containers {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	result := make([]*managed.Container, 0, len(indices))
	for _, index := range indices {
		result = append(result, containers[index])
	}
	return result
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = digits[i%10]
		i /= 10
	}
	return string(buf[pos:])
}
