package execution

import (
	"fmt"
	"sort"

	"github.com/viant/floor/escalation"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/progress"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
)

// Thread runs its flows one job at a time; the top flow of the stack is the
// one being executed.
type Thread struct {
	ID       string
	process  *Process
	handlers []*model.Escalation

	stack       []*Flow
	current     *job
	containers  map[int]*managed.Container
	governances map[int]*governance.Container
	skipThread  bool
	skipProcess bool
	finished    bool
	done        chan struct{}
}

// ThreadID implements types.FlowHandle
func (t *Thread) ThreadID() string { return t.ID }

// Done is closed once the thread completed all its flows
func (t *Thread) Done() <-chan struct{} { return t.done }

func (t *Thread) push(flow *Flow) {
	t.stack = append(t.stack, flow)
}

func (t *Thread) top() *Flow {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

func (t *Thread) pop() *Flow {
	flow := t.top()
	if flow != nil {
		t.stack = t.stack[:len(t.stack)-1]
	}
	return flow
}

func (t *Thread) activeGovernances() []*governance.Container {
	indices := make([]int, 0, len(t.governances))
	for index := range t.governances {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	var result []*governance.Container
	for _, index := range indices {
		if container := t.governances[index]; container.IsActive() {
			result = append(result, container)
		}
	}
	return result
}

// Flow is an ordered chain of jobs of one thread
type Flow struct {
	ID       string
	thread   *Thread
	handlers []*model.Escalation

	queue       []*job
	joins       []*Thread
	governances []*ownedGovernance
	completing  bool
	closed      bool
	done        chan struct{}
}

// ThreadID implements types.FlowHandle
func (f *Flow) ThreadID() string { return f.thread.ID }

// Done is closed once the flow completed or was aborted
func (f *Flow) Done() <-chan struct{} { return f.done }

func (f *Flow) joining() bool {
	pending := f.joins[:0]
	for _, thread := range f.joins {
		if !thread.finished {
			pending = append(pending, thread)
		}
	}
	f.joins = pending
	return len(f.joins) > 0
}

func (f *Flow) close() {
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}

// ownedGovernance is a governance the owner must enforce or disregard before
// its containers are released
type ownedGovernance struct {
	container *governance.Container
	teamIndex int
	function  *model.Function
}

// invocation groups the jobs of one function: pre duties, the function and
// post duties share its function scoped containers.
type invocation struct {
	sequence    int
	function    *model.Function
	flow        *Flow
	parameter   interface{}
	output      interface{}
	handler     bool
	containers  map[int]*managed.Container
	governances []*ownedGovernance
	remaining   int
	completing  bool
	finished    bool
}

// pendingFlow is a nested flow started once the instigating job succeeded
type pendingFlow struct {
	flow      *Flow
	function  *model.Function
	parameter interface{}
}

func (p *Process) newThread(handlers []*model.Escalation) *Thread {
	thread := &Thread{
		ID:          p.nextID("thread-"),
		process:     p,
		handlers:    handlers,
		containers:  map[int]*managed.Container{},
		governances: map[int]*governance.Container{},
		done:        make(chan struct{}),
	}
	p.threads = append(p.threads, thread)
	return thread
}

func (p *Process) newFlow(thread *Thread, handlers []*model.Escalation) *Flow {
	return &Flow{ID: p.nextID("flow-"), thread: thread, handlers: handlers, done: make(chan struct{})}
}

// newInvocation schedules the jobs of function ahead of the flow queue
func (p *Process) newInvocation(flow *Flow, function *model.Function, parameter interface{}) *invocation {
	inv := &invocation{
		function:   function,
		flow:       flow,
		parameter:  parameter,
		containers: map[int]*managed.Container{},
	}
	p.sequence++
	inv.sequence = p.sequence
	var jobs []*job
	for _, duty := range function.Pre {
		jobs = append(jobs, p.newDutyJob(inv, duty))
	}
	main := p.newJob(kindFunction, flow, inv, function)
	main.objectIndices = function.ObjectIndices
	jobs = append(jobs, main)
	for _, duty := range function.Post {
		jobs = append(jobs, p.newDutyJob(inv, duty))
	}
	inv.remaining = len(jobs)
	flow.queue = append(jobs, flow.queue...)
	p.invocations[inv] = true
	p.progress.Update(progress.Delta{Total: len(jobs)})
	return inv
}

func (p *Process) newDutyJob(inv *invocation, duty *model.Duty) *job {
	ret := p.newJob(kindDuty, inv.flow, inv, inv.function)
	ret.duty = duty
	ret.teamIndex = duty.TeamIndex
	ret.objectIndices = duty.ObjectIndices
	return ret
}

// completeInvocation completes invocation owned governance, then releases the
// function scoped containers and schedules the next function.
func (p *Process) completeInvocation(inv *invocation, eff *effects) {
	if !inv.completing {
		inv.completing = true
		jobs := p.governanceJobs(inv.flow, inv, inv.governances)
		if len(jobs) > 0 {
			inv.remaining += len(jobs)
			inv.flow.queue = append(jobs, inv.flow.queue...)
			return
		}
	}
	inv.finished = true
	delete(p.invocations, inv)
	eff.release = append(eff.release, sorted(inv.containers)...)
	if next := inv.function.NextIndex; next >= 0 && !inv.handler {
		p.newInvocation(inv.flow, p.kernel.office.Functions[next], inv.output)
	}
}

func (p *Process) governanceJobs(flow *Flow, inv *invocation, owned []*ownedGovernance) []*job {
	var jobs []*job
	for _, candidate := range owned {
		if !candidate.container.IsActive() {
			continue
		}
		ret := p.newJob(kindGovernance, flow, inv, candidate.function)
		ret.governance = candidate.container
		ret.teamIndex = candidate.teamIndex
		jobs = append(jobs, ret)
	}
	if len(jobs) > 0 {
		p.progress.Update(progress.Delta{Total: len(jobs)})
	}
	return jobs
}

// advance dispatches the next job of the thread; caller holds the lock
func (p *Process) advance(t *Thread, eff *effects) {
	if p.terminating || t.finished {
		return
	}
	for t.current == nil {
		flow := t.top()
		if flow == nil {
			p.finishThread(t, eff)
			return
		}
		if flow.joining() {
			return
		}
		if len(flow.queue) > 0 {
			next := flow.queue[0]
			flow.queue = flow.queue[1:]
			t.current = next
			p.dispatch(next, eff)
			return
		}
		if !flow.completing {
			flow.completing = true
			flow.queue = p.governanceJobs(flow, nil, flow.governances)
			continue
		}
		t.pop()
		flow.close()
	}
}

func (p *Process) dispatch(j *job, eff *effects) {
	j.state = jobQueued
	eff.actions = append(eff.actions, func() { p.execute(j) })
}

// finishThread releases the thread scope and resumes threads joining it
func (p *Process) finishThread(t *Thread, eff *effects) {
	t.finished = true
	eff.disregard = append(eff.disregard, t.activeGovernances()...)
	eff.release = append(eff.release, sorted(t.containers)...)
	close(t.done)
	for i, candidate := range p.threads {
		if candidate == t {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			break
		}
	}
	for _, other := range p.threads {
		if other.current == nil {
			p.advance(other, eff)
		}
	}
}

// doFlow instigates a flow on behalf of a running function job
func (p *Process) doFlow(j *job, link *model.FlowLink, parameter interface{}) (types.FlowHandle, error) {
	eff := &effects{}
	p.mux.Lock()
	if p.terminating || j.state != jobRunning {
		p.mux.Unlock()
		return nil, fmt.Errorf("flow %v: function %v is no longer running", link.Name, j.function.Name)
	}
	function := p.kernel.office.Functions[link.FunctionIndex]
	var handle types.FlowHandle
	if link.Spawn {
		thread := p.newThread(link.Escalations)
		flow := p.newFlow(thread, nil)
		thread.push(flow)
		p.newInvocation(flow, function, parameter)
		p.advance(thread, eff)
		handle = thread
	} else {
		flow := p.newFlow(j.thread, link.Escalations)
		j.nested = append(j.nested, &pendingFlow{flow: flow, function: function, parameter: parameter})
		handle = flow
	}
	p.mux.Unlock()
	j.logger.V(1).Info("flow instigated", "flow", link.Name, "function", function.Name, "spawn", link.Spawn)
	eff.run(p)
	return handle, nil
}

// join holds the job's flow until the spawned threads completed
func (p *Process) join(j *job, handles []types.FlowHandle) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if j.state != jobRunning {
		return fmt.Errorf("join: function %v is no longer running", j.function.Name)
	}
	for _, handle := range handles {
		thread, ok := handle.(*Thread)
		if !ok {
			continue
		}
		if thread.process != p {
			return fmt.Errorf("join: thread %v belongs to another process", thread.ID)
		}
		if thread != j.thread {
			j.joins = append(j.joins, thread)
		}
	}
	return nil
}

// succeed applies the outcome of a successful job; caller holds the lock
func (p *Process) succeed(j *job, output interface{}, eff *effects) {
	if j.kind == kindFunction {
		j.invocation.output = output
		for i := len(j.nested) - 1; i >= 0; i-- {
			nested := j.nested[i]
			j.thread.push(nested.flow)
			p.newInvocation(nested.flow, nested.function, nested.parameter)
		}
		j.flow.joins = append(j.flow.joins, j.joins...)
	}
	if inv := j.invocation; inv != nil && !inv.finished {
		if inv.remaining--; inv.remaining == 0 {
			p.completeInvocation(inv, eff)
		}
	}
}

// activate returns the thread governance container, creating it when absent
// or completed, and the job's containers it governs
func (p *Process) activate(j *job, meta *model.Governance) (*governance.Container, []*managed.Container, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.terminating || j.state != jobRunning {
		return nil, nil, fmt.Errorf("governance %v: duty %v is no longer running", meta.Name, j.duty.Name)
	}
	t := j.thread
	container := t.governances[meta.Index]
	if container == nil || container.State().IsTerminal() {
		container = p.kernel.newGovernance(meta.Index)
		t.governances[meta.Index] = container
	}
	var governed []*managed.Container
	functionScoped := false
	for _, candidate := range j.acquired {
		object := candidate.ManagedObject()
		if !object.HasExtension(meta.Extension) {
			continue
		}
		governed = append(governed, candidate)
		if object.Scope == model.ScopeFunction {
			functionScoped = true
		}
	}
	owned := &ownedGovernance{container: container, teamIndex: j.teamIndex, function: j.function}
	if functionScoped && j.invocation != nil {
		j.invocation.governances = own(j.invocation.governances, owned)
	} else {
		j.flow.governances = own(j.flow.governances, owned)
	}
	return container, governed, nil
}

func own(owned []*ownedGovernance, candidate *ownedGovernance) []*ownedGovernance {
	for _, existing := range owned {
		if existing.container == candidate.container {
			return owned
		}
	}
	return append(owned, candidate)
}

// governance returns the active thread governance container
func (p *Process) governance(j *job, meta *model.Governance, action string) (*governance.Container, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	container := j.thread.governances[meta.Index]
	if container == nil {
		return nil, fmt.Errorf("governance %v: %v while inactive: %w", meta.Name, action, escalation.ErrContractViolation)
	}
	return container, nil
}
