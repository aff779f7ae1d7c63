package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/floor/escalation"
	"github.com/viant/floor/model"
	"github.com/viant/floor/progress"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/tracing"
)

type jobKind int

const (
	kindFunction jobKind = iota
	kindDuty
	kindGovernance
)

func (k jobKind) String() string {
	switch k {
	case kindDuty:
		return "duty"
	case kindGovernance:
		return "governance"
	}
	return "function"
}

type jobState int

const (
	jobPending jobState = iota
	jobQueued
	jobRunning
	jobSuspended
	jobTimedOut
	jobDone
	jobDiscarded
)

// job is the unit of work dispatched on a team: a function, one of its
// duties, or the completion of a governance.
type job struct {
	id         string
	kind       jobKind
	process    *Process
	thread     *Thread
	flow       *Flow
	invocation *invocation
	function   *model.Function
	duty       *model.Duty
	governance *governance.Container
	teamIndex  int
	logger     logr.Logger

	objectIndices []int

	// guarded by process.mux
	state     jobState
	ctx       context.Context
	cancel    context.CancelFunc
	woken     bool
	invoked   bool
	stopWatch func()
	touched   []*managed.Container
	nested    []*pendingFlow
	joins     []*Thread
	violation error

	// owned by the goroutine running the job
	acquired []*managed.Container
}

func (p *Process) newJob(kind jobKind, flow *Flow, inv *invocation, function *model.Function) *job {
	id := p.nextID("job-")
	return &job{
		id:         id,
		kind:       kind,
		process:    p,
		thread:     flow.thread,
		flow:       flow,
		invocation: inv,
		function:   function,
		teamIndex:  function.TeamIndex,
		logger:     p.logger.WithValues("job", id, "function", function.Name),
	}
}

// ID implements team.Job
func (j *job) ID() string { return j.id }

func (j *job) name() string {
	switch j.kind {
	case kindDuty:
		return j.duty.Name
	case kindGovernance:
		return j.governance.Name()
	}
	return j.function.Name
}

// Run implements team.Job: it acquires the job's managed objects, suspending
// while one is not available, then runs the logic.
func (j *job) Run() {
	p := j.process
	p.mux.Lock()
	if j.state != jobQueued {
		p.mux.Unlock()
		return
	}
	j.state = jobRunning
	p.running++
	if j.ctx == nil {
		j.ctx, j.cancel = context.WithCancel(p.ctx)
	}
	p.progress.Update(progress.Delta{Running: 1})
	p.mux.Unlock()

	for len(j.acquired) < len(j.objectIndices) {
		index := j.objectIndices[len(j.acquired)]
		p.mux.Lock()
		container := p.container(j, index)
		j.woken = false
		j.touch(container)
		p.mux.Unlock()

		outcome, err := container.Acquire(p.ctx, j, j.wake)
		if err != nil {
			j.finish(nil, err)
			return
		}
		if outcome == managed.Pending {
			if j.suspend(index) {
				return
			}
			continue
		}
		j.acquired = append(j.acquired, container)
	}
	j.execute()
}

// touch remembers a container the job must stop using; caller holds the lock
func (j *job) touch(container *managed.Container) {
	for _, candidate := range j.touched {
		if candidate == container {
			return
		}
	}
	j.touched = append(j.touched, container)
}

// suspend parks the job until the container wakes it; false means it was
// woken meanwhile and should retry.
func (j *job) suspend(index int) bool {
	p := j.process
	eff := &effects{}
	p.mux.Lock()
	if j.woken {
		j.woken = false
		p.mux.Unlock()
		return false
	}
	p.running--
	if p.terminating {
		j.state = jobDiscarded
		p.progress.Update(progress.Delta{Running: -1, Discarded: 1})
		p.settle(eff)
		p.mux.Unlock()
		j.dispose()
		eff.run(p)
		return true
	}
	j.state = jobSuspended
	object := p.kernel.office.ManagedObjects[index]
	if timeout := object.TimeoutDuration(); timeout > 0 {
		j.stopWatch = p.kernel.watchdog.Watch(timeout, func() { j.expireWait(object.Name, timeout) })
	}
	p.progress.Update(progress.Delta{Running: -1, Suspended: 1})
	p.settle(eff)
	p.mux.Unlock()
	j.logger.V(2).Info("job suspended", "managedObject", object.Name)
	eff.run(p)
	return true
}

// wake is called by a container once the job may acquire it again
func (j *job) wake() {
	p := j.process
	p.mux.Lock()
	switch j.state {
	case jobSuspended:
		j.state = jobQueued
		j.stopWatching()
		p.progress.Update(progress.Delta{Suspended: -1})
		p.mux.Unlock()
		p.execute(j)
		return
	case jobRunning:
		j.woken = true
	}
	p.mux.Unlock()
}

func (j *job) execute() {
	p := j.process
	p.mux.Lock()
	j.invoked = true
	if timeout := j.timeout(); timeout > 0 {
		j.stopWatch = p.kernel.watchdog.Watch(timeout, func() { j.expireRun(timeout) })
	}
	ctx := j.ctx
	p.mux.Unlock()
	output, err := j.invoke(ctx)
	j.finish(output, err)
}

func (j *job) timeout() time.Duration {
	if j.kind == kindGovernance {
		return 0
	}
	return j.function.TimeoutDuration()
}

func (j *job) invoke(ctx context.Context) (output interface{}, err error) {
	p := j.process
	spanCtx, span := tracing.StartSpan(ctx, "job.run "+j.name(), tracing.KindInternal)
	span.WithAttributes(map[string]string{"job.id": j.id, "job.kind": j.kind.String()})
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		tracing.EndSpan(span, err)
	}()
	switch j.kind {
	case kindFunction:
		return p.kernel.functions[j.function.Index](&functionContext{jobContext{Context: spanCtx, job: j}})
	case kindDuty:
		return nil, p.kernel.duties[j.duty](&dutyContext{jobContext{Context: spanCtx, job: j}})
	default:
		return nil, j.governance.Complete(spanCtx)
	}
}

// finish applies the job outcome and moves the thread on
func (j *job) finish(output interface{}, err error) {
	p := j.process
	eff := &effects{}
	p.mux.Lock()
	if j.state == jobTimedOut {
		p.mux.Unlock()
		j.logger.V(1).Info("timed out job returned", "error", err)
		j.dispose()
		return
	}
	j.stopWatching()
	j.state = jobDone
	p.running--
	j.thread.current = nil
	if j.violation != nil {
		err = j.violation
	}
	if err != nil {
		p.progress.Update(progress.Delta{Running: -1, Failed: 1})
		p.escalate(j, j.wrap(err), eff)
	} else {
		p.progress.Update(progress.Delta{Running: -1, Completed: 1})
		if !p.terminating {
			p.succeed(j, output, eff)
		}
	}
	p.advance(j.thread, eff)
	p.settle(eff)
	p.mux.Unlock()
	j.dispose()
	eff.run(p)
}

// wrap types failures of the logic; kernel raised failures pass through
func (j *job) wrap(err error) error {
	if !j.invoked {
		return err
	}
	switch j.kind {
	case kindFunction:
		return &escalation.FunctionFailure{Function: j.function.Name, Err: err}
	case kindDuty:
		return &escalation.DutyFailure{Duty: j.duty.Name, Function: j.function.Name, Err: err}
	}
	return err
}

// expireRun escalates a job exceeding its function timeout; the job keeps
// running detached from its thread until its logic returns.
func (j *job) expireRun(timeout time.Duration) {
	p := j.process
	eff := &effects{}
	p.mux.Lock()
	if j.state != jobRunning {
		p.mux.Unlock()
		return
	}
	j.state = jobTimedOut
	j.stopWatch = nil
	p.running--
	j.thread.current = nil
	j.cancel()
	p.progress.Update(progress.Delta{Running: -1, Failed: 1})
	p.escalate(j, &escalation.TimeoutFailure{Function: j.function.Name, Timeout: timeout}, eff)
	p.advance(j.thread, eff)
	p.settle(eff)
	p.mux.Unlock()
	eff.run(p)
}

// expireWait escalates a job waiting too long for a managed object
func (j *job) expireWait(object string, timeout time.Duration) {
	p := j.process
	eff := &effects{}
	p.mux.Lock()
	if j.state != jobSuspended {
		p.mux.Unlock()
		return
	}
	j.state = jobDone
	j.stopWatch = nil
	j.thread.current = nil
	p.progress.Update(progress.Delta{Suspended: -1, Failed: 1})
	p.escalate(j, &escalation.TimeoutFailure{Function: j.function.Name, ManagedObject: object, Timeout: timeout}, eff)
	p.advance(j.thread, eff)
	p.settle(eff)
	p.mux.Unlock()
	j.dispose()
	eff.run(p)
}

// Abort implements team.Job: a job its team could not run is escalated
func (j *job) Abort(err error) {
	p := j.process
	eff := &effects{}
	p.mux.Lock()
	if j.state != jobQueued {
		p.mux.Unlock()
		return
	}
	j.state = jobDone
	j.thread.current = nil
	p.progress.Update(progress.Delta{Failed: 1})
	p.escalate(j, err, eff)
	p.advance(j.thread, eff)
	p.settle(eff)
	p.mux.Unlock()
	j.dispose()
	eff.run(p)
}

func (j *job) stopWatching() {
	if j.stopWatch != nil {
		j.stopWatch()
		j.stopWatch = nil
	}
}

// dispose stops using every container the job touched
func (j *job) dispose() {
	p := j.process
	p.mux.Lock()
	touched, cancel := j.touched, j.cancel
	j.touched = nil
	p.mux.Unlock()
	for _, container := range touched {
		if err := container.Unuse(j); err != nil {
			j.logger.Error(err, "failed to release managed object", "managedObject", container.Name())
		}
	}
	if cancel != nil {
		cancel()
	}
}

// record keeps a contract violation so that the job fails even when its
// logic swallowed the error
func (j *job) record(err error) error {
	if err != nil && escalation.IsContractViolation(err) {
		p := j.process
		p.mux.Lock()
		if j.violation == nil {
			j.violation = err
		}
		p.mux.Unlock()
	}
	return err
}

// declared returns the acquired container of a managed object the job declares
func (j *job) declared(name string) (*managed.Container, error) {
	for _, container := range j.acquired {
		if container.Name() == name {
			return container, nil
		}
	}
	return nil, fmt.Errorf("managed object %v not declared by %v", name, j.name())
}

func (j *job) parameter() interface{} {
	if j.invocation == nil {
		return nil
	}
	return j.invocation.parameter
}
