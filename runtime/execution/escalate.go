package execution

import (
	"errors"

	"github.com/viant/floor/escalation"
	"github.com/viant/floor/model"
	"github.com/viant/floor/progress"
)

// Escalation levels
const (
	levelFunction = "function"
	levelFlow     = "flow"
	levelThread   = "thread"
	levelProcess  = "process"
)

// escalate routes failure of job j to the closest matching handler:
// function, enclosing flows innermost first, thread, then process. The
// handler runs in place of the work it aborts. Caller holds the lock.
func (p *Process) escalate(j *job, failure error, eff *effects) {
	if p.terminating || escalation.IsContractViolation(failure) {
		p.fatal(j, failure, eff)
		return
	}
	p.progress.Update(progress.Delta{Escalated: 1})
	t := j.thread
	if inv := j.invocation; inv != nil && !inv.handler {
		if handler := p.handler(inv.function.Escalations, failure); handler != nil {
			p.record(j, failure, levelFunction, handler)
			p.abortInvocation(inv, eff)
			p.newInvocation(inv.flow, handler, failure).handler = true
			return
		}
	}
	for k := len(t.stack) - 1; k >= 0; k-- {
		flow := t.stack[k]
		handler := p.handler(flow.handlers, failure)
		if handler == nil {
			continue
		}
		p.record(j, failure, levelFlow, handler)
		for len(t.stack) > k+1 {
			above := t.pop()
			p.abortFlow(above, eff)
			above.close()
		}
		p.abortFlow(flow, eff)
		flow.handlers = nil
		flow.completing = false
		p.newInvocation(flow, handler, failure).handler = true
		return
	}
	if !t.skipThread {
		if handler := p.handler(t.handlers, failure); handler != nil {
			p.record(j, failure, levelThread, handler)
			p.resetThread(t, handler, failure, eff)
			t.skipThread = true
			return
		}
	}
	if !t.skipProcess {
		if handler := p.handler(p.kernel.office.Escalations, failure); handler != nil {
			p.record(j, failure, levelProcess, handler)
			p.resetThread(t, handler, failure, eff)
			t.skipThread = true
			t.skipProcess = true
			return
		}
	}
	p.fatal(j, failure, eff)
}

func (p *Process) handler(handlers []*model.Escalation, failure error) *model.Function {
	index := escalation.Match(model.EscalationTypes(handlers), failure)
	if index == -1 {
		return nil
	}
	return p.kernel.office.Functions[handlers[index].FunctionIndex]
}

func (p *Process) record(j *job, failure error, level string, handler *model.Function) {
	p.kernel.metrics.RecordEscalation(failureType(failure), level)
	p.span.AddEvent("escalation", map[string]string{"level": level, "type": failureType(failure), "handler": handler.Name})
	j.logger.V(1).Info("escalation handled", "level", level, "handler", handler.Name, "failure", failure.Error())
}

// resetThread aborts every flow of the thread and runs handler as its root flow
func (p *Process) resetThread(t *Thread, handler *model.Function, failure error, eff *effects) {
	for len(t.stack) > 0 {
		flow := t.pop()
		p.abortFlow(flow, eff)
		flow.close()
	}
	flow := p.newFlow(t, nil)
	t.push(flow)
	p.newInvocation(flow, handler, failure).handler = true
}

// abortFlow discards the queued jobs of the flow and disregards the
// governance it owns ahead of releasing its function scoped containers
func (p *Process) abortFlow(flow *Flow, eff *effects) {
	discarded := 0
	for _, pending := range flow.queue {
		pending.state = jobDiscarded
		discarded++
	}
	flow.queue = nil
	flow.joins = nil
	for _, owned := range flow.governances {
		eff.disregard = append(eff.disregard, owned.container)
	}
	flow.governances = nil
	for _, inv := range p.flowInvocations(flow) {
		p.abortInvocation(inv, eff)
	}
	if discarded > 0 {
		p.progress.Update(progress.Delta{Discarded: discarded})
	}
}

func (p *Process) flowInvocations(flow *Flow) []*invocation {
	var result []*invocation
	for inv := range p.invocations {
		if inv.flow == flow {
			result = append(result, inv)
		}
	}
	return result
}

// abortInvocation discards the invocation's remaining jobs, disregards its
// governance and releases its containers
func (p *Process) abortInvocation(inv *invocation, eff *effects) {
	if inv.finished {
		return
	}
	inv.finished = true
	delete(p.invocations, inv)
	remaining := inv.flow.queue[:0]
	discarded := 0
	for _, pending := range inv.flow.queue {
		if pending.invocation == inv {
			pending.state = jobDiscarded
			discarded++
			continue
		}
		remaining = append(remaining, pending)
	}
	inv.flow.queue = remaining
	for _, owned := range inv.governances {
		eff.disregard = append(eff.disregard, owned.container)
	}
	eff.release = append(eff.release, sorted(inv.containers)...)
	if discarded > 0 {
		p.progress.Update(progress.Delta{Discarded: discarded})
	}
}

func failureType(err error) string {
	var failure escalation.Failure
	if errors.As(err, &failure) {
		return failure.EscalationType()
	}
	return "error"
}
