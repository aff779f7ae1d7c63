package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the kernel.
// Fields are signed and may decrement a counter.
type Delta struct {
	Total     int
	Completed int
	Failed    int
	Escalated int
	Suspended int
	Discarded int
	Running   int
}

// Progress keeps aggregated job counters for a single process. It is safe
// for concurrent use.
type Progress struct {
	ProcessID string
	Function  string
	StartedAt time.Time

	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	Escalations   int
	SuspendedJobs int
	DiscardedJobs int
	RunningJobs   int

	sync.Mutex
	onChange func(Progress)
}

// Update applies the delta; the onChange callback receives a copy outside
// the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.TotalJobs += d.Total
	p.CompletedJobs += d.Completed
	p.FailedJobs += d.Failed
	p.Escalations += d.Escalated
	p.SuspendedJobs += d.Suspended
	p.DiscardedJobs += d.Discarded
	p.RunningJobs += d.Running
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

func (p *Progress) copy() Progress {
	return Progress{
		ProcessID:     p.ProcessID,
		Function:      p.Function,
		StartedAt:     p.StartedAt,
		TotalJobs:     p.TotalJobs,
		CompletedJobs: p.CompletedJobs,
		FailedJobs:    p.FailedJobs,
		Escalations:   p.Escalations,
		SuspendedJobs: p.SuspendedJobs,
		DiscardedJobs: p.DiscardedJobs,
		RunningJobs:   p.RunningJobs,
	}
}

// Snapshot returns a copy suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

// OnChange registers a callback invoked after every Update; nil disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a tracker and embeds it in a derived context.
func WithNewTracker(ctx context.Context, processID, function string, onChange func(Progress)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		ProcessID: processID,
		Function:  function,
		StartedAt: time.Now(),
		onChange:  onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// GetSnapshot combines FromContext and Snapshot.
func GetSnapshot(ctx context.Context) (Progress, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Progress{}, false
}

// UpdateCtx applies the delta to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
