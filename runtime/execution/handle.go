package execution

import (
	"context"

	"github.com/viant/floor/escalation"
	"github.com/viant/floor/progress"
)

// Handle is returned to the invoker of a function
type Handle struct {
	process *Process
}

// ProcessID returns the id of the invoked process
func (h *Handle) ProcessID() string { return h.process.ID }

// Process returns the invoked process
func (h *Handle) Process() *Process { return h.process }

// Done is closed once the process finished
func (h *Handle) Done() <-chan struct{} { return h.process.Done() }

// Progress returns the job counters of the process
func (h *Handle) Progress() progress.Progress { return h.process.Progress() }

// Err returns the fatal failure of a finished process, nil otherwise
func (h *Handle) Err() error {
	if failure := h.process.Failure(); failure != nil {
		return failure
	}
	return nil
}

// AwaitCompletion blocks until the process finished. It returns nil on
// completion, a *escalation.FatalFailure when the process was terminated by
// an unhandled escalation, or ctx.Err() when ctx is done first.
func (h *Handle) AwaitCompletion(ctx context.Context) error {
	select {
	case <-h.process.Done():
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failure returns the fatal failure, if any
func (h *Handle) Failure() *escalation.FatalFailure {
	return h.process.Failure()
}
