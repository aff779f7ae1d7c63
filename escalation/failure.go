package escalation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrContractViolation marks misuse of the kernel's resource protocol: a second
// release of a container, or enforce/disregard on governance that is not active.
// Escalations carrying it are never handled, they always terminate the process.
var ErrContractViolation = errors.New("contract violation")

// Failure is implemented by every typed escalation raised by the kernel.
type Failure interface {
	error
	// EscalationType returns the name handlers use to match the failure
	EscalationType() string
}

// SourceUnavailableFailure is raised when a managed object could not be sourced.
type SourceUnavailableFailure struct {
	ManagedObject string
	Source        string
	Err           error
}

func (f *SourceUnavailableFailure) Error() string {
	return fmt.Sprintf("managed object %v unavailable from source %v: %v", f.ManagedObject, f.Source, f.Err)
}

func (f *SourceUnavailableFailure) Unwrap() error { return f.Err }

func (f *SourceUnavailableFailure) EscalationType() string { return "SourceUnavailableFailure" }

// DutyFailure is raised when an administration duty returns an error or panics.
type DutyFailure struct {
	Duty     string
	Function string
	Err      error
}

func (f *DutyFailure) Error() string {
	return fmt.Sprintf("duty %v of function %v failed: %v", f.Duty, f.Function, f.Err)
}

func (f *DutyFailure) Unwrap() error { return f.Err }

func (f *DutyFailure) EscalationType() string { return "DutyFailure" }

// GovernanceFailure is raised when enforce or disregard returned an error.
type GovernanceFailure struct {
	Governance string
	Action     string
	Err        error
}

func (f *GovernanceFailure) Error() string {
	return fmt.Sprintf("governance %v failed to %v: %v", f.Governance, f.Action, f.Err)
}

func (f *GovernanceFailure) Unwrap() error { return f.Err }

func (f *GovernanceFailure) EscalationType() string { return "GovernanceFailure" }

// FunctionFailure is raised when business logic returns an error or panics.
type FunctionFailure struct {
	Function string
	Err      error
}

func (f *FunctionFailure) Error() string {
	return fmt.Sprintf("function %v failed: %v", f.Function, f.Err)
}

func (f *FunctionFailure) Unwrap() error { return f.Err }

func (f *FunctionFailure) EscalationType() string { return "FunctionFailure" }

// TimeoutFailure is synthesized by the watchdog when a job does not complete,
// or does not obtain a managed object, within its configured window.
type TimeoutFailure struct {
	Function      string
	ManagedObject string
	Timeout       time.Duration
}

func (f *TimeoutFailure) Error() string {
	if f.ManagedObject != "" {
		return fmt.Sprintf("function %v timed out after %v waiting for managed object %v", f.Function, f.Timeout, f.ManagedObject)
	}
	return fmt.Sprintf("function %v timed out after %v", f.Function, f.Timeout)
}

func (f *TimeoutFailure) EscalationType() string { return "TimeoutFailure" }

// TeamShutdownFailure is raised for jobs a team could not run before shutting down.
type TeamShutdownFailure struct {
	Team string
}

func (f *TeamShutdownFailure) Error() string {
	return fmt.Sprintf("team %v shut down before job could run", f.Team)
}

func (f *TeamShutdownFailure) EscalationType() string { return "TeamShutdownFailure" }

// FatalFailure is reported to the invoker when an escalation reached the
// process without a matching handler.
type FatalFailure struct {
	ProcessID string
	Function  string
	Err       error
}

func (f *FatalFailure) Error() string {
	return fmt.Sprintf("process %v terminated by function %v: %v", f.ProcessID, f.Function, f.Err)
}

func (f *FatalFailure) Unwrap() error { return f.Err }

func (f *FatalFailure) EscalationType() string { return "FatalFailure" }

// Chain returns the messages of every error in the failure chain, outermost first.
func (f *FatalFailure) Chain() []string {
	var result []string
	for _, err := range flatten(f.Err) {
		result = append(result, err.Error())
	}
	return result
}

// String renders the chain one cause per line.
func (f *FatalFailure) String() string {
	return f.Error() + "\n  " + strings.Join(f.Chain(), "\n  ")
}
