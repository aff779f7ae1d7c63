package types

import (
	"context"

	"github.com/go-logr/logr"
)

// FunctionContext is the view of the kernel given to function logic
type FunctionContext interface {
	context.Context
	// ProcessID returns the id of the invoking process
	ProcessID() string
	// Parameter returns the invocation parameter; for escalation handlers it is the failure
	Parameter() interface{}
	// Object returns a declared managed object
	Object(name string) (interface{}, error)
	// Discard marks a declared managed object as broken: it is destroyed
	// rather than returned to its pool when its scope ends
	Discard(name string) error
	// DoFlow instigates a declared flow. A spawned flow starts on a new
	// thread immediately, any other flow runs once the current job completes.
	DoFlow(name string, parameter interface{}) (FlowHandle, error)
	// Join holds the current flow until the spawned flows complete
	Join(handles ...FlowHandle) error
	Logger() logr.Logger
}

// DutyContext is the restricted view given to administration duties
type DutyContext interface {
	context.Context
	ProcessID() string
	Parameter() interface{}
	// Extensions returns the objects of the duty's managed objects, ordered as
	// the managed objects are declared in the office
	Extensions() []interface{}
	// Governance returns the manager of a governance granted to the duty
	Governance(name string) (GovernanceManager, error)
	Logger() logr.Logger
}

// GovernanceManager drives a governance on behalf of a duty
type GovernanceManager interface {
	// Activate governs the duty's objects providing the governance extension
	Activate() error
	Enforce() error
	Disregard() error
}

// FlowHandle identifies an instigated flow
type FlowHandle interface {
	ThreadID() string
	// Done is closed when the flow's thread completes
	Done() <-chan struct{}
}

// ParameterAs returns the parameter as T
func ParameterAs[T any](ctx FunctionContext) (T, error) {
	value, ok := ctx.Parameter().(T)
	if !ok {
		var t T
		return t, NewInvalidParameterError(ctx.Parameter())
	}
	return value, nil
}
