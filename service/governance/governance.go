package governance

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/floor/escalation"
	"github.com/viant/floor/model"
)

// Governance applies a cross-cutting protocol, e.g. a transaction, to the
// extensions of the managed objects it governs.
type Governance interface {
	// Govern adds an extension to the governance
	Govern(ctx context.Context, extension interface{}) error
	Enforce(ctx context.Context) error
	Disregard(ctx context.Context) error
}

// Factory creates a governance instance per activation
type Factory func() Governance

// State represents governance lifecycle state
type State string

const (
	StateInactive    State = "inactive"
	StateActive      State = "active"
	StateEnforced    State = "enforced"
	StateDisregarded State = "disregarded"
)

// IsTerminal reports whether no further transition is allowed
func (s State) IsTerminal() bool {
	return s == StateEnforced || s == StateDisregarded
}

// Container drives one governance instance through
// inactive -> active -> enforced | disregarded.
type Container struct {
	meta       *model.Governance
	governance Governance
	onChange   func(state State)

	mux   sync.Mutex
	state State
}

// NewContainer creates an inactive container
func NewContainer(meta *model.Governance, governance Governance) *Container {
	return &Container{meta: meta, governance: governance, state: StateInactive}
}

// OnChange registers a callback notified after every transition
func (c *Container) OnChange(fn func(state State)) {
	c.onChange = fn
}

// Name returns the governance name
func (c *Container) Name() string { return c.meta.Name }

// Governance returns the governance metadata
func (c *Container) Governance() *model.Governance { return c.meta }

// State returns the current state
func (c *Container) State() State {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// IsActive reports whether the governance is active
func (c *Container) IsActive() bool {
	return c.State() == StateActive
}

// Activate governs the extensions. Activating an active governance adds
// further extensions; activating a completed governance is a contract violation.
func (c *Container) Activate(ctx context.Context, extensions []interface{}) error {
	c.mux.Lock()
	state := c.state
	if state.IsTerminal() {
		c.mux.Unlock()
		return c.violation("activate", state)
	}
	c.state = StateActive
	c.mux.Unlock()
	if state != StateActive {
		c.notify(StateActive)
	}
	for _, extension := range extensions {
		if err := c.governance.Govern(ctx, extension); err != nil {
			c.transition(StateDisregarded)
			_ = c.governance.Disregard(ctx)
			return &escalation.GovernanceFailure{Governance: c.meta.Name, Action: "govern", Err: err}
		}
	}
	return nil
}

// Enforce enforces an active governance. A failing enforce leaves the
// governance disregarded and returns a GovernanceFailure.
func (c *Container) Enforce(ctx context.Context) error {
	if err := c.begin("enforce"); err != nil {
		return err
	}
	if err := c.governance.Enforce(ctx); err != nil {
		c.transition(StateDisregarded)
		return &escalation.GovernanceFailure{Governance: c.meta.Name, Action: "enforce", Err: err}
	}
	c.transition(StateEnforced)
	return nil
}

// Disregard disregards an active governance. The governance ends up
// disregarded even when Disregard returns an error.
func (c *Container) Disregard(ctx context.Context) error {
	if err := c.begin("disregard"); err != nil {
		return err
	}
	err := c.governance.Disregard(ctx)
	c.transition(StateDisregarded)
	if err != nil {
		return &escalation.GovernanceFailure{Governance: c.meta.Name, Action: "disregard", Err: err}
	}
	return nil
}

// Complete applies the configured completion to an active governance; it is
// a no-op once the governance was explicitly enforced or disregarded.
func (c *Container) Complete(ctx context.Context) error {
	if !c.IsActive() {
		return nil
	}
	if c.meta.Enforces() {
		return c.Enforce(ctx)
	}
	return c.Disregard(ctx)
}

// ForceDisregard disregards the governance if it is still active
func (c *Container) ForceDisregard(ctx context.Context) error {
	if !c.IsActive() {
		return nil
	}
	return c.Disregard(ctx)
}

// begin moves an active governance into its completing step
func (c *Container) begin(action string) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.state != StateActive {
		return c.violation(action, c.state)
	}
	c.state = stateCompleting
	return nil
}

const stateCompleting State = "completing"

func (c *Container) transition(state State) {
	c.mux.Lock()
	c.state = state
	c.mux.Unlock()
	c.notify(state)
}

func (c *Container) notify(state State) {
	if c.onChange != nil {
		c.onChange(state)
	}
}

func (c *Container) violation(action string, state State) error {
	return fmt.Errorf("governance %v: %v while %v: %w", c.meta.Name, action, state, escalation.ErrContractViolation)
}
