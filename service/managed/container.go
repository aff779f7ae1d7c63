package managed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/floor/escalation"
	"github.com/viant/floor/model"
)

// State represents container lifecycle state
type State string

const (
	StateUnsourced State = "unsourced"
	StateSourcing  State = "sourcing"
	StateReady     State = "ready"
	StateInUse     State = "inUse"
	StateFailed    State = "failed"
	StateReleased  State = "released"
	StateReturned  State = "returned"
	StateDestroyed State = "destroyed"
)

// Outcome of an acquire attempt
type Outcome int

const (
	// Acquired means the object is in use by the owner
	Acquired Outcome = iota
	// Pending means the owner is queued and will be woken
	Pending
)

// ErrReleased is returned when acquiring from a released container
var ErrReleased = errors.New("container released")

type waiter struct {
	owner interface{}
	wake  func()
}

// Container binds one managed object instance to a scope. A container is in
// use by at most one owner at a time; other owners queue until it is unused.
// Release takes effect exactly once: releasing an object in use is deferred
// until the owner stops using it, and releasing an object still being
// sourced disposes of it on arrival.
type Container struct {
	object    *model.ManagedObject
	source    Source
	pool      *Pool
	metadata  *Metadata
	onRelease func(state State)

	mux      sync.Mutex
	state    State
	instance interface{}
	lease    *Lease
	err      error
	user     interface{}
	waiters  []*waiter
	sourcer  interface{}
	inline   bool
	broken   bool
	released bool
}

// NewContainer creates an unsourced container; pool may be nil
func NewContainer(object *model.ManagedObject, source Source, pool *Pool, metadata *Metadata) *Container {
	return &Container{object: object, source: source, pool: pool, metadata: metadata, state: StateUnsourced}
}

// OnRelease registers a callback notified with the final state
func (c *Container) OnRelease(fn func(state State)) {
	c.onRelease = fn
}

// Name returns the managed object name
func (c *Container) Name() string { return c.object.Name }

// ManagedObject returns the container's metadata
func (c *Container) ManagedObject() *model.ManagedObject { return c.object }

// Metadata returns the source metadata
func (c *Container) Metadata() *Metadata { return c.metadata }

// State returns the current state
func (c *Container) State() State {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// Object returns the instance, valid while in use by the caller
func (c *Container) Object() interface{} {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.instance
}

// Acquire puts the object in use by owner. When the object is being sourced
// or is in use by another owner, the owner is queued and wake is called once
// the object has been handed over (or sourcing failed); the owner must then
// call Acquire again.
func (c *Container) Acquire(ctx context.Context, owner interface{}, wake func()) (Outcome, error) {
	c.mux.Lock()
	switch c.state {
	case StateReleased, StateReturned, StateDestroyed:
		c.mux.Unlock()
		return 0, fmt.Errorf("managed object %v: %w", c.object.Name, ErrReleased)
	case StateFailed:
		err := c.failure()
		c.mux.Unlock()
		return 0, err
	case StateReady:
		c.state = StateInUse
		c.user = owner
		c.mux.Unlock()
		return Acquired, nil
	case StateInUse:
		if c.user == owner {
			c.mux.Unlock()
			return Acquired, nil
		}
		c.enqueue(owner, wake)
		c.mux.Unlock()
		return Pending, nil
	case StateSourcing:
		c.enqueue(owner, wake)
		c.mux.Unlock()
		return Pending, nil
	}

	c.state = StateSourcing
	c.enqueue(owner, wake)
	c.sourcer = owner
	c.inline = true
	c.mux.Unlock()

	user := &onceUser{onObject: c.setObject, onFailure: c.setFailure}
	if c.pool != nil {
		c.pool.Borrow(ctx, func(lease *Lease, err error) {
			if err != nil {
				user.SetFailure(err)
				return
			}
			user.SetObject(lease)
		})
	} else {
		c.source.Source(ctx, user)
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	c.inline = false
	switch {
	case c.state == StateInUse && c.user == owner:
		return Acquired, nil
	case c.state == StateFailed:
		return 0, c.failure()
	}
	return Pending, nil
}

func (c *Container) failure() error {
	return &escalation.SourceUnavailableFailure{ManagedObject: c.object.Name, Source: c.object.Source, Err: c.err}
}

func (c *Container) enqueue(owner interface{}, wake func()) {
	for _, candidate := range c.waiters {
		if candidate.owner == owner {
			candidate.wake = wake
			return
		}
	}
	c.waiters = append(c.waiters, &waiter{owner: owner, wake: wake})
}

func (c *Container) dequeue(owner interface{}) bool {
	for i, candidate := range c.waiters {
		if candidate.owner == owner {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// grant hands the ready object to the first waiter; caller holds the lock.
// The returned wake is nil when the waiter is the owner sourcing inline.
func (c *Container) grant() func() {
	if len(c.waiters) == 0 {
		return nil
	}
	next := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.state = StateInUse
	c.user = next.owner
	if c.inline {
		return nil
	}
	return next.wake
}

func (c *Container) setObject(object interface{}) {
	lease, _ := object.(*Lease)
	if lease != nil {
		object = lease.Object()
	}
	c.mux.Lock()
	if c.state != StateSourcing {
		c.instance, c.lease = object, lease
		c.mux.Unlock()
		c.dispose()
		return
	}
	c.instance, c.lease = object, lease
	c.state = StateReady
	wake := c.grant()
	c.mux.Unlock()
	if wake != nil {
		wake()
	}
}

func (c *Container) setFailure(err error) {
	c.mux.Lock()
	if c.state != StateSourcing {
		c.mux.Unlock()
		return
	}
	c.state = StateFailed
	c.err = err
	var wakes []func()
	for _, candidate := range c.waiters {
		if c.inline && candidate.owner == c.sourcer {
			continue
		}
		wakes = append(wakes, candidate.wake)
	}
	c.waiters = nil
	c.mux.Unlock()
	for _, wake := range wakes {
		wake()
	}
}

// Unuse ends the owner's use of the object, or withdraws the owner from the
// queue. A release requested while the object was in use completes here.
func (c *Container) Unuse(owner interface{}) error {
	c.mux.Lock()
	c.dequeue(owner)
	if c.state != StateInUse || c.user != owner {
		c.mux.Unlock()
		return nil
	}
	c.user = nil
	if c.released {
		c.state = StateReleased
		c.mux.Unlock()
		return c.dispose()
	}
	c.state = StateReady
	wake := c.grant()
	c.mux.Unlock()
	if wake != nil {
		wake()
	}
	return nil
}

// Discard marks the object in use by owner as broken: when the scope ends it
// is destroyed, a pooled instance included.
func (c *Container) Discard(owner interface{}) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.state != StateInUse || c.user != owner {
		return fmt.Errorf("managed object %v: discarded while not in use by the caller", c.object.Name)
	}
	c.broken = true
	return nil
}

// Release ends the container's scope. The second call returns an error
// wrapping escalation.ErrContractViolation.
func (c *Container) Release() error {
	c.mux.Lock()
	if c.released {
		state := c.state
		c.mux.Unlock()
		return fmt.Errorf("managed object %v: released again in state %v: %w", c.object.Name, state, escalation.ErrContractViolation)
	}
	c.released = true
	c.waiters = nil
	switch c.state {
	case StateInUse:
		c.mux.Unlock()
		return nil
	case StateReady:
		c.state = StateReleased
		c.mux.Unlock()
		return c.dispose()
	case StateSourcing:
		c.state = StateReleased
		c.mux.Unlock()
		return nil
	default:
		c.state = StateReleased
		c.mux.Unlock()
		if c.onRelease != nil {
			c.onRelease(StateReleased)
		}
		return nil
	}
}

// dispose returns a pooled instance or destroys it
func (c *Container) dispose() error {
	c.mux.Lock()
	lease, instance, broken := c.lease, c.instance, c.broken
	c.lease, c.instance = nil, nil
	c.mux.Unlock()

	var err error
	state := StateDestroyed
	switch {
	case lease != nil && broken:
		err = lease.pool.Discard(lease)
	case lease != nil:
		state = StateReturned
		err = lease.pool.Return(lease)
	default:
		err = closeObject(instance)
	}
	c.mux.Lock()
	c.state = state
	c.mux.Unlock()
	if c.onRelease != nil {
		c.onRelease(state)
	}
	return err
}
