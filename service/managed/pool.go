package managed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/viant/floor/escalation"
)

// ErrPoolClosed is returned to borrowers of a closed pool
var ErrPoolClosed = errors.New("pool closed")

// Lease is a borrowed pooled instance
type Lease struct {
	object interface{}
	pool   *Pool
}

// Object returns the pooled instance
func (l *Lease) Object() interface{} { return l.object }

// Borrower receives a lease or a failure
type Borrower func(lease *Lease, err error)

type borrowing struct {
	ctx      context.Context
	borrower Borrower
}

// Pool hands each sourced instance to at most one borrower at a time. When
// all instances are borrowed and the pool is at capacity, borrowers wait for
// an instance to be returned.
type Pool struct {
	name     string
	source   Source
	max      int
	mux      sync.Mutex
	idle     []*Lease
	borrowed map[*Lease]bool
	size     int
	waiters  []*borrowing
	closed   bool
}

// PoolStats summarises pool occupancy
type PoolStats struct {
	Size     int
	Idle     int
	Borrowed int
	Waiting  int
}

// NewPool creates a pool bounded by max instances
func NewPool(name string, source Source, max int) *Pool {
	if max <= 0 {
		max = 1
	}
	return &Pool{name: name, source: source, max: max, borrowed: map[*Lease]bool{}}
}

// Name returns the pooled managed object name
func (p *Pool) Name() string { return p.name }

// Borrow hands an instance to borrower, synchronously when one is idle or
// can be sourced inline, otherwise once one becomes available.
func (p *Pool) Borrow(ctx context.Context, borrower Borrower) {
	p.mux.Lock()
	if p.closed {
		p.mux.Unlock()
		borrower(nil, ErrPoolClosed)
		return
	}
	if n := len(p.idle); n > 0 {
		lease := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.borrowed[lease] = true
		p.mux.Unlock()
		borrower(lease, nil)
		return
	}
	if p.size < p.max {
		p.size++
		p.mux.Unlock()
		p.create(ctx, borrower)
		return
	}
	p.waiters = append(p.waiters, &borrowing{ctx: ctx, borrower: borrower})
	p.mux.Unlock()
}

func (p *Pool) create(ctx context.Context, borrower Borrower) {
	p.source.Source(ctx, &onceUser{
		onObject: func(object interface{}) {
			lease := &Lease{object: object, pool: p}
			p.mux.Lock()
			if p.closed {
				p.size--
				p.mux.Unlock()
				closeObject(object)
				borrower(nil, ErrPoolClosed)
				return
			}
			p.borrowed[lease] = true
			p.mux.Unlock()
			borrower(lease, nil)
		},
		onFailure: func(err error) {
			p.mux.Lock()
			p.size--
			next := p.nextCreation()
			p.mux.Unlock()
			borrower(nil, err)
			if next != nil {
				p.create(next.ctx, next.borrower)
			}
		},
	})
}

// nextCreation reserves capacity for the first waiter; caller holds the lock
func (p *Pool) nextCreation() *borrowing {
	if len(p.waiters) == 0 || p.size >= p.max || p.closed {
		return nil
	}
	next := p.waiters[0]
	p.waiters = p.waiters[1:]
	p.size++
	return next
}

// Return gives the lease back; returning a lease twice is a contract violation.
func (p *Pool) Return(lease *Lease) error {
	p.mux.Lock()
	if !p.borrowed[lease] {
		p.mux.Unlock()
		return fmt.Errorf("pool %v: lease returned while not borrowed: %w", p.name, escalation.ErrContractViolation)
	}
	delete(p.borrowed, lease)
	if p.closed {
		p.size--
		p.mux.Unlock()
		return closeObject(lease.object)
	}
	if len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.borrowed[lease] = true
		p.mux.Unlock()
		waiter.borrower(lease, nil)
		return nil
	}
	p.idle = append(p.idle, lease)
	p.mux.Unlock()
	return nil
}

// Discard destroys a borrowed instance known to be broken; the freed
// capacity sources a new instance for the first waiter.
func (p *Pool) Discard(lease *Lease) error {
	p.mux.Lock()
	if !p.borrowed[lease] {
		p.mux.Unlock()
		return fmt.Errorf("pool %v: lease discarded while not borrowed: %w", p.name, escalation.ErrContractViolation)
	}
	delete(p.borrowed, lease)
	p.size--
	next := p.nextCreation()
	p.mux.Unlock()
	if next != nil {
		p.create(next.ctx, next.borrower)
	}
	return closeObject(lease.object)
}

// Close destroys idle instances and fails waiting borrowers. Borrowed
// instances are destroyed when returned.
func (p *Pool) Close() error {
	p.mux.Lock()
	if p.closed {
		p.mux.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.size -= len(idle)
	waiters := p.waiters
	p.waiters = nil
	p.mux.Unlock()

	var errs []error
	for _, lease := range idle {
		if err := closeObject(lease.object); err != nil {
			errs = append(errs, err)
		}
	}
	for _, waiter := range waiters {
		waiter.borrower(nil, ErrPoolClosed)
	}
	return errors.Join(errs...)
}

// Stats returns pool occupancy
func (p *Pool) Stats() PoolStats {
	p.mux.Lock()
	defer p.mux.Unlock()
	return PoolStats{Size: p.size, Idle: len(p.idle), Borrowed: len(p.borrowed), Waiting: len(p.waiters)}
}

func closeObject(object interface{}) error {
	if closer, ok := object.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
