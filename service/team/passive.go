package team

import (
	"context"
	"sync"

	"github.com/viant/floor/model"
)

// Passive runs jobs synchronously on the goroutine calling Execute
type Passive struct {
	base
	mux      sync.RWMutex
	shutdown bool
	inFlight sync.WaitGroup
}

// NewPassive creates a passive team
func NewPassive(meta *model.Team, options ...Option) (Team, error) {
	return &Passive{base: newBase(meta, options)}, nil
}

// Execute runs the job inline
func (p *Passive) Execute(job Job) error {
	p.mux.RLock()
	if p.shutdown {
		p.mux.RUnlock()
		return ErrShutdown
	}
	p.inFlight.Add(1)
	p.mux.RUnlock()
	defer p.inFlight.Done()
	p.run(job)
	return nil
}

func (p *Passive) Start(context.Context) error { return nil }

// Shutdown rejects further jobs and waits for inline jobs to return
func (p *Passive) Shutdown(ctx context.Context) error {
	p.mux.Lock()
	p.shutdown = true
	p.mux.Unlock()
	done := make(chan struct{})
	go func() {
		p.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
