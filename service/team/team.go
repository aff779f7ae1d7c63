package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/floor/model"
)

// ErrShutdown is returned by Execute once the team started shutting down
var ErrShutdown = errors.New("team shut down")

// Job is a unit of work dispatched on a team
type Job interface {
	ID() string
	// Run executes the job to completion or suspension
	Run()
	// Abort is called instead of Run for queued jobs dropped at shutdown
	Abort(err error)
}

// Team is an execution context jobs are dispatched on
type Team interface {
	Name() string
	Kind() string
	// Execute runs or queues the job
	Execute(job Job) error
	Start(ctx context.Context) error
	// Shutdown stops intake, drains queued jobs until ctx is done, aborts the
	// rest with escalation.TeamShutdownFailure and waits for running jobs.
	Shutdown(ctx context.Context) error
}

// Listener observes every job run by a team
type Listener func(team string, job Job, elapsed time.Duration)

// Factory creates a team for its metadata
type Factory func(meta *model.Team, options ...Option) (Team, error)

// Option configures a team
type Option func(b *base)

// WithLogger sets the team logger
func WithLogger(logger logr.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithListener registers a job listener
func WithListener(listener Listener) Option {
	return func(b *base) {
		if listener != nil {
			b.listeners = append(b.listeners, listener)
		}
	}
}

type base struct {
	meta      *model.Team
	logger    logr.Logger
	listeners []Listener
}

func newBase(meta *model.Team, options []Option) base {
	ret := base{meta: meta, logger: logr.Discard()}
	for _, option := range options {
		option(&ret)
	}
	ret.logger = ret.logger.WithValues("team", meta.Name)
	return ret
}

func (b *base) Name() string { return b.meta.Name }

func (b *base) Kind() string { return b.meta.Kind }

func (b *base) run(job Job) {
	started := time.Now()
	job.Run()
	if len(b.listeners) == 0 {
		return
	}
	elapsed := time.Since(started)
	for _, listener := range b.listeners {
		listener(b.meta.Name, job, elapsed)
	}
}

var builtins = map[string]Factory{
	model.TeamPassive:   NewPassive,
	model.TeamWorker:    NewWorker,
	model.TeamDedicated: NewDedicated,
}

// New creates a team of a built-in kind
func New(meta *model.Team, options ...Option) (Team, error) {
	factory, ok := builtins[meta.Kind]
	if !ok {
		return nil, fmt.Errorf("team %v: unsupported kind %q", meta.Name, meta.Kind)
	}
	return factory(meta, options...)
}

// Kinds returns the built-in kinds
func Kinds() []string {
	return []string{model.TeamPassive, model.TeamWorker, model.TeamDedicated}
}
