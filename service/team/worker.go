package team

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/viant/floor/escalation"
	"github.com/viant/floor/model"
	"github.com/viant/floor/service/messaging"
	"github.com/viant/floor/service/messaging/memory"
)

type envelope struct {
	job Job
}

// Worker runs jobs on a fixed set of goroutines consuming a shared queue.
// A dedicated team is a worker team with a single goroutine locked to its
// OS thread.
type Worker struct {
	base
	workerCount  int
	lockOSThread bool
	queue        *memory.Queue[envelope]

	mux      sync.Mutex
	started  bool
	shutdown bool
	workers  []*worker
	workerWg sync.WaitGroup
}

type worker struct {
	id       int
	team     *Worker
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewWorker creates a worker pool team
func NewWorker(meta *model.Team, options ...Option) (Team, error) {
	count := meta.Workers
	if count <= 0 {
		count = 1
	}
	return newWorker(meta, count, false, options), nil
}

// NewDedicated creates a single goroutine team locked to an OS thread
func NewDedicated(meta *model.Team, options ...Option) (Team, error) {
	return newWorker(meta, 1, true, options), nil
}

func newWorker(meta *model.Team, count int, lockOSThread bool, options []Option) *Worker {
	config := memory.DefaultConfig()
	config.DeadLetter = false
	return &Worker{
		base:         newBase(meta, options),
		workerCount:  count,
		lockOSThread: lockOSThread,
		queue:        memory.NewQueue[envelope](config),
	}
}

// Execute queues the job
func (w *Worker) Execute(job Job) error {
	err := w.queue.Publish(context.Background(), &envelope{job: job})
	if errors.Is(err, messaging.ErrClosed) {
		return ErrShutdown
	}
	return err
}

// Pending returns the number of queued jobs
func (w *Worker) Pending() int {
	return w.queue.Size()
}

// Start launches the worker goroutines
func (w *Worker) Start(ctx context.Context) error {
	w.mux.Lock()
	defer w.mux.Unlock()
	if w.started || w.shutdown {
		return nil
	}
	w.started = true
	for i := 0; i < w.workerCount; i++ {
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		aWorker := &worker{id: i, team: w, ctx: workerCtx, cancelFn: cancel}
		w.workers = append(w.workers, aWorker)
		w.workerWg.Add(1)
		go aWorker.run()
	}
	return nil
}

// run processes jobs from the queue
func (w *worker) run() {
	defer w.team.workerWg.Done()
	if w.team.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	for {
		msg, err := w.team.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, messaging.ErrClosed) {
				return
			}
			w.team.logger.Error(err, "failed to consume job", "worker", w.id)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}
		w.team.run(msg.T().job)
		_ = msg.Ack()
	}
}

// Shutdown stops intake and lets workers drain the queue until ctx is done;
// jobs still queued then are aborted.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mux.Lock()
	if w.shutdown {
		w.mux.Unlock()
		return nil
	}
	w.shutdown = true
	started := w.started
	w.mux.Unlock()

	w.queue.Close()
	done := make(chan struct{})
	go func() {
		w.workerWg.Wait()
		close(done)
	}()
	if started {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
		}
	}

	aborted := w.queue.Drain()
	if len(aborted) > 0 {
		w.logger.Info("aborting queued jobs", "count", len(aborted))
	}
	for _, pending := range aborted {
		pending.job.Abort(&escalation.TeamShutdownFailure{Team: w.meta.Name})
	}
	for _, aWorker := range w.workers {
		aWorker.cancelFn()
	}
	<-done
	return ctx.Err()
}
