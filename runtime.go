package floor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/floor/model"
	"github.com/viant/floor/runtime/execution"
	"github.com/viant/floor/service/dao"
	"github.com/viant/floor/service/dao/office"
	"github.com/viant/floor/service/event"
	"github.com/viant/floor/service/metrics"
	"github.com/viant/floor/service/watchdog"
)

// ErrNotStarted is returned by operations requiring a started runtime
var ErrNotStarted = errors.New("runtime not started")

// ProcessEvent is the data of process lifecycle events
type ProcessEvent struct {
	ID         string     `json:"id"`
	Function   string     `json:"function"`
	State      string     `json:"state"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Runtime runs the office of its service
type Runtime struct {
	service   *Service
	mux       sync.RWMutex
	kernel    *execution.Kernel
	closed    bool
	publisher *event.Publisher[ProcessEvent]
}

// LoadOffice loads an office document through the service meta loader
func (r *Runtime) LoadOffice(ctx context.Context, URL string) (*model.Office, error) {
	return office.New(office.WithMetaService(r.service.metaService)).Load(ctx, URL)
}

// Office returns the running office, nil before Start
func (r *Runtime) Office() *model.Office {
	kernel := r.currentKernel()
	if kernel == nil {
		return nil
	}
	return kernel.Office()
}

// Start loads the office when needed, creates the kernel and starts it
func (r *Runtime) Start(ctx context.Context) error {
	s := r.service
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.closed {
		return execution.ErrClosed
	}
	if r.kernel != nil {
		return nil
	}
	anOffice := s.office
	if anOffice == nil {
		if s.officeURL == "" {
			return fmt.Errorf("office was not set")
		}
		var err error
		if anOffice, err = r.LoadOffice(ctx, s.officeURL); err != nil {
			return err
		}
	}
	options := []execution.Option{
		execution.WithLogger(s.logger.WithValues("office", anOffice.Name)),
		execution.WithPolicy(s.policy),
		execution.WithWatchdog(watchdog.New(
			watchdog.WithClock(s.clock),
			watchdog.WithInterval(s.config.Watchdog.Interval),
			watchdog.WithLogger(s.logger),
		)),
		execution.WithListener(r.observe),
	}
	if s.registerer != nil {
		recorder, err := metrics.New(s.registerer)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		options = append(options, execution.WithMetrics(recorder))
	}
	kernel, err := execution.New(anOffice, s.registry, options...)
	if err != nil {
		return err
	}
	if s.processListener != nil {
		event.SetListenerOf[ProcessEvent](s.eventService, s.processListener)
	}
	r.publisher = event.PublisherOf[ProcessEvent](s.eventService)
	if err = kernel.Start(ctx); err != nil {
		_ = kernel.Shutdown(ctx)
		return err
	}
	if store, ok := s.processDAO.(interface{ Start() }); ok {
		store.Start()
	}
	r.kernel = kernel
	return nil
}

// observe stores the process and publishes its lifecycle event
func (r *Runtime) observe(process *execution.Process) {
	ctx := context.Background()
	if err := r.service.processDAO.Save(ctx, process); err != nil {
		r.service.logger.Error(err, "failed to save process", "process", process.ID)
	}
	data := ProcessEvent{
		ID:         process.ID,
		Function:   process.Function,
		State:      process.State(),
		CreatedAt:  process.CreatedAt,
		FinishedAt: process.FinishedAt(),
	}
	eventType := event.TypeProcessStarted
	if data.FinishedAt != nil {
		eventType = event.TypeProcessFinished
	}
	if failure := process.Failure(); failure != nil {
		data.Error = failure.Error()
	}
	anEvent := event.NewEvent(&event.Context{ProcessID: process.ID, Function: process.Function, EventType: eventType}, data)
	if err := r.publisher.Publish(ctx, anEvent); err != nil {
		r.service.logger.V(1).Info("process event dropped", "process", process.ID, "error", err.Error())
	}
}

// InvokeFunction starts a process running the named function
func (r *Runtime) InvokeFunction(ctx context.Context, name string, parameter interface{}) (*execution.Handle, error) {
	kernel := r.currentKernel()
	if kernel == nil {
		return nil, ErrNotStarted
	}
	return kernel.InvokeFunction(ctx, name, parameter)
}

// Process returns a running or retained process
func (r *Runtime) Process(ctx context.Context, id string) (*execution.Process, error) {
	return r.service.processDAO.Load(ctx, id)
}

// Processes lists running and retained processes, see dao.ParameterState
func (r *Runtime) Processes(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Process, error) {
	return r.service.processDAO.List(ctx, parameters...)
}

// Shutdown stops the kernel, then the event listeners and the process store
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mux.Lock()
	kernel := r.kernel
	closed := r.closed
	r.closed = true
	r.mux.Unlock()
	if kernel == nil || closed {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.service.config.ShutdownTimeout)
		defer cancel()
	}
	err := kernel.Shutdown(ctx)
	r.service.eventService.Close()
	if store, ok := r.service.processDAO.(interface{ Close() }); ok {
		store.Close()
	}
	return err
}

func (r *Runtime) currentKernel() *execution.Kernel {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.kernel
}
