package execution

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/service/managed"
)

var ProcessKey = KeyOf[*Process]()
var ThreadKey = KeyOf[*Thread]()
var FunctionKey = KeyOf[*model.Function]()

// ContextValue returns the value of the provided type from the context
func ContextValue[T any](ctx context.Context) T {
	key := KeyOf[T]()
	if value := ctx.Value(key); value != nil {
		return value.(T)
	}
	var t T
	return t
}

// KeyOf returns the reflect.Type of the provided type
func KeyOf[T any]() reflect.Type {
	var a T
	return reflect.TypeOf(a)
}

// jobContext exposes the running job to its logic
type jobContext struct {
	context.Context
	job *job
}

func (c *jobContext) Value(key any) any {
	switch key {
	case ProcessKey:
		return c.job.process
	case ThreadKey:
		return c.job.thread
	case FunctionKey:
		return c.job.function
	}
	return c.Context.Value(key)
}

func (c *jobContext) ProcessID() string { return c.job.process.ID }

func (c *jobContext) Parameter() interface{} { return c.job.parameter() }

func (c *jobContext) Logger() logr.Logger { return c.job.logger }

type functionContext struct {
	jobContext
}

// Object returns a managed object the function declared
func (c *functionContext) Object(name string) (interface{}, error) {
	container, err := c.job.declared(name)
	if err != nil {
		return nil, err
	}
	return container.Object(), nil
}

// Discard marks a managed object the function declared as broken
func (c *functionContext) Discard(name string) error {
	container, err := c.job.declared(name)
	if err != nil {
		return err
	}
	return container.Discard(c.job)
}

// DoFlow instigates a flow declared by the function
func (c *functionContext) DoFlow(name string, parameter interface{}) (types.FlowHandle, error) {
	link, ok := c.job.function.FlowLink(name)
	if !ok {
		return nil, types.NewFlowNotFoundError(c.job.function.Name, name)
	}
	return c.job.process.doFlow(c.job, link, parameter)
}

// Join holds the function's flow until the spawned flows complete
func (c *functionContext) Join(handles ...types.FlowHandle) error {
	return c.job.process.join(c.job, handles)
}

type dutyContext struct {
	jobContext
}

// Extensions returns the objects of the duty's managed objects in office order
func (c *dutyContext) Extensions() []interface{} {
	result := make([]interface{}, 0, len(c.job.acquired))
	for _, container := range c.job.acquired {
		result = append(result, container.Object())
	}
	return result
}

// Governance returns the manager of a governance declared by the duty
func (c *dutyContext) Governance(name string) (types.GovernanceManager, error) {
	office := c.job.process.kernel.office
	meta, ok := office.Governance(name)
	if !ok {
		return nil, fmt.Errorf("duty %v: unknown governance %v", c.job.duty.Name, name)
	}
	for _, index := range c.job.duty.GovernanceIndices {
		if index == meta.Index {
			return &governanceManager{job: c.job, meta: meta}, nil
		}
	}
	return nil, fmt.Errorf("duty %v: governance %v not declared", c.job.duty.Name, name)
}

// governanceManager drives a thread governance on behalf of a duty
type governanceManager struct {
	job  *job
	meta *model.Governance
}

// Activate governs the duty's objects providing the governance extension
func (m *governanceManager) Activate() error {
	container, governed, err := m.job.process.activate(m.job, m.meta)
	if err != nil {
		return m.job.record(err)
	}
	extensions := make([]interface{}, 0, len(governed))
	for _, candidate := range governed {
		extension, err := extensionOf(candidate, m.meta.Extension)
		if err != nil {
			return fmt.Errorf("governance %v: %w", m.meta.Name, err)
		}
		extensions = append(extensions, extension)
	}
	return m.job.record(container.Activate(m.job.ctx, extensions))
}

func (m *governanceManager) Enforce() error {
	container, err := m.job.process.governance(m.job, m.meta, "enforce")
	if err != nil {
		return m.job.record(err)
	}
	return m.job.record(container.Enforce(m.job.ctx))
}

func (m *governanceManager) Disregard() error {
	container, err := m.job.process.governance(m.job, m.meta, "disregard")
	if err != nil {
		return m.job.record(err)
	}
	return m.job.record(container.Disregard(m.job.ctx))
}

func extensionOf(container *managed.Container, name string) (interface{}, error) {
	return container.Metadata().Extension(name, container.Object())
}

var _ types.FunctionContext = (*functionContext)(nil)
var _ types.DutyContext = (*dutyContext)(nil)
var _ types.GovernanceManager = (*governanceManager)(nil)
