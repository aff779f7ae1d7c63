package managed

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-logr/logr"
	"github.com/viant/structology/conv"
	"github.com/viant/structology/visitor"
)

// Source produces managed object instances. Source may deliver the object (or
// failure) synchronously before returning, or later from any goroutine.
type Source interface {
	Init(ctx *SourceContext) (*Metadata, error)
	Source(ctx context.Context, user User)
}

// User receives the outcome of sourcing; only the first call has an effect
type User interface {
	SetObject(object interface{})
	SetFailure(err error)
}

// Invoker triggers functions of the office, it is handed to started sources
type Invoker interface {
	Invoke(ctx context.Context, function string, parameter interface{}) error
}

// Starter is implemented by I/O backed sources that instigate processing
type Starter interface {
	Start(ctx context.Context, invoker Invoker) error
}

// Stopper is implemented by sources holding resources until shutdown
type Stopper interface {
	Stop(ctx context.Context) error
}

// ExtensionFactory adapts a sourced object into a governance extension
type ExtensionFactory func(object interface{}) (interface{}, error)

// Metadata describes the objects of a source
type Metadata struct {
	// ObjectType keys the pool: pooled managed objects of one type share it
	ObjectType reflect.Type
	// Extensions adapts objects per capability; objects without a factory are their own extension
	Extensions map[string]ExtensionFactory
}

// Extension returns the object's extension for the capability
func (m *Metadata) Extension(name string, object interface{}) (interface{}, error) {
	if m == nil || m.Extensions == nil {
		return object, nil
	}
	factory, ok := m.Extensions[name]
	if !ok {
		return object, nil
	}
	return factory(object)
}

// HasExtension reports whether the metadata adapts the capability
func (m *Metadata) HasExtension(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Extensions[name]
	return ok
}

// SourceContext is passed to Init
type SourceContext struct {
	Name       string
	Properties map[string]string
	Logger     logr.Logger
	values     map[string]interface{}
	converter  *conv.Converter
}

// Property returns a property or the default value
func (c *SourceContext) Property(name, defaultValue string) string {
	if value, ok := c.Properties[name]; ok {
		return value
	}
	return defaultValue
}

// Bind converts the declared properties into target, a pointer to a struct
// whose json tags name the properties
func (c *SourceContext) Bind(target interface{}) error {
	if err := c.converter.Convert(c.values, target); err != nil {
		return fmt.Errorf("managed object %v: failed to bind properties: %w", c.Name, err)
	}
	return nil
}

// NewSourceContext converts declared scalar properties into strings
func NewSourceContext(name string, properties map[string]interface{}, logger logr.Logger) (*SourceContext, error) {
	ret := &SourceContext{
		Name:       name,
		Properties: map[string]string{},
		Logger:     logger,
		values:     properties,
		converter:  conv.NewConverter(conv.DefaultOptions()),
	}
	if ret.values == nil {
		ret.values = map[string]interface{}{}
	}
	visit := visitor.MapVisitorOf[string, interface{}](ret.values)
	err := visit(func(key string, value interface{}) (bool, error) {
		var text string
		if err := ret.converter.Convert(value, &text); err != nil {
			return false, fmt.Errorf("property %v: %w", key, err)
		}
		ret.Properties[key] = text
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("managed object %v: invalid properties: %w", name, err)
	}
	return ret, nil
}

// Func adapts a synchronous constructor into a Source
type Func func(ctx context.Context) (interface{}, error)

func (f Func) Init(*SourceContext) (*Metadata, error) { return &Metadata{}, nil }

func (f Func) Source(ctx context.Context, user User) {
	object, err := f(ctx)
	if err != nil {
		user.SetFailure(err)
		return
	}
	user.SetObject(object)
}

// AsyncFunc adapts a callback based constructor into a Source
type AsyncFunc func(ctx context.Context, user User)

func (f AsyncFunc) Init(*SourceContext) (*Metadata, error) { return &Metadata{}, nil }

func (f AsyncFunc) Source(ctx context.Context, user User) { f(ctx, user) }

// Typed declares the object type of the instances source produces
func Typed(source Source, objectType reflect.Type) Source {
	return &typedSource{source: source, objectType: objectType}
}

type typedSource struct {
	source     Source
	objectType reflect.Type
}

func (s *typedSource) Source(ctx context.Context, user User) { s.source.Source(ctx, user) }

func (s *typedSource) Init(ctx *SourceContext) (*Metadata, error) {
	metadata, err := s.source.Init(ctx)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = &Metadata{}
	}
	metadata.ObjectType = s.objectType
	return metadata, nil
}

// onceUser delivers at most one outcome
type onceUser struct {
	once      sync.Once
	onObject  func(object interface{})
	onFailure func(err error)
}

func (u *onceUser) SetObject(object interface{}) {
	u.once.Do(func() { u.onObject(object) })
}

func (u *onceUser) SetFailure(err error) {
	if err == nil {
		err = fmt.Errorf("sourcing failed")
	}
	u.once.Do(func() { u.onFailure(err) })
}
