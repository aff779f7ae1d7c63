package model

import (
	"fmt"
	"strings"
	"time"
)

// Scope defines the lifetime of a managed object container
type Scope string

const (
	ScopeFunction Scope = "function"
	ScopeThread   Scope = "thread"
	ScopeProcess  Scope = "process"
)

// Team kinds supported out of the box
const (
	TeamPassive   = "passive"
	TeamWorker    = "worker"
	TeamDedicated = "dedicated"
)

// Team describes an execution context jobs are dispatched on
type Team struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Kind selects the registered team implementation
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`
	// Workers sets the number of goroutines of a worker team
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers,omitempty"`

	Index int `json:"-" yaml:"-" toml:"-"`
}

func (t *Team) init(index int) error {
	t.Index = index
	if t.Kind == "" {
		t.Kind = TeamWorker
	}
	t.Kind = strings.ToLower(t.Kind)
	if t.Kind == TeamWorker && t.Workers <= 0 {
		t.Workers = 1
	}
	return nil
}

// Pool bounds the number of pooled instances of a managed object
type Pool struct {
	Max int `json:"max" yaml:"max" toml:"max"`
}

// ManagedObject describes a scoped resource produced by a registered source
type ManagedObject struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Source names the registered source, defaults to Name
	Source string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
	Scope  Scope  `json:"scope,omitempty" yaml:"scope,omitempty" toml:"scope,omitempty"`
	// Pool enables pooling of sourced instances
	Pool *Pool `json:"pool,omitempty" yaml:"pool,omitempty" toml:"pool,omitempty"`
	// Timeout bounds the wait for the object, e.g. "1s"
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	// Extensions lists governance capabilities the object provides
	Extensions []string               `json:"extensions,omitempty" yaml:"extensions,omitempty" toml:"extensions,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`

	Index int `json:"-" yaml:"-" toml:"-"`

	timeout time.Duration
}

func (m *ManagedObject) init(index int) error {
	m.Index = index
	if m.Source == "" {
		m.Source = m.Name
	}
	switch m.Scope {
	case "":
		m.Scope = ScopeFunction
	case ScopeFunction, ScopeThread, ScopeProcess:
	default:
		return fmt.Errorf("managed object %v: unsupported scope %q", m.Name, m.Scope)
	}
	if m.Pool != nil && m.Pool.Max <= 0 {
		return fmt.Errorf("managed object %v: pool max must be > 0", m.Name)
	}
	var err error
	if m.timeout, err = parseDuration(m.Timeout); err != nil {
		return fmt.Errorf("managed object %v: %w", m.Name, err)
	}
	return nil
}

// TimeoutDuration returns the parsed timeout, zero when not bounded
func (m *ManagedObject) TimeoutDuration() time.Duration {
	return m.timeout
}

// HasExtension reports whether the object declares the capability
func (m *ManagedObject) HasExtension(name string) bool {
	for _, candidate := range m.Extensions {
		if candidate == name {
			return true
		}
	}
	return false
}

// Governance describes a governance applied to objects providing an extension
type Governance struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Extension is the capability governed objects must provide
	Extension string `json:"extension" yaml:"extension" toml:"extension"`
	// Factory names the registered governance factory, defaults to Name
	Factory string `json:"factory,omitempty" yaml:"factory,omitempty" toml:"factory,omitempty"`
	// AutoEnforce controls what happens when the owning flow completes with
	// the governance still active; nil means enforce
	AutoEnforce *bool `json:"autoEnforce,omitempty" yaml:"autoEnforce,omitempty" toml:"autoEnforce,omitempty"`

	Index int `json:"-" yaml:"-" toml:"-"`
}

// Enforces reports whether completion enforces rather than disregards
func (g *Governance) Enforces() bool {
	return g.AutoEnforce == nil || *g.AutoEnforce
}
