package model

import "time"

// Function describes a managed function: the logic it runs, the team it is
// bound to, the managed objects it depends on and the links it may follow.
type Function struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Logic names the registered implementation, defaults to Name
	Logic string `json:"logic,omitempty" yaml:"logic,omitempty" toml:"logic,omitempty"`
	// Team names the team the function's jobs are dispatched on
	Team string `json:"team,omitempty" yaml:"team,omitempty" toml:"team,omitempty"`
	// Objects lists managed objects the function depends on
	Objects []string `json:"objects,omitempty" yaml:"objects,omitempty" toml:"objects,omitempty"`
	// Next names the function invoked with this function's output
	Next string `json:"next,omitempty" yaml:"next,omitempty" toml:"next,omitempty"`
	// Flows declares the flows the function may instigate
	Flows       []*FlowLink   `json:"flows,omitempty" yaml:"flows,omitempty" toml:"flows,omitempty"`
	Escalations []*Escalation `json:"escalations,omitempty" yaml:"escalations,omitempty" toml:"escalations,omitempty"`
	// Pre duties run before, Post duties after the function logic
	Pre  []*Duty `json:"pre,omitempty" yaml:"pre,omitempty" toml:"pre,omitempty"`
	Post []*Duty `json:"post,omitempty" yaml:"post,omitempty" toml:"post,omitempty"`
	// Timeout bounds job execution, e.g. "5s"
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	Index         int   `json:"-" yaml:"-" toml:"-"`
	TeamIndex     int   `json:"-" yaml:"-" toml:"-"`
	NextIndex     int   `json:"-" yaml:"-" toml:"-"`
	ObjectIndices []int `json:"-" yaml:"-" toml:"-"`

	timeout time.Duration
	flows   map[string]*FlowLink
}

// FlowLink returns a declared flow link by name
func (f *Function) FlowLink(name string) (*FlowLink, bool) {
	link, ok := f.flows[name]
	return link, ok
}

// TimeoutDuration returns the parsed timeout, zero when not bounded
func (f *Function) TimeoutDuration() time.Duration {
	return f.timeout
}

// FlowLink describes a flow a function may instigate
type FlowLink struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	Function string `json:"function" yaml:"function" toml:"function"`
	// Spawn runs the flow on a new thread
	Spawn bool `json:"spawn,omitempty" yaml:"spawn,omitempty" toml:"spawn,omitempty"`
	// Escalations are flow handlers, or thread handlers of a spawned thread
	Escalations []*Escalation `json:"escalations,omitempty" yaml:"escalations,omitempty" toml:"escalations,omitempty"`

	FunctionIndex int `json:"-" yaml:"-" toml:"-"`
}

// Duty describes an administration duty run around a function
type Duty struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Logic string `json:"logic,omitempty" yaml:"logic,omitempty" toml:"logic,omitempty"`
	// Team overrides the team of the containing function
	Team        string   `json:"team,omitempty" yaml:"team,omitempty" toml:"team,omitempty"`
	Objects     []string `json:"objects,omitempty" yaml:"objects,omitempty" toml:"objects,omitempty"`
	Governances []string `json:"governances,omitempty" yaml:"governances,omitempty" toml:"governances,omitempty"`

	TeamIndex         int   `json:"-" yaml:"-" toml:"-"`
	ObjectIndices     []int `json:"-" yaml:"-" toml:"-"`
	GovernanceIndices []int `json:"-" yaml:"-" toml:"-"`
}

// Escalation maps a failure type onto a handling function
type Escalation struct {
	// Type is matched against the failure chain, "*" or "error" catches all
	Type     string `json:"type" yaml:"type" toml:"type"`
	Function string `json:"function" yaml:"function" toml:"function"`

	FunctionIndex int `json:"-" yaml:"-" toml:"-"`
}
