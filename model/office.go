package model

import (
	"fmt"
	"sort"
	"time"
)

// Office represents the static metadata of an execution kernel: teams, managed
// objects, governances and functions together with their flow links and
// escalation handlers. Names are resolved into indices by Init; after Init the
// office is treated as read only.
type Office struct {
	// Source provides information about the origin of the office definition
	Source *Source `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
	// Name identifies the office
	Name string `json:"name" yaml:"name" toml:"name"`

	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`

	Teams          []*Team          `json:"teams,omitempty" yaml:"teams,omitempty" toml:"teams,omitempty"`
	ManagedObjects []*ManagedObject `json:"managedObjects,omitempty" yaml:"managedObjects,omitempty" toml:"managedObjects,omitempty"`
	Governances    []*Governance    `json:"governances,omitempty" yaml:"governances,omitempty" toml:"governances,omitempty"`
	Functions      []*Function      `json:"functions,omitempty" yaml:"functions,omitempty" toml:"functions,omitempty"`

	// ThreadEscalations are handlers of the root thread of every process
	ThreadEscalations []*Escalation `json:"threadEscalations,omitempty" yaml:"threadEscalations,omitempty" toml:"threadEscalations,omitempty"`
	// Escalations are process level handlers
	Escalations []*Escalation `json:"escalations,omitempty" yaml:"escalations,omitempty" toml:"escalations,omitempty"`

	teams          map[string]int
	managedObjects map[string]int
	governances    map[string]int
	functions      map[string]int
	initialised    bool
}

// Source represents the location the office was loaded from
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
}

// Init resolves every name reference into an index and validates the office.
func (o *Office) Init() error {
	if o.initialised {
		return nil
	}
	o.teams = map[string]int{}
	o.managedObjects = map[string]int{}
	o.governances = map[string]int{}
	o.functions = map[string]int{}

	for i, team := range o.Teams {
		if team == nil || team.Name == "" {
			return fmt.Errorf("team[%d]: name was empty", i)
		}
		if _, ok := o.teams[team.Name]; ok {
			return fmt.Errorf("duplicate team %v", team.Name)
		}
		if err := team.init(i); err != nil {
			return err
		}
		o.teams[team.Name] = i
	}
	for i, object := range o.ManagedObjects {
		if object == nil || object.Name == "" {
			return fmt.Errorf("managedObject[%d]: name was empty", i)
		}
		if _, ok := o.managedObjects[object.Name]; ok {
			return fmt.Errorf("duplicate managed object %v", object.Name)
		}
		if err := object.init(i); err != nil {
			return err
		}
		o.managedObjects[object.Name] = i
	}
	for i, governance := range o.Governances {
		if governance == nil || governance.Name == "" {
			return fmt.Errorf("governance[%d]: name was empty", i)
		}
		if _, ok := o.governances[governance.Name]; ok {
			return fmt.Errorf("duplicate governance %v", governance.Name)
		}
		governance.Index = i
		if governance.Factory == "" {
			governance.Factory = governance.Name
		}
		o.governances[governance.Name] = i
	}
	for i, function := range o.Functions {
		if function == nil || function.Name == "" {
			return fmt.Errorf("function[%d]: name was empty", i)
		}
		if _, ok := o.functions[function.Name]; ok {
			return fmt.Errorf("duplicate function %v", function.Name)
		}
		function.Index = i
		o.functions[function.Name] = i
	}
	for _, function := range o.Functions {
		if err := o.initFunction(function); err != nil {
			return fmt.Errorf("function %v: %w", function.Name, err)
		}
	}
	if err := o.initEscalations(o.ThreadEscalations); err != nil {
		return fmt.Errorf("threadEscalations: %w", err)
	}
	if err := o.initEscalations(o.Escalations); err != nil {
		return fmt.Errorf("escalations: %w", err)
	}
	o.initialised = true
	return nil
}

func (o *Office) initFunction(function *Function) error {
	if function.Logic == "" {
		function.Logic = function.Name
	}
	var err error
	if function.TeamIndex, err = o.teamIndex(function.Team); err != nil {
		return err
	}
	if function.ObjectIndices, err = o.objectIndices(function.Objects); err != nil {
		return err
	}
	function.NextIndex = -1
	if function.Next != "" {
		if function.NextIndex, err = o.functionIndex(function.Next); err != nil {
			return fmt.Errorf("next: %w", err)
		}
	}
	if function.timeout, err = parseDuration(function.Timeout); err != nil {
		return err
	}
	function.flows = map[string]*FlowLink{}
	for i, link := range function.Flows {
		if link == nil || link.Name == "" {
			return fmt.Errorf("flow[%d]: name was empty", i)
		}
		if _, ok := function.flows[link.Name]; ok {
			return fmt.Errorf("duplicate flow %v", link.Name)
		}
		if link.FunctionIndex, err = o.functionIndex(link.Function); err != nil {
			return fmt.Errorf("flow %v: %w", link.Name, err)
		}
		if err = o.initEscalations(link.Escalations); err != nil {
			return fmt.Errorf("flow %v: %w", link.Name, err)
		}
		function.flows[link.Name] = link
	}
	if err = o.initEscalations(function.Escalations); err != nil {
		return err
	}
	for _, duties := range [][]*Duty{function.Pre, function.Post} {
		for i, duty := range duties {
			if duty == nil || duty.Name == "" {
				return fmt.Errorf("duty[%d]: name was empty", i)
			}
			if err = o.initDuty(function, duty); err != nil {
				return fmt.Errorf("duty %v: %w", duty.Name, err)
			}
		}
	}
	return nil
}

func (o *Office) initDuty(function *Function, duty *Duty) error {
	if duty.Logic == "" {
		duty.Logic = duty.Name
	}
	var err error
	duty.TeamIndex = function.TeamIndex
	if duty.Team != "" {
		if duty.TeamIndex, err = o.teamIndex(duty.Team); err != nil {
			return err
		}
	}
	if duty.ObjectIndices, err = o.objectIndices(duty.Objects); err != nil {
		return err
	}
	duty.GovernanceIndices = make([]int, 0, len(duty.Governances))
	for _, name := range duty.Governances {
		index, ok := o.governances[name]
		if !ok {
			return fmt.Errorf("unknown governance %v", name)
		}
		duty.GovernanceIndices = append(duty.GovernanceIndices, index)
	}
	return nil
}

func (o *Office) initEscalations(escalations []*Escalation) error {
	for i, escalation := range escalations {
		if escalation == nil || escalation.Type == "" {
			return fmt.Errorf("escalation[%d]: type was empty", i)
		}
		var err error
		if escalation.FunctionIndex, err = o.functionIndex(escalation.Function); err != nil {
			return fmt.Errorf("escalation %v: %w", escalation.Type, err)
		}
	}
	return nil
}

func (o *Office) teamIndex(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	index, ok := o.teams[name]
	if !ok {
		return -1, fmt.Errorf("unknown team %v", name)
	}
	return index, nil
}

func (o *Office) functionIndex(name string) (int, error) {
	index, ok := o.functions[name]
	if !ok {
		return -1, fmt.Errorf("unknown function %q", name)
	}
	return index, nil
}

// objectIndices resolves names into ascending indices; acquisition follows that order.
func (o *Office) objectIndices(names []string) ([]int, error) {
	result := make([]int, 0, len(names))
	for _, name := range names {
		index, ok := o.managedObjects[name]
		if !ok {
			return nil, fmt.Errorf("unknown managed object %v", name)
		}
		result = append(result, index)
	}
	sort.Ints(result)
	return result, nil
}

// Function returns a function by name
func (o *Office) Function(name string) (*Function, bool) {
	index, ok := o.functions[name]
	if !ok {
		return nil, false
	}
	return o.Functions[index], true
}

// Governance returns a governance by name
func (o *Office) Governance(name string) (*Governance, bool) {
	index, ok := o.governances[name]
	if !ok {
		return nil, false
	}
	return o.Governances[index], true
}

// ManagedObject returns a managed object by name
func (o *Office) ManagedObject(name string) (*ManagedObject, bool) {
	index, ok := o.managedObjects[name]
	if !ok {
		return nil, false
	}
	return o.ManagedObjects[index], true
}

// EscalationTypes returns handler types in declaration order
func EscalationTypes(escalations []*Escalation) []string {
	result := make([]string, len(escalations))
	for i, escalation := range escalations {
		result[i] = escalation.Type
	}
	return result
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", value, err)
	}
	return duration, nil
}
