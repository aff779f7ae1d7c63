package model

// NewOffice creates an empty office
func NewOffice(name string) *Office {
	return &Office{Name: name}
}

// NewTeam adds a team to the office
func (o *Office) NewTeam(name, kind string, workers int) *Team {
	team := &Team{Name: name, Kind: kind, Workers: workers}
	o.Teams = append(o.Teams, team)
	return team
}

// NewManagedObject adds a managed object to the office
func (o *Office) NewManagedObject(name string, scope Scope) *ManagedObject {
	object := &ManagedObject{Name: name, Scope: scope}
	o.ManagedObjects = append(o.ManagedObjects, object)
	return object
}

// NewGovernance adds a governance over the extension to the office
func (o *Office) NewGovernance(name, extension string) *Governance {
	governance := &Governance{Name: name, Extension: extension}
	o.Governances = append(o.Governances, governance)
	return governance
}

// NewFunction adds a function to the office
func (o *Office) NewFunction(name string) *Function {
	function := &Function{Name: name}
	o.Functions = append(o.Functions, function)
	return function
}

// WithThreadEscalation adds a root thread handler
func (o *Office) WithThreadEscalation(failureType, function string) *Office {
	o.ThreadEscalations = append(o.ThreadEscalations, &Escalation{Type: failureType, Function: function})
	return o
}

// WithEscalation adds a process handler
func (o *Office) WithEscalation(failureType, function string) *Office {
	o.Escalations = append(o.Escalations, &Escalation{Type: failureType, Function: function})
	return o
}

// WithSource sets the registered source name
func (m *ManagedObject) WithSource(source string) *ManagedObject {
	m.Source = source
	return m
}

// WithPool enables pooling
func (m *ManagedObject) WithPool(max int) *ManagedObject {
	m.Pool = &Pool{Max: max}
	return m
}

// WithTimeout bounds the wait for the object
func (m *ManagedObject) WithTimeout(timeout string) *ManagedObject {
	m.Timeout = timeout
	return m
}

// WithExtensions declares governance capabilities
func (m *ManagedObject) WithExtensions(extensions ...string) *ManagedObject {
	m.Extensions = append(m.Extensions, extensions...)
	return m
}

// WithProperty sets a source property
func (m *ManagedObject) WithProperty(name string, value interface{}) *ManagedObject {
	if m.Properties == nil {
		m.Properties = map[string]interface{}{}
	}
	m.Properties[name] = value
	return m
}

// WithAutoEnforce sets the completion behaviour
func (g *Governance) WithAutoEnforce(enforce bool) *Governance {
	g.AutoEnforce = &enforce
	return g
}

// WithFactory sets the registered factory name
func (g *Governance) WithFactory(factory string) *Governance {
	g.Factory = factory
	return g
}

// WithLogic sets the registered logic name
func (f *Function) WithLogic(logic string) *Function {
	f.Logic = logic
	return f
}

// WithTeam binds the function to a team
func (f *Function) WithTeam(team string) *Function {
	f.Team = team
	return f
}

// WithObjects declares managed object dependencies
func (f *Function) WithObjects(objects ...string) *Function {
	f.Objects = append(f.Objects, objects...)
	return f
}

// WithNext links the next function
func (f *Function) WithNext(next string) *Function {
	f.Next = next
	return f
}

// WithTimeout bounds the function's jobs
func (f *Function) WithTimeout(timeout string) *Function {
	f.Timeout = timeout
	return f
}

// WithFlow declares a flow link
func (f *Function) WithFlow(name, function string, spawn bool, escalations ...*Escalation) *Function {
	f.Flows = append(f.Flows, &FlowLink{Name: name, Function: function, Spawn: spawn, Escalations: escalations})
	return f
}

// WithEscalation adds a function handler
func (f *Function) WithEscalation(failureType, function string) *Function {
	f.Escalations = append(f.Escalations, &Escalation{Type: failureType, Function: function})
	return f
}

// WithPre adds a duty run before the logic
func (f *Function) WithPre(duty *Duty) *Function {
	f.Pre = append(f.Pre, duty)
	return f
}

// WithPost adds a duty run after the logic
func (f *Function) WithPost(duty *Duty) *Function {
	f.Post = append(f.Post, duty)
	return f
}

// NewDuty creates a duty over objects
func NewDuty(name string, objects ...string) *Duty {
	return &Duty{Name: name, Objects: objects}
}

// WithGovernances grants the duty access to governances
func (d *Duty) WithGovernances(governances ...string) *Duty {
	d.Governances = append(d.Governances, governances...)
	return d
}

// NewEscalation creates a handler mapping
func NewEscalation(failureType, function string) *Escalation {
	return &Escalation{Type: failureType, Function: function}
}
