package dao

// Parameter names understood by the list criteria
const (
	ParameterState    = "State"
	ParameterFunction = "Function"
)

// Parameter narrows a List call
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter; several values match any of them
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
