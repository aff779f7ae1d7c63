package criteria

import (
	"github.com/viant/floor/service/dao"
)

// FilterByState reports whether state satisfies the State parameters
func FilterByState(state string, parameters []*dao.Parameter) bool {
	return Filter(map[string]string{dao.ParameterState: state}, parameters)
}

// Filter reports whether every parameter naming one of the fields matches its
// value; parameters naming other fields are ignored.
func Filter(fields map[string]string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		value, ok := fields[parameter.Name]
		if !ok {
			continue
		}
		if !matches(value, parameter.Value) {
			return false
		}
	}
	return true
}

func matches(value string, expected interface{}) bool {
	switch actual := expected.(type) {
	case string:
		return value == actual
	case []string:
		for _, candidate := range actual {
			if value == candidate {
				return true
			}
		}
		return false
	}
	return true
}
