package types

import "fmt"

func NewLogicNotFoundError(name string) error {
	return fmt.Errorf("logic %v not found", name)
}

func NewInvalidParameterError(in interface{}) error {
	return fmt.Errorf("invalid parameter %T", in)
}

func NewFlowNotFoundError(function, name string) error {
	return fmt.Errorf("flow %v not declared by function %v", name, function)
}
