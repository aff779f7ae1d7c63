package nop

import (
	"github.com/viant/floor/model/types"
)

// Name is the logic name the function is registered under
const Name = "nop"

// Function performs no operation and passes its parameter through to the next function
func Function(ctx types.FunctionContext) (interface{}, error) {
	return ctx.Parameter(), nil
}

// Duty performs no operation
func Duty(types.DutyContext) error {
	return nil
}
