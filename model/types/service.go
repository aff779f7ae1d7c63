package types

// Function is the business logic of a managed function; the returned value
// becomes the parameter of the next function.
type Function func(ctx FunctionContext) (interface{}, error)

// Duty is the logic of an administration duty
type Duty func(ctx DutyContext) error

// Proxy decorates a function, e.g. with logging
type Proxy func(name string, base Function) Function
