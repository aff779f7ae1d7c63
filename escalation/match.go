package escalation

import (
	"errors"
	"reflect"
	"strings"
)

// CatchAll handler types match any escalation.
const (
	CatchAll      = "*"
	CatchAllError = "error"
)

// TypesOf returns the names an escalation can be matched by, most specific
// first. The innermost cause of the chain is the most specific; every error
// contributes its EscalationType (when it is a Failure), its package qualified
// type name and its bare type name.
func TypesOf(err error) []string {
	chain := flatten(err)
	var result []string
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		result = append(result, name)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		item := chain[i]
		if failure, ok := item.(Failure); ok {
			add(failure.EscalationType())
		}
		qualified, short := typeNames(item)
		add(qualified)
		add(short)
	}
	return result
}

// Match returns the position of the handler type matching err, or -1.
// Handler types are compared against TypesOf(err) in order of specificity;
// catch-all types are considered last. Contract violations never match.
func Match(handlerTypes []string, err error) int {
	if err == nil || len(handlerTypes) == 0 || IsContractViolation(err) {
		return -1
	}
	for _, name := range TypesOf(err) {
		for i, candidate := range handlerTypes {
			if candidate == name {
				return i
			}
		}
	}
	for i, candidate := range handlerTypes {
		if candidate == CatchAll || candidate == CatchAllError {
			return i
		}
	}
	return -1
}

// IsContractViolation reports whether err carries ErrContractViolation.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}

// flatten walks the error tree depth first, outermost error first.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	result := []error{err}
	switch actual := err.(type) {
	case interface{ Unwrap() []error }:
		for _, child := range actual.Unwrap() {
			result = append(result, flatten(child)...)
		}
	case interface{ Unwrap() error }:
		result = append(result, flatten(actual.Unwrap())...)
	}
	return result
}

func typeNames(err error) (string, string) {
	rType := reflect.TypeOf(err)
	for rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	short := rType.Name()
	if short == "" {
		return "", ""
	}
	pkg := rType.PkgPath()
	if idx := strings.LastIndex(pkg, "/"); idx != -1 {
		pkg = pkg[idx+1:]
	}
	if pkg == "" {
		return short, short
	}
	return pkg + "." + short, short
}
