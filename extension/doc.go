// Package extension provides the run-time registry binding the names used in
// an office (function and duty logic, managed object sources, governance
// factories, team kinds) to Go implementations.
//
// The registry is normally populated through the options of the root floor
// package, therefore most applications do not need to import it directly.
package extension
