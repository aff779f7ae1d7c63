// Package escalation defines the typed failures raised by the kernel and the
// rules used to match them against declared escalation handlers.
package escalation
