// Package governance implements the governance state machine used by
// administration duties and by the kernel when a flow completes with
// governance still active.
package governance
