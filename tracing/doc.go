// Package tracing wraps OpenTelemetry so the kernel can open spans for
// processes, functions and escalations without importing the upstream API
// directly.
package tracing
