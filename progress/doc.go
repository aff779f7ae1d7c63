// Package progress keeps per process job counters (total, completed,
// escalated, suspended, ...). The tracker travels in the process context so
// any component holding the context can update it without a global registry.
package progress
