// Package history records analysis runs in SQLite.
//
// History is an orchestrator concern: the sandbox stays stateless and never
// sees the store. When history is disabled in the configuration a no-op store
// is used instead.
package history
