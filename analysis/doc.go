// Package analysis answers questions about a dataset end to end.
//
// Service.Ask picks the relevant column, has the generator write a script,
// runs it in the sandbox and returns a Report. Service.Run skips generation
// and executes a caller-supplied script. Every run is recorded in the history
// store when one is configured.
//
// Only the generator can make Ask fail with a Go error. Anything that goes
// wrong while executing the script is carried by the report's Outcome.
package analysis
