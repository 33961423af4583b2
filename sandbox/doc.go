// Package sandbox runs untrusted analysis scripts against a read-only dataset.
//
// Scripts are JavaScript executed by an in-process goja runtime. Each call
// builds a fresh runtime whose global scope is stripped down to pure
// builtins plus four capabilities: the dataset bound as df, print, console
// and stats. Nothing else is reachable: no filesystem, network, process,
// clock or module loading.
//
// Every call returns an Outcome, never a Go error. The outcome is one of
// success (with the captured output), a data-reference error (a lookup of a
// column the dataset does not have), a runtime error, a timeout or an engine
// error. Failures render through Outcome.Message with the FailureMarker
// prefix.
//
// Usage:
//
//	executor := sandbox.NewGojaExecutor(logger, sandbox.DefaultConfig())
//	outcome := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Script:  "print(df.shape)",
//	    Dataset: frame,
//	    Timeout: 5 * time.Second,
//	})
//	fmt.Print(outcome.Message())
package sandbox
