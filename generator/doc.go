// Package generator turns a natural-language question into an analysis script.
//
// A Generator asks a Completer twice: once to pick the column most relevant
// to the question, and once to write a script against the dataset API the
// sandbox exposes. Completions from any OpenAI-compatible endpoint are served
// by OpenAICompleter.
//
// Generated scripts are untrusted. The generator only strips a surrounding
// markdown fence; everything else is enforced by the sandbox.
package generator
