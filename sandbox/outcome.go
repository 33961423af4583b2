package sandbox

import (
	"fmt"
	"strings"
	"time"
)

// FailureMarker prefixes the message of every failed outcome
const FailureMarker = "An error occurred while executing the generated code:"

// Kind classifies an execution outcome
type Kind int

// Outcome kinds
const (
	KindSuccess Kind = iota
	KindDataReferenceError
	KindRuntimeError
	KindTimeout
	KindEngineError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindDataReferenceError:
		return "data_reference_error"
	case KindRuntimeError:
		return "runtime_error"
	case KindTimeout:
		return "timeout"
	case KindEngineError:
		return "engine_error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name in JSON and YAML output
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind written by MarshalText
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	for k := KindSuccess; k <= KindEngineError; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome kind: %s", s)
}

// Error kinds reported for failures that do not come from a thrown script value
const (
	ErrorKindKey          = "KeyError"
	ErrorKindTimeout      = "Timeout"
	ErrorKindEngine       = "EngineError"
	ErrorKindSyntax       = "SyntaxError"
	ErrorKindReference    = "ReferenceError"
	ErrorKindType         = "TypeError"
	ErrorKindRange        = "RangeError"
	ErrorKindOutputLimit  = "OutputLimitError"
	ErrorKindIndex        = "IndexError"
	ErrorKindValue        = "ValueError"
	ErrorKindGenericError = "Error"
)

// Outcome is the classified result of one execution
type Outcome struct {
	Kind Kind `json:"kind" yaml:"kind"`
	// Output holds the captured text of a successful run
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// ErrorKind is the failure category, e.g. TypeError or KeyError
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	// Detail is "<ErrorKind>: <message>"
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	// Column names the missing column of a data-reference error
	Column   string        `json:"column,omitempty" yaml:"column,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Success builds a successful outcome
func Success(output string) Outcome {
	return Outcome{Kind: KindSuccess, Output: output}
}

// DataReferenceError builds the outcome for a lookup of a missing column
func DataReferenceError(column, message string) Outcome {
	return failure(KindDataReferenceError, ErrorKindKey, message).withColumn(column)
}

// RuntimeError builds the outcome for any other error raised by the script
func RuntimeError(kind, message string) Outcome {
	if kind == "" {
		kind = ErrorKindGenericError
	}
	return failure(KindRuntimeError, kind, message)
}

// Timeout builds the outcome for a run stopped by its budget or by cancellation
func Timeout(message string) Outcome {
	return failure(KindTimeout, ErrorKindTimeout, message)
}

// EngineError builds the outcome for a failure of the sandbox itself
func EngineError(message string) Outcome {
	return failure(KindEngineError, ErrorKindEngine, message)
}

func failure(kind Kind, errorKind, message string) Outcome {
	return Outcome{
		Kind:      kind,
		ErrorKind: errorKind,
		Detail:    fmt.Sprintf("%s: %s", errorKind, message),
	}
}

func (o Outcome) withColumn(column string) Outcome {
	o.Column = column
	return o
}

// Failed reports whether the outcome is anything but success
func (o Outcome) Failed() bool {
	return o.Kind != KindSuccess
}

// ScriptFault reports whether the failure was caused by the script rather
// than by the sandbox
func (o Outcome) ScriptFault() bool {
	return o.Kind == KindDataReferenceError || o.Kind == KindRuntimeError || o.Kind == KindTimeout
}

// Message returns the captured output on success and the marker-prefixed
// failure text otherwise
func (o Outcome) Message() string {
	if !o.Failed() {
		return o.Output
	}
	return FailureMarker + "\n" + o.Detail
}

// Equivalent compares two outcomes ignoring their durations
func (o Outcome) Equivalent(other Outcome) bool {
	o.Duration = 0
	other.Duration = 0
	return o == other
}

// IsFailureMessage reports whether a rendered message describes a failure
func IsFailureMessage(message string) bool {
	return strings.HasPrefix(message, FailureMarker)
}
