package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/isdmx/dataquery/dataset"
)

// goErrorName is the name goja gives errors wrapped with NewGoError
const goErrorName = "GoError"

// budgetExceeded is the interrupt cause of a run that used up its budget
type budgetExceeded struct {
	budget time.Duration
}

func (b budgetExceeded) Error() string {
	return fmt.Sprintf("execution exceeded the %s time budget", b.budget)
}

// classify maps the result of running a program to an outcome. The
// captured output only survives a clean run.
func classify(err error, out *outputBuffer) Outcome {
	if err == nil {
		return Success(out.String())
	}

	var interrupted *goja.InterruptedError
	var overflow *goja.StackOverflowError
	var exc *goja.Exception
	switch {
	case errors.As(err, &interrupted):
		return Timeout(timeoutDetail(interrupted.Value()))
	case errors.As(err, &overflow):
		return RuntimeError(ErrorKindRange, "maximum call stack size exceeded")
	case errors.As(err, &exc):
		return classifyException(exc)
	default:
		return EngineError(err.Error())
	}
}

// compileFailure reports a script that does not compile
func compileFailure(err error) Outcome {
	var syntaxErr *goja.CompilerSyntaxError
	var refErr *goja.CompilerReferenceError
	switch {
	case errors.As(err, &syntaxErr):
		return RuntimeError(ErrorKindSyntax, strings.TrimPrefix(syntaxErr.Error(), ErrorKindSyntax+": "))
	case errors.As(err, &refErr):
		return RuntimeError(ErrorKindReference, strings.TrimPrefix(refErr.Error(), ErrorKindReference+": "))
	default:
		return RuntimeError(ErrorKindSyntax, err.Error())
	}
}

// classifyException reads the name and message of a thrown value. Reading
// them may run script getters, so failures there are contained. Only a
// ColumnError raised by a dataset lookup is a data reference failure; a
// script throwing its own KeyError gets a RuntimeError.
func classifyException(exc *goja.Exception) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if interrupted, ok := r.(*goja.InterruptedError); ok {
				outcome = Timeout(timeoutDetail(interrupted.Value()))
				return
			}
			outcome = RuntimeError(ErrorKindGenericError, "unreadable exception")
		}
	}()

	var colErr *dataset.ColumnError
	if errors.As(exc, &colErr) {
		return DataReferenceError(colErr.Column, quoted(colErr.Column))
	}

	obj, ok := exc.Value().(*goja.Object)
	if !ok {
		return RuntimeError(ErrorKindGenericError, exc.Value().String())
	}

	name := propertyString(obj, "name")
	message := propertyString(obj, "message")
	switch {
	case name == goErrorName && exc.Unwrap() != nil:
		return EngineError(message)
	case name == "":
		return RuntimeError(ErrorKindGenericError, obj.String())
	default:
		return RuntimeError(name, message)
	}
}

func propertyString(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func timeoutDetail(cause any) string {
	err, ok := cause.(error)
	if !ok {
		return fmt.Sprintf("execution interrupted: %v", cause)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "execution cancelled by caller"
	case errors.Is(err, context.DeadlineExceeded):
		return "caller deadline exceeded"
	default:
		return err.Error()
	}
}

func quoted(column string) string {
	return "'" + column + "'"
}
