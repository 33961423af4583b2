package sandbox

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/dop251/goja"

	"github.com/isdmx/dataquery/dataset"
)

// Names injected into every execution context
const (
	DatasetName = "df"
	PrintName   = "print"
	ConsoleName = "console"
	StatsName   = "stats"
)

// fixedSeed makes Math.random reproducible across runs
const fixedSeed = 12345

// allowedGlobals are the pure builtins a script may reference. Every other
// global of a fresh goja runtime is deleted before the script runs.
var allowedGlobals = map[string]bool{
	"Object":         true,
	"Array":          true,
	"String":         true,
	"Number":         true,
	"Boolean":        true,
	"Math":           true,
	"JSON":           true,
	"Map":            true,
	"Set":            true,
	"Symbol":         true,
	"Error":          true,
	"TypeError":      true,
	"RangeError":     true,
	"ReferenceError": true,
	"SyntaxError":    true,
	"parseInt":       true,
	"parseFloat":     true,
	"isNaN":          true,
	"isFinite":       true,
	"NaN":            true,
	"Infinity":       true,
	"undefined":      true,
}

// CapabilityNames lists every global a script can resolve
func CapabilityNames() []string {
	names := []string{DatasetName, PrintName, ConsoleName, StatsName}
	for name := range allowedGlobals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// execContext is the capability context of a single execution. It is built
// fresh for every call and dropped when the call returns.
type execContext struct {
	vm     *goja.Runtime
	out    *outputBuffer
	fmt    *formatter
	freeze goja.Callable
	// protoNames are the Object.prototype members every row object inherits
	protoNames map[string]bool
}

func newExecContext(frame *dataset.Frame, cfg Config) (*execContext, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(cfg.MaxCallStackSize)
	seeded := rand.New(rand.NewSource(fixedSeed)) //nolint:gosec // Deterministic scripts, not security
	vm.SetRandSource(seeded.Float64)

	object := vm.Get("Object").ToObject(vm)
	freeze, ok := goja.AssertFunction(object.Get("freeze"))
	if !ok {
		return nil, errors.New("Object.freeze is not callable")
	}
	protoNames := make(map[string]bool)
	for _, name := range object.Get("prototype").ToObject(vm).GetOwnPropertyNames() {
		protoNames[name] = true
	}

	c := &execContext{
		vm:         vm,
		out:        newOutputBuffer(cfg.MaxOutputBytes),
		fmt:        newFormatter(vm),
		freeze:     freeze,
		protoNames: protoNames,
	}

	if err := c.restrictGlobals(); err != nil {
		return nil, fmt.Errorf("failed to restrict globals: %w", err)
	}

	bindings := map[string]goja.Value{
		DatasetName: c.newFrameValue(frame),
		PrintName:   vm.ToValue(c.print),
		ConsoleName: c.newConsole(),
		StatsName:   c.newStats(),
	}
	global := vm.GlobalObject()
	for _, name := range sortedKeys(bindings) {
		if err := global.DefineDataProperty(name, bindings[name], goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	return c, nil
}

// restrictGlobals deletes every global that is not allowlisted and cuts the
// function constructors off from their prototypes
func (c *execContext) restrictGlobals() error {
	listed, err := c.vm.RunString("Object.getOwnPropertyNames(this)")
	if err != nil {
		return err
	}
	var names []string
	if err := c.vm.ExportTo(listed, &names); err != nil {
		return err
	}

	// Function constructors stay reachable through every function's
	// prototype chain even after the globals are gone
	if _, err := c.vm.RunString(sealConstructors); err != nil {
		return fmt.Errorf("cannot remove function constructors: %w", err)
	}

	global := c.vm.GlobalObject()
	for _, name := range names {
		if allowedGlobals[name] {
			continue
		}
		if err := global.Delete(name); err != nil {
			return fmt.Errorf("cannot remove global %s: %w", name, err)
		}
	}
	return nil
}

// sealConstructors replaces the constructor of the plain, generator and
// async function prototypes with undefined
const sealConstructors = `(function () {
	var protos = [
		Object.getPrototypeOf(function () {}),
		Object.getPrototypeOf(function* () {}),
		Object.getPrototypeOf(async function () {})
	];
	for (var i = 0; i < protos.length; i++) {
		Object.defineProperty(protos[i], "constructor", {
			value: undefined, writable: false, enumerable: false, configurable: false
		});
	}
})()`

// print is the only way a script emits text
func (c *execContext) print(call goja.FunctionCall) goja.Value {
	if err := c.out.writeLine(c.fmt.join(call.Arguments)); err != nil {
		c.throwNamed(ErrorKindOutputLimit, err)
	}
	return goja.Undefined()
}

func (c *execContext) newConsole() goja.Value {
	console := c.vm.NewObject()
	_ = console.Set("log", c.print)
	_ = console.Set("info", c.print)
	return c.frozen(console)
}

func (c *execContext) newStats() goja.Value {
	stats := c.vm.NewObject()
	aggregates := map[string]func([]float64) float64{
		"sum":    sum,
		"mean":   mean,
		"median": median,
		"min":    minOf,
		"max":    maxOf,
		"std":    std,
	}
	for name, agg := range aggregates {
		_ = stats.Set(name, func(call goja.FunctionCall) goja.Value {
			return c.vm.ToValue(agg(c.numbersArg(name, call.Argument(0))))
		})
	}
	_ = stats.Set("round", func(call goja.FunctionCall) goja.Value {
		x := call.Argument(0).ToFloat()
		digits := int(call.Argument(1).ToInteger())
		return c.vm.ToValue(round(x, digits))
	})
	return c.frozen(stats)
}

// numbersArg converts an array argument into its non-missing numeric values
func (c *execContext) numbersArg(op string, arg goja.Value) []float64 {
	obj, ok := arg.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		panic(c.vm.NewTypeError(fmt.Sprintf("stats.%s expects an array of numbers", op)))
	}
	var out []float64
	length := obj.Get("length").ToInteger()
	for i := int64(0); i < length; i++ {
		switch n := obj.Get(fmt.Sprint(i)).Export().(type) {
		case nil:
		case int64:
			out = append(out, float64(n))
		case float64:
			out = append(out, n)
		default:
			panic(c.vm.NewTypeError(fmt.Sprintf("stats.%s: unsupported value %v at index %d", op, n, i)))
		}
	}
	return out
}

// frozen applies Object.freeze so scripts cannot patch bound helpers
func (c *execContext) frozen(obj *goja.Object) goja.Value {
	if _, err := c.freeze(goja.Undefined(), obj); err != nil {
		panic(err)
	}
	return obj
}

// throwNamed throws an error object whose name is the given kind
func (c *execContext) throwNamed(kind string, err error) {
	obj := c.vm.NewGoError(err)
	_ = obj.Set("name", kind)
	panic(obj)
}

// throwKeyError throws the error a missing column lookup produces
func (c *execContext) throwKeyError(column string) {
	obj := c.vm.NewGoError(&dataset.ColumnError{Column: column})
	_ = obj.Set("name", ErrorKindKey)
	_ = obj.Set("message", "'"+column+"'")
	panic(obj)
}

// rethrow propagates an error returned by a script callback
func (c *execContext) rethrow(err error) {
	var exc *goja.Exception
	var interrupted *goja.InterruptedError
	if errors.As(err, &exc) {
		panic(exc)
	}
	if errors.As(err, &interrupted) {
		panic(interrupted)
	}
	panic(c.vm.NewGoError(err))
}

// callback asserts that arg is a function
func (c *execContext) callback(method string, arg goja.Value) goja.Callable {
	fn, ok := goja.AssertFunction(arg)
	if !ok {
		panic(c.vm.NewTypeError(fmt.Sprintf("%s expects a function", method)))
	}
	return fn
}

// cellValue converts a dataset cell into a script value
func cellValue(vm *goja.Runtime, v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case time.Time:
		return vm.ToValue(x.Format(time.RFC3339))
	default:
		return vm.ToValue(x)
	}
}
