package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// maxFormatDepth bounds nested formatting of arrays and objects
const maxFormatDepth = 8

var errOutputLimit = errors.New("captured output exceeds limit")

// outputBuffer is the private capture target of one execution
type outputBuffer struct {
	buf   strings.Builder
	limit int
}

func newOutputBuffer(limit int) *outputBuffer {
	return &outputBuffer{limit: limit}
}

// writeLine appends a line, refusing writes that would pass the limit
func (b *outputBuffer) writeLine(line string) error {
	if b.limit > 0 && b.buf.Len()+len(line)+1 > b.limit {
		return fmt.Errorf("%w: %d bytes", errOutputLimit, b.limit)
	}
	b.buf.WriteString(line)
	b.buf.WriteByte('\n')
	return nil
}

func (b *outputBuffer) String() string {
	return b.buf.String()
}

// formatter renders script values the way print() shows them
type formatter struct {
	vm             *goja.Runtime
	objectToString goja.Value
}

func newFormatter(vm *goja.Runtime) *formatter {
	proto := vm.Get("Object").ToObject(vm).Get("prototype").ToObject(vm)
	return &formatter{vm: vm, objectToString: proto.Get("toString")}
}

// join formats print() arguments separated by spaces
func (f *formatter) join(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = f.format(arg, 0)
	}
	return strings.Join(parts, " ")
}

func (f *formatter) format(v goja.Value, depth int) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		if depth > 0 {
			if s, isString := v.Export().(string); isString {
				return "'" + s + "'"
			}
		}
		return v.String()
	}

	if depth >= maxFormatDepth {
		return "..."
	}

	switch obj.ClassName() {
	case "Array":
		if hasOwn(obj, "toString") {
			return obj.String()
		}
		return f.formatArray(obj, depth)
	case "Function":
		return "<function>"
	case "Error":
		return obj.String()
	}

	if toString := obj.Get("toString"); toString != nil && !toString.SameAs(f.objectToString) {
		return obj.String()
	}
	return f.formatObject(obj, depth)
}

func (f *formatter) formatArray(obj *goja.Object, depth int) string {
	length := obj.Get("length").ToInteger()
	parts := make([]string, 0, length)
	for i := int64(0); i < length; i++ {
		parts = append(parts, f.format(obj.Get(strconv.FormatInt(i, 10)), depth+1))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (f *formatter) formatObject(obj *goja.Object, depth int) string {
	keys := obj.Keys()
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, "'"+key+"': "+f.format(obj.Get(key), depth+1))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func hasOwn(obj *goja.Object, name string) bool {
	for _, own := range obj.GetOwnPropertyNames() {
		if own == name {
			return true
		}
	}
	return false
}

// formatCell renders a dataset cell for tabular output
func formatCell(vm *goja.Runtime, v any) string {
	if v == nil {
		return "null"
	}
	return cellValue(vm, v).String()
}

// sortedKeys returns map keys in order, used for deterministic object output
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
