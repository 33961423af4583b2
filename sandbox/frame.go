package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dop251/goja"

	"github.com/isdmx/dataquery/dataset"
)

var errReadOnly = errors.New("dataset is read-only")

// Frame properties computed on every access
const (
	shapeProp   = "shape"
	columnsProp = "columns"
	dtypesProp  = "dtypes"
	toJSONProp  = "toJSON"
)

// describeStats are the rows of describe(), in output order
var describeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// newFrameValue wraps a frame in a proxy. Reads resolve to methods, then
// columns; anything else throws a KeyError. Every write throws a TypeError.
func (c *execContext) newFrameValue(frame *dataset.Frame) goja.Value {
	target := c.vm.NewObject()
	c.bindFrameMethods(target, frame)

	readOnly := func() {
		panic(c.vm.NewTypeError(errReadOnly.Error()))
	}

	proxy := c.vm.NewProxy(target, &goja.ProxyTrapConfig{
		Get: func(target *goja.Object, property string, _ goja.Value) goja.Value {
			switch property {
			case shapeProp:
				return c.shapeValue(frame)
			case columnsProp:
				return c.vm.NewArray(toAnySlice(frame.Names())...)
			case dtypesProp:
				dtypes := c.vm.NewObject()
				for _, col := range frame.Columns() {
					_ = dtypes.Set(col.Name, col.Type.String())
				}
				return dtypes
			}
			if v := target.Get(property); v != nil {
				return v
			}
			if _, ok := frame.Lookup(property); ok {
				return c.columnValue(frame, property)
			}
			c.throwKeyError(property)
			return nil
		},
		Has: func(target *goja.Object, property string) bool {
			if _, ok := frame.Lookup(property); ok {
				return true
			}
			switch property {
			case shapeProp, columnsProp, dtypesProp:
				return true
			}
			return target.Get(property) != nil
		},
		Set: func(*goja.Object, string, goja.Value, goja.Value) bool {
			readOnly()
			return false
		},
		SetSym: func(*goja.Object, *goja.Symbol, goja.Value, goja.Value) bool {
			readOnly()
			return false
		},
		DeleteProperty: func(*goja.Object, string) bool {
			readOnly()
			return false
		},
		DefineProperty: func(*goja.Object, string, goja.PropertyDescriptor) bool {
			readOnly()
			return false
		},
		DefinePropertySym: func(*goja.Object, *goja.Symbol, goja.PropertyDescriptor) bool {
			readOnly()
			return false
		},
		SetPrototypeOf: func(*goja.Object, *goja.Object) bool {
			readOnly()
			return false
		},
		PreventExtensions: func(*goja.Object) bool {
			readOnly()
			return false
		},
	})
	return c.vm.ToValue(proxy)
}

func (c *execContext) bindFrameMethods(target *goja.Object, frame *dataset.Frame) {
	methods := map[string]func(goja.FunctionCall) goja.Value{
		"col": func(call goja.FunctionCall) goja.Value {
			return c.columnValue(frame, call.Argument(0).String())
		},
		"row": func(call goja.FunctionCall) goja.Value {
			i := call.Argument(0).ToInteger()
			if i < 0 || i >= int64(frame.Len()) {
				c.throwNamed(ErrorKindIndex, fmt.Errorf("row %d is out of bounds for dataset with %d rows", i, frame.Len()))
			}
			return c.rowObject(frame, int(i))
		},
		"rows": func(goja.FunctionCall) goja.Value {
			return c.rowArray(frame)
		},
		"toJSON": func(goja.FunctionCall) goja.Value {
			return c.rowArray(frame)
		},
		"head": func(call goja.FunctionCall) goja.Value {
			n := headCount(call.Argument(0), frame.Len())
			return c.derived(frame, rowRange(0, n))
		},
		"tail": func(call goja.FunctionCall) goja.Value {
			n := headCount(call.Argument(0), frame.Len())
			return c.derived(frame, rowRange(frame.Len()-n, frame.Len()))
		},
		"filter": func(call goja.FunctionCall) goja.Value {
			fn := c.callback("filter", call.Argument(0))
			var kept []int
			for i := 0; i < frame.Len(); i++ {
				res, err := fn(goja.Undefined(), c.rowObject(frame, i), c.vm.ToValue(i))
				if err != nil {
					c.rethrow(err)
				}
				if res.ToBoolean() {
					kept = append(kept, i)
				}
			}
			return c.derived(frame, kept)
		},
		"sortBy": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			ascending := true
			if arg := call.Argument(1); !goja.IsUndefined(arg) {
				ascending = arg.ToBoolean()
			}
			return c.derived(frame, c.sortedRows(frame, name, ascending))
		},
		"groupBy": func(call goja.FunctionCall) goja.Value {
			return c.newGroupBy(frame, call.Argument(0).String())
		},
		"describe": func(goja.FunctionCall) goja.Value {
			return c.describe(frame)
		},
		"toString": func(goja.FunctionCall) goja.Value {
			return c.vm.ToValue(c.frameString(frame))
		},
	}
	for _, name := range sortedKeys(methods) {
		_ = target.Set(name, methods[name])
	}
}

// shapeValue is a frozen [rows, cols] pair that prints as a tuple
func (c *execContext) shapeValue(frame *dataset.Frame) goja.Value {
	rows, cols := frame.Shape()
	shape := c.vm.NewArray(rows, cols)
	text := fmt.Sprintf("(%d, %d)", rows, cols)
	toString := c.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return c.vm.ToValue(text)
	})
	_ = shape.DefineDataProperty("toString", toString, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return c.frozen(shape)
}

func (c *execContext) columnValue(frame *dataset.Frame, name string) goja.Value {
	col, ok := frame.Lookup(name)
	if !ok {
		c.throwKeyError(name)
	}
	values, err := frame.Series(name)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return c.newSeriesValue(series{name: col.Name, typ: col.Type, values: values})
}

// rowObject builds a fresh object for one row, keyed in column order.
// Reading a key that is neither a column, an own property set by the script
// nor an Object.prototype member throws a KeyError like df[name] does.
func (c *execContext) rowObject(frame *dataset.Frame, i int) *goja.Object {
	obj := c.vm.NewObject()
	for _, name := range frame.Names() {
		v, err := frame.Value(i, name)
		if err != nil {
			panic(c.vm.NewGoError(err))
		}
		_ = obj.Set(name, cellValue(c.vm, v))
	}

	proxy := c.vm.NewProxy(obj, &goja.ProxyTrapConfig{
		Get: func(target *goja.Object, property string, _ goja.Value) goja.Value {
			if hasOwn(target, property) || c.protoNames[property] {
				return target.Get(property)
			}
			if property == toJSONProp {
				return goja.Undefined()
			}
			c.throwKeyError(property)
			return nil
		},
	})
	return c.vm.ToValue(proxy).(*goja.Object)
}

func (c *execContext) rowArray(frame *dataset.Frame) goja.Value {
	rows := make([]any, frame.Len())
	for i := range rows {
		rows[i] = c.rowObject(frame, i)
	}
	return c.vm.NewArray(rows...)
}

// derived wraps the selected rows of frame as a new frame value
func (c *execContext) derived(frame *dataset.Frame, rows []int) goja.Value {
	sub, err := frame.Take(rows)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return c.newFrameValue(sub)
}

// sortedRows orders row indexes by one column. The sort is stable and
// missing values go last in both directions.
func (c *execContext) sortedRows(frame *dataset.Frame, name string, ascending bool) []int {
	values, err := frame.Series(name)
	if err != nil {
		c.throwKeyError(name)
	}
	rows := rowRange(0, frame.Len())
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := values[rows[i]], values[rows[j]]
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		cmp := compareCells(a, b)
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
	return rows
}

// describe summarizes the numeric columns as a new frame with a stat column
func (c *execContext) describe(frame *dataset.Frame) goja.Value {
	columns := []dataset.Column{{Name: "stat", Type: dataset.TypeString}}
	data := [][]any{toAnySlice(describeStats)}

	for _, col := range frame.Columns() {
		if !col.Type.Numeric() {
			continue
		}
		values, err := frame.Series(col.Name)
		if err != nil {
			panic(c.vm.NewGoError(err))
		}
		xs := c.numbers(series{name: col.Name, typ: col.Type, values: values}, "describe")
		columns = append(columns, dataset.Column{Name: col.Name, Type: dataset.TypeFloat})
		data = append(data, []any{
			float64(len(xs)),
			mean(xs),
			std(xs),
			minOf(xs),
			quantile(xs, 0.25),
			quantile(xs, 0.5),
			quantile(xs, 0.75),
			maxOf(xs),
		})
	}

	summary, err := dataset.New(columns, data)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return c.newFrameValue(summary)
}

// frameString renders a frame as a right-aligned table with a row index
func (c *execContext) frameString(frame *dataset.Frame) string {
	names := frame.Names()
	if frame.Len() == 0 {
		return fmt.Sprintf("Empty dataset\nColumns: [%s]", strings.Join(names, ", "))
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprint(w, "\t")
	for _, name := range names {
		_, _ = fmt.Fprint(w, name, "\t")
	}
	_, _ = fmt.Fprintln(w)
	for i := 0; i < frame.Len(); i++ {
		_, _ = fmt.Fprint(w, i, "\t")
		for _, name := range names {
			v, _ := frame.Value(i, name)
			_, _ = fmt.Fprint(w, formatCell(c.vm, v), "\t")
		}
		_, _ = fmt.Fprintln(w)
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func rowRange(from, to int) []int {
	if from < 0 {
		from = 0
	}
	rows := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		rows = append(rows, i)
	}
	return rows
}

func toAnySlice[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
