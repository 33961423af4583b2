package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/isdmx/dataquery/dataset"
)

// defaultHead is the row count of head() and tail() without an argument
const defaultHead = 5

// series is one column's values as seen by a script
type series struct {
	name   string
	typ    dataset.Type
	values []any
}

// newSeriesValue exposes a series as a frozen object. values() and
// friends hand out fresh arrays, so nothing a script does reaches the frame.
func (c *execContext) newSeriesValue(s series) goja.Value {
	obj := c.vm.NewObject()
	_ = obj.Set("name", s.name)
	_ = obj.Set("dtype", s.typ.String())
	_ = obj.Set("length", len(s.values))

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"values": func(goja.FunctionCall) goja.Value {
			return c.cellArray(s.values)
		},
		"at": func(call goja.FunctionCall) goja.Value {
			i := call.Argument(0).ToInteger()
			if i < 0 || i >= int64(len(s.values)) {
				c.throwNamed(ErrorKindIndex, fmt.Errorf("index %d is out of bounds for series '%s' with size %d", i, s.name, len(s.values)))
			}
			return cellValue(c.vm, s.values[i])
		},
		"sum": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "sum")
			return cellValue(c.vm, v)
		},
		"mean": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "mean")
			return cellValue(c.vm, v)
		},
		"median": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "median")
			return cellValue(c.vm, v)
		},
		"std": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "std")
			return cellValue(c.vm, v)
		},
		"min": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "min")
			return cellValue(c.vm, v)
		},
		"max": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "max")
			return cellValue(c.vm, v)
		},
		"count": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "count")
			return cellValue(c.vm, v)
		},
		"nunique": func(goja.FunctionCall) goja.Value {
			v, _ := c.aggregate(s, "nunique")
			return cellValue(c.vm, v)
		},
		"unique": func(goja.FunctionCall) goja.Value {
			return c.cellArray(uniqueValues(s.values))
		},
		"valueCounts": func(goja.FunctionCall) goja.Value {
			return c.valueCounts(s)
		},
		"head": func(call goja.FunctionCall) goja.Value {
			n := headCount(call.Argument(0), len(s.values))
			return c.newSeriesValue(series{name: s.name, typ: s.typ, values: s.values[:n]})
		},
		"map": func(call goja.FunctionCall) goja.Value {
			fn := c.callback("map", call.Argument(0))
			out := make([]any, len(s.values))
			for i, v := range s.values {
				res, err := fn(goja.Undefined(), cellValue(c.vm, v), c.vm.ToValue(i))
				if err != nil {
					c.rethrow(err)
				}
				out[i] = res
			}
			return c.vm.NewArray(out...)
		},
		"filter": func(call goja.FunctionCall) goja.Value {
			fn := c.callback("filter", call.Argument(0))
			var kept []any
			for i, v := range s.values {
				res, err := fn(goja.Undefined(), cellValue(c.vm, v), c.vm.ToValue(i))
				if err != nil {
					c.rethrow(err)
				}
				if res.ToBoolean() {
					kept = append(kept, v)
				}
			}
			return c.newSeriesValue(series{name: s.name, typ: s.typ, values: kept})
		},
		"toJSON": func(goja.FunctionCall) goja.Value {
			return c.cellArray(s.values)
		},
		"toString": func(goja.FunctionCall) goja.Value {
			return c.vm.ToValue(c.seriesString(s))
		},
	}
	for _, name := range sortedKeys(methods) {
		_ = obj.Set(name, methods[name])
	}

	return c.frozen(obj)
}

// numbers returns the non-missing values of a numeric or boolean series
func (c *execContext) numbers(s series, op string) []float64 {
	out := make([]float64, 0, len(s.values))
	for _, v := range s.values {
		switch x := v.(type) {
		case nil:
		case int64:
			out = append(out, float64(x))
		case float64:
			if !math.IsNaN(x) {
				out = append(out, x)
			}
		case bool:
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			panic(c.vm.NewTypeError(fmt.Sprintf("unsupported operation %s for %s series '%s'", op, s.typ, s.name)))
		}
	}
	return out
}

// aggregate reduces a series with a named operation. It returns the result
// cell and the column type that holds it.
func (c *execContext) aggregate(s series, op string) (any, dataset.Type) {
	switch op {
	case "count":
		var n int64
		for _, v := range s.values {
			if v != nil {
				n++
			}
		}
		return n, dataset.TypeInteger
	case "nunique":
		return int64(len(uniqueValues(s.values))), dataset.TypeInteger
	case "sum":
		if s.typ == dataset.TypeInteger {
			var total int64
			for _, v := range s.values {
				n, ok := v.(int64)
				if !ok {
					continue
				}
				if (n > 0 && total > math.MaxInt64-n) || (n < 0 && total < math.MinInt64-n) {
					return sum(c.numbers(s, op)), dataset.TypeFloat
				}
				total += n
			}
			return total, dataset.TypeInteger
		}
		return sum(c.numbers(s, op)), dataset.TypeFloat
	case "mean":
		return mean(c.numbers(s, op)), dataset.TypeFloat
	case "median":
		return median(c.numbers(s, op)), dataset.TypeFloat
	case "std":
		return std(c.numbers(s, op)), dataset.TypeFloat
	case "min":
		return extreme(s.values, -1), s.typ
	case "max":
		return extreme(s.values, 1), s.typ
	default:
		c.throwNamed(ErrorKindValue, fmt.Errorf("unsupported aggregation '%s'", op))
		return nil, s.typ
	}
}

// extreme returns the smallest (dir < 0) or largest (dir > 0) present value
func extreme(values []any, dir int) any {
	var best any
	for _, v := range values {
		if missingCell(v) {
			continue
		}
		if best == nil || compareCells(v, best)*dir > 0 {
			best = v
		}
	}
	return best
}

func (c *execContext) valueCounts(s series) goja.Value {
	counts := make(map[any]int)
	var order []any
	for _, v := range s.values {
		if missingCell(v) {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	entries := make([]any, len(order))
	for i, v := range order {
		entry := c.vm.NewObject()
		_ = entry.Set("value", cellValue(c.vm, v))
		_ = entry.Set("count", counts[v])
		entries[i] = entry
	}
	return c.vm.NewArray(entries...)
}

func (c *execContext) seriesString(s series) string {
	var b strings.Builder
	width := len(strconv.Itoa(len(s.values)))
	for i, v := range s.values {
		fmt.Fprintf(&b, "%-*d    %s\n", width, i, formatCell(c.vm, v))
	}
	fmt.Fprintf(&b, "Name: %s, dtype: %s", s.name, s.typ)
	return b.String()
}

func (c *execContext) cellArray(values []any) goja.Value {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = cellValue(c.vm, v)
	}
	return c.vm.NewArray(items...)
}

func uniqueValues(values []any) []any {
	seen := make(map[any]bool)
	var out []any
	for _, v := range values {
		if missingCell(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// missingCell reports nil and NaN cells. NaN never equals itself, so it
// cannot key a map.
func missingCell(v any) bool {
	if v == nil {
		return true
	}
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// headCount resolves the optional row count argument of head() and tail()
func headCount(arg goja.Value, size int) int {
	n := defaultHead
	if arg != nil && !goja.IsUndefined(arg) {
		n = int(arg.ToInteger())
	}
	if n < 0 {
		n = 0
	}
	if n > size {
		n = size
	}
	return n
}

// compareCells orders two non-nil cells of the same column type. Missing
// values are handled by callers.
func compareCells(a, b any) int {
	switch x := a.(type) {
	case int64:
		return compareFloat(float64(x), toFloat(b))
	case float64:
		return compareFloat(x, toFloat(b))
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	default:
		return math.NaN()
	}
}
