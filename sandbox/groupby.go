package sandbox

import (
	"fmt"
	"sort"

	"github.com/dop251/goja"

	"github.com/isdmx/dataquery/dataset"
)

// SizeColumn names the count column produced by groupBy(...).size()
const SizeColumn = "size"

// grouping holds the row indexes of each distinct key, keys in sorted order.
// Rows with a missing or NaN key are dropped.
type grouping struct {
	key  dataset.Column
	keys []any
	rows map[any][]int
}

func (c *execContext) newGroupBy(frame *dataset.Frame, name string) goja.Value {
	col, ok := frame.Lookup(name)
	if !ok {
		c.throwKeyError(name)
	}
	values, err := frame.Series(name)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}

	g := grouping{key: col, rows: make(map[any][]int)}
	for i, v := range values {
		if missingCell(v) {
			continue
		}
		if _, seen := g.rows[v]; !seen {
			g.keys = append(g.keys, v)
		}
		g.rows[v] = append(g.rows[v], i)
	}
	sort.SliceStable(g.keys, func(i, j int) bool {
		return compareCells(g.keys[i], g.keys[j]) < 0
	})

	obj := c.vm.NewObject()
	_ = obj.Set("keys", func(goja.FunctionCall) goja.Value {
		return c.cellArray(g.keys)
	})
	_ = obj.Set("size", func(goja.FunctionCall) goja.Value {
		sizes := make([]any, len(g.keys))
		for i, key := range g.keys {
			sizes[i] = int64(len(g.rows[key]))
		}
		return c.groupFrame(g, dataset.Column{Name: SizeColumn, Type: dataset.TypeInteger}, sizes, "count")
	})
	_ = obj.Set("agg", func(call goja.FunctionCall) goja.Value {
		target := call.Argument(0).String()
		op := call.Argument(1).String()
		return c.groupAgg(frame, g, target, op)
	})
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return c.vm.ToValue(fmt.Sprintf("<groupBy %s: %d groups>", col.Name, len(g.keys)))
	})
	return c.frozen(obj)
}

// groupAgg reduces one column per group into a two-column frame
func (c *execContext) groupAgg(frame *dataset.Frame, g grouping, name, op string) goja.Value {
	col, ok := frame.Lookup(name)
	if !ok {
		c.throwKeyError(name)
	}
	values, err := frame.Series(name)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}

	results := make([]any, len(g.keys))
	_, typ := c.aggregate(series{name: col.Name, typ: col.Type}, op)
	for i, key := range g.keys {
		rows := g.rows[key]
		group := make([]any, len(rows))
		for j, row := range rows {
			group[j] = values[row]
		}
		var groupType dataset.Type
		results[i], groupType = c.aggregate(series{name: col.Name, typ: col.Type, values: group}, op)
		// An integer sum that overflowed in one group widens the whole column
		if groupType == dataset.TypeFloat {
			typ = dataset.TypeFloat
		}
	}
	return c.groupFrame(g, dataset.Column{Name: col.Name, Type: typ}, results, op)
}

// groupFrame pairs the group keys with one result column. A result named
// like the key column gets the suffix appended.
func (c *execContext) groupFrame(g grouping, result dataset.Column, values []any, suffix string) goja.Value {
	if result.Name == g.key.Name {
		result.Name += "_" + suffix
	}
	out, err := dataset.New([]dataset.Column{g.key, result}, [][]any{g.keys, values})
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return c.newFrameValue(out)
}
