// Package cypher - WITH and RETURN projection.
//
// Both clauses share one implementation: evaluate the items per row,
// collapse into groups when an aggregate appears, filter (WITH only),
// order, and limit. WITH republishes the projected bindings as the row
// stream; RETURN renders them as result cells.
package cypher

import (
	"fmt"
	"sort"
)

func errNestedAggregate(item ProjectionItem) error {
	return fmt.Errorf("%w: aggregate nested inside expression %q", ErrUnsupportedOperation, item.Text)
}

func errAggregateArity(fc *FunctionCall) error {
	return fmt.Errorf("%w: %s() takes one argument, got %d", ErrInvalidExpression, fc.Name, len(fc.Args))
}

// projRow is one projected output row: the bindings later clauses may
// reference, the ordered cells for RETURN output, and the originating row
// for ORDER BY expressions that reach behind the projection.
type projRow struct {
	bind  Row
	cells []Value
	orig  Row
}

func (x *Executor) project(rows []Row, items []ProjectionItem, orderBy []OrderItem, limit *int64, where Expression, params map[string]any) ([]string, []projRow, error) {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = projectionName(item)
	}

	hasAgg := false
	for _, item := range items {
		if containsAggregate(item.Expr) {
			hasAgg = true
			break
		}
	}

	var projected []projRow
	var err error
	if hasAgg {
		projected, err = x.projectAggregated(rows, items, names, params)
	} else {
		projected, err = x.projectPlain(rows, items, names, params)
	}
	if err != nil {
		return nil, nil, err
	}

	if where != nil {
		kept := projected[:0:0]
		for _, pr := range projected {
			ec := &evalContext{row: pr.bind, params: params}
			v, err := ec.evaluate(where)
			if err != nil {
				return nil, nil, err
			}
			if v.Truthy() {
				kept = append(kept, pr)
			}
		}
		projected = kept
	}

	if len(orderBy) > 0 {
		if err := x.orderRows(projected, orderBy, params); err != nil {
			return nil, nil, err
		}
	}

	if limit != nil && int64(len(projected)) > *limit {
		projected = projected[:*limit]
	}
	return names, projected, nil
}

// projectionName picks the output column / binding name for an item: the
// alias when given, the variable name for a bare variable, otherwise the
// source text of the expression.
func projectionName(item ProjectionItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	if v, ok := item.Expr.(*Variable); ok {
		return v.Name
	}
	return item.Text
}

func (x *Executor) projectPlain(rows []Row, items []ProjectionItem, names []string, params map[string]any) ([]projRow, error) {
	out := make([]projRow, 0, len(rows))
	for _, row := range rows {
		pr := projRow{bind: make(Row, len(items)), cells: make([]Value, len(items)), orig: row}
		ec := &evalContext{row: row, params: params}
		for i, item := range items {
			v, err := ec.evaluate(item.Expr)
			if err != nil {
				return nil, err
			}
			pr.cells[i] = v
			pr.bind[names[i]] = v
		}
		out = append(out, pr)
	}
	return out, nil
}

// projectAggregated collapses the row set: non-aggregated items become
// group keys, aggregated items accumulate per group. With no group keys the
// whole input forms one group, which exists even for zero input rows.
type aggGroup struct {
	keyCells map[int]Value
	aggs     map[int][]*aggState
	orig     Row
}

func (x *Executor) projectAggregated(rows []Row, items []ProjectionItem, names []string, params map[string]any) ([]projRow, error) {
	keyed := false
	for _, item := range items {
		if !containsAggregate(item.Expr) {
			keyed = true
		}
	}

	groups := make(map[string]*aggGroup)
	var order []string

	groupFor := func(row Row) (*aggGroup, error) {
		key := ""
		cells := make(map[int]Value)
		ec := &evalContext{row: row, params: params}
		for i, item := range items {
			if containsAggregate(item.Expr) {
				continue
			}
			v, err := ec.evaluate(item.Expr)
			if err != nil {
				return nil, err
			}
			cells[i] = v
			key += v.GroupKey() + "\x00"
		}
		g, ok := groups[key]
		if !ok {
			g = &aggGroup{keyCells: cells, aggs: make(map[int][]*aggState), orig: row}
			for i, item := range items {
				if fc, ok := item.Expr.(*FunctionCall); ok && isAggregateFunc(fc.Name) {
					g.aggs[i] = []*aggState{newAggState(fc.Name)}
				}
			}
			groups[key] = g
			order = append(order, key)
		}
		return g, nil
	}

	for _, row := range rows {
		g, err := groupFor(row)
		if err != nil {
			return nil, err
		}
		ec := &evalContext{row: row, params: params}
		for i, item := range items {
			fc, ok := item.Expr.(*FunctionCall)
			if !ok || !isAggregateFunc(fc.Name) {
				if containsAggregate(item.Expr) {
					return nil, errNestedAggregate(item)
				}
				continue
			}
			var arg Value
			if fc.Star {
				arg = IntValue(1)
			} else {
				if len(fc.Args) != 1 {
					return nil, errAggregateArity(fc)
				}
				v, err := ec.evaluate(fc.Args[0])
				if err != nil {
					return nil, err
				}
				arg = v
			}
			g.aggs[i][0].add(arg)
		}
	}

	// A fully aggregated projection over zero rows still yields one row
	// (count = 0, sum = 0, avg/min/max = null).
	if len(rows) == 0 && !keyed {
		g := &aggGroup{keyCells: map[int]Value{}, aggs: make(map[int][]*aggState)}
		for i, item := range items {
			if fc, ok := item.Expr.(*FunctionCall); ok && isAggregateFunc(fc.Name) {
				g.aggs[i] = []*aggState{newAggState(fc.Name)}
			}
		}
		groups["\x00empty"] = g
		order = append(order, "\x00empty")
	}

	out := make([]projRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		pr := projRow{bind: make(Row, len(items)), cells: make([]Value, len(items)), orig: g.orig}
		for i := range items {
			if states, ok := g.aggs[i]; ok {
				v, err := states[0].result()
				if err != nil {
					return nil, err
				}
				pr.cells[i] = v
			} else {
				pr.cells[i] = g.keyCells[i]
			}
			pr.bind[names[i]] = pr.cells[i]
		}
		out = append(out, pr)
	}
	return out, nil
}

// orderRows sorts in place by the ORDER BY keys. Expressions evaluate
// against the projected bindings first, falling back to the originating
// row's bindings for names the projection dropped.
func (x *Executor) orderRows(projected []projRow, orderBy []OrderItem, params map[string]any) error {
	type sortKey struct {
		vals []Value
	}
	keys := make([]sortKey, len(projected))
	for i, pr := range projected {
		ctx := Row{}
		for k, v := range pr.orig {
			ctx[k] = v
		}
		for k, v := range pr.bind {
			ctx[k] = v
		}
		ec := &evalContext{row: ctx, params: params}
		vals := make([]Value, len(orderBy))
		for j, item := range orderBy {
			v, err := ec.evaluate(item.Expr)
			if err != nil {
				return err
			}
			vals[j] = v
		}
		keys[i] = sortKey{vals: vals}
	}

	// Sort via an index permutation so the precomputed keys stay attached
	// to their rows.
	idx := make([]int, len(projected))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for j, item := range orderBy {
			c := orderCompare(ka.vals[j], kb.vals[j])
			if item.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	sorted := make([]projRow, len(projected))
	for i, j := range idx {
		sorted[i] = projected[j]
	}
	copy(projected, sorted)
	return nil
}
