// Package cypher - built-in scalar and aggregate functions.
package cypher

import (
	"fmt"
	"strings"
)

// aggregateFuncs are handled by the projection stages; seeing one anywhere
// else is an error.
var aggregateFuncs = map[string]bool{
	"count": true,
	"sum":   true,
	"avg":   true,
	"min":   true,
	"max":   true,
}

func isAggregateFunc(name string) bool {
	return aggregateFuncs[strings.ToLower(name)]
}

// containsAggregate reports whether any aggregate call appears in the
// expression tree.
func containsAggregate(expr Expression) bool {
	switch e := expr.(type) {
	case *FunctionCall:
		if isAggregateFunc(e.Name) {
			return true
		}
		for _, arg := range e.Args {
			if containsAggregate(arg) {
				return true
			}
		}
	case *BinaryOp:
		return containsAggregate(e.Left) || containsAggregate(e.Right)
	case *UnaryOp:
		return containsAggregate(e.Operand)
	}
	return false
}

func (ec *evalContext) evalScalarFunc(fc *FunctionCall) (Value, error) {
	argc := func(n int) error {
		if len(fc.Args) != n {
			return fmt.Errorf("%w: %s() takes %d argument(s), got %d",
				ErrInvalidExpression, fc.Name, n, len(fc.Args))
		}
		return nil
	}

	switch fc.Name {
	case "id":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		v, err := ec.evaluate(fc.Args[0])
		if err != nil {
			return NullValue(), err
		}
		switch v.Kind {
		case KindVertex:
			return IntValue(int64(v.Vertex.ID.Raw())), nil
		case KindEdge:
			return IntValue(int64(v.Edge.ID.Raw())), nil
		case KindNull:
			return NullValue(), nil
		}
		return NullValue(), typeMismatch("entity", v)

	case "label":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		v, err := ec.evaluate(fc.Args[0])
		if err != nil {
			return NullValue(), err
		}
		switch v.Kind {
		case KindVertex:
			return StringValue(v.Vertex.Label), nil
		case KindNull:
			return NullValue(), nil
		}
		return NullValue(), typeMismatch("vertex", v)

	case "type":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		v, err := ec.evaluate(fc.Args[0])
		if err != nil {
			return NullValue(), err
		}
		switch v.Kind {
		case KindEdge:
			return StringValue(v.Edge.Label), nil
		case KindNull:
			return NullValue(), nil
		}
		return NullValue(), typeMismatch("edge", v)

	case "properties":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		v, err := ec.evaluate(fc.Args[0])
		if err != nil {
			return NullValue(), err
		}
		switch v.Kind {
		case KindVertex:
			return FromJSON(any(v.Vertex.Properties)), nil
		case KindEdge:
			return FromJSON(any(v.Edge.Properties)), nil
		case KindNull:
			return NullValue(), nil
		}
		return NullValue(), typeMismatch("entity", v)

	case "size":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		v, err := ec.evaluate(fc.Args[0])
		if err != nil {
			return NullValue(), err
		}
		switch v.Kind {
		case KindString:
			return IntValue(int64(len(v.Str))), nil
		case KindList:
			return IntValue(int64(len(v.List))), nil
		case KindMap:
			return IntValue(int64(len(v.Map))), nil
		case KindNull:
			return NullValue(), nil
		}
		return NullValue(), typeMismatch("string or collection", v)

	case "length":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		v, err := ec.evaluate(fc.Args[0])
		if err != nil {
			return NullValue(), err
		}
		switch v.Kind {
		case KindPath:
			return IntValue(int64(v.Path.Len())), nil
		case KindList:
			return IntValue(int64(len(v.List))), nil
		case KindNull:
			return NullValue(), nil
		}
		return NullValue(), typeMismatch("path or list", v)

	case "toupper":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		return ec.stringFunc(fc.Args[0], strings.ToUpper)

	case "tolower":
		if err := argc(1); err != nil {
			return NullValue(), err
		}
		return ec.stringFunc(fc.Args[0], strings.ToLower)
	}

	return NullValue(), fmt.Errorf("%w: unknown function %s()", ErrUnsupportedOperation, fc.Name)
}

func (ec *evalContext) stringFunc(arg Expression, fn func(string) string) (Value, error) {
	v, err := ec.evaluate(arg)
	if err != nil {
		return NullValue(), err
	}
	switch v.Kind {
	case KindString:
		return StringValue(fn(v.Str)), nil
	case KindNull:
		return NullValue(), nil
	}
	return NullValue(), typeMismatch("string", v)
}

// aggState accumulates one aggregate call over the rows of a group.
type aggState struct {
	fn    string
	count int64
	sumI  int64
	sumF  float64
	isFlt bool
	best  Value
	seen  bool
	err   error
}

func newAggState(fn string) *aggState {
	return &aggState{fn: fn}
}

// add folds one evaluated argument value into the accumulator. Null
// arguments are skipped for every aggregate except count(*), whose Star
// handling feeds a synthetic non-null here.
func (a *aggState) add(v Value) {
	if a.err != nil || v.Kind == KindNull {
		return
	}
	switch a.fn {
	case "count":
		a.count++
	case "sum", "avg":
		switch v.Kind {
		case KindInt:
			a.sumI += v.Int
			a.sumF += float64(v.Int)
		case KindFloat:
			a.isFlt = true
			a.sumF += v.Float
		default:
			a.err = typeMismatch("number", v)
			return
		}
		a.count++
	case "min":
		if !a.seen || orderCompare(v, a.best) < 0 {
			a.best = v
		}
		a.seen = true
	case "max":
		if !a.seen || orderCompare(v, a.best) > 0 {
			a.best = v
		}
		a.seen = true
	}
}

// result finalizes the accumulator. Empty groups yield count 0, sum 0, and
// null for avg/min/max.
func (a *aggState) result() (Value, error) {
	if a.err != nil {
		return NullValue(), a.err
	}
	switch a.fn {
	case "count":
		return IntValue(a.count), nil
	case "sum":
		if a.isFlt {
			return FloatValue(a.sumF), nil
		}
		return IntValue(a.sumI), nil
	case "avg":
		if a.count == 0 {
			return NullValue(), nil
		}
		return FloatValue(a.sumF / float64(a.count)), nil
	case "min", "max":
		if !a.seen {
			return NullValue(), nil
		}
		return a.best, nil
	}
	return NullValue(), fmt.Errorf("%w: aggregate %s()", ErrUnsupportedOperation, a.fn)
}
