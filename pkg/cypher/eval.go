// Package cypher - expression evaluation.
//
// Arithmetic policy (documented here because the choices are visible):
// integer overflow and division or modulo by zero fail with
// ErrInvalidExpression; a null operand propagates null through arithmetic;
// comparisons between mismatched types (and any comparison with null)
// evaluate to null, which is falsy wherever a boolean is needed.
package cypher

import (
	"fmt"
	"math"
)

// evalContext carries everything an expression can reference: the current
// row bindings and the query parameters.
type evalContext struct {
	row    Row
	params map[string]any
}

func (ec *evalContext) evaluate(expr Expression) (Value, error) {
	switch e := expr.(type) {
	case *Literal:
		return literalValue(e)

	case *Variable:
		v, ok := ec.row[e.Name]
		if !ok {
			return NullValue(), fmt.Errorf("%w: %s", ErrVariableNotFound, e.Name)
		}
		return v, nil

	case *Parameter:
		raw, ok := ec.params[e.Name]
		if !ok {
			return NullValue(), fmt.Errorf("%w: parameter $%s not supplied", ErrInvalidExpression, e.Name)
		}
		return FromJSON(raw), nil

	case *PropertyAccess:
		return ec.evalPropertyAccess(e)

	case *FunctionCall:
		if isAggregateFunc(e.Name) {
			return NullValue(), fmt.Errorf("%w: aggregate %s() outside a projection", ErrInvalidExpression, e.Name)
		}
		return ec.evalScalarFunc(e)

	case *BinaryOp:
		return ec.evalBinary(e)

	case *UnaryOp:
		return ec.evalUnary(e)
	}
	return NullValue(), fmt.Errorf("%w: unknown expression node %T", ErrInvalidExpression, expr)
}

func literalValue(l *Literal) (Value, error) {
	switch v := l.Value.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(v), nil
	case int64:
		return IntValue(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NullValue(), fmt.Errorf("%w: non-finite float literal", ErrInvalidExpression)
		}
		return FloatValue(v), nil
	case string:
		return StringValue(v), nil
	}
	return NullValue(), fmt.Errorf("%w: unsupported literal %T", ErrInvalidExpression, l.Value)
}

// evalPropertyAccess descends the key chain from the base variable's value.
// Missing keys along the way yield null, not an error: asking a vertex for
// a property it lacks is an ordinary query condition.
func (ec *evalContext) evalPropertyAccess(pa *PropertyAccess) (Value, error) {
	base, ok := ec.row[pa.Base]
	if !ok {
		return NullValue(), fmt.Errorf("%w: %s", ErrVariableNotFound, pa.Base)
	}

	var cur Value
	switch base.Kind {
	case KindVertex:
		cur = FromJSON(any(base.Vertex.Properties))
	case KindEdge:
		cur = FromJSON(any(base.Edge.Properties))
	case KindMap:
		cur = base
	case KindNull:
		return NullValue(), nil
	default:
		return NullValue(), typeMismatch("entity or map", base)
	}

	for _, key := range pa.Path {
		if cur.Kind != KindMap {
			return NullValue(), nil
		}
		next, ok := cur.Map[key]
		if !ok {
			return NullValue(), nil
		}
		cur = next
	}
	return cur, nil
}

func (ec *evalContext) evalUnary(u *UnaryOp) (Value, error) {
	operand, err := ec.evaluate(u.Operand)
	if err != nil {
		return NullValue(), err
	}
	switch u.Op {
	case "NOT":
		return BoolValue(!operand.Truthy()), nil
	case "-":
		switch operand.Kind {
		case KindNull:
			return NullValue(), nil
		case KindInt:
			if operand.Int == math.MinInt64 {
				return NullValue(), fmt.Errorf("%w: integer negation overflow", ErrInvalidExpression)
			}
			return IntValue(-operand.Int), nil
		case KindFloat:
			return FloatValue(-operand.Float), nil
		}
		return NullValue(), typeMismatch("number", operand)
	}
	return NullValue(), fmt.Errorf("%w: unary %s", ErrInvalidExpression, u.Op)
}

func (ec *evalContext) evalBinary(b *BinaryOp) (Value, error) {
	switch b.Op {
	case "AND", "OR":
		left, err := ec.evaluate(b.Left)
		if err != nil {
			return NullValue(), err
		}
		right, err := ec.evaluate(b.Right)
		if err != nil {
			return NullValue(), err
		}
		if b.Op == "AND" {
			return BoolValue(left.Truthy() && right.Truthy()), nil
		}
		return BoolValue(left.Truthy() || right.Truthy()), nil
	}

	left, err := ec.evaluate(b.Left)
	if err != nil {
		return NullValue(), err
	}
	right, err := ec.evaluate(b.Right)
	if err != nil {
		return NullValue(), err
	}

	switch b.Op {
	case "+", "-", "*", "/", "%":
		return evalArithmetic(b.Op, left, right)
	case "=", "<>", "<", ">", "<=", ">=":
		return evalComparison(b.Op, left, right)
	}
	return NullValue(), fmt.Errorf("%w: operator %s", ErrInvalidExpression, b.Op)
}

func evalArithmetic(op string, left, right Value) (Value, error) {
	if left.Kind == KindNull || right.Kind == KindNull {
		return NullValue(), nil
	}

	if op == "+" && left.Kind == KindString && right.Kind == KindString {
		return StringValue(left.Str + right.Str), nil
	}

	if !left.IsNumeric() || !right.IsNumeric() {
		return NullValue(), fmt.Errorf("%w: cannot apply %s to %s and %s",
			ErrTypeMismatch, op, left.Kind, right.Kind)
	}

	if left.Kind == KindInt && right.Kind == KindInt {
		return intArithmetic(op, left.Int, right.Int)
	}

	lf, rf := left.AsFloat(), right.AsFloat()
	switch op {
	case "+":
		return FloatValue(lf + rf), nil
	case "-":
		return FloatValue(lf - rf), nil
	case "*":
		return FloatValue(lf * rf), nil
	case "/":
		if rf == 0 {
			return NullValue(), fmt.Errorf("%w: division by zero", ErrInvalidExpression)
		}
		return FloatValue(lf / rf), nil
	case "%":
		if rf == 0 {
			return NullValue(), fmt.Errorf("%w: modulo by zero", ErrInvalidExpression)
		}
		return FloatValue(math.Mod(lf, rf)), nil
	}
	return NullValue(), fmt.Errorf("%w: operator %s", ErrInvalidExpression, op)
}

func intArithmetic(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
			return NullValue(), fmt.Errorf("%w: integer overflow in %d + %d", ErrInvalidExpression, a, b)
		}
		return IntValue(a + b), nil
	case "-":
		if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
			return NullValue(), fmt.Errorf("%w: integer overflow in %d - %d", ErrInvalidExpression, a, b)
		}
		return IntValue(a - b), nil
	case "*":
		if a != 0 && b != 0 {
			prod := a * b
			if prod/b != a {
				return NullValue(), fmt.Errorf("%w: integer overflow in %d * %d", ErrInvalidExpression, a, b)
			}
			return IntValue(prod), nil
		}
		return IntValue(0), nil
	case "/":
		if b == 0 {
			return NullValue(), fmt.Errorf("%w: division by zero", ErrInvalidExpression)
		}
		if a == math.MinInt64 && b == -1 {
			return NullValue(), fmt.Errorf("%w: integer overflow in %d / %d", ErrInvalidExpression, a, b)
		}
		return IntValue(a / b), nil
	case "%":
		if b == 0 {
			return NullValue(), fmt.Errorf("%w: modulo by zero", ErrInvalidExpression)
		}
		if a == math.MinInt64 && b == -1 {
			return IntValue(0), nil
		}
		return IntValue(a % b), nil
	}
	return NullValue(), fmt.Errorf("%w: operator %s", ErrInvalidExpression, op)
}

// evalComparison compares numerics numerically (with int->float promotion),
// strings lexicographically, and entities by identity for equality. Null
// operands and cross-kind comparisons yield null.
func evalComparison(op string, left, right Value) (Value, error) {
	if left.Kind == KindNull || right.Kind == KindNull {
		return NullValue(), nil
	}

	switch op {
	case "=":
		if comparable(left, right) {
			return BoolValue(left.Equals(right)), nil
		}
		return NullValue(), nil
	case "<>":
		if comparable(left, right) {
			return BoolValue(!left.Equals(right)), nil
		}
		return NullValue(), nil
	}

	var cmp int
	switch {
	case left.IsNumeric() && right.IsNumeric():
		lf, rf := left.AsFloat(), right.AsFloat()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case left.Kind == KindString && right.Kind == KindString:
		switch {
		case left.Str < right.Str:
			cmp = -1
		case left.Str > right.Str:
			cmp = 1
		}
	default:
		return NullValue(), nil
	}

	switch op {
	case "<":
		return BoolValue(cmp < 0), nil
	case ">":
		return BoolValue(cmp > 0), nil
	case "<=":
		return BoolValue(cmp <= 0), nil
	case ">=":
		return BoolValue(cmp >= 0), nil
	}
	return NullValue(), fmt.Errorf("%w: operator %s", ErrInvalidExpression, op)
}

// comparable reports whether equality between the two kinds is meaningful.
func comparable(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool, KindString, KindList, KindMap, KindVertex, KindEdge:
		return true
	}
	return false
}
