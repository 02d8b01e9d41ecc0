// Package cypher - runtime values and rows.
package cypher

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// ValueKind tags the closed Value union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindVertex
	KindEdge
	KindPath
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindPath:
		return "path"
	}
	return "unknown"
}

// Value is the tagged union the executor binds variables to. Only the field
// selected by Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	List   []Value
	Map    map[string]Value
	Vertex *storage.Vertex
	Edge   *storage.Edge
	Path   *storage.Path
}

// Row binds variable names to values; it is the unit of data flow between
// executor stages.
type Row map[string]Value

// Clone copies the binding map (values are shared).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func NullValue() Value               { return Value{Kind: KindNull} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func ListValue(vs []Value) Value     { return Value{Kind: KindList, List: vs} }
func MapValue(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}
func VertexValue(v *storage.Vertex) Value { return Value{Kind: KindVertex, Vertex: v} }
func EdgeValue(e *storage.Edge) Value     { return Value{Kind: KindEdge, Edge: e} }
func PathValue(p *storage.Path) Value     { return Value{Kind: KindPath, Path: p} }

// FromJSON converts a decoded JSON value (as produced by encoding/json into
// any) to a Value. Whole floats come back as integers so that a property
// written as 30 compares as 30, not 30.0.
func FromJSON(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(int64(x))
	case int64:
		return IntValue(x)
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < float64(math.MaxInt64) {
			return IntValue(int64(x))
		}
		return FloatValue(x)
	case string:
		return StringValue(x)
	case []any:
		list := make([]Value, len(x))
		for i, item := range x {
			list[i] = FromJSON(item)
		}
		return ListValue(list)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = FromJSON(item)
		}
		return MapValue(m)
	}
	return NullValue()
}

// ToJSON converts a Value to a JSON-document value for storage in a
// property document. Non-finite floats cannot be represented in JSON and
// fail with ErrInvalidExpression; entities are not storable as properties.
func (v Value) ToJSON() (any, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil, fmt.Errorf("%w: non-finite float cannot be stored", ErrInvalidExpression)
		}
		return v.Float, nil
	case KindString:
		return v.Str, nil
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			j, err := item.ToJSON()
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, item := range v.Map {
			j, err := item.ToJSON()
			if err != nil {
				return nil, err
			}
			out[k] = j
		}
		return out, nil
	}
	return nil, typeMismatch("storable value", v)
}

// Truthy coerces a value to a boolean for the logical operators: null is
// false, numbers are nonzero, strings and collections are nonempty,
// entities are true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	case KindList:
		return len(v.List) > 0
	case KindMap:
		return len(v.Map) > 0
	}
	return true
}

// IsNumeric reports whether the value is an integer or float.
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsFloat promotes a numeric value to float64.
func (v Value) AsFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Equals is strict value equality with numeric promotion. Entities compare
// by identifier. Values of different non-numeric kinds are never equal.
func (v Value) Equals(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.Int == o.Int
		}
		return v.AsFloat() == o.AsFloat()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindVertex:
		return v.Vertex.ID == o.Vertex.ID
	case KindEdge:
		return v.Edge.ID == o.Edge.ID
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equals(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, item := range v.Map {
			other, ok := o.Map[k]
			if !ok || !item.Equals(other) {
				return false
			}
		}
		return true
	}
	return false
}

// orderCompare defines the total order used by ORDER BY: null sorts last,
// then values compare within kind (numerics together), and across kinds by
// kind rank. Returns -1, 0, or 1.
func orderCompare(a, b Value) int {
	if a.Kind == KindNull && b.Kind == KindNull {
		return 0
	}
	if a.Kind == KindNull {
		return 1
	}
	if b.Kind == KindNull {
		return -1
	}
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	ra, rb := kindRank(a.Kind), kindRank(b.Kind)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case KindString:
		return strings.Compare(a.Str, b.Str)
	case KindVertex:
		return compareUint64(a.Vertex.ID.Raw(), b.Vertex.ID.Raw())
	case KindEdge:
		return compareUint64(a.Edge.ID.Raw(), b.Edge.ID.Raw())
	}
	return 0
}

func kindRank(k ValueKind) int {
	switch k {
	case KindBool:
		return 0
	case KindInt, KindFloat:
		return 1
	case KindString:
		return 2
	case KindList:
		return 3
	case KindMap:
		return 4
	case KindVertex:
		return 5
	case KindEdge:
		return 6
	case KindPath:
		return 7
	}
	return 8
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// GroupKey serializes a value for use as an aggregation group key.
func (v Value) GroupKey() string {
	switch v.Kind {
	case KindNull:
		return "∅"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return "n:" + strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return "n:" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return "s:" + v.Str
	case KindVertex:
		return "v:" + v.Vertex.ID.String()
	case KindEdge:
		return "e:" + v.Edge.ID.String()
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.GroupKey()
		}
		return "l:[" + strings.Join(parts, ",") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.Map[k].GroupKey()
		}
		return "m:{" + strings.Join(parts, ",") + "}"
	}
	return "?"
}

// Display renders a value for human consumption (CLI output, tests).
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.Display()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Map[k].Display()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindVertex:
		return fmt.Sprintf("(:%s %s)", v.Vertex.Label, v.Vertex.ID)
	case KindEdge:
		return fmt.Sprintf("[:%s %s]", v.Edge.Label, v.Edge.ID)
	case KindPath:
		return fmt.Sprintf("path(%d edges)", v.Path.Len())
	}
	return "?"
}
