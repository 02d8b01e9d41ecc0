package cypher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// evalString parses src as a WHERE expression and evaluates it against row.
func evalString(t *testing.T, src string, row Row, params map[string]any) (Value, error) {
	t.Helper()
	q, err := NewParser().Parse("MATCH (x) WHERE " + src + " RETURN x")
	require.NoError(t, err)
	ec := &evalContext{row: row, params: params}
	return ec.evaluate(q.Match.Where)
}

func mustEval(t *testing.T, src string, row Row) Value {
	t.Helper()
	v, err := evalString(t, src, row, nil)
	require.NoError(t, err)
	return v
}

func TestEval_Arithmetic(t *testing.T) {
	t.Run("integer_ops_stay_integer", func(t *testing.T) {
		assert.Equal(t, IntValue(7), mustEval(t, "1 + 2 * 3", nil))
		assert.Equal(t, IntValue(2), mustEval(t, "7 / 3", nil))
		assert.Equal(t, IntValue(1), mustEval(t, "7 % 3", nil))
		assert.Equal(t, IntValue(-5), mustEval(t, "-5", nil))
	})

	t.Run("mixed_promotes_to_float", func(t *testing.T) {
		assert.Equal(t, FloatValue(3.5), mustEval(t, "1 + 2.5", nil))
		assert.Equal(t, FloatValue(2.5), mustEval(t, "5 / 2.0", nil))
	})

	t.Run("string_concatenation", func(t *testing.T) {
		assert.Equal(t, StringValue("ab"), mustEval(t, "'a' + 'b'", nil))
	})

	t.Run("division_by_zero_fails", func(t *testing.T) {
		_, err := evalString(t, "1 / 0", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression)
		_, err = evalString(t, "1 % 0", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression)
		_, err = evalString(t, "1.0 / 0.0", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})

	t.Run("integer_overflow_fails", func(t *testing.T) {
		_, err := evalString(t, "9223372036854775807 + 1", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression)
		_, err = evalString(t, "9223372036854775807 * 2", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})

	t.Run("null_propagates", func(t *testing.T) {
		assert.Equal(t, KindNull, mustEval(t, "null + 1", nil).Kind)
	})

	t.Run("string_plus_number_is_type_mismatch", func(t *testing.T) {
		_, err := evalString(t, "'a' + 1", nil, nil)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestEval_Comparison(t *testing.T) {
	t.Run("numeric", func(t *testing.T) {
		assert.Equal(t, BoolValue(true), mustEval(t, "2 < 3", nil))
		assert.Equal(t, BoolValue(true), mustEval(t, "2 <= 2", nil))
		assert.Equal(t, BoolValue(true), mustEval(t, "2 = 2.0", nil))
		assert.Equal(t, BoolValue(false), mustEval(t, "2 > 3", nil))
		assert.Equal(t, BoolValue(true), mustEval(t, "2 <> 3", nil))
	})

	t.Run("string_lexicographic", func(t *testing.T) {
		assert.Equal(t, BoolValue(true), mustEval(t, "'abc' < 'abd'", nil))
		assert.Equal(t, BoolValue(true), mustEval(t, "'a' = 'a'", nil))
	})

	t.Run("null_comparison_yields_null", func(t *testing.T) {
		assert.Equal(t, KindNull, mustEval(t, "null = null", nil).Kind)
		assert.Equal(t, KindNull, mustEval(t, "1 < null", nil).Kind)
	})

	t.Run("mismatched_types_yield_null", func(t *testing.T) {
		assert.Equal(t, KindNull, mustEval(t, "1 < 'a'", nil).Kind)
		assert.Equal(t, KindNull, mustEval(t, "1 = 'a'", nil).Kind)
	})
}

func TestEval_Logical(t *testing.T) {
	t.Run("truthiness", func(t *testing.T) {
		assert.Equal(t, BoolValue(true), mustEval(t, "1 AND 'x'", nil))
		assert.Equal(t, BoolValue(false), mustEval(t, "0 OR ''", nil))
		assert.Equal(t, BoolValue(true), mustEval(t, "NOT null", nil))
		assert.Equal(t, BoolValue(false), mustEval(t, "NOT true", nil))
	})

	t.Run("null_is_falsy", func(t *testing.T) {
		assert.Equal(t, BoolValue(false), mustEval(t, "null AND true", nil))
		assert.Equal(t, BoolValue(true), mustEval(t, "null OR true", nil))
	})
}

func TestEval_PropertyAccess(t *testing.T) {
	vid, _ := storage.NewGraphid(1, 1)
	row := Row{"p": VertexValue(&storage.Vertex{
		ID:    vid,
		Label: "Person",
		Properties: map[string]any{
			"name": "Alice",
			"address": map[string]any{
				"city": "Oslo",
			},
		},
	})}

	t.Run("flat_property", func(t *testing.T) {
		assert.Equal(t, StringValue("Alice"), mustEval(t, "p.name", row))
	})

	t.Run("nested_property", func(t *testing.T) {
		assert.Equal(t, StringValue("Oslo"), mustEval(t, "p.address.city", row))
	})

	t.Run("missing_key_yields_null", func(t *testing.T) {
		assert.Equal(t, KindNull, mustEval(t, "p.missing", row).Kind)
		assert.Equal(t, KindNull, mustEval(t, "p.missing.deeper", row).Kind)
		assert.Equal(t, KindNull, mustEval(t, "p.name.deeper", row).Kind)
	})

	t.Run("unbound_variable_errors", func(t *testing.T) {
		_, err := evalString(t, "q.name", row, nil)
		assert.ErrorIs(t, err, ErrVariableNotFound)
	})

	t.Run("parameters_resolve", func(t *testing.T) {
		v, err := evalString(t, "$min + 1", row, map[string]any{"min": 41})
		require.NoError(t, err)
		assert.Equal(t, IntValue(42), v)
	})

	t.Run("missing_parameter_errors", func(t *testing.T) {
		_, err := evalString(t, "$nope", row, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})
}

func TestValue_ToJSON(t *testing.T) {
	t.Run("non_finite_float_rejected", func(t *testing.T) {
		_, err := FloatValue(math.Inf(1)).ToJSON()
		assert.ErrorIs(t, err, ErrInvalidExpression)
		_, err = FloatValue(math.NaN()).ToJSON()
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})

	t.Run("entities_not_storable", func(t *testing.T) {
		vid, _ := storage.NewGraphid(1, 1)
		_, err := VertexValue(&storage.Vertex{ID: vid}).ToJSON()
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}
