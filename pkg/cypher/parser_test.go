package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Run("two_char_operators_before_one_char", func(t *testing.T) {
		toks, err := tokenize("a <= b >= c <> d != e")
		require.NoError(t, err)
		var types []TokenType
		for _, tok := range toks {
			types = append(types, tok.Type)
		}
		assert.Equal(t, []TokenType{
			tokIdent, tokLte, tokIdent, tokGte, tokIdent,
			tokNeq, tokIdent, tokNeq, tokIdent, tokEOF,
		}, types)
	})

	t.Run("arrows", func(t *testing.T) {
		toks, err := tokenize("-[r]->")
		require.NoError(t, err)
		assert.Equal(t, tokMinus, toks[0].Type)
		assert.Equal(t, tokLBrack, toks[1].Type)
		assert.Equal(t, tokIdent, toks[2].Type)
		assert.Equal(t, tokRBrack, toks[3].Type)
		assert.Equal(t, tokArrowOut, toks[4].Type)
	})

	t.Run("string_escapes", func(t *testing.T) {
		toks, err := tokenize(`'it\'s a \\ test\n'`)
		require.NoError(t, err)
		assert.Equal(t, "it's a \\ test\n", toks[0].Text)
	})

	t.Run("unterminated_string_rejected", func(t *testing.T) {
		_, err := tokenize("'no end")
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("numbers", func(t *testing.T) {
		toks, err := tokenize("42 3.25 1..3")
		require.NoError(t, err)
		assert.Equal(t, tokInt, toks[0].Type)
		assert.Equal(t, tokFloat, toks[1].Type)
		assert.Equal(t, "3.25", toks[1].Text)
		assert.Equal(t, tokInt, toks[2].Type)
		assert.Equal(t, tokDotDot, toks[3].Type)
		assert.Equal(t, tokInt, toks[4].Type)
	})

	t.Run("positions_are_byte_offsets", func(t *testing.T) {
		toks, err := tokenize("ab cd")
		require.NoError(t, err)
		assert.Equal(t, 0, toks[0].Pos)
		assert.Equal(t, 3, toks[1].Pos)
	})
}

func TestParser_Shapes(t *testing.T) {
	p := NewParser()

	t.Run("match_return", func(t *testing.T) {
		q, err := p.Parse("MATCH (n:Person) RETURN n")
		require.NoError(t, err)
		assert.Equal(t, QueryRead, q.Kind)
		require.NotNil(t, q.Match)
		require.Len(t, q.Match.Patterns, 1)
		pat := q.Match.Patterns[0]
		require.Len(t, pat.Nodes, 1)
		assert.Equal(t, "n", pat.Nodes[0].Variable)
		assert.Equal(t, "Person", pat.Nodes[0].Label)
		require.NotNil(t, q.Return)
		require.Len(t, q.Return.Items, 1)
	})

	t.Run("keywords_are_case_insensitive", func(t *testing.T) {
		q, err := p.Parse("match (n:Person) return n")
		require.NoError(t, err)
		assert.NotNil(t, q.Match)
		assert.NotNil(t, q.Return)
	})

	t.Run("triple_pattern", func(t *testing.T) {
		q, err := p.Parse("MATCH (a:A)-[r:R]->(b:B) RETURN a, r, b")
		require.NoError(t, err)
		pat := q.Match.Patterns[0]
		require.Len(t, pat.Nodes, 2)
		require.Len(t, pat.Edges, 1)
		assert.Equal(t, DirOut, pat.Edges[0].Direction)
		assert.Equal(t, "r", pat.Edges[0].Variable)
		assert.Equal(t, "R", pat.Edges[0].Label)
	})

	t.Run("reversed_and_undirected_edges", func(t *testing.T) {
		q, err := p.Parse("MATCH (a)<-[:R]-(b), (c)-[:S]-(d) RETURN a")
		require.NoError(t, err)
		assert.Equal(t, DirIn, q.Match.Patterns[0].Edges[0].Direction)
		assert.Equal(t, DirBoth, q.Match.Patterns[1].Edges[0].Direction)
	})

	t.Run("variable_length_pattern", func(t *testing.T) {
		q, err := p.Parse("MATCH (a)-[:R*1..3]->(b) RETURN b")
		require.NoError(t, err)
		ep := q.Match.Patterns[0].Edges[0]
		require.True(t, ep.VarLength())
		assert.Equal(t, 1, *ep.MinHops)
		assert.Equal(t, 3, *ep.MaxHops)
	})

	t.Run("inline_properties", func(t *testing.T) {
		q, err := p.Parse("MATCH (n:Person {name: 'Alice', age: 30}) RETURN n")
		require.NoError(t, err)
		props := q.Match.Patterns[0].Nodes[0].Properties
		require.Len(t, props, 2)
		assert.Equal(t, "Alice", props["name"].(*Literal).Value)
		assert.Equal(t, int64(30), props["age"].(*Literal).Value)
	})

	t.Run("create_standalone", func(t *testing.T) {
		q, err := p.Parse("CREATE (a:P {x: 1})-[:K]->(b:P)")
		require.NoError(t, err)
		assert.Equal(t, QueryWrite, q.Kind)
		require.NotNil(t, q.Create)
	})

	t.Run("mixed_match_create", func(t *testing.T) {
		q, err := p.Parse("MATCH (a:P) CREATE (a)-[:K]->(b:P) RETURN b")
		require.NoError(t, err)
		assert.Equal(t, QueryMixed, q.Kind)
	})

	t.Run("detach_delete", func(t *testing.T) {
		q, err := p.Parse("MATCH (n:P) DETACH DELETE n")
		require.NoError(t, err)
		require.NotNil(t, q.Delete)
		assert.True(t, q.Delete.Detach)
		require.Len(t, q.Delete.Targets, 1)
	})

	t.Run("set_with_nested_path", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P) SET p.address.city = 'Beijing'")
		require.NoError(t, err)
		require.Len(t, q.Set.Items, 1)
		target := q.Set.Items[0].Target
		assert.Equal(t, "p", target.Base)
		assert.Equal(t, []string{"address", "city"}, target.Path)
	})

	t.Run("with_clause", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P) WITH p.age AS age WHERE age > 10 RETURN age")
		require.NoError(t, err)
		assert.Equal(t, QueryWith, q.Kind)
		require.NotNil(t, q.With)
		assert.Equal(t, "age", q.With.Items[0].Alias)
		assert.NotNil(t, q.With.Where)
	})

	t.Run("order_by_asc_desc", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P) RETURN p.name ORDER BY p.age DESC, p.name ASC LIMIT 5")
		require.NoError(t, err)
		require.Len(t, q.Return.OrderBy, 2)
		assert.True(t, q.Return.OrderBy[0].Desc)
		assert.False(t, q.Return.OrderBy[1].Desc)
		require.NotNil(t, q.Return.Limit)
		assert.Equal(t, int64(5), *q.Return.Limit)
	})

	t.Run("property_path_keeps_base_and_chain", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P) WHERE p.address.city.zone = 'x' RETURN p")
		require.NoError(t, err)
		cmp := q.Match.Where.(*BinaryOp)
		pa := cmp.Left.(*PropertyAccess)
		assert.Equal(t, "p", pa.Base)
		assert.Equal(t, []string{"address", "city", "zone"}, pa.Path)
	})

	t.Run("parameters", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P {name: $name}) WHERE p.age > $min RETURN p")
		require.NoError(t, err)
		param := q.Match.Patterns[0].Nodes[0].Properties["name"].(*Parameter)
		assert.Equal(t, "name", param.Name)
	})

	t.Run("count_star", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P) RETURN count(*)")
		require.NoError(t, err)
		fc := q.Return.Items[0].Expr.(*FunctionCall)
		assert.Equal(t, "count", fc.Name)
		assert.True(t, fc.Star)
	})

	t.Run("operator_precedence", func(t *testing.T) {
		q, err := p.Parse("MATCH (p:P) WHERE p.a + 1 * 2 > 3 AND NOT p.b = 4 RETURN p")
		require.NoError(t, err)
		and := q.Match.Where.(*BinaryOp)
		assert.Equal(t, "AND", and.Op)
		gt := and.Left.(*BinaryOp)
		assert.Equal(t, ">", gt.Op)
		plus := gt.Left.(*BinaryOp)
		assert.Equal(t, "+", plus.Op)
		mul := plus.Right.(*BinaryOp)
		assert.Equal(t, "*", mul.Op)
		not := and.Right.(*UnaryOp)
		assert.Equal(t, "NOT", not.Op)
	})
}

func TestParser_Rejects(t *testing.T) {
	p := NewParser()

	parseErrors := []string{
		"",
		"MATCH ()-[]-",
		"MATCH (p:P) WHERE p.age > ",
		"MATCH (p:P RETURN p",
		"MATCH (p:P) RETURN p extra garbage",
		"MATCH (p:P) SET p. = 1",
		"MATCH (p:P) RETURN p LIMIT abc",
		"MATCH (p:P) ORDER p RETURN p",
		"CREATE (p:P {name: 'unterminated)",
	}
	for _, src := range parseErrors {
		t.Run("rejects_"+src, func(t *testing.T) {
			_, err := p.Parse(src)
			require.Error(t, err, "query %q", src)
		})
	}

	t.Run("parse_error_carries_position", func(t *testing.T) {
		_, err := p.Parse("MATCH (p:P) RETURN p !!")
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Greater(t, pe.Pos, 0)
	})

	t.Run("set_without_match_is_invalid", func(t *testing.T) {
		_, err := p.Parse("SET p.x = 1")
		assert.ErrorIs(t, err, ErrInvalidSyntax)
	})

	t.Run("delete_without_match_is_invalid", func(t *testing.T) {
		_, err := p.Parse("DELETE p")
		assert.ErrorIs(t, err, ErrInvalidSyntax)
	})

	t.Run("set_target_without_property_is_invalid", func(t *testing.T) {
		_, err := p.Parse("MATCH (p:P) SET p = 1")
		assert.ErrorIs(t, err, ErrInvalidSyntax)
	})
}
