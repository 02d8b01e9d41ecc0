// Package cypher - recursive-descent parser for the supported subset.
//
// Grammar (keywords case-insensitive):
//
//	query  := [MATCH patterns [WHERE expr]]
//	          [CREATE patterns] [[DETACH] DELETE exprs] [SET items]
//	          [WITH items [WHERE expr] [ORDER BY ...] [LIMIT n]]
//	          [RETURN items [ORDER BY ...] [LIMIT n]]
//
// Statements with trailing unparsed tokens are rejected.
package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser turns Cypher text into a Query AST.
type Parser struct{}

// NewParser creates a parser. Parsers are stateless and safe to share.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses one statement. Returns *ParseError for syntax violations and
// ErrInvalidSyntax-wrapped errors for semantic ones.
func (p *Parser) Parse(src string) (*Query, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	ps := &parseState{src: src, toks: toks}
	return ps.parseQuery()
}

type parseState struct {
	src  string
	toks []Token
	pos  int
}

func (ps *parseState) cur() Token  { return ps.toks[ps.pos] }
func (ps *parseState) next() Token { t := ps.toks[ps.pos]; ps.pos++; return t }

func (ps *parseState) expect(tt TokenType, what string) (Token, error) {
	t := ps.cur()
	if t.Type != tt {
		return t, parseErrorf(t.Pos, "expected %s", what)
	}
	ps.pos++
	return t, nil
}

func (ps *parseState) atKeyword(kw string) bool {
	return ps.cur().isKeyword(kw)
}

func (ps *parseState) acceptKeyword(kw string) bool {
	if ps.atKeyword(kw) {
		ps.pos++
		return true
	}
	return false
}

// clauseKeywords cannot begin an expression; hitting one there means the
// expression is missing.
var clauseKeywords = map[string]bool{
	"MATCH": true, "CREATE": true, "DELETE": true, "DETACH": true,
	"SET": true, "WHERE": true, "WITH": true, "RETURN": true,
	"ORDER": true, "BY": true, "LIMIT": true, "AS": true,
	"AND": true, "OR": true, "ASC": true, "DESC": true,
}

func (ps *parseState) parseQuery() (*Query, error) {
	q := &Query{}

	if ps.cur().Type == tokEOF {
		return nil, parseErrorf(0, "empty query")
	}

	if ps.acceptKeyword("MATCH") {
		m, err := ps.parseMatchBody()
		if err != nil {
			return nil, err
		}
		q.Match = m
	}

	for {
		switch {
		case ps.atKeyword("CREATE"):
			if q.Create != nil {
				return nil, parseErrorf(ps.cur().Pos, "duplicate CREATE clause")
			}
			ps.pos++
			patterns, err := ps.parsePatterns()
			if err != nil {
				return nil, err
			}
			q.Create = &CreateClause{Patterns: patterns}
			continue
		case ps.atKeyword("DETACH"), ps.atKeyword("DELETE"):
			if q.Delete != nil {
				return nil, parseErrorf(ps.cur().Pos, "duplicate DELETE clause")
			}
			d, err := ps.parseDelete()
			if err != nil {
				return nil, err
			}
			if q.Match == nil {
				return nil, fmt.Errorf("%w: DELETE requires a preceding MATCH", ErrInvalidSyntax)
			}
			q.Delete = d
			continue
		case ps.atKeyword("SET"):
			if q.Set != nil {
				return nil, parseErrorf(ps.cur().Pos, "duplicate SET clause")
			}
			ps.pos++
			s, err := ps.parseSet()
			if err != nil {
				return nil, err
			}
			if q.Match == nil {
				return nil, fmt.Errorf("%w: SET requires a preceding MATCH", ErrInvalidSyntax)
			}
			q.Set = s
			continue
		}
		break
	}

	if ps.atKeyword("WITH") {
		if q.Create != nil || q.Delete != nil || q.Set != nil {
			return nil, fmt.Errorf("%w: WITH cannot be combined with write clauses", ErrInvalidSyntax)
		}
		ps.pos++
		w, err := ps.parseWith()
		if err != nil {
			return nil, err
		}
		q.With = w
	}

	if ps.acceptKeyword("RETURN") {
		r, err := ps.parseReturn()
		if err != nil {
			return nil, err
		}
		q.Return = r
	}

	if t := ps.cur(); t.Type != tokEOF {
		return nil, parseErrorf(t.Pos, "unexpected trailing input %q", t.Text)
	}

	if q.Match == nil && q.Create == nil && q.Return == nil {
		return nil, parseErrorf(0, "query has no clauses")
	}

	switch {
	case q.Create != nil || q.Delete != nil || q.Set != nil:
		if q.Match != nil {
			q.Kind = QueryMixed
		} else {
			q.Kind = QueryWrite
		}
	case q.With != nil:
		q.Kind = QueryWith
	default:
		q.Kind = QueryRead
	}
	return q, nil
}

func (ps *parseState) parseMatchBody() (*MatchClause, error) {
	patterns, err := ps.parsePatterns()
	if err != nil {
		return nil, err
	}
	m := &MatchClause{Patterns: patterns}
	if ps.acceptKeyword("WHERE") {
		m.Where, err = ps.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (ps *parseState) parsePatterns() ([]*Pattern, error) {
	var out []*Pattern
	for {
		pat, err := ps.parsePattern()
		if err != nil {
			return nil, err
		}
		out = append(out, pat)
		if ps.cur().Type != tokComma {
			break
		}
		ps.pos++
	}
	return out, nil
}

func (ps *parseState) parsePattern() (*Pattern, error) {
	node, err := ps.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pat := &Pattern{Nodes: []*NodePattern{node}}
	for ps.cur().Type == tokMinus || ps.cur().Type == tokArrowIn {
		edge, err := ps.parseEdgePattern()
		if err != nil {
			return nil, err
		}
		next, err := ps.parseNodePattern()
		if err != nil {
			return nil, err
		}
		pat.Edges = append(pat.Edges, edge)
		pat.Nodes = append(pat.Nodes, next)
	}
	return pat, nil
}

func (ps *parseState) parseNodePattern() (*NodePattern, error) {
	if _, err := ps.expect(tokLParen, "'(' opening a node pattern"); err != nil {
		return nil, err
	}
	np := &NodePattern{}
	if t := ps.cur(); t.Type == tokIdent && !clauseKeywords[strings.ToUpper(t.Text)] {
		np.Variable = t.Text
		ps.pos++
	}
	if ps.cur().Type == tokColon {
		ps.pos++
		t, err := ps.expect(tokIdent, "label name after ':'")
		if err != nil {
			return nil, err
		}
		np.Label = t.Text
	}
	if ps.cur().Type == tokLBrace {
		props, err := ps.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		np.Properties = props
	}
	if _, err := ps.expect(tokRParen, "')' closing node pattern"); err != nil {
		return nil, err
	}
	return np, nil
}

func (ps *parseState) parseEdgePattern() (*EdgePattern, error) {
	ep := &EdgePattern{}
	switch ps.cur().Type {
	case tokArrowIn: // <-[..]-
		ps.pos++
		if err := ps.parseEdgeBody(ep); err != nil {
			return nil, err
		}
		if _, err := ps.expect(tokMinus, "'-' after edge pattern"); err != nil {
			return nil, err
		}
		ep.Direction = DirIn
	case tokMinus: // -[..]-> or -[..]-
		ps.pos++
		if err := ps.parseEdgeBody(ep); err != nil {
			return nil, err
		}
		switch ps.cur().Type {
		case tokArrowOut:
			ps.pos++
			ep.Direction = DirOut
		case tokMinus:
			ps.pos++
			ep.Direction = DirBoth
		default:
			return nil, parseErrorf(ps.cur().Pos, "expected '->' or '-' after edge pattern")
		}
	default:
		return nil, parseErrorf(ps.cur().Pos, "expected edge pattern")
	}
	return ep, nil
}

func (ps *parseState) parseEdgeBody(ep *EdgePattern) error {
	if _, err := ps.expect(tokLBrack, "'[' opening edge pattern"); err != nil {
		return err
	}
	if t := ps.cur(); t.Type == tokIdent {
		ep.Variable = t.Text
		ps.pos++
	}
	if ps.cur().Type == tokColon {
		ps.pos++
		t, err := ps.expect(tokIdent, "relationship label after ':'")
		if err != nil {
			return err
		}
		ep.Label = t.Text
	}
	if ps.cur().Type == tokStar {
		ps.pos++
		min, max := 1, defaultMaxHops
		if t := ps.cur(); t.Type == tokInt {
			n, err := strconv.Atoi(t.Text)
			if err != nil {
				return parseErrorf(t.Pos, "bad hop count %q", t.Text)
			}
			min, max = n, n
			ps.pos++
		}
		if ps.cur().Type == tokDotDot {
			ps.pos++
			max = defaultMaxHops
			if t := ps.cur(); t.Type == tokInt {
				n, err := strconv.Atoi(t.Text)
				if err != nil {
					return parseErrorf(t.Pos, "bad hop count %q", t.Text)
				}
				max = n
				ps.pos++
			}
		}
		ep.MinHops = &min
		ep.MaxHops = &max
	}
	if ps.cur().Type == tokLBrace {
		props, err := ps.parsePropertyMap()
		if err != nil {
			return err
		}
		ep.Properties = props
	}
	if _, err := ps.expect(tokRBrack, "']' closing edge pattern"); err != nil {
		return err
	}
	return nil
}

// defaultMaxHops bounds a variable-length pattern written without an upper
// bound, such as [*] or [*2..].
const defaultMaxHops = 10

func (ps *parseState) parsePropertyMap() (map[string]Expression, error) {
	if _, err := ps.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	props := make(map[string]Expression)
	if ps.cur().Type == tokRBrace {
		ps.pos++
		return props, nil
	}
	for {
		key, err := ps.expect(tokIdent, "property key")
		if err != nil {
			return nil, err
		}
		if _, err := ps.expect(tokColon, "':' after property key"); err != nil {
			return nil, err
		}
		val, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		props[key.Text] = val
		if ps.cur().Type == tokComma {
			ps.pos++
			continue
		}
		break
	}
	if _, err := ps.expect(tokRBrace, "'}' closing property map"); err != nil {
		return nil, err
	}
	return props, nil
}

func (ps *parseState) parseDelete() (*DeleteClause, error) {
	d := &DeleteClause{}
	if ps.acceptKeyword("DETACH") {
		d.Detach = true
	}
	if !ps.acceptKeyword("DELETE") {
		return nil, parseErrorf(ps.cur().Pos, "expected DELETE")
	}
	for {
		expr, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		d.Targets = append(d.Targets, expr)
		if ps.cur().Type == tokComma {
			ps.pos++
			continue
		}
		break
	}
	return d, nil
}

func (ps *parseState) parseSet() (*SetClause, error) {
	s := &SetClause{}
	for {
		base, err := ps.expect(tokIdent, "variable in SET target")
		if err != nil {
			return nil, err
		}
		if ps.cur().Type != tokDot {
			return nil, fmt.Errorf("%w: SET target %q has no property path", ErrInvalidSyntax, base.Text)
		}
		target := &PropertyAccess{Base: base.Text}
		for ps.cur().Type == tokDot {
			ps.pos++
			key, err := ps.expect(tokIdent, "property name after '.'")
			if err != nil {
				return nil, err
			}
			target.Path = append(target.Path, key.Text)
		}
		if _, err := ps.expect(tokEq, "'=' in SET item"); err != nil {
			return nil, err
		}
		value, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		s.Items = append(s.Items, SetItem{Target: target, Value: value})
		if ps.cur().Type == tokComma {
			ps.pos++
			continue
		}
		break
	}
	return s, nil
}

func (ps *parseState) parseWith() (*WithClause, error) {
	items, err := ps.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	w := &WithClause{Items: items}
	if ps.acceptKeyword("WHERE") {
		w.Where, err = ps.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	w.OrderBy, err = ps.parseOrderBy()
	if err != nil {
		return nil, err
	}
	w.Limit, err = ps.parseLimit()
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (ps *parseState) parseReturn() (*ReturnClause, error) {
	items, err := ps.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	r := &ReturnClause{Items: items}
	r.OrderBy, err = ps.parseOrderBy()
	if err != nil {
		return nil, err
	}
	r.Limit, err = ps.parseLimit()
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (ps *parseState) parseProjectionItems() ([]ProjectionItem, error) {
	var items []ProjectionItem
	for {
		start := ps.cur().Pos
		expr, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		item := ProjectionItem{
			Expr: expr,
			Text: strings.TrimSpace(ps.src[start:ps.cur().Pos]),
		}
		if ps.acceptKeyword("AS") {
			alias, err := ps.expect(tokIdent, "alias after AS")
			if err != nil {
				return nil, err
			}
			item.Alias = alias.Text
			item.Text = strings.TrimSpace(ps.src[start:ps.cur().Pos])
		}
		items = append(items, item)
		if ps.cur().Type == tokComma {
			ps.pos++
			continue
		}
		break
	}
	return items, nil
}

func (ps *parseState) parseOrderBy() ([]OrderItem, error) {
	if !ps.atKeyword("ORDER") {
		return nil, nil
	}
	ps.pos++
	if !ps.acceptKeyword("BY") {
		return nil, parseErrorf(ps.cur().Pos, "expected BY after ORDER")
	}
	var items []OrderItem
	for {
		expr, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: expr}
		// ASC and DESC are explicit tokens; dropping them silently would
		// invert nothing and surprise everyone.
		if ps.acceptKeyword("DESC") {
			item.Desc = true
		} else {
			ps.acceptKeyword("ASC")
		}
		items = append(items, item)
		if ps.cur().Type == tokComma {
			ps.pos++
			continue
		}
		break
	}
	return items, nil
}

func (ps *parseState) parseLimit() (*int64, error) {
	if !ps.acceptKeyword("LIMIT") {
		return nil, nil
	}
	t, err := ps.expect(tokInt, "integer after LIMIT")
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil {
		return nil, parseErrorf(t.Pos, "bad LIMIT %q", t.Text)
	}
	return &n, nil
}

// Expression parsing, lowest precedence first: OR, AND, NOT, comparison,
// additive, multiplicative, unary minus, primary.

func (ps *parseState) parseExpression() (Expression, error) {
	return ps.parseOr()
}

func (ps *parseState) parseOr() (Expression, error) {
	left, err := ps.parseAnd()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("OR") {
		right, err := ps.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseAnd() (Expression, error) {
	left, err := ps.parseNot()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("AND") {
		right, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseNot() (Expression, error) {
	if ps.acceptKeyword("NOT") {
		operand, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "NOT", Operand: operand}, nil
	}
	return ps.parseComparison()
}

func (ps *parseState) parseComparison() (Expression, error) {
	left, err := ps.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch ps.cur().Type {
		case tokEq:
			op = "="
		case tokNeq:
			op = "<>"
		case tokLt:
			op = "<"
		case tokGt:
			op = ">"
		case tokLte:
			op = "<="
		case tokGte:
			op = ">="
		default:
			return left, nil
		}
		ps.pos++
		right, err := ps.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (ps *parseState) parseAdditive() (Expression, error) {
	left, err := ps.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch ps.cur().Type {
		case tokPlus:
			op = "+"
		case tokMinus:
			op = "-"
		default:
			return left, nil
		}
		ps.pos++
		right, err := ps.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (ps *parseState) parseMultiplicative() (Expression, error) {
	left, err := ps.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch ps.cur().Type {
		case tokStar:
			op = "*"
		case tokSlash:
			op = "/"
		case tokPercent:
			op = "%"
		default:
			return left, nil
		}
		ps.pos++
		right, err := ps.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (ps *parseState) parseUnary() (Expression, error) {
	if ps.cur().Type == tokMinus {
		ps.pos++
		operand, err := ps.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "-", Operand: operand}, nil
	}
	return ps.parsePrimary()
}

func (ps *parseState) parsePrimary() (Expression, error) {
	t := ps.cur()
	switch t.Type {
	case tokInt:
		ps.pos++
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, parseErrorf(t.Pos, "bad integer literal %q", t.Text)
		}
		return &Literal{Value: n}, nil

	case tokFloat:
		ps.pos++
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, parseErrorf(t.Pos, "bad float literal %q", t.Text)
		}
		return &Literal{Value: f}, nil

	case tokString:
		ps.pos++
		return &Literal{Value: t.Text}, nil

	case tokParam:
		ps.pos++
		return &Parameter{Name: t.Text}, nil

	case tokLParen:
		ps.pos++
		inner, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := ps.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		upper := strings.ToUpper(t.Text)
		switch upper {
		case "TRUE":
			ps.pos++
			return &Literal{Value: true}, nil
		case "FALSE":
			ps.pos++
			return &Literal{Value: false}, nil
		case "NULL":
			ps.pos++
			return &Literal{Value: nil}, nil
		}
		if clauseKeywords[upper] {
			return nil, parseErrorf(t.Pos, "expected expression")
		}
		ps.pos++

		if ps.cur().Type == tokLParen {
			return ps.parseCallArgs(t.Text)
		}

		if ps.cur().Type == tokDot {
			// Property path: keep the base variable and the ordered lookup
			// chain apart; flattening them loses the nesting structure.
			pa := &PropertyAccess{Base: t.Text}
			for ps.cur().Type == tokDot {
				ps.pos++
				key, err := ps.expect(tokIdent, "property name after '.'")
				if err != nil {
					return nil, err
				}
				pa.Path = append(pa.Path, key.Text)
			}
			return pa, nil
		}
		return &Variable{Name: t.Text}, nil
	}
	return nil, parseErrorf(t.Pos, "expected expression")
}

func (ps *parseState) parseCallArgs(name string) (Expression, error) {
	ps.pos++ // consume '('
	fc := &FunctionCall{Name: strings.ToLower(name)}
	if ps.cur().Type == tokStar {
		ps.pos++
		fc.Star = true
		if _, err := ps.expect(tokRParen, "')' after *"); err != nil {
			return nil, err
		}
		return fc, nil
	}
	if ps.cur().Type == tokRParen {
		ps.pos++
		return fc, nil
	}
	for {
		arg, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		fc.Args = append(fc.Args, arg)
		if ps.cur().Type == tokComma {
			ps.pos++
			continue
		}
		break
	}
	if _, err := ps.expect(tokRParen, "')' closing argument list"); err != nil {
		return nil, err
	}
	return fc, nil
}
