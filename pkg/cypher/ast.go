// Package cypher - abstract syntax tree.
package cypher

// QueryKind discriminates the top-level shape of a parsed query.
type QueryKind int

const (
	// QueryRead is MATCH ... RETURN with no mutation.
	QueryRead QueryKind = iota
	// QueryWrite is a CREATE with no driving MATCH.
	QueryWrite
	// QueryMixed combines a MATCH with one or more write clauses.
	QueryMixed
	// QueryWith is a read query routed through a WITH projection.
	QueryWith
)

// Query is a parsed single-statement Cypher query. Clause pointers are nil
// when the clause is absent.
type Query struct {
	Kind   QueryKind
	Match  *MatchClause
	Create *CreateClause
	Delete *DeleteClause
	Set    *SetClause
	With   *WithClause
	Return *ReturnClause
}

// MatchClause is MATCH pattern (, pattern)* [WHERE expr].
type MatchClause struct {
	Patterns []*Pattern
	Where    Expression
}

// CreateClause is CREATE pattern (, pattern)*.
type CreateClause struct {
	Patterns []*Pattern
}

// DeleteClause is [DETACH] DELETE expr (, expr)*.
type DeleteClause struct {
	Detach  bool
	Targets []Expression
}

// SetClause is SET item (, item)*.
type SetClause struct {
	Items []SetItem
}

// SetItem assigns the value of an expression to a (possibly nested)
// property of a bound entity.
type SetItem struct {
	Target *PropertyAccess
	Value  Expression
}

// WithClause projects rows mid-query; later clauses see only the projected
// bindings.
type WithClause struct {
	Items   []ProjectionItem
	Where   Expression
	OrderBy []OrderItem
	Limit   *int64
}

// ReturnClause is the final projection.
type ReturnClause struct {
	Items   []ProjectionItem
	OrderBy []OrderItem
	Limit   *int64
}

// ProjectionItem is one expression in a WITH or RETURN list. Text preserves
// the source fragment for use as the column name when no alias is given.
type ProjectionItem struct {
	Expr  Expression
	Alias string
	Text  string
}

// OrderItem is one ORDER BY key. Desc is only true for an explicit DESC
// token; ASC and the default sort ascending.
type OrderItem struct {
	Expr Expression
	Desc bool
}

// Direction of an edge pattern relative to its left node.
type Direction int

const (
	DirOut Direction = iota // -[..]->
	DirIn                   // <-[..]-
	DirBoth                 // -[..]-
)

// Pattern is a linear node/edge chain: len(Nodes) == len(Edges)+1.
type Pattern struct {
	Nodes []*NodePattern
	Edges []*EdgePattern
}

// NodePattern is ( [var] [:Label] [{props}] ). Inline properties are
// equality constraints on match and initial values on create.
type NodePattern struct {
	Variable   string
	Label      string
	Properties map[string]Expression
}

// EdgePattern is -[var? :Label? *min..max? props?]-> (or reversed, or
// undirected). MinHops/MaxHops are set only for variable-length patterns,
// which the MATCH stage lowers onto the expansion algorithm.
type EdgePattern struct {
	Variable   string
	Label      string
	Direction  Direction
	Properties map[string]Expression
	MinHops    *int
	MaxHops    *int
}

// VarLength reports whether this is a variable-length pattern.
func (ep *EdgePattern) VarLength() bool {
	return ep.MinHops != nil || ep.MaxHops != nil
}

// Expression is the closed union of value expressions.
type Expression interface{ exprNode() }

// Literal is an integer, float, string, boolean, or null literal. Value is
// one of int64, float64, string, bool, or nil.
type Literal struct {
	Value any
}

// Variable references a row binding.
type Variable struct {
	Name string
}

// Parameter is $name, resolved from the parameter map at evaluation time.
type Parameter struct {
	Name string
}

// PropertyAccess is base.k1.k2...: a base variable plus an ordered lookup
// chain into the entity's property document.
type PropertyAccess struct {
	Base string
	Path []string
}

// FunctionCall is name(args...). Star marks count(*).
type FunctionCall struct {
	Name string
	Args []Expression
	Star bool
}

// BinaryOp applies Op ("+", "-", "*", "/", "%", "=", "<>", "<", ">", "<=",
// ">=", "AND", "OR") to two operands.
type BinaryOp struct {
	Op    string
	Left  Expression
	Right Expression
}

// UnaryOp applies Op ("NOT", "-") to one operand.
type UnaryOp struct {
	Op      string
	Operand Expression
}

func (*Literal) exprNode()        {}
func (*Variable) exprNode()       {}
func (*Parameter) exprNode()      {}
func (*PropertyAccess) exprNode() {}
func (*FunctionCall) exprNode()   {}
func (*BinaryOp) exprNode()       {}
func (*UnaryOp) exprNode()        {}
