// Package cypher provides Cypher-subset parsing and execution for VanirDB.
//
// The executor consumes the AST and runs per-clause stages over row
// streams: MATCH produces rows of bindings, CREATE/DELETE/SET apply per-row
// effects inside one transaction, WITH and RETURN project. A failed write
// query rolls its transaction back; nothing partial ever reaches the store.
//
// Example:
//
//	exec := cypher.NewExecutor(engine)
//	result, err := exec.Execute(ctx,
//		"MATCH (p:Person) WHERE p.age >= 30 RETURN p.name ORDER BY p.name", nil)
//	for _, row := range result.Rows {
//		fmt.Println(row[0].Display())
//	}
package cypher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// Executor runs parsed queries against a storage engine.
type Executor struct {
	engine *storage.Engine
	parser *Parser
	log    zerolog.Logger
}

// NewExecutor creates an executor bound to a storage engine.
func NewExecutor(engine *storage.Engine) *Executor {
	return &Executor{
		engine: engine,
		parser: NewParser(),
		log:    zerolog.Nop(),
	}
}

// SetLogger attaches a logger; the default discards everything.
func (x *Executor) SetLogger(log zerolog.Logger) {
	x.log = log.With().Str("component", "cypher").Logger()
}

// Result is the outcome of a query: projected rows (for queries with a
// RETURN) plus mutation counters.
type Result struct {
	Columns []string
	Rows    [][]Value
	Stats   QueryStats
}

// QueryStats counts the mutations a query performed.
type QueryStats struct {
	VerticesCreated int
	EdgesCreated    int
	VerticesDeleted int
	EdgesDeleted    int
	PropertiesSet   int
}

// Execute parses and runs one query. Params are exposed to the query as
// $name references.
func (x *Executor) Execute(ctx context.Context, query string, params map[string]any) (*Result, error) {
	ast, err := x.parser.Parse(query)
	if err != nil {
		return nil, err
	}
	return x.ExecuteAST(ctx, ast, params)
}

// ExecuteAST runs an already-parsed query.
func (x *Executor) ExecuteAST(ctx context.Context, q *Query, params map[string]any) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := []Row{{}}
	var err error
	if q.Match != nil {
		rows, err = x.matchStage(q.Match, params)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{}

	if q.Create != nil || q.Delete != nil || q.Set != nil {
		tx := x.engine.Begin()
		rows, err = x.writeStages(tx, q, rows, params, &result.Stats)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		x.log.Debug().
			Int("vertices_created", result.Stats.VerticesCreated).
			Int("edges_created", result.Stats.EdgesCreated).
			Int("vertices_deleted", result.Stats.VerticesDeleted).
			Int("edges_deleted", result.Stats.EdgesDeleted).
			Int("properties_set", result.Stats.PropertiesSet).
			Msg("write query committed")
	}

	if q.With != nil {
		_, projected, err := x.project(rows, q.With.Items, q.With.OrderBy, q.With.Limit, q.With.Where, params)
		if err != nil {
			return nil, err
		}
		rows = make([]Row, len(projected))
		for i, pr := range projected {
			rows[i] = pr.bind
		}
	}

	if q.Return != nil {
		names, projected, err := x.project(rows, q.Return.Items, q.Return.OrderBy, q.Return.Limit, nil, params)
		if err != nil {
			return nil, err
		}
		result.Columns = names
		result.Rows = make([][]Value, len(projected))
		for i, pr := range projected {
			result.Rows[i] = pr.cells
		}
	}

	return result, nil
}

// writeStages applies CREATE, then DELETE, then SET to the driving rows,
// whatever order the clauses were written in, all inside the one
// transaction.
func (x *Executor) writeStages(tx *storage.Transaction, q *Query, rows []Row, params map[string]any, stats *QueryStats) ([]Row, error) {
	w := &writeState{
		tx:          tx,
		stats:       stats,
		deletedV:    make(map[storage.Graphid]struct{}),
		deletedE:    make(map[storage.Graphid]struct{}),
		updatedDocs: make(map[storage.Graphid]map[string]any),
	}

	var err error
	if q.Create != nil {
		rows, err = x.createStage(w, rows, q.Create, params)
		if err != nil {
			return nil, err
		}
	}
	if q.Delete != nil {
		if err := x.deleteStage(w, rows, q.Delete, params); err != nil {
			return nil, err
		}
	}
	if q.Set != nil {
		rows, err = x.setStage(w, rows, q.Set, params)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// writeState threads the transaction and bookkeeping through the write
// stages. The deleted sets make repeated targets across rows idempotent;
// updatedDocs carries each entity's latest document across rows so that a
// later row reads what an earlier row wrote.
type writeState struct {
	tx          *storage.Transaction
	stats       *QueryStats
	deletedV    map[storage.Graphid]struct{}
	deletedE    map[storage.Graphid]struct{}
	updatedDocs map[storage.Graphid]map[string]any
}

// createStage walks each pattern once, left to right. A node pattern whose
// variable is already bound reuses the bound vertex; every other node
// pattern creates exactly one vertex. The node following an edge is
// consumed by the edge hop, never visited a second time — walking node
// patterns independently of edges would double-create endpoints.
func (x *Executor) createStage(w *writeState, rows []Row, c *CreateClause, params map[string]any) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		r := row.Clone()
		for _, pat := range c.Patterns {
			prev, err := x.createNode(w, r, pat.Nodes[0], params)
			if err != nil {
				return nil, err
			}
			for i, ep := range pat.Edges {
				if ep.VarLength() {
					return nil, fmt.Errorf("%w: variable-length patterns in CREATE", ErrInvalidSyntax)
				}
				cur, err := x.createNode(w, r, pat.Nodes[i+1], params)
				if err != nil {
					return nil, err
				}
				var src, dst storage.Graphid
				switch ep.Direction {
				case DirOut:
					src, dst = prev.ID, cur.ID
				case DirIn:
					src, dst = cur.ID, prev.ID
				default:
					return nil, fmt.Errorf("%w: CREATE requires a directed edge", ErrInvalidSyntax)
				}
				props, err := evalPropsToDoc(ep.Properties, r, params)
				if err != nil {
					return nil, err
				}
				edge, err := w.tx.CreateEdge(ep.Label, src, dst, props)
				if err != nil {
					return nil, err
				}
				w.stats.EdgesCreated++
				if ep.Variable != "" {
					r[ep.Variable] = EdgeValue(edge)
				}
				prev = cur
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (x *Executor) createNode(w *writeState, row Row, np *NodePattern, params map[string]any) (*storage.Vertex, error) {
	if np.Variable != "" {
		if bound, ok := row[np.Variable]; ok {
			if bound.Kind != KindVertex {
				return nil, typeMismatch("vertex", bound)
			}
			return bound.Vertex, nil
		}
	}
	props, err := evalPropsToDoc(np.Properties, row, params)
	if err != nil {
		return nil, err
	}
	v, err := w.tx.CreateVertex(np.Label, props)
	if err != nil {
		return nil, err
	}
	w.stats.VerticesCreated++
	if np.Variable != "" {
		row[np.Variable] = VertexValue(v)
	}
	return v, nil
}

// evalPropsToDoc evaluates inline pattern properties into a JSON document.
func evalPropsToDoc(props map[string]Expression, row Row, params map[string]any) (map[string]any, error) {
	doc := make(map[string]any, len(props))
	ec := &evalContext{row: row, params: params}
	for key, expr := range props {
		v, err := ec.evaluate(expr)
		if err != nil {
			return nil, err
		}
		jv, err := v.ToJSON()
		if err != nil {
			return nil, err
		}
		doc[key] = jv
	}
	return doc, nil
}

// deleteStage evaluates each target per row and deletes. Plain delete of a
// vertex with remaining edges fails the whole transaction; DETACH DELETE
// removes incident edges first. Targets already deleted by an earlier row
// are skipped.
func (x *Executor) deleteStage(w *writeState, rows []Row, d *DeleteClause, params map[string]any) error {
	for _, row := range rows {
		for _, target := range d.Targets {
			ec := &evalContext{row: row, params: params}
			v, err := ec.evaluate(target)
			if err != nil {
				return err
			}
			switch v.Kind {
			case KindVertex:
				if err := x.deleteVertexTarget(w, v.Vertex.ID, d.Detach); err != nil {
					return err
				}
			case KindEdge:
				if err := x.deleteEdgeTarget(w, v.Edge.ID); err != nil {
					return err
				}
			case KindNull:
				// Deleting null is a no-op.
			default:
				return typeMismatch("vertex or edge", v)
			}
		}
	}
	return nil
}

func (x *Executor) deleteVertexTarget(w *writeState, id storage.Graphid, detach bool) error {
	if _, gone := w.deletedV[id]; gone {
		return nil
	}
	if detach {
		out, err := x.engine.GetOutgoingEdges(id)
		if err != nil {
			return err
		}
		in, err := x.engine.GetIncomingEdges(id)
		if err != nil {
			return err
		}
		for _, e := range append(out, in...) {
			if err := x.deleteEdgeTarget(w, e.ID); err != nil {
				return err
			}
		}
	}
	if err := w.tx.DeleteVertex(id); err != nil {
		return err
	}
	w.deletedV[id] = struct{}{}
	w.stats.VerticesDeleted++
	return nil
}

func (x *Executor) deleteEdgeTarget(w *writeState, id storage.Graphid) error {
	if _, gone := w.deletedE[id]; gone {
		return nil
	}
	if err := w.tx.DeleteEdge(id); err != nil {
		return err
	}
	w.deletedE[id] = struct{}{}
	w.stats.EdgesDeleted++
	return nil
}
