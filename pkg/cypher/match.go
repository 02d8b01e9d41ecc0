// Package cypher - MATCH stage.
//
// Patterns are matched left to right: candidates for the first node come
// from a label scan (or the row's existing binding), and each subsequent
// (edge, node) pair expands through the adjacency indexes. Variable-length
// edge patterns are lowered onto the expansion algorithm.
package cypher

import (
	"fmt"

	"github.com/orneryd/vanirdb/pkg/algo"
	"github.com/orneryd/vanirdb/pkg/storage"
)

func (x *Executor) matchStage(m *MatchClause, params map[string]any) ([]Row, error) {
	rows := []Row{{}}
	for _, pat := range m.Patterns {
		if len(pat.Nodes) != len(pat.Edges)+1 {
			return nil, fmt.Errorf("%w: malformed pattern", ErrInvalidSyntax)
		}
		var next []Row
		for _, row := range rows {
			expanded, err := x.matchPattern(row, pat, params)
			if err != nil {
				return nil, err
			}
			next = append(next, expanded...)
		}
		rows = next
	}

	if m.Where != nil {
		return filterRows(rows, m.Where, params)
	}
	return rows, nil
}

// filterRows keeps the rows whose WHERE expression is truthy. A null
// comparison result is falsy, so mismatched-type comparisons drop the row
// rather than erroring.
func filterRows(rows []Row, where Expression, params map[string]any) ([]Row, error) {
	out := rows[:0:0]
	for _, row := range rows {
		ec := &evalContext{row: row, params: params}
		v, err := ec.evaluate(where)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			out = append(out, row)
		}
	}
	return out, nil
}

func (x *Executor) matchPattern(row Row, pat *Pattern, params map[string]any) ([]Row, error) {
	first := pat.Nodes[0]
	candidates, err := x.nodeCandidates(row, first, params)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, v := range candidates {
		r := row.Clone()
		if first.Variable != "" {
			r[first.Variable] = VertexValue(v)
		}
		expanded, err := x.expandHops(r, v, pat, 0, params)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// nodeCandidates yields the start vertices for a pattern's first node: the
// row's existing binding when the variable is already bound, otherwise a
// label scan (all labels when the pattern names none).
func (x *Executor) nodeCandidates(row Row, np *NodePattern, params map[string]any) ([]*storage.Vertex, error) {
	if np.Variable != "" {
		if bound, ok := row[np.Variable]; ok {
			if bound.Kind != KindVertex {
				return nil, typeMismatch("vertex", bound)
			}
			ok, err := x.nodeMatches(bound.Vertex, np, row, params)
			if err != nil || !ok {
				return nil, err
			}
			return []*storage.Vertex{bound.Vertex}, nil
		}
	}

	if np.Label != "" {
		vs, err := x.engine.ScanVertices(np.Label)
		if err != nil {
			return nil, err
		}
		return x.filterVertices(vs, np, row, params)
	}

	var all []*storage.Vertex
	for _, label := range x.engine.Labels() {
		vs, err := x.engine.ScanVertices(label)
		if err != nil {
			return nil, err
		}
		all = append(all, vs...)
	}
	return x.filterVertices(all, np, row, params)
}

func (x *Executor) filterVertices(vs []*storage.Vertex, np *NodePattern, row Row, params map[string]any) ([]*storage.Vertex, error) {
	out := vs[:0:0]
	for _, v := range vs {
		ok, err := x.nodeMatches(v, np, row, params)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// expandHops walks the pattern's remaining (edge, node) pairs from cur.
func (x *Executor) expandHops(row Row, cur *storage.Vertex, pat *Pattern, hop int, params map[string]any) ([]Row, error) {
	if hop == len(pat.Edges) {
		return []Row{row}, nil
	}
	ep := pat.Edges[hop]
	np := pat.Nodes[hop+1]

	if ep.VarLength() {
		return x.expandVarLength(row, cur, ep, np, pat, hop, params)
	}

	incident, err := x.incidentForDirection(cur.ID, ep.Direction)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, hit := range incident {
		ok, err := x.edgeMatches(hit.edge, ep, row, params)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if ep.Variable != "" {
			if bound, exists := row[ep.Variable]; exists {
				if bound.Kind != KindEdge || bound.Edge.ID != hit.edge.ID {
					continue
				}
			}
		}

		opp, err := x.engine.GetVertex(hit.opposite)
		if err != nil {
			return nil, err
		}
		if np.Variable != "" {
			if bound, exists := row[np.Variable]; exists {
				if bound.Kind != KindVertex || bound.Vertex.ID != opp.ID {
					continue
				}
			}
		}
		ok, err = x.nodeMatches(opp, np, row, params)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		r := row.Clone()
		if ep.Variable != "" {
			r[ep.Variable] = EdgeValue(hit.edge)
		}
		if np.Variable != "" {
			r[np.Variable] = VertexValue(opp)
		}
		expanded, err := x.expandHops(r, opp, pat, hop+1, params)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// expandVarLength lowers a [*min..max] edge pattern onto the traversal
// algorithm. Only outgoing variable-length patterns are supported; the
// expansion walks the out-adjacency index. The edge variable, when named,
// binds the list of traversed edges.
func (x *Executor) expandVarLength(row Row, cur *storage.Vertex, ep *EdgePattern, np *NodePattern, pat *Pattern, hop int, params map[string]any) ([]Row, error) {
	if ep.Direction != DirOut {
		return nil, fmt.Errorf("%w: variable-length patterns must be directed left to right", ErrUnsupportedOperation)
	}
	paths, err := algo.VariableLengthExpand(x.engine, cur.ID, algo.ExpandOptions{
		MinLength:   *ep.MinHops,
		MaxLength:   *ep.MaxHops,
		AllowCycles: false,
	})
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, p := range paths {
		match := true
		for _, e := range p.Edges {
			ok, err := x.edgeMatches(e, ep, row, params)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		end := p.End()
		ok, err := x.nodeMatches(end, np, row, params)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if np.Variable != "" {
			if bound, exists := row[np.Variable]; exists {
				if bound.Kind != KindVertex || bound.Vertex.ID != end.ID {
					continue
				}
			}
		}

		r := row.Clone()
		if ep.Variable != "" {
			edges := make([]Value, len(p.Edges))
			for i, e := range p.Edges {
				edges[i] = EdgeValue(e)
			}
			r[ep.Variable] = ListValue(edges)
		}
		if np.Variable != "" {
			r[np.Variable] = VertexValue(end)
		}
		expanded, err := x.expandHops(r, end, pat, hop+1, params)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// adjacencyHit pairs an incident edge with the vertex on its far side.
type adjacencyHit struct {
	edge     *storage.Edge
	opposite storage.Graphid
}

func (x *Executor) incidentForDirection(vid storage.Graphid, dir Direction) ([]adjacencyHit, error) {
	var hits []adjacencyHit
	seen := make(map[storage.Graphid]struct{})

	if dir == DirOut || dir == DirBoth {
		edges, err := x.engine.GetOutgoingEdges(vid)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			seen[e.ID] = struct{}{}
			hits = append(hits, adjacencyHit{edge: e, opposite: e.End})
		}
	}
	if dir == DirIn || dir == DirBoth {
		edges, err := x.engine.GetIncomingEdges(vid)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			// A self-loop shows up in both indexes; one hit is enough.
			if _, dup := seen[e.ID]; dup && dir == DirBoth {
				continue
			}
			hits = append(hits, adjacencyHit{edge: e, opposite: e.Start})
		}
	}
	return hits, nil
}

func (x *Executor) nodeMatches(v *storage.Vertex, np *NodePattern, row Row, params map[string]any) (bool, error) {
	if np.Label != "" && v.Label != np.Label {
		return false, nil
	}
	return propsMatch(v.Properties, np.Properties, row, params)
}

func (x *Executor) edgeMatches(e *storage.Edge, ep *EdgePattern, row Row, params map[string]any) (bool, error) {
	if ep.Label != "" && e.Label != ep.Label {
		return false, nil
	}
	return propsMatch(e.Properties, ep.Properties, row, params)
}

// propsMatch checks that every inline pattern property equals the
// corresponding entry in the entity's document. A key the entity lacks
// fails the match.
func propsMatch(doc map[string]any, constraints map[string]Expression, row Row, params map[string]any) (bool, error) {
	for key, expr := range constraints {
		ec := &evalContext{row: row, params: params}
		want, err := ec.evaluate(expr)
		if err != nil {
			return false, err
		}
		raw, ok := doc[key]
		if !ok {
			return false, nil
		}
		if !FromJSON(raw).Equals(want) {
			return false, nil
		}
	}
	return true, nil
}
