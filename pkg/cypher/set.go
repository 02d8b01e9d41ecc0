// Package cypher - SET stage.
//
// SET items are grouped per target entity for each row: the document is
// read once, every modification for the row is applied in memory, and the
// result is written back once. Issuing a read-modify-write per item would
// lose all but the last change, because buffered transaction writes are not
// visible to subsequent reads.
package cypher

import (
	"fmt"

	"github.com/orneryd/vanirdb/pkg/storage"
)

func (x *Executor) setStage(w *writeState, rows []Row, s *SetClause, params map[string]any) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		r := row.Clone()
		if err := x.applySetRow(w, r, s, params); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// setGroup collects the items of one row that target the same entity.
type setGroup struct {
	base  string
	items []SetItem
}

func (x *Executor) applySetRow(w *writeState, row Row, s *SetClause, params map[string]any) error {
	// Group items by base variable, preserving first-appearance order.
	var groups []*setGroup
	index := make(map[string]*setGroup)
	for _, item := range s.Items {
		g, ok := index[item.Target.Base]
		if !ok {
			g = &setGroup{base: item.Target.Base}
			index[item.Target.Base] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, item)
	}

	for _, g := range groups {
		bound, ok := row[g.base]
		if !ok {
			return fmt.Errorf("%w: %s", ErrVariableNotFound, g.base)
		}

		switch bound.Kind {
		case KindVertex:
			v := bound.Vertex
			doc := w.currentDoc(v.ID, v.Properties)
			if err := x.applySetItems(row, g, v.ID, v.Label, true, doc, params, w); err != nil {
				return err
			}
			updated, err := w.tx.UpdateVertex(v.ID, w.updatedDocs[v.ID])
			if err != nil {
				return err
			}
			row[g.base] = VertexValue(updated)

		case KindEdge:
			e := bound.Edge
			doc := w.currentDoc(e.ID, e.Properties)
			if err := x.applySetItems(row, g, e.ID, e.Label, false, doc, params, w); err != nil {
				return err
			}
			updated, err := w.tx.UpdateEdge(e.ID, w.updatedDocs[e.ID])
			if err != nil {
				return err
			}
			row[g.base] = EdgeValue(updated)

		default:
			return typeMismatch("vertex or edge", bound)
		}
	}
	return nil
}

// currentDoc returns the entity's latest property document: the one an
// earlier row already modified in this transaction, or a copy of the
// committed document.
func (w *writeState) currentDoc(id storage.Graphid, committed map[string]any) map[string]any {
	if doc, ok := w.updatedDocs[id]; ok {
		return doc
	}
	return copyDoc(committed)
}

// applySetItems evaluates every item of the group against the row-start
// view of the entity, then applies all modifications to a fresh copy of the
// document.
func (x *Executor) applySetItems(row Row, g *setGroup, id storage.Graphid, label string, isVertex bool, doc map[string]any, params map[string]any, w *writeState) error {
	// Value expressions see the document as it stood at the start of this
	// row, so "SET c.value = c.value + 5, c.other = c.value" reads the same
	// c.value in both items.
	evalRow := row.Clone()
	if isVertex {
		evalRow[g.base] = VertexValue(&storage.Vertex{ID: id, Label: label, Properties: doc})
	} else {
		bound := row[g.base].Edge
		evalRow[g.base] = EdgeValue(&storage.Edge{
			ID: id, Start: bound.Start, End: bound.End, Label: label, Properties: doc,
		})
	}

	newDoc := copyDoc(doc)
	for _, item := range g.items {
		ec := &evalContext{row: evalRow, params: params}
		v, err := ec.evaluate(item.Value)
		if err != nil {
			return err
		}
		jv, err := v.ToJSON()
		if err != nil {
			return err
		}
		setNested(newDoc, item.Target.Path, jv)
		w.stats.PropertiesSet++
	}
	w.updatedDocs[id] = newDoc
	return nil
}

// setNested writes val at the nested path, creating intermediate objects as
// needed. "p.address.city" lands in properties["address"]["city"], not in a
// flat "address.city" key. An intermediate that exists with a non-object
// value is replaced by an object.
func setNested(doc map[string]any, path []string, val any) {
	cur := doc
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = val
}

// copyDoc deep-copies a property document.
func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyDocValue(v)
	}
	return out
}

func copyDocValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyDoc(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = copyDocValue(item)
		}
		return out
	}
	return v
}
