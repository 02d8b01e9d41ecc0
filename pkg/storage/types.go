// Package storage provides the persistent graph layer of VanirDB: vertices
// and edges over an ordered key-value store, label and identifier
// allocation, bidirectional adjacency indexes, and atomic transactions.
//
// Design principles:
//   - Labeled property graph model (labels are classes, properties are JSON)
//   - Entities refer to each other by Graphid, never by pointer
//   - The KV backend is pluggable behind the kv.Store contract
//   - Single-writer transactions with buffered, atomic commit
//
// Example:
//
//	store := kv.NewMemoryStore()
//	engine, _ := storage.NewEngine(store, "default")
//
//	alice, _ := engine.CreateVertex("Person", map[string]any{"name": "Alice"})
//	bob, _ := engine.CreateVertex("Person", map[string]any{"name": "Bob"})
//	engine.CreateEdge("KNOWS", alice.ID, bob.ID, nil)
//
//	people, _ := engine.ScanVertices("Person")
package storage

import (
	"encoding/json"
	"fmt"
)

// Vertex is a graph node: an identifier, a label naming its class, and an
// open JSON property document.
type Vertex struct {
	ID         Graphid        `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Edge is a directed relationship between two vertices. Self-loops are
// permitted. For every persisted edge both adjacency index entries exist in
// the store; the engine writes and removes them in the same batch as the
// record itself.
type Edge struct {
	ID         Graphid        `json:"id"`
	Start      Graphid        `json:"start"`
	End        Graphid        `json:"end"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Path is an alternating vertex/edge sequence through the graph.
//
// Invariants: len(Vertices) == len(Edges)+1, and every edge connects its
// neighboring vertices. A path built by NewPath is directed: Edges[i] runs
// Vertices[i] -> Vertices[i+1]. Reverse flips the traversal order; the
// reversed form satisfies the mirrored continuity (Edges[i] runs
// Vertices[i+1] -> Vertices[i]) and Validate accepts either orientation as
// long as it is uniform.
type Path struct {
	Vertices []*Vertex `json:"vertices"`
	Edges    []*Edge   `json:"edges"`
}

// NewPath constructs a path and validates its continuity.
func NewPath(vertices []*Vertex, edges []*Edge) (*Path, error) {
	p := &Path{Vertices: vertices, Edges: edges}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the path length in edges.
func (p *Path) Len() int {
	return len(p.Edges)
}

// Start returns the first vertex, or nil for an empty path.
func (p *Path) Start() *Vertex {
	if len(p.Vertices) == 0 {
		return nil
	}
	return p.Vertices[0]
}

// End returns the last vertex, or nil for an empty path.
func (p *Path) End() *Vertex {
	if len(p.Vertices) == 0 {
		return nil
	}
	return p.Vertices[len(p.Vertices)-1]
}

// Validate checks the path invariants: the vertex/edge counts line up and
// every edge connects its neighbors in one uniform orientation.
func (p *Path) Validate() error {
	if len(p.Vertices) == 0 {
		return fmt.Errorf("%w: no vertices", ErrInvalidPath)
	}
	if len(p.Vertices) != len(p.Edges)+1 {
		return fmt.Errorf("%w: %d vertices with %d edges", ErrInvalidPath, len(p.Vertices), len(p.Edges))
	}
	forward, backward := true, true
	for i, e := range p.Edges {
		if e.Start != p.Vertices[i].ID || e.End != p.Vertices[i+1].ID {
			forward = false
		}
		if e.End != p.Vertices[i].ID || e.Start != p.Vertices[i+1].ID {
			backward = false
		}
	}
	if !forward && !backward {
		return fmt.Errorf("%w: discontinuous edge sequence", ErrInvalidPath)
	}
	return nil
}

// Reverse returns a new path with vertices and edges in the opposite order.
// The underlying records are shared, not copied.
func (p *Path) Reverse() *Path {
	rv := make([]*Vertex, len(p.Vertices))
	for i, v := range p.Vertices {
		rv[len(p.Vertices)-1-i] = v
	}
	re := make([]*Edge, len(p.Edges))
	for i, e := range p.Edges {
		re[len(p.Edges)-1-i] = e
	}
	return &Path{Vertices: rv, Edges: re}
}

func serializeVertex(v *Vertex) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: vertex %s: %v", ErrSerialization, v.ID, err)
	}
	return data, nil
}

func deserializeVertex(data []byte) (*Vertex, error) {
	var v Vertex
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: vertex record: %v", ErrSerialization, err)
	}
	if v.Properties == nil {
		v.Properties = make(map[string]any)
	}
	return &v, nil
}

func serializeEdge(e *Edge) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: edge %s: %v", ErrSerialization, e.ID, err)
	}
	return data, nil
}

func deserializeEdge(data []byte) (*Edge, error) {
	var e Edge
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: edge record: %v", ErrSerialization, err)
	}
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return &e, nil
}
