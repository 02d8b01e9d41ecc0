// Package algo - variable-length expansion and k-hop neighborhoods.
package algo

import (
	"fmt"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// ExpandOptions parameterizes VariableLengthExpand.
type ExpandOptions struct {
	// MinLength and MaxLength bound the lengths (in edges) that qualify a
	// path for the result. MinLength 0 includes the trivial path at the
	// start vertex.
	MinLength int
	MaxLength int

	// AllowCycles permits a path to revisit a vertex it already contains.
	// With AllowCycles false a self-loop is rejected outright: it revisits
	// the start vertex immediately.
	AllowCycles bool

	// MaxPaths caps the number of results; 0 means unbounded.
	MaxPaths int
}

func (o ExpandOptions) validate() error {
	if o.MinLength < 0 {
		return fmt.Errorf("%w: min length %d", ErrInvalidParameters, o.MinLength)
	}
	if o.MaxLength < o.MinLength {
		return fmt.Errorf("%w: max length %d below min length %d", ErrInvalidParameters, o.MaxLength, o.MinLength)
	}
	if o.MaxPaths < 0 {
		return fmt.Errorf("%w: max paths %d", ErrInvalidParameters, o.MaxPaths)
	}
	return nil
}

// VariableLengthExpand enumerates directed paths from start breadth-first.
// A path is emitted once its length is within [MinLength, MaxLength]; the
// frontier keeps expanding until MaxLength. Emission order is by length,
// then by storage order of the adjacency scans, so results are
// deterministic.
func VariableLengthExpand(e *storage.Engine, start storage.Graphid, opts ExpandOptions) ([]*storage.Path, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	startV, err := e.GetVertex(start)
	if err != nil {
		return nil, err
	}

	var results []*storage.Path
	capped := func() bool {
		return opts.MaxPaths > 0 && len(results) >= opts.MaxPaths
	}

	trivial := &storage.Path{Vertices: []*storage.Vertex{startV}}
	if opts.MinLength == 0 {
		results = append(results, trivial)
		if capped() {
			return results, nil
		}
	}

	queue := []*storage.Path{trivial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Len() >= opts.MaxLength {
			continue
		}

		last := cur.End()
		edges, err := e.GetOutgoingEdges(last.ID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if !opts.AllowCycles && pathContains(cur, edge.End) {
				continue
			}
			next, err := e.GetVertex(edge.End)
			if err != nil {
				return nil, err
			}
			extended := extendPath(cur, edge, next)
			if extended.Len() >= opts.MinLength {
				results = append(results, extended)
				if capped() {
					return results, nil
				}
			}
			queue = append(queue, extended)
		}
	}
	return results, nil
}

// KHopNeighbors returns the distinct endpoints of all directed paths of
// length exactly k from start.
func KHopNeighbors(e *storage.Engine, start storage.Graphid, k int) ([]*storage.Vertex, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: k = %d", ErrInvalidParameters, k)
	}
	paths, err := VariableLengthExpand(e, start, ExpandOptions{
		MinLength:   k,
		MaxLength:   k,
		AllowCycles: false,
	})
	if err != nil {
		return nil, err
	}
	return uniqueEndpoints(paths), nil
}

// NeighborsWithinKHops returns the distinct endpoints of all directed paths
// of length 1 through k from start.
func NeighborsWithinKHops(e *storage.Engine, start storage.Graphid, k int) ([]*storage.Vertex, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k = %d", ErrInvalidParameters, k)
	}
	paths, err := VariableLengthExpand(e, start, ExpandOptions{
		MinLength:   1,
		MaxLength:   k,
		AllowCycles: false,
	})
	if err != nil {
		return nil, err
	}
	return uniqueEndpoints(paths), nil
}

// PathsBetween runs the same expansion, keeping only paths that end at end.
// The MaxPaths cap applies to the kept paths.
func PathsBetween(e *storage.Engine, start, end storage.Graphid, opts ExpandOptions) ([]*storage.Path, error) {
	inner := opts
	inner.MaxPaths = 0 // cap applies after the endpoint filter
	paths, err := VariableLengthExpand(e, start, inner)
	if err != nil {
		return nil, err
	}
	var out []*storage.Path
	for _, p := range paths {
		if p.End().ID != end {
			continue
		}
		out = append(out, p)
		if opts.MaxPaths > 0 && len(out) >= opts.MaxPaths {
			break
		}
	}
	return out, nil
}

func pathContains(p *storage.Path, id storage.Graphid) bool {
	for _, v := range p.Vertices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// extendPath copies the path one step longer; partial paths in the queue
// must not share backing arrays, or one branch's growth clobbers another's.
func extendPath(p *storage.Path, edge *storage.Edge, next *storage.Vertex) *storage.Path {
	vertices := make([]*storage.Vertex, len(p.Vertices)+1)
	copy(vertices, p.Vertices)
	vertices[len(p.Vertices)] = next

	edges := make([]*storage.Edge, len(p.Edges)+1)
	copy(edges, p.Edges)
	edges[len(p.Edges)] = edge

	return &storage.Path{Vertices: vertices, Edges: edges}
}

func uniqueEndpoints(paths []*storage.Path) []*storage.Vertex {
	seen := make(map[storage.Graphid]struct{})
	var out []*storage.Vertex
	for _, p := range paths {
		end := p.End()
		if _, dup := seen[end.ID]; dup {
			continue
		}
		seen[end.ID] = struct{}{}
		out = append(out, end)
	}
	return out
}
