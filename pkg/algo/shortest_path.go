// Package algo - unit-weight shortest path.
package algo

import (
	"container/heap"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// ShortestPath finds a minimum-hop directed path from start to end using
// Dijkstra's algorithm with unit edge weights over the out-adjacency index.
//
// Returns the path and its cost in hops. start == end yields a zero-length
// path containing only that vertex. When end is unreachable the error is a
// *PathNotFoundError (errors.Is ErrPathNotFound).
//
// Ties are deterministic: heap entries order by (cost, raw id), so of two
// equally distant predecessors the one with the smaller identifier wins.
func ShortestPath(e *storage.Engine, start, end storage.Graphid) (*storage.Path, int, error) {
	startV, err := e.GetVertex(start)
	if err != nil {
		return nil, 0, err
	}
	if start == end {
		p, err := storage.NewPath([]*storage.Vertex{startV}, nil)
		if err != nil {
			return nil, 0, err
		}
		return p, 0, nil
	}
	if _, err := e.GetVertex(end); err != nil {
		return nil, 0, err
	}

	dist := map[storage.Graphid]int{start: 0}
	preds := make(map[storage.Graphid]predecessor)
	visited := make(map[storage.Graphid]struct{})

	pq := &nodeHeap{{id: start, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(heapNode)
		if _, done := visited[cur.id]; done {
			continue
		}
		visited[cur.id] = struct{}{}

		if cur.id == end {
			return reconstruct(e, start, end, preds, cur.cost)
		}

		edges, err := e.GetOutgoingEdges(cur.id)
		if err != nil {
			return nil, 0, err
		}
		for _, edge := range edges {
			next := edge.End
			if _, done := visited[next]; done {
				continue
			}
			cost := cur.cost + 1
			if prev, seen := dist[next]; !seen || cost < prev {
				dist[next] = cost
				preds[next] = predecessor{vertex: cur.id, edge: edge}
				heap.Push(pq, heapNode{id: next, cost: cost})
			}
		}
	}
	return nil, 0, &PathNotFoundError{Start: start, End: end}
}

// predecessor records, per reached vertex, the vertex and edge it was
// first reached through.
type predecessor struct {
	vertex storage.Graphid
	edge   *storage.Edge
}

// reconstruct back-walks the predecessor map from end to start.
func reconstruct(e *storage.Engine, start, end storage.Graphid, preds map[storage.Graphid]predecessor, cost int) (*storage.Path, int, error) {
	ids := []storage.Graphid{end}
	var edges []*storage.Edge
	cur := end
	for cur != start {
		p, ok := preds[cur]
		if !ok {
			return nil, 0, &PathNotFoundError{Start: start, End: end}
		}
		edges = append(edges, p.edge)
		cur = p.vertex
		ids = append(ids, cur)
	}

	// Reverse into start -> end order.
	vertices := make([]*storage.Vertex, len(ids))
	for i := range ids {
		v, err := e.GetVertex(ids[len(ids)-1-i])
		if err != nil {
			return nil, 0, err
		}
		vertices[i] = v
	}
	ordered := make([]*storage.Edge, len(edges))
	for i := range edges {
		ordered[i] = edges[len(edges)-1-i]
	}

	path, err := storage.NewPath(vertices, ordered)
	if err != nil {
		return nil, 0, err
	}
	return path, cost, nil
}

// heapNode orders by (cost, raw id) for deterministic tie-breaks.
type heapNode struct {
	id   storage.Graphid
	cost int
}

type nodeHeap []heapNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].id.Raw() < h[j].id.Raw()
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(heapNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
