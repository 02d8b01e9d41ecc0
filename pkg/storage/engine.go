// Package storage - the storage engine.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orneryd/vanirdb/pkg/kv"
)

// Engine persists a labeled property graph in an ordered key-value store.
//
// The engine owns the label name <-> id mapping (cached in memory, persisted
// under the "l:" keys), allocates identifiers through per-label counters
// (the "c:" keys), and keeps both adjacency indexes in step with every edge
// write. All vertex and edge mutation goes through Transactions; the
// convenience methods on the engine itself open a single-operation
// transaction and commit it. GetOrCreateLabel writes the label map entry
// straight to the store.
//
// The engine is safe for concurrent readers. Writers must be serialized by
// the caller: counters are allocated from committed state, so two
// overlapping transactions on the same label would hand out the same local
// ids.
type Engine struct {
	store kv.Store
	graph string
	log   zerolog.Logger

	mu         sync.RWMutex
	labels     map[string]uint16
	labelNames map[uint16]string
	nextLabel  uint32
}

// NewEngine opens a storage engine over store, namespaced by graph. The
// persisted label map is loaded eagerly so that later lookups are pure cache
// hits.
func NewEngine(store kv.Store, graph string) (*Engine, error) {
	e := &Engine{
		store:      store,
		graph:      graph,
		log:        zerolog.Nop(),
		labels:     make(map[string]uint16),
		labelNames: make(map[uint16]string),
	}

	prefix := labelPrefix(graph)
	err := store.Scan(prefix, func(key, value []byte) error {
		name := labelName(key, len(prefix))
		id, err := decodeLabelID(value)
		if err != nil {
			return err
		}
		e.labels[name] = id
		e.labelNames[id] = name
		if uint32(id)+1 > e.nextLabel {
			e.nextLabel = uint32(id) + 1
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading label map: %w", err)
	}
	return e, nil
}

// SetLogger attaches a logger; the default discards everything.
func (e *Engine) SetLogger(log zerolog.Logger) {
	e.log = log.With().Str("component", "storage").Str("graph", e.graph).Logger()
}

// Graph returns the namespace this engine was opened with.
func (e *Engine) Graph() string {
	return e.graph
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	e.log.Debug().Msg("closing storage engine")
	return e.store.Close()
}

// GetOrCreateLabel resolves a label name to its 16-bit id, allocating and
// persisting a fresh id on first sight. Idempotent.
func (e *Engine) GetOrCreateLabel(name string) (uint16, error) {
	e.mu.RLock()
	id, ok := e.labels[name]
	e.mu.RUnlock()
	if ok {
		return id, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.labels[name]; ok {
		return id, nil
	}
	if e.nextLabel > uint32(MaxLabelID) {
		return 0, fmt.Errorf("%w: 16-bit label space exhausted", ErrCounterOverflow)
	}
	id = uint16(e.nextLabel)
	err := e.store.WriteBatch([]kv.Op{
		{Key: labelKey(e.graph, name), Value: encodeLabelID(id)},
	})
	if err != nil {
		return 0, fmt.Errorf("persisting label %q: %w", name, err)
	}
	e.labels[name] = id
	e.labelNames[id] = name
	e.nextLabel++
	e.log.Debug().Str("label", name).Uint16("labid", id).Msg("allocated label")
	return id, nil
}

// LookupLabel returns the id for a known label name.
func (e *Engine) LookupLabel(name string) (uint16, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.labels[name]
	return id, ok
}

// LabelName returns the name for a known label id.
func (e *Engine) LabelName(id uint16) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	name, ok := e.labelNames[id]
	return name, ok
}

// Labels returns all known label names.
func (e *Engine) Labels() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.labels))
	for name := range e.labels {
		out = append(out, name)
	}
	return out
}

// CounterValue returns the last allocated local id for a label, zero when
// nothing has been allocated yet.
func (e *Engine) CounterValue(label string) (uint64, error) {
	data, err := e.store.Get(counterKey(e.graph, label))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter for %q: %w", label, err)
	}
	return decodeCounter(data)
}

// GetVertex fetches a vertex record by id.
func (e *Engine) GetVertex(id Graphid) (*Vertex, error) {
	data, err := e.store.Get(vertexKey(e.graph, id))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVertexNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading vertex %s: %w", id, err)
	}
	return deserializeVertex(data)
}

// GetEdge fetches an edge record by id.
func (e *Engine) GetEdge(id Graphid) (*Edge, error) {
	data, err := e.store.Get(edgeKey(e.graph, id))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading edge %s: %w", id, err)
	}
	return deserializeEdge(data)
}

// ScanVertices returns every vertex carrying the given label. An unknown
// label yields an empty slice, not an error: callers routinely probe for
// data before any has been written.
func (e *Engine) ScanVertices(label string) ([]*Vertex, error) {
	labid, ok := e.LookupLabel(label)
	if !ok {
		return nil, nil
	}
	var out []*Vertex
	err := e.store.Scan(vertexLabelPrefix(e.graph, labid), func(_, value []byte) error {
		v, err := deserializeVertex(value)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning vertices %q: %w", label, err)
	}
	return out, nil
}

// ScanEdges returns every edge carrying the given label; unknown labels
// yield an empty slice.
func (e *Engine) ScanEdges(label string) ([]*Edge, error) {
	labid, ok := e.LookupLabel(label)
	if !ok {
		return nil, nil
	}
	var out []*Edge
	err := e.store.Scan(edgeLabelPrefix(e.graph, labid), func(_, value []byte) error {
		ed, err := deserializeEdge(value)
		if err != nil {
			return err
		}
		out = append(out, ed)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning edges %q: %w", label, err)
	}
	return out, nil
}

// GetOutgoingEdges returns the edges whose start vertex is vid.
func (e *Engine) GetOutgoingEdges(vid Graphid) ([]*Edge, error) {
	return e.adjacentEdges(outPrefix(e.graph, vid))
}

// GetIncomingEdges returns the edges whose end vertex is vid.
func (e *Engine) GetIncomingEdges(vid Graphid) ([]*Edge, error) {
	return e.adjacentEdges(inPrefix(e.graph, vid))
}

func (e *Engine) adjacentEdges(prefix []byte) ([]*Edge, error) {
	var ids []Graphid
	err := e.store.Scan(prefix, func(key, _ []byte) error {
		id, err := adjacencyEdgeID(key)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning adjacency: %w", err)
	}
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		ed, err := e.GetEdge(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ed)
	}
	return out, nil
}

// incidentEdgeIDs returns the ids of all edges touching vid, from both
// adjacency indexes. A self-loop appears once.
func (e *Engine) incidentEdgeIDs(vid Graphid) ([]Graphid, error) {
	seen := make(map[Graphid]struct{})
	var out []Graphid
	collect := func(key, _ []byte) error {
		id, err := adjacencyEdgeID(key)
		if err != nil {
			return err
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return nil
	}
	if err := e.store.Scan(outPrefix(e.graph, vid), collect); err != nil {
		return nil, fmt.Errorf("scanning out-adjacency: %w", err)
	}
	if err := e.store.Scan(inPrefix(e.graph, vid), collect); err != nil {
		return nil, fmt.Errorf("scanning in-adjacency: %w", err)
	}
	return out, nil
}

// CreateVertex allocates an id and persists a vertex in one transaction.
func (e *Engine) CreateVertex(label string, props map[string]any) (*Vertex, error) {
	tx := e.Begin()
	v, err := tx.CreateVertex(label, props)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateEdge allocates an id and persists a directed edge, with both
// adjacency entries, in one transaction.
func (e *Engine) CreateEdge(label string, src, dst Graphid, props map[string]any) (*Edge, error) {
	tx := e.Begin()
	ed, err := tx.CreateEdge(label, src, dst, props)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ed, nil
}

// UpdateVertex replaces a vertex's property document.
func (e *Engine) UpdateVertex(id Graphid, props map[string]any) (*Vertex, error) {
	tx := e.Begin()
	v, err := tx.UpdateVertex(id, props)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateEdge replaces an edge's property document.
func (e *Engine) UpdateEdge(id Graphid, props map[string]any) (*Edge, error) {
	tx := e.Begin()
	ed, err := tx.UpdateEdge(id, props)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ed, nil
}

// DeleteVertex removes a vertex. Fails with ErrVertexHasEdges while any
// incident edge remains; cascade is the executor's detach-delete.
func (e *Engine) DeleteVertex(id Graphid) error {
	tx := e.Begin()
	if err := tx.DeleteVertex(id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteEdge removes an edge and both of its adjacency entries.
func (e *Engine) DeleteEdge(id Graphid) error {
	tx := e.Begin()
	if err := tx.DeleteEdge(id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
