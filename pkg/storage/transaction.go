// Package storage - buffered single-writer transactions.
//
// A transaction buffers every put and delete in an in-memory operation list
// and folds the list, together with any label-map and counter updates, into
// one atomic batch at commit. Reads performed while the transaction is open
// observe committed state only; the transaction tracks its own pending
// entities just enough to keep identifier allocation and the edge/vertex
// invariants consistent within itself.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/orneryd/vanirdb/pkg/kv"
)

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	TxActive     TxStatus = "active"
	TxCommitted  TxStatus = "committed"
	TxRolledBack TxStatus = "rolled_back"
)

// Transaction is an atomic unit of graph mutation. It is single-use: after
// Commit or Rollback every method fails with ErrTransactionClosed.
//
// Not safe for concurrent use by multiple goroutines, and the engine-wide
// single-writer rule applies: overlapping transactions may allocate
// overlapping identifier ranges because counters are seeded from committed
// state.
type Transaction struct {
	// ID correlates log lines across the transaction's lifetime.
	ID string

	engine *Engine

	mu     sync.Mutex
	status TxStatus
	ops    []kv.Op

	// Labels allocated by this transaction, invisible until commit.
	newLabels map[string]uint16
	nextLabel uint32
	seeded    bool

	// Per-label counters: last allocated local id, seeded lazily from the
	// store, written once at commit.
	counters map[string]uint64
	dirty    map[string]struct{}

	// Pending entity states, used for existence and adjacency checks within
	// the transaction. Reads through the engine still see committed state.
	pendingVertices map[Graphid]*Vertex
	pendingEdges    map[Graphid]*Edge
	deletedVertices map[Graphid]struct{}
	deletedEdges    map[Graphid]struct{}
}

// Begin opens a new transaction against the engine.
func (e *Engine) Begin() *Transaction {
	return &Transaction{
		ID:              uuid.NewString(),
		engine:          e,
		status:          TxActive,
		newLabels:       make(map[string]uint16),
		counters:        make(map[string]uint64),
		dirty:           make(map[string]struct{}),
		pendingVertices: make(map[Graphid]*Vertex),
		pendingEdges:    make(map[Graphid]*Edge),
		deletedVertices: make(map[Graphid]struct{}),
		deletedEdges:    make(map[Graphid]struct{}),
	}
}

// Status reports the transaction's lifecycle state.
func (tx *Transaction) Status() TxStatus {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

func (tx *Transaction) labelID(name string) (uint16, error) {
	if id, ok := tx.engine.LookupLabel(name); ok {
		return id, nil
	}
	if id, ok := tx.newLabels[name]; ok {
		return id, nil
	}
	if !tx.seeded {
		tx.engine.mu.RLock()
		tx.nextLabel = tx.engine.nextLabel
		tx.engine.mu.RUnlock()
		tx.seeded = true
	}
	if tx.nextLabel > uint32(MaxLabelID) {
		return 0, fmt.Errorf("%w: 16-bit label space exhausted", ErrCounterOverflow)
	}
	id := uint16(tx.nextLabel)
	tx.nextLabel++
	tx.newLabels[name] = id
	return id, nil
}

func (tx *Transaction) nextLocalID(label string) (uint64, error) {
	last, ok := tx.counters[label]
	if !ok {
		var err error
		last, err = tx.engine.CounterValue(label)
		if err != nil {
			return 0, err
		}
	}
	if last >= MaxLocalID {
		return 0, fmt.Errorf("%w: label %q", ErrCounterOverflow, label)
	}
	next := last + 1
	tx.counters[label] = next
	tx.dirty[label] = struct{}{}
	return next, nil
}

// vertexExists consults pending state first, then committed state.
func (tx *Transaction) vertexExists(id Graphid) (bool, error) {
	if _, ok := tx.pendingVertices[id]; ok {
		return true, nil
	}
	if _, ok := tx.deletedVertices[id]; ok {
		return false, nil
	}
	_, err := tx.engine.GetVertex(id)
	if errors.Is(err, ErrVertexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateVertex allocates a fresh Graphid under the label and buffers the
// vertex record.
func (tx *Transaction) CreateVertex(label string, props map[string]any) (*Vertex, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return nil, ErrTransactionClosed
	}

	labid, err := tx.labelID(label)
	if err != nil {
		return nil, err
	}
	locid, err := tx.nextLocalID(label)
	if err != nil {
		return nil, err
	}
	id, err := NewGraphid(labid, locid)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = make(map[string]any)
	}
	v := &Vertex{ID: id, Label: label, Properties: props}

	data, err := serializeVertex(v)
	if err != nil {
		return nil, err
	}
	tx.ops = append(tx.ops, kv.Op{Key: vertexKey(tx.engine.graph, id), Value: data})
	tx.pendingVertices[id] = v
	delete(tx.deletedVertices, id)
	return v, nil
}

// CreateEdge allocates a fresh Graphid and buffers the edge record together
// with both adjacency entries. Both endpoints must exist, either committed
// or created earlier in this transaction.
func (tx *Transaction) CreateEdge(label string, src, dst Graphid, props map[string]any) (*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return nil, ErrTransactionClosed
	}

	for _, endpoint := range []Graphid{src, dst} {
		ok, err := tx.vertexExists(endpoint)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: edge endpoint %s", ErrVertexNotFound, endpoint)
		}
	}

	labid, err := tx.labelID(label)
	if err != nil {
		return nil, err
	}
	locid, err := tx.nextLocalID(label)
	if err != nil {
		return nil, err
	}
	id, err := NewGraphid(labid, locid)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = make(map[string]any)
	}
	ed := &Edge{ID: id, Start: src, End: dst, Label: label, Properties: props}

	data, err := serializeEdge(ed)
	if err != nil {
		return nil, err
	}
	graph := tx.engine.graph
	tx.ops = append(tx.ops,
		kv.Op{Key: edgeKey(graph, id), Value: data},
		kv.Op{Key: outKey(graph, src, id), Value: []byte{}},
		kv.Op{Key: inKey(graph, dst, id), Value: []byte{}},
	)
	tx.pendingEdges[id] = ed
	delete(tx.deletedEdges, id)
	return ed, nil
}

// UpdateVertex replaces the property document of an existing vertex.
func (tx *Transaction) UpdateVertex(id Graphid, props map[string]any) (*Vertex, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return nil, ErrTransactionClosed
	}

	cur, err := tx.resolveVertex(id)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = make(map[string]any)
	}
	v := &Vertex{ID: cur.ID, Label: cur.Label, Properties: props}
	data, err := serializeVertex(v)
	if err != nil {
		return nil, err
	}
	tx.ops = append(tx.ops, kv.Op{Key: vertexKey(tx.engine.graph, id), Value: data})
	tx.pendingVertices[id] = v
	return v, nil
}

// UpdateEdge replaces the property document of an existing edge.
func (tx *Transaction) UpdateEdge(id Graphid, props map[string]any) (*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return nil, ErrTransactionClosed
	}

	cur, err := tx.resolveEdge(id)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = make(map[string]any)
	}
	ed := &Edge{ID: cur.ID, Start: cur.Start, End: cur.End, Label: cur.Label, Properties: props}
	data, err := serializeEdge(ed)
	if err != nil {
		return nil, err
	}
	tx.ops = append(tx.ops, kv.Op{Key: edgeKey(tx.engine.graph, id), Value: data})
	tx.pendingEdges[id] = ed
	return ed, nil
}

// DeleteVertex buffers removal of a vertex. Fails with ErrVertexHasEdges
// while any incident edge remains undeleted; deleting the edges first in the
// same transaction satisfies the check.
func (tx *Transaction) DeleteVertex(id Graphid) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return ErrTransactionClosed
	}

	if _, err := tx.resolveVertex(id); err != nil {
		return err
	}

	incident, err := tx.engine.incidentEdgeIDs(id)
	if err != nil {
		return err
	}
	remaining := 0
	for _, eid := range incident {
		if _, gone := tx.deletedEdges[eid]; !gone {
			remaining++
		}
	}
	for eid, ed := range tx.pendingEdges {
		if _, gone := tx.deletedEdges[eid]; gone {
			continue
		}
		if ed.Start == id || ed.End == id {
			remaining++
		}
	}
	if remaining > 0 {
		return fmt.Errorf("%w: vertex %s has %d incident edge(s)", ErrVertexHasEdges, id, remaining)
	}

	tx.ops = append(tx.ops, kv.Op{Key: vertexKey(tx.engine.graph, id), Delete: true})
	tx.deletedVertices[id] = struct{}{}
	delete(tx.pendingVertices, id)
	return nil
}

// DeleteEdge buffers removal of an edge record and both adjacency entries.
func (tx *Transaction) DeleteEdge(id Graphid) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return ErrTransactionClosed
	}

	ed, err := tx.resolveEdge(id)
	if err != nil {
		return err
	}
	graph := tx.engine.graph
	tx.ops = append(tx.ops,
		kv.Op{Key: edgeKey(graph, id), Delete: true},
		kv.Op{Key: outKey(graph, ed.Start, id), Delete: true},
		kv.Op{Key: inKey(graph, ed.End, id), Delete: true},
	)
	tx.deletedEdges[id] = struct{}{}
	delete(tx.pendingEdges, id)
	return nil
}

func (tx *Transaction) resolveVertex(id Graphid) (*Vertex, error) {
	if v, ok := tx.pendingVertices[id]; ok {
		return v, nil
	}
	if _, gone := tx.deletedVertices[id]; gone {
		return nil, fmt.Errorf("%w: %s", ErrVertexNotFound, id)
	}
	return tx.engine.GetVertex(id)
}

func (tx *Transaction) resolveEdge(id Graphid) (*Edge, error) {
	if ed, ok := tx.pendingEdges[id]; ok {
		return ed, nil
	}
	if _, gone := tx.deletedEdges[id]; gone {
		return nil, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	return tx.engine.GetEdge(id)
}

// Commit folds the buffered operations, new label mappings, and final
// counter values into one atomic batch and submits it. The transaction is
// closed afterwards regardless of outcome; a failed commit leaves the store
// untouched.
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return ErrTransactionClosed
	}

	graph := tx.engine.graph
	batch := make([]kv.Op, 0, len(tx.ops)+len(tx.newLabels)+len(tx.dirty))
	for name, id := range tx.newLabels {
		batch = append(batch, kv.Op{Key: labelKey(graph, name), Value: encodeLabelID(id)})
	}
	batch = append(batch, tx.ops...)
	for label := range tx.dirty {
		batch = append(batch, kv.Op{Key: counterKey(graph, label), Value: encodeCounter(tx.counters[label])})
	}

	if err := tx.engine.store.WriteBatch(batch); err != nil {
		tx.status = TxRolledBack
		return fmt.Errorf("committing transaction %s: %w", tx.ID, err)
	}

	if len(tx.newLabels) > 0 {
		tx.engine.mu.Lock()
		for name, id := range tx.newLabels {
			tx.engine.labels[name] = id
			tx.engine.labelNames[id] = name
			if uint32(id)+1 > tx.engine.nextLabel {
				tx.engine.nextLabel = uint32(id) + 1
			}
		}
		tx.engine.mu.Unlock()
	}

	tx.status = TxCommitted
	tx.engine.log.Debug().
		Str("tx", tx.ID).
		Int("ops", len(batch)).
		Msg("transaction committed")
	return nil
}

// Rollback discards the buffer. Nothing reaches the store.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != TxActive {
		return ErrTransactionClosed
	}
	tx.status = TxRolledBack
	tx.ops = nil
	tx.engine.log.Debug().Str("tx", tx.ID).Msg("transaction rolled back")
	return nil
}
