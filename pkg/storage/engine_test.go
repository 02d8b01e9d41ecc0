package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/kv"
)

func newTestEngine(t *testing.T) (*Engine, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	engine, err := NewEngine(store, "test")
	require.NoError(t, err)
	return engine, store
}

func TestEngine_Labels(t *testing.T) {
	t.Run("get_or_create_is_idempotent", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		id1, err := engine.GetOrCreateLabel("Person")
		require.NoError(t, err)
		id2, err := engine.GetOrCreateLabel("Person")
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})

	t.Run("distinct_labels_get_distinct_ids", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a, err := engine.GetOrCreateLabel("A")
		require.NoError(t, err)
		b, err := engine.GetOrCreateLabel("B")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("label_map_survives_reopen", func(t *testing.T) {
		store := kv.NewMemoryStore()
		engine, err := NewEngine(store, "test")
		require.NoError(t, err)
		id, err := engine.GetOrCreateLabel("Durable")
		require.NoError(t, err)

		engine2, err := NewEngine(store, "test")
		require.NoError(t, err)
		got, ok := engine2.LookupLabel("Durable")
		assert.True(t, ok)
		assert.Equal(t, id, got)

		name, ok := engine2.LabelName(id)
		assert.True(t, ok)
		assert.Equal(t, "Durable", name)
	})

	t.Run("namespaces_are_isolated", func(t *testing.T) {
		store := kv.NewMemoryStore()
		g1, err := NewEngine(store, "one")
		require.NoError(t, err)
		_, err = g1.CreateVertex("Person", nil)
		require.NoError(t, err)

		g2, err := NewEngine(store, "two")
		require.NoError(t, err)
		vs, err := g2.ScanVertices("Person")
		require.NoError(t, err)
		assert.Empty(t, vs)
	})
}

func TestEngine_VertexCRUD(t *testing.T) {
	t.Run("create_and_get", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		v, err := engine.CreateVertex("Person", map[string]any{"name": "Alice"})
		require.NoError(t, err)

		got, err := engine.GetVertex(v.ID)
		require.NoError(t, err)
		assert.Equal(t, "Person", got.Label)
		assert.Equal(t, "Alice", got.Properties["name"])
	})

	t.Run("get_missing_vertex", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		id, _ := NewGraphid(1, 99)
		_, err := engine.GetVertex(id)
		assert.ErrorIs(t, err, ErrVertexNotFound)
	})

	t.Run("update_replaces_properties", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		v, err := engine.CreateVertex("Person", map[string]any{"name": "Alice"})
		require.NoError(t, err)

		_, err = engine.UpdateVertex(v.ID, map[string]any{"name": "Alice", "age": 30})
		require.NoError(t, err)

		got, err := engine.GetVertex(v.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 30, got.Properties["age"])
	})

	t.Run("scan_by_label", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		for _, name := range []string{"a", "b", "c"} {
			_, err := engine.CreateVertex("Person", map[string]any{"name": name})
			require.NoError(t, err)
		}
		_, err := engine.CreateVertex("City", nil)
		require.NoError(t, err)

		vs, err := engine.ScanVertices("Person")
		require.NoError(t, err)
		assert.Len(t, vs, 3)
	})

	t.Run("scan_unknown_label_returns_empty", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		vs, err := engine.ScanVertices("NeverCreated")
		require.NoError(t, err)
		assert.Empty(t, vs)
	})

	t.Run("delete_then_get_fails", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		v, err := engine.CreateVertex("Person", nil)
		require.NoError(t, err)
		require.NoError(t, engine.DeleteVertex(v.ID))

		_, err = engine.GetVertex(v.ID)
		assert.ErrorIs(t, err, ErrVertexNotFound)
	})

	t.Run("ids_are_never_reused", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		v1, err := engine.CreateVertex("Person", nil)
		require.NoError(t, err)
		require.NoError(t, engine.DeleteVertex(v1.ID))

		v2, err := engine.CreateVertex("Person", nil)
		require.NoError(t, err)
		assert.Greater(t, v2.ID.LocalID(), v1.ID.LocalID())
	})
}

func TestEngine_EdgeCRUD(t *testing.T) {
	setup := func(t *testing.T) (*Engine, *Vertex, *Vertex) {
		engine, _ := newTestEngine(t)
		a, err := engine.CreateVertex("Person", map[string]any{"name": "a"})
		require.NoError(t, err)
		b, err := engine.CreateVertex("Person", map[string]any{"name": "b"})
		require.NoError(t, err)
		return engine, a, b
	}

	t.Run("create_maintains_both_indexes", func(t *testing.T) {
		engine, a, b := setup(t)
		e, err := engine.CreateEdge("KNOWS", a.ID, b.ID, nil)
		require.NoError(t, err)

		out, err := engine.GetOutgoingEdges(a.ID)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, e.ID, out[0].ID)

		in, err := engine.GetIncomingEdges(b.ID)
		require.NoError(t, err)
		require.Len(t, in, 1)
		assert.Equal(t, e.ID, in[0].ID)
	})

	t.Run("edge_to_missing_vertex_fails", func(t *testing.T) {
		engine, a, _ := setup(t)
		ghost, _ := NewGraphid(1, 4242)
		_, err := engine.CreateEdge("KNOWS", a.ID, ghost, nil)
		assert.ErrorIs(t, err, ErrVertexNotFound)
	})

	t.Run("self_loop_permitted", func(t *testing.T) {
		engine, a, _ := setup(t)
		e, err := engine.CreateEdge("LIKES", a.ID, a.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, e.Start, e.End)

		out, err := engine.GetOutgoingEdges(a.ID)
		require.NoError(t, err)
		in, err := engine.GetIncomingEdges(a.ID)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Len(t, in, 1)
	})

	t.Run("delete_removes_both_indexes", func(t *testing.T) {
		engine, a, b := setup(t)
		e, err := engine.CreateEdge("KNOWS", a.ID, b.ID, nil)
		require.NoError(t, err)
		require.NoError(t, engine.DeleteEdge(e.ID))

		out, err := engine.GetOutgoingEdges(a.ID)
		require.NoError(t, err)
		assert.Empty(t, out)
		in, err := engine.GetIncomingEdges(b.ID)
		require.NoError(t, err)
		assert.Empty(t, in)

		_, err = engine.GetEdge(e.ID)
		assert.ErrorIs(t, err, ErrEdgeNotFound)
	})

	t.Run("vertex_delete_blocked_by_edges", func(t *testing.T) {
		engine, a, b := setup(t)
		e, err := engine.CreateEdge("KNOWS", a.ID, b.ID, nil)
		require.NoError(t, err)

		assert.ErrorIs(t, engine.DeleteVertex(a.ID), ErrVertexHasEdges)
		assert.ErrorIs(t, engine.DeleteVertex(b.ID), ErrVertexHasEdges)

		require.NoError(t, engine.DeleteEdge(e.ID))
		assert.NoError(t, engine.DeleteVertex(a.ID))
		assert.NoError(t, engine.DeleteVertex(b.ID))
	})
}

func TestTransaction(t *testing.T) {
	t.Run("rollback_discards_everything", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		tx := engine.Begin()
		_, err := tx.CreateVertex("Person", map[string]any{"name": "Alice"})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		vs, err := engine.ScanVertices("Person")
		require.NoError(t, err)
		assert.Empty(t, vs)
	})

	t.Run("commit_publishes_atomically", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		tx := engine.Begin()
		_, err := tx.CreateVertex("Person", map[string]any{"name": "Alice"})
		require.NoError(t, err)

		// Nothing visible before commit.
		vs, err := engine.ScanVertices("Person")
		require.NoError(t, err)
		assert.Empty(t, vs)

		require.NoError(t, tx.Commit())
		vs, err = engine.ScanVertices("Person")
		require.NoError(t, err)
		require.Len(t, vs, 1)
		assert.Equal(t, "Alice", vs[0].Properties["name"])
	})

	t.Run("closed_transaction_rejects_operations", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		tx := engine.Begin()
		require.NoError(t, tx.Commit())

		_, err := tx.CreateVertex("Person", nil)
		assert.ErrorIs(t, err, ErrTransactionClosed)
		assert.ErrorIs(t, tx.Commit(), ErrTransactionClosed)
		assert.ErrorIs(t, tx.Rollback(), ErrTransactionClosed)
		assert.Equal(t, TxCommitted, tx.Status())
	})

	t.Run("edge_between_pending_vertices", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		tx := engine.Begin()
		a, err := tx.CreateVertex("P", nil)
		require.NoError(t, err)
		b, err := tx.CreateVertex("P", nil)
		require.NoError(t, err)
		_, err = tx.CreateEdge("K", a.ID, b.ID, nil)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		out, err := engine.GetOutgoingEdges(a.ID)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("detach_pattern_within_transaction", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a, err := engine.CreateVertex("P", nil)
		require.NoError(t, err)
		b, err := engine.CreateVertex("P", nil)
		require.NoError(t, err)
		e, err := engine.CreateEdge("K", a.ID, b.ID, nil)
		require.NoError(t, err)

		tx := engine.Begin()
		assert.ErrorIs(t, tx.DeleteVertex(a.ID), ErrVertexHasEdges)
		require.NoError(t, tx.DeleteEdge(e.ID))
		require.NoError(t, tx.DeleteVertex(a.ID))
		require.NoError(t, tx.Commit())

		_, err = engine.GetVertex(a.ID)
		assert.ErrorIs(t, err, ErrVertexNotFound)
		got, err := engine.GetVertex(b.ID)
		require.NoError(t, err)
		in, err := engine.GetIncomingEdges(got.ID)
		require.NoError(t, err)
		assert.Empty(t, in)
	})

	t.Run("create_then_delete_advances_counter_only", func(t *testing.T) {
		engine, store := newTestEngine(t)
		before := store.Len()

		v, err := engine.CreateVertex("P", map[string]any{"x": 1})
		require.NoError(t, err)
		require.NoError(t, engine.DeleteVertex(v.ID))

		// Label mapping and counter remain; the record is gone.
		counter, err := engine.CounterValue("P")
		require.NoError(t, err)
		assert.Equal(t, v.ID.LocalID(), counter)
		assert.Equal(t, before+2, store.Len()) // label key + counter key
	})
}

func TestCounterOverflow(t *testing.T) {
	t.Run("refuses_allocation_past_48_bits", func(t *testing.T) {
		engine, store := newTestEngine(t)
		_, err := engine.GetOrCreateLabel("P")
		require.NoError(t, err)

		// Pin the counter at its ceiling.
		require.NoError(t, store.WriteBatch([]kv.Op{
			{Key: counterKey("test", "P"), Value: encodeCounter(MaxLocalID)},
		}))

		_, err = engine.CreateVertex("P", nil)
		assert.ErrorIs(t, err, ErrCounterOverflow)
	})

	t.Run("allocates_the_last_id", func(t *testing.T) {
		engine, store := newTestEngine(t)
		_, err := engine.GetOrCreateLabel("P")
		require.NoError(t, err)

		require.NoError(t, store.WriteBatch([]kv.Op{
			{Key: counterKey("test", "P"), Value: encodeCounter(MaxLocalID - 1)},
		}))

		v, err := engine.CreateVertex("P", nil)
		require.NoError(t, err)
		assert.Equal(t, MaxLocalID, v.ID.LocalID())

		_, err = engine.CreateVertex("P", nil)
		assert.ErrorIs(t, err, ErrCounterOverflow)
	})
}

func TestKeySchema(t *testing.T) {
	t.Run("lexicographic_order_matches_numeric", func(t *testing.T) {
		id9, _ := NewGraphid(1, 9)
		id10, _ := NewGraphid(1, 10)
		assert.Less(t, string(vertexKey("g", id9)), string(vertexKey("g", id10)))
	})

	t.Run("label_prefix_covers_only_that_label", func(t *testing.T) {
		id, _ := NewGraphid(1, 1)
		other, _ := NewGraphid(2, 1)
		prefix := string(vertexLabelPrefix("g", 1))
		assert.True(t, len(prefix) < len(vertexKey("g", id)))
		assert.Equal(t, prefix, string(vertexKey("g", id))[:len(prefix)])
		assert.NotEqual(t, prefix, string(vertexKey("g", other))[:len(prefix)])
	})

	t.Run("adjacency_key_round_trip", func(t *testing.T) {
		src, _ := NewGraphid(1, 5)
		edge, _ := NewGraphid(3, 7)
		got, err := adjacencyEdgeID(outKey("g", src, edge))
		require.NoError(t, err)
		assert.Equal(t, edge, got)
	})
}
