package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/kv"
)

func TestDumpLoadRoundTrip(t *testing.T) {
	src, _ := newTestEngine(t)

	alice, err := src.CreateVertex("Person", map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	bob, err := src.CreateVertex("Person", map[string]any{"name": "Bob"})
	require.NoError(t, err)
	city, err := src.CreateVertex("City", map[string]any{"name": "Oslo"})
	require.NoError(t, err)
	_, err = src.CreateEdge("KNOWS", alice.ID, bob.ID, map[string]any{"since": 2019})
	require.NoError(t, err)
	_, err = src.CreateEdge("LIVES_IN", bob.ID, city.ID, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DumpJSON(src, &buf))

	dst, err := NewEngine(kv.NewMemoryStore(), "copy")
	require.NoError(t, err)
	require.NoError(t, LoadJSON(dst, &buf))

	t.Run("counts_match", func(t *testing.T) {
		srcStats, err := CollectStats(src)
		require.NoError(t, err)
		dstStats, err := CollectStats(dst)
		require.NoError(t, err)
		assert.Equal(t, srcStats.Vertices, dstStats.Vertices)
		assert.Equal(t, srcStats.Edges, dstStats.Edges)
	})

	t.Run("properties_survive", func(t *testing.T) {
		people, err := dst.ScanVertices("Person")
		require.NoError(t, err)
		require.Len(t, people, 2)

		names := map[string]bool{}
		for _, v := range people {
			names[v.Properties["name"].(string)] = true
		}
		assert.True(t, names["Alice"])
		assert.True(t, names["Bob"])
	})

	t.Run("edges_rewired_onto_new_ids", func(t *testing.T) {
		knows, err := dst.ScanEdges("KNOWS")
		require.NoError(t, err)
		require.Len(t, knows, 1)

		start, err := dst.GetVertex(knows[0].Start)
		require.NoError(t, err)
		end, err := dst.GetVertex(knows[0].End)
		require.NoError(t, err)
		assert.Equal(t, "Alice", start.Properties["name"])
		assert.Equal(t, "Bob", end.Properties["name"])
		assert.EqualValues(t, 2019, knows[0].Properties["since"])
	})

	t.Run("malformed_dump_leaves_store_untouched", func(t *testing.T) {
		empty, err := NewEngine(kv.NewMemoryStore(), "x")
		require.NoError(t, err)
		err = LoadJSON(empty, bytes.NewBufferString(`{"vertices": [`))
		require.Error(t, err)

		stats, err := CollectStats(empty)
		require.NoError(t, err)
		assert.Zero(t, stats.Vertices)
	})
}
