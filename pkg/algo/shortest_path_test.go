package algo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/kv"
	"github.com/orneryd/vanirdb/pkg/storage"
)

func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	engine, err := storage.NewEngine(kv.NewMemoryStore(), "test")
	require.NoError(t, err)
	return engine
}

// buildGrid creates an n x n grid with right- and down-edges, returning the
// vertices indexed [row][col].
func buildGrid(t *testing.T, e *storage.Engine, n int) [][]*storage.Vertex {
	t.Helper()
	grid := make([][]*storage.Vertex, n)
	for r := 0; r < n; r++ {
		grid[r] = make([]*storage.Vertex, n)
		for c := 0; c < n; c++ {
			v, err := e.CreateVertex("Cell", map[string]any{"pos": fmt.Sprintf("%d,%d", r, c)})
			require.NoError(t, err)
			grid[r][c] = v
		}
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if c+1 < n {
				_, err := e.CreateEdge("STEP", grid[r][c].ID, grid[r][c+1].ID, nil)
				require.NoError(t, err)
			}
			if r+1 < n {
				_, err := e.CreateEdge("STEP", grid[r][c].ID, grid[r+1][c].ID, nil)
				require.NoError(t, err)
			}
		}
	}
	return grid
}

func TestShortestPath(t *testing.T) {
	t.Run("three_by_three_grid", func(t *testing.T) {
		e := newTestEngine(t)
		grid := buildGrid(t, e, 3)

		path, cost, err := ShortestPath(e, grid[0][0].ID, grid[2][2].ID)
		require.NoError(t, err)
		assert.Equal(t, 4, cost)
		require.Len(t, path.Vertices, 5)
		require.Len(t, path.Edges, 4)
		assert.Equal(t, grid[0][0].ID, path.Start().ID)
		assert.Equal(t, grid[2][2].ID, path.End().ID)
		require.NoError(t, path.Validate())
	})

	t.Run("start_equals_end", func(t *testing.T) {
		e := newTestEngine(t)
		grid := buildGrid(t, e, 2)

		path, cost, err := ShortestPath(e, grid[0][0].ID, grid[0][0].ID)
		require.NoError(t, err)
		assert.Equal(t, 0, cost)
		require.Len(t, path.Vertices, 1)
		assert.Empty(t, path.Edges)
	})

	t.Run("unreachable_destination", func(t *testing.T) {
		e := newTestEngine(t)
		grid := buildGrid(t, e, 2)

		// Edges only go right and down; (1,1) cannot reach (0,0).
		_, _, err := ShortestPath(e, grid[1][1].ID, grid[0][0].ID)
		assert.ErrorIs(t, err, ErrPathNotFound)

		var pnf *PathNotFoundError
		require.ErrorAs(t, err, &pnf)
		assert.Equal(t, grid[1][1].ID, pnf.Start)
		assert.Equal(t, grid[0][0].ID, pnf.End)
	})

	t.Run("missing_start_vertex", func(t *testing.T) {
		e := newTestEngine(t)
		buildGrid(t, e, 2)
		ghost, _ := storage.NewGraphid(40, 4)
		_, _, err := ShortestPath(e, ghost, ghost)
		assert.ErrorIs(t, err, storage.ErrVertexNotFound)
	})

	t.Run("deterministic_tie_break", func(t *testing.T) {
		e := newTestEngine(t)
		// Diamond: s -> a -> t and s -> b -> t, both cost 2.
		s, _ := e.CreateVertex("V", nil)
		a, _ := e.CreateVertex("V", nil)
		b, _ := e.CreateVertex("V", nil)
		tt, _ := e.CreateVertex("V", nil)
		e.CreateEdge("E", s.ID, a.ID, nil)
		e.CreateEdge("E", s.ID, b.ID, nil)
		e.CreateEdge("E", a.ID, tt.ID, nil)
		e.CreateEdge("E", b.ID, tt.ID, nil)

		var first storage.Graphid
		for i := 0; i < 5; i++ {
			path, cost, err := ShortestPath(e, s.ID, tt.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, cost)
			mid := path.Vertices[1].ID
			if i == 0 {
				first = mid
			} else {
				assert.Equal(t, first, mid)
			}
		}
		// (cost, raw id) ordering means the smaller-id branch wins.
		assert.Equal(t, a.ID, first)
	})
}
