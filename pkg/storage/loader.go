// Package storage - JSON dump and load.
//
// The dump format is a single JSON document of vertex and edge records.
// Loading replays the dump through the ordinary create primitives, so ids
// are renumbered: the queryable state round-trips, the identifiers do not.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// GraphDump is the serialized form of a whole graph namespace.
type GraphDump struct {
	Graph    string    `json:"graph"`
	Vertices []*Vertex `json:"vertices"`
	Edges    []*Edge   `json:"edges"`
}

// DumpJSON writes every vertex and edge in the engine's namespace to w as
// one JSON document. Output order is deterministic: labels sorted by name,
// records in key order within a label.
func DumpJSON(e *Engine, w io.Writer) error {
	labels := e.Labels()
	sort.Strings(labels)

	dump := GraphDump{Graph: e.Graph()}
	for _, label := range labels {
		vs, err := e.ScanVertices(label)
		if err != nil {
			return fmt.Errorf("dumping vertices %q: %w", label, err)
		}
		dump.Vertices = append(dump.Vertices, vs...)

		es, err := e.ScanEdges(label)
		if err != nil {
			return fmt.Errorf("dumping edges %q: %w", label, err)
		}
		dump.Edges = append(dump.Edges, es...)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&dump); err != nil {
		return fmt.Errorf("%w: encoding dump: %v", ErrSerialization, err)
	}
	return nil
}

// LoadJSON replays a dump into the engine. Vertices are created first and
// their ids remapped, then edges are rewired onto the new ids. The whole
// load is one transaction: a malformed dump leaves the store untouched.
func LoadJSON(e *Engine, r io.Reader) error {
	var dump GraphDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return fmt.Errorf("%w: decoding dump: %v", ErrSerialization, err)
	}

	tx := e.Begin()
	remap := make(map[Graphid]Graphid, len(dump.Vertices))
	for _, v := range dump.Vertices {
		created, err := tx.CreateVertex(v.Label, v.Properties)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("loading vertex %s: %w", v.ID, err)
		}
		remap[v.ID] = created.ID
	}
	for _, ed := range dump.Edges {
		src, ok := remap[ed.Start]
		if !ok {
			tx.Rollback()
			return fmt.Errorf("%w: dump edge %s references missing start %s", ErrVertexNotFound, ed.ID, ed.Start)
		}
		dst, ok := remap[ed.End]
		if !ok {
			tx.Rollback()
			return fmt.Errorf("%w: dump edge %s references missing end %s", ErrVertexNotFound, ed.ID, ed.End)
		}
		if _, err := tx.CreateEdge(ed.Label, src, dst, ed.Properties); err != nil {
			tx.Rollback()
			return fmt.Errorf("loading edge %s: %w", ed.ID, err)
		}
	}
	return tx.Commit()
}

// Stats summarizes a namespace for tooling.
type Stats struct {
	Labels   int
	Vertices int
	Edges    int
}

// CollectStats counts labels, vertices, and edges.
func CollectStats(e *Engine) (Stats, error) {
	s := Stats{}
	labels := e.Labels()
	s.Labels = len(labels)
	for _, label := range labels {
		vs, err := e.ScanVertices(label)
		if err != nil {
			return s, err
		}
		s.Vertices += len(vs)
		es, err := e.ScanEdges(label)
		if err != nil {
			return s, err
		}
		s.Edges += len(es)
	}
	return s, nil
}
