// Package storage - on-disk key schema.
//
// All keys are ASCII, colon-delimited, and namespaced by the graph name
// chosen at open time:
//
//	v:{graph}:{labid}:{locid}     vertex record
//	e:{graph}:{labid}:{locid}     edge record
//	o:{graph}:{src}:{edge}        out-adjacency marker (raw ids)
//	i:{graph}:{dst}:{edge}        in-adjacency marker (raw ids)
//	l:{graph}:{label}             label name -> 16-bit LE id
//	c:{graph}:{label}             label name -> 64-bit LE last allocated local id
//
// Numeric components are fixed-width zero-padded decimal (5 digits for the
// 16-bit label id, 15 for the 48-bit local id, 20 for raw 64-bit ids) so
// that lexicographic key order equals numeric order and a prefix iterator
// over "v:{graph}:{labid}:" visits exactly the vertices of that label.
package storage

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

func vertexKey(graph string, id Graphid) []byte {
	return []byte(fmt.Sprintf("v:%s:%05d:%015d", graph, id.LabelID(), id.LocalID()))
}

func vertexLabelPrefix(graph string, labid uint16) []byte {
	return []byte(fmt.Sprintf("v:%s:%05d:", graph, labid))
}

func edgeKey(graph string, id Graphid) []byte {
	return []byte(fmt.Sprintf("e:%s:%05d:%015d", graph, id.LabelID(), id.LocalID()))
}

func edgeLabelPrefix(graph string, labid uint16) []byte {
	return []byte(fmt.Sprintf("e:%s:%05d:", graph, labid))
}

func outKey(graph string, src, edge Graphid) []byte {
	return []byte(fmt.Sprintf("o:%s:%020d:%020d", graph, src.Raw(), edge.Raw()))
}

func outPrefix(graph string, src Graphid) []byte {
	return []byte(fmt.Sprintf("o:%s:%020d:", graph, src.Raw()))
}

func inKey(graph string, dst, edge Graphid) []byte {
	return []byte(fmt.Sprintf("i:%s:%020d:%020d", graph, dst.Raw(), edge.Raw()))
}

func inPrefix(graph string, dst Graphid) []byte {
	return []byte(fmt.Sprintf("i:%s:%020d:", graph, dst.Raw()))
}

func labelKey(graph, name string) []byte {
	return []byte(fmt.Sprintf("l:%s:%s", graph, name))
}

func labelPrefix(graph string) []byte {
	return []byte(fmt.Sprintf("l:%s:", graph))
}

func counterKey(graph, name string) []byte {
	return []byte(fmt.Sprintf("c:%s:%s", graph, name))
}

// adjacencyEdgeID pulls the trailing edge id out of an adjacency key.
func adjacencyEdgeID(key []byte) (Graphid, error) {
	s := string(key)
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 || idx == len(s)-1 {
		return 0, fmt.Errorf("%w: malformed adjacency key %q", ErrSerialization, s)
	}
	raw, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: adjacency key %q: %v", ErrSerialization, s, err)
	}
	return FromRaw(raw), nil
}

// labelName pulls the trailing label name out of a label-map key. The graph
// namespace may itself contain colons, so the prefix length is explicit.
func labelName(key []byte, prefixLen int) string {
	return string(key[prefixLen:])
}

func encodeLabelID(id uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, id)
	return buf
}

func decodeLabelID(data []byte) (uint16, error) {
	if len(data) != 2 {
		return 0, fmt.Errorf("%w: label id value has %d bytes", ErrSerialization, len(data))
	}
	return binary.LittleEndian.Uint16(data), nil
}

func encodeCounter(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func decodeCounter(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: counter value has %d bytes", ErrSerialization, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}
