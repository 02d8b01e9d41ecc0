// Package storage - error kinds surfaced by the storage engine.
package storage

import "errors"

// Storage error kinds. Callers match with errors.Is; most are wrapped with
// the offending identifier or label for diagnosis at the call site.
var (
	ErrVertexNotFound    = errors.New("vertex not found")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrLabelNotFound     = errors.New("label not found")
	ErrVertexHasEdges    = errors.New("vertex has incident edges")
	ErrCounterOverflow   = errors.New("label counter exhausted")
	ErrTransactionClosed = errors.New("transaction already closed")
	ErrSerialization     = errors.New("serialization failed")
	ErrIDRange           = errors.New("graphid out of range")
	ErrInvalidPath       = errors.New("invalid path")
)
