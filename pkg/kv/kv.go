// Package kv defines the ordered key-value contract the storage engine is
// built on, with persistent (BadgerDB) and in-memory implementations.
//
// The graph layer only ever needs three things from its store: point lookup,
// ordered prefix iteration, and an atomic multi-key write batch. Keeping the
// contract this small makes the storage engine portable across backends and
// lets tests run against the in-memory store with identical semantics.
//
// Example:
//
//	store, err := kv.OpenBadger(kv.BadgerOptions{DataDir: "./data"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.WriteBatch([]kv.Op{
//		{Key: []byte("v:default:00001:000000000000001"), Value: data},
//	})
package kv

import "errors"

var (
	// ErrKeyNotFound is returned by Get when no value exists for the key.
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("kv: store closed")

	// ErrStopIteration can be returned by a Scan callback to end the scan
	// early without surfacing an error to the caller.
	ErrStopIteration = errors.New("kv: stop iteration")
)

// Op is a single mutation inside an atomic batch. When Delete is true the
// key is removed and Value is ignored.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Store is the ordered key-value contract the graph storage engine consumes.
//
// Implementations must order keys lexicographically by byte value. Scan
// visits only keys sharing the given prefix, in order, and must stop at the
// first key outside the prefix — callers rely on that boundary to terminate
// label and adjacency scans.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// Scan calls fn for every key/value pair whose key begins with prefix,
	// in ascending key order. The key and value slices are only valid for
	// the duration of the callback. Returning ErrStopIteration from fn ends
	// the scan without error; any other error aborts the scan and is
	// returned to the caller.
	Scan(prefix []byte, fn func(key, value []byte) error) error

	// WriteBatch applies all operations atomically: after it returns, either
	// every op is visible to readers or none is.
	WriteBatch(ops []Op) error

	// Close releases the store. Further calls fail with ErrStoreClosed.
	Close() error
}
