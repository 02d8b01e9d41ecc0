// Package algo implements graph traversal algorithms over the storage
// engine's read interface: unit-weight shortest path, variable-length path
// expansion, and k-hop neighborhoods.
//
// Algorithms refer to vertices by Graphid and look records up through the
// engine; nothing here holds pointers between entities.
package algo

import (
	"errors"
	"fmt"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// Algorithm error kinds.
var (
	ErrPathNotFound      = errors.New("path not found")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrAlgorithmFailed   = errors.New("algorithm failed")
)

// PathNotFoundError reports that no path connects Start to End.
type PathNotFoundError struct {
	Start storage.Graphid
	End   storage.Graphid
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s -> %s", e.Start, e.End)
}

// Is lets errors.Is(err, ErrPathNotFound) match.
func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}
