// internal/registry/errors.go
package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups past the defined table.
// The polling loop treats it as end of table, not a failure.
var ErrNotFound = errors.New("registry: characteristic not found")

// Configuration errors. These are defects in the register map and are never
// retried.
var (
	ErrConfiguration = errors.New("registry: configuration error")
	ErrInvalidOffset = fmt.Errorf("%w: storage offset unset", ErrConfiguration)
	ErrOffsetRange   = fmt.Errorf("%w: storage offset out of block range", ErrConfiguration)
	ErrDuplicateCID  = fmt.Errorf("%w: duplicate cid", ErrConfiguration)
)
