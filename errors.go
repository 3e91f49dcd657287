package ring

import (
	"errors"
	"fmt"
)

// ErrAllocation is returned by New when the backing storage for a buffer
// could not be allocated.
var ErrAllocation = errors.New("ring: allocation failed")

// ErrCapacityMismatch is returned by (*Reader[T]).Connect when the reader's
// pre-declared capacity does not match the buffer's actual capacity.
var ErrCapacityMismatch = errors.New("ring: reader capacity does not match buffer capacity")

// ContractViolationError reports that the writer attempted to cross a
// half-buffer boundary while readers still owed a decrement of
// readers_left - a broken contract, not a runtime condition. It indicates
// the caller advanced the writer past what WriteSpace reported was safe.
//
// There is no recovery from this error: the buffer is left in an undefined
// state for the generation that was being armed. Callers should treat it as
// a fatal programming error to be fixed, not handled.
type ContractViolationError struct {
	// Capacity is the buffer's capacity at the time of the violation.
	Capacity uint64
	// ReadersLeft is the number of readers that had not yet crossed the
	// previous half-boundary when the writer attempted to cross again.
	ReadersLeft uint64
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("ring: writer crossed half-boundary (capacity=%d) with %d reader(s) still lagging", e.Capacity, e.ReadersLeft)
}
