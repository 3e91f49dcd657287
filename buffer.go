package ring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Buffer is the core of a lock-free, bounded, single-producer/
// multiple-consumer ring buffer of elements of type T. It owns the backing
// storage, the capacity, and the two atomics ("w_ptr" and "readers_left")
// shared between the writer and every registered reader.
//
// A Buffer must be fully registered with all of its readers (via
// AttachReader or Reader.Connect) before any writer or reader method is
// called concurrently; registration itself is not safe for concurrent use.
type Buffer[T any] struct {
	capacity uint64
	mask     uint64
	storage  []T
	raw      []byte // byte view of storage, for page-locking only

	wPtr atomic.Uint64

	_ cpu.CacheLinePad

	readersLeft atomic.Uint64

	_ cpu.CacheLinePad

	// numReaders is written only during registration, which happens-before
	// any concurrent writer/reader operation; it is read thereafter without
	// synchronization, matching the spec's "immutable during concurrent
	// operation" contract.
	numReaders uint64

	locked bool
}

// New returns a Buffer whose actual capacity is the smallest power of two
// >= requestedCapacity (with a floor of minCapacity). The buffer starts
// with zero registered readers; attach them with AttachReader or
// Reader.Connect before starting the writer.
func New[T any](requestedCapacity uint64) (buf *Buffer[T], err error) {
	capacity := roundUpPowerOfTwo(requestedCapacity)

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()

	storage := make([]T, capacity)

	var elemSize uintptr
	if capacity > 0 {
		elemSize = unsafe.Sizeof(storage[0])
	}

	b := &Buffer[T]{
		capacity: capacity,
		mask:     capacity - 1,
		storage:  storage,
	}
	if elemSize > 0 {
		b.raw = unsafe.Slice((*byte)(unsafe.Pointer(&storage[0])), int(capacity)*int(elemSize))
	}

	return b, nil
}

// Capacity returns the buffer's actual capacity (a power of two).
func (b *Buffer[T]) Capacity() uint64 {
	return b.capacity
}

// WriteSpace returns a lower bound on the number of elements the writer may
// append without blocking any reader. A reader catching up between the
// load performed here and the caller's use of the result may make more
// space available, but the returned value is always safe to write.
func (b *Buffer[T]) WriteSpace() uint64 {
	w := b.wPtr.Load()
	rl := b.readersLeft.Load()

	free := (b.mask - w) & (b.mask >> 1)
	if rl == 0 {
		free += b.capacity >> 1
	}
	return free
}

// MaximumEventualWriteSpace returns the space guaranteed to become writable
// once every reader has consumed everything currently published: half the
// buffer's capacity, always, regardless of current state. Callers use this
// to size messages that must always eventually fit.
func (b *Buffer[T]) MaximumEventualWriteSpace() uint64 {
	return b.capacity >> 1
}

// Write appends min(len(src), WriteSpace()) elements of src and returns how
// many were accepted. It never blocks.
//
// Write returns a non-nil *ContractViolationError only if the caller wrote
// more than WriteSpace permitted and the resulting advance would cross a
// half-buffer boundary while a reader still owes a decrement - i.e. the
// caller broke the throttling contract. A caller that always bounds writes
// by WriteSpace never observes this error.
func (b *Buffer[T]) Write(src []T) (int, error) {
	n := uint64(len(src))

	w := b.wPtr.Load()
	rl := b.readersLeft.Load()

	half := b.capacity >> 1
	free := (b.mask - w) & (b.mask >> 1)
	if rl == 0 {
		free += half
	}

	k := n
	if k > free {
		k = free
	}
	if k == 0 {
		return 0, nil
	}

	n1 := k
	if b.capacity-w < k {
		n1 = b.capacity - w
	}
	n2 := k - n1

	newW := (w + k) & b.mask
	if (w^newW)&half != 0 {
		if rl != 0 {
			return 0, &ContractViolationError{Capacity: b.capacity, ReadersLeft: rl}
		}
		// Arm before publishing: readers must see the new generation open
		// only after they can no longer observe a stale readers_left.
		b.readersLeft.Store(b.numReaders)
	}

	copy(b.storage[w:w+n1], src[:n1])
	w = (w + n1) & b.mask
	// Go atomics are sequentially consistent, so this Store publishes the copied elements.
	b.wPtr.Store(w)

	if n2 > 0 {
		copy(b.storage[0:n2], src[n1:n1+n2])
		w = (w + n2) & b.mask
		b.wPtr.Store(w)
	}

	return int(k), nil
}

// LockPages attempts to pin the buffer's backing storage in physical
// memory so that later reads and writes never fault. It is best-effort:
// failure (including on platforms with no support) returns false and is
// not fatal. LockPages is only meaningful before concurrent operation
// begins.
func (b *Buffer[T]) LockPages() bool {
	ok := lockPages(b.raw)
	b.locked = ok
	return ok
}

// UnlockPages releases a page lock previously taken by LockPages. It is a
// no-op if the buffer was never locked.
func (b *Buffer[T]) UnlockPages() bool {
	if !b.locked {
		return false
	}
	ok := unlockPages(b.raw)
	b.locked = !ok
	return ok
}

// Touch overwrites the entire backing storage with zero values, which
// pre-faults its pages so the first real writes don't pay for it. Touch is
// only valid before concurrent operation begins. It panics if the write
// index or readers_left is already non-zero, mirroring the assertions the
// original implementation placed on this operation; a buffer whose write
// index has wrapped back to zero with no reader lagging is not detected.
func (b *Buffer[T]) Touch() {
	if b.wPtr.Load() != 0 || b.readersLeft.Load() != 0 {
		panic("ring: Touch called after concurrent operation began")
	}
	var zero T
	for i := range b.storage {
		b.storage[i] = zero
	}
}
