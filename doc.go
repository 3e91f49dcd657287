// Package ring provides a lock-free, bounded, single-producer/multiple-consumer
// ring buffer for a fixed element type.
//
// A single writer streams elements of type T into a Buffer[T]. Any number of
// readers, each holding its own *Reader[T] registered before concurrent
// operation begins, observe the full stream independently: no reader drops
// or skips elements, and readers never interfere with one another. The
// writer is throttled only when some reader still lags more than half the
// buffer behind; it is never blocked by a reader that is less than half a
// buffer behind.
//
// Coordination between the writer and the readers happens through exactly
// two atomic words per buffer - a write index and a count of readers that
// have not yet crossed the buffer's current half - so every public method
// is wait-free: it either makes progress or returns a zero value. There are
// no locks and no condition variables in this package.
package ring
