package ring

// Sequence is a zero-copy, scoped view of elements already known to be
// available in a Buffer. It exposes its elements as up to two contiguous
// slices (FirstHalf and SecondHalf) rather than copying them, and must be
// released - typically via defer - when the caller is done with it.
//
// A Sequence obtained from Reader.Read or Reader.ReadMax/ReadAll advances
// its reader past the covered elements on Release. A Sequence obtained
// from Reader.Peek or Reader.PeekMax/PeekAll never advances its reader,
// regardless of Release.
//
// Release is idempotent: calling it more than once has no additional
// effect, which is stricter than strictly necessary but removes any
// question of what a second release should do.
type Sequence[T any] struct {
	reader   *Reader[T]
	startPtr uint64
	size     uint64
	advance  bool
	released bool
}

func newSequence[T any](r *Reader[T], size uint64, advance bool) Sequence[T] {
	return Sequence[T]{reader: r, startPtr: r.readPtr, size: size, advance: advance}
}

// Size returns the number of elements covered by the sequence.
func (s *Sequence[T]) Size() uint64 {
	return s.size
}

// At returns the element at offset i within the sequence. i must be less
// than Size.
func (s *Sequence[T]) At(i uint64) T {
	buf := s.reader.buf
	idx := (s.startPtr + i) & buf.mask
	return buf.storage[idx]
}

// splitSizes returns how many of the sequence's elements lie before the
// end of the backing storage (first) and how many wrapped around to its
// start (second).
func (s *Sequence[T]) splitSizes() (first, second uint64) {
	buf := s.reader.buf
	first = s.size
	if buf.capacity-s.startPtr < first {
		first = buf.capacity - s.startPtr
	}
	second = s.size - first
	return first, second
}

// FirstHalf returns the contiguous prefix of the sequence's elements that
// lies before the end of the backing storage. It may be shorter than
// Size if the sequence wraps; the remainder is returned by SecondHalf.
func (s *Sequence[T]) FirstHalf() []T {
	buf := s.reader.buf
	first, _ := s.splitSizes()
	return buf.storage[s.startPtr : s.startPtr+first]
}

// SecondHalf returns the contiguous suffix of the sequence's elements that
// wrapped around to the start of the backing storage. It is empty unless
// the sequence wraps.
func (s *Sequence[T]) SecondHalf() []T {
	buf := s.reader.buf
	_, second := s.splitSizes()
	return buf.storage[0:second]
}

// CopyInto copies the sequence's elements into dest and reports whether
// dest was large enough to hold them. It does nothing and returns false
// if len(dest) < Size.
func (s *Sequence[T]) CopyInto(dest []T) bool {
	if uint64(len(dest)) < s.size {
		return false
	}
	n := copy(dest, s.FirstHalf())
	copy(dest[n:], s.SecondHalf())
	return true
}

// Release ends the sequence's scope. If the sequence was obtained from a
// read (rather than a peek) call, it advances the reader past the
// sequence's elements and, if that advance crosses the buffer's current
// half-boundary, decrements readers_left to signal the writer.
func (s *Sequence[T]) Release() {
	if s.released {
		return
	}
	s.released = true

	if !s.advance {
		return
	}

	r := s.reader
	buf := r.buf
	old := r.readPtr
	r.readPtr = (r.readPtr + s.size) & buf.mask

	half := buf.capacity >> 1
	if (r.readPtr^old)&half != 0 {
		// Go atomics are sequentially consistent, so this reader's loads from the old half happen-before the writer reuses it.
		buf.readersLeft.Add(decrementOne)
	}
}
