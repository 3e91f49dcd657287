package ring

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1: exact fill. C_req=4 rounds to C=4; one reader.
func Test_Scenario_S1_exactFill(t *testing.T) {
	buf, err := New[byte](4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), buf.Capacity())
	r := AttachReader(buf)

	n, err := buf.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(0), buf.WriteSpace())

	n, err = buf.Write([]byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	seq := r.Read(3)
	require.Equal(t, uint64(3), seq.Size())
	assert.Equal(t, byte('a'), seq.At(0))
	assert.Equal(t, byte('b'), seq.At(1))
	assert.Equal(t, byte('c'), seq.At(2))
	seq.Release()

	assert.Equal(t, uint64(0), r.ReadSpace())
}

// S2: two readers gate the writer independently; the writer only sees
// more space once both have crossed.
func Test_Scenario_S2_twoReadersGate(t *testing.T) {
	buf, err := New[byte](4)
	require.NoError(t, err)
	r1 := AttachReader(buf)
	r2 := AttachReader(buf)

	n, err := buf.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	seq1 := r1.ReadMax(3)
	assert.Equal(t, uint64(3), seq1.Size())
	seq1.Release()

	assert.Equal(t, uint64(0), buf.WriteSpace())

	seq2 := r2.ReadMax(3)
	assert.Equal(t, uint64(3), seq2.Size())
	seq2.Release()

	// Both readers have now crossed: readers_left is 0 again, so the
	// writer regains at least the guaranteed other half - exactly half
	// here, since w_ptr sits right at the edge of its current half.
	assert.Equal(t, buf.Capacity()/2, buf.WriteSpace())
}

// S3: a write that wraps around the end of storage is read back in order,
// one element from before the wrap and one from after it.
func Test_Scenario_S3_wrapAround(t *testing.T) {
	buf, err := New[byte](4)
	require.NoError(t, err)
	r1 := AttachReader(buf)
	r2 := AttachReader(buf)

	_, err = buf.Write([]byte("abc"))
	require.NoError(t, err)
	for _, r := range []*Reader[byte]{r1, r2} {
		seq := r.ReadAll()
		seq.Release()
	}

	n, err := buf.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint64(0), buf.WriteSpace())

	first := r1.ReadMax(1)
	require.Equal(t, uint64(1), first.Size())
	assert.Equal(t, byte('a'), first.At(0))
	first.Release()

	second := r1.ReadMax(1)
	require.Equal(t, uint64(1), second.Size())
	assert.Equal(t, byte('b'), second.At(0))
	second.Release()
}

// S4: half-boundary arming. Before any write, readers_left is 0; crossing
// the half-boundary arms it to the reader count, and the reader consuming
// past the boundary disarms it.
func Test_Scenario_S4_halfBoundaryArming(t *testing.T) {
	buf, err := New[byte](64)
	require.NoError(t, err)
	r := AttachReader(buf)

	assert.Equal(t, uint64(0), buf.readersLeft.Load())

	// Writing exactly the first half moves w_ptr from 0 to C/2, flipping
	// the half-bit: the crossing is armed immediately, not deferred to
	// whatever write happens to come next.
	src := make([]byte, 32)
	n, err := buf.Write(src)
	require.NoError(t, err)
	require.Equal(t, 32, n)
	assert.Equal(t, uint64(1), buf.readersLeft.Load())

	seq := r.ReadAll()
	seq.Release()
	assert.Equal(t, uint64(0), buf.readersLeft.Load())
}

// S5: a writer and several concurrent, busy-waiting readers each observe
// the exact stream in order, with no drops and no duplication.
func Test_Scenario_S5_concurrentBusyWaitReaders(t *testing.T) {
	const (
		capacity   = 64
		numReaders = 4
		count      = 20_000
	)

	buf, err := New[uint64](capacity)
	require.NoError(t, err)

	readers := make([]*Reader[uint64], numReaders)
	for i := range readers {
		readers[i] = AttachReader(buf)
	}

	var wg sync.WaitGroup
	var violations atomic.Int64

	wg.Add(1)
	go func() {
		defer wg.Done()
		var written uint64
		src := make([]uint64, 8)
		for written < count {
			remaining := uint64(count) - written
			n := uint64(len(src))
			if n > remaining {
				n = remaining
			}
			for i := uint64(0); i < n; i++ {
				src[i] = written + i
			}
			k, err := buf.Write(src[:n])
			if err != nil {
				violations.Add(1)
				return
			}
			written += uint64(k)
			if k == 0 {
				runtime.Gosched()
			}
		}
	}()

	for _, r := range readers {
		wg.Add(1)
		go func(r *Reader[uint64]) {
			defer wg.Done()
			var next uint64
			for next < count {
				seq := r.ReadAll()
				if seq.Size() == 0 {
					runtime.Gosched()
					continue
				}
				for i := uint64(0); i < seq.Size(); i++ {
					if seq.At(i) != next {
						violations.Add(1)
					}
					next++
				}
				seq.Release()
			}
		}(r)
	}

	wg.Wait()
	assert.Equal(t, int64(0), violations.Load())
}

// A reader registered via NewReader/Connect behaves identically to one
// attached directly.
func Test_Scenario_deferredConnect(t *testing.T) {
	buf, err := New[byte](16)
	require.NoError(t, err)

	r := NewReader[byte](16)
	require.NoError(t, r.Connect(buf))

	_, err = buf.Write([]byte("hello"))
	require.NoError(t, err)

	seq := r.ReadAll()
	dest := make([]byte, seq.Size())
	require.True(t, seq.CopyInto(dest))
	seq.Release()

	assert.Equal(t, "hello", string(dest))
}

// Stream fidelity: a single reader observes exactly the concatenation of
// every writer input, in order, across an arbitrary sequence of partial
// writes and reads.
func Test_Invariant_streamFidelity(t *testing.T) {
	buf, err := New[byte](8)
	require.NoError(t, err)
	r := AttachReader(buf)

	input := []byte("the quick brown fox jumps over the lazy dog")
	var collected []byte

	for len(input) > 0 {
		chunk := input
		if len(chunk) > 3 {
			chunk = chunk[:3]
		}
		n, err := buf.Write(chunk)
		require.NoError(t, err)
		input = input[n:]

		if avail := r.ReadSpace(); avail > 0 {
			seq := r.ReadAll()
			dest := make([]byte, seq.Size())
			seq.CopyInto(dest)
			seq.Release()
			collected = append(collected, dest...)
		}
	}

	for r.ReadSpace() > 0 {
		seq := r.ReadAll()
		dest := make([]byte, seq.Size())
		seq.CopyInto(dest)
		seq.Release()
		collected = append(collected, dest...)
	}

	assert.Equal(t, "the quick brown fox jumps over the lazy dog", string(collected))
}

// readers_left and write_space/read_space stay within their documented
// bounds across many writer/reader steps with an uneven number of readers.
func Test_Invariant_boundsHoldAcrossManySteps(t *testing.T) {
	buf, err := New[uint32](32)
	require.NoError(t, err)

	readers := make([]*Reader[uint32], 3)
	for i := range readers {
		readers[i] = AttachReader(buf)
	}

	for step := 0; step < 5000; step++ {
		n, err := buf.Write(make([]uint32, 5))
		require.NoError(t, err)
		assert.LessOrEqual(t, uint64(n), buf.Capacity()-1)

		rl := buf.readersLeft.Load()
		assert.LessOrEqual(t, rl, buf.numReaders)

		for _, r := range readers {
			if r.ReadSpace() > 0 {
				seq := r.ReadMax(2)
				seq.Release()
			}
		}
	}

	assert.Equal(t, buf.Capacity()/2, buf.MaximumEventualWriteSpace())
}
