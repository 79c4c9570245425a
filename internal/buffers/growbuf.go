// Package buffers implements a small, reusable growable byte buffer whose
// single extra operation over a plain []byte is AppendFrom: append exactly N
// bytes read from a source directly into the buffer's spare tail capacity,
// committing the new length only once all N bytes have arrived.
//
// Repeated use on the same Buffer (grow once, then Reset and refill at or
// below the grown capacity) costs no further backing-array allocations:
// skipping the allocate-then-copy that a naive read-into-append pattern
// would incur on every call is the entire point of a reused buffer. The
// safety invariant holds regardless: on any failure — short read or I/O
// error — the buffer's visible length and content are left exactly as they
// were before the call.
//
// This type is deliberately WAL-agnostic; internal/wal's Reader is its only
// current caller, but nothing here references WAL concepts.
package buffers

import "io"

// Buffer is a growable, reusable byte buffer. The zero value is ready to
// use. Buffer is not safe for concurrent use.
type Buffer struct {
	data []byte
}

// NewBuffer returns a Buffer with the given initial capacity reserved.
func NewBuffer(initialCapacity int) *Buffer {
	b := &Buffer{}
	if initialCapacity > 0 {
		b.data = make([]byte, 0, initialCapacity)
	}
	return b
}

// Bytes returns the buffer's current contents. The slice is only valid
// until the next mutating call on b.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of logical bytes currently in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the buffer's current capacity, useful for callers tracking
// how often the buffer has grown.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Reset empties the buffer's logical length without releasing its
// capacity, so the next AppendFrom call can reuse the backing array.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// AppendFrom reads exactly n bytes from r and appends them to the buffer.
//
//   - n == 0 succeeds immediately; the buffer and r are both untouched.
//   - On success, the buffer's length grows by exactly n and the new tail
//     holds exactly the n bytes produced by r.
//   - On failure (short read or I/O error), the buffer's length and visible
//     content are unchanged from before the call; only its capacity may
//     have grown, which has no observable effect on Bytes()/Len().
//
// A short read (r returns io.EOF before n bytes are produced) is reported
// as io.ErrUnexpectedEOF; any other error from r is returned verbatim.
func (b *Buffer) AppendFrom(r io.Reader, n int) error {
	err := b.appendFrom(r, n)
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// AppendFromOrEOF is AppendFrom's sibling for reading a protocol's framing
// prefix: a clean io.EOF (zero bytes read before the source was exhausted)
// is returned unconverted instead of becoming io.ErrUnexpectedEOF, so a
// caller can tell "nothing more to read" apart from "a frame started but
// was cut short". A partial read still reports io.ErrUnexpectedEOF and
// leaves the buffer unchanged, exactly as AppendFrom does.
func (b *Buffer) AppendFromOrEOF(r io.Reader, n int) error {
	return b.appendFrom(r, n)
}

func (b *Buffer) appendFrom(r io.Reader, n int) error {
	if n == 0 {
		return nil
	}

	start := len(b.data)
	b.reserve(n)

	// Slice the spare tail with a hard capacity cap so append-like use
	// elsewhere on this slice can never silently clobber bytes past n.
	tail := b.data[start : start+n : start+n]

	if _, err := io.ReadFull(r, tail); err != nil {
		// Length is not advanced: the uninitialized-to-the-caller tail
		// (now holding whatever partial bytes ReadFull wrote, or nothing)
		// stays outside the buffer's logical view. io.ReadFull already
		// distinguishes a clean io.EOF (zero bytes read) from a partial
		// read (io.ErrUnexpectedEOF); callers choose via AppendFrom vs.
		// AppendFromOrEOF whether a clean EOF should surface as-is.
		return err
	}

	b.data = b.data[:start+n]
	return nil
}

// reserve grows the backing array, if needed, so that at least n bytes of
// spare capacity exist past the current length. It never changes len(b.data).
func (b *Buffer) reserve(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}

	needed := len(b.data) + n
	newCap := cap(b.data)*2 + n
	if newCap < needed {
		newCap = needed
	}

	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}
