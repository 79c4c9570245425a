package buffers

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestAppendFromZeroIsNoOp(t *testing.T) {
	b := NewBuffer(0)
	before := b.Len()
	if err := b.AppendFrom(bytes.NewReader(nil), 0); err != nil {
		t.Fatalf("AppendFrom(.., 0) = %v, want nil", err)
	}
	if b.Len() != before {
		t.Fatalf("Len() changed on zero-length append: %d -> %d", before, b.Len())
	}
}

func TestAppendFromSuccessAppendsExactlyN(t *testing.T) {
	b := NewBuffer(4)
	src := []byte("hello world")
	if err := b.AppendFrom(bytes.NewReader(src), len(src)); err != nil {
		t.Fatalf("AppendFrom: %v", err)
	}
	if b.Len() != len(src) {
		t.Fatalf("Len() = %d, want %d", b.Len(), len(src))
	}
	if !bytes.Equal(b.Bytes(), src) {
		t.Fatalf("Bytes() = %q, want %q", b.Bytes(), src)
	}

	more := []byte("!!!")
	if err := b.AppendFrom(bytes.NewReader(more), len(more)); err != nil {
		t.Fatalf("second AppendFrom: %v", err)
	}
	want := append(append([]byte{}, src...), more...)
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("Bytes() after second append = %q, want %q", b.Bytes(), want)
	}
}

func TestAppendFromShortReadLeavesBufferUnchanged(t *testing.T) {
	b := NewBuffer(0)
	if err := b.AppendFrom(bytes.NewReader([]byte("seed")), 4); err != nil {
		t.Fatalf("seed AppendFrom: %v", err)
	}
	seeded := append([]byte{}, b.Bytes()...)

	err := b.AppendFrom(bytes.NewReader([]byte("ab")), 5)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("AppendFrom short read: err = %v, want io.ErrUnexpectedEOF", err)
	}
	if b.Len() != len(seeded) {
		t.Fatalf("Len() changed after failed append: %d -> %d", len(seeded), b.Len())
	}
	if !bytes.Equal(b.Bytes(), seeded) {
		t.Fatalf("Bytes() changed after failed append: %q -> %q", seeded, b.Bytes())
	}
}

type errReader struct{ err error }

func (r errReader) Read(p []byte) (int, error) { return 0, r.err }

func TestAppendFromPropagatesReaderError(t *testing.T) {
	b := NewBuffer(0)
	sentinel := errors.New("boom")
	err := b.AppendFrom(errReader{sentinel}, 3)
	if !errors.Is(err, sentinel) {
		t.Fatalf("AppendFrom err = %v, want %v", err, sentinel)
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after failed append on empty buffer", b.Len())
	}
}

// TestAppendFromNeverExposesUninitializedBytes checks that across many
// append/fail/append cycles with varying sizes, the buffer's visible content
// always equals the concatenation of the bytes that actually succeeded.
func TestAppendFromNeverExposesUninitializedBytes(t *testing.T) {
	b := NewBuffer(0)
	var want []byte

	attempts := []struct {
		data []byte
		n    int // requested length, may exceed len(data) to force a short read
	}{
		{[]byte("aaaa"), 4},
		{[]byte("bb"), 5}, // short read, should fail
		{[]byte("ccccccc"), 7},
		{[]byte(""), 3}, // short read from empty, should fail
		{[]byte("dd"), 2},
	}

	for i, a := range attempts {
		err := b.AppendFrom(bytes.NewReader(a.data), a.n)
		if err == nil {
			want = append(want, a.data[:a.n]...)
		}
		if !bytes.Equal(b.Bytes(), want) {
			t.Fatalf("attempt %d: Bytes() = %q, want %q", i, b.Bytes(), want)
		}
	}
}

func TestResetKeepsCapacity(t *testing.T) {
	b := NewBuffer(0)
	if err := b.AppendFrom(bytes.NewReader([]byte("0123456789")), 10); err != nil {
		t.Fatalf("AppendFrom: %v", err)
	}
	capBefore := b.Cap()
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", b.Len())
	}
	if b.Cap() != capBefore {
		t.Fatalf("Cap() changed by Reset: %d -> %d", capBefore, b.Cap())
	}
}
