package wal

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/kartikbazzad/fdbwal/internal/config"
	"github.com/kartikbazzad/fdbwal/internal/errors"
	"github.com/kartikbazzad/fdbwal/internal/types"
)

func tempSegmentPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "segment.wal")
}

func mustOpenWriter(t *testing.T, path string, opts config.WriterOptions) *Writer {
	t.Helper()
	w, err := Open(path, opts, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return w
}

// TestAppendReplayPreservation checks that every field of every appended
// entry survives a close/reopen/replay cycle unchanged, in order.
func TestAppendReplayPreservation(t *testing.T) {
	path := tempSegmentPath(t)
	w := mustOpenWriter(t, path, config.DefaultWriterOptions())

	entries := []Entry{}
	put1, _ := NewPut([]byte("user:1"), []byte("Alice"), 1)
	put2, _ := NewPut([]byte("user:2"), []byte("Bob"), 2)
	del1, _ := NewDelete([]byte("user:1"), 3)
	put3, _ := NewPut([]byte("user:3"), []byte("Charlie"), 4)
	entries = append(entries, put1, put2, del1, put3)

	for _, e := range entries {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path, config.DefaultReaderOptions(), nil, nil)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	replayed, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(replayed) != len(entries) {
		t.Fatalf("replayed %d entries, want %d", len(replayed), len(entries))
	}
	for i, e := range entries {
		if replayed[i].Op != e.Op || string(replayed[i].Key) != string(e.Key) ||
			string(replayed[i].Value) != string(e.Value) || replayed[i].Timestamp != e.Timestamp {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, replayed[i], e)
		}
	}
}

// TestSizeAccounting checks that Writer.Size() tracks the cumulative
// encoded byte count exactly, matching the on-disk file size after a sync.
func TestSizeAccounting(t *testing.T) {
	path := tempSegmentPath(t)
	w := mustOpenWriter(t, path, config.DefaultWriterOptions())
	defer w.Close()

	expected := uint64(HeaderSize)
	for i := 0; i < 10; i++ {
		e, _ := NewPut([]byte("k"), []byte("v"), uint64(i))
		encoded, _ := e.Encode()
		if err := w.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
		expected += uint64(len(encoded))
		if w.Size() != expected {
			t.Fatalf("after append %d: Size() = %d, want %d", i, w.Size(), expected)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	info, err = os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if uint64(info.Size()) != expected {
		t.Fatalf("on-disk size = %d, want %d", info.Size(), expected)
	}
}

// TestSizeLimitAtomicity checks that an append which would exceed the
// configured size limit fails without writing anything, leaves the Writer
// usable afterward, and is reflected in its failure metrics.
func TestSizeLimitAtomicity(t *testing.T) {
	path := tempSegmentPath(t)
	opts := config.WriterOptions{SyncMode: types.SyncFull, SizeLimit: 100}
	w := mustOpenWriter(t, path, opts)
	defer w.Close()

	key := make([]byte, 20)
	value := make([]byte, 30)

	var lastErr error
	successes := 0
	for i := 0; i < 20; i++ {
		e, _ := NewPut(key, value, uint64(i))
		sizeBefore := w.Size()
		err := w.Append(e)
		if err != nil {
			lastErr = err
			if w.Size() != sizeBefore {
				t.Fatalf("SizeLimit append changed size: before=%d after=%d", sizeBefore, w.Size())
			}
			break
		}
		successes++
	}

	if lastErr == nil {
		t.Fatal("expected a SizeLimit error before 20 appends")
	}
	kind, ok := errors.KindOf(lastErr)
	if !ok || kind != errors.SizeLimit {
		t.Fatalf("err kind = %v, want SizeLimit", kind)
	}

	snap := w.Metrics().Snapshot()
	if snap.WritesFailed < 1 {
		t.Fatalf("WritesFailed = %d, want >= 1", snap.WritesFailed)
	}
	if snap.WritesOK != uint64(successes) {
		t.Fatalf("WritesOK = %d, want %d", snap.WritesOK, successes)
	}

	if err := w.Sync(); err != nil {
		t.Fatalf("writer unusable after SizeLimit error: Sync: %v", err)
	}
}

// TestConcurrentAppendIntegrity hammers one Writer from many goroutines at
// once and checks that every entry survives with no loss and no
// duplication once replayed back.
func TestConcurrentAppendIntegrity(t *testing.T) {
	path := tempSegmentPath(t)
	w := mustOpenWriter(t, path, config.DefaultWriterOptions())

	const threads = 10
	const perThread = 100

	var wg sync.WaitGroup
	for tID := 0; tID < threads; tID++ {
		wg.Add(1)
		go func(tID int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				key := []byte(keyFor(tID, i))
				e, err := NewPut(key, []byte("v"), uint64(tID*perThread+i))
				if err != nil {
					t.Errorf("NewPut: %v", err)
					return
				}
				if err := w.Append(e); err != nil {
					t.Errorf("Append: %v", err)
					return
				}
			}
		}(tID)
	}
	wg.Wait()

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path, config.DefaultReaderOptions(), nil, nil)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	entries, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != threads*perThread {
		t.Fatalf("got %d entries, want %d", len(entries), threads*perThread)
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[string(e.Key)] {
			t.Fatalf("duplicate key %q in replay", e.Key)
		}
		seen[string(e.Key)] = true
	}
}

func keyFor(tID, i int) string {
	return "t" + strconv.Itoa(tID) + "_i" + strconv.Itoa(i)
}
