// Package wal implements the write-ahead log core: a fixed 64-byte segment
// header followed by a sequence of self-describing, CRC32-checksummed
// entry frames, written by a Writer and replayed by a Reader.
//
// Durability Guarantees:
//   - SyncFull: an entry is fsynced to disk before Append returns
//   - SyncNormal: an entry is flushed to the OS before Append returns, but
//     not fsynced; it survives a process crash but not an OS crash
//   - SyncNone: an entry sits in the buffered writer until an explicit
//     Sync call
//   - CRC32 detects corruption on replay; the Reader stops at the first
//     corrupt frame
//
// Thread Safety: a Writer's methods are safe for concurrent use; a Reader
// is not (one Reader per open segment).
package wal

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/kartikbazzad/fdbwal/internal/config"
	"github.com/kartikbazzad/fdbwal/internal/errors"
	"github.com/kartikbazzad/fdbwal/internal/logger"
	"github.com/kartikbazzad/fdbwal/internal/metrics"
	"github.com/kartikbazzad/fdbwal/internal/types"
)

// Writer manages a single append-only WAL segment: header-on-create, one
// buffered+CRC32'd frame per Append, optional fsync per the configured
// SyncMode.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	bw     *bufio.Writer
	path   string
	header Header
	size   uint64
	opts   config.WriterOptions
	logger *logger.Logger
	metric *metrics.Metrics
	retry  *errors.RetryController
	class  *errors.Classifier
}

// Open creates or reopens a segment at path. A new or zero-length file
// gets a fresh Header written immediately; an existing nonempty file has
// its Header read and validated, and the write cursor is seeked to its
// current end for append.
func Open(path string, opts config.WriterOptions, log *logger.Logger, m *metrics.Metrics) (*Writer, error) {
	if log == nil {
		log = logger.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.Io, "creating WAL directory", err)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(errors.Io, "opening WAL segment", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(errors.Io, "statting WAL segment", err)
	}

	w := &Writer{
		file:   file,
		path:   path,
		opts:   opts,
		logger: log,
		metric: m,
		retry:  errors.NewRetryController(),
		class:  errors.NewClassifier(),
	}

	if info.Size() == 0 {
		w.header = NewHeader(NewFileSequence())
		if _, err := file.Write(w.header.Encode()); err != nil {
			file.Close()
			return nil, errors.Wrap(errors.Io, "writing WAL header", err)
		}
		w.size = uint64(HeaderSize)
	} else {
		headerBuf := make([]byte, HeaderSize)
		if _, err := file.ReadAt(headerBuf, 0); err != nil {
			file.Close()
			return nil, errors.Wrap(errors.Io, "reading WAL header", err)
		}
		h, err := DecodeHeader(headerBuf)
		if err != nil {
			file.Close()
			return nil, err
		}
		w.header = h
		w.size = uint64(info.Size())
	}

	if _, err := file.Seek(int64(w.size), os.SEEK_SET); err != nil {
		file.Close()
		return nil, errors.Wrap(errors.Io, "seeking to end of WAL segment", err)
	}

	w.bw = bufio.NewWriter(file)
	w.metric.RecordFileOpened()
	w.metric.UpdateFileSize(w.size)
	w.logger.Info("opened WAL segment %s (size=%s, file_sequence=%d)", path, humanize.Bytes(w.size), w.header.FileSequence())
	return w, nil
}

// Append encodes e and writes it to the segment. If SizeLimit is nonzero
// and the encoded frame would push the segment past it, the entry is
// rejected without writing anything and a SizeLimit error is returned;
// writes_failed is still incremented so the rejection is observable.
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	encoded, err := e.Encode()
	if err != nil {
		w.metric.RecordWrite(0, false)
		return err
	}

	if w.opts.SizeLimit > 0 && w.size+uint64(len(encoded)) > w.opts.SizeLimit {
		w.metric.RecordWrite(0, false)
		w.logger.Warn("append to %s would exceed size limit (current=%s, entry=%s, limit=%s)",
			w.path, humanize.Bytes(w.size), humanize.Bytes(uint64(len(encoded))), humanize.Bytes(w.opts.SizeLimit))
		return errors.Wrap(errors.SizeLimit, "append would exceed segment size limit", nil)
	}

	if _, err := w.bw.Write(encoded); err != nil {
		w.metric.RecordWrite(0, false)
		return errors.Wrap(errors.Io, "writing WAL entry", err)
	}
	w.size += uint64(len(encoded))

	switch w.opts.SyncMode {
	case types.SyncNormal:
		if err := w.flushLocked(); err != nil {
			w.metric.RecordWrite(0, false)
			return err
		}
	case types.SyncFull:
		if err := w.syncLocked(); err != nil {
			w.metric.RecordWrite(0, false)
			return err
		}
	}

	w.metric.RecordWrite(uint64(len(encoded)), true)
	w.metric.UpdateFileSize(w.size)
	return nil
}

// Sync flushes the buffered writer and fsyncs the underlying file
// regardless of SyncMode; callers use this to force durability on demand
// (e.g. before acknowledging a batch under SyncNormal or SyncNone).
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) flushLocked() error {
	if err := w.bw.Flush(); err != nil {
		return errors.Wrap(errors.Io, "flushing WAL writer", err)
	}
	return nil
}

// syncLocked flushes then fsyncs, retrying the fsync call itself through
// the shared Classifier/RetryController since a transient fsync failure
// (e.g. EAGAIN under load) is worth a bounded retry before being reported
// up as a hard error.
func (w *Writer) syncLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}

	elapsed := metrics.StartTimer()
	err := w.retry.Retry(func() error {
		return w.file.Sync()
	}, w.class)
	w.metric.RecordSync(elapsed())
	if err != nil {
		return errors.Wrap(errors.Io, "fsyncing WAL segment", err)
	}
	return nil
}

// Close flushes, fsyncs, and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.syncLocked()
	closeErr := w.file.Close()
	w.file = nil
	if err != nil {
		return err
	}
	if closeErr != nil {
		return errors.Wrap(errors.Io, "closing WAL segment", closeErr)
	}
	return nil
}

// Size returns the current segment size in bytes, including the header.
func (w *Writer) Size() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Path returns the segment's file path.
func (w *Writer) Path() string { return w.path }

// Header returns the segment's header as read or written at Open.
func (w *Writer) Header() Header {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.header
}

// Metrics returns the Metrics bundle this Writer records into.
func (w *Writer) Metrics() *metrics.Metrics { return w.metric }
