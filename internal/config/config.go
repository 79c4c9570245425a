// Package config carries the in-process option structs for the WAL core,
// in a nested-struct-with-a-Default*() shape. Loading these from a file or
// environment is out of scope for the core; callers construct and pass an
// Options value directly.
package config

import "github.com/kartikbazzad/fdbwal/internal/types"

// WriterOptions configures a Writer.
type WriterOptions struct {
	// SyncMode selects the durability contract: None, Normal, or Full.
	SyncMode types.SyncMode
	// SizeLimit is the maximum segment size in bytes; an append that
	// would exceed it fails with a SizeLimit error instead of writing.
	SizeLimit uint64
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// InitialBufferCapacity sizes the reusable scratch buffer a Reader
	// fills entries into (see internal/buffers). Tune upward for
	// workloads with large average entry sizes to avoid repeated growth.
	InitialBufferCapacity int
}

// RecoveryOptions configures internal/recovery's bounded-parallel
// multi-segment replay.
type RecoveryOptions struct {
	// MaxWorkers bounds the number of segments decoded concurrently.
	MaxWorkers int
	// ReaderOptions is applied to every Reader the recovery pool opens.
	ReaderOptions ReaderOptions
}

// Options bundles every in-process option a caller might construct a
// Writer, Reader, or recovery run from.
type Options struct {
	Writer   WriterOptions
	Reader   ReaderOptions
	Recovery RecoveryOptions
}

const (
	// DefaultSizeLimit is the default segment size before the caller is
	// expected to rotate.
	DefaultSizeLimit = 64 * 1024 * 1024 // 64 MiB
	// DefaultInitialBufferCapacity is the default scratch buffer size for
	// a freshly opened Reader.
	DefaultInitialBufferCapacity = 8 * 1024 // 8 KiB
	// DefaultRecoveryMaxWorkers bounds concurrent segment replay to a
	// small, fixed pool size; recovery is I/O bound, not CPU bound, so a
	// pool much larger than this mostly adds contention on the disk.
	DefaultRecoveryMaxWorkers = 8
)

// DefaultWriterOptions returns SyncMode=Full and DefaultSizeLimit, the
// safest defaults: a caller that doesn't think about durability gets full
// fsync-per-append rather than silently weaker guarantees.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		SyncMode:  types.SyncFull,
		SizeLimit: DefaultSizeLimit,
	}
}

// DefaultReaderOptions returns the default initial scratch buffer
// capacity.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{InitialBufferCapacity: DefaultInitialBufferCapacity}
}

// DefaultRecoveryOptions returns DefaultRecoveryMaxWorkers and
// DefaultReaderOptions for every segment reader the recovery pool opens.
func DefaultRecoveryOptions() RecoveryOptions {
	return RecoveryOptions{
		MaxWorkers:    DefaultRecoveryMaxWorkers,
		ReaderOptions: DefaultReaderOptions(),
	}
}

// DefaultOptions bundles the three Default*() constructors above.
func DefaultOptions() Options {
	return Options{
		Writer:   DefaultWriterOptions(),
		Reader:   DefaultReaderOptions(),
		Recovery: DefaultRecoveryOptions(),
	}
}
