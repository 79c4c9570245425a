// Package metrics implements the lock-free counter bundle shared by a WAL
// Writer and Reader. Every field is updated with relaxed atomic
// semantics: counters are individually linearizable but not collectively
// snapshot-consistent, which is the right tradeoff for hot, many-field
// counters that are read-mostly and only ever advance or reset together.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics is a process-wide per-segment counter bundle. The zero value is
// ready to use. All methods are safe for concurrent use.
type Metrics struct {
	writesOK      atomic.Uint64
	writesFailed  atomic.Uint64
	bytesWritten  atomic.Uint64
	syncs         atomic.Uint64
	syncMsTotal   atomic.Uint64
	rotations     atomic.Uint64
	readsOK       atomic.Uint64
	readsFailed   atomic.Uint64
	bytesRead     atomic.Uint64
	corrupted     atomic.Uint64
	rollingAvg    atomic.Uint64
	maxEntrySize  atomic.Uint64
	currentSize   atomic.Uint64
	filesOpened   atomic.Uint64
}

// New returns a ready-to-use, zeroed Metrics bundle.
func New() *Metrics {
	return &Metrics{}
}

// RecordWrite updates write counters for one append attempt. On success it
// adds size to bytes_written and updates the rolling average and max entry
// size; on failure it only increments writes_failed.
func (m *Metrics) RecordWrite(size uint64, ok bool) {
	if !ok {
		m.writesFailed.Add(1)
		return
	}
	m.writesOK.Add(1)
	m.bytesWritten.Add(size)
	m.updateRollingAvg(size)
	m.updateMax(size)
}

// RecordSync records one sync operation's duration.
func (m *Metrics) RecordSync(d time.Duration) {
	m.syncs.Add(1)
	m.syncMsTotal.Add(uint64(d.Milliseconds()))
}

// StartTimer returns a stopwatch closure: call it when done to get the
// elapsed duration since StartTimer was called. Meant to sit right before
// the operation being timed, e.g.:
//
//	elapsed := metrics.StartTimer()
//	err := doSomething()
//	m.RecordSync(elapsed())
func StartTimer() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// RecordRead updates read counters for one read_entry attempt.
func (m *Metrics) RecordRead(size uint64, ok bool) {
	if !ok {
		m.readsFailed.Add(1)
		return
	}
	m.readsOK.Add(1)
	m.bytesRead.Add(size)
}

// RecordCorruption increments the corrupted-entry counter.
func (m *Metrics) RecordCorruption() {
	m.corrupted.Add(1)
}

// RecordRotation increments the rotation counter. The WAL core never
// rotates on its own (rotation is caller-driven, see internal/wal), but a
// caller that does rotate should report it here so operators see it in
// the same bundle as the rest of the segment's lifecycle.
func (m *Metrics) RecordRotation() {
	m.rotations.Add(1)
}

// RecordFileOpened increments the files-opened counter.
func (m *Metrics) RecordFileOpened() {
	m.filesOpened.Add(1)
}

// UpdateFileSize sets current_file_size to n.
func (m *Metrics) UpdateFileSize(n uint64) {
	m.currentSize.Store(n)
}

// updateRollingAvg applies the EMA: if the average is zero, seed it with
// size; otherwise new_avg = (9*old_avg + new) / 10, integer division.
// Tolerates races deliberately (it's a statistic, not a ledger).
func (m *Metrics) updateRollingAvg(size uint64) {
	for {
		old := m.rollingAvg.Load()
		var next uint64
		if old == 0 {
			next = size
		} else {
			next = (9*old + size) / 10
		}
		if m.rollingAvg.CompareAndSwap(old, next) {
			return
		}
	}
}

// updateMax applies a compare-and-swap loop so concurrent writers never
// lose a larger observed size to a smaller, concurrently-recorded one.
func (m *Metrics) updateMax(size uint64) {
	for {
		old := m.maxEntrySize.Load()
		if size <= old {
			return
		}
		if m.maxEntrySize.CompareAndSwap(old, size) {
			return
		}
	}
}

// Reset atomically re-zeroes every counter. Not required to be
// snapshot-consistent across counters, matching the same relaxed
// discipline as every other update.
func (m *Metrics) Reset() {
	m.writesOK.Store(0)
	m.writesFailed.Store(0)
	m.bytesWritten.Store(0)
	m.syncs.Store(0)
	m.syncMsTotal.Store(0)
	m.rotations.Store(0)
	m.readsOK.Store(0)
	m.readsFailed.Store(0)
	m.bytesRead.Store(0)
	m.corrupted.Store(0)
	m.rollingAvg.Store(0)
	m.maxEntrySize.Store(0)
	m.currentSize.Store(0)
	m.filesOpened.Store(0)
}

// Snapshot is a point-in-time (possibly torn across fields) readout of
// every counter, for logging, export, and tests.
type Snapshot struct {
	WritesOK            uint64
	WritesFailed        uint64
	BytesWritten        uint64
	Syncs               uint64
	SyncMsTotal         uint64
	Rotations           uint64
	ReadsOK             uint64
	ReadsFailed         uint64
	BytesRead           uint64
	CorruptedEntries    uint64
	RollingAvgEntrySize uint64
	MaxEntrySize        uint64
	CurrentFileSize     uint64
	FilesOpened         uint64
}

// Snapshot reads every counter into a plain struct.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		WritesOK:            m.writesOK.Load(),
		WritesFailed:        m.writesFailed.Load(),
		BytesWritten:        m.bytesWritten.Load(),
		Syncs:               m.syncs.Load(),
		SyncMsTotal:         m.syncMsTotal.Load(),
		Rotations:           m.rotations.Load(),
		ReadsOK:             m.readsOK.Load(),
		ReadsFailed:         m.readsFailed.Load(),
		BytesRead:           m.bytesRead.Load(),
		CorruptedEntries:    m.corrupted.Load(),
		RollingAvgEntrySize: m.rollingAvg.Load(),
		MaxEntrySize:        m.maxEntrySize.Load(),
		CurrentFileSize:     m.currentSize.Load(),
		FilesOpened:         m.filesOpened.Load(),
	}
}

// AvgSyncDurationMs returns sync_ms_total / syncs, or 0 when syncs == 0.
func (s Snapshot) AvgSyncDurationMs() uint64 {
	if s.Syncs == 0 {
		return 0
	}
	return s.SyncMsTotal / s.Syncs
}

// WriteSuccessRate returns writes_ok as a percentage of all write
// attempts, or 100.0 when none have been recorded.
func (s Snapshot) WriteSuccessRate() float64 {
	total := s.WritesOK + s.WritesFailed
	if total == 0 {
		return 100.0
	}
	return 100.0 * float64(s.WritesOK) / float64(total)
}

// ReadSuccessRate returns reads_ok as a percentage of all read attempts,
// or 100.0 when none have been recorded.
func (s Snapshot) ReadSuccessRate() float64 {
	total := s.ReadsOK + s.ReadsFailed
	if total == 0 {
		return 100.0
	}
	return 100.0 * float64(s.ReadsOK) / float64(total)
}
