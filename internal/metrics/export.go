package metrics

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ExportPrometheus renders a snapshot as Prometheus/OpenMetrics text
// exposition format, one gauge/counter per field, labeled with segment so
// multiple WAL segments can be scraped from the same process.
func (s Snapshot) ExportPrometheus(segment string) string {
	var b strings.Builder

	counter := func(name, help string, value uint64) {
		fmt.Fprintf(&b, "# HELP fdbwal_%s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE fdbwal_%s counter\n", name)
		fmt.Fprintf(&b, "fdbwal_%s{segment=%q} %d\n", name, segment, value)
	}
	gauge := func(name, help string, value uint64) {
		fmt.Fprintf(&b, "# HELP fdbwal_%s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE fdbwal_%s gauge\n", name)
		fmt.Fprintf(&b, "fdbwal_%s{segment=%q} %d\n", name, segment, value)
	}

	counter("writes_ok_total", "Successful append calls", s.WritesOK)
	counter("writes_failed_total", "Failed append calls", s.WritesFailed)
	counter("bytes_written_total", "Bytes written to the segment", s.BytesWritten)
	counter("syncs_total", "Sync calls performed", s.Syncs)
	counter("sync_ms_total", "Cumulative sync duration in milliseconds", s.SyncMsTotal)
	counter("rotations_total", "Segment rotations observed", s.Rotations)
	counter("reads_ok_total", "Successful read_entry calls", s.ReadsOK)
	counter("reads_failed_total", "Failed read_entry calls", s.ReadsFailed)
	counter("bytes_read_total", "Bytes read from the segment", s.BytesRead)
	counter("corrupted_entries_total", "Entries rejected as corrupt", s.CorruptedEntries)
	counter("files_opened_total", "Segment files opened", s.FilesOpened)
	gauge("rolling_avg_entry_size_bytes", "Exponential moving average of entry size", s.RollingAvgEntrySize)
	gauge("max_entry_size_bytes", "Largest entry size observed", s.MaxEntrySize)
	gauge("current_file_size_bytes", "Current on-disk segment size", s.CurrentFileSize)

	return b.String()
}

// Summary renders a short, human-readable one-line summary of a snapshot
// for log lines, using humanize for byte counts the way an operator
// reading a log would expect ("12.3 MB" rather than a raw integer).
func (s Snapshot) Summary() string {
	return fmt.Sprintf(
		"writes=%d/%d reads=%d/%d size=%s avg_entry=%s max_entry=%s corrupted=%d avg_sync=%dms",
		s.WritesOK, s.WritesOK+s.WritesFailed,
		s.ReadsOK, s.ReadsOK+s.ReadsFailed,
		humanize.Bytes(s.CurrentFileSize),
		humanize.Bytes(s.RollingAvgEntrySize),
		humanize.Bytes(s.MaxEntrySize),
		s.CorruptedEntries,
		s.AvgSyncDurationMs(),
	)
}
