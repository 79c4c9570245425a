package wal

// Wire-format constants, byte-exact per the on-disk layout. Writer and
// Reader MUST agree on every one of these; they are not configurable at
// runtime because doing so would make two segments written by different
// configurations mutually unreadable.
const (
	// HeaderSize is the fixed size of a segment's preamble, one cache
	// line.
	HeaderSize = 64
	// EntryStartOffset is where the first entry begins; identical to
	// HeaderSize in v1.0, kept as a separate named constant because the
	// header field of the same name is independently encoded/decoded.
	EntryStartOffset = 64

	// MinEntrySize is the smallest possible encoded frame: an empty key
	// and empty value still carry every fixed-size field.
	MinEntrySize = 25

	// MaxKey is the largest key size this implementation accepts (see
	// DESIGN.md's Open Question decision).
	MaxKey = 1 << 20 // 1 MiB
	// MaxValue is the largest value size this implementation accepts.
	MaxValue = 10 << 20 // 10 MiB
	// MaxEntry is the largest encoded frame this implementation accepts,
	// derived from MaxKey/MaxValue/MinEntrySize so writer and reader
	// never need to duplicate the arithmetic.
	MaxEntry = MaxKey + MaxValue + MinEntrySize
)

// Magic is the 8-byte literal that opens every segment: "FDB_WAL\0".
var Magic = [8]byte{0x46, 0x44, 0x42, 0x5F, 0x57, 0x41, 0x4C, 0x00}

// CurrentVersion is the version this implementation writes: major=1,
// minor=0, encoded as major<<8 | minor.
const CurrentVersion uint16 = 0x0100

// MinSupportedVersion is the oldest version this implementation reads.
const MinSupportedVersion uint16 = 0x0100

const formatName = "WAL"
