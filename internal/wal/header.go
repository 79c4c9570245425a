package wal

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/google/uuid"

	"github.com/kartikbazzad/fdbwal/internal/errors"
	"github.com/kartikbazzad/fdbwal/internal/format"
)

// Header is the 64-byte cache-line-aligned preamble written exactly once
// at segment creation; all multi-byte integers are little-endian. Field
// names carry a Field suffix where the bare name is needed for the
// format.Header/format.Metadata accessor of the same meaning.
type Header struct {
	MagicField      [8]byte
	VersionField    uint16
	Flags           uint16
	HeaderSizeField uint32
	HeaderChecksum  uint32
	EntryStart      uint32
	CreatedAt       uint64
	FileSeq         uint64
	Reserved        [24]byte
}

var (
	_ format.ChecksummedHeader = Header{}
	_ format.Metadata          = Header{}
)

// NewHeader populates every field for a fresh segment: magic, current
// version, zero flags, the fixed sizes, "now" as the creation timestamp,
// fileSequence as given, and a freshly computed checksum.
func NewHeader(fileSequence uint64) Header {
	h := Header{
		MagicField:      Magic,
		VersionField:    CurrentVersion,
		Flags:           0,
		HeaderSizeField: HeaderSize,
		EntryStart:      EntryStartOffset,
		CreatedAt:       nowMicros(),
		FileSeq:         fileSequence,
	}
	h.HeaderChecksum = h.CalculateChecksum()
	return h
}

// NewFileSequence derives a file-sequence id from the current time in
// microseconds, strengthened against collisions between segments created
// in the same microsecond on different goroutines by XORing in the low 8
// bytes of a freshly generated UUIDv4. A bare timestamp alone is not
// unique enough under concurrent segment creation; the UUID's randomness
// closes that gap without requiring a shared counter.
func NewFileSequence() uint64 {
	micros := nowMicros()
	id := uuid.New()
	var low uint64
	for i := 8; i < 16; i++ {
		low = (low << 8) | uint64(id[i])
	}
	return micros ^ low
}

// nowMicros returns the current time in microseconds since the Unix
// epoch, falling back to 0 if the clock somehow reports a time before the
// epoch rather than panicking or returning a negative/wrapped value.
func nowMicros() uint64 {
	now := time.Now()
	if now.Before(time.Unix(0, 0)) {
		return 0
	}
	return uint64(now.UnixMicro())
}

// Magic, FormatName, CurrentVersion, and MinSupportedVersion satisfy
// format.Identity.
func (h Header) Magic() [8]byte              { return h.MagicField }
func (h Header) FormatName() string          { return formatName }
func (h Header) CurrentVersion() uint16      { return CurrentVersion }
func (h Header) MinSupportedVersion() uint16 { return MinSupportedVersion }

// HeaderSize satisfies format.Header.
func (h Header) HeaderSize() int { return HeaderSize }

// CreatedAtMicros and FileSequence satisfy format.Metadata.
func (h Header) CreatedAtMicros() uint64 { return h.CreatedAt }
func (h Header) FileSequence() uint64    { return h.FileSeq }

// Encode emits exactly 64 little-endian bytes.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], h.MagicField[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.VersionField)
	binary.LittleEndian.PutUint16(buf[10:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.HeaderSizeField)
	binary.LittleEndian.PutUint32(buf[16:20], h.HeaderChecksum)
	binary.LittleEndian.PutUint32(buf[20:24], h.EntryStart)
	binary.LittleEndian.PutUint64(buf[24:32], h.CreatedAt)
	binary.LittleEndian.PutUint64(buf[32:40], h.FileSeq)
	copy(buf[40:64], h.Reserved[:])
	return buf
}

// DecodeHeader requires len(data) >= HeaderSize, parses every field, and
// runs Validate before returning.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.Corruptf("WAL header too small: %d bytes (expected %d)", len(data), HeaderSize)
	}

	var h Header
	copy(h.MagicField[:], data[0:8])
	h.VersionField = binary.LittleEndian.Uint16(data[8:10])
	h.Flags = binary.LittleEndian.Uint16(data[10:12])
	h.HeaderSizeField = binary.LittleEndian.Uint32(data[12:16])
	h.HeaderChecksum = binary.LittleEndian.Uint32(data[16:20])
	h.EntryStart = binary.LittleEndian.Uint32(data[20:24])
	h.CreatedAt = binary.LittleEndian.Uint64(data[24:32])
	h.FileSeq = binary.LittleEndian.Uint64(data[32:40])
	copy(h.Reserved[:], data[40:64])

	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate checks magic equality, version acceptance, header_size == 64,
// flags == 0, and the header checksum, in that order, naming which check
// failed.
func (h Header) Validate() error {
	if h.MagicField != Magic {
		return errors.Corruptf("invalid WAL magic: expected %v, found %v", Magic, h.MagicField)
	}
	if !format.IsVersionSupported(h.VersionField, MinSupportedVersion, CurrentVersion) {
		return errors.Corruptf("unsupported WAL version: %d.%d (supported: %d.x)",
			h.VersionField>>8, h.VersionField&0xFF, CurrentVersion>>8)
	}
	if h.HeaderSizeField != HeaderSize {
		return errors.Corruptf("invalid WAL header size: %d (expected %d)", h.HeaderSizeField, HeaderSize)
	}
	if h.Flags != 0 {
		return errors.Corruptf("invalid WAL flags: %#x (must be 0)", h.Flags)
	}
	return format.VerifyChecksum(h)
}

// CalculateChecksum recomputes the CRC32 over every field except
// header_checksum itself: bytes 0..16 and 20..64.
func (h Header) CalculateChecksum() uint32 {
	buf := h.Encode()
	hasher := crc32.NewIEEE()
	hasher.Write(buf[0:16])
	hasher.Write(buf[20:64])
	return hasher.Sum32()
}

// StoredChecksum returns the checksum as decoded from disk.
func (h Header) StoredChecksum() uint32 { return h.HeaderChecksum }

// ValidateSegmentFile reads and validates just the header of the segment
// at path, without opening a Reader or seeking past entry_start_offset.
// Useful for a cheap pre-flight check (e.g. before committing to a full
// replay) that the file is a WAL segment this implementation can read.
func ValidateSegmentFile(path string) error {
	return format.ValidateFileHeader(path, HeaderSize, func(data []byte) (format.Header, error) {
		return DecodeHeader(data)
	})
}

// IdentifySegmentFile reports whether path opens with the WAL magic bytes,
// without validating the rest of the header.
func IdentifySegmentFile(path string) (string, error) {
	return format.IdentifyFile(path, Magic, formatName)
}
