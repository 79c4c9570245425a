// Package format defines the capability set shared by every on-disk file
// format in the engine (WAL today; SSTable and MANIFEST are siblings that
// would satisfy the same interfaces). Rather than a deep type hierarchy,
// a format is described by a small set of orthogonal capabilities a type
// can satisfy: identity (magic/name/versions), an encodable header, an
// optionally checksummed header, and optional creation metadata.
package format

import (
	"io"
	"os"

	walerrors "github.com/kartikbazzad/fdbwal/internal/errors"
)

// Identity describes a file format's static identity: its magic bytes,
// human-readable name, and the version range it accepts.
type Identity interface {
	// Magic returns the 8-byte sequence that opens every file of this
	// format.
	Magic() [8]byte
	// FormatName is used in diagnostics ("not a WAL file (wrong magic
	// bytes)", etc).
	FormatName() string
	// CurrentVersion is the version this implementation writes, encoded
	// as major<<8 | minor.
	CurrentVersion() uint16
	// MinSupportedVersion is the oldest version this implementation will
	// still read, encoded the same way.
	MinSupportedVersion() uint16
}

// Header is the encode/decode/validate contract every format header
// satisfies.
type Header interface {
	Identity

	// HeaderSize is the fixed on-disk size of the header in bytes.
	HeaderSize() int
	// Encode emits the header's canonical byte representation.
	Encode() []byte
	// Validate checks magic, version acceptance, declared size, and any
	// format-specific invariants; it does not re-decode.
	Validate() error
}

// ChecksummedHeader is satisfied by headers that carry their own
// integrity checksum.
type ChecksummedHeader interface {
	Header

	// CalculateChecksum recomputes the checksum over the header's
	// checksummed byte ranges.
	CalculateChecksum() uint32
	// StoredChecksum returns the checksum as decoded from disk.
	StoredChecksum() uint32
}

// VerifyChecksum reports a Corruption error naming both checksums when
// they disagree, nil otherwise. Shared by every ChecksummedHeader
// implementation so the error message stays consistent across formats.
func VerifyChecksum(h ChecksummedHeader) error {
	calculated := h.CalculateChecksum()
	stored := h.StoredChecksum()
	if calculated != stored {
		return walerrors.Corruptf("%s header checksum mismatch: expected %#x, got %#x",
			h.FormatName(), stored, calculated)
	}
	return nil
}

// Metadata is satisfied by formats that record creation provenance.
type Metadata interface {
	// CreatedAtMicros is the creation timestamp in microseconds since the
	// Unix epoch.
	CreatedAtMicros() uint64
	// FileSequence is a unique identifier assigned at creation, used to
	// detect accidental file mixing across segments.
	FileSequence() uint64
}

// IsVersionSupported applies the version acceptance rule shared by every
// format: a header is accepted iff its major version falls within
// [major(min), major(current)]. Minor version differences are always
// compatible.
func IsVersionSupported(version, minSupported, current uint16) bool {
	major := version >> 8
	minMajor := minSupported >> 8
	currentMajor := current >> 8
	return major >= minMajor && major <= currentMajor
}

// Decoder decodes a Header from its on-disk byte representation. Each
// format (internal/wal's Header, and any future sibling) provides one of
// these to the convenience functions below.
type Decoder func(data []byte) (Header, error)

// ValidateFileHeader opens path, reads exactly headerSize bytes, decodes
// them with decode, and validates the result. It does not read past the
// header, so it is cheap to call before committing to a full replay.
func ValidateFileHeader(path string, headerSize int, decode Decoder) error {
	f, err := os.Open(path)
	if err != nil {
		return walerrors.Wrap(walerrors.Io, "open file", err)
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return walerrors.Wrap(walerrors.Io, "read header", err)
	}

	h, err := decode(buf)
	if err != nil {
		return err
	}
	return h.Validate()
}

// IdentifyFile reads the first 8 bytes of path and reports whether they
// match magic, returning formatName on success and an InvalidFormat error
// naming formatName otherwise.
func IdentifyFile(path string, magic [8]byte, formatName string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", walerrors.Wrap(walerrors.Io, "open file", err)
	}
	defer f.Close()

	var got [8]byte
	if _, err := io.ReadFull(f, got[:]); err != nil {
		return "", walerrors.Wrap(walerrors.Io, "read magic", err)
	}

	if got != magic {
		return "", walerrors.Wrap(walerrors.InvalidFormat,
			"not a "+formatName+" file (wrong magic bytes)", nil)
	}
	return formatName, nil
}
