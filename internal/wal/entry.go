package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/kartikbazzad/fdbwal/internal/errors"
	"github.com/kartikbazzad/fdbwal/internal/types"
)

// Entry is a self-describing framed record: length, CRC32 over payload,
// timestamp, op tag, key, and value.
type Entry struct {
	Timestamp types.Timestamp
	Op        types.Operation
	Key       types.Key
	Value     types.Value
}

// NewPut is a smart constructor enforcing the size bounds; it rejects a
// key or value that exceeds the configured maximum before any encoding is
// attempted.
func NewPut(key types.Key, value types.Value, ts types.Timestamp) (Entry, error) {
	if err := checkSizes(key, value); err != nil {
		return Entry{}, err
	}
	return Entry{Timestamp: ts, Op: types.OpPut, Key: key, Value: value}, nil
}

// NewDelete is a smart constructor that forces Value to empty; it only
// enforces the key size bound since a Delete never carries a value.
func NewDelete(key types.Key, ts types.Timestamp) (Entry, error) {
	if err := checkSizes(key, nil); err != nil {
		return Entry{}, err
	}
	return Entry{Timestamp: ts, Op: types.OpDelete, Key: key, Value: nil}, nil
}

func checkSizes(key, value []byte) error {
	if len(key) > MaxKey {
		return errors.Corruptf("exceeds maximum: key length %d > %d", len(key), MaxKey)
	}
	if len(value) > MaxValue {
		return errors.Corruptf("exceeds maximum: value length %d > %d", len(value), MaxValue)
	}
	return nil
}

// EncodedSize returns the exact byte length Encode will produce, without
// allocating: 4 (length) + 4 (crc32) + 8 (timestamp) + 1 (op) + 4
// (key_len) + len(key) + 4 (value_len) + len(value).
func (e Entry) EncodedSize() int {
	return 4 + 4 + 8 + 1 + 4 + len(e.Key) + 4 + len(e.Value)
}

// Encode produces a single contiguous byte buffer in the entry's wire
// layout. Size bounds are re-checked here, defensive against
// post-construction mutation of Key/Value. It computes CRC32 over bytes
// starting at offset 8 (after the length and checksum placeholders), then
// back-patches both the length and crc32 fields.
func (e Entry) Encode() ([]byte, error) {
	if err := checkSizes(e.Key, e.Value); err != nil {
		return nil, err
	}
	if e.Op == types.OpDelete && len(e.Value) != 0 {
		return nil, errors.Corruptf("delete entry must have an empty value, got %d bytes", len(e.Value))
	}

	total := e.EncodedSize()
	buf := make([]byte, total)

	off := 8 // length and crc32 are back-patched after the rest is written
	binary.LittleEndian.PutUint64(buf[off:], e.Timestamp)
	off += 8
	buf[off] = byte(e.Op)
	off += 1
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Key)))
	off += 4
	copy(buf[off:], e.Key)
	off += len(e.Key)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Value)))
	off += 4
	copy(buf[off:], e.Value)
	off += len(e.Value)

	crc := crc32.ChecksumIEEE(buf[8:off])
	binary.LittleEndian.PutUint32(buf[4:8], crc)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total-4))

	return buf, nil
}

// DecodeEntry is strict: it rejects malformed frames in a fixed order so
// that cheap checks (length) run before expensive ones (CRC), and CRC runs
// before any content interpretation.
func DecodeEntry(data []byte) (Entry, error) {
	if len(data) < MinEntrySize {
		return Entry{}, errors.Corruptf("entry too small: %d bytes (minimum %d)", len(data), MinEntrySize)
	}

	declaredLen := binary.LittleEndian.Uint32(data[0:4])
	if int(declaredLen)+4 != len(data) {
		return Entry{}, errors.Corruptf("length mismatch: declared %d, frame is %d bytes", declaredLen, len(data))
	}
	if len(data) > MaxEntry {
		return Entry{}, errors.Corruptf("entry exceeds maximum frame size: %d > %d", len(data), MaxEntry)
	}

	storedCRC := binary.LittleEndian.Uint32(data[4:8])
	computedCRC := crc32.ChecksumIEEE(data[8:])
	if computedCRC != storedCRC {
		return Entry{}, errors.Corruptf("checksum mismatch: expected %#x, got %#x", storedCRC, computedCRC)
	}

	off := 8
	ts := binary.LittleEndian.Uint64(data[off:])
	off += 8

	op := types.Operation(data[off])
	off += 1
	if !op.Valid() {
		return Entry{}, errors.Corruptf("invalid operation tag: %#02x", byte(op))
	}

	keyLen := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if keyLen > MaxKey {
		return Entry{}, errors.Corruptf("exceeds maximum: key length %d > %d", keyLen, MaxKey)
	}
	if off+int(keyLen) > len(data) {
		return Entry{}, errors.Corruptf("truncated: not enough bytes for key of length %d", keyLen)
	}
	key := append(types.Key(nil), data[off:off+int(keyLen)]...)
	off += int(keyLen)

	if off+4 > len(data) {
		return Entry{}, errors.Corruptf("truncated: not enough bytes for value_len")
	}
	valueLen := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if valueLen > MaxValue {
		return Entry{}, errors.Corruptf("exceeds maximum: value length %d > %d", valueLen, MaxValue)
	}
	if op == types.OpDelete && valueLen != 0 {
		return Entry{}, errors.Corruptf("delete entry must have value_len 0, got %d", valueLen)
	}
	if off+int(valueLen) > len(data) {
		return Entry{}, errors.Corruptf("truncated: not enough bytes for value of length %d", valueLen)
	}
	value := append(types.Value(nil), data[off:off+int(valueLen)]...)
	off += int(valueLen)

	if off != len(data) {
		return Entry{}, errors.Corruptf("trailing bytes: %d unconsumed after value", len(data)-off)
	}

	return Entry{Timestamp: ts, Op: op, Key: key, Value: value}, nil
}
