package binary

import (
	"encoding/binary"
	stderrors "errors"

	"github.com/wippyai/ilrewrite/errors"
)

var (
	// ErrTruncated is the cause of every read past the end of the span.
	ErrTruncated = stderrors.New("unexpected end of data")
	// ErrBadCompressed is returned for a first byte outside the 1/2/4-byte tiers.
	ErrBadCompressed = stderrors.New("invalid compressed integer")
	// ErrBadToken is returned for a TypeDefOrRef value with table selector 3.
	ErrBadToken = stderrors.New("invalid TypeDefOrRef table selector")
)

// MaxCompressed is the largest value a compressed unsigned integer can hold.
const MaxCompressed = 0x1FFFFFFF

// Signed compressed integer range per byte tier.
const (
	minSigned1 = -(1 << 6)
	maxSigned1 = 1<<6 - 1
	minSigned2 = -(1 << 13)
	maxSigned2 = 1<<13 - 1
	MinSigned  = -(1 << 28)
	MaxSigned  = 1<<28 - 1
)

// Table selectors of a TypeDefOrRef coded index, mapped to token tables.
var typeDefOrRefTables = [3]uint32{0x02000000, 0x01000000, 0x1B000000}

// Reader is a bounds-checked cursor over an immutable byte span.
// It never copies or owns the bytes it traverses.
type Reader struct {
	data  []byte
	pos   int
	phase errors.Phase
}

// NewReader creates a Reader positioned at the start of data.
// Errors it reports are tagged with phase.
func NewReader(data []byte, phase errors.Phase) *Reader {
	return &Reader{data: data, phase: phase}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Data returns the whole span the reader walks.
func (r *Reader) Data() []byte {
	return r.data
}

// Slice returns data[from:to] without copying.
func (r *Reader) Slice(from, to int) []byte {
	return r.data[from:to:to]
}

// Seek moves the cursor to an absolute position within the span.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return r.fail(pos, ErrTruncated, "seek to %d beyond %d bytes", pos, len(r.data))
	}
	r.pos = pos
	return nil
}

// Errorf builds a format error at the current position.
func (r *Reader) Errorf(format string, args ...any) *errors.Error {
	return errors.Format(r.phase, r.pos, format, args...)
}

func (r *Reader) fail(pos int, cause error, format string, args ...any) *errors.Error {
	return errors.New(r.phase, errors.KindFormat).
		Offset(pos).
		Cause(cause).
		Detail(format, args...).
		Build()
}

func (r *Reader) need(n int) error {
	if n < 0 || r.Len() < n {
		return r.fail(r.pos, ErrTruncated, "need %d bytes, have %d", n, r.Len())
	}
	return nil
}

// PeekByte returns the next byte without advancing.
func (r *Reader) PeekByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	return r.data[r.pos], nil
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes returns the next n bytes as a subslice of the span.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Align advances the position to the next multiple of n relative to the span start.
func (r *Reader) Align(n int) error {
	if rem := r.pos % n; rem != 0 {
		return r.Skip(n - rem)
	}
	return nil
}

// ReadU16LE reads a little-endian uint16.
func (r *Reader) ReadU16LE() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadU32LE reads a little-endian uint32.
func (r *Reader) ReadU32LE() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU64LE reads a little-endian uint64.
func (r *Reader) ReadU64LE() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// readCompressedRaw returns the raw tier payload and the tier width in bytes.
func (r *Reader) readCompressedRaw() (uint32, int, error) {
	start := r.pos
	b0, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), 2, nil
	case b0&0xE0 == 0xC0:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), 4, nil
	default:
		r.pos = start
		return 0, 0, r.fail(start, ErrBadCompressed, "compressed integer lead byte 0x%02x", b0)
	}
}

// ReadCompressedU32 reads an ECMA-335 compressed unsigned integer.
func (r *Reader) ReadCompressedU32() (uint32, error) {
	v, _, err := r.readCompressedRaw()
	return v, err
}

// ReadCompressedS32 reads an ECMA-335 compressed signed integer.
// The payload holds the value rotated left one bit with the sign in bit 0.
func (r *Reader) ReadCompressedS32() (int32, error) {
	raw, width, err := r.readCompressedRaw()
	if err != nil {
		return 0, err
	}
	neg := raw&1 != 0
	bits := raw >> 1
	switch width {
	case 1:
		if neg {
			bits |= 0xFFFFFFC0
		}
	case 2:
		if neg {
			bits |= 0xFFFFE000
		}
	default:
		if neg {
			bits |= 0xF0000000
		}
	}
	return int32(bits), nil
}

// ReadTypeDefOrRef reads a TypeDefOrRef coded index and returns the full token.
func (r *Reader) ReadTypeDefOrRef() (uint32, error) {
	start := r.pos
	v, err := r.ReadCompressedU32()
	if err != nil {
		return 0, err
	}
	tag := v & 0x3
	if tag == 3 {
		return 0, r.fail(start, ErrBadToken, "coded index 0x%x", v)
	}
	return typeDefOrRefTables[tag] | v>>2, nil
}
