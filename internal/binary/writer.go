package binary

import (
	"encoding/binary"

	"github.com/wippyai/ilrewrite/errors"
)

// Writer provides append-only writing utilities for blobs and method bodies.
type Writer struct {
	buf   []byte
	phase errors.Phase
}

// NewWriter creates a new Writer. Errors it reports are tagged with phase.
func NewWriter(phase errors.Phase) *Writer {
	return &Writer{phase: phase}
}

// NewWriterSize creates a Writer with capacity preallocated.
func NewWriterSize(phase errors.Phase, capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity), phase: phase}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// Align pads with zero bytes until Len is a multiple of n.
func (w *Writer) Align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

// WriteU16LE writes a little-endian uint16.
func (w *Writer) WriteU16LE(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteU32LE writes a little-endian uint32.
func (w *Writer) WriteU32LE(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteU64LE writes a little-endian uint64.
func (w *Writer) WriteU64LE(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// PutU32LE overwrites four bytes at off.
func (w *Writer) PutU32LE(off int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[off:], v)
}

// WriteCompressedU32 writes an ECMA-335 compressed unsigned integer.
func (w *Writer) WriteCompressedU32(v uint32) error {
	var tmp [4]byte
	n, err := PutCompressedU32(tmp[:], v)
	if err != nil {
		return errors.Overflow(w.phase, v, "compressed unsigned integer")
	}
	w.buf = append(w.buf, tmp[:n]...)
	return nil
}

// WriteCompressedS32 writes an ECMA-335 compressed signed integer.
func (w *Writer) WriteCompressedS32(v int32) error {
	var tmp [4]byte
	n, err := PutCompressedS32(tmp[:], v)
	if err != nil {
		return errors.Overflow(w.phase, v, "compressed signed integer")
	}
	w.buf = append(w.buf, tmp[:n]...)
	return nil
}

// WriteTypeDefOrRef writes token as a TypeDefOrRef coded index.
func (w *Writer) WriteTypeDefOrRef(token uint32) error {
	v, err := EncodeTypeDefOrRef(token)
	if err != nil {
		return errors.New(w.phase, errors.KindLogic).Cause(err).
			Detail("token 0x%08x is not a TypeDef, TypeRef or TypeSpec", token).Build()
	}
	return w.WriteCompressedU32(v)
}

// CompressedU32Size returns the encoded width of v, or 0 if v is out of range.
func CompressedU32Size(v uint32) int {
	switch {
	case v < 0x80:
		return 1
	case v < 0x4000:
		return 2
	case v <= MaxCompressed:
		return 4
	default:
		return 0
	}
}

// PutCompressedU32 encodes v into dst and returns the number of bytes used.
// dst must hold at least four bytes.
func PutCompressedU32(dst []byte, v uint32) (int, error) {
	switch CompressedU32Size(v) {
	case 1:
		dst[0] = byte(v)
		return 1, nil
	case 2:
		dst[0] = byte(v>>8) | 0x80
		dst[1] = byte(v)
		return 2, nil
	case 4:
		dst[0] = byte(v>>24) | 0xC0
		dst[1] = byte(v >> 16)
		dst[2] = byte(v >> 8)
		dst[3] = byte(v)
		return 4, nil
	default:
		return 0, ErrBadCompressed
	}
}

// PutCompressedS32 encodes v into dst and returns the number of bytes used.
// dst must hold at least four bytes.
func PutCompressedS32(dst []byte, v int32) (int, error) {
	var sign uint32
	if v < 0 {
		sign = 1
	}
	u := uint32(v)
	switch {
	case v >= minSigned1 && v <= maxSigned1:
		dst[0] = byte((u<<1 | sign) & 0x7F)
		return 1, nil
	case v >= minSigned2 && v <= maxSigned2:
		enc := (u<<1 | sign) & 0x3FFF
		dst[0] = byte(enc>>8) | 0x80
		dst[1] = byte(enc)
		return 2, nil
	case v >= MinSigned && v <= MaxSigned:
		enc := (u<<1 | sign) & MaxCompressed
		dst[0] = byte(enc>>24) | 0xC0
		dst[1] = byte(enc >> 16)
		dst[2] = byte(enc >> 8)
		dst[3] = byte(enc)
		return 4, nil
	default:
		return 0, ErrBadCompressed
	}
}

// EncodeTypeDefOrRef packs a TypeDef, TypeRef or TypeSpec token as a coded index.
func EncodeTypeDefOrRef(token uint32) (uint32, error) {
	rid := token & 0x00FFFFFF
	var tag uint32
	switch token & 0xFF000000 {
	case typeDefOrRefTables[0]:
		tag = 0
	case typeDefOrRefTables[1]:
		tag = 1
	case typeDefOrRefTables[2]:
		tag = 2
	default:
		return 0, ErrBadToken
	}
	v := rid<<2 | tag
	if v > MaxCompressed {
		return 0, ErrBadCompressed
	}
	return v, nil
}
