package sig

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// Compressed integer limits.
const (
	MaxCompressedUnsigned = binary.MaxCompressed
	MinCompressedSigned   = binary.MinSigned
	MaxCompressedSigned   = binary.MaxSigned
)

// Sentinel causes reported by the codec. Match them with errors.Is.
var (
	ErrTruncated     = binary.ErrTruncated
	ErrBadCompressed = binary.ErrBadCompressed
	ErrBadToken      = binary.ErrBadToken
)

// ReadCompressedUnsigned decodes a compressed unsigned integer at the start of data
// and returns the value and the number of bytes consumed.
func ReadCompressedUnsigned(data []byte) (uint32, int, error) {
	r := binary.NewReader(data, errors.PhaseSignature)
	v, err := r.ReadCompressedU32()
	return v, r.Position(), err
}

// ReadCompressedSigned decodes a compressed signed integer at the start of data.
func ReadCompressedSigned(data []byte) (int32, int, error) {
	r := binary.NewReader(data, errors.PhaseSignature)
	v, err := r.ReadCompressedS32()
	return v, r.Position(), err
}

// PutCompressedUnsigned encodes v into dst, which must hold four bytes.
func PutCompressedUnsigned(dst []byte, v uint32) (int, error) {
	n, err := binary.PutCompressedU32(dst, v)
	if err != nil {
		return 0, errors.Overflow(errors.PhaseSignature, v, "compressed unsigned integer")
	}
	return n, nil
}

// PutCompressedSigned encodes v into dst, which must hold four bytes.
func PutCompressedSigned(dst []byte, v int32) (int, error) {
	n, err := binary.PutCompressedS32(dst, v)
	if err != nil {
		return 0, errors.Overflow(errors.PhaseSignature, v, "compressed signed integer")
	}
	return n, nil
}

// AppendCompressedUnsigned appends the encoding of v to dst.
func AppendCompressedUnsigned(dst []byte, v uint32) ([]byte, error) {
	var tmp [4]byte
	n, err := PutCompressedUnsigned(tmp[:], v)
	if err != nil {
		return dst, err
	}
	return append(dst, tmp[:n]...), nil
}

// AppendCompressedSigned appends the encoding of v to dst.
func AppendCompressedSigned(dst []byte, v int32) ([]byte, error) {
	var tmp [4]byte
	n, err := PutCompressedSigned(tmp[:], v)
	if err != nil {
		return dst, err
	}
	return append(dst, tmp[:n]...), nil
}

// CompressedUnsignedSize returns the encoded width of v: 1, 2 or 4, or 0 when v
// cannot be encoded.
func CompressedUnsignedSize(v uint32) int {
	return binary.CompressedU32Size(v)
}

// EncodeTypeDefOrRef packs a TypeDef, TypeRef or TypeSpec token as a coded index.
// Any other table is a logic error.
func EncodeTypeDefOrRef(t Token) (uint32, error) {
	v, err := binary.EncodeTypeDefOrRef(uint32(t))
	if err != nil {
		return 0, errors.New(errors.PhaseSignature, errors.KindLogic).Cause(err).
			Detail("token %s (%s) is not TypeDefOrRef encodable", t, t.Table()).Build()
	}
	return v, nil
}

// DecodeTypeDefOrRef unpacks a coded index. Table selector 3 is a format error.
func DecodeTypeDefOrRef(v uint32) (Token, error) {
	if v&3 == 3 {
		return 0, errors.New(errors.PhaseSignature, errors.KindFormat).Cause(ErrBadToken).
			Detail("coded index 0x%x", v).Build()
	}
	tables := [3]Table{TableTypeDef, TableTypeRef, TableTypeSpec}
	return NewToken(tables[v&3], v>>2), nil
}

// AppendTypeDefOrRef appends the compressed coded index of t to dst.
func AppendTypeDefOrRef(dst []byte, t Token) ([]byte, error) {
	v, err := EncodeTypeDefOrRef(t)
	if err != nil {
		return dst, err
	}
	return AppendCompressedUnsigned(dst, v)
}
