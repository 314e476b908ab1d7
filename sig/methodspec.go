package sig

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// MethodSpec is the instantiation blob of a generic method.
type MethodSpec struct {
	base
	Args []Node
}

// ArgSpans returns the verbatim byte span of every type argument.
func (m *MethodSpec) ArgSpans() [][]byte {
	spans := make([][]byte, len(m.Args))
	for i, a := range m.Args {
		spans[i] = a.Span().Bytes
	}
	return spans
}

// ParseMethodSpec parses a MethodSpec blob: the 0x0A marker, an argument
// count and that many types.
func ParseMethodSpec(blob []byte) (*MethodSpec, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if CallingConvention(b) != ConvGenericInst {
		return nil, errors.UnknownTag(errors.PhaseSignature, 0, "method spec marker", b)
	}
	count, err := r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, r.Errorf("method spec with no arguments")
	}
	ms := &MethodSpec{}
	for i := uint32(0); i < count; i++ {
		arg, err := readType(r, 0)
		if err != nil {
			return nil, err
		}
		ms.Args = append(ms.Args, arg)
	}
	if err := expectEnd(r); err != nil {
		return nil, err
	}
	ms.span = finish(r, 0)
	return ms, nil
}

// MethodSpecArgSpans parses blob and returns its argument spans.
func MethodSpecArgSpans(blob []byte) ([][]byte, error) {
	ms, err := ParseMethodSpec(blob)
	if err != nil {
		return nil, err
	}
	return ms.ArgSpans(), nil
}
