package sig

import (
	"strconv"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// Local is one local variable slot.
type Local struct {
	Type       Node // nil for typedref
	Mods       []CustomMod
	Span       Span
	Pinned     bool
	ByRef      bool
	TypedByRef bool
}

// LocalsSig is a parsed LocalVarSig.
type LocalsSig struct {
	base
	Locals []Local
}

// ParseLocals parses a local variable signature blob.
func ParseLocals(blob []byte) (*LocalsSig, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	count, err := readLocalsHeader(r)
	if err != nil {
		return nil, err
	}
	ls := &LocalsSig{Locals: make([]Local, 0, min(int(count), 64))}
	for i := uint32(0); i < count; i++ {
		l, err := readLocal(r)
		if err != nil {
			return nil, err
		}
		ls.Locals = append(ls.Locals, l)
	}
	if err := expectEnd(r); err != nil {
		return nil, err
	}
	ls.span = finish(r, 0)
	return ls, nil
}

// ParseLocal parses a single local variable type, as appended by AppendLocals.
func ParseLocal(blob []byte) (Local, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	l, err := readLocal(r)
	if err != nil {
		return l, err
	}
	return l, expectEnd(r)
}

func readLocalsHeader(r *binary.Reader) (uint32, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if CallingConvention(b) != ConvLocalSig {
		return 0, errors.UnknownTag(errors.PhaseSignature, 0, "locals signature marker", b)
	}
	return r.ReadCompressedU32()
}

func readLocal(r *binary.Reader) (Local, error) {
	var l Local
	start := r.Position()

	for r.Len() > 0 {
		b, _ := r.PeekByte()
		switch ElementType(b) {
		case ElemCModReqd, ElemCModOpt:
			mods, err := readMods(r)
			if err != nil {
				return l, err
			}
			l.Mods = append(l.Mods, mods...)
			continue
		case ElemPinned:
			_, _ = r.ReadByte()
			l.Pinned = true
			continue
		}
		break
	}

	b, err := r.PeekByte()
	if err != nil {
		return l, err
	}
	switch ElementType(b) {
	case ElemTypedByRef:
		_, _ = r.ReadByte()
		l.TypedByRef = true
		l.Span = finish(r, start)
		return l, nil
	case ElemByRef:
		_, _ = r.ReadByte()
		l.ByRef = true
	}
	if l.Type, err = readType(r, 0); err != nil {
		return l, err
	}
	l.Span = finish(r, start)
	return l, nil
}

// AppendLocals returns a locals signature holding every local of blob followed
// by the given local types, plus the index of the first appended local.
// An empty blob stands for a method without locals. Existing locals keep
// their bytes and order.
func AppendLocals(blob []byte, locals ...[]byte) ([]byte, uint32, error) {
	var (
		count uint32
		body  []byte
	)
	if len(blob) > 0 {
		if _, err := ParseLocals(blob); err != nil {
			return nil, 0, err
		}
		r := binary.NewReader(blob, errors.PhaseSignature)
		n, err := readLocalsHeader(r)
		if err != nil {
			return nil, 0, err
		}
		count = n
		body = blob[r.Position():]
	}
	for i, l := range locals {
		if _, err := ParseLocal(l); err != nil {
			return nil, 0, errors.New(errors.PhaseSignature, errors.KindFormat).
				Path("local[" + strconv.Itoa(i) + "]").Cause(err).Detail("appended local").Build()
		}
	}

	total := uint64(count) + uint64(len(locals))
	if total > 0xFFFE {
		return nil, 0, errors.Overflow(errors.PhaseSignature, total, "local variable count")
	}

	w := binary.NewWriterSize(errors.PhaseSignature, len(blob)+len(locals)*4+4)
	w.Byte(byte(ConvLocalSig))
	if err := w.WriteCompressedU32(uint32(total)); err != nil {
		return nil, 0, err
	}
	w.WriteBytes(body)
	for _, l := range locals {
		w.WriteBytes(l)
	}
	return w.Bytes(), count, nil
}
