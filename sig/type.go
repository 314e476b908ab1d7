package sig

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// maxDepth bounds type nesting so hostile blobs cannot exhaust the stack.
const maxDepth = 64

// ParseType parses one type starting at pos and returns it with the
// position just past it.
func ParseType(blob []byte, pos int) (Node, int, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	if err := r.Seek(pos); err != nil {
		return nil, pos, err
	}
	n, err := readType(r, 0)
	if err != nil {
		return nil, pos, err
	}
	return n, r.Position(), nil
}

// ParseTypeSpec parses a TypeSpec blob: exactly one type and nothing after it.
func ParseTypeSpec(blob []byte) (Node, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	n, err := readType(r, 0)
	if err != nil {
		return nil, err
	}
	if err := expectEnd(r); err != nil {
		return nil, err
	}
	return n, nil
}

// GenericInstOf returns n as a generic instantiation.
// Any other kind is a logic error.
func GenericInstOf(n Node) (*GenericInst, error) {
	g, ok := n.(*GenericInst)
	if !ok {
		kind := "nil"
		if n != nil {
			kind = n.Kind().String()
		}
		return nil, errors.Logic(errors.PhaseSignature, "%s is not a generic instantiation", kind)
	}
	return g, nil
}

// TypeArgSpans returns the verbatim byte spans of a generic instantiation's arguments.
func TypeArgSpans(n Node) ([][]byte, error) {
	g, err := GenericInstOf(n)
	if err != nil {
		return nil, err
	}
	spans := make([][]byte, len(g.Args))
	for i, a := range g.Args {
		spans[i] = a.Span().Bytes
	}
	return spans, nil
}

func expectEnd(r *binary.Reader) error {
	if r.Len() != 0 {
		return r.Errorf("%d trailing bytes", r.Len())
	}
	return nil
}

func finish(r *binary.Reader, start int) Span {
	return Span{Offset: start, Bytes: r.Slice(start, r.Position())}
}

func readType(r *binary.Reader, depth int) (Node, error) {
	if depth > maxDepth {
		return nil, r.Errorf("type nesting deeper than %d", maxDepth)
	}
	start := r.Position()
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	elem := ElementType(tag)

	if elem.IsPrimitive() {
		n := &Primitive{Elem: elem}
		n.span = finish(r, start)
		return n, nil
	}

	switch elem {
	case ElemClass, ElemValueType:
		tok, err := r.ReadTypeDefOrRef()
		if err != nil {
			return nil, err
		}
		n := &Named{Elem: elem, Token: Token(tok)}
		n.span = finish(r, start)
		return n, nil

	case ElemArray:
		inner, err := readType(r, depth+1)
		if err != nil {
			return nil, err
		}
		shape, err := readArrayShape(r)
		if err != nil {
			return nil, err
		}
		n := &Array{Elem: inner, Shape: shape}
		n.span = finish(r, start)
		return n, nil

	case ElemGenericInst:
		return readGenericInst(r, start, depth)

	case ElemPtr, ElemSZArray:
		mods, err := readMods(r)
		if err != nil {
			return nil, err
		}
		n := &Pointer{Elem: elem, Mods: mods}
		next, err := r.PeekByte()
		if err != nil {
			return nil, err
		}
		if ElementType(next) == ElemVoid {
			if elem != ElemPtr {
				return nil, r.Errorf("void element in %s", elem)
			}
			_, _ = r.ReadByte()
		} else if n.Target, err = readType(r, depth+1); err != nil {
			return nil, err
		}
		n.span = finish(r, start)
		return n, nil

	case ElemByRef:
		target, err := readType(r, depth+1)
		if err != nil {
			return nil, err
		}
		n := &Pointer{Elem: elem, Target: target}
		n.span = finish(r, start)
		return n, nil

	case ElemVar, ElemMVar:
		idx, err := r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		n := &GenericVar{Index: idx, Method: elem == ElemMVar}
		n.span = finish(r, start)
		return n, nil

	case ElemFnPtr:
		ms, err := readMethodSig(r, depth+1)
		if err != nil {
			return nil, err
		}
		n := &FnPtr{Sig: ms}
		n.span = finish(r, start)
		return n, nil
	}

	return nil, errors.UnknownTag(errors.PhaseSignature, start, "element type", tag)
}

func readGenericInst(r *binary.Reader, start, depth int) (Node, error) {
	kindPos := r.Position()
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if k := ElementType(kind); k != ElemClass && k != ElemValueType {
		return nil, errors.UnknownTag(errors.PhaseSignature, kindPos, "generic instantiation kind", kind)
	}
	tok, err := r.ReadTypeDefOrRef()
	if err != nil {
		return nil, err
	}
	count, err := r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, r.Errorf("generic instantiation with no arguments")
	}
	n := &GenericInst{Base: ElementType(kind), Token: Token(tok)}
	for i := uint32(0); i < count; i++ {
		arg, err := readType(r, depth+1)
		if err != nil {
			return nil, err
		}
		n.Args = append(n.Args, arg)
	}
	n.span = finish(r, start)
	return n, nil
}

func readArrayShape(r *binary.Reader) (ArrayShape, error) {
	var s ArrayShape
	var err error
	if s.Rank, err = r.ReadCompressedU32(); err != nil {
		return s, err
	}
	numSizes, err := r.ReadCompressedU32()
	if err != nil {
		return s, err
	}
	if numSizes > s.Rank {
		return s, r.Errorf("%d sizes for rank %d", numSizes, s.Rank)
	}
	for i := uint32(0); i < numSizes; i++ {
		v, err := r.ReadCompressedU32()
		if err != nil {
			return s, err
		}
		s.Sizes = append(s.Sizes, v)
	}
	numLo, err := r.ReadCompressedU32()
	if err != nil {
		return s, err
	}
	if numLo > s.Rank {
		return s, r.Errorf("%d lower bounds for rank %d", numLo, s.Rank)
	}
	for i := uint32(0); i < numLo; i++ {
		v, err := r.ReadCompressedS32()
		if err != nil {
			return s, err
		}
		s.LoBounds = append(s.LoBounds, v)
	}
	return s, nil
}

// readMods consumes any run of modreq/modopt prefixes.
func readMods(r *binary.Reader) ([]CustomMod, error) {
	var mods []CustomMod
	for r.Len() > 0 {
		b, _ := r.PeekByte()
		e := ElementType(b)
		if e != ElemCModReqd && e != ElemCModOpt {
			break
		}
		_, _ = r.ReadByte()
		tok, err := r.ReadTypeDefOrRef()
		if err != nil {
			return nil, err
		}
		mods = append(mods, CustomMod{Token: Token(tok), Required: e == ElemCModReqd})
	}
	return mods, nil
}
