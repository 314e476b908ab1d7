package sig

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// Param is one entry of a method signature. Index 0 is the return value.
type Param struct {
	Type       Node // nil for void and typedref
	Mods       []CustomMod
	Span       Span
	Index      int
	ByRef      bool
	TypedByRef bool
	Void       bool
	VarArg     bool // declared after the sentinel
}

// HasType reports whether the parameter carries a type node.
func (p *Param) HasType() bool { return p.Type != nil }

// MethodSig is a parsed MethodDefSig or MethodRefSig.
type MethodSig struct {
	base
	Params            []Param // Params[0] is the return value
	GenericParamCount uint32
	Flags             CallingConvention
}

// HasThis reports whether the method takes an implicit instance argument.
func (m *MethodSig) HasThis() bool { return m.Flags&ConvHasThis != 0 }

// IsGeneric reports whether the method declares generic parameters.
func (m *MethodSig) IsGeneric() bool { return m.Flags&ConvGeneric != 0 }

// Convention returns the calling convention without flags.
func (m *MethodSig) Convention() CallingConvention { return m.Flags.Kind() }

// Return returns the return-value parameter.
func (m *MethodSig) Return() *Param { return &m.Params[0] }

// ParamCount returns the number of declared parameters, excluding the return.
func (m *MethodSig) ParamCount() int { return len(m.Params) - 1 }

// VarArgStart returns the index of the first vararg parameter, or -1.
func (m *MethodSig) VarArgStart() int {
	for i := range m.Params {
		if m.Params[i].VarArg {
			return i
		}
	}
	return -1
}

// ParseMethodSig parses a method signature blob. Trailing bytes are allowed;
// use CheckMethodSig to reject them.
func ParseMethodSig(blob []byte) (*MethodSig, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	return readMethodSig(r, 0)
}

// CheckMethodSig parses blob as a method signature and verifies that nothing
// follows it.
func CheckMethodSig(blob []byte) error {
	r := binary.NewReader(blob, errors.PhaseSignature)
	if _, err := readMethodSig(r, 0); err != nil {
		return err
	}
	return expectEnd(r)
}

func readMethodSig(r *binary.Reader, depth int) (*MethodSig, error) {
	start := r.Position()
	mr, err := newMethodSigReader(r, depth)
	if err != nil {
		return nil, err
	}
	ms := &MethodSig{
		Flags:             mr.flags,
		GenericParamCount: mr.genericCount,
		Params:            make([]Param, 0, min(int(mr.paramCount)+1, 16)),
	}
	for mr.Next() {
		ms.Params = append(ms.Params, mr.Param())
	}
	if err := mr.Err(); err != nil {
		return nil, err
	}
	ms.span = finish(r, start)
	return ms, nil
}

// MethodSigReader walks a method signature one parameter at a time.
// The first call to Next yields the return value.
type MethodSigReader struct {
	r            *binary.Reader
	err          error
	param        Param
	depth        int
	next         int
	paramCount   uint32
	genericCount uint32
	flags        CallingConvention
	inVarArg     bool
}

// NewMethodSigReader reads the signature header of blob and positions the
// reader before the return value.
func NewMethodSigReader(blob []byte) (*MethodSigReader, error) {
	return newMethodSigReader(binary.NewReader(blob, errors.PhaseSignature), 0)
}

func newMethodSigReader(r *binary.Reader, depth int) (*MethodSigReader, error) {
	if depth > maxDepth {
		return nil, r.Errorf("signature nesting deeper than %d", maxDepth)
	}
	pos := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	flags := CallingConvention(b)
	if !flags.IsMethod() {
		return nil, errors.UnknownTag(errors.PhaseSignature, pos, "method calling convention", b)
	}
	mr := &MethodSigReader{r: r, flags: flags, depth: depth}
	if flags&ConvGeneric != 0 {
		if mr.genericCount, err = r.ReadCompressedU32(); err != nil {
			return nil, err
		}
	}
	if mr.paramCount, err = r.ReadCompressedU32(); err != nil {
		return nil, err
	}
	return mr, nil
}

// Flags returns the calling convention byte.
func (mr *MethodSigReader) Flags() CallingConvention { return mr.flags }

// GenericParamCount returns the number of generic parameters.
func (mr *MethodSigReader) GenericParamCount() uint32 { return mr.genericCount }

// ParamCount returns the declared parameter count, excluding the return.
func (mr *MethodSigReader) ParamCount() uint32 { return mr.paramCount }

// Index returns the index of the current parameter; 0 is the return.
func (mr *MethodSigReader) Index() int { return mr.next - 1 }

// Position returns the byte position of the underlying cursor.
func (mr *MethodSigReader) Position() int { return mr.r.Position() }

// Param returns the parameter read by the last successful Next.
func (mr *MethodSigReader) Param() Param { return mr.param }

// Err returns the first error encountered by Next.
func (mr *MethodSigReader) Err() error { return mr.err }

// Next advances to the next parameter. It returns false once all parameters
// have been read or an error occurred.
func (mr *MethodSigReader) Next() bool {
	if mr.err != nil || mr.next > int(mr.paramCount) {
		return false
	}
	p, err := mr.readParam(mr.next)
	if err != nil {
		mr.err = err
		return false
	}
	mr.param = p
	mr.next++
	return true
}

func (mr *MethodSigReader) readParam(index int) (Param, error) {
	r := mr.r
	p := Param{Index: index}

	if b, err := r.PeekByte(); err != nil {
		return p, err
	} else if ElementType(b) == ElemSentinel {
		if index == 0 || mr.inVarArg {
			return p, r.Errorf("unexpected sentinel before parameter %d", index)
		}
		_, _ = r.ReadByte()
		mr.inVarArg = true
	}
	p.VarArg = mr.inVarArg

	start := r.Position()
	mods, err := readMods(r)
	if err != nil {
		return p, err
	}
	p.Mods = mods

	b, err := r.PeekByte()
	if err != nil {
		return p, err
	}
	switch ElementType(b) {
	case ElemTypedByRef:
		_, _ = r.ReadByte()
		p.TypedByRef = true
		p.Span = finish(r, start)
		return p, nil
	case ElemByRef:
		_, _ = r.ReadByte()
		p.ByRef = true
	}

	if b, err = r.PeekByte(); err != nil {
		return p, err
	}
	if ElementType(b) == ElemVoid {
		if index != 0 || p.ByRef {
			return p, r.Errorf("void in parameter %d", index)
		}
		_, _ = r.ReadByte()
		p.Void = true
		p.Span = finish(r, start)
		return p, nil
	}

	if p.Type, err = readType(r, mr.depth+1); err != nil {
		return p, err
	}
	p.Span = finish(r, start)
	return p, nil
}

// FieldSig is a parsed field signature.
type FieldSig struct {
	Type Node
	Mods []CustomMod
}

// ParseFieldSig parses a field signature blob.
func ParseFieldSig(blob []byte) (*FieldSig, error) {
	r := binary.NewReader(blob, errors.PhaseSignature)
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if CallingConvention(b) != ConvField {
		return nil, errors.UnknownTag(errors.PhaseSignature, 0, "field signature marker", b)
	}
	fs := &FieldSig{}
	if fs.Mods, err = readMods(r); err != nil {
		return nil, err
	}
	if fs.Type, err = readType(r, 0); err != nil {
		return nil, err
	}
	if err := expectEnd(r); err != nil {
		return nil, err
	}
	return fs, nil
}
