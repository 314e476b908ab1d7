package sig

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

type typeState uint8

const (
	typeEmpty typeState = iota
	typeArgs            // generic class waiting for arguments
	typeDone
)

// TypeWriter writes exactly one type into a shared buffer. Composite types
// hand out child writers that must be completed before the parent continues.
type TypeWriter struct {
	w        *binary.Writer
	child    *TypeWriter
	argsLeft uint32
	state    typeState
}

func newTypeWriter(w *binary.Writer) *TypeWriter {
	return &TypeWriter{w: w}
}

func (tw *TypeWriter) begin() error {
	if tw.state != typeEmpty {
		return errors.Logic(errors.PhaseSignature, "type already written")
	}
	return nil
}

// Primitive writes a leaf type such as ElemI4 or ElemString.
func (tw *TypeWriter) Primitive(e ElementType) error {
	if err := tw.begin(); err != nil {
		return err
	}
	if !e.IsPrimitive() {
		return errors.Logic(errors.PhaseSignature, "%s is not a primitive type", e)
	}
	tw.w.Byte(byte(e))
	tw.state = typeDone
	return nil
}

// Class writes a reference type by token.
func (tw *TypeWriter) Class(t Token) error {
	return tw.named(ElemClass, t)
}

// ValueType writes a value type by token.
func (tw *TypeWriter) ValueType(t Token) error {
	return tw.named(ElemValueType, t)
}

func (tw *TypeWriter) named(e ElementType, t Token) error {
	if err := tw.begin(); err != nil {
		return err
	}
	tw.w.Byte(byte(e))
	if err := tw.w.WriteTypeDefOrRef(uint32(t)); err != nil {
		return err
	}
	tw.state = typeDone
	return nil
}

// GenericClass writes a generic class instantiation header. Exactly n
// arguments must follow through Arg.
func (tw *TypeWriter) GenericClass(t Token, n uint32) error {
	if err := tw.begin(); err != nil {
		return err
	}
	if n == 0 {
		return errors.Logic(errors.PhaseSignature, "generic instantiation needs arguments")
	}
	tw.w.Byte(byte(ElemGenericInst))
	tw.w.Byte(byte(ElemClass))
	if err := tw.w.WriteTypeDefOrRef(uint32(t)); err != nil {
		return err
	}
	if err := tw.w.WriteCompressedU32(n); err != nil {
		return err
	}
	tw.argsLeft = n
	tw.state = typeArgs
	return nil
}

// Arg returns the writer for the next generic argument.
func (tw *TypeWriter) Arg() (*TypeWriter, error) {
	if tw.state != typeArgs {
		return nil, errors.Logic(errors.PhaseSignature, "type is not a generic instantiation")
	}
	if err := tw.closeChild(); err != nil {
		return nil, err
	}
	if tw.argsLeft == 0 {
		return nil, errors.Logic(errors.PhaseSignature, "all generic arguments written")
	}
	tw.argsLeft--
	tw.child = newTypeWriter(tw.w)
	return tw.child, nil
}

// MethodVar writes !!i.
func (tw *TypeWriter) MethodVar(i uint32) error {
	return tw.genericVar(ElemMVar, i)
}

// TypeVar writes !i.
func (tw *TypeWriter) TypeVar(i uint32) error {
	return tw.genericVar(ElemVar, i)
}

func (tw *TypeWriter) genericVar(e ElementType, i uint32) error {
	if err := tw.begin(); err != nil {
		return err
	}
	tw.w.Byte(byte(e))
	if err := tw.w.WriteCompressedU32(i); err != nil {
		return err
	}
	tw.state = typeDone
	return nil
}

// Raw copies an already encoded type verbatim.
func (tw *TypeWriter) Raw(span []byte) error {
	if err := tw.begin(); err != nil {
		return err
	}
	if len(span) == 0 {
		return errors.Logic(errors.PhaseSignature, "empty type span")
	}
	tw.w.WriteBytes(span)
	tw.state = typeDone
	return nil
}

func (tw *TypeWriter) closeChild() error {
	if tw.child == nil {
		return nil
	}
	if err := tw.child.complete(); err != nil {
		return err
	}
	tw.child = nil
	return nil
}

func (tw *TypeWriter) complete() error {
	switch tw.state {
	case typeEmpty:
		return errors.Logic(errors.PhaseSignature, "type not written")
	case typeArgs:
		if err := tw.closeChild(); err != nil {
			return err
		}
		if tw.argsLeft != 0 {
			return errors.Logic(errors.PhaseSignature, "%d generic arguments missing", tw.argsLeft)
		}
		tw.state = typeDone
	}
	return nil
}

// sequence writes a count-prefixed run of types and checks the count on finish.
type sequence struct {
	w    *binary.Writer
	cur  *TypeWriter
	what string
	want uint32
	have uint32
}

func (s *sequence) close() error {
	if s.cur == nil {
		return nil
	}
	if err := s.cur.complete(); err != nil {
		return err
	}
	s.cur = nil
	return nil
}

func (s *sequence) reserve() error {
	if err := s.close(); err != nil {
		return err
	}
	if s.have >= s.want {
		return errors.Logic(errors.PhaseSignature, "more than %d %s written", s.want, s.what)
	}
	s.have++
	return nil
}

func (s *sequence) next() (*TypeWriter, error) {
	if err := s.reserve(); err != nil {
		return nil, err
	}
	s.cur = newTypeWriter(s.w)
	return s.cur, nil
}

func (s *sequence) raw(span []byte) error {
	if err := s.reserve(); err != nil {
		return err
	}
	if len(span) == 0 {
		return errors.Logic(errors.PhaseSignature, "empty %s span", s.what)
	}
	s.w.WriteBytes(span)
	return nil
}

func (s *sequence) finish() ([]byte, error) {
	if err := s.close(); err != nil {
		return nil, err
	}
	if s.have != s.want {
		return nil, errors.Logic(errors.PhaseSignature, "%d of %d %s written", s.have, s.want, s.what)
	}
	return s.w.Bytes(), nil
}

func newSequence(marker byte, count uint32, what string) (*sequence, error) {
	w := binary.NewWriter(errors.PhaseSignature)
	w.Byte(marker)
	if err := w.WriteCompressedU32(count); err != nil {
		return nil, err
	}
	return &sequence{w: w, want: count, what: what}, nil
}

// MethodSigWriter builds a method signature whose parameter counts are fixed
// up front. The return value is written first, then each parameter in order.
type MethodSigWriter struct {
	seq *sequence
	err error
}

// NewMethodSigWriter starts a default-convention method signature.
func NewMethodSigWriter(hasThis bool, paramCount, genericParamCount uint32) *MethodSigWriter {
	flags := ConvDefault
	if hasThis {
		flags |= ConvHasThis
	}
	if genericParamCount > 0 {
		flags |= ConvGeneric
	}
	w := binary.NewWriter(errors.PhaseSignature)
	w.Byte(byte(flags))
	mw := &MethodSigWriter{}
	if genericParamCount > 0 {
		mw.err = w.WriteCompressedU32(genericParamCount)
	}
	if mw.err == nil {
		mw.err = w.WriteCompressedU32(paramCount)
	}
	// the return value occupies one extra slot
	mw.seq = &sequence{w: w, want: paramCount + 1, what: "parameters"}
	return mw
}

// VoidReturn writes a void return value.
func (mw *MethodSigWriter) VoidReturn() error {
	if mw.err != nil {
		return mw.err
	}
	if mw.seq.have != 0 {
		return errors.Logic(errors.PhaseSignature, "void is only valid as the return value")
	}
	return mw.seq.raw([]byte{byte(ElemVoid)})
}

// Param returns the writer for the next parameter; the first call writes the
// return value.
func (mw *MethodSigWriter) Param() (*TypeWriter, error) {
	if mw.err != nil {
		return nil, mw.err
	}
	return mw.seq.next()
}

// ParamBytes writes the next parameter verbatim, including any modifiers.
func (mw *MethodSigWriter) ParamBytes(span []byte) error {
	if mw.err != nil {
		return mw.err
	}
	return mw.seq.raw(span)
}

// Bytes validates that every parameter was written and returns the blob.
func (mw *MethodSigWriter) Bytes() ([]byte, error) {
	if mw.err != nil {
		return nil, mw.err
	}
	return mw.seq.finish()
}

// MethodSpecWriter builds a generic method instantiation blob.
type MethodSpecWriter struct {
	seq *sequence
	err error
}

// NewMethodSpecWriter starts a method spec with count type arguments.
func NewMethodSpecWriter(count uint32) *MethodSpecWriter {
	if count == 0 {
		return &MethodSpecWriter{err: errors.Logic(errors.PhaseSignature, "method spec needs arguments")}
	}
	seq, err := newSequence(byte(ConvGenericInst), count, "type arguments")
	return &MethodSpecWriter{seq: seq, err: err}
}

// Arg returns the writer for the next type argument.
func (sw *MethodSpecWriter) Arg() (*TypeWriter, error) {
	if sw.err != nil {
		return nil, sw.err
	}
	return sw.seq.next()
}

// ArgBytes writes the next type argument verbatim.
func (sw *MethodSpecWriter) ArgBytes(span []byte) error {
	if sw.err != nil {
		return sw.err
	}
	return sw.seq.raw(span)
}

// Bytes validates the argument count and returns the blob.
func (sw *MethodSpecWriter) Bytes() ([]byte, error) {
	if sw.err != nil {
		return nil, sw.err
	}
	return sw.seq.finish()
}

// EncodeMethodSpec builds a method spec from already encoded argument spans.
func EncodeMethodSpec(args ...[]byte) ([]byte, error) {
	sw := NewMethodSpecWriter(uint32(len(args)))
	for _, a := range args {
		if err := sw.ArgBytes(a); err != nil {
			return nil, err
		}
	}
	return sw.Bytes()
}

// LocalsWriter builds a local variable signature.
type LocalsWriter struct {
	seq *sequence
	err error
}

// NewLocalsWriter starts a locals signature with count locals.
func NewLocalsWriter(count uint32) *LocalsWriter {
	seq, err := newSequence(byte(ConvLocalSig), count, "locals")
	return &LocalsWriter{seq: seq, err: err}
}

// Local returns the writer for the next local's type.
func (lw *LocalsWriter) Local() (*TypeWriter, error) {
	if lw.err != nil {
		return nil, lw.err
	}
	return lw.seq.next()
}

// LocalBytes writes the next local verbatim, including modifiers.
func (lw *LocalsWriter) LocalBytes(span []byte) error {
	if lw.err != nil {
		return lw.err
	}
	return lw.seq.raw(span)
}

// Bytes validates the local count and returns the blob.
func (lw *LocalsWriter) Bytes() ([]byte, error) {
	if lw.err != nil {
		return nil, lw.err
	}
	return lw.seq.finish()
}
