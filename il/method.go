package il

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/sig"
)

// Method header flags (ECMA-335 II.25.4.4). The low two bits select the
// header format.
const (
	FlagTinyFormat uint16 = 0x2
	FlagFatFormat  uint16 = 0x3
	FlagFormatMask uint16 = 0x3
	FlagMoreSects  uint16 = 0x8
	FlagInitLocals uint16 = 0x10
)

// DefaultMaxStack is the evaluation stack depth implied by a tiny header.
const DefaultMaxStack = 8

const fatHeaderSize = 12

// Header is the method header in fat form. Tiny headers are widened on decode.
type Header struct {
	Flags          uint16
	MaxStack       uint16
	CodeSize       uint32
	LocalVarSigTok sig.Token
}

// InitLocals reports whether locals are zero-initialised.
func (h *Header) InitLocals() bool { return h.Flags&FlagInitLocals != 0 }

// Method is a decoded method body. Instructions live in an arena addressed
// by Handle; the code order is a separate list of handles, so inserting
// never moves or copies an existing instruction.
//
// Branch targets and clause boundaries refer to handles. Inserting before an
// instruction moves the references that reached it onto the inserted block.
//
// A Method must not be mutated concurrently.
type Method struct {
	Header
	Clauses []Clause

	// OrigHeaderSize is the size of the decoded header: 1 for tiny, 12 for fat,
	// 0 for a method built by NewMethod.
	OrigHeaderSize int

	insts []Instruction
	order []Handle
	pos   []int
}

// NewMethod returns a method whose body is a single ret.
func NewMethod() *Method {
	m := &Method{Header: Header{MaxStack: DefaultMaxStack}}
	h := m.add(Instruction{Op: OpRet, OrigOffset: 0})
	m.order = []Handle{h}
	m.reindex()
	m.RecalculateOffsets()
	return m
}

func (m *Method) add(in Instruction) Handle {
	h := Handle(len(m.insts))
	m.insts = append(m.insts, in)
	return h
}

func (m *Method) reindex() {
	if cap(m.pos) >= len(m.insts) {
		m.pos = m.pos[:len(m.insts)]
	} else {
		m.pos = make([]int, len(m.insts))
	}
	for i := range m.pos {
		m.pos[i] = -1
	}
	for i, h := range m.order {
		m.pos[h] = i
	}
}

func (m *Method) valid(h Handle) bool {
	return h >= 0 && int(h) < len(m.pos)
}

// Len returns the number of instructions in code order, including any
// end-of-code label.
func (m *Method) Len() int { return len(m.order) }

// Handles returns a snapshot of the code order.
func (m *Method) Handles() []Handle {
	return append([]Handle(nil), m.order...)
}

// At returns the handle at position i.
func (m *Method) At(i int) Handle { return m.order[i] }

// Get returns the instruction for h. The pointer stays valid until the next
// insertion.
func (m *Method) Get(h Handle) *Instruction { return &m.insts[h] }

// Index returns the current position of h, or -1.
func (m *Method) Index(h Handle) int {
	if !m.valid(h) {
		return -1
	}
	return m.pos[h]
}

// Next returns the handle following h in code order, or NoHandle.
func (m *Method) Next(h Handle) Handle {
	i := m.Index(h)
	if i < 0 || i+1 >= len(m.order) {
		return NoHandle
	}
	return m.order[i+1]
}

// Target returns the i-th branch target of h.
func (m *Method) Target(h Handle, i int) Handle {
	return m.insts[h].Targets[i]
}

// FindOffset returns the instruction at the current offset.
func (m *Method) FindOffset(offset int) (Handle, bool) {
	for _, h := range m.order {
		if m.insts[h].Offset == offset && m.insts[h].Op != OpLabel {
			return h, true
		}
	}
	return NoHandle, false
}

// FindOrigOffset returns the decoded instruction that started at offset in
// the original body.
func (m *Method) FindOrigOffset(offset int) (Handle, bool) {
	if offset < 0 {
		return NoHandle, false
	}
	for _, h := range m.order {
		if m.insts[h].OrigOffset == offset && m.insts[h].Op != OpLabel {
			return h, true
		}
	}
	return NoHandle, false
}

// IncreaseMaxStack raises the declared stack depth by n.
func (m *Method) IncreaseMaxStack(n uint16) {
	m.MaxStack += n
}

// SetMinMaxStack raises the declared stack depth to at least n.
func (m *Method) SetMinMaxStack(n uint16) {
	if m.MaxStack < n {
		m.MaxStack = n
	}
}

// SetLocals replaces the local variable signature token. Locals added by a
// rewrite are assumed to need zero-initialisation, so InitLocals is set.
func (m *Method) SetLocals(tok sig.Token) {
	m.LocalVarSigTok = tok
	m.Flags |= FlagInitLocals
}

// HasSequenceAt reports whether the instructions starting at the decoded
// instruction with original offset origOffset match seq operation by
// operation. It detects a body that was already rewritten.
func (m *Method) HasSequenceAt(origOffset int, seq []Instruction) bool {
	ops := make([]Opcode, len(seq))
	for i := range seq {
		ops[i] = seq[i].Op
	}
	hs, ok := m.SequenceAt(origOffset, ops...)
	if !ok {
		return false
	}
	for j, h := range hs {
		if !m.insts[h].Equivalent(&seq[j]) {
			return false
		}
	}
	return true
}

// SequenceAt returns the handles of the instructions starting at original
// offset origOffset when their operations are exactly ops. Operands are not
// compared.
func (m *Method) SequenceAt(origOffset int, ops ...Opcode) ([]Handle, bool) {
	h, ok := m.FindOrigOffset(origOffset)
	if !ok {
		return nil, false
	}
	i := m.pos[h]
	if i+len(ops) > len(m.order) {
		return nil, false
	}
	hs := make([]Handle, len(ops))
	for j, op := range ops {
		hs[j] = m.order[i+j]
		if m.insts[hs[j]].Op != op {
			return nil, false
		}
	}
	return hs, true
}

func (m *Method) checkHandle(h Handle) error {
	if !m.valid(h) || m.pos[h] < 0 {
		return errors.New(errors.PhaseSplice, errors.KindLogic).
			Value(h).
			Detail("handle %d is not part of the method", h).
			Build()
	}
	return nil
}
