package il

import (
	"math"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// ILMapEntry maps an original instruction offset to its offset in the
// rewritten body.
type ILMapEntry struct {
	Old int
	New int
}

func (m *Method) offsetOf(h Handle) int {
	return m.insts[h].Offset
}

// RecalculateOffsets assigns every instruction its offset as the running sum
// of instruction sizes and recomputes branch displacements from the targets'
// new offsets. CodeSize is updated to match.
func (m *Method) RecalculateOffsets() {
	pos := 0
	for _, h := range m.order {
		in := &m.insts[h]
		if in.Op == OpSwitch {
			in.Operand = int64(len(in.Targets))
		}
		in.Offset = pos
		pos += in.Size()
	}
	m.CodeSize = uint32(pos)

	for _, h := range m.order {
		in := &m.insts[h]
		if in.Op == OpSwitch || !in.Op.IsBranch() || len(in.Targets) == 0 {
			continue
		}
		in.Operand = int64(m.offsetOf(in.Targets[0]) - (in.Offset + in.Size()))
	}
}

// CodeLen returns the code size implied by the current instruction list.
func (m *Method) CodeLen() int {
	n := 0
	for _, h := range m.order {
		in := &m.insts[h]
		if in.Op == OpSwitch {
			n += in.Op.Size() + 4 + 4*len(in.Targets)
			continue
		}
		n += in.Size()
	}
	return n
}

// Size returns the encoded size of the method: fat header, code and, when
// there are clauses, the aligned exception section.
func (m *Method) Size() int {
	n := fatHeaderSize + m.CodeLen()
	if len(m.Clauses) > 0 {
		n = (n+3)&^3 + m.sectionSize()
	}
	return n
}

// Encode recalculates offsets and writes the method with a fat header and,
// if there are clauses, a single fat exception section.
func (m *Method) Encode() ([]byte, error) {
	m.RecalculateOffsets()

	m.Flags &^= FlagFormatMask | FlagMoreSects
	if len(m.Clauses) > 0 {
		m.Flags |= FlagMoreSects
	}

	w := binary.NewWriterSize(errors.PhaseEncode, m.Size())
	w.WriteU16LE(m.Flags | FlagFatFormat | (fatHeaderSize/4)<<12)
	w.WriteU16LE(m.MaxStack)
	w.WriteU32LE(m.CodeSize)
	w.WriteU32LE(uint32(m.LocalVarSigTok))

	for _, h := range m.order {
		if err := m.writeInstruction(w, h); err != nil {
			return nil, err
		}
	}
	if err := m.writeSections(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (m *Method) writeInstruction(w *binary.Writer, h Handle) error {
	in := &m.insts[h]
	switch in.Op.Size() {
	case 0:
		return nil
	case 2:
		w.Byte(Prefix)
	}
	w.Byte(byte(in.Op))

	t := in.Op.OperandType()
	if in.Op.IsBranch() && len(in.Targets) == 0 {
		return errors.New(errors.PhaseEncode, errors.KindLogic).
			Offset(in.Offset).
			Detail("%s has no target", in.Op).
			Build()
	}

	switch t.Size() {
	case 1:
		if t == ShortInlineBrTarget && (in.Operand < math.MinInt8 || in.Operand > math.MaxInt8) {
			return errors.New(errors.PhaseEncode, errors.KindOverflow).
				Offset(in.Offset).
				Value(in.Operand).
				Detail("%s displacement does not fit one byte", in.Op).
				Build()
		}
		w.Byte(byte(in.Operand))
	case 2:
		w.WriteU16LE(uint16(in.Operand))
	case 4:
		w.WriteU32LE(uint32(in.Operand))
	case 8:
		w.WriteU64LE(uint64(in.Operand))
	}

	if in.Op == OpSwitch {
		next := in.Offset + in.Size()
		for _, target := range in.Targets {
			w.WriteU32LE(uint32(int32(m.offsetOf(target) - next)))
		}
	}
	return nil
}

// ILMap returns the original-to-new offset pairs for every decoded
// instruction, in code order.
func (m *Method) ILMap() []ILMapEntry {
	out := make([]ILMapEntry, 0, len(m.order))
	for _, h := range m.order {
		in := &m.insts[h]
		if in.OrigOffset != NoOffset {
			out = append(out, ILMapEntry{Old: in.OrigOffset, New: in.Offset})
		}
	}
	return out
}
