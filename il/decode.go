package il

import (
	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
	"github.com/wippyai/ilrewrite/sig"
)

// Decode parses a method body: header, instruction stream and exception
// sections. Branch displacements and clause offsets are bound to
// instruction handles, short branches are widened and offsets recalculated,
// so the result encodes without further preparation.
func Decode(body []byte) (*Method, error) {
	r := binary.NewReader(body, errors.PhaseDecode)
	m := &Method{}

	if err := m.readHeader(r); err != nil {
		return nil, err
	}
	codeStart := r.Position()
	if m.CodeSize == 0 {
		return nil, errors.Format(errors.PhaseDecode, codeStart, "empty code")
	}
	if int(m.CodeSize) > r.Len() {
		return nil, errors.Format(errors.PhaseDecode, codeStart, "code size %d exceeds %d remaining bytes", m.CodeSize, r.Len())
	}
	code := binary.NewReader(r.Slice(codeStart, codeStart+int(m.CodeSize)), errors.PhaseDecode)

	disps, byOffset, err := m.readCode(code)
	if err != nil {
		return nil, err
	}
	if err := m.bindBranches(disps, byOffset); err != nil {
		return nil, err
	}

	var raw []rawClause
	if m.Flags&FlagMoreSects != 0 {
		if err := r.Seek(codeStart + int(m.CodeSize)); err != nil {
			return nil, err
		}
		if raw, err = readSections(r); err != nil {
			return nil, err
		}
	}
	if err := m.bindClauses(raw, byOffset, int(m.CodeSize)); err != nil {
		return nil, err
	}

	m.reindex()
	m.widenBranches(0, len(m.order))
	m.RecalculateOffsets()
	return m, nil
}

func (m *Method) readHeader(r *binary.Reader) error {
	b, err := r.PeekByte()
	if err != nil {
		return err
	}
	switch uint16(b) & FlagFormatMask {
	case FlagTinyFormat:
		_, _ = r.ReadByte()
		m.Flags = 0
		m.MaxStack = DefaultMaxStack
		m.CodeSize = uint32(b >> 2)
		m.OrigHeaderSize = 1
		return nil
	case FlagFatFormat:
		flagsSize, err := r.ReadU16LE()
		if err != nil {
			return err
		}
		size := int(flagsSize>>12) * 4
		if size < fatHeaderSize {
			return errors.Format(errors.PhaseDecode, 0, "fat header size %d", size)
		}
		if m.MaxStack, err = r.ReadU16LE(); err != nil {
			return err
		}
		if m.CodeSize, err = r.ReadU32LE(); err != nil {
			return err
		}
		tok, err := r.ReadU32LE()
		if err != nil {
			return err
		}
		m.LocalVarSigTok = sig.Token(tok)
		m.Flags = flagsSize & 0x0FFF &^ FlagFormatMask
		m.OrigHeaderSize = size
		return r.Skip(size - fatHeaderSize)
	}
	return errors.UnknownTag(errors.PhaseDecode, 0, "method header format", b)
}

// readCode decodes the instruction stream. It returns the raw branch
// displacements per handle and the map from start offset to handle.
func (m *Method) readCode(r *binary.Reader) (map[Handle][]int32, map[int]Handle, error) {
	disps := make(map[Handle][]int32)
	byOffset := make(map[int]Handle)

	for r.Len() > 0 {
		start := r.Position()
		b, _ := r.ReadByte()
		op := Opcode(b)
		if b == Prefix {
			b2, err := r.ReadByte()
			if err != nil {
				return nil, nil, err
			}
			op = Opcode(Prefix)<<8 | Opcode(b2)
		}
		if !op.Valid() || op == OpLabel {
			return nil, nil, errors.New(errors.PhaseDecode, errors.KindFormat).
				Offset(start).
				Value(uint16(op)).
				Detail("unknown opcode 0x%04x", uint16(op)).
				Build()
		}

		in := Instruction{Op: op, Offset: start, OrigOffset: start}
		operand, err := readOperand(r, op.OperandType())
		if err != nil {
			return nil, nil, err
		}
		in.Operand = operand

		var d []int32
		switch op.OperandType() {
		case ShortInlineBrTarget, InlineBrTarget:
			d = []int32{int32(operand)}
		case InlineSwitch:
			n := uint32(operand)
			if int64(n)*4 > int64(r.Len()) {
				return nil, nil, r.Errorf("switch with %d targets overruns the code", n)
			}
			d = make([]int32, n)
			for i := range d {
				v, err := r.ReadU32LE()
				if err != nil {
					return nil, nil, err
				}
				d[i] = int32(v)
			}
		}

		h := m.add(in)
		m.order = append(m.order, h)
		byOffset[start] = h
		if d != nil {
			disps[h] = d
		}
	}
	return disps, byOffset, nil
}

func readOperand(r *binary.Reader, t OperandType) (int64, error) {
	switch t.Size() {
	case 0:
		return 0, nil
	case 1:
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if t == ShortInlineVar {
			return int64(b), nil
		}
		return int64(int8(b)), nil
	case 2:
		v, err := r.ReadU16LE()
		return int64(v), err
	case 8:
		v, err := r.ReadU64LE()
		return int64(v), err
	}
	v, err := r.ReadU32LE()
	if err != nil {
		return 0, err
	}
	switch t {
	case InlineI, InlineBrTarget:
		return int64(int32(v)), nil
	}
	return int64(v), nil
}

// bindBranches turns displacements into handles. A displacement counts from
// the end of the instruction, including the switch table.
func (m *Method) bindBranches(disps map[Handle][]int32, byOffset map[int]Handle) error {
	for _, h := range m.order {
		d, ok := disps[h]
		if !ok {
			continue
		}
		in := &m.insts[h]
		next := in.Offset + in.Size()
		in.Targets = make([]Handle, len(d))
		for i, disp := range d {
			target := next + int(disp)
			t, ok := byOffset[target]
			if !ok {
				return errors.New(errors.PhaseDecode, errors.KindFormat).
					Offset(in.Offset).
					Value(target).
					Detail("%s targets IL_%04x which is not an instruction boundary", in.Op, target).
					Build()
			}
			in.Targets[i] = t
		}
	}
	return nil
}
