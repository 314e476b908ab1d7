package il

import (
	"slices"
	"strconv"

	"github.com/wippyai/ilrewrite/errors"
)

// InsertBefore inserts seq immediately before h. Every existing branch
// target and clause boundary that referred to h now refers to the first
// inserted instruction, so control that used to arrive at h runs the new
// block first. h keeps its own handle and original offset.
//
// Branches in seq either carry explicit Targets or a displacement in
// Operand, measured from the end of the branch within the inserted block
// followed by h.
func (m *Method) InsertBefore(h Handle, seq ...Instruction) ([]Handle, error) {
	if err := m.checkHandle(h); err != nil {
		return nil, err
	}
	at := m.pos[h]
	hs, err := m.insert(at, seq)
	if err != nil {
		return nil, err
	}
	m.retarget(h, hs[0], hs)
	m.RecalculateOffsets()
	return hs, nil
}

// InsertAfter inserts seq immediately after h without redirecting any
// reference. A branch to the instruction following h skips the new block.
func (m *Method) InsertAfter(h Handle, seq ...Instruction) ([]Handle, error) {
	if err := m.checkHandle(h); err != nil {
		return nil, err
	}
	if m.insts[h].Op == OpLabel {
		return nil, errors.Logic(errors.PhaseSplice, "cannot insert after the end-of-code label")
	}
	hs, err := m.insert(m.pos[h]+1, seq)
	if err != nil {
		return nil, err
	}
	m.RecalculateOffsets()
	return hs, nil
}

// InsertAtOffset inserts seq before the instruction at the current offset.
func (m *Method) InsertAtOffset(offset int, seq ...Instruction) ([]Handle, error) {
	h, ok := m.FindOffset(offset)
	if !ok {
		return nil, errors.New(errors.PhaseSplice, errors.KindNotFound).
			Offset(offset).
			Detail("no instruction at offset").
			Build()
	}
	return m.InsertBefore(h, seq...)
}

// InsertAtOrigOffset inserts seq before the decoded instruction that started
// at origOffset in the original body.
func (m *Method) InsertAtOrigOffset(origOffset int, seq ...Instruction) ([]Handle, error) {
	h, ok := m.FindOrigOffset(origOffset)
	if !ok {
		return nil, errors.New(errors.PhaseSplice, errors.KindNotFound).
			Offset(origOffset).
			Detail("no instruction at original offset").
			Build()
	}
	return m.InsertBefore(h, seq...)
}

// insert places copies of seq at position at. Branch displacements inside
// seq are resolved against the window formed by the new block and the
// instruction that follows it, before the method is touched.
func (m *Method) insert(at int, seq []Instruction) ([]Handle, error) {
	if len(seq) == 0 {
		return nil, errors.Logic(errors.PhaseSplice, "empty instruction sequence")
	}
	block := make([]Instruction, len(seq))
	for i := range seq {
		in := seq[i].clone()
		if !in.Op.Valid() || in.Op == OpLabel {
			return nil, errors.New(errors.PhaseSplice, errors.KindLogic).
				Path("seq[" + strconv.Itoa(i) + "]").
				Detail("cannot insert %s", in.Op).
				Build()
		}
		if in.Op == OpSwitch {
			if len(in.Targets) == 0 {
				return nil, errors.Logic(errors.PhaseSplice, "inserted switch needs explicit targets")
			}
			in.Operand = int64(len(in.Targets))
		}
		for _, t := range in.Targets {
			if err := m.checkHandle(t); err != nil {
				return nil, err
			}
		}
		in.OrigOffset = NoOffset
		block[i] = in
	}

	follower := NoHandle
	if at < len(m.order) {
		follower = m.order[at]
	}
	first := Handle(len(m.insts))
	if err := resolveWindow(block, first, follower); err != nil {
		return nil, err
	}

	hs := make([]Handle, len(block))
	for i := range block {
		hs[i] = m.add(block[i])
	}
	m.order = slices.Insert(m.order, at, hs...)
	m.reindex()
	m.widenBranches(at, at+len(hs))
	return hs, nil
}

// resolveWindow binds displacement-form branches in block. The block's
// instructions will receive handles first, first+1, ... in order.
func resolveWindow(block []Instruction, first, follower Handle) error {
	local := make(map[int]Handle, len(block)+1)
	offsets := make([]int, len(block))
	pos := 0
	for i := range block {
		offsets[i] = pos
		local[pos] = first + Handle(i)
		pos += block[i].Size()
	}
	if follower != NoHandle {
		local[pos] = follower
	}

	for i := range block {
		in := &block[i]
		if !in.Op.IsBranch() || len(in.Targets) > 0 {
			continue
		}
		target := offsets[i] + in.Size() + int(in.Operand)
		h, ok := local[target]
		if !ok {
			return errors.New(errors.PhaseSplice, errors.KindLogic).
				Path("seq[" + strconv.Itoa(i) + "]").
				Value(int(in.Operand)).
				Detail("%s displacement leaves the inserted window", in.Op).
				Build()
		}
		in.Targets = []Handle{h}
	}
	return nil
}

// retarget moves every reference to from onto to, except references held
// by the instructions in skip.
func (m *Method) retarget(from, to Handle, skip []Handle) {
	for _, h := range m.order {
		if slices.Contains(skip, h) {
			continue
		}
		ts := m.insts[h].Targets
		for i := range ts {
			if ts[i] == from {
				ts[i] = to
			}
		}
	}
	for i := range m.Clauses {
		c := &m.Clauses[i]
		for _, p := range []*Handle{&c.TryStart, &c.TryEnd, &c.HandlerStart, &c.HandlerEnd, &c.FilterStart} {
			if *p == from {
				*p = to
			}
		}
	}
}

// widenBranches rewrites short branches in positions [from, to) to their
// four-byte forms.
func (m *Method) widenBranches(from, to int) {
	for _, h := range m.order[from:to] {
		in := &m.insts[h]
		in.Op = in.Op.Long()
	}
}
