package il

import (
	"strconv"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
	"github.com/wippyai/ilrewrite/sig"
)

// ClauseKind is the flags word of an exception clause.
type ClauseKind uint32

const (
	ClauseCatch   ClauseKind = 0x0
	ClauseFilter  ClauseKind = 0x1
	ClauseFinally ClauseKind = 0x2
	ClauseFault   ClauseKind = 0x4
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseCatch:
		return "catch"
	case ClauseFilter:
		return "filter"
	case ClauseFinally:
		return "finally"
	case ClauseFault:
		return "fault"
	}
	return "clause"
}

// Clause is one exception handling region. The end handles are exclusive
// and may refer to the end-of-code label.
type Clause struct {
	Kind         ClauseKind
	TryStart     Handle
	TryEnd       Handle
	HandlerStart Handle
	HandlerEnd   Handle
	FilterStart  Handle    // NoHandle unless Kind is ClauseFilter
	CatchType    sig.Token // only for ClauseCatch
}

// Section kinds (ECMA-335 II.25.4.5).
const (
	sectEHTable    = 0x01
	sectOptILTable = 0x02
	sectFatFormat  = 0x40
	sectMoreSects  = 0x80

	fatClauseSize   = 24
	smallClauseSize = 12
	sectHeaderSize  = 4
)

// rawClause is a clause with byte offsets, before boundaries are bound to
// instructions.
type rawClause struct {
	kind                                       ClauseKind
	tryStart, tryLen, handlerStart, handlerLen uint32
	extra                                      uint32 // filter offset or class token
}

// readSections reads every data section following the code. Sections other
// than exception tables are skipped.
func readSections(r *binary.Reader) ([]rawClause, error) {
	var clauses []rawClause
	for {
		if err := r.Align(4); err != nil {
			return nil, err
		}
		start := r.Position()
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		var size int
		if kind&sectFatFormat != 0 {
			b, err := r.ReadBytes(3)
			if err != nil {
				return nil, err
			}
			size = int(b[0]) | int(b[1])<<8 | int(b[2])<<16
		} else {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			size = int(b)
			if err := r.Skip(2); err != nil {
				return nil, err
			}
		}
		if size < sectHeaderSize {
			return nil, errors.Format(errors.PhaseDecode, start, "section size %d smaller than its header", size)
		}

		switch {
		case kind&sectEHTable == 0:
			if err := r.Skip(size - sectHeaderSize); err != nil {
				return nil, err
			}
		case kind&sectFatFormat != 0:
			n := (size - sectHeaderSize) / fatClauseSize
			for i := 0; i < n; i++ {
				c, err := readFatClause(r)
				if err != nil {
					return nil, err
				}
				clauses = append(clauses, c)
			}
		default:
			n := (size - sectHeaderSize) / smallClauseSize
			for i := 0; i < n; i++ {
				c, err := readSmallClause(r)
				if err != nil {
					return nil, err
				}
				clauses = append(clauses, c)
			}
		}

		if kind&sectMoreSects == 0 {
			return clauses, nil
		}
	}
}

func readFatClause(r *binary.Reader) (rawClause, error) {
	var v [6]uint32
	for i := range v {
		x, err := r.ReadU32LE()
		if err != nil {
			return rawClause{}, err
		}
		v[i] = x
	}
	return rawClause{
		kind:         ClauseKind(v[0]),
		tryStart:     v[1],
		tryLen:       v[2],
		handlerStart: v[3],
		handlerLen:   v[4],
		extra:        v[5],
	}, nil
}

func readSmallClause(r *binary.Reader) (rawClause, error) {
	var c rawClause
	flags, err := r.ReadU16LE()
	if err != nil {
		return c, err
	}
	tryStart, err := r.ReadU16LE()
	if err != nil {
		return c, err
	}
	tryLen, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	handlerStart, err := r.ReadU16LE()
	if err != nil {
		return c, err
	}
	handlerLen, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	extra, err := r.ReadU32LE()
	if err != nil {
		return c, err
	}
	c.kind = ClauseKind(flags)
	c.tryStart, c.tryLen = uint32(tryStart), uint32(tryLen)
	c.handlerStart, c.handlerLen = uint32(handlerStart), uint32(handlerLen)
	c.extra = extra
	return c, nil
}

// bindClauses resolves clause byte offsets to instruction handles. byOffset
// maps every decoded instruction start; end is the code size. A boundary at
// end anchors on a label appended to the code.
func (m *Method) bindClauses(raw []rawClause, byOffset map[int]Handle, end int) error {
	label := NoHandle
	at := func(off uint32, what string, i int) (Handle, error) {
		if h, ok := byOffset[int(off)]; ok {
			return h, nil
		}
		if int(off) == end {
			if label == NoHandle {
				label = m.add(Instruction{Op: OpLabel, OrigOffset: NoOffset, Offset: end})
				m.order = append(m.order, label)
			}
			return label, nil
		}
		return NoHandle, errors.New(errors.PhaseDecode, errors.KindFormat).
			Path("clause[" + strconv.Itoa(i) + "]").
			Offset(int(off)).
			Detail("%s is not an instruction boundary", what).
			Build()
	}

	m.Clauses = make([]Clause, 0, len(raw))
	for i, rc := range raw {
		c := Clause{Kind: rc.kind, FilterStart: NoHandle}
		var err error
		if c.TryStart, err = at(rc.tryStart, "try start", i); err != nil {
			return err
		}
		if c.TryEnd, err = at(rc.tryStart+rc.tryLen, "try end", i); err != nil {
			return err
		}
		if c.HandlerStart, err = at(rc.handlerStart, "handler start", i); err != nil {
			return err
		}
		if c.HandlerEnd, err = at(rc.handlerStart+rc.handlerLen, "handler end", i); err != nil {
			return err
		}
		if rc.kind == ClauseFilter {
			if c.FilterStart, err = at(rc.extra, "filter start", i); err != nil {
				return err
			}
		} else {
			c.CatchType = sig.Token(rc.extra)
		}
		m.Clauses = append(m.Clauses, c)
	}
	return nil
}

// sectionSize returns the size of the fat exception section, excluding
// alignment padding.
func (m *Method) sectionSize() int {
	if len(m.Clauses) == 0 {
		return 0
	}
	return sectHeaderSize + len(m.Clauses)*fatClauseSize
}

// writeSections writes all clauses as one fat exception section.
func (m *Method) writeSections(w *binary.Writer) error {
	if len(m.Clauses) == 0 {
		return nil
	}
	w.Align(4)
	size := m.sectionSize()
	if size > 0xFFFFFF {
		return errors.Overflow(errors.PhaseEncode, size, "exception section size")
	}
	w.Byte(sectEHTable | sectFatFormat)
	w.Byte(byte(size))
	w.Byte(byte(size >> 8))
	w.Byte(byte(size >> 16))

	for i := range m.Clauses {
		c := &m.Clauses[i]
		tryStart := m.offsetOf(c.TryStart)
		tryEnd := m.offsetOf(c.TryEnd)
		handlerStart := m.offsetOf(c.HandlerStart)
		handlerEnd := m.offsetOf(c.HandlerEnd)
		if tryEnd < tryStart || handlerEnd < handlerStart {
			return errors.New(errors.PhaseEncode, errors.KindLogic).
				Path("clause[" + strconv.Itoa(i) + "]").
				Detail("region end precedes its start").
				Build()
		}
		w.WriteU32LE(uint32(c.Kind))
		w.WriteU32LE(uint32(tryStart))
		w.WriteU32LE(uint32(tryEnd - tryStart))
		w.WriteU32LE(uint32(handlerStart))
		w.WriteU32LE(uint32(handlerEnd - handlerStart))
		if c.Kind == ClauseFilter {
			w.WriteU32LE(uint32(m.offsetOf(c.FilterStart)))
		} else {
			w.WriteU32LE(uint32(c.CatchType))
		}
	}
	return nil
}
