package il

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a disassembly of m: one line per instruction with its current
// and original offsets, followed by the exception clauses.
func (m *Method) Dump(w io.Writer) error {
	for _, h := range m.order {
		if _, err := fmt.Fprintln(w, m.Format(h)); err != nil {
			return err
		}
	}
	for i := range m.Clauses {
		if _, err := fmt.Fprintln(w, m.formatClause(&m.Clauses[i])); err != nil {
			return err
		}
	}
	return nil
}

// Format renders the instruction h as one disassembly line.
func (m *Method) Format(h Handle) string {
	in := &m.insts[h]
	var b strings.Builder

	fmt.Fprintf(&b, "IL_%04x ", in.Offset)
	if in.OrigOffset == NoOffset {
		b.WriteString("(-------) ")
	} else {
		fmt.Fprintf(&b, "(IL_%04x) ", in.OrigOffset)
	}
	b.WriteString(in.Op.String())

	switch t := in.Op.OperandType(); t {
	case InlineNone:
	case ShortInlineBrTarget, InlineBrTarget:
		if len(in.Targets) > 0 {
			fmt.Fprintf(&b, " IL_%04x", m.offsetOf(in.Targets[0]))
		}
	case InlineSwitch:
		b.WriteString(" (")
		for i, target := range in.Targets {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "IL_%04x", m.offsetOf(target))
		}
		b.WriteByte(')')
	case InlineMethod, InlineField, InlineType, InlineTok, InlineString, InlineSig:
		fmt.Fprintf(&b, " %s", in.Token())
	case ShortInlineR, InlineR:
		fmt.Fprintf(&b, " %g", in.Float64())
	case ShortInlineVar, InlineVar:
		fmt.Fprintf(&b, " V_%d", in.Operand)
	default:
		fmt.Fprintf(&b, " %d", in.Operand)
	}
	return b.String()
}

func (m *Method) formatClause(c *Clause) string {
	var b strings.Builder
	fmt.Fprintf(&b, ".try IL_%04x to IL_%04x %s", m.offsetOf(c.TryStart), m.offsetOf(c.TryEnd), c.Kind)
	switch c.Kind {
	case ClauseCatch:
		fmt.Fprintf(&b, " %s", c.CatchType)
	case ClauseFilter:
		fmt.Fprintf(&b, " IL_%04x", m.offsetOf(c.FilterStart))
	}
	fmt.Fprintf(&b, " handler IL_%04x to IL_%04x", m.offsetOf(c.HandlerStart), m.offsetOf(c.HandlerEnd))
	return b.String()
}
