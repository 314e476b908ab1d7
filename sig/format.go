package sig

import (
	"strconv"
	"strings"
)

// Namer maps a token to a display name. A nil Namer prints raw tokens.
type Namer func(Token) string

func (f Namer) name(t Token) string {
	if f != nil {
		if s := f(t); s != "" {
			return s
		}
	}
	return "[" + t.String() + "]"
}

// FormatType renders n in IL assembler notation.
func FormatType(n Node, names Namer) string {
	var b strings.Builder
	formatType(&b, n, names)
	return b.String()
}

// FormatMethodSig renders a method signature as "ret (p1, p2)".
func FormatMethodSig(m *MethodSig, names Namer) string {
	var b strings.Builder
	if m.HasThis() {
		b.WriteString("instance ")
	}
	formatParam(&b, m.Return(), names)
	if m.IsGeneric() {
		b.WriteString(" <")
		b.WriteString(strconv.FormatUint(uint64(m.GenericParamCount), 10))
		b.WriteByte('>')
	}
	b.WriteString(" (")
	for i := 1; i < len(m.Params); i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		if m.Params[i].VarArg && (i == 1 || !m.Params[i-1].VarArg) {
			b.WriteString("..., ")
		}
		formatParam(&b, &m.Params[i], names)
	}
	b.WriteByte(')')
	return b.String()
}

func formatParam(b *strings.Builder, p *Param, names Namer) {
	for _, m := range p.Mods {
		formatMod(b, m, names)
	}
	switch {
	case p.Void:
		b.WriteString("void")
	case p.TypedByRef:
		b.WriteString("typedref")
	default:
		formatType(b, p.Type, names)
		if p.ByRef {
			b.WriteByte('&')
		}
	}
}

func formatMod(b *strings.Builder, m CustomMod, names Namer) {
	if m.Required {
		b.WriteString("modreq(")
	} else {
		b.WriteString("modopt(")
	}
	b.WriteString(names.name(m.Token))
	b.WriteString(") ")
}

func formatType(b *strings.Builder, n Node, names Namer) {
	switch v := n.(type) {
	case nil:
		b.WriteString("void")
	case *Primitive:
		b.WriteString(v.Elem.String())
	case *Named:
		b.WriteString(v.Elem.String())
		b.WriteByte(' ')
		b.WriteString(names.name(v.Token))
	case *GenericInst:
		b.WriteString(v.Base.String())
		b.WriteByte(' ')
		b.WriteString(names.name(v.Token))
		b.WriteByte('<')
		for i, a := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			formatType(b, a, names)
		}
		b.WriteByte('>')
	case *Array:
		formatType(b, v.Elem, names)
		b.WriteByte('[')
		for i := uint32(0); i < v.Shape.Rank; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			var lo int32
			hasLo := int(i) < len(v.Shape.LoBounds)
			if hasLo {
				lo = v.Shape.LoBounds[i]
			}
			if int(i) < len(v.Shape.Sizes) {
				b.WriteString(strconv.FormatInt(int64(lo), 10))
				b.WriteString("...")
				b.WriteString(strconv.FormatInt(int64(lo)+int64(v.Shape.Sizes[i])-1, 10))
			} else if hasLo {
				b.WriteString(strconv.FormatInt(int64(lo), 10))
				b.WriteString("...")
			}
		}
		b.WriteByte(']')
	case *Pointer:
		for _, m := range v.Mods {
			formatMod(b, m, names)
		}
		formatType(b, v.Target, names)
		switch v.Elem {
		case ElemPtr:
			b.WriteByte('*')
		case ElemByRef:
			b.WriteByte('&')
		default:
			b.WriteString("[]")
		}
	case *GenericVar:
		if v.Method {
			b.WriteString("!!")
		} else {
			b.WriteByte('!')
		}
		b.WriteString(strconv.FormatUint(uint64(v.Index), 10))
	case *FnPtr:
		b.WriteString("method ")
		b.WriteString(FormatMethodSig(v.Sig, names))
	}
}
