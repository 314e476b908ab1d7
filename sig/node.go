package sig

// Span is the exact byte range a node was parsed from.
// Bytes aliases the source blob; it is never copied.
type Span struct {
	Bytes  []byte
	Offset int
}

// End returns the offset just past the span.
func (s Span) End() int { return s.Offset + len(s.Bytes) }

// Len returns the span length in bytes.
func (s Span) Len() int { return len(s.Bytes) }

// Node is a parsed type. The concrete types form a closed set:
// *Primitive, *Named, *Array, *GenericInst, *Pointer, *GenericVar and *FnPtr.
type Node interface {
	Kind() ElementType
	Span() Span
	node()
}

type base struct {
	span Span
}

func (b *base) Span() Span { return b.span }
func (*base) node()        {}

// Primitive is a leaf type: bool, char, sized integers, floats, string,
// native ints and object.
type Primitive struct {
	base
	Elem ElementType
}

func (p *Primitive) Kind() ElementType { return p.Elem }

// Named is a class or value type referenced by token.
type Named struct {
	base
	Elem  ElementType // ElemClass or ElemValueType
	Token Token
}

func (n *Named) Kind() ElementType { return n.Elem }

// ArrayShape describes a general array.
type ArrayShape struct {
	Sizes    []uint32
	LoBounds []int32
	Rank     uint32
}

// Array is a general (multi-dimensional) array.
type Array struct {
	base
	Elem  Node
	Shape ArrayShape
}

func (*Array) Kind() ElementType { return ElemArray }

// GenericInst is a constructed generic type.
type GenericInst struct {
	base
	Args  []Node
	Base  ElementType // ElemClass or ElemValueType
	Token Token
}

func (*GenericInst) Kind() ElementType { return ElemGenericInst }

// CustomMod is a modreq/modopt annotation.
type CustomMod struct {
	Token    Token
	Required bool
}

// Pointer covers the three wrapping kinds: unmanaged pointer, managed
// reference and single-dimension zero-based array. Target is nil for a
// void pointer.
type Pointer struct {
	base
	Target Node
	Mods   []CustomMod
	Elem   ElementType // ElemPtr, ElemByRef or ElemSZArray
}

func (p *Pointer) Kind() ElementType { return p.Elem }

// IsVoid reports whether p is a void pointer.
func (p *Pointer) IsVoid() bool { return p.Target == nil }

// GenericVar is a reference to a type (!n) or method (!!n) generic parameter.
type GenericVar struct {
	base
	Index  uint32
	Method bool
}

func (v *GenericVar) Kind() ElementType {
	if v.Method {
		return ElemMVar
	}
	return ElemVar
}

// FnPtr is a function pointer with its own method signature.
type FnPtr struct {
	base
	Sig *MethodSig
}

func (*FnPtr) Kind() ElementType { return ElemFnPtr }

// Walk visits n and every type nested in it in source order.
// Returning an error from fn stops the walk.
func Walk(n Node, fn func(Node) error) error {
	if n == nil {
		return nil
	}
	if err := fn(n); err != nil {
		return err
	}
	switch v := n.(type) {
	case *Array:
		return Walk(v.Elem, fn)
	case *GenericInst:
		for _, a := range v.Args {
			if err := Walk(a, fn); err != nil {
				return err
			}
		}
	case *Pointer:
		return Walk(v.Target, fn)
	case *FnPtr:
		for i := range v.Sig.Params {
			if err := Walk(v.Sig.Params[i].Type, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
