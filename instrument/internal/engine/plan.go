package engine

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/sig"
)

// Edit is one planned call-site rewrite.
type Edit struct {
	Interface *Tracked
	Name      string // callee as Type::Name
	TypeArg   []byte // element type, caller's generic arguments substituted
	Return    []byte // full returned interface type, substituted
	Params    [][]byte
	Args      []Arg
	Call      il.Handle
	Offset    int // original offset of the call
	Callee    sig.Token
}

// Arg is a tracked parameter of a call that gets wrapped before the call.
type Arg struct {
	TypeArg []byte
	Index   int // 1-based parameter index
}

// Skipped is a call site deliberately left alone.
type Skipped struct {
	Err    error
	Offset int
	Callee sig.Token
}

// Plan classifies every call in m. Calls that cannot be classified are
// reported in the skipped list; malformed callee signatures are logged and
// do not stop the scan. Plan does not modify m.
func (e *Engine) Plan(m *il.Method) ([]Edit, []Skipped) {
	var (
		edits   []Edit
		skipped []Skipped
	)
	handles := m.Handles()
	for i, h := range handles {
		in := m.Get(h)
		if !in.Op.IsCall() {
			continue
		}
		tok := in.Token()
		skip := func(err error) {
			skipped = append(skipped, Skipped{Err: err, Offset: in.OrigOffset, Callee: tok})
		}
		if i > 0 && m.Get(handles[i-1]).Op == il.OpTail {
			skip(errors.Skip("tail call"))
			continue
		}

		edit, err := e.classify(tok)
		if err != nil {
			if errors.IsSkip(err) {
				Logger().Debug("call skipped",
					zap.Uint32("token", uint32(tok)),
					zap.Int("offset", in.OrigOffset),
					zap.Error(err))
			} else {
				Logger().Warn("failed to classify call",
					zap.Uint32("token", uint32(tok)),
					zap.Int("offset", in.OrigOffset),
					zap.Error(err))
			}
			skip(err)
			continue
		}
		if edit == nil {
			continue
		}
		if e.instrumented(m, in) {
			skip(errors.Skip("already instrumented"))
			continue
		}
		edit.Call = h
		edit.Offset = in.OrigOffset
		edit.Callee = tok
		edits = append(edits, *edit)
	}
	return edits, skipped
}

// classify resolves a call target. It returns nil when the callee does not
// return a tracked interface.
func (e *Engine) classify(tok sig.Token) (*Edit, error) {
	method := tok
	var methodArgs [][]byte
	if tok.Table() == sig.TableMethodSpec {
		spec, err := e.module.MethodSpecProps(tok)
		if err != nil {
			return nil, err
		}
		method = spec.Method
		if methodArgs, err = sig.MethodSpecArgSpans(spec.Sig); err != nil {
			return nil, err
		}
	}
	switch method.Table() {
	case sig.TableMethodDef, sig.TableMemberRef:
	default:
		return nil, errors.Skip("unexpected callee token %s", method)
	}
	if e.probes.contains(method) {
		return nil, errors.Skip("probe call")
	}

	props, err := e.module.MethodProps(method)
	if err != nil {
		return nil, err
	}
	name := e.module.TypeName(props.Parent) + "::" + props.Name
	if e.skip != nil && e.skip.MatchMethod(name) {
		return nil, errors.Skip("%s is excluded", name)
	}

	ms, err := sig.ParseMethodSig(props.Sig)
	if err != nil {
		return nil, err
	}
	ret := ms.Return()
	if ret.ByRef {
		return nil, nil
	}
	g, ok := ret.Type.(*sig.GenericInst)
	if !ok {
		return nil, nil
	}
	tr := e.lookup(g.Token)
	if tr == nil {
		return nil, nil
	}
	if tr.ElemArg >= len(g.Args) {
		return nil, errors.Skip("%s returned with %d type arguments", tr.Name, len(g.Args))
	}

	var typeArgs [][]byte
	if props.Parent.Table() == sig.TableTypeSpec {
		blob, err := e.module.TypeSpec(props.Parent)
		if err != nil {
			return nil, err
		}
		n, err := sig.ParseTypeSpec(blob)
		if err != nil {
			return nil, err
		}
		if n.Kind() == sig.ElemGenericInst {
			if typeArgs, err = sig.TypeArgSpans(n); err != nil {
				return nil, err
			}
		}
	}
	subst := func(n sig.Node) ([]byte, error) {
		if len(typeArgs) == 0 && len(methodArgs) == 0 {
			return slices.Clone(n.Span().Bytes), nil
		}
		return sig.Substitute(n, typeArgs, methodArgs)
	}

	edit := &Edit{Interface: tr, Name: name}
	if edit.TypeArg, err = subst(g.Args[tr.ElemArg]); err != nil {
		return nil, err
	}
	if edit.Return, err = subst(g); err != nil {
		return nil, err
	}
	if e.arguments {
		e.planArgs(edit, ms, subst)
	}
	return edit, nil
}

// planArgs records the parameter types to spill and which of them are
// tracked. Any parameter shape that cannot live in a local drops argument
// instrumentation for this call only.
func (e *Engine) planArgs(edit *Edit, ms *sig.MethodSig, subst func(sig.Node) ([]byte, error)) {
	root := e.root()
	if root == nil || ms.ParamCount() == 0 {
		return
	}
	params := make([][]byte, 0, ms.ParamCount())
	var args []Arg
	for i := 1; i < len(ms.Params); i++ {
		p := &ms.Params[i]
		if p.ByRef || p.TypedByRef || p.VarArg || p.Type == nil {
			Logger().Debug("arguments not instrumented",
				zap.String("method", edit.Name),
				zap.Int("param", i))
			return
		}
		t, err := subst(p.Type)
		if err != nil {
			Logger().Warn("failed to substitute parameter type",
				zap.String("method", edit.Name),
				zap.Int("param", i),
				zap.Error(err))
			return
		}
		params = append(params, t)

		g, ok := p.Type.(*sig.GenericInst)
		if !ok || g.Token != root.Token || root.ElemArg >= len(g.Args) {
			continue
		}
		elem, err := subst(g.Args[root.ElemArg])
		if err != nil {
			return
		}
		args = append(args, Arg{TypeArg: elem, Index: i})
	}
	if len(args) == 0 {
		return
	}
	edit.Params = params
	edit.Args = args
}

// instrumented reports whether call is already followed by a returned probe.
func (e *Engine) instrumented(m *il.Method, call *il.Instruction) bool {
	hs, ok := m.SequenceAt(call.OrigOffset, call.Op, il.OpLdcI4, il.OpCall)
	if !ok {
		return false
	}
	tok := m.Get(hs[2]).Token()
	if tok.Table() != sig.TableMethodSpec {
		return false
	}
	spec, err := e.module.MethodSpecProps(tok)
	if err != nil || spec.Method.IsNil() {
		return false
	}
	return spec.Method == e.probes.Returned || spec.Method == e.probes.ReturnedSubinterface
}
