package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/sig"
)

// maxLocals is the largest local count addressable by ldloc/stloc.
const maxLocals = 0xFFFF

// Point is an instrumentation point inserted into a method.
type Point struct {
	Name      string
	Interface string
	Offset    int // original offset of the call
	Arguments int // tracked arguments wrapped before the call
	ID        int32
	Callee    sig.Token
}

// Apply splices the probes for edits into m. An edit whose tokens cannot be
// minted is logged and dropped; the method stays consistent. When at least
// one point is inserted the declared stack depth grows by one slot for the
// id argument.
func (e *Engine) Apply(m *il.Method, edits []Edit) ([]Point, error) {
	var points []Point
	for i := range edits {
		p, err := e.apply(m, &edits[i])
		if err != nil {
			if errors.IsLogic(err) {
				return points, err
			}
			Logger().Warn("failed to instrument call",
				zap.String("callee", edits[i].Name),
				zap.Int("offset", edits[i].Offset),
				zap.Error(err))
			continue
		}
		points = append(points, p)
	}
	if len(points) > 0 {
		m.IncreaseMaxStack(1)
	}
	return points, nil
}

// apply mints every token an edit needs before touching m, so a failure
// leaves the body unchanged.
func (e *Engine) apply(m *il.Method, ed *Edit) (Point, error) {
	probe, spec, err := e.returnedProbe(ed)
	if err != nil {
		return Point{}, err
	}
	returned, err := e.module.DefineMethodSpec(probe, spec)
	if err != nil {
		return Point{}, err
	}

	var (
		argToks = map[int]sig.Token{}
		locals  sig.Token
		first   uint32
	)
	if len(ed.Args) > 0 {
		if e.probes.Argument.IsNil() || e.probes.Calling.IsNil() {
			return Point{}, errors.NotFound(errors.PhaseEmit, "probe", "Argument")
		}
		for _, a := range ed.Args {
			spec, err := sig.EncodeMethodSpec(a.TypeArg)
			if err != nil {
				return Point{}, err
			}
			tok, err := e.module.DefineMethodSpec(e.probes.Argument, spec)
			if err != nil {
				return Point{}, err
			}
			argToks[a.Index] = tok
		}
		if locals, first, err = e.appendLocals(m, ed.Params); err != nil {
			return Point{}, err
		}
	}

	id := e.nextID()
	if len(ed.Args) > 0 {
		at := insertionPoint(m, ed.Call)
		m.SetLocals(locals)
		if _, err := m.InsertBefore(at, e.argumentBlock(id, first, len(ed.Params), argToks)...); err != nil {
			return Point{}, err
		}
	}
	if _, err := m.InsertAfter(ed.Call, il.MakeI4(id), il.MakeToken(il.OpCall, returned)); err != nil {
		return Point{}, err
	}

	return Point{
		Name:      ed.Name,
		Interface: ed.Interface.Name,
		Offset:    ed.Offset,
		Arguments: len(ed.Args),
		ID:        id,
		Callee:    ed.Callee,
	}, nil
}

func (e *Engine) returnedProbe(ed *Edit) (sig.Token, []byte, error) {
	if ed.Interface.Root {
		if e.probes.Returned.IsNil() {
			return 0, nil, errors.NotFound(errors.PhaseEmit, "probe", "Returned")
		}
		spec, err := sig.EncodeMethodSpec(ed.TypeArg)
		return e.probes.Returned, spec, err
	}
	if e.probes.ReturnedSubinterface.IsNil() {
		return 0, nil, errors.NotFound(errors.PhaseEmit, "probe", "ReturnedSubinterface")
	}
	spec, err := sig.EncodeMethodSpec(ed.TypeArg, ed.Return)
	return e.probes.ReturnedSubinterface, spec, err
}

// appendLocals extends the method's locals with one temporary per parameter
// and returns the new signature token and the index of the first temporary.
func (e *Engine) appendLocals(m *il.Method, params [][]byte) (sig.Token, uint32, error) {
	var existing []byte
	if !m.LocalVarSigTok.IsNil() {
		blob, err := e.module.StandAloneSig(m.LocalVarSigTok)
		if err != nil {
			return 0, 0, err
		}
		existing = blob
	}
	blob, first, err := sig.AppendLocals(existing, params...)
	if err != nil {
		return 0, 0, err
	}
	if int(first)+len(params) > maxLocals {
		return 0, 0, errors.Overflow(errors.PhaseEmit, int(first)+len(params), "local count")
	}
	tok, err := e.module.DefineStandAloneSig(blob)
	if err != nil {
		return 0, 0, err
	}
	return tok, first, nil
}

// argumentBlock stores the n call arguments into temporaries starting at
// first, marks the call, and reloads them in order. Tracked arguments are
// wrapped as they are reloaded.
func (e *Engine) argumentBlock(id int32, first uint32, n int, wrap map[int]sig.Token) []il.Instruction {
	seq := make([]il.Instruction, 0, 2*n+2+2*len(wrap))
	for i := n - 1; i >= 0; i-- {
		seq = append(seq, stloc(first+uint32(i)))
	}
	seq = append(seq, il.MakeI4(id), il.MakeToken(il.OpCall, e.probes.Calling))
	for i := 0; i < n; i++ {
		seq = append(seq, ldloc(first+uint32(i)))
		if tok, ok := wrap[i+1]; ok {
			seq = append(seq, il.MakeI4(id), il.MakeToken(il.OpCall, tok))
		}
	}
	return seq
}

// insertionPoint returns the first prefix instruction attached to call, or
// call itself.
func insertionPoint(m *il.Method, call il.Handle) il.Handle {
	i := m.Index(call)
	for i > 0 && isCallPrefix(m.Get(m.At(i-1)).Op) {
		i--
	}
	return m.At(i)
}

func isCallPrefix(op il.Opcode) bool {
	return op == il.OpConstrained || op == il.OpReadonly || op == il.OpNo
}

func ldloc(i uint32) il.Instruction {
	switch {
	case i < 4:
		return il.Make(il.OpLdloc0+il.Opcode(i), 0)
	case i < 256:
		return il.Make(il.OpLdlocS, int64(i))
	}
	return il.Make(il.OpLdloc, int64(i))
}

func stloc(i uint32) il.Instruction {
	switch {
	case i < 4:
		return il.Make(il.OpStloc0+il.Opcode(i), 0)
	case i < 256:
		return il.Make(il.OpStlocS, int64(i))
	}
	return il.Make(il.OpStloc, int64(i))
}
