package engine

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/sig"
)

func fat(maxStack uint16, locals sig.Token, code ...[]byte) []byte {
	var c []byte
	for _, part := range code {
		c = append(c, part...)
	}
	b := []byte{0x13, 0x30}
	b = binary.LittleEndian.AppendUint16(b, maxStack)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(c)))
	b = binary.LittleEndian.AppendUint32(b, uint32(locals))
	return append(b, c...)
}

func planAndApply(t *testing.T, e *Engine, m *il.Method) []Point {
	t.Helper()
	edits, _ := e.Plan(m)
	points, err := e.Apply(m, edits)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return points
}

func TestApply_Returned(t *testing.T) {
	f := newFixture(t)
	e := f.engine(false, 7)
	ldstr := []byte{0x72, 0x01, 0x00, 0x00, 0x70}
	m := decode(t, tiny(ldstr, call(f.ret), []byte{0x26, 0x2a}))

	points := planAndApply(t, e, m)

	want := []Point{{
		Name:      "System.Reactive.Linq.Observable::Return",
		Interface: "System.IObservable`1",
		Offset:    5,
		ID:        7,
		Callee:    f.ret,
	}}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}

	wantOps := []il.Opcode{il.OpLdstr, il.OpCall, il.OpLdcI4, il.OpCall, il.OpPop, il.OpRet}
	if diff := cmp.Diff(wantOps, opsOf(m)); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}
	spec, err := f.img.DefineMethodSpec(f.probes.Returned, []byte{0x0a, 0x01, 0x0e})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(m.At(2)).Int32(); got != 7 {
		t.Errorf("point id = %d, want 7", got)
	}
	if got := m.Get(m.At(3)).Token(); got != spec {
		t.Errorf("probe = %s, want %s", got, spec)
	}
	if m.MaxStack != il.DefaultMaxStack+1 {
		t.Errorf("MaxStack = %d", m.MaxStack)
	}
}

func TestApply_RewrittenBodyIsRecognised(t *testing.T) {
	f := newFixture(t)
	e := f.engine(false)
	m := decode(t, tiny(call(f.ret), []byte{0x26}, call(f.never), []byte{0x26, 0x2a}))

	points := planAndApply(t, e, m)
	if len(points) != 2 || points[0].ID != 1 || points[1].ID != 2 {
		t.Fatalf("points = %+v", points)
	}

	body, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	again := decode(t, body)
	edits, skipped := e.Plan(again)
	if len(edits) != 0 {
		t.Fatalf("edits on rewritten body = %+v", edits)
	}
	// two original calls plus two probe calls
	if len(skipped) != 4 {
		t.Fatalf("skipped = %d, want 4", len(skipped))
	}
	for _, s := range skipped {
		if !errors.IsSkip(s.Err) {
			t.Errorf("offset %d: %v is not a skip", s.Offset, s.Err)
		}
	}
}

func TestApply_Subinterface(t *testing.T) {
	f := newFixture(t)
	m := decode(t, tiny([]byte{0x02}, call(f.publish), []byte{0x26, 0x2a}))

	points := planAndApply(t, f.engine(false, 3), m)
	if len(points) != 1 || points[0].Interface != "System.Reactive.Subjects.IConnectableObservable`1" {
		t.Fatalf("points = %+v", points)
	}
	spec, err := f.img.DefineMethodSpec(f.probes.ReturnedSubinterface,
		[]byte{0x0a, 0x02, 0x08, 0x15, 0x12, 0x09, 0x01, 0x08})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(m.At(3)).Token(); got != spec {
		t.Errorf("probe = %s, want %s", got, spec)
	}
}

func TestApply_Arguments(t *testing.T) {
	f := newFixture(t)
	m := decode(t, tiny([]byte{0x02, 0x03}, call(f.merge), []byte{0x26, 0x2a}))

	points := planAndApply(t, f.engine(true, 5), m)
	if len(points) != 1 || points[0].Arguments != 2 {
		t.Fatalf("points = %+v", points)
	}

	wantOps := []il.Opcode{
		il.OpLdarg0, il.OpLdarg1,
		il.OpStloc1, il.OpStloc0,
		il.OpLdcI4, il.OpCall,
		il.OpLdloc0, il.OpLdcI4, il.OpCall,
		il.OpLdloc1, il.OpLdcI4, il.OpCall,
		il.OpCall, il.OpLdcI4, il.OpCall,
		il.OpPop, il.OpRet,
	}
	if diff := cmp.Diff(wantOps, opsOf(m)); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}

	argSpec, _ := f.img.DefineMethodSpec(f.probes.Argument, []byte{0x0a, 0x01, 0x0e})
	tokens := map[int]sig.Token{5: f.probes.Calling, 8: argSpec, 11: argSpec, 12: f.merge}
	for i, want := range tokens {
		if got := m.Get(m.At(i)).Token(); got != want {
			t.Errorf("instruction %d calls %s, want %s", i, got, want)
		}
	}

	blob := append(append([]byte{0x07, 0x02}, observableString...), observableString...)
	locals, _ := f.img.DefineStandAloneSig(blob)
	if m.LocalVarSigTok != locals || !m.InitLocals() {
		t.Errorf("locals = %s (init %v), want %s", m.LocalVarSigTok, m.InitLocals(), locals)
	}
}

func TestApply_ArgumentsAppendToExistingLocals(t *testing.T) {
	f := newFixture(t)
	existing := f.img.AddStandAloneSig([]byte{0x07, 0x01, 0x08})
	m := decode(t, fat(2, existing, []byte{0x02, 0x03}, call(f.merge), []byte{0x26, 0x2a}))

	planAndApply(t, f.engine(true), m)

	wantOps := []il.Opcode{
		il.OpLdarg0, il.OpLdarg1,
		il.OpStloc2, il.OpStloc1,
		il.OpLdcI4, il.OpCall,
		il.OpLdloc1, il.OpLdcI4, il.OpCall,
		il.OpLdloc2, il.OpLdcI4, il.OpCall,
		il.OpCall, il.OpLdcI4, il.OpCall,
		il.OpPop, il.OpRet,
	}
	if diff := cmp.Diff(wantOps, opsOf(m)); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}
	blob, err := f.img.StandAloneSig(m.LocalVarSigTok)
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{0x07, 0x03, 0x08}, observableString...), observableString...)
	if diff := cmp.Diff(want, blob); diff != "" {
		t.Errorf("locals (-want +got):\n%s", diff)
	}
	if m.MaxStack != 3 {
		t.Errorf("MaxStack = %d, want 3", m.MaxStack)
	}
}

func TestApply_ArgumentsBeforePrefix(t *testing.T) {
	f := newFixture(t)
	constrained := append([]byte{0xfe, 0x16}, tok(f.subject)...)
	callvirt := append([]byte{0x6f}, tok(f.subMerge)...)
	m := decode(t, tiny([]byte{0x02, 0x03}, constrained, callvirt, []byte{0x26, 0x2a}))

	points := planAndApply(t, f.engine(true), m)
	if len(points) != 1 || points[0].Arguments != 1 {
		t.Fatalf("points = %+v", points)
	}
	wantOps := []il.Opcode{
		il.OpLdarg0, il.OpLdarg1,
		il.OpStloc0,
		il.OpLdcI4, il.OpCall,
		il.OpLdloc0, il.OpLdcI4, il.OpCall,
		il.OpConstrained, il.OpCallvirt,
		il.OpLdcI4, il.OpCall,
		il.OpPop, il.OpRet,
	}
	if diff := cmp.Diff(wantOps, opsOf(m)); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
}

func TestApply_MissingProbeLeavesMethod(t *testing.T) {
	f := newFixture(t)
	e := New(Config{Module: f.img, Tracked: f.tracked})
	m := decode(t, tiny(call(f.ret), []byte{0x26, 0x2a}))

	edits, _ := e.Plan(m)
	if len(edits) != 1 {
		t.Fatalf("edits = %d", len(edits))
	}
	points, err := e.Apply(m, edits)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("points = %+v", points)
	}
	if diff := cmp.Diff([]il.Opcode{il.OpCall, il.OpPop, il.OpRet}, opsOf(m)); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
	if m.MaxStack != il.DefaultMaxStack {
		t.Errorf("MaxStack = %d", m.MaxStack)
	}
}

func TestLocalAccess(t *testing.T) {
	tests := []struct {
		index   uint32
		ld, st  il.Opcode
		operand int64
	}{
		{0, il.OpLdloc0, il.OpStloc0, 0},
		{3, il.OpLdloc3, il.OpStloc3, 0},
		{4, il.OpLdlocS, il.OpStlocS, 4},
		{255, il.OpLdlocS, il.OpStlocS, 255},
		{256, il.OpLdloc, il.OpStloc, 256},
	}
	for _, tt := range tests {
		ld, st := ldloc(tt.index), stloc(tt.index)
		if ld.Op != tt.ld || st.Op != tt.st || ld.Operand != tt.operand || st.Operand != tt.operand {
			t.Errorf("index %d: %s %d / %s %d", tt.index, ld.Op, ld.Operand, st.Op, st.Operand)
		}
		if !ld.IsInserted() {
			t.Errorf("index %d: ldloc not marked inserted", tt.index)
		}
	}
}
