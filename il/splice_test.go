package il_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/il"
)

// ldarg.0; brtrue.s IL_0004; nop; ret
var condBody = tinyHeader([]byte{0x02, 0x2D, 0x01, 0x00, 0x2A})

func TestInsertBefore_RetargetsBranchesAndClauses(t *testing.T) {
	m := mustDecode(t, finallyBody)
	ret, ok := m.FindOrigOffset(3)
	if !ok {
		t.Fatal("ret not found")
	}
	leave := m.At(1)

	hs, err := m.InsertBefore(ret, il.MakeI4(7), il.Make(il.OpPop, 0))
	if err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	if len(hs) != 2 {
		t.Fatalf("handles = %d, want 2", len(hs))
	}
	if m.Target(leave, 0) != hs[0] {
		t.Errorf("leave target = %d, want %d", m.Target(leave, 0), hs[0])
	}
	if m.Clauses[0].TryEnd != hs[0] {
		t.Errorf("try end = %d, want %d", m.Clauses[0].TryEnd, hs[0])
	}
	if m.Next(hs[1]) != ret {
		t.Errorf("block not followed by ret")
	}

	out := mustEncode(t, m)
	wantCode := []byte{
		0x00,
		0xDD, 0x00, 0x00, 0x00, 0x00,
		0x20, 0x07, 0x00, 0x00, 0x00,
		0x26,
		0x2A,
		0xDC,
	}
	if diff := cmp.Diff(wantCode, out[12:12+len(wantCode)]); diff != "" {
		t.Errorf("code (-want +got):\n%s", diff)
	}
	// try [0, 6), handler [13, 14)
	wantClause := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x06, 0x00, 0x00, 0x00,
		0x0D, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	if diff := cmp.Diff(wantClause, out[len(out)-24:]); diff != "" {
		t.Errorf("clause (-want +got):\n%s", diff)
	}
}

func TestInsertBefore_TryStart(t *testing.T) {
	m := mustDecode(t, finallyBody)
	first := m.At(0)

	hs, err := m.InsertBefore(first, il.Make(il.OpNop, 0))
	if err != nil {
		t.Fatal(err)
	}
	if m.Clauses[0].TryStart != hs[0] {
		t.Errorf("try start = %d, want inserted %d", m.Clauses[0].TryStart, hs[0])
	}
	if m.Get(hs[0]).Offset != 0 || m.Get(first).Offset != 1 {
		t.Errorf("offsets = %d, %d", m.Get(hs[0]).Offset, m.Get(first).Offset)
	}
}

func TestInsertBefore_RepeatedAtSameInstruction(t *testing.T) {
	m := mustDecode(t, condBody)
	ret, _ := m.FindOrigOffset(4)
	br := m.At(1)

	a, err := m.InsertBefore(ret, il.Make(il.OpNop, 0))
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.InsertBefore(ret, il.Make(il.OpDup, 0), il.Make(il.OpPop, 0))
	if err != nil {
		t.Fatal(err)
	}

	// The branch moved to the first block; the first block falls into the second.
	if m.Target(br, 0) != a[0] {
		t.Errorf("branch target = %d, want %d", m.Target(br, 0), a[0])
	}
	want := []il.Opcode{il.OpLdarg0, il.OpBrtrue, il.OpNop, il.OpNop, il.OpDup, il.OpPop, il.OpRet}
	if diff := cmp.Diff(want, ops(m)); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
	if m.Next(a[0]) != b[0] {
		t.Error("blocks out of order")
	}
}

func TestInsertAfter_DoesNotRedirect(t *testing.T) {
	probe := []il.Instruction{il.Make(il.OpLdcI4_1, 0), il.Make(il.OpPop, 0)}

	t.Run("after", func(t *testing.T) {
		m := mustDecode(t, condBody)
		nop, _ := m.FindOrigOffset(3)
		ret, _ := m.FindOrigOffset(4)

		if _, err := m.InsertAfter(nop, probe...); err != nil {
			t.Fatal(err)
		}
		if m.Target(m.At(1), 0) != ret {
			t.Errorf("branch left ret")
		}
		want := []byte{0x02, 0x3A, 0x03, 0x00, 0x00, 0x00, 0x00, 0x17, 0x26, 0x2A}
		if diff := cmp.Diff(want, mustEncode(t, m)[12:]); diff != "" {
			t.Errorf("code (-want +got):\n%s", diff)
		}
	})

	t.Run("before", func(t *testing.T) {
		m := mustDecode(t, condBody)
		ret, _ := m.FindOrigOffset(4)

		if _, err := m.InsertBefore(ret, probe...); err != nil {
			t.Fatal(err)
		}
		want := []byte{0x02, 0x3A, 0x01, 0x00, 0x00, 0x00, 0x00, 0x17, 0x26, 0x2A}
		if diff := cmp.Diff(want, mustEncode(t, m)[12:]); diff != "" {
			t.Errorf("code (-want +got):\n%s", diff)
		}
	})
}

func TestInsertAfter_EndLabel(t *testing.T) {
	m := mustDecode(t, finallyBody)
	_, err := m.InsertAfter(m.Clauses[0].HandlerEnd, il.Make(il.OpNop, 0))
	if !errors.IsLogic(err) {
		t.Fatalf("err = %v, want logic error", err)
	}
}

func TestInsert_WindowDisplacement(t *testing.T) {
	// ldarg.0; ret
	body := tinyHeader([]byte{0x02, 0x2A})

	t.Run("branch to follower", func(t *testing.T) {
		m := mustDecode(t, body)
		ret := m.At(1)

		hs, err := m.InsertBefore(ret,
			il.Make(il.OpDup, 0),
			il.Make(il.OpBrtrueS, 1),
			il.Make(il.OpPop, 0),
		)
		if err != nil {
			t.Fatal(err)
		}
		if m.Get(hs[1]).Op != il.OpBrtrue {
			t.Errorf("inserted branch not widened: %s", m.Get(hs[1]).Op)
		}
		if m.Target(hs[1], 0) != ret {
			t.Errorf("target = %d, want ret %d", m.Target(hs[1], 0), ret)
		}
		want := []byte{0x02, 0x25, 0x3A, 0x01, 0x00, 0x00, 0x00, 0x26, 0x2A}
		if diff := cmp.Diff(want, mustEncode(t, m)[12:]); diff != "" {
			t.Errorf("code (-want +got):\n%s", diff)
		}
	})

	t.Run("branch within block", func(t *testing.T) {
		m := mustDecode(t, body)
		hs, err := m.InsertBefore(m.At(1),
			il.Make(il.OpBrS, 0),
			il.Make(il.OpNop, 0),
		)
		if err != nil {
			t.Fatal(err)
		}
		if m.Target(hs[0], 0) != hs[1] {
			t.Errorf("target = %d, want %d", m.Target(hs[0], 0), hs[1])
		}
	})

	t.Run("outside window", func(t *testing.T) {
		m := mustDecode(t, body)
		_, err := m.InsertBefore(m.At(1), il.Make(il.OpBrS, 5))
		if !errors.IsLogic(err) {
			t.Fatalf("err = %v, want logic error", err)
		}
		if m.Len() != 2 {
			t.Errorf("method changed: %d instructions", m.Len())
		}
	})
}

func TestInsert_Rejects(t *testing.T) {
	m := mustDecode(t, tinyBody)
	ret := m.At(2)

	tests := []struct {
		name string
		seq  []il.Instruction
	}{
		{"empty", nil},
		{"label", []il.Instruction{il.Make(il.OpLabel, 0)}},
		{"invalid opcode", []il.Instruction{il.Make(il.Opcode(0x24), 0)}},
		{"switch without targets", []il.Instruction{il.Make(il.OpSwitch, 2)}},
		{"foreign target", []il.Instruction{il.MakeBranch(il.OpBr, il.Handle(99))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.InsertBefore(ret, tt.seq...); !errors.IsLogic(err) {
				t.Fatalf("err = %v, want logic error", err)
			}
			if m.Len() != 3 {
				t.Errorf("method changed: %d instructions", m.Len())
			}
		})
	}

	if _, err := m.InsertBefore(il.Handle(42), il.Make(il.OpNop, 0)); !errors.IsLogic(err) {
		t.Errorf("bad handle: err = %v", err)
	}
}

func TestInsert_SwitchWithTargets(t *testing.T) {
	m := mustDecode(t, tinyHeader(switchCode))
	a, _ := m.FindOrigOffset(14)
	b, _ := m.FindOrigOffset(16)

	sw := il.Make(il.OpSwitch, 0)
	sw.Targets = []il.Handle{b, a, b}
	hs, err := m.InsertBefore(m.At(0), il.Make(il.OpLdarg0, 0), sw)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(hs[1]).Size(); got != 1+4+12 {
		t.Errorf("switch size = %d, want 17", got)
	}

	again := mustDecode(t, mustEncode(t, m))
	in := again.Get(again.At(1))
	if in.Op != il.OpSwitch || len(in.Targets) != 3 {
		t.Fatalf("re-decoded %s with %d targets", in.Op, len(in.Targets))
	}
	if again.Get(in.Targets[0]).Op != il.OpLdcI4_1 || again.Get(in.Targets[1]).Op != il.OpLdcI4_0 {
		t.Error("switch targets moved")
	}
}

func TestInsertAtOffsets(t *testing.T) {
	m := mustDecode(t, shortBranchBody)

	// ret was at 3 originally and is at 6 after widening.
	if _, err := m.InsertAtOrigOffset(3, il.Make(il.OpNop, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.InsertAtOffset(0, il.Make(il.OpNop, 0)); err != nil {
		t.Fatal(err)
	}

	want := []il.Opcode{il.OpNop, il.OpBr, il.OpNop, il.OpNop, il.OpRet}
	if diff := cmp.Diff(want, ops(m)); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}

	wantMap := []il.ILMapEntry{{Old: 0, New: 1}, {Old: 2, New: 6}, {Old: 3, New: 8}}
	if diff := cmp.Diff(wantMap, m.ILMap()); diff != "" {
		t.Errorf("ILMap (-want +got):\n%s", diff)
	}

	_, err := m.InsertAtOrigOffset(1, il.Make(il.OpNop, 0))
	if k, _ := errors.KindOf(err); k != errors.KindNotFound {
		t.Errorf("mid-instruction orig offset: err = %v", err)
	}
	_, err = m.InsertAtOffset(100, il.Make(il.OpNop, 0))
	if k, _ := errors.KindOf(err); k != errors.KindNotFound {
		t.Errorf("missing offset: err = %v", err)
	}
}

func TestHasSequenceAt(t *testing.T) {
	m := mustDecode(t, tinyBody)
	if _, err := m.InsertAfter(m.At(0), il.MakeI4(5), il.Make(il.OpPop, 0)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		orig int
		seq  []il.Instruction
		want bool
	}{
		{"match", 0, []il.Instruction{il.Make(il.OpLdarg0, 0), il.MakeI4(5), il.Make(il.OpPop, 0)}, true},
		{"operand differs", 0, []il.Instruction{il.Make(il.OpLdarg0, 0), il.MakeI4(6)}, false},
		{"runs past end", 2, []il.Instruction{il.Make(il.OpRet, 0), il.Make(il.OpNop, 0)}, false},
		{"no such offset", 9, []il.Instruction{il.Make(il.OpRet, 0)}, false},
		{"inserted offset", il.NoOffset, []il.Instruction{il.MakeI4(5)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.HasSequenceAt(tt.orig, tt.seq); got != tt.want {
				t.Errorf("HasSequenceAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSequenceAt(t *testing.T) {
	m := mustDecode(t, tinyBody)
	if _, err := m.InsertAfter(m.At(0), il.MakeI4(5)); err != nil {
		t.Fatal(err)
	}

	hs, ok := m.SequenceAt(0, il.OpLdarg0, il.OpLdcI4, il.OpPop)
	if !ok || len(hs) != 3 {
		t.Fatalf("SequenceAt = %v, %v", hs, ok)
	}
	if m.Get(hs[1]).Operand != 5 {
		t.Errorf("operand = %d, want 5", m.Get(hs[1]).Operand)
	}
	if _, ok := m.SequenceAt(0, il.OpLdarg0, il.OpPop); ok {
		t.Error("matched across the inserted ldc.i4")
	}
	if _, ok := m.SequenceAt(1, il.OpPop, il.OpRet, il.OpNop); ok {
		t.Error("matched past the end of code")
	}
}

func TestInsertAtOrigOffset_FilterStart(t *testing.T) {
	m := mustDecode(t, filterBody)
	filter := m.Clauses[0].FilterStart
	handler := m.Clauses[0].HandlerStart

	hs, err := m.InsertAtOrigOffset(3, il.Make(il.OpNop, 0))
	if err != nil {
		t.Fatalf("InsertAtOrigOffset: %v", err)
	}
	c := m.Clauses[0]
	if c.FilterStart != hs[0] {
		t.Errorf("filter start = %d, want inserted %d", c.FilterStart, hs[0])
	}
	if c.TryEnd != hs[0] {
		t.Errorf("try end = %d, want inserted %d", c.TryEnd, hs[0])
	}
	if c.HandlerStart != handler {
		t.Errorf("handler start moved to %d", c.HandlerStart)
	}
	if m.Next(hs[0]) != filter {
		t.Error("inserted block not followed by the old filter start")
	}

	// try [0, 6), handler [11, 17), filter 6
	out := mustEncode(t, m)
	if diff := cmp.Diff(fatClause(il.ClauseFilter, 0, 6, 11, 6, 6), out[len(out)-24:]); diff != "" {
		t.Errorf("clause (-want +got):\n%s", diff)
	}
}

func TestStackAndLocals(t *testing.T) {
	m := mustDecode(t, tinyBody)
	m.IncreaseMaxStack(1)
	if m.MaxStack != 9 {
		t.Errorf("MaxStack = %d, want 9", m.MaxStack)
	}
	m.SetMinMaxStack(4)
	if m.MaxStack != 9 {
		t.Errorf("SetMinMaxStack lowered MaxStack to %d", m.MaxStack)
	}
	m.SetMinMaxStack(12)
	if m.MaxStack != 12 {
		t.Errorf("MaxStack = %d, want 12", m.MaxStack)
	}

	m.SetLocals(0x11000003)
	out := mustEncode(t, m)
	if diff := cmp.Diff(fatHeader(il.FlagInitLocals, 12, 3, 0x11000003), out[:12]); diff != "" {
		t.Errorf("header (-want +got):\n%s", diff)
	}
}
