package sig_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/sig"
)

// IObservable<!!0> Select<T>(IObservable<!!0>) style method ref.
var selectRef = []byte{0x10, 0x01, 0x01, 0x15, 0x12, 0x35, 0x01, 0x1e, 0x00, 0x15, 0x12, 0x55, 0x01, 0x1e, 0x00}

// IObservable<!!2> Zip<T1, T2, TResult>(IObservable<!!0>, IObservable<!!1>, Func<!!0, !!1, !!2>).
var zipRef = []byte{
	0x10, 0x03, 0x03,
	0x15, 0x12, 0x35, 0x01, 0x1e, 0x02,
	0x15, 0x12, 0x35, 0x01, 0x1e, 0x00,
	0x15, 0x12, 0x35, 0x01, 0x1e, 0x01,
	0x15, 0x12, 0x41, 0x03, 0x1e, 0x00, 0x1e, 0x01, 0x1e, 0x02,
}

func TestParseMethodSig_GenericReturn(t *testing.T) {
	ms, err := sig.ParseMethodSig(selectRef)
	if err != nil {
		t.Fatalf("ParseMethodSig: %v", err)
	}
	if ms.GenericParamCount != 1 {
		t.Errorf("GenericParamCount = %d, want 1", ms.GenericParamCount)
	}
	if ms.ParamCount() != 1 {
		t.Errorf("ParamCount = %d, want 1", ms.ParamCount())
	}
	ret := ms.Return()
	if ret.Type.Kind() != sig.ElemGenericInst {
		t.Fatalf("return kind = %s, want genericinst", ret.Type.Kind())
	}
	g, err := sig.GenericInstOf(ret.Type)
	if err != nil {
		t.Fatal(err)
	}
	if g.Token != sig.NewToken(sig.TableTypeRef, 0x0D) {
		t.Errorf("return token = %s", g.Token)
	}
	if diff := cmp.Diff([]byte{0x15, 0x12, 0x35, 0x01, 0x1e, 0x00}, ret.Type.Span().Bytes); diff != "" {
		t.Errorf("return span (-want +got):\n%s", diff)
	}
	if ret.Type.Span().Offset != 3 {
		t.Errorf("return offset = %d, want 3", ret.Type.Span().Offset)
	}

	spec, err := sig.MethodSpecArgSpans([]byte{0x0a, 0x01, 0x0e})
	if err != nil {
		t.Fatal(err)
	}
	got, err := sig.Substitute(g.Args[0], nil, spec)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if diff := cmp.Diff([]byte{byte(sig.ElemString)}, got); diff != "" {
		t.Errorf("substituted (-want +got):\n%s", diff)
	}
}

func TestSubstitute_Zip(t *testing.T) {
	ms, err := sig.ParseMethodSig(zipRef)
	if err != nil {
		t.Fatalf("ParseMethodSig: %v", err)
	}
	if ms.GenericParamCount != 3 || ms.ParamCount() != 3 {
		t.Fatalf("counts = %d/%d, want 3/3", ms.GenericParamCount, ms.ParamCount())
	}
	args, err := sig.MethodSpecArgSpans([]byte{0x0a, 0x03, 0x0e, 0x0a, 0x0e})
	if err != nil {
		t.Fatal(err)
	}

	first, err := sig.Substitute(ms.Params[1].Type, nil, args)
	if err != nil {
		t.Fatalf("Substitute param 1: %v", err)
	}
	if len(first) != 5 {
		t.Errorf("param 1 length = %d, want 5", len(first))
	}
	if diff := cmp.Diff([]byte{0x15, 0x12, 0x35, 0x01, 0x0e}, first); diff != "" {
		t.Errorf("param 1 (-want +got):\n%s", diff)
	}

	elem, err := sig.TypeArgSpans(ms.Return().Type)
	if err != nil {
		t.Fatal(err)
	}
	argNode, _, err := sig.ParseType(elem[0], 0)
	if err != nil {
		t.Fatal(err)
	}
	ret, err := sig.Substitute(argNode, nil, args)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x0e}, ret); diff != "" {
		t.Errorf("return arg (-want +got):\n%s", diff)
	}

	fn, err := sig.Substitute(ms.Params[3].Type, nil, args)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x15, 0x12, 0x41, 0x03, 0x0e, 0x0a, 0x0e}, fn); diff != "" {
		t.Errorf("func param (-want +got):\n%s", diff)
	}
}

func TestSubstitute_Errors(t *testing.T) {
	ms, err := sig.ParseMethodSig(zipRef)
	if err != nil {
		t.Fatal(err)
	}

	_, err = sig.Substitute(ms.Params[3].Type, nil, [][]byte{{0x0e}})
	if k, _ := errors.KindOf(err); k != errors.KindOutOfBounds {
		t.Errorf("short method args: got %v", err)
	}

	// !0 with only method args supplied
	varNode, _, err := sig.ParseType([]byte{0x13, 0x00}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sig.Substitute(varNode, nil, [][]byte{{0x0e}}); err == nil {
		t.Error("type var without type args should fail")
	}
	got, err := sig.Substitute(varNode, [][]byte{{0x08}}, nil)
	if err != nil || len(got) != 1 || got[0] != 0x08 {
		t.Errorf("type var: got % x, %v", got, err)
	}

	if _, err := sig.Substitute(nil, nil, nil); !errors.IsLogic(err) {
		t.Errorf("nil node: got %v", err)
	}
}

func TestSubstitute_NoVarsIsVerbatim(t *testing.T) {
	blob := []byte{0x15, 0x12, 0x35, 0x02, 0x0e, 0x1d, 0x08}
	n, _, err := sig.ParseType(blob, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sig.HasGenericVars(n) {
		t.Error("HasGenericVars = true")
	}
	got, err := sig.Substitute(n, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(blob, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCheckMethodSig(t *testing.T) {
	tests := []struct {
		name   string
		blob   []byte
		format bool
	}{
		{"void(string)", []byte{0x00, 0x01, 0x01, 0x0e}, false},
		{"select", selectRef, false},
		{"zip", zipRef, false},
		{"trailing byte", []byte{0x00, 0x01, 0x01, 0x0e, 0x00}, true},
		{"truncated", []byte{0x10, 0x01}, true},
		{"unknown element", []byte{0x00, 0x00, 0x42}, true},
		{"field convention", []byte{0x06, 0x00, 0x01}, true},
		{"local convention", []byte{0x07, 0x00, 0x01}, true},
		{"void parameter", []byte{0x00, 0x01, 0x01, 0x01}, true},
		{"byref void return", []byte{0x00, 0x00, 0x10, 0x01}, true},
		{"sentinel at return", []byte{0x05, 0x01, 0x41, 0x01, 0x08}, true},
		{"double sentinel", []byte{0x05, 0x02, 0x01, 0x41, 0x08, 0x41, 0x08}, true},
		{"generic inst of int", []byte{0x00, 0x00, 0x15, 0x08, 0x35, 0x01, 0x08}, true},
		{"bad coded index", []byte{0x00, 0x00, 0x12, 0x07}, true},
		{"szarray of void", []byte{0x00, 0x00, 0x1d, 0x01}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sig.CheckMethodSig(tt.blob)
			if tt.format {
				if !errors.IsFormat(err) {
					t.Errorf("want format error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestMethodSigReader(t *testing.T) {
	// vararg void (int32, ..., string)
	blob := []byte{0x05, 0x02, 0x01, 0x08, 0x41, 0x0e}
	mr, err := sig.NewMethodSigReader(blob)
	if err != nil {
		t.Fatal(err)
	}
	if mr.ParamCount() != 2 || mr.Flags().Kind() != sig.ConvVarArg {
		t.Fatalf("header: count %d flags 0x%02x", mr.ParamCount(), byte(mr.Flags()))
	}

	type seen struct {
		Index  int
		Void   bool
		VarArg bool
		Elem   sig.ElementType
	}
	var got []seen
	for mr.Next() {
		p := mr.Param()
		s := seen{Index: mr.Index(), Void: p.Void, VarArg: p.VarArg}
		if p.HasType() {
			s.Elem = p.Type.Kind()
		}
		got = append(got, s)
	}
	if err := mr.Err(); err != nil {
		t.Fatal(err)
	}
	want := []seen{
		{Index: 0, Void: true},
		{Index: 1, Elem: sig.ElemI4},
		{Index: 2, Elem: sig.ElemString, VarArg: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if mr.Next() {
		t.Error("Next after end should be false")
	}

	ms, err := sig.ParseMethodSig(blob)
	if err != nil {
		t.Fatal(err)
	}
	if ms.VarArgStart() != 2 {
		t.Errorf("VarArgStart = %d, want 2", ms.VarArgStart())
	}
}

func TestParamShapes(t *testing.T) {
	// instance typedref (modopt(0x01000002) int32&, typedref)
	blob := []byte{0x20, 0x02, 0x16, 0x20, 0x09, 0x10, 0x08, 0x16}
	ms, err := sig.ParseMethodSig(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !ms.HasThis() {
		t.Error("HasThis = false")
	}
	if !ms.Return().TypedByRef {
		t.Error("return should be typedref")
	}
	p := ms.Params[1]
	if !p.ByRef || len(p.Mods) != 1 || p.Mods[0].Required || p.Mods[0].Token != sig.NewToken(sig.TableTypeRef, 2) {
		t.Errorf("param 1 = %+v", p)
	}
	if diff := cmp.Diff([]byte{0x20, 0x09, 0x10, 0x08}, p.Span.Bytes); diff != "" {
		t.Errorf("param span (-want +got):\n%s", diff)
	}
	if !ms.Params[2].TypedByRef {
		t.Error("param 2 should be typedref")
	}
}

func TestParseType(t *testing.T) {
	t.Run("array shape", func(t *testing.T) {
		// int32[-1...1, ]
		blob := []byte{0x14, 0x08, 0x02, 0x01, 0x03, 0x01, 0x7F}
		n, next, err := sig.ParseType(blob, 0)
		if err != nil {
			t.Fatal(err)
		}
		if next != len(blob) {
			t.Errorf("next = %d, want %d", next, len(blob))
		}
		arr, ok := n.(*sig.Array)
		if !ok {
			t.Fatalf("got %T", n)
		}
		want := sig.ArrayShape{Rank: 2, Sizes: []uint32{3}, LoBounds: []int32{-1}}
		if diff := cmp.Diff(want, arr.Shape); diff != "" {
			t.Errorf("shape (-want +got):\n%s", diff)
		}
		if s := sig.FormatType(n, nil); s != "int32[-1...1,]" {
			t.Errorf("FormatType = %q", s)
		}
	})

	t.Run("void pointer", func(t *testing.T) {
		n, _, err := sig.ParseType([]byte{0x0f, 0x01}, 0)
		if err != nil {
			t.Fatal(err)
		}
		p, ok := n.(*sig.Pointer)
		if !ok || !p.IsVoid() {
			t.Fatalf("got %#v", n)
		}
		if s := sig.FormatType(n, nil); s != "void*" {
			t.Errorf("FormatType = %q", s)
		}
	})

	t.Run("function pointer", func(t *testing.T) {
		n, _, err := sig.ParseType([]byte{0x1b, 0x00, 0x01, 0x08, 0x0e}, 0)
		if err != nil {
			t.Fatal(err)
		}
		fp, ok := n.(*sig.FnPtr)
		if !ok {
			t.Fatalf("got %T", n)
		}
		if fp.Sig.ParamCount() != 1 || fp.Sig.Return().Type.Kind() != sig.ElemI4 {
			t.Errorf("fnptr sig = %+v", fp.Sig)
		}
	})

	t.Run("mid-blob position", func(t *testing.T) {
		blob := []byte{0xFF, 0x1d, 0x0e, 0xFF}
		n, next, err := sig.ParseType(blob, 1)
		if err != nil {
			t.Fatal(err)
		}
		if next != 3 || n.Span().Offset != 1 || n.Span().Len() != 2 {
			t.Errorf("next=%d span=%+v", next, n.Span())
		}
	})

	t.Run("nesting limit", func(t *testing.T) {
		blob := make([]byte, 0, 200)
		for i := 0; i < 100; i++ {
			blob = append(blob, 0x1d)
		}
		blob = append(blob, 0x08)
		if _, _, err := sig.ParseType(blob, 0); !errors.IsFormat(err) {
			t.Errorf("want format error, got %v", err)
		}
	})
}

func TestGenericInstOf_Logic(t *testing.T) {
	n, _, err := sig.ParseType([]byte{0x12, 0x35}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sig.GenericInstOf(n); !errors.IsLogic(err) {
		t.Errorf("GenericInstOf: want logic error, got %v", err)
	}
	if _, err := sig.TypeArgSpans(n); !errors.IsLogic(err) {
		t.Errorf("TypeArgSpans: want logic error, got %v", err)
	}
}

func TestParseTypeSpec(t *testing.T) {
	n, err := sig.ParseTypeSpec([]byte{0x15, 0x12, 0x35, 0x02, 0x0e, 0x08})
	if err != nil {
		t.Fatal(err)
	}
	spans, err := sig.TypeArgSpans(n)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]byte{{0x0e}, {0x08}}, spans); diff != "" {
		t.Errorf("spans (-want +got):\n%s", diff)
	}
	if _, err := sig.ParseTypeSpec([]byte{0x0e, 0x0e}); !errors.IsFormat(err) {
		t.Errorf("trailing bytes: got %v", err)
	}
}

func TestParseMethodSpec(t *testing.T) {
	ms, err := sig.ParseMethodSpec([]byte{0x0a, 0x02, 0x0e, 0x1e, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]byte{{0x0e}, {0x1e, 0x00}}, ms.ArgSpans()); diff != "" {
		t.Errorf("spans (-want +got):\n%s", diff)
	}

	bad := [][]byte{
		{0x0b, 0x01, 0x0e},
		{0x0a, 0x00},
		{0x0a, 0x02, 0x0e},
		{0x0a, 0x01, 0x0e, 0x0e},
	}
	for _, b := range bad {
		if _, err := sig.ParseMethodSpec(b); !errors.IsFormat(err) {
			t.Errorf("ParseMethodSpec(% x): want format error, got %v", b, err)
		}
	}
}

func TestParseFieldSig(t *testing.T) {
	fs, err := sig.ParseFieldSig([]byte{0x06, 0x1f, 0x09, 0x08})
	if err != nil {
		t.Fatal(err)
	}
	if fs.Type.Kind() != sig.ElemI4 || len(fs.Mods) != 1 || !fs.Mods[0].Required {
		t.Errorf("field sig = %+v", fs)
	}
	if _, err := sig.ParseFieldSig([]byte{0x07, 0x08}); !errors.IsFormat(err) {
		t.Errorf("bad marker: got %v", err)
	}
}

func TestFormatType(t *testing.T) {
	names := sig.Namer(func(tok sig.Token) string {
		if tok == sig.NewToken(sig.TableTypeRef, 0x0D) {
			return "System.IObservable`1"
		}
		return ""
	})
	ms, err := sig.ParseMethodSig(selectRef)
	if err != nil {
		t.Fatal(err)
	}
	if s := sig.FormatType(ms.Return().Type, names); s != "class System.IObservable`1<!!0>" {
		t.Errorf("FormatType = %q", s)
	}
	want := "class System.IObservable`1<!!0> <1> (class [0x01000015]<!!0>)"
	if s := sig.FormatMethodSig(ms, names); s != want {
		t.Errorf("FormatMethodSig = %q, want %q", s, want)
	}
}
