package engine

import (
	"encoding/binary"
	"testing"

	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/metadata"
	"github.com/wippyai/ilrewrite/sig"
)

// Type references are added in this order, so their TypeDefOrRef codes are
// fixed: IObservable`1 0x05, IConnectableObservable`1 0x09,
// IGroupedObservable`2 0x0D, Subject`1 0x15.
type fixture struct {
	img     *metadata.Image
	probes  Probes
	tracked []Tracked

	ret       sig.Token // Observable::Return<string>
	never     sig.Token // Observable::Never, non-generic IObservable<string>
	publish   sig.Token // Observable::Publish<int32>
	group     sig.Token // Observable::Group<string, int32>
	asObs     sig.Token // Subject`1<string>::AsObservable
	merge     sig.Token // Observable::Merge<string>
	subMerge  sig.Token // Subject`1<string>::Merge
	out       sig.Token // Observable::Out<string>, by-ref second parameter
	writeLine sig.Token // Console::WriteLine
	refRet    sig.Token // Observable::Ref, returns IObservable<string>&
	broken    sig.Token // member with a truncated signature
	subject   sig.Token // TypeSpec Subject`1<string>
}

var (
	observableOfMVar0 = []byte{0x15, 0x12, 0x05, 0x01, 0x1e, 0x00}
	returnedSig       = []byte{0x10, 0x01, 0x02, 0x15, 0x12, 0x05, 0x01, 0x1e, 0x00, 0x15, 0x12, 0x05, 0x01, 0x1e, 0x00, 0x08}
	subinterfaceSig   = []byte{0x10, 0x02, 0x02, 0x1e, 0x01, 0x1e, 0x01, 0x08}
	callingSig        = []byte{0x00, 0x01, 0x01, 0x08}
	observableString  = []byte{0x15, 0x12, 0x05, 0x01, 0x0e}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	img := metadata.NewImage(1, "App.dll")
	core := img.AddAssemblyRef(metadata.AssemblyRef{Name: "System.Runtime"})
	obs := img.AddTypeRef(core, "System.IObservable`1")
	conn := img.AddTypeRef(core, "System.Reactive.Subjects.IConnectableObservable`1")
	grouped := img.AddTypeRef(core, "System.Reactive.Linq.IGroupedObservable`2")
	linq := img.AddTypeRef(core, "System.Reactive.Linq.Observable")
	img.AddTypeRef(core, "System.Reactive.Subjects.Subject`1")
	console := img.AddTypeRef(core, "System.Console")
	support := img.AddTypeRef(core, "ReactivityProfiler.Support.Instrument")

	f := &fixture{img: img}
	f.tracked = []Tracked{
		{Interface: Interface{Name: "System.IObservable`1", Arity: 1, Root: true}, Token: obs},
		{Interface: Interface{Name: "System.Reactive.Subjects.IConnectableObservable`1", Arity: 1}, Token: conn},
		{Interface: Interface{Name: "System.Reactive.Linq.IGroupedObservable`2", Arity: 2, ElemArg: 1}, Token: grouped},
	}
	f.probes = Probes{
		Returned:             img.AddMemberRef(support, "Returned", returnedSig),
		ReturnedSubinterface: img.AddMemberRef(support, "ReturnedSubinterface", subinterfaceSig),
		Calling:              img.AddMemberRef(support, "Calling", callingSig),
		Argument:             img.AddMemberRef(support, "Argument", returnedSig),
	}

	// IObservable<!!0> Return<T>(!!0)
	ret := img.AddMemberRef(linq, "Return", []byte{0x10, 0x01, 0x01, 0x15, 0x12, 0x05, 0x01, 0x1e, 0x00, 0x1e, 0x00})
	f.ret = img.AddMethodSpec(ret, []byte{0x0a, 0x01, 0x0e})
	// IObservable<string> Never()
	f.never = img.AddMemberRef(linq, "Never", []byte{0x00, 0x00, 0x15, 0x12, 0x05, 0x01, 0x0e})
	// IConnectableObservable<!!0> Publish<T>(IObservable<!!0>)
	publish := img.AddMemberRef(linq, "Publish", []byte{0x10, 0x01, 0x01, 0x15, 0x12, 0x09, 0x01, 0x1e, 0x00, 0x15, 0x12, 0x05, 0x01, 0x1e, 0x00})
	f.publish = img.AddMethodSpec(publish, []byte{0x0a, 0x01, 0x08})
	// IGroupedObservable<!!0, !!1> Group<K, V>()
	group := img.AddMemberRef(linq, "Group", []byte{0x10, 0x02, 0x00, 0x15, 0x12, 0x0d, 0x02, 0x1e, 0x00, 0x1e, 0x01})
	f.group = img.AddMethodSpec(group, []byte{0x0a, 0x02, 0x0e, 0x08})

	f.subject = img.AddTypeSpec([]byte{0x15, 0x12, 0x15, 0x01, 0x0e})
	// instance IObservable<!0> AsObservable()
	f.asObs = img.AddMemberRef(f.subject, "AsObservable", []byte{0x20, 0x00, 0x15, 0x12, 0x05, 0x01, 0x13, 0x00})
	// instance IObservable<!0> Merge(IObservable<!0>)
	f.subMerge = img.AddMemberRef(f.subject, "Merge", []byte{0x20, 0x01, 0x15, 0x12, 0x05, 0x01, 0x13, 0x00, 0x15, 0x12, 0x05, 0x01, 0x13, 0x00})

	// IObservable<!!0> Merge<T>(IObservable<!!0>, IObservable<!!0>)
	merge := img.AddMemberRef(linq, "Merge", append(append(append([]byte{0x10, 0x01, 0x02}, observableOfMVar0...), observableOfMVar0...), observableOfMVar0...))
	f.merge = img.AddMethodSpec(merge, []byte{0x0a, 0x01, 0x0e})
	// IObservable<!!0> Out<T>(IObservable<!!0>, int32&)
	out := img.AddMemberRef(linq, "Out", append(append(append([]byte{0x10, 0x01, 0x02}, observableOfMVar0...), observableOfMVar0...), 0x10, 0x08))
	f.out = img.AddMethodSpec(out, []byte{0x0a, 0x01, 0x0e})

	f.writeLine = img.AddMemberRef(console, "WriteLine", []byte{0x00, 0x01, 0x01, 0x0e})
	f.refRet = img.AddMemberRef(linq, "Ref", []byte{0x00, 0x00, 0x10, 0x15, 0x12, 0x05, 0x01, 0x0e})
	f.broken = img.AddMemberRef(linq, "Broken", []byte{0x10, 0x01})
	return f
}

func (f *fixture) engine(arguments bool, ids ...int32) *Engine {
	cfg := Config{Module: f.img, Tracked: f.tracked, Probes: f.probes, Arguments: arguments}
	if len(ids) > 0 {
		next := 0
		cfg.NextID = func() int32 {
			id := ids[next%len(ids)]
			next++
			return id
		}
	}
	return New(cfg)
}

func tok(t sig.Token) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(t))
}

// call returns the bytes of call tok.
func call(t sig.Token) []byte {
	return append([]byte{0x28}, tok(t)...)
}

func tiny(code ...[]byte) []byte {
	var body []byte
	for _, c := range code {
		body = append(body, c...)
	}
	return append([]byte{byte(len(body)<<2 | 0x2)}, body...)
}

func decode(t *testing.T, body []byte) *il.Method {
	t.Helper()
	m, err := il.Decode(body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

func opsOf(m *il.Method) []il.Opcode {
	var out []il.Opcode
	for _, h := range m.Handles() {
		out = append(out, m.Get(h).Op)
	}
	return out
}
