package instrument

import (
	"fmt"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/instrument/internal/engine"
	"github.com/wippyai/ilrewrite/metadata"
	"github.com/wippyai/ilrewrite/sig"
)

// resolveTracked binds the configured interfaces to the module's type
// references. Interfaces the module never references are dropped. The
// root must be referenced; otherwise nothing in the module can return a
// tracked value and the returned slice is nil.
func resolveTracked(mod metadata.Resolver, family []Interface) ([]engine.Tracked, sig.Token) {
	var (
		tracked []engine.Tracked
		root    sig.Token
	)
	for _, iface := range family {
		tok, ok := mod.FindTypeRef(iface.Name)
		if !ok {
			continue
		}
		if iface.Root && root.IsNil() {
			root = tok
		}
		tracked = append(tracked, engine.Tracked{Interface: iface, Token: tok})
	}
	if root.IsNil() {
		return nil, 0
	}
	return tracked, root
}

// defineProbes emits the support assembly, type and probe member
// references into mod. root is the module's reference to the root
// interface.
func defineProbes(mod metadata.Emitter, names ProbeNames, root sig.Token) (engine.Probes, error) {
	var p engine.Probes
	asm, err := mod.DefineAssemblyRef(names.Assembly, names.PublicKeyToken, names.Version)
	if err != nil {
		return p, fmt.Errorf("defining assembly %s: %w", names.Assembly, err)
	}
	typ, err := mod.DefineTypeRef(asm, names.Type)
	if err != nil {
		return p, fmt.Errorf("defining type %s: %w", names.Type, err)
	}

	passThrough, err := passThroughSig(root)
	if err != nil {
		return p, err
	}
	subinterface, err := subinterfaceSig()
	if err != nil {
		return p, err
	}
	calling, err := callingSig()
	if err != nil {
		return p, err
	}

	members := []struct {
		dst  *sig.Token
		name string
		blob []byte
	}{
		{&p.Returned, names.Returned, passThrough},
		{&p.ReturnedSubinterface, names.ReturnedSubinterface, subinterface},
		{&p.Calling, names.Calling, calling},
		{&p.Argument, names.Argument, passThrough},
	}
	for _, m := range members {
		if m.name == "" {
			continue
		}
		tok, err := mod.DefineMemberRef(typ, m.name, m.blob)
		if err != nil {
			return p, fmt.Errorf("defining probe %s: %w", m.name, err)
		}
		*m.dst = tok
	}
	if p.Returned.IsNil() {
		return p, errors.InvalidInput(errors.PhaseEmit, "probe Returned has no name")
	}
	return p, nil
}

// passThroughSig is IObservable<!!0> M<T>(IObservable<!!0>, int32).
func passThroughSig(root sig.Token) ([]byte, error) {
	mw := sig.NewMethodSigWriter(false, 2, 1)
	for i := 0; i < 2; i++ {
		tw, err := mw.Param()
		if err != nil {
			return nil, err
		}
		if err := tw.GenericClass(root, 1); err != nil {
			return nil, err
		}
		arg, err := tw.Arg()
		if err != nil {
			return nil, err
		}
		if err := arg.MethodVar(0); err != nil {
			return nil, err
		}
	}
	if err := primitiveParam(mw, sig.ElemI4); err != nil {
		return nil, err
	}
	return mw.Bytes()
}

// subinterfaceSig is !!1 M<T, TObs>(!!1, int32).
func subinterfaceSig() ([]byte, error) {
	mw := sig.NewMethodSigWriter(false, 2, 2)
	for i := 0; i < 2; i++ {
		tw, err := mw.Param()
		if err != nil {
			return nil, err
		}
		if err := tw.MethodVar(1); err != nil {
			return nil, err
		}
	}
	if err := primitiveParam(mw, sig.ElemI4); err != nil {
		return nil, err
	}
	return mw.Bytes()
}

// callingSig is void M(int32).
func callingSig() ([]byte, error) {
	mw := sig.NewMethodSigWriter(false, 1, 0)
	if err := mw.VoidReturn(); err != nil {
		return nil, err
	}
	if err := primitiveParam(mw, sig.ElemI4); err != nil {
		return nil, err
	}
	return mw.Bytes()
}

func primitiveParam(mw *sig.MethodSigWriter, e sig.ElementType) error {
	tw, err := mw.Param()
	if err != nil {
		return err
	}
	return tw.Primitive(e)
}
