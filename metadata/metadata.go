// Package metadata defines the collaborators the rewriter needs from a
// module's metadata: token resolution, method body access and token
// emission. Image is an in-memory implementation used by the command and by
// tests.
package metadata

import (
	"github.com/wippyai/ilrewrite/sig"
)

// MethodProps describes a MethodDef or MemberRef.
type MethodProps struct {
	Name   string
	Sig    []byte
	Token  sig.Token
	Parent sig.Token // TypeDef, TypeRef or TypeSpec
}

// MethodSpecProps describes a generic method instantiation.
type MethodSpecProps struct {
	Sig    []byte
	Token  sig.Token
	Method sig.Token // MethodDef or MemberRef
}

// TypeRefProps describes a type reference.
type TypeRefProps struct {
	Name  string // namespace-qualified, e.g. System.IObservable`1
	Token sig.Token
	Scope sig.Token
}

// Version is an assembly version.
type Version struct {
	Major, Minor, Build, Revision uint16
}

// Resolver reads existing metadata.
type Resolver interface {
	// MethodProps resolves a MethodDef or MemberRef token.
	MethodProps(tok sig.Token) (MethodProps, error)
	// MethodSpecProps resolves a MethodSpec token.
	MethodSpecProps(tok sig.Token) (MethodSpecProps, error)
	// TypeSpec returns the signature blob of a TypeSpec token.
	TypeSpec(tok sig.Token) ([]byte, error)
	// StandAloneSig returns the blob of a StandAloneSig token.
	StandAloneSig(tok sig.Token) ([]byte, error)
	// TypeRefProps resolves a TypeRef token.
	TypeRefProps(tok sig.Token) (TypeRefProps, error)
	// FindTypeRef returns the first type reference with the given name.
	FindTypeRef(name string) (sig.Token, bool)
	// TypeName returns the name of a TypeDef, TypeRef or TypeSpec token.
	TypeName(tok sig.Token) string
}

// BodyProvider reads and replaces method bodies.
type BodyProvider interface {
	MethodBody(tok sig.Token) ([]byte, error)
	SetMethodBody(tok sig.Token, body []byte) error
}

// Emitter mints tokens for new references. Defining a reference that already
// exists returns the existing token.
type Emitter interface {
	DefineAssemblyRef(name string, publicKeyToken []byte, v Version) (sig.Token, error)
	DefineTypeRef(scope sig.Token, name string) (sig.Token, error)
	DefineMemberRef(parent sig.Token, name string, blob []byte) (sig.Token, error)
	DefineMethodSpec(method sig.Token, blob []byte) (sig.Token, error)
	DefineStandAloneSig(blob []byte) (sig.Token, error)
}

// Module is everything the rewriter needs from one loaded module.
type Module interface {
	Resolver
	BodyProvider
	Emitter
	ID() uint64
	Path() string
}

// MethodName returns "Type::Name" for a MethodDef, MemberRef or MethodSpec
// token, or the raw token when it cannot be resolved.
func MethodName(r Resolver, tok sig.Token) string {
	if tok.Table() == sig.TableMethodSpec {
		spec, err := r.MethodSpecProps(tok)
		if err != nil {
			return tok.String()
		}
		tok = spec.Method
	}
	p, err := r.MethodProps(tok)
	if err != nil {
		return tok.String()
	}
	return r.TypeName(p.Parent) + "::" + p.Name
}
