package metadata

import (
	"bytes"
	"sync"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/sig"
)

// AssemblyRef is a row of the AssemblyRef table.
type AssemblyRef struct {
	Name           string  `toml:"name"`
	PublicKeyToken Hex     `toml:"public-key-token,omitempty"`
	Version        Version `toml:"version"`
}

// TypeDef is a row of the TypeDef table. Only the name is kept.
type TypeDef struct {
	Name string `toml:"name"`
}

// TypeRef is a row of the TypeRef table.
type TypeRef struct {
	Name  string    `toml:"name"`
	Scope sig.Token `toml:"scope"`
}

// MemberRef is a row of the MemberRef table.
type MemberRef struct {
	Name   string    `toml:"name"`
	Sig    Hex       `toml:"sig"`
	Parent sig.Token `toml:"parent"`
}

// MethodDef is a row of the MethodDef table with its body.
type MethodDef struct {
	Name   string    `toml:"name"`
	Sig    Hex       `toml:"sig"`
	Body   Hex       `toml:"body,omitempty"`
	Parent sig.Token `toml:"parent"`
}

// MethodSpec is a row of the MethodSpec table.
type MethodSpec struct {
	Sig    Hex       `toml:"sig"`
	Method sig.Token `toml:"method"`
}

// Blob is a row holding only a signature, as in TypeSpec and StandAloneSig.
type Blob struct {
	Sig Hex `toml:"sig"`
}

// tables is the serialized form of an Image. Row ids are 1-based positions.
type tables struct {
	Path           string        `toml:"path"`
	AssemblyRefs   []AssemblyRef `toml:"assembly-ref"`
	TypeDefs       []TypeDef     `toml:"type-def"`
	TypeRefs       []TypeRef     `toml:"type-ref"`
	TypeSpecs      []Blob        `toml:"type-spec"`
	MemberRefs     []MemberRef   `toml:"member-ref"`
	MethodDefs     []MethodDef   `toml:"method-def"`
	MethodSpecs    []MethodSpec  `toml:"method-spec"`
	StandAloneSigs []Blob        `toml:"standalone-sig"`
	ID             uint64        `toml:"id"`
}

// Image is an in-memory module. It is safe for concurrent use.
type Image struct {
	t  tables
	mu sync.RWMutex
}

var _ Module = (*Image)(nil)

// NewImage returns an empty image.
func NewImage(id uint64, path string) *Image {
	return &Image{t: tables{ID: id, Path: path}}
}

func (img *Image) ID() uint64   { return img.t.ID }
func (img *Image) Path() string { return img.t.Path }

func row(tok sig.Token, table sig.Table, n int) (int, bool) {
	if tok.Table() != table || tok.RID() == 0 || int(tok.RID()) > n {
		return 0, false
	}
	return int(tok.RID()) - 1, true
}

func next(table sig.Table, n int) sig.Token {
	return sig.NewToken(table, uint32(n))
}

// AddAssemblyRef appends an assembly reference.
func (img *Image) AddAssemblyRef(r AssemblyRef) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.t.AssemblyRefs = append(img.t.AssemblyRefs, r)
	return next(sig.TableAssemblyRef, len(img.t.AssemblyRefs))
}

// AddTypeDef appends a type definition.
func (img *Image) AddTypeDef(name string) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.t.TypeDefs = append(img.t.TypeDefs, TypeDef{Name: name})
	return next(sig.TableTypeDef, len(img.t.TypeDefs))
}

// AddTypeRef appends a type reference.
func (img *Image) AddTypeRef(scope sig.Token, name string) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.t.TypeRefs = append(img.t.TypeRefs, TypeRef{Name: name, Scope: scope})
	return next(sig.TableTypeRef, len(img.t.TypeRefs))
}

// AddTypeSpec appends a type specification.
func (img *Image) AddTypeSpec(blob []byte) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.t.TypeSpecs = append(img.t.TypeSpecs, Blob{Sig: clone(blob)})
	return next(sig.TableTypeSpec, len(img.t.TypeSpecs))
}

// AddMemberRef appends a member reference.
func (img *Image) AddMemberRef(parent sig.Token, name string, blob []byte) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.addMemberRef(parent, name, blob)
}

func (img *Image) addMemberRef(parent sig.Token, name string, blob []byte) sig.Token {
	img.t.MemberRefs = append(img.t.MemberRefs, MemberRef{Name: name, Sig: clone(blob), Parent: parent})
	return next(sig.TableMemberRef, len(img.t.MemberRefs))
}

// AddMethodDef appends a method definition with an optional body.
func (img *Image) AddMethodDef(parent sig.Token, name string, blob, body []byte) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.t.MethodDefs = append(img.t.MethodDefs, MethodDef{Name: name, Sig: clone(blob), Body: clone(body), Parent: parent})
	return next(sig.TableMethodDef, len(img.t.MethodDefs))
}

// AddMethodSpec appends a generic method instantiation.
func (img *Image) AddMethodSpec(method sig.Token, blob []byte) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.addMethodSpec(method, blob)
}

func (img *Image) addMethodSpec(method sig.Token, blob []byte) sig.Token {
	img.t.MethodSpecs = append(img.t.MethodSpecs, MethodSpec{Sig: clone(blob), Method: method})
	return next(sig.TableMethodSpec, len(img.t.MethodSpecs))
}

// AddStandAloneSig appends a stand-alone signature.
func (img *Image) AddStandAloneSig(blob []byte) sig.Token {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.t.StandAloneSigs = append(img.t.StandAloneSigs, Blob{Sig: clone(blob)})
	return next(sig.TableStandAloneSig, len(img.t.StandAloneSigs))
}

// Methods returns the tokens of every method definition that has a body.
func (img *Image) Methods() []sig.Token {
	img.mu.RLock()
	defer img.mu.RUnlock()
	var out []sig.Token
	for i, d := range img.t.MethodDefs {
		if len(d.Body) > 0 {
			out = append(out, next(sig.TableMethodDef, i+1))
		}
	}
	return out
}

// MethodProps implements Resolver.
func (img *Image) MethodProps(tok sig.Token) (MethodProps, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	switch tok.Table() {
	case sig.TableMethodDef:
		if i, ok := row(tok, sig.TableMethodDef, len(img.t.MethodDefs)); ok {
			d := img.t.MethodDefs[i]
			return MethodProps{Name: d.Name, Sig: d.Sig, Token: tok, Parent: d.Parent}, nil
		}
	case sig.TableMemberRef:
		if i, ok := row(tok, sig.TableMemberRef, len(img.t.MemberRefs)); ok {
			r := img.t.MemberRefs[i]
			return MethodProps{Name: r.Name, Sig: r.Sig, Token: tok, Parent: r.Parent}, nil
		}
	}
	return MethodProps{}, errors.NotFound(errors.PhaseResolve, "method", tok)
}

// MethodSpecProps implements Resolver.
func (img *Image) MethodSpecProps(tok sig.Token) (MethodSpecProps, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	i, ok := row(tok, sig.TableMethodSpec, len(img.t.MethodSpecs))
	if !ok {
		return MethodSpecProps{}, errors.NotFound(errors.PhaseResolve, "method spec", tok)
	}
	s := img.t.MethodSpecs[i]
	return MethodSpecProps{Sig: s.Sig, Token: tok, Method: s.Method}, nil
}

// TypeSpec implements Resolver.
func (img *Image) TypeSpec(tok sig.Token) ([]byte, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	i, ok := row(tok, sig.TableTypeSpec, len(img.t.TypeSpecs))
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "type spec", tok)
	}
	return img.t.TypeSpecs[i].Sig, nil
}

// StandAloneSig implements Resolver.
func (img *Image) StandAloneSig(tok sig.Token) ([]byte, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	i, ok := row(tok, sig.TableStandAloneSig, len(img.t.StandAloneSigs))
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "stand-alone sig", tok)
	}
	return img.t.StandAloneSigs[i].Sig, nil
}

// TypeRefProps implements Resolver.
func (img *Image) TypeRefProps(tok sig.Token) (TypeRefProps, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	i, ok := row(tok, sig.TableTypeRef, len(img.t.TypeRefs))
	if !ok {
		return TypeRefProps{}, errors.NotFound(errors.PhaseResolve, "type ref", tok)
	}
	r := img.t.TypeRefs[i]
	return TypeRefProps{Name: r.Name, Token: tok, Scope: r.Scope}, nil
}

// FindTypeRef implements Resolver.
func (img *Image) FindTypeRef(name string) (sig.Token, bool) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	for i, r := range img.t.TypeRefs {
		if r.Name == name {
			return next(sig.TableTypeRef, i+1), true
		}
	}
	return 0, false
}

// TypeName implements Resolver. TypeSpecs are rendered from their signature.
func (img *Image) TypeName(tok sig.Token) string {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.typeName(tok, 0)
}

func (img *Image) typeName(tok sig.Token, depth int) string {
	switch tok.Table() {
	case sig.TableTypeDef:
		if i, ok := row(tok, sig.TableTypeDef, len(img.t.TypeDefs)); ok {
			return img.t.TypeDefs[i].Name
		}
	case sig.TableTypeRef:
		if i, ok := row(tok, sig.TableTypeRef, len(img.t.TypeRefs)); ok {
			return img.t.TypeRefs[i].Name
		}
	case sig.TableTypeSpec:
		i, ok := row(tok, sig.TableTypeSpec, len(img.t.TypeSpecs))
		if !ok || depth > 4 {
			break
		}
		n, err := sig.ParseTypeSpec(img.t.TypeSpecs[i].Sig)
		if err != nil {
			break
		}
		return sig.FormatType(n, func(t sig.Token) string { return img.typeName(t, depth+1) })
	}
	return tok.String()
}

// MethodBody implements BodyProvider.
func (img *Image) MethodBody(tok sig.Token) ([]byte, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	i, ok := row(tok, sig.TableMethodDef, len(img.t.MethodDefs))
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "method", tok)
	}
	body := img.t.MethodDefs[i].Body
	if len(body) == 0 {
		return nil, errors.NotFound(errors.PhaseResolve, "method body", tok)
	}
	return body, nil
}

// SetMethodBody implements BodyProvider. The body is copied.
func (img *Image) SetMethodBody(tok sig.Token, body []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	i, ok := row(tok, sig.TableMethodDef, len(img.t.MethodDefs))
	if !ok {
		return errors.NotFound(errors.PhaseEmit, "method", tok)
	}
	img.t.MethodDefs[i].Body = clone(body)
	return nil
}

// DefineAssemblyRef implements Emitter.
func (img *Image) DefineAssemblyRef(name string, publicKeyToken []byte, v Version) (sig.Token, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	for i, r := range img.t.AssemblyRefs {
		if r.Name == name && bytes.Equal(r.PublicKeyToken, publicKeyToken) && r.Version == v {
			return next(sig.TableAssemblyRef, i+1), nil
		}
	}
	img.t.AssemblyRefs = append(img.t.AssemblyRefs, AssemblyRef{Name: name, PublicKeyToken: clone(publicKeyToken), Version: v})
	return next(sig.TableAssemblyRef, len(img.t.AssemblyRefs)), nil
}

// DefineTypeRef implements Emitter.
func (img *Image) DefineTypeRef(scope sig.Token, name string) (sig.Token, error) {
	if name == "" {
		return 0, errors.InvalidInput(errors.PhaseEmit, "empty type name")
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	for i, r := range img.t.TypeRefs {
		if r.Scope == scope && r.Name == name {
			return next(sig.TableTypeRef, i+1), nil
		}
	}
	img.t.TypeRefs = append(img.t.TypeRefs, TypeRef{Name: name, Scope: scope})
	return next(sig.TableTypeRef, len(img.t.TypeRefs)), nil
}

// DefineMemberRef implements Emitter.
func (img *Image) DefineMemberRef(parent sig.Token, name string, blob []byte) (sig.Token, error) {
	if len(blob) == 0 {
		return 0, errors.InvalidInput(errors.PhaseEmit, "empty member signature")
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	for i, r := range img.t.MemberRefs {
		if r.Parent == parent && r.Name == name && bytes.Equal(r.Sig, blob) {
			return next(sig.TableMemberRef, i+1), nil
		}
	}
	return img.addMemberRef(parent, name, blob), nil
}

// DefineMethodSpec implements Emitter.
func (img *Image) DefineMethodSpec(method sig.Token, blob []byte) (sig.Token, error) {
	switch method.Table() {
	case sig.TableMethodDef, sig.TableMemberRef:
	default:
		return 0, errors.InvalidInput(errors.PhaseEmit, "method spec parent must be a MethodDef or MemberRef")
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	for i, s := range img.t.MethodSpecs {
		if s.Method == method && bytes.Equal(s.Sig, blob) {
			return next(sig.TableMethodSpec, i+1), nil
		}
	}
	return img.addMethodSpec(method, blob), nil
}

// DefineStandAloneSig implements Emitter.
func (img *Image) DefineStandAloneSig(blob []byte) (sig.Token, error) {
	if len(blob) == 0 {
		return 0, errors.InvalidInput(errors.PhaseEmit, "empty signature")
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	for i, s := range img.t.StandAloneSigs {
		if bytes.Equal(s.Sig, blob) {
			return next(sig.TableStandAloneSig, i+1), nil
		}
	}
	img.t.StandAloneSigs = append(img.t.StandAloneSigs, Blob{Sig: clone(blob)})
	return next(sig.TableStandAloneSig, len(img.t.StandAloneSigs)), nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
