package sig

import "fmt"

// ElementType is the leading tag of a type in a signature blob.
type ElementType byte

// Element types as defined in ECMA-335 II.23.1.16.
const (
	ElemEnd         ElementType = 0x00
	ElemVoid        ElementType = 0x01
	ElemBoolean     ElementType = 0x02
	ElemChar        ElementType = 0x03
	ElemI1          ElementType = 0x04
	ElemU1          ElementType = 0x05
	ElemI2          ElementType = 0x06
	ElemU2          ElementType = 0x07
	ElemI4          ElementType = 0x08
	ElemU4          ElementType = 0x09
	ElemI8          ElementType = 0x0A
	ElemU8          ElementType = 0x0B
	ElemR4          ElementType = 0x0C
	ElemR8          ElementType = 0x0D
	ElemString      ElementType = 0x0E
	ElemPtr         ElementType = 0x0F // followed by type
	ElemByRef       ElementType = 0x10 // followed by type
	ElemValueType   ElementType = 0x11 // followed by TypeDefOrRef token
	ElemClass       ElementType = 0x12 // followed by TypeDefOrRef token
	ElemVar         ElementType = 0x13 // generic parameter of a type
	ElemArray       ElementType = 0x14 // type rank boundsCount bounds* loCount lo*
	ElemGenericInst ElementType = 0x15 // CLASS|VALUETYPE token argCount type*
	ElemTypedByRef  ElementType = 0x16
	ElemI           ElementType = 0x18 // native int
	ElemU           ElementType = 0x19 // native unsigned int
	ElemFnPtr       ElementType = 0x1B // followed by method signature
	ElemObject      ElementType = 0x1C
	ElemSZArray     ElementType = 0x1D // single-dimension zero-based array
	ElemMVar        ElementType = 0x1E // generic parameter of a method
	ElemCModReqd    ElementType = 0x1F // required modifier, followed by token
	ElemCModOpt     ElementType = 0x20 // optional modifier, followed by token
	ElemInternal    ElementType = 0x21
	ElemModifier    ElementType = 0x40
	ElemSentinel    ElementType = 0x41 // start of vararg parameters
	ElemPinned      ElementType = 0x45 // pinned local
)

var elemNames = map[ElementType]string{
	ElemVoid:        "void",
	ElemBoolean:     "bool",
	ElemChar:        "char",
	ElemI1:          "int8",
	ElemU1:          "uint8",
	ElemI2:          "int16",
	ElemU2:          "uint16",
	ElemI4:          "int32",
	ElemU4:          "uint32",
	ElemI8:          "int64",
	ElemU8:          "uint64",
	ElemR4:          "float32",
	ElemR8:          "float64",
	ElemString:      "string",
	ElemPtr:         "ptr",
	ElemByRef:       "byref",
	ElemValueType:   "valuetype",
	ElemClass:       "class",
	ElemVar:         "var",
	ElemArray:       "array",
	ElemGenericInst: "genericinst",
	ElemTypedByRef:  "typedref",
	ElemI:           "native int",
	ElemU:           "native uint",
	ElemFnPtr:       "method",
	ElemObject:      "object",
	ElemSZArray:     "szarray",
	ElemMVar:        "mvar",
	ElemCModReqd:    "modreq",
	ElemCModOpt:     "modopt",
	ElemSentinel:    "...",
	ElemPinned:      "pinned",
}

func (e ElementType) String() string {
	if s, ok := elemNames[e]; ok {
		return s
	}
	return fmt.Sprintf("elem(0x%02x)", byte(e))
}

// IsPrimitive reports whether e is a leaf type with no payload.
func (e ElementType) IsPrimitive() bool {
	switch e {
	case ElemBoolean, ElemChar, ElemI1, ElemU1, ElemI2, ElemU2, ElemI4, ElemU4,
		ElemI8, ElemU8, ElemR4, ElemR8, ElemString, ElemI, ElemU, ElemObject:
		return true
	}
	return false
}

// CallingConvention is the leading byte of a method, field, locals or method-spec blob.
type CallingConvention byte

// Calling conventions (low nibble) and flags (high nibble).
const (
	ConvDefault      CallingConvention = 0x00
	ConvC            CallingConvention = 0x01
	ConvStdCall      CallingConvention = 0x02
	ConvThisCall     CallingConvention = 0x03
	ConvFastCall     CallingConvention = 0x04
	ConvVarArg       CallingConvention = 0x05
	ConvField        CallingConvention = 0x06
	ConvLocalSig     CallingConvention = 0x07
	ConvProperty     CallingConvention = 0x08
	ConvUnmanaged    CallingConvention = 0x09
	ConvGenericInst  CallingConvention = 0x0A // method-spec marker
	ConvNativeVarArg CallingConvention = 0x0B

	ConvMask         CallingConvention = 0x0F
	ConvGeneric      CallingConvention = 0x10
	ConvHasThis      CallingConvention = 0x20
	ConvExplicitThis CallingConvention = 0x40
	convReserved     CallingConvention = 0x80
)

// Kind returns the convention with the flag bits cleared.
func (c CallingConvention) Kind() CallingConvention { return c & ConvMask }

// IsMethod reports whether c is a convention a method signature may carry.
func (c CallingConvention) IsMethod() bool {
	if c&convReserved != 0 {
		return false
	}
	switch c.Kind() {
	case ConvDefault, ConvC, ConvStdCall, ConvThisCall, ConvFastCall,
		ConvVarArg, ConvUnmanaged, ConvNativeVarArg:
		return true
	}
	return false
}

// Table identifies a metadata table by the high byte of a token.
type Table byte

// Metadata tables referenced by tokens in this module.
const (
	TableModule        Table = 0x00
	TableTypeRef       Table = 0x01
	TableTypeDef       Table = 0x02
	TableField         Table = 0x04
	TableMethodDef     Table = 0x06
	TableParam         Table = 0x08
	TableMemberRef     Table = 0x0A
	TableStandAloneSig Table = 0x11
	TableModuleRef     Table = 0x1A
	TableTypeSpec      Table = 0x1B
	TableAssemblyRef   Table = 0x23
	TableMethodSpec    Table = 0x2B
	TableUserString    Table = 0x70
)

var tableNames = map[Table]string{
	TableModule:        "Module",
	TableTypeRef:       "TypeRef",
	TableTypeDef:       "TypeDef",
	TableField:         "Field",
	TableMethodDef:     "MethodDef",
	TableParam:         "Param",
	TableMemberRef:     "MemberRef",
	TableStandAloneSig: "StandAloneSig",
	TableModuleRef:     "ModuleRef",
	TableTypeSpec:      "TypeSpec",
	TableAssemblyRef:   "AssemblyRef",
	TableMethodSpec:    "MethodSpec",
	TableUserString:    "UserString",
}

func (t Table) String() string {
	if s, ok := tableNames[t]; ok {
		return s
	}
	return fmt.Sprintf("table(0x%02x)", byte(t))
}

// Token is a 4-byte metadata reference: table in the high byte, row id below.
type Token uint32

// NewToken builds a token from a table and a 1-based row id.
func NewToken(t Table, rid uint32) Token {
	return Token(uint32(t)<<24 | rid&0x00FFFFFF)
}

// Table returns the table the token refers to.
func (t Token) Table() Table { return Table(t >> 24) }

// RID returns the row id.
func (t Token) RID() uint32 { return uint32(t) & 0x00FFFFFF }

// IsNil reports whether the row id is zero.
func (t Token) IsNil() bool { return t.RID() == 0 }

func (t Token) String() string {
	return fmt.Sprintf("0x%08x", uint32(t))
}
