package il

import "fmt"

// Opcode identifies a CIL operation. One-byte opcodes occupy 0x00XX and
// two-byte opcodes 0xFEXX.
type Opcode uint16

// OperandType is the encoding of an instruction's inline operand.
type OperandType uint8

const (
	InlineNone OperandType = iota
	ShortInlineBrTarget
	ShortInlineI
	ShortInlineVar
	ShortInlineR
	InlineVar
	InlineBrTarget
	InlineI
	InlineMethod
	InlineField
	InlineType
	InlineTok
	InlineString
	InlineSig
	InlineSwitch
	InlineI8
	InlineR
)

// Size returns the operand width in bytes. For InlineSwitch it is the
// width of the target count; the target table follows it.
func (t OperandType) Size() int {
	switch t {
	case InlineNone:
		return 0
	case ShortInlineBrTarget, ShortInlineI, ShortInlineVar:
		return 1
	case InlineVar:
		return 2
	case InlineI8, InlineR:
		return 8
	}
	return 4
}

// FlowControl classifies how an instruction affects control flow.
type FlowControl uint8

const (
	FlowNext FlowControl = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
	FlowBreak
	FlowMeta // prefixes and the synthetic label
)

// Prefix is the first byte of every two-byte opcode.
const Prefix = 0xFE

type opInfo struct {
	name    string
	operand OperandType
	flow    FlowControl
}

// Opcodes. Two-byte opcodes carry the 0xFE prefix in the high byte.
const (
	OpNop         Opcode = 0x0000
	OpBreak       Opcode = 0x0001
	OpLdarg0      Opcode = 0x0002
	OpLdarg1      Opcode = 0x0003
	OpLdarg2      Opcode = 0x0004
	OpLdarg3      Opcode = 0x0005
	OpLdloc0      Opcode = 0x0006
	OpLdloc1      Opcode = 0x0007
	OpLdloc2      Opcode = 0x0008
	OpLdloc3      Opcode = 0x0009
	OpStloc0      Opcode = 0x000A
	OpStloc1      Opcode = 0x000B
	OpStloc2      Opcode = 0x000C
	OpStloc3      Opcode = 0x000D
	OpLdargS      Opcode = 0x000E
	OpLdargaS     Opcode = 0x000F
	OpStargS      Opcode = 0x0010
	OpLdlocS      Opcode = 0x0011
	OpLdlocaS     Opcode = 0x0012
	OpStlocS      Opcode = 0x0013
	OpLdnull      Opcode = 0x0014
	OpLdcI4M1     Opcode = 0x0015
	OpLdcI4_0     Opcode = 0x0016
	OpLdcI4_1     Opcode = 0x0017
	OpLdcI4_2     Opcode = 0x0018
	OpLdcI4_3     Opcode = 0x0019
	OpLdcI4_4     Opcode = 0x001A
	OpLdcI4_5     Opcode = 0x001B
	OpLdcI4_6     Opcode = 0x001C
	OpLdcI4_7     Opcode = 0x001D
	OpLdcI4_8     Opcode = 0x001E
	OpLdcI4S      Opcode = 0x001F
	OpLdcI4       Opcode = 0x0020
	OpLdcI8       Opcode = 0x0021
	OpLdcR4       Opcode = 0x0022
	OpLdcR8       Opcode = 0x0023
	OpDup         Opcode = 0x0025
	OpPop         Opcode = 0x0026
	OpJmp         Opcode = 0x0027
	OpCall        Opcode = 0x0028
	OpCalli       Opcode = 0x0029
	OpRet         Opcode = 0x002A
	OpBrS         Opcode = 0x002B
	OpBrfalseS    Opcode = 0x002C
	OpBrtrueS     Opcode = 0x002D
	OpBeqS        Opcode = 0x002E
	OpBgeS        Opcode = 0x002F
	OpBgtS        Opcode = 0x0030
	OpBleS        Opcode = 0x0031
	OpBltS        Opcode = 0x0032
	OpBneUnS      Opcode = 0x0033
	OpBgeUnS      Opcode = 0x0034
	OpBgtUnS      Opcode = 0x0035
	OpBleUnS      Opcode = 0x0036
	OpBltUnS      Opcode = 0x0037
	OpBr          Opcode = 0x0038
	OpBrfalse     Opcode = 0x0039
	OpBrtrue      Opcode = 0x003A
	OpBeq         Opcode = 0x003B
	OpBge         Opcode = 0x003C
	OpBgt         Opcode = 0x003D
	OpBle         Opcode = 0x003E
	OpBlt         Opcode = 0x003F
	OpBneUn       Opcode = 0x0040
	OpBgeUn       Opcode = 0x0041
	OpBgtUn       Opcode = 0x0042
	OpBleUn       Opcode = 0x0043
	OpBltUn       Opcode = 0x0044
	OpSwitch      Opcode = 0x0045
	OpLdindI1     Opcode = 0x0046
	OpLdindU1     Opcode = 0x0047
	OpLdindI2     Opcode = 0x0048
	OpLdindU2     Opcode = 0x0049
	OpLdindI4     Opcode = 0x004A
	OpLdindU4     Opcode = 0x004B
	OpLdindI8     Opcode = 0x004C
	OpLdindI      Opcode = 0x004D
	OpLdindR4     Opcode = 0x004E
	OpLdindR8     Opcode = 0x004F
	OpLdindRef    Opcode = 0x0050
	OpStindRef    Opcode = 0x0051
	OpStindI1     Opcode = 0x0052
	OpStindI2     Opcode = 0x0053
	OpStindI4     Opcode = 0x0054
	OpStindI8     Opcode = 0x0055
	OpStindR4     Opcode = 0x0056
	OpStindR8     Opcode = 0x0057
	OpAdd         Opcode = 0x0058
	OpSub         Opcode = 0x0059
	OpMul         Opcode = 0x005A
	OpDiv         Opcode = 0x005B
	OpDivUn       Opcode = 0x005C
	OpRem         Opcode = 0x005D
	OpRemUn       Opcode = 0x005E
	OpAnd         Opcode = 0x005F
	OpOr          Opcode = 0x0060
	OpXor         Opcode = 0x0061
	OpShl         Opcode = 0x0062
	OpShr         Opcode = 0x0063
	OpShrUn       Opcode = 0x0064
	OpNeg         Opcode = 0x0065
	OpNot         Opcode = 0x0066
	OpConvI1      Opcode = 0x0067
	OpConvI2      Opcode = 0x0068
	OpConvI4      Opcode = 0x0069
	OpConvI8      Opcode = 0x006A
	OpConvR4      Opcode = 0x006B
	OpConvR8      Opcode = 0x006C
	OpConvU4      Opcode = 0x006D
	OpConvU8      Opcode = 0x006E
	OpCallvirt    Opcode = 0x006F
	OpCpobj       Opcode = 0x0070
	OpLdobj       Opcode = 0x0071
	OpLdstr       Opcode = 0x0072
	OpNewobj      Opcode = 0x0073
	OpCastclass   Opcode = 0x0074
	OpIsinst      Opcode = 0x0075
	OpConvRUn     Opcode = 0x0076
	OpUnbox       Opcode = 0x0079
	OpThrow       Opcode = 0x007A
	OpLdfld       Opcode = 0x007B
	OpLdflda      Opcode = 0x007C
	OpStfld       Opcode = 0x007D
	OpLdsfld      Opcode = 0x007E
	OpLdsflda     Opcode = 0x007F
	OpStsfld      Opcode = 0x0080
	OpStobj       Opcode = 0x0081
	OpConvOvfI1Un Opcode = 0x0082
	OpConvOvfI2Un Opcode = 0x0083
	OpConvOvfI4Un Opcode = 0x0084
	OpConvOvfI8Un Opcode = 0x0085
	OpConvOvfU1Un Opcode = 0x0086
	OpConvOvfU2Un Opcode = 0x0087
	OpConvOvfU4Un Opcode = 0x0088
	OpConvOvfU8Un Opcode = 0x0089
	OpConvOvfIUn  Opcode = 0x008A
	OpConvOvfUUn  Opcode = 0x008B
	OpBox         Opcode = 0x008C
	OpNewarr      Opcode = 0x008D
	OpLdlen       Opcode = 0x008E
	OpLdelema     Opcode = 0x008F
	OpLdelemI1    Opcode = 0x0090
	OpLdelemU1    Opcode = 0x0091
	OpLdelemI2    Opcode = 0x0092
	OpLdelemU2    Opcode = 0x0093
	OpLdelemI4    Opcode = 0x0094
	OpLdelemU4    Opcode = 0x0095
	OpLdelemI8    Opcode = 0x0096
	OpLdelemI     Opcode = 0x0097
	OpLdelemR4    Opcode = 0x0098
	OpLdelemR8    Opcode = 0x0099
	OpLdelemRef   Opcode = 0x009A
	OpStelemI     Opcode = 0x009B
	OpStelemI1    Opcode = 0x009C
	OpStelemI2    Opcode = 0x009D
	OpStelemI4    Opcode = 0x009E
	OpStelemI8    Opcode = 0x009F
	OpStelemR4    Opcode = 0x00A0
	OpStelemR8    Opcode = 0x00A1
	OpStelemRef   Opcode = 0x00A2
	OpLdelem      Opcode = 0x00A3
	OpStelem      Opcode = 0x00A4
	OpUnboxAny    Opcode = 0x00A5
	OpConvOvfI1   Opcode = 0x00B3
	OpConvOvfU1   Opcode = 0x00B4
	OpConvOvfI2   Opcode = 0x00B5
	OpConvOvfU2   Opcode = 0x00B6
	OpConvOvfI4   Opcode = 0x00B7
	OpConvOvfU4   Opcode = 0x00B8
	OpConvOvfI8   Opcode = 0x00B9
	OpConvOvfU8   Opcode = 0x00BA
	OpRefanyval   Opcode = 0x00C2
	OpCkfinite    Opcode = 0x00C3
	OpMkrefany    Opcode = 0x00C6
	OpLdtoken     Opcode = 0x00D0
	OpConvU2      Opcode = 0x00D1
	OpConvU1      Opcode = 0x00D2
	OpConvI       Opcode = 0x00D3
	OpConvOvfI    Opcode = 0x00D4
	OpConvOvfU    Opcode = 0x00D5
	OpAddOvf      Opcode = 0x00D6
	OpAddOvfUn    Opcode = 0x00D7
	OpMulOvf      Opcode = 0x00D8
	OpMulOvfUn    Opcode = 0x00D9
	OpSubOvf      Opcode = 0x00DA
	OpSubOvfUn    Opcode = 0x00DB
	OpEndfinally  Opcode = 0x00DC
	OpLeave       Opcode = 0x00DD
	OpLeaveS      Opcode = 0x00DE
	OpStindI      Opcode = 0x00DF
	OpConvU       Opcode = 0x00E0
	OpArglist     Opcode = 0xFE00
	OpCeq         Opcode = 0xFE01
	OpCgt         Opcode = 0xFE02
	OpCgtUn       Opcode = 0xFE03
	OpClt         Opcode = 0xFE04
	OpCltUn       Opcode = 0xFE05
	OpLdftn       Opcode = 0xFE06
	OpLdvirtftn   Opcode = 0xFE07
	OpLdarg       Opcode = 0xFE09
	OpLdarga      Opcode = 0xFE0A
	OpStarg       Opcode = 0xFE0B
	OpLdloc       Opcode = 0xFE0C
	OpLdloca      Opcode = 0xFE0D
	OpStloc       Opcode = 0xFE0E
	OpLocalloc    Opcode = 0xFE0F
	OpEndfilter   Opcode = 0xFE11
	OpUnaligned   Opcode = 0xFE12
	OpVolatile    Opcode = 0xFE13
	OpTail        Opcode = 0xFE14
	OpInitobj     Opcode = 0xFE15
	OpConstrained Opcode = 0xFE16
	OpCpblk       Opcode = 0xFE17
	OpInitblk     Opcode = 0xFE18
	OpNo          Opcode = 0xFE19
	OpRethrow     Opcode = 0xFE1A
	OpSizeof      Opcode = 0xFE1C
	OpRefanytype  Opcode = 0xFE1D
	OpReadonly    Opcode = 0xFE1E

	// OpLabel is a zero-length marker anchoring a region boundary at the end
	// of the code. It is never encoded.
	OpLabel Opcode = 0xFFFF
)

var opTable = map[Opcode]opInfo{
	OpNop:         {"nop", InlineNone, FlowNext},
	OpBreak:       {"break", InlineNone, FlowBreak},
	OpLdarg0:      {"ldarg.0", InlineNone, FlowNext},
	OpLdarg1:      {"ldarg.1", InlineNone, FlowNext},
	OpLdarg2:      {"ldarg.2", InlineNone, FlowNext},
	OpLdarg3:      {"ldarg.3", InlineNone, FlowNext},
	OpLdloc0:      {"ldloc.0", InlineNone, FlowNext},
	OpLdloc1:      {"ldloc.1", InlineNone, FlowNext},
	OpLdloc2:      {"ldloc.2", InlineNone, FlowNext},
	OpLdloc3:      {"ldloc.3", InlineNone, FlowNext},
	OpStloc0:      {"stloc.0", InlineNone, FlowNext},
	OpStloc1:      {"stloc.1", InlineNone, FlowNext},
	OpStloc2:      {"stloc.2", InlineNone, FlowNext},
	OpStloc3:      {"stloc.3", InlineNone, FlowNext},
	OpLdargS:      {"ldarg.s", ShortInlineVar, FlowNext},
	OpLdargaS:     {"ldarga.s", ShortInlineVar, FlowNext},
	OpStargS:      {"starg.s", ShortInlineVar, FlowNext},
	OpLdlocS:      {"ldloc.s", ShortInlineVar, FlowNext},
	OpLdlocaS:     {"ldloca.s", ShortInlineVar, FlowNext},
	OpStlocS:      {"stloc.s", ShortInlineVar, FlowNext},
	OpLdnull:      {"ldnull", InlineNone, FlowNext},
	OpLdcI4M1:     {"ldc.i4.m1", InlineNone, FlowNext},
	OpLdcI4_0:     {"ldc.i4.0", InlineNone, FlowNext},
	OpLdcI4_1:     {"ldc.i4.1", InlineNone, FlowNext},
	OpLdcI4_2:     {"ldc.i4.2", InlineNone, FlowNext},
	OpLdcI4_3:     {"ldc.i4.3", InlineNone, FlowNext},
	OpLdcI4_4:     {"ldc.i4.4", InlineNone, FlowNext},
	OpLdcI4_5:     {"ldc.i4.5", InlineNone, FlowNext},
	OpLdcI4_6:     {"ldc.i4.6", InlineNone, FlowNext},
	OpLdcI4_7:     {"ldc.i4.7", InlineNone, FlowNext},
	OpLdcI4_8:     {"ldc.i4.8", InlineNone, FlowNext},
	OpLdcI4S:      {"ldc.i4.s", ShortInlineI, FlowNext},
	OpLdcI4:       {"ldc.i4", InlineI, FlowNext},
	OpLdcI8:       {"ldc.i8", InlineI8, FlowNext},
	OpLdcR4:       {"ldc.r4", ShortInlineR, FlowNext},
	OpLdcR8:       {"ldc.r8", InlineR, FlowNext},
	OpDup:         {"dup", InlineNone, FlowNext},
	OpPop:         {"pop", InlineNone, FlowNext},
	OpJmp:         {"jmp", InlineMethod, FlowCall},
	OpCall:        {"call", InlineMethod, FlowCall},
	OpCalli:       {"calli", InlineSig, FlowCall},
	OpRet:         {"ret", InlineNone, FlowReturn},
	OpBrS:         {"br.s", ShortInlineBrTarget, FlowBranch},
	OpBrfalseS:    {"brfalse.s", ShortInlineBrTarget, FlowCondBranch},
	OpBrtrueS:     {"brtrue.s", ShortInlineBrTarget, FlowCondBranch},
	OpBeqS:        {"beq.s", ShortInlineBrTarget, FlowCondBranch},
	OpBgeS:        {"bge.s", ShortInlineBrTarget, FlowCondBranch},
	OpBgtS:        {"bgt.s", ShortInlineBrTarget, FlowCondBranch},
	OpBleS:        {"ble.s", ShortInlineBrTarget, FlowCondBranch},
	OpBltS:        {"blt.s", ShortInlineBrTarget, FlowCondBranch},
	OpBneUnS:      {"bne.un.s", ShortInlineBrTarget, FlowCondBranch},
	OpBgeUnS:      {"bge.un.s", ShortInlineBrTarget, FlowCondBranch},
	OpBgtUnS:      {"bgt.un.s", ShortInlineBrTarget, FlowCondBranch},
	OpBleUnS:      {"ble.un.s", ShortInlineBrTarget, FlowCondBranch},
	OpBltUnS:      {"blt.un.s", ShortInlineBrTarget, FlowCondBranch},
	OpBr:          {"br", InlineBrTarget, FlowBranch},
	OpBrfalse:     {"brfalse", InlineBrTarget, FlowCondBranch},
	OpBrtrue:      {"brtrue", InlineBrTarget, FlowCondBranch},
	OpBeq:         {"beq", InlineBrTarget, FlowCondBranch},
	OpBge:         {"bge", InlineBrTarget, FlowCondBranch},
	OpBgt:         {"bgt", InlineBrTarget, FlowCondBranch},
	OpBle:         {"ble", InlineBrTarget, FlowCondBranch},
	OpBlt:         {"blt", InlineBrTarget, FlowCondBranch},
	OpBneUn:       {"bne.un", InlineBrTarget, FlowCondBranch},
	OpBgeUn:       {"bge.un", InlineBrTarget, FlowCondBranch},
	OpBgtUn:       {"bgt.un", InlineBrTarget, FlowCondBranch},
	OpBleUn:       {"ble.un", InlineBrTarget, FlowCondBranch},
	OpBltUn:       {"blt.un", InlineBrTarget, FlowCondBranch},
	OpSwitch:      {"switch", InlineSwitch, FlowCondBranch},
	OpLdindI1:     {"ldind.i1", InlineNone, FlowNext},
	OpLdindU1:     {"ldind.u1", InlineNone, FlowNext},
	OpLdindI2:     {"ldind.i2", InlineNone, FlowNext},
	OpLdindU2:     {"ldind.u2", InlineNone, FlowNext},
	OpLdindI4:     {"ldind.i4", InlineNone, FlowNext},
	OpLdindU4:     {"ldind.u4", InlineNone, FlowNext},
	OpLdindI8:     {"ldind.i8", InlineNone, FlowNext},
	OpLdindI:      {"ldind.i", InlineNone, FlowNext},
	OpLdindR4:     {"ldind.r4", InlineNone, FlowNext},
	OpLdindR8:     {"ldind.r8", InlineNone, FlowNext},
	OpLdindRef:    {"ldind.ref", InlineNone, FlowNext},
	OpStindRef:    {"stind.ref", InlineNone, FlowNext},
	OpStindI1:     {"stind.i1", InlineNone, FlowNext},
	OpStindI2:     {"stind.i2", InlineNone, FlowNext},
	OpStindI4:     {"stind.i4", InlineNone, FlowNext},
	OpStindI8:     {"stind.i8", InlineNone, FlowNext},
	OpStindR4:     {"stind.r4", InlineNone, FlowNext},
	OpStindR8:     {"stind.r8", InlineNone, FlowNext},
	OpAdd:         {"add", InlineNone, FlowNext},
	OpSub:         {"sub", InlineNone, FlowNext},
	OpMul:         {"mul", InlineNone, FlowNext},
	OpDiv:         {"div", InlineNone, FlowNext},
	OpDivUn:       {"div.un", InlineNone, FlowNext},
	OpRem:         {"rem", InlineNone, FlowNext},
	OpRemUn:       {"rem.un", InlineNone, FlowNext},
	OpAnd:         {"and", InlineNone, FlowNext},
	OpOr:          {"or", InlineNone, FlowNext},
	OpXor:         {"xor", InlineNone, FlowNext},
	OpShl:         {"shl", InlineNone, FlowNext},
	OpShr:         {"shr", InlineNone, FlowNext},
	OpShrUn:       {"shr.un", InlineNone, FlowNext},
	OpNeg:         {"neg", InlineNone, FlowNext},
	OpNot:         {"not", InlineNone, FlowNext},
	OpConvI1:      {"conv.i1", InlineNone, FlowNext},
	OpConvI2:      {"conv.i2", InlineNone, FlowNext},
	OpConvI4:      {"conv.i4", InlineNone, FlowNext},
	OpConvI8:      {"conv.i8", InlineNone, FlowNext},
	OpConvR4:      {"conv.r4", InlineNone, FlowNext},
	OpConvR8:      {"conv.r8", InlineNone, FlowNext},
	OpConvU4:      {"conv.u4", InlineNone, FlowNext},
	OpConvU8:      {"conv.u8", InlineNone, FlowNext},
	OpCallvirt:    {"callvirt", InlineMethod, FlowCall},
	OpCpobj:       {"cpobj", InlineType, FlowNext},
	OpLdobj:       {"ldobj", InlineType, FlowNext},
	OpLdstr:       {"ldstr", InlineString, FlowNext},
	OpNewobj:      {"newobj", InlineMethod, FlowCall},
	OpCastclass:   {"castclass", InlineType, FlowNext},
	OpIsinst:      {"isinst", InlineType, FlowNext},
	OpConvRUn:     {"conv.r.un", InlineNone, FlowNext},
	OpUnbox:       {"unbox", InlineType, FlowNext},
	OpThrow:       {"throw", InlineNone, FlowThrow},
	OpLdfld:       {"ldfld", InlineField, FlowNext},
	OpLdflda:      {"ldflda", InlineField, FlowNext},
	OpStfld:       {"stfld", InlineField, FlowNext},
	OpLdsfld:      {"ldsfld", InlineField, FlowNext},
	OpLdsflda:     {"ldsflda", InlineField, FlowNext},
	OpStsfld:      {"stsfld", InlineField, FlowNext},
	OpStobj:       {"stobj", InlineType, FlowNext},
	OpConvOvfI1Un: {"conv.ovf.i1.un", InlineNone, FlowNext},
	OpConvOvfI2Un: {"conv.ovf.i2.un", InlineNone, FlowNext},
	OpConvOvfI4Un: {"conv.ovf.i4.un", InlineNone, FlowNext},
	OpConvOvfI8Un: {"conv.ovf.i8.un", InlineNone, FlowNext},
	OpConvOvfU1Un: {"conv.ovf.u1.un", InlineNone, FlowNext},
	OpConvOvfU2Un: {"conv.ovf.u2.un", InlineNone, FlowNext},
	OpConvOvfU4Un: {"conv.ovf.u4.un", InlineNone, FlowNext},
	OpConvOvfU8Un: {"conv.ovf.u8.un", InlineNone, FlowNext},
	OpConvOvfIUn:  {"conv.ovf.i.un", InlineNone, FlowNext},
	OpConvOvfUUn:  {"conv.ovf.u.un", InlineNone, FlowNext},
	OpBox:         {"box", InlineType, FlowNext},
	OpNewarr:      {"newarr", InlineType, FlowNext},
	OpLdlen:       {"ldlen", InlineNone, FlowNext},
	OpLdelema:     {"ldelema", InlineType, FlowNext},
	OpLdelemI1:    {"ldelem.i1", InlineNone, FlowNext},
	OpLdelemU1:    {"ldelem.u1", InlineNone, FlowNext},
	OpLdelemI2:    {"ldelem.i2", InlineNone, FlowNext},
	OpLdelemU2:    {"ldelem.u2", InlineNone, FlowNext},
	OpLdelemI4:    {"ldelem.i4", InlineNone, FlowNext},
	OpLdelemU4:    {"ldelem.u4", InlineNone, FlowNext},
	OpLdelemI8:    {"ldelem.i8", InlineNone, FlowNext},
	OpLdelemI:     {"ldelem.i", InlineNone, FlowNext},
	OpLdelemR4:    {"ldelem.r4", InlineNone, FlowNext},
	OpLdelemR8:    {"ldelem.r8", InlineNone, FlowNext},
	OpLdelemRef:   {"ldelem.ref", InlineNone, FlowNext},
	OpStelemI:     {"stelem.i", InlineNone, FlowNext},
	OpStelemI1:    {"stelem.i1", InlineNone, FlowNext},
	OpStelemI2:    {"stelem.i2", InlineNone, FlowNext},
	OpStelemI4:    {"stelem.i4", InlineNone, FlowNext},
	OpStelemI8:    {"stelem.i8", InlineNone, FlowNext},
	OpStelemR4:    {"stelem.r4", InlineNone, FlowNext},
	OpStelemR8:    {"stelem.r8", InlineNone, FlowNext},
	OpStelemRef:   {"stelem.ref", InlineNone, FlowNext},
	OpLdelem:      {"ldelem", InlineType, FlowNext},
	OpStelem:      {"stelem", InlineType, FlowNext},
	OpUnboxAny:    {"unbox.any", InlineType, FlowNext},
	OpConvOvfI1:   {"conv.ovf.i1", InlineNone, FlowNext},
	OpConvOvfU1:   {"conv.ovf.u1", InlineNone, FlowNext},
	OpConvOvfI2:   {"conv.ovf.i2", InlineNone, FlowNext},
	OpConvOvfU2:   {"conv.ovf.u2", InlineNone, FlowNext},
	OpConvOvfI4:   {"conv.ovf.i4", InlineNone, FlowNext},
	OpConvOvfU4:   {"conv.ovf.u4", InlineNone, FlowNext},
	OpConvOvfI8:   {"conv.ovf.i8", InlineNone, FlowNext},
	OpConvOvfU8:   {"conv.ovf.u8", InlineNone, FlowNext},
	OpRefanyval:   {"refanyval", InlineType, FlowNext},
	OpCkfinite:    {"ckfinite", InlineNone, FlowNext},
	OpMkrefany:    {"mkrefany", InlineType, FlowNext},
	OpLdtoken:     {"ldtoken", InlineTok, FlowNext},
	OpConvU2:      {"conv.u2", InlineNone, FlowNext},
	OpConvU1:      {"conv.u1", InlineNone, FlowNext},
	OpConvI:       {"conv.i", InlineNone, FlowNext},
	OpConvOvfI:    {"conv.ovf.i", InlineNone, FlowNext},
	OpConvOvfU:    {"conv.ovf.u", InlineNone, FlowNext},
	OpAddOvf:      {"add.ovf", InlineNone, FlowNext},
	OpAddOvfUn:    {"add.ovf.un", InlineNone, FlowNext},
	OpMulOvf:      {"mul.ovf", InlineNone, FlowNext},
	OpMulOvfUn:    {"mul.ovf.un", InlineNone, FlowNext},
	OpSubOvf:      {"sub.ovf", InlineNone, FlowNext},
	OpSubOvfUn:    {"sub.ovf.un", InlineNone, FlowNext},
	OpEndfinally:  {"endfinally", InlineNone, FlowReturn},
	OpLeave:       {"leave", InlineBrTarget, FlowBranch},
	OpLeaveS:      {"leave.s", ShortInlineBrTarget, FlowBranch},
	OpStindI:      {"stind.i", InlineNone, FlowNext},
	OpConvU:       {"conv.u", InlineNone, FlowNext},
	OpArglist:     {"arglist", InlineNone, FlowNext},
	OpCeq:         {"ceq", InlineNone, FlowNext},
	OpCgt:         {"cgt", InlineNone, FlowNext},
	OpCgtUn:       {"cgt.un", InlineNone, FlowNext},
	OpClt:         {"clt", InlineNone, FlowNext},
	OpCltUn:       {"clt.un", InlineNone, FlowNext},
	OpLdftn:       {"ldftn", InlineMethod, FlowNext},
	OpLdvirtftn:   {"ldvirtftn", InlineMethod, FlowNext},
	OpLdarg:       {"ldarg", InlineVar, FlowNext},
	OpLdarga:      {"ldarga", InlineVar, FlowNext},
	OpStarg:       {"starg", InlineVar, FlowNext},
	OpLdloc:       {"ldloc", InlineVar, FlowNext},
	OpLdloca:      {"ldloca", InlineVar, FlowNext},
	OpStloc:       {"stloc", InlineVar, FlowNext},
	OpLocalloc:    {"localloc", InlineNone, FlowNext},
	OpEndfilter:   {"endfilter", InlineNone, FlowReturn},
	OpUnaligned:   {"unaligned.", ShortInlineI, FlowMeta},
	OpVolatile:    {"volatile.", InlineNone, FlowMeta},
	OpTail:        {"tail.", InlineNone, FlowMeta},
	OpInitobj:     {"initobj", InlineType, FlowNext},
	OpConstrained: {"constrained.", InlineType, FlowMeta},
	OpCpblk:       {"cpblk", InlineNone, FlowNext},
	OpInitblk:     {"initblk", InlineNone, FlowNext},
	OpNo:          {"no.", ShortInlineI, FlowMeta},
	OpRethrow:     {"rethrow", InlineNone, FlowThrow},
	OpSizeof:      {"sizeof", InlineType, FlowNext},
	OpRefanytype:  {"refanytype", InlineNone, FlowNext},
	OpReadonly:    {"readonly.", InlineNone, FlowMeta},
	OpLabel:       {"(label)", InlineNone, FlowMeta},
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opTable[op]
	return ok
}

func (op Opcode) info() opInfo {
	if i, ok := opTable[op]; ok {
		return i
	}
	return opInfo{name: fmt.Sprintf("op_%04X", uint16(op))}
}

func (op Opcode) String() string { return op.info().name }

// OperandType returns the inline operand encoding of op.
func (op Opcode) OperandType() OperandType { return op.info().operand }

// Flow returns the control-flow class of op.
func (op Opcode) Flow() FlowControl { return op.info().flow }

// Size returns the number of opcode bytes: 0 for OpLabel, 2 for prefixed
// opcodes and 1 otherwise.
func (op Opcode) Size() int {
	switch {
	case op == OpLabel:
		return 0
	case op>>8 == Prefix:
		return 2
	}
	return 1
}

// IsBranch reports whether op transfers control to inline targets.
func (op Opcode) IsBranch() bool {
	switch op.OperandType() {
	case ShortInlineBrTarget, InlineBrTarget, InlineSwitch:
		return true
	}
	return false
}

// IsShortBranch reports whether op is a branch with a one-byte displacement.
func (op Opcode) IsShortBranch() bool { return op.OperandType() == ShortInlineBrTarget }

// IsCall reports whether op is call or callvirt.
func (op Opcode) IsCall() bool { return op == OpCall || op == OpCallvirt }

// Long returns the four-byte displacement form of a short branch; every
// other opcode is returned unchanged.
func (op Opcode) Long() Opcode {
	switch {
	case op >= OpBrS && op <= OpBltUnS:
		return op + (OpBr - OpBrS)
	case op == OpLeaveS:
		return OpLeave
	}
	return op
}

// Lookup returns the opcode with the given assembler name.
func Lookup(name string) (Opcode, bool) {
	op, ok := opNames[name]
	return op, ok
}

var opNames = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opTable))
	for op, i := range opTable {
		if op != OpLabel {
			m[i.name] = op
		}
	}
	return m
}()
