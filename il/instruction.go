package il

import (
	"math"

	"github.com/wippyai/ilrewrite/sig"
)

// Handle is the stable identity of an instruction within one Method.
// Handles survive insertions; positions do not.
type Handle int32

// NoHandle marks an absent reference, such as the filter start of a
// non-filter clause.
const NoHandle Handle = -1

// NoOffset is the OrigOffset of an inserted instruction.
const NoOffset = -1

// Instruction is one decoded or inserted operation.
//
// Operand holds the raw inline operand: integers sign-extended, tokens and
// variable indices zero-extended, floats as their IEEE bits. For branches it
// holds the displacement, which RecalculateOffsets derives from Targets; for
// switch it holds the target count.
type Instruction struct {
	Targets    []Handle
	Operand    int64
	OrigOffset int
	Offset     int
	Op         Opcode
}

// Make returns an instruction ready for insertion.
func Make(op Opcode, operand int64) Instruction {
	return Instruction{Op: op, Operand: operand, OrigOffset: NoOffset}
}

// MakeToken returns an instruction whose operand is a metadata token.
func MakeToken(op Opcode, tok sig.Token) Instruction {
	return Make(op, int64(uint32(tok)))
}

// MakeI4 returns ldc.i4 v.
func MakeI4(v int32) Instruction {
	return Make(OpLdcI4, int64(v))
}

// MakeR8 returns ldc.r8 v.
func MakeR8(v float64) Instruction {
	return Make(OpLdcR8, int64(math.Float64bits(v)))
}

// MakeBranch returns a branch to an existing instruction.
func MakeBranch(op Opcode, target Handle) Instruction {
	in := Make(op, 0)
	in.Targets = []Handle{target}
	return in
}

// Size returns the encoded length of the instruction including any switch table.
func (in *Instruction) Size() int {
	n := in.Op.Size() + in.Op.OperandType().Size()
	if in.Op == OpSwitch {
		n += 4 * int(uint32(in.Operand))
	}
	return n
}

// Token returns the operand as a metadata token.
func (in *Instruction) Token() sig.Token { return sig.Token(uint32(in.Operand)) }

// Int32 returns the operand truncated to 32 bits.
func (in *Instruction) Int32() int32 { return int32(in.Operand) }

// Float64 interprets the operand as an ldc.r8 or ldc.r4 constant.
func (in *Instruction) Float64() float64 {
	if in.Op.OperandType() == ShortInlineR {
		return float64(math.Float32frombits(uint32(in.Operand)))
	}
	return math.Float64frombits(uint64(in.Operand))
}

// IsInserted reports whether the instruction was not part of the decoded body.
func (in *Instruction) IsInserted() bool { return in.OrigOffset == NoOffset }

// Equivalent reports whether two instructions have the same operation and
// operand. Branch targets are not compared.
func (in *Instruction) Equivalent(o *Instruction) bool {
	if in.Op != o.Op {
		return false
	}
	if in.Op.IsBranch() {
		return len(in.Targets) == len(o.Targets)
	}
	return in.Operand == o.Operand
}

func (in *Instruction) clone() Instruction {
	c := *in
	if in.Targets != nil {
		c.Targets = append([]Handle(nil), in.Targets...)
	}
	return c
}
