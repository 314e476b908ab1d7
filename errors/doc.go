// Package errors provides structured error types for the IL rewriting library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Malformed input is KindFormat, a misused reader or writer is KindLogic, and a call
// site the planner refuses to touch is KindSkip. Errors tied to a blob position carry
// the byte offset.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSignature, errors.KindFormat).
//		Offset(7).
//		Path("param[1]").
//		Detail("unknown element type 0x%02x", tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Format(errors.PhaseDecode, 12, "unknown opcode 0x%02x", op)
//	err := errors.Logic(errors.PhaseSignature, "type is not a generic instantiation")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
