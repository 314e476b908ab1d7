package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode     Phase = "decode"     // method body to instructions
	PhaseEncode     Phase = "encode"     // instructions to method body
	PhaseSignature  Phase = "signature"  // signature blob read/write
	PhaseSubstitute Phase = "substitute" // generic argument substitution
	PhaseSplice     Phase = "splice"     // instruction insertion
	PhaseResolve    Phase = "resolve"    // metadata token resolution
	PhaseEmit       Phase = "emit"       // token emission
	PhasePlan       Phase = "plan"       // call-site classification
	PhaseLoad       Phase = "load"       // fixture and config loading
	PhaseLog        Phase = "log"        // event record encoding
)

// Kind categorizes the error
type Kind string

const (
	// KindFormat marks malformed or truncated input bytes.
	KindFormat Kind = "format"
	// KindLogic marks an operation invoked in a state that does not allow it.
	KindLogic Kind = "logic"
	// KindSkip marks a call site the planner deliberately leaves alone.
	KindSkip         Kind = "skip"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindOverflow     Kind = "overflow"
	KindUnsupported  Kind = "unsupported"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
)

// NoOffset is the Offset of errors not tied to a byte position.
const NoOffset = -1

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Path sets the element path, e.g. "param[1]", "arg[0]"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the byte offset the error refers to
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Format creates a malformed-input error at a byte offset
func Format(phase Phase, offset int, detail string, args ...any) *Error {
	return New(phase, KindFormat).Offset(offset).Detail(detail, args...).Build()
}

// Logic creates a contract violation error
func Logic(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindLogic).Detail(detail, args...).Build()
}

// Skip creates a planner skip marker
func Skip(detail string, args ...any) *Error {
	return New(PhasePlan, KindSkip).Detail(detail, args...).Build()
}

// UnknownTag creates a format error for an unexpected tag byte
func UnknownTag(phase Phase, offset int, what string, tag byte) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFormat,
		Offset: offset,
		Detail: fmt.Sprintf("unknown %s 0x%02x", what, tag),
		Value:  tag,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Offset: NoOffset,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Offset: NoOffset,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Offset: NoOffset,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, key any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Offset: NoOffset,
		Detail: fmt.Sprintf("%s %v not found", what, key),
		Value:  key,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsFormat reports whether err stems from malformed input.
func IsFormat(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindFormat
}

// IsLogic reports whether err is a contract violation.
func IsLogic(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindLogic
}

// IsSkip reports whether err is a deliberate planner skip.
func IsSkip(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindSkip
}
