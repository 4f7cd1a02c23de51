// Package vmerr defines the structured error type shared by the class file
// decoder, the interpreter, and the native method registry.
//
// Every failure in minijvm is fatal. Components return a *Error describing
// what went wrong and where; callers add context with fmt.Errorf and %w, and
// the underlying kind stays reachable through errors.Is and errors.As.
package vmerr

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad    Phase = "load"    // reading class bytes from storage
	PhaseDecode  Phase = "decode"  // class file bytes to structures
	PhaseResolve Phase = "resolve" // constant pool lookups
	PhaseExecute Phase = "execute" // bytecode interpretation
	PhaseNative  Phase = "native"  // native method registry
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds          Kind = "out_of_bounds"
	KindUnexpectedTag        Kind = "unexpected_tag"
	KindIndexOutOfRange      Kind = "index_out_of_range"
	KindUndefinedConstantTag Kind = "undefined_constant_tag"
	KindTrailingData         Kind = "trailing_data"
	KindMissingMethod        Kind = "missing_method"
	KindMissingAttribute     Kind = "missing_attribute"
	KindUnsupportedFeature   Kind = "unsupported_feature"
	KindUnknownOpcode        Kind = "unknown_opcode"
	KindTruncatedCode        Kind = "truncated_code"
	KindLookup               Kind = "lookup"
	KindBadMagic             Kind = "bad_magic"
	KindStackOverflow        Kind = "stack_overflow"
	KindStackUnderflow       Kind = "stack_underflow"
	KindBudgetExceeded       Kind = "budget_exceeded"
	KindInvalidArgument      Kind = "invalid_argument"
)

// Target names which registry level a Lookup error failed at.
type Target string

const (
	TargetClass  Target = "class"
	TargetField  Target = "field"
	TargetMethod Target = "method"
)

// Error is the structured error used throughout minijvm.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Target Target
	Name   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Target != "" {
		b.WriteByte(' ')
		b.WriteString(string(e.Target))
	}
	if e.Name != "" {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprintf("%q", e.Name))
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

// Is reports whether target matches this error. A target matches when its
// Kind is equal and its Phase and Target are either empty or equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Target != "" && t.Target != e.Target {
		return false
	}
	return true
}

// Sentinels for errors.Is. They match any phase.
var (
	ErrOutOfBounds          = &Error{Kind: KindOutOfBounds}
	ErrUnexpectedTag        = &Error{Kind: KindUnexpectedTag}
	ErrIndexOutOfRange      = &Error{Kind: KindIndexOutOfRange}
	ErrUndefinedConstantTag = &Error{Kind: KindUndefinedConstantTag}
	ErrTrailingData         = &Error{Kind: KindTrailingData}
	ErrMissingMethod        = &Error{Kind: KindMissingMethod}
	ErrMissingAttribute     = &Error{Kind: KindMissingAttribute}
	ErrUnsupportedFeature   = &Error{Kind: KindUnsupportedFeature}
	ErrUnknownOpcode        = &Error{Kind: KindUnknownOpcode}
	ErrTruncatedCode        = &Error{Kind: KindTruncatedCode}
	ErrLookup               = &Error{Kind: KindLookup}
	ErrBadMagic             = &Error{Kind: KindBadMagic}
	ErrStackOverflow        = &Error{Kind: KindStackOverflow}
	ErrStackUnderflow       = &Error{Kind: KindStackUnderflow}
	ErrBudgetExceeded       = &Error{Kind: KindBudgetExceeded}
	ErrInvalidArgument      = &Error{Kind: KindInvalidArgument}

	ErrClassNotFound  = &Error{Kind: KindLookup, Target: TargetClass}
	ErrFieldNotFound  = &Error{Kind: KindLookup, Target: TargetField}
	ErrMethodNotFound = &Error{Kind: KindLookup, Target: TargetMethod}
)

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Target sets the lookup target
func (b *Builder) Target(t Target) *Builder {
	b.err.Target = t
	return b
}

// Name sets the offending symbol name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
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

// OutOfBounds creates an error for a read of n bytes at pos past length.
func OutOfBounds(phase Phase, pos, n, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("reading %d bytes at offset %d exceeds length %d", n, pos, length),
		Value:  pos,
	}
}

// IndexOutOfRange creates an error for a constant pool index outside [1, size).
func IndexOutOfRange(phase Phase, index uint16, size int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIndexOutOfRange,
		Detail: fmt.Sprintf("constant pool index %d outside [1, %d)", index, size),
		Value:  index,
	}
}

// UnexpectedTag creates an error for a pool entry used as the wrong variant.
func UnexpectedTag(phase Phase, index uint16, want, got fmt.Stringer) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedTag,
		Detail: fmt.Sprintf("constant pool index %d: expected %s, got %s", index, want, got),
		Value:  index,
	}
}

// UndefinedConstantTag creates an error for an unrecognized tag byte.
func UndefinedConstantTag(slot uint16, tag uint8) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUndefinedConstantTag,
		Detail: fmt.Sprintf("undefined constant tag %d at index %d", tag, slot),
		Value:  tag,
	}
}

// TrailingData creates an error for bytes left after a structure was parsed.
func TrailingData(what string, remaining int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindTrailingData,
		Detail: fmt.Sprintf("%d bytes remain after %s", remaining, what),
		Value:  remaining,
	}
}

// Unsupported creates an unsupported feature error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedFeature,
		Detail: what,
	}
}

// Lookup creates a native registry lookup failure. scope names where the
// lookup was made and may be empty.
func Lookup(target Target, name, scope string) *Error {
	detail := "not found"
	if scope != "" {
		detail = "not found in " + scope
	}
	return &Error{
		Phase:  PhaseNative,
		Kind:   KindLookup,
		Target: target,
		Name:   name,
		Detail: detail,
	}
}
