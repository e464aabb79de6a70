package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBuffer      Phase = "buffer"      // boundary buffer access
	PhasePool        Phase = "pool"        // object pool
	PhaseCallback    Phase = "callback"    // callback registry
	PhaseException   Phase = "exception"   // fault translation
	PhaseIndirection Phase = "indirection" // double-indirection round trip
	PhaseDispatch    Phase = "dispatch"    // entry-point dispatch
	PhaseDecode      Phase = "decode"      // boundary bytes to Go
	PhaseEncode      Phase = "encode"      // Go to boundary bytes
	PhaseDomain      Phase = "domain"      // domain service
	PhaseConfig      Phase = "config"      // configuration loading
	PhaseHost        Phase = "host"        // host module registration
	PhaseResource    Phase = "resource"    // resource source
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindAlreadyExists   Kind = "already_exists"
	KindInvalidFormat   Kind = "invalid_format"
	KindInvalidArgument Kind = "invalid_argument"
	KindUnavailable     Kind = "unavailable"
	KindTruncated       Kind = "truncated"
	KindFatal           Kind = "fatal"
	KindFinished        Kind = "finished"
	KindInternal        Kind = "internal"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindAllocation      Kind = "allocation"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
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

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
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
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// Kind sentinels for errors.Is checks that do not care about the phase.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrInvalidFormat   = &Error{Kind: KindInvalidFormat}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
	ErrFinished        = &Error{Kind: KindFinished}
	ErrInternal        = &Error{Kind: KindInternal}
)

// Convenience constructors for common error patterns

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// AlreadyExists creates an already-exists error
func AlreadyExists(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyExists,
		Detail: fmt.Sprintf("%s %q already exists", what, name),
	}
}

// InvalidFormat creates a malformed-input error
func InvalidFormat(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidFormat,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidArgument creates an out-of-range argument error
func InvalidArgument(phase Phase, detail string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: detail,
		Value:  value,
	}
}

// Unavailable creates an error for a missing handler
func Unavailable(phase Phase, channel string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnavailable,
		Detail: fmt.Sprintf("no handler registered for %q", channel),
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory access out of bounds: offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Internal creates an internal fault error
func Internal(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
