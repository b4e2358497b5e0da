// Package errs defines the closed set of structured error kinds that cross
// component boundaries in the codegen pipeline. Every kind carries an exit
// code so cmd/donorgen can map an error to a process exit status in one
// place instead of string-matching messages.
package errs

import "fmt"

// Kind discriminates the error taxonomy.
type Kind int

const (
	InputError Kind = iota
	DeviceNotFound
	PermissionDenied
	TruncatedConfigSpace
	CapabilityCycle
	CapabilityOutOfRange
	TruncatedCapability
	BarInvalid
	MsixTableOutOfBar
	MsixPbaOutOfBar
	MsixOverlap
	ProfileSchemaError
	ContextInvalid
	TemplateRenderError
	CodegenInconsistency
	IoError
	CacheFetchError
)

func (k Kind) String() string {
	switch k {
	case InputError:
		return "InputError"
	case DeviceNotFound:
		return "DeviceNotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case TruncatedConfigSpace:
		return "TruncatedConfigSpace"
	case CapabilityCycle:
		return "CapabilityCycle"
	case CapabilityOutOfRange:
		return "CapabilityOutOfRange"
	case TruncatedCapability:
		return "TruncatedCapability"
	case BarInvalid:
		return "BarInvalid"
	case MsixTableOutOfBar:
		return "MsixTableOutOfBar"
	case MsixPbaOutOfBar:
		return "MsixPbaOutOfBar"
	case MsixOverlap:
		return "MsixOverlap"
	case ProfileSchemaError:
		return "ProfileSchemaError"
	case ContextInvalid:
		return "ContextInvalid"
	case TemplateRenderError:
		return "TemplateRenderError"
	case CodegenInconsistency:
		return "CodegenInconsistency"
	case IoError:
		return "IoError"
	case CacheFetchError:
		return "CacheFetchError"
	default:
		return "Unknown"
	}
}

// ExitCode maps an error kind to the donorgen CLI exit status: 0 success,
// 2 validation error, 3 extraction error, 4 codegen inconsistency, 1
// everything else.
func (k Kind) ExitCode() int {
	switch k {
	case InputError, BarInvalid, MsixTableOutOfBar, MsixPbaOutOfBar, MsixOverlap,
		ContextInvalid, ProfileSchemaError, CapabilityOutOfRange:
		return 2
	case DeviceNotFound, PermissionDenied, TruncatedConfigSpace,
		CapabilityCycle, TruncatedCapability, IoError:
		return 3
	case CodegenInconsistency, TemplateRenderError:
		return 4
	default:
		return 1
	}
}

// Error is the structured error record propagated to the orchestrator.
// Offset and Key are optional locators filled in by the raising component.
type Error struct {
	Kind    Kind
	Message string
	Offset  int    // config-space byte offset, when applicable; -1 if unset
	Key     string // render-context key, when applicable; "" if unset
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	loc := ""
	if e.Offset >= 0 {
		loc = fmt.Sprintf(" at offset 0x%x", e.Offset)
	}
	if e.Key != "" {
		loc = fmt.Sprintf(" (key %q)", e.Key)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s%s: %v", e.Kind, e.Message, loc, e.Err)
	}
	return fmt.Sprintf("%s: %s%s", e.Kind, e.Message, loc)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode satisfies the exit-code mapping contract for cmd/donorgen.
func (e *Error) ExitCode() int { return e.Kind.ExitCode() }

// New builds an Error with no offset/key locator.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Offset: -1}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Offset: -1}
}

// Wrap builds an Error that wraps an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Offset: -1, Err: err}
}

// WithOffset attaches a config-space byte offset to the error.
func WithOffset(kind Kind, message string, offset int) *Error {
	return &Error{Kind: kind, Message: message, Offset: offset}
}

// WithKey attaches a render-context key to the error.
func WithKey(kind Kind, message string, key string) *Error {
	return &Error{Kind: kind, Message: message, Offset: -1, Key: key}
}

// As reports whether err is (or wraps) an *Error of the given kind.
func As(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
