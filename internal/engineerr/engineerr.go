// Package engineerr defines the error-kind taxonomy shared by every
// component. Components return wrapped errors; the orchestrator
// is the only layer that translates a Kind into an exit code.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds from the taxonomy. It is not a concrete
// error type. Callers wrap an underlying error with a Kind via New/Wrap and
// recover it with As.
type Kind string

const (
	KindInput            Kind = "InputError"
	KindNotFound         Kind = "NotFound"
	KindIntegrityFailure Kind = "IntegrityFailure"
	KindSignatureInvalid Kind = "SignatureInvalid"
	KindKeyUntrusted     Kind = "KeyUntrusted"
	KindExpired          Kind = "Expired"
	KindPolicyViolation  Kind = "PolicyViolation"
	KindRender           Kind = "RenderError"
	KindIO               Kind = "IoError"
	KindTimeout          Kind = "TimeoutError"
	KindCancelled        Kind = "Cancelled"
	KindShutdown         Kind = "ShutdownError"
	KindMalformed        Kind = "MalformedAttestation"
	KindParse            Kind = "ParseError"
	KindUnsupportedFmt   Kind = "UnsupportedFormat"
	KindContext          Kind = "ContextError"
	KindNotAGitRepo      Kind = "NotAGitRepository"
)

// Error is a structured engine error: a Kind, an operation id for
// cross-referencing with events/logs, and the wrapped cause.
type Error struct {
	Kind        Kind
	OperationID string
	Cause       error
}

func (e *Error) Error() string {
	if e.OperationID != "" {
		return fmt.Sprintf("%s [op=%s]: %v", e.Kind, e.OperationID, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error wrapping a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: err}
}

// WithOp returns a copy of the error with OperationID set.
func WithOp(err *Error, opID string) *Error {
	if err == nil {
		return nil
	}
	cp := *err
	cp.OperationID = opID
	return &cp
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err isn't an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ExitCode maps a Kind to the engine's process exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindSignatureInvalid, KindKeyUntrusted, KindExpired, KindPolicyViolation:
		return 2
	case KindIntegrityFailure:
		return 3
	case KindInput, KindParse, KindUnsupportedFmt, KindContext:
		return 4
	default:
		return 1
	}
}
