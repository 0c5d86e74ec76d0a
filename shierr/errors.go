// Package shierr holds the closed error taxonomy described in spec §7.
// Errors are values, not control flow: an *Error carries its Kind, the
// failing operation and the underlying cause, which Unwrap exposes to
// errors.Is/errors.As.
package shierr

import "fmt"

// Kind is the closed set of error categories SHI ever raises.
type Kind int

const (
	// ArgumentError: unknown predicate name, ill-formed settings.
	ArgumentError Kind = iota
	// InvalidOperation: session misuse (concurrent use, wrong phase).
	InvalidOperation
	// InternalError: invariant violation detected at runtime, or a
	// predicate panic caught and converted (spec §9 Open Questions).
	InternalError
	// VersionShift: reader/writer observed a higher version during the
	// prepare phase; the caller must retry on the new phase.
	VersionShift
	// RetryNow: a CAS loop would violate the downward invariant; the
	// whole insert must be retried locally.
	RetryNow
)

func (k Kind) String() string {
	switch k {
	case ArgumentError:
		return "ArgumentError"
	case InvalidOperation:
		return "InvalidOperation"
	case InternalError:
		return "InternalError"
	case VersionShift:
		return "VersionShift"
	case RetryNow:
		return "RetryNow"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind, the failing operation
// name, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, shierr.New(shierr.RetryNow, "", nil)) or, more
// conveniently, use IsKind below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is a *shierr.Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
