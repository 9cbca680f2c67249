// Package xerr defines the typed error categories crossing component
// boundaries in xorpcore, per the core's error-handling design: validation,
// auth, policy, and platform failures are counted and handled locally;
// only Fatal propagates to the supervisor.
package xerr

import "fmt"

// Kind categorizes an Error for counting and for deciding how a caller
// should react to it.
type Kind int

const (
	// Validation marks a malformed packet, bad prefix length, bad family,
	// or bad metric. Counted and dropped at ingress; never surfaces above
	// the owning Port.
	Validation Kind = iota
	// Auth marks an authentication failure (bad key id, bad digest, replay).
	// Counted separately from Validation.
	Auth
	// Policy marks an unreachable next hop or a filtered route: the route
	// is simply not installed or not advertised.
	Policy
	// Platform marks a kernel-reported error (EBADF, ENOENT, ESRCH, ...).
	Platform
	// Peer marks a peer that became unauthenticated or unresponsive and is
	// being garbage-collected.
	Peer
	// Fatal marks an unrecoverable failure: the owning subsystem must
	// request clean shutdown.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Auth:
		return "auth"
	case Policy:
		return "policy"
	case Platform:
		return "platform"
	case Peer:
		return "peer"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the typed, wrapped error exchanged across component boundaries.
// Op names the operation that failed (e.g. "port.input", "fib.add_entry").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error, wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
