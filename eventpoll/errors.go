package eventpoll

import "fmt"

// Kind is one of a closed set of error classifications returned by this
// package. It does not carry type names, only classification.
type Kind int

const (
	// KindResourceExhausted indicates allocation or execution-context
	// creation failed.
	KindResourceExhausted Kind = iota + 1
	// KindDuplicate indicates an Insert targeted a key already present.
	KindDuplicate
	// KindNotFound indicates a Remove or SetFlags targeted a socket not
	// registered.
	KindNotFound
	// KindShutdown indicates the operation was attempted after teardown
	// began.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case KindDuplicate:
		return "DUPLICATE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Error is the error type returned by eventpoll operations (herder's
// Dispatch passes these through unchanged). It wraps an optional cause and classifies via Kind, enabling
// errors.Is / errors.As matching on Kind via [Error.Is].
type Error struct {
	Kind    Kind
	Op      string
	Cause   error
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, &Error{Kind: KindDuplicate}) style checks, as well as the
// package-level sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Sentinel errors for use with errors.Is, one per Kind.
var (
	ErrResourceExhausted = &Error{Kind: KindResourceExhausted}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrShutdown          = &Error{Kind: KindShutdown}
)
