// Package errs defines the error kinds reported across the host/script
// boundary. Every failure surfaced by the bridge is an *Error carrying one
// Kind so callers can decide policy without parsing messages.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a bridge failure.
type Kind uint8

const (
	Other Kind = iota
	TypeMismatch
	RangeError
	UnknownHandle
	MissingArgument
	DeserializationError
	CalleeError
	Timeout
	UnsupportedValue
	SessionClosed
	NotFound
)

var kindNames = [...]string{
	Other:                "Other",
	TypeMismatch:         "TypeMismatch",
	RangeError:           "RangeError",
	UnknownHandle:        "UnknownHandle",
	MissingArgument:      "MissingArgument",
	DeserializationError: "DeserializationError",
	CalleeError:          "CalleeError",
	Timeout:              "Timeout",
	UnsupportedValue:     "UnsupportedValue",
	SessionClosed:        "SessionClosed",
	NotFound:             "NotFound",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error lets a bare Kind be used as an errors.Is target:
//
//	errors.Is(err, errs.Timeout)
func (k Kind) Error() string { return k.String() }

// ParseKind is the inverse of Kind.String. Unknown names map to Other.
func ParseKind(name string) Kind {
	for i, n := range kindNames {
		if n == name {
			return Kind(i)
		}
	}
	return Other
}

// Error is a classified bridge failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "invoke Sample.logger"

	// Class and Trace are only set for CalleeError: the script-side
	// exception class and the script call trace, innermost last.
	Class string
	Trace []string

	Msg string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Class != "" {
		b.WriteString(" (")
		b.WriteString(e.Class)
		b.WriteString(")")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind target, so errors.Is(err, errs.NotFound) works
// through any amount of wrapping.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns an *Error of kind k.
func New(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind k. A nil err yields nil.
func Wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// WithOp returns err with op recorded if err is an *Error that has none.
// Other errors are returned unchanged.
func WithOp(op string, err error) error {
	var e *Error
	if !errors.As(err, &e) || e.Op != "" {
		return err
	}
	cp := *e
	cp.Op = op
	return &cp
}
