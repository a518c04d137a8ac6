package script

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/chazu/scriptbridge/errs"
)

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// Exception is a script-raised error. Trace lists the callables it unwound
// through, outermost first.
type Exception struct {
	Class   string
	Message string
	Trace   []string
}

// Raise builds an exception of the given class.
func Raise(class, format string, args ...any) error {
	return &Exception{Class: class, Message: fmt.Sprintf(format, args...)}
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Class
	}
	return e.Class + ": " + e.Message
}

// Traceback renders the exception the way a script runtime would print it.
func (e *Exception) Traceback() string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for _, f := range e.Trace {
		fmt.Fprintf(&b, "  in %s\n", f)
	}
	b.WriteString(e.Error())
	return b.String()
}

func (e *Exception) push(frame string) *Exception {
	e.Trace = append([]string{frame}, e.Trace...)
	return e
}

// unwind records frame on script exceptions. Classified bridge errors pass
// through untouched; any other Go error becomes a generic exception.
func unwind(err error, frame string) error {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc.push(frame)
	}
	var be *errs.Error
	if errors.As(err, &be) {
		return err
	}
	return (&Exception{Class: "Error", Message: err.Error()}).push(frame)
}

func fromPanic(r any) *Exception {
	switch x := r.(type) {
	case *Exception:
		return x
	case runtime.Error:
		msg := x.Error()
		if strings.Contains(msg, "divide by zero") {
			return &Exception{Class: "ZeroDivisionError", Message: "division by zero"}
		}
		return &Exception{Class: "RuntimeError", Message: strings.TrimPrefix(msg, "runtime error: ")}
	case error:
		return &Exception{Class: "RuntimeError", Message: x.Error()}
	}
	return &Exception{Class: "RuntimeError", Message: fmt.Sprint(r)}
}

// Classify converts a script exception into a CalleeError carrying its
// class, message and trace. Other errors are returned unchanged.
func Classify(err error) error {
	var exc *Exception
	if !errors.As(err, &exc) {
		return err
	}
	return &errs.Error{
		Kind:  errs.CalleeError,
		Class: exc.Class,
		Trace: append([]string(nil), exc.Trace...),
		Msg:   exc.Message,
	}
}
