package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// Multi is a multi-value return. It crosses the boundary as a Tuple, the
// same shape as a returned value.GoTuple.
type Multi []any

// Return builds a multi-value return.
func Return(vals ...any) Multi { return Multi(vals) }

func (m Multi) MarshalValue() (value.Value, error) {
	return value.FromGo(value.GoTuple(m))
}

// ToValue converts a callable's result for the host. Instances and host
// values with no conversion are UnsupportedValue; they are never coerced
// to Null or stringified.
func ToValue(x any) (value.Value, error) {
	v, err := value.FromGo(x)
	if err == nil {
		return v, nil
	}
	if errs.KindOf(err) == errs.TypeMismatch {
		var be *errs.Error
		errors.As(err, &be)
		return nil, errs.New(errs.UnsupportedValue, "", "%s", be.Msg)
	}
	return nil, err
}

// ---------------------------------------------------------------------------
// Script-style rendering
// ---------------------------------------------------------------------------

// Str renders x the way script code formats values for display: True and
// None, floats always with a fractional part, bytes as bracketed hex.
func Str(x any) string {
	switch v := x.(type) {
	case string:
		return v
	case value.String:
		return string(v)
	}
	return Repr(x)
}

// Repr is Str with strings quoted, as used inside containers.
func Repr(x any) string {
	var b strings.Builder
	repr(&b, x)
	return b.String()
}

func repr(b *strings.Builder, x any) {
	switch v := x.(type) {
	case nil, value.Null:
		b.WriteString("None")
	case bool:
		repr(b, value.Bool(v))
	case value.Bool:
		if v {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case value.Int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case float64:
		b.WriteString(formatFloat(v))
	case value.Float:
		b.WriteString(formatFloat(float64(v)))
	case string:
		b.WriteString(strconv.Quote(v))
	case value.String:
		b.WriteString(strconv.Quote(string(v)))
	case []byte:
		fmt.Fprintf(b, "[%x]", v)
	case value.Bytes:
		fmt.Fprintf(b, "[%x]", []byte(v))
	case value.Array:
		reprSeq(b, "[", "]", v)
	case value.Tuple:
		reprSeq(b, "(", ")", v)
	case *value.Map:
		b.WriteByte('{')
		first := true
		v.Range(func(k string, e value.Value) bool {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			repr(b, e)
			return true
		})
		b.WriteByte('}')
	case value.Timestamp:
		b.WriteString(v.String())
	case value.Handle:
		fmt.Fprintf(b, "<handle %s %s>", v, v.Type)
	case *Instance:
		fmt.Fprintf(b, "<%s object>", v.class.QualName())
	default:
		fmt.Fprint(b, v)
	}
}

func reprSeq(b *strings.Builder, open, close string, vs []value.Value) {
	b.WriteString(open)
	for i, e := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		repr(b, e)
	}
	if close == ")" && len(vs) == 1 {
		b.WriteByte(',')
	}
	b.WriteString(close)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".en") {
		s += ".0"
	}
	return s
}
