// Package value is the closed set of values that may cross the host/script
// boundary, together with the host (Go) side of the codec.
//
// A Value is exactly one of Null, Bool, Int, Float, String, Bytes, Array,
// *Map, Timestamp, Tuple or Handle. Nothing else implements the interface.
package value

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/scriptbridge/errs"
)

// Kind identifies a Value variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindMap
	KindTimestamp
	KindTuple
	KindHandle
)

var kindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindBytes:     "bytes",
	KindArray:     "array",
	KindMap:       "map",
	KindTimestamp: "timestamp",
	KindTuple:     "tuple",
	KindHandle:    "handle",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a boundary value.
type Value interface {
	Kind() Kind
	sealed()
}

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

type (
	// Null is the absence of a value. It is distinct from an empty Bytes.
	Null struct{}
	Bool bool
	Int  int64
	// Float is compared bit-exactly by Equal, so -0.0 and 0.0 differ.
	Float  float64
	String string
	// Bytes is an uninterpreted octet sequence.
	Bytes []byte
	Array []Value
	// Tuple is a fixed-length positional record. Unlike Array it is never
	// grown by callers; it also carries multi-value returns.
	Tuple []Value
)

// Handle references a live script-side object owned by a registry.
type Handle struct {
	ID   uint64
	Type string
}

func (Null) Kind() Kind      { return KindNull }
func (Bool) Kind() Kind      { return KindBool }
func (Int) Kind() Kind       { return KindInt }
func (Float) Kind() Kind     { return KindFloat }
func (String) Kind() Kind    { return KindString }
func (Bytes) Kind() Kind     { return KindBytes }
func (Array) Kind() Kind     { return KindArray }
func (Tuple) Kind() Kind     { return KindTuple }
func (Handle) Kind() Kind    { return KindHandle }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (*Map) Kind() Kind      { return KindMap }

func (Null) sealed()      {}
func (Bool) sealed()      {}
func (Int) sealed()       {}
func (Float) sealed()     {}
func (String) sealed()    {}
func (Bytes) sealed()     {}
func (Array) sealed()     {}
func (Tuple) sealed()     {}
func (Handle) sealed()    {}
func (Timestamp) sealed() {}
func (*Map) sealed()      {}

// String renders the handle id as used on the wire and in logs.
func (h Handle) String() string { return "h-" + strconv.FormatUint(h.ID, 10) }

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func mismatch(want Kind, v Value) error {
	got := "nil"
	if v != nil {
		got = v.Kind().String()
	}
	return errs.New(errs.TypeMismatch, "", "expected %s, got %s", want, got)
}

func AsBool(v Value) (bool, error) {
	if b, ok := v.(Bool); ok {
		return bool(b), nil
	}
	return false, mismatch(KindBool, v)
}

func AsInt(v Value) (int64, error) {
	if i, ok := v.(Int); ok {
		return int64(i), nil
	}
	return 0, mismatch(KindInt, v)
}

// AsFloat accepts Float, and Int when the integer is exactly representable.
func AsFloat(v Value) (float64, error) {
	switch x := v.(type) {
	case Float:
		return float64(x), nil
	case Int:
		f := float64(x)
		if f >= 0x1p63 || int64(f) != int64(x) {
			return 0, errs.New(errs.RangeError, "", "%d is not exactly representable as float", int64(x))
		}
		return f, nil
	}
	return 0, mismatch(KindFloat, v)
}

func AsString(v Value) (string, error) {
	if s, ok := v.(String); ok {
		return string(s), nil
	}
	return "", mismatch(KindString, v)
}

func AsBytes(v Value) ([]byte, error) {
	if b, ok := v.(Bytes); ok {
		return []byte(b), nil
	}
	return nil, mismatch(KindBytes, v)
}

func AsArray(v Value) (Array, error) {
	if a, ok := v.(Array); ok {
		return a, nil
	}
	return nil, mismatch(KindArray, v)
}

func AsTuple(v Value) (Tuple, error) {
	if t, ok := v.(Tuple); ok {
		return t, nil
	}
	return nil, mismatch(KindTuple, v)
}

func AsMap(v Value) (*Map, error) {
	if m, ok := v.(*Map); ok && m != nil {
		return m, nil
	}
	return nil, mismatch(KindMap, v)
}

func AsTimestamp(v Value) (Timestamp, error) {
	if t, ok := v.(Timestamp); ok {
		return t, nil
	}
	return Timestamp{}, mismatch(KindTimestamp, v)
}

func AsHandle(v Value) (Handle, error) {
	if h, ok := v.(Handle); ok {
		return h, nil
	}
	return Handle{}, mismatch(KindHandle, v)
}

// ---------------------------------------------------------------------------
// Equality and formatting
// ---------------------------------------------------------------------------

// Equal reports deep equality. Map comparison is order-sensitive because
// insertion order is part of a Map's identity on the wire.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Bool:
		return x == b.(Bool)
	case Int:
		return x == b.(Int)
	case Float:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Float)))
	case String:
		return x == b.(String)
	case Bytes:
		return bytes.Equal(x, b.(Bytes))
	case Array:
		return equalSeq(x, b.(Array))
	case Tuple:
		return equalSeq(x, b.(Tuple))
	case Handle:
		return x == b.(Handle)
	case Timestamp:
		return x.Equal(b.(Timestamp))
	case *Map:
		y := b.(*Map)
		if x.Len() != y.Len() {
			return false
		}
		if x.Len() == 0 {
			return true
		}
		for i, k := range x.keys {
			if y.keys[i] != k || !Equal(x.vals[k], y.vals[k]) {
				return false
			}
		}
		return true
	}
	return false
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Format renders v for logs and diagnostics.
func Format(v Value) string {
	var b strings.Builder
	format(&b, v)
	return b.String()
}

func format(b *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case Bool:
		b.WriteString(strconv.FormatBool(bool(x)))
	case Int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case String:
		b.WriteString(strconv.Quote(string(x)))
	case Bytes:
		b.WriteString("b'")
		b.WriteString(hex.EncodeToString(x))
		b.WriteString("'")
	case Array:
		formatSeq(b, "[", "]", x)
	case Tuple:
		formatSeq(b, "(", ")", x)
	case Handle:
		fmt.Fprintf(b, "<%s %s>", x.Type, x.String())
	case Timestamp:
		b.WriteString(x.String())
	case *Map:
		b.WriteString("{")
		for i, k := range x.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			format(b, x.vals[k])
		}
		b.WriteString("}")
	}
}

func formatSeq(b *strings.Builder, open, close string, vs []Value) {
	b.WriteString(open)
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, v)
	}
	b.WriteString(close)
}
