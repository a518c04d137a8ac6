package value

import (
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/chazu/scriptbridge/errs"
)

// GoTuple is the host spelling of a fixed tuple of heterogeneous values.
// FromGo converts it to a Tuple rather than an Array.
type GoTuple []any

// Marshaler is implemented by host types with their own conversion.
type Marshaler interface {
	MarshalValue() (Value, error)
}

// Unmarshaler is implemented by host types that decode themselves.
type Unmarshaler interface {
	UnmarshalValue(Value) error
}

var (
	valueType       = reflect.TypeOf((*Value)(nil)).Elem()
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
	timeType        = reflect.TypeOf(time.Time{})
	mapPtrType      = reflect.TypeOf((*Map)(nil))
	bytesType       = reflect.TypeOf([]byte(nil))
	goTupleType     = reflect.TypeOf(GoTuple(nil))
)

// FromGo converts a host value to a Value.
//
// Scalars map one to one; []byte becomes Bytes and is never decoded as
// text; slices and arrays become Array; GoTuple becomes Tuple; maps with
// string keys become Map in sorted key order; structs become Map in field
// order. Channels, functions, complex numbers and maps with non-string keys
// are a TypeMismatch. uint values above MaxInt64 are a RangeError.
func FromGo(x any) (Value, error) {
	if x == nil {
		return Null{}, nil
	}
	if v, ok := x.(Value); ok {
		if m, isMap := v.(*Map); isMap && m == nil {
			return Null{}, nil
		}
		return v, nil
	}
	switch t := x.(type) {
	case bool:
		return Bool(t), nil
	case int:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(cloneBytes(t)), nil
	case time.Time:
		return NewTimestamp(t)
	case GoTuple:
		out := make(Tuple, len(t))
		for i, e := range t {
			v, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case Marshaler:
		return t.MarshalValue()
	}
	return fromReflect(reflect.ValueOf(x))
}

// MustFromGo is FromGo for values known to convert, typically literals in
// tests and fixtures.
func MustFromGo(x any) Value {
	v, err := FromGo(x)
	if err != nil {
		panic(err)
	}
	return v
}

// FromResults converts a host multi-return. One result converts as itself;
// zero results are Null; several results become a Tuple with one element
// per result.
func FromResults(results ...any) (Value, error) {
	switch len(results) {
	case 0:
		return Null{}, nil
	case 1:
		return FromGo(results[0])
	}
	return FromGo(GoTuple(results))
}

func fromReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null{}, nil
	}
	t := rv.Type()
	if t.Implements(marshalerType) && (rv.Kind() != reflect.Pointer || !rv.IsNil()) {
		return rv.Interface().(Marshaler).MarshalValue()
	}
	if t.Implements(valueType) && (rv.Kind() != reflect.Interface || !rv.IsNil()) {
		return FromGo(rv.Interface())
	}
	switch t {
	case timeType:
		return NewTimestamp(rv.Interface().(time.Time))
	case goTupleType:
		return FromGo(rv.Interface())
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, errs.New(errs.RangeError, "", "%d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return fromReflect(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			if t.Elem().Kind() == reflect.Uint8 {
				return Bytes{}, nil
			}
			return Array{}, nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return Bytes(cloneBytes(rv.Bytes())), nil
		}
		return fromSeq(rv)
	case reflect.Array:
		return fromSeq(rv)
	case reflect.Map:
		return fromMap(rv)
	case reflect.Struct:
		return fromStruct(rv)
	}
	return nil, errs.New(errs.TypeMismatch, "", "no conversion for host type %s", t)
}

func fromSeq(rv reflect.Value) (Value, error) {
	out := make(Array, rv.Len())
	for i := range out {
		v, err := fromReflect(rv.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fromMap(rv reflect.Value) (Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, errs.New(errs.TypeMismatch, "", "map key type %s is not string", rv.Type().Key())
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	m := NewMap()
	for _, k := range keys {
		v, err := fromReflect(rv.MapIndex(k))
		if err != nil {
			return nil, err
		}
		m.Set(k.String(), v)
	}
	return m, nil
}

func fromStruct(rv reflect.Value) (Value, error) {
	m := NewMap()
	for _, f := range structFields(rv.Type()) {
		v, err := fromReflect(rv.Field(f.index))
		if err != nil {
			return nil, err
		}
		m.Set(f.name, v)
	}
	return m, nil
}

type field struct {
	name  string
	index int
}

// structFields lists exported fields in declaration order. The `value`
// tag renames a field; `value:"-"` skips it.
func structFields(t reflect.Type) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("value"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		out = append(out, field{name: name, index: i})
	}
	return out
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ToGo converts v to plain host values: nil, bool, int64, float64, string,
// []byte, time.Time, []any (Array and Tuple), map[string]any and Handle.
// Map order is lost; use AsMap to keep it.
func ToGo(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case String:
		return string(x)
	case Bytes:
		return cloneBytes(x)
	case Timestamp:
		return x.Time()
	case Handle:
		return x
	case Array:
		return toGoSeq(x)
	case Tuple:
		return toGoSeq(x)
	case *Map:
		out := make(map[string]any, x.Len())
		x.Range(func(k string, e Value) bool {
			out[k] = ToGo(e)
			return true
		})
		return out
	}
	return nil
}

func toGoSeq(vs []Value) []any {
	out := make([]any, len(vs))
	for i, e := range vs {
		out[i] = ToGo(e)
	}
	return out
}
