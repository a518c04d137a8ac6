package value

import (
	"reflect"

	"github.com/chazu/scriptbridge/errs"
)

// Decode stores v into the host value pointed to by out.
//
// Numeric targets are range checked: an Int that does not fit the target
// is a RangeError, never truncated, and a Float is never stored into an
// integer. String and Bytes do not convert into each other. Null stores
// the zero value into pointers, interfaces, slices and maps and is a
// TypeMismatch for anything else.
func Decode(v Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errs.New(errs.TypeMismatch, "decode", "target must be a non-nil pointer, got %T", out)
	}
	return errs.WithOp("decode", decodeInto(v, rv.Elem()))
}

func decodeInto(v Value, dst reflect.Value) error {
	if v == nil {
		v = Null{}
	}
	t := dst.Type()

	if dst.CanAddr() && reflect.PointerTo(t).Implements(unmarshalerType) {
		return dst.Addr().Interface().(Unmarshaler).UnmarshalValue(v)
	}
	switch t {
	case valueType:
		dst.Set(reflect.ValueOf(v))
		return nil
	case timeType:
		ts, err := AsTimestamp(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(ts.Time()))
		return nil
	case mapPtrType:
		if IsNull(v) {
			dst.Set(reflect.Zero(t))
			return nil
		}
		m, err := AsMap(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(m.Clone()))
		return nil
	}
	if t.Implements(valueType) && t.Kind() != reflect.Interface {
		if reflect.TypeOf(v) != t {
			return mismatchType(t, v)
		}
		dst.Set(reflect.ValueOf(v))
		return nil
	}

	if IsNull(v) {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			dst.Set(reflect.Zero(t))
			return nil
		}
		return mismatchType(t, v)
	}

	switch dst.Kind() {
	case reflect.Pointer:
		elem := reflect.New(t.Elem())
		if err := decodeInto(v, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return mismatchType(t, v)
		}
		if g := ToGo(v); g != nil {
			dst.Set(reflect.ValueOf(g))
		}
		return nil
	case reflect.Bool:
		b, err := AsBool(v)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := AsInt(v)
		if err != nil {
			return err
		}
		if dst.OverflowInt(i) {
			return errs.New(errs.RangeError, "", "%d overflows %s", i, t)
		}
		dst.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, err := AsInt(v)
		if err != nil {
			return err
		}
		if i < 0 || dst.OverflowUint(uint64(i)) {
			return errs.New(errs.RangeError, "", "%d overflows %s", i, t)
		}
		dst.SetUint(uint64(i))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := AsFloat(v)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return errs.New(errs.RangeError, "", "%g overflows %s", f, t)
		}
		dst.SetFloat(f)
		return nil
	case reflect.String:
		s, err := AsString(v)
		if err != nil {
			return err
		}
		dst.SetString(s)
		return nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			b, err := AsBytes(v)
			if err != nil {
				return err
			}
			dst.SetBytes(cloneBytes(b))
			return nil
		}
		seq, err := sequence(v)
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(t, len(seq), len(seq))
		for i, e := range seq {
			if err := decodeInto(e, out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		seq, err := sequence(v)
		if err != nil {
			return err
		}
		if len(seq) != dst.Len() {
			return errs.New(errs.TypeMismatch, "", "expected %d elements for %s, got %d", dst.Len(), t, len(seq))
		}
		for i, e := range seq {
			if err := decodeInto(e, dst.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return errs.New(errs.TypeMismatch, "", "map key type %s is not string", t.Key())
		}
		m, err := AsMap(v)
		if err != nil {
			return err
		}
		out := reflect.MakeMapWithSize(t, m.Len())
		var derr error
		m.Range(func(k string, e Value) bool {
			ev := reflect.New(t.Elem()).Elem()
			if derr = decodeInto(e, ev); derr != nil {
				return false
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
			return true
		})
		if derr != nil {
			return derr
		}
		dst.Set(out)
		return nil
	case reflect.Struct:
		m, err := AsMap(v)
		if err != nil {
			return err
		}
		for _, f := range structFields(t) {
			e, ok := m.Get(f.name)
			if !ok {
				continue
			}
			if err := decodeInto(e, dst.Field(f.index)); err != nil {
				return err
			}
		}
		return nil
	}
	return mismatchType(t, v)
}

func sequence(v Value) ([]Value, error) {
	switch x := v.(type) {
	case Array:
		return x, nil
	case Tuple:
		return x, nil
	}
	return nil, mismatch(KindArray, v)
}

func mismatchType(t reflect.Type, v Value) error {
	return errs.New(errs.TypeMismatch, "", "cannot decode %s into %s", v.Kind(), t)
}
