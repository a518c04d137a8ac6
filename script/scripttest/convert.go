package scripttest

import (
	"time"
	"unicode/utf8"

	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
)

// testTZ is the +09:03 zone used by return_timestamp_with_tz.
var testTZ = time.FixedZone("TEST", 9*3600+3*60)

// ToHostModule returns script values of every shape to the host.
func ToHostModule() *script.Module {
	failureTest := script.NewClass("FailureTest", nil)

	ret := func(v any) script.Func {
		return func(*script.Call) (any, error) { return v, nil }
	}
	return script.NewModule(ToHost).
		AddClass(failureTest).
		Def("return_true", noArgs(), ret(true)).
		Def("return_false", noArgs(), ret(false)).
		Def("return_int", noArgs(), ret(123)).
		Def("return_float", noArgs(), ret(1.0)).
		Def("return_string", noArgs(), ret("ABC")).
		Def("return_unicode", noArgs(), ret("hello")).
		Def("return_bytearray", noArgs(), func(*script.Call) (any, error) {
			return []byte("abcdefg"), nil
		}).
		Def("return_array", noArgs(), func(*script.Call) (any, error) {
			return []any{1, 2, map[string]any{"key": 3}}, nil
		}).
		Def("return_map", noArgs(), func(*script.Call) (any, error) {
			return map[string]any{"key1": 123, "key2": "str"}, nil
		}).
		Def("return_nested_map", noArgs(), func(*script.Call) (any, error) {
			return map[string]any{"key1": map[string]any{"key2": 123}}, nil
		}).
		Def("return_none", noArgs(), ret(nil)).
		Def("return_timestamp", noArgs(), func(*script.Call) (any, error) {
			return value.NaiveTimestamp(time.Date(2015, 4, 1, 14, 27, 0, 500*1000*1000, time.UTC))
		}).
		Def("return_timestamp_with_tz", noArgs(), func(*script.Call) (any, error) {
			return time.Date(2015, 4, 1, 14, 27, 0, 500*1000*1000, testTZ), nil
		}).
		Def("return_onetuple", noArgs(), func(*script.Call) (any, error) {
			return value.GoTuple{"a", map[string]any{"key1": 1}, []any{1, 2}}, nil
		}).
		Def("return_astuple", noArgs(), func(*script.Call) (any, error) {
			return script.Return("a", map[string]any{"key1": 1}, []any{1, 2}), nil
		}).
		Def("return_object", noArgs(), func(*script.Call) (any, error) {
			return failureTest.Construct(nil, nil)
		})
}

// FromHostModule reads host values on the script side.
func FromHostModule() *script.Module {
	return script.NewModule(FromHost).
		Def("from_host", script.Sig("arg"), func(c *script.Call) (any, error) {
			arg, err := c.Args.Map("arg")
			if err != nil {
				return nil, err
			}
			ret := ""
			for i, k := range []string{"string", "int", "float", "byte", "bool", "null"} {
				v, ok := arg.Get(k)
				if !ok {
					return nil, script.Raise("KeyError", "'%s'", k)
				}
				if i > 0 {
					ret += "_"
				}
				ret += script.Str(v)
			}
			arr, ok := arg.Get("array")
			if !ok {
				return nil, script.Raise("KeyError", "'array'")
			}
			elems, err := value.AsArray(arr)
			if err != nil {
				return nil, err
			}
			for _, e := range elems {
				ret += "_" + script.Str(e)
			}
			return ret, nil
		}).
		Def("from_host_tostr", script.Sig("arg"), func(c *script.Call) (any, error) {
			return script.Str(c.Args.Value("arg")), nil
		}).
		Def("from_host_toutf8", script.Sig("arg"), func(c *script.Call) (any, error) {
			b, err := c.Args.Bytes("arg")
			if err != nil {
				return nil, err
			}
			if !utf8.Valid(b) {
				return nil, script.Raise("UnicodeDecodeError", "'utf-8' codec can't decode bytes")
			}
			return string(b), nil
		}).
		Def("from_host_mapinmap", script.Sig("arg"), func(c *script.Call) (any, error) {
			arg, err := c.Args.Map("arg")
			if err != nil {
				return nil, err
			}
			s, _ := arg.Get("string")
			inner, _ := arg.Get("map")
			im, err := value.AsMap(inner)
			if err != nil {
				return nil, err
			}
			instr, _ := im.Get("instr")
			ret := script.Str(s) + "_" + script.Str(instr)
			arr, _ := arg.Get("array")
			elems, err := value.AsArray(arr)
			if err != nil {
				return nil, err
			}
			for _, e := range elems {
				ret += "_" + script.Str(e)
			}
			return ret, nil
		}).
		Def("from_host_arrayinmap", script.Sig("arg"), func(c *script.Call) (any, error) {
			arg, err := c.Args.Array("arg")
			if err != nil {
				return nil, err
			}
			if len(arg) != 2 {
				return nil, script.Raise("IndexError", "list index out of range")
			}
			first, err := value.AsArray(arg[0])
			if err != nil || len(first) != 2 {
				return nil, script.Raise("TypeError", "expected a pair")
			}
			second, err := value.AsMap(arg[1])
			if err != nil {
				return nil, err
			}
			m, _ := second.Get("map")
			return script.Str(first[0]) + "_" + script.Str(first[1]) + "_" + script.Str(m), nil
		})
}
