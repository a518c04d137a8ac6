package scripttest

import (
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
	"github.com/fxamacker/cbor/v2"
)

// FuncsModule holds free functions: scalar transforms, a multi-return and a
// model-carrying row transform.
func FuncsModule() *script.Module {
	return script.NewModule(Funcs).
		Def("tenTimes", script.Sig("x"), func(c *script.Call) (any, error) {
			switch x := c.Args.Value("x").(type) {
			case value.Int:
				return x * 10, nil
			case value.Float:
				return x * 10, nil
			}
			return nil, script.Raise("TypeError", "unsupported operand type for *")
		}).
		Def("logger", noArgs(), func(*script.Call) (any, error) {
			return "called", nil
		}).
		Def("twoLogger", noArgs(), func(*script.Call) (any, error) {
			return script.Return("called1", "called2"), nil
		}).
		Def("plusSuffix", script.Sig("s"), func(c *script.Call) (any, error) {
			s, err := c.Args.String("s")
			if err != nil {
				return nil, err
			}
			return s + "_through_script", nil
		}).
		Def("loadModel", script.Sig("row"), loadModel).
		Def("dict", script.Sig("arg"), func(c *script.Call) (any, error) {
			arg, err := c.Args.Map("arg")
			if err != nil {
				return nil, err
			}
			out := ""
			for _, k := range []string{"string", "int", "byte"} {
				v, ok := arg.Get(k)
				if !ok {
					return nil, script.Raise("KeyError", "'%s'", k)
				}
				out += script.Str(v)
			}
			return out, nil
		})
}

// loadModel reads the row's opaque model (its own CBOR string encoding),
// seeds it with "TEST" when empty and appends "_re" otherwise.
func loadModel(c *script.Call) (any, error) {
	row, err := c.Args.Map("row")
	if err != nil {
		return nil, err
	}
	raw, ok := row.Get("model")
	if !ok {
		return nil, script.Raise("KeyError", "'model'")
	}
	blob, err := value.AsBytes(raw)
	if err != nil {
		return nil, err
	}

	var model string
	if len(blob) == 0 {
		model = "TEST"
	} else {
		if err := cbor.Unmarshal(blob, &model); err != nil {
			return nil, script.Raise("UnpicklingError", "%v", err)
		}
		model += "_re"
	}
	pic, err := cbor.Marshal(model)
	if err != nil {
		return nil, err
	}
	return value.NewMap().Set("model", value.Bytes(pic)).Set("log", value.String("done")), nil
}
