package scripttest

import (
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
	"github.com/fxamacker/cbor/v2"
)

type meanModel struct {
	N   int64   `cbor:"n"`
	Sum float64 `cbor:"sum"`
}

// MLModule holds MeanClassifier: rows {"x": number, "label": 0|1} are
// classified as 1 when x is at least the running mean of x. fit reports
// loss (misses) and accuracy (hits) summed over the batch, plus the
// serialized model.
func MLModule() *script.Module {
	cls := script.NewClass("MeanClassifier", nil)

	get := func(self *script.Instance) (meanModel, error) {
		n, err := self.Get("n")
		if err != nil {
			return meanModel{}, err
		}
		sum, err := self.Get("sum")
		if err != nil {
			return meanModel{}, err
		}
		return meanModel{N: int64(n.(value.Int)), Sum: float64(sum.(value.Float))}, nil
	}
	put := func(self *script.Instance, m meanModel) {
		self.Set("n", value.Int(m.N))
		self.Set("sum", value.Float(m.Sum))
	}
	predict := func(m meanModel, x float64) int64 {
		mean := 0.0
		if m.N > 0 {
			mean = m.Sum / float64(m.N)
		}
		if x >= mean {
			return 1
		}
		return 0
	}

	cls.
		StaticMethod("create", noArgs().WithKwargs(), func(*script.Call) (any, error) {
			self := cls.New()
			put(self, meanModel{})
			return self, nil
		}).
		Method("fit", script.Sig("rows"), func(c *script.Call) (any, error) {
			rows, err := c.Args.Array("rows")
			if err != nil {
				return nil, err
			}
			m, err := get(c.Self)
			if err != nil {
				return nil, err
			}
			var loss, acc float64
			for _, r := range rows {
				row, err := value.AsMap(r)
				if err != nil {
					return nil, err
				}
				xv, _ := row.Get("x")
				x, err := value.AsFloat(xv)
				if err != nil {
					return nil, err
				}
				lv, _ := row.Get("label")
				label, err := value.AsInt(lv)
				if err != nil {
					return nil, err
				}
				if predict(m, x) == label {
					acc++
				} else {
					loss++
				}
				m.N++
				m.Sum += x
			}
			put(c.Self, m)
			blob, err := cbor.Marshal(m)
			if err != nil {
				return nil, err
			}
			return value.NewMap().
				Set("loss", value.Float(loss)).
				Set("accuracy", value.Float(acc)).
				Set(value.ModelField, value.Bytes(blob)), nil
		}).
		Method("predict", script.Sig("x"), func(c *script.Call) (any, error) {
			x, err := c.Args.Float("x")
			if err != nil {
				return nil, err
			}
			m, err := get(c.Self)
			if err != nil {
				return nil, err
			}
			return predict(m, x), nil
		}).
		Method("save", noArgs(), func(c *script.Call) (any, error) {
			m, err := get(c.Self)
			if err != nil {
				return nil, err
			}
			blob, err := cbor.Marshal(m)
			if err != nil {
				return nil, err
			}
			return value.Bytes(blob), nil
		}).
		ClassMethod("load", script.Sig("blob").WithKwargs(), func(c *script.Call) (any, error) {
			blob, err := c.Args.Bytes("blob")
			if err != nil {
				return nil, err
			}
			var m meanModel
			if len(blob) > 0 {
				if err := cbor.Unmarshal(blob, &m); err != nil {
					return nil, script.Raise("UnpicklingError", "%v", err)
				}
			}
			self := c.Class.New()
			put(self, m)
			return self, nil
		})

	return script.NewModule(ML).AddClass(cls)
}
