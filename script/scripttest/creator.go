package scripttest

import (
	"fmt"

	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
	"github.com/fxamacker/cbor/v2"
)

// persisted is PersistTest's own save format. The bridge never looks
// inside it.
type persisted struct {
	Label string   `cbor:"label"`
	Count int64    `cbor:"count"`
	Log   []string `cbor:"log"`
}

// CreatorModule holds state classes built through a "create" factory, and
// PersistTest which also saves and loads itself.
func CreatorModule() *script.Module {
	testClass := script.NewClass("TestClass", nil)
	testClass.
		StaticMethod("create", noArgs(), func(*script.Call) (any, error) {
			return testClass.New(), nil
		}).
		Method("write", script.Sig("value"), func(c *script.Call) (any, error) {
			return fmt.Sprintf("called! arg is \"%s\"", script.Str(c.Args.Value("value"))), nil
		})

	testClass2 := script.NewClass("TestClass2", nil)
	testClass2.
		StaticMethod("create", script.Sig("params"), func(c *script.Call) (any, error) {
			params, err := c.Args.Map("params")
			if err != nil {
				return nil, err
			}
			self := testClass2.New()
			for _, k := range []string{"v1", "v2"} {
				v, ok := params.Get(k)
				if !ok {
					return nil, script.Raise("KeyError", "'%s'", k)
				}
				self.Set(k, v)
			}
			return self, nil
		}).
		Method("confirm", noArgs(), func(c *script.Call) (any, error) {
			v1, err := str(c, "v1")
			if err != nil {
				return nil, err
			}
			v2, err := str(c, "v2")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("constructor init arg is v1=%s, v2=%s", v1, v2), nil
		})

	testClass3 := script.NewClass("TestClass3", nil)
	testClass3.
		StaticMethod("create", script.Sig("a").Default("b", value.String("b")).WithKwargs(), func(c *script.Call) (any, error) {
			self := testClass3.New()
			self.Set("a", c.Args.Value("a"))
			self.Set("b", c.Args.Value("b"))
			self.Set("c", c.Args.Kw.Map())
			return self, nil
		}).
		Method("confirm", noArgs(), func(c *script.Call) (any, error) {
			a, err := str(c, "a")
			if err != nil {
				return nil, err
			}
			b, err := str(c, "b")
			if err != nil {
				return nil, err
			}
			cv, err := c.Self.Get("c")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("constructor init arg is a=%s, b=%s, c=%s", a, b, script.Repr(cv)), nil
		})

	return script.NewModule(Creator).
		AddClass(testClass).
		AddClass(testClass2).
		AddClass(testClass3).
		AddClass(persistTestClass())
}

// persistTestClass counts writes and keeps their rendering. load with an
// empty blob yields a fresh instance flagged as not restored.
func persistTestClass() *script.Class {
	cls := script.NewClass("PersistTest", nil)

	restore := func(self *script.Instance, p persisted, loaded bool) {
		log := make(value.Array, len(p.Log))
		for i, s := range p.Log {
			log[i] = value.String(s)
		}
		self.Set("label", value.String(p.Label))
		self.Set("count", value.Int(p.Count))
		self.Set("log", log)
		self.Set("loaded", value.Bool(loaded))
	}

	return cls.
		StaticMethod("create", noArgs().WithKwargs(), func(c *script.Call) (any, error) {
			label, err := value.AsString(c.Args.Kw.GetOr("label", value.String("")))
			if err != nil {
				return nil, err
			}
			self := cls.New()
			restore(self, persisted{Label: label}, false)
			return self, nil
		}).
		Method("write", script.Sig("value"), func(c *script.Call) (any, error) {
			n, err := c.Self.Get("count")
			if err != nil {
				return nil, err
			}
			log, err := c.Self.Get("log")
			if err != nil {
				return nil, err
			}
			prev := log.(value.Array)
			next := make(value.Array, len(prev), len(prev)+1)
			copy(next, prev)
			count := n.(value.Int) + 1
			c.Self.Set("count", count)
			c.Self.Set("log", append(next, value.String(script.Str(c.Args.Value("value")))))
			return count, nil
		}).
		Method("count", noArgs(), func(c *script.Call) (any, error) {
			return c.Self.Get("count")
		}).
		Method("log", noArgs(), func(c *script.Call) (any, error) {
			return c.Self.Get("log")
		}).
		Method("loaded", noArgs(), func(c *script.Call) (any, error) {
			return c.Self.Get("loaded")
		}).
		Method("label", noArgs(), func(c *script.Call) (any, error) {
			return c.Self.Get("label")
		}).
		Method("save", noArgs(), func(c *script.Call) (any, error) {
			var p persisted
			for name, dst := range map[string]any{"label": &p.Label, "count": &p.Count, "log": &p.Log} {
				v, err := c.Self.Get(name)
				if err != nil {
					return nil, err
				}
				if err := value.Decode(v.(value.Value), dst); err != nil {
					return nil, err
				}
			}
			blob, err := cbor.Marshal(p)
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
			self := c.Class.New()
			if len(blob) == 0 {
				restore(self, persisted{}, false)
				return self, nil
			}
			var p persisted
			if err := cbor.Unmarshal(blob, &p); err != nil {
				return nil, script.Raise("UnpicklingError", "%v", err)
			}
			restore(self, p, true)
			return self, nil
		})
}
