package scripttest

import (
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
)

// NewInstanceModule holds the instantiation fixtures: plain constructors,
// static and class-level factories, class attribute override and a
// **kwargs-taking constructor.
func NewInstanceModule() *script.Module {
	m := script.NewModule(NewInstance)

	// Sample accumulates into a.
	sample := script.NewClass("Sample", nil).
		Attr("a", value.String("")).
		Init(noArgs(), func(c *script.Call) (any, error) {
			c.Self.Set("a", value.String("initialized"))
			return nil, nil
		}).
		Method("logger", script.Sig("s"), func(c *script.Call) (any, error) {
			s, err := c.Args.String("s")
			if err != nil {
				return nil, err
			}
			a, err := str(c, "a")
			if err != nil {
				return nil, err
			}
			a += "_" + s
			c.Self.Set("a", value.String(a))
			return a, nil
		})

	sample2 := script.NewClass("Sample2", nil).
		Init(script.Sig("s"), func(c *script.Call) (any, error) {
			c.Self.Set("a", c.Args.Value("s"))
			return nil, nil
		}).
		Method("get_a", noArgs(), func(c *script.Call) (any, error) {
			return c.Self.Get("a")
		})

	sample3 := script.NewClass("Sample3", nil).
		Attr("v", value.String("class_value"))
	sample3.
		StaticMethod("get_static_value", noArgs(), func(c *script.Call) (any, error) {
			v, _ := sample3.LookupAttr("v")
			return v, nil
		}).
		StaticMethod("get_instance", noArgs(), func(c *script.Call) (any, error) {
			ins := sample3.New()
			ins.Set("val1", value.String("test1"))
			return ins, nil
		}).
		ClassMethod("get_class_value", noArgs(), func(c *script.Call) (any, error) {
			v, _ := c.Class.LookupAttr("v")
			return v, nil
		}).
		Method("get_instance_str", noArgs(), func(c *script.Call) (any, error) {
			v, err := str(c, "val1")
			if err != nil {
				return nil, err
			}
			return "instance method " + v, nil
		}).
		StaticMethod("get_instance2", script.Sig("a").Default("b", value.Int(5)).WithKwargs(), func(c *script.Call) (any, error) {
			c1, err := c.Args.Kw.Get("v1")
			if err != nil {
				return nil, err
			}
			ins := sample3.New()
			ins.Set("a", c.Args.Value("a"))
			ins.Set("b", c.Args.Value("b"))
			ins.Set("c1", c1)
			return ins, nil
		}).
		ClassMethod("create", noArgs().WithKwargs(), func(c *script.Call) (any, error) {
			ins := c.Class.New()
			for _, k := range c.Args.Kw.Keys() {
				v, _ := c.Args.Kw.Get(k)
				ins.Set(k, v)
			}
			return ins, nil
		}).
		Method("confirm", noArgs(), confirmABC1).
		Method("keep_child", noArgs(), func(c *script.Call) (any, error) {
			c.Self.Set("child", sample3.New())
			return nil, nil
		})

	// SampleWithBag is get_instance2 as a plain constructor.
	sampleWithBag := script.NewClass("SampleWithBag", nil).
		Init(script.Sig("a").Default("b", value.Int(5)).WithKwargs(), func(c *script.Call) (any, error) {
			c1, err := c.Args.Kw.Get("v1")
			if err != nil {
				return nil, err
			}
			c.Self.Set("a", c.Args.Value("a"))
			c.Self.Set("b", c.Args.Value("b"))
			c.Self.Set("c1", c1)
			return nil, nil
		}).
		Method("confirm", noArgs(), confirmABC1)

	// ChildClass overrides v; get_class_value resolved through it sees the
	// override.
	childClass := script.NewClass("ChildClass", sample3).
		Attr("v", value.String("instance_value"))

	sampleForKwd := script.NewClass("SampleForKwd", nil).
		Init(script.Sig("a").Default("b", value.Int(5)).WithKwargs(), func(c *script.Call) (any, error) {
			c.Self.Set("a", c.Args.Value("a"))
			c.Self.Set("b", c.Args.Value("b"))
			for _, k := range []string{"c", "d", "e"} {
				c.Self.Set(k, c.Args.Kw.GetOr(k, value.String("")))
			}
			c.Self.Set("kwargs", c.Args.Kw.Map())
			return nil, nil
		}).
		Method("confirm_init", noArgs(), func(c *script.Call) (any, error) {
			out := ""
			for i, k := range []string{"a", "b", "c", "d", "e"} {
				s, err := str(c, k)
				if err != nil {
					return nil, err
				}
				if i > 0 {
					out += "_"
				}
				out += s
			}
			return out, nil
		}).
		Method("kwargs", noArgs(), func(c *script.Call) (any, error) {
			return c.Self.Get("kwargs")
		})

	// DivisionTest fails at terminate with a division by zero.
	divisionTest := script.NewClass("DivisionTest", nil).
		Init(noArgs(), func(c *script.Call) (any, error) {
			c.Self.Set("numerator", value.Int(1))
			c.Self.Set("denominator", value.Int(0))
			return nil, nil
		}).
		Method("terminate", noArgs(), func(c *script.Call) (any, error) {
			n, err := c.Self.Get("numerator")
			if err != nil {
				return nil, err
			}
			d, err := c.Self.Get("denominator")
			if err != nil {
				return nil, err
			}
			return n.(value.Int) / d.(value.Int), nil
		}).
		Method("ping", noArgs(), func(c *script.Call) (any, error) {
			return "pong", nil
		})

	return m.
		AddClass(sample).
		AddClass(sample2).
		AddClass(sample3).
		AddClass(childClass).
		AddClass(sampleWithBag).
		AddClass(sampleForKwd).
		AddClass(divisionTest)
}

func confirmABC1(c *script.Call) (any, error) {
	a, err := str(c, "a")
	if err != nil {
		return nil, err
	}
	b, err := str(c, "b")
	if err != nil {
		return nil, err
	}
	c1, err := str(c, "c1")
	if err != nil {
		return nil, err
	}
	return a + "_" + b + "_" + c1, nil
}
