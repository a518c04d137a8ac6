package script

import (
	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// ---------------------------------------------------------------------------
// Signature
// ---------------------------------------------------------------------------

// Param is a declared parameter.
type Param struct {
	Name       string
	Default    value.Value
	HasDefault bool
}

// Signature declares what a callable accepts.
type Signature struct {
	Params   []Param
	Variadic bool // *args: surplus positionals collect in Bound.Rest
	Kwargs   bool // **kwargs: unmatched named arguments collect in Bound.Kw
}

// Sig declares required parameters.
func Sig(names ...string) Signature {
	ps := make([]Param, len(names))
	for i, n := range names {
		ps[i] = Param{Name: n}
	}
	return Signature{Params: ps}
}

// Default adds an optional parameter.
func (s Signature) Default(name string, v value.Value) Signature {
	s.Params = append(s.Params[:len(s.Params):len(s.Params)], Param{Name: name, Default: v, HasDefault: true})
	return s
}

// WithKwargs declares a named-argument bag.
func (s Signature) WithKwargs() Signature {
	s.Kwargs = true
	return s
}

// WithVarargs declares a surplus-positional collector.
func (s Signature) WithVarargs() Signature {
	s.Variadic = true
	return s
}

func (s Signature) index(name string) int {
	for i, p := range s.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Bind matches arguments to parameters. Positionals bind in order; named
// arguments bind to declared parameters by name, and the rest go to the
// bag when one is declared. Surplus positionals without *args, unexpected
// names without a bag, and a parameter bound twice are TypeMismatch; a
// required parameter left unbound is MissingArgument.
func (s Signature) Bind(args []value.Value, kwargs *value.Map) (*Bound, error) {
	b := &Bound{sig: s, vals: make([]value.Value, len(s.Params)), set: make([]bool, len(s.Params))}
	if s.Kwargs {
		b.Kw = &Kwargs{m: value.NewMap()}
	}

	for i, a := range args {
		if i < len(s.Params) {
			b.vals[i], b.set[i] = orNull(a), true
			continue
		}
		if !s.Variadic {
			return nil, errs.New(errs.TypeMismatch, "", "takes %d positional arguments but %d were given", len(s.Params), len(args))
		}
		b.Rest = append(b.Rest, orNull(a))
	}

	var err error
	kwargs.Range(func(k string, v value.Value) bool {
		i := s.index(k)
		switch {
		case i >= 0 && b.set[i]:
			err = errs.New(errs.TypeMismatch, "", "got multiple values for argument '%s'", k)
		case i >= 0:
			b.vals[i], b.set[i] = v, true
		case s.Kwargs:
			b.Kw.m.Set(k, v)
		default:
			err = errs.New(errs.TypeMismatch, "", "got an unexpected keyword argument '%s'", k)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	for i, p := range s.Params {
		if b.set[i] {
			continue
		}
		if !p.HasDefault {
			return nil, errs.New(errs.MissingArgument, "", "missing required argument '%s'", p.Name)
		}
		b.vals[i] = orNull(p.Default)
	}
	return b, nil
}

func orNull(v value.Value) value.Value {
	if v == nil {
		return value.Null{}
	}
	return v
}

// ---------------------------------------------------------------------------
// Bound arguments
// ---------------------------------------------------------------------------

// Bound is the result of binding a call's arguments.
type Bound struct {
	sig  Signature
	vals []value.Value
	set  []bool

	Rest []value.Value
	Kw   *Kwargs // nil unless the signature declares a bag
}

// Value returns the bound parameter. Asking for an undeclared parameter is
// a programming error in the callee and panics.
func (b *Bound) Value(name string) value.Value {
	i := b.sig.index(name)
	if i < 0 {
		panic("script: no parameter named " + name)
	}
	return b.vals[i]
}

func (b *Bound) String(name string) (string, error) {
	s, err := value.AsString(b.Value(name))
	return s, argErr(name, err)
}

func (b *Bound) Int(name string) (int64, error) {
	i, err := value.AsInt(b.Value(name))
	return i, argErr(name, err)
}

func (b *Bound) Float(name string) (float64, error) {
	f, err := value.AsFloat(b.Value(name))
	return f, argErr(name, err)
}

func (b *Bound) Bytes(name string) ([]byte, error) {
	p, err := value.AsBytes(b.Value(name))
	return p, argErr(name, err)
}

func (b *Bound) Array(name string) (value.Array, error) {
	a, err := value.AsArray(b.Value(name))
	return a, argErr(name, err)
}

func (b *Bound) Map(name string) (*value.Map, error) {
	m, err := value.AsMap(b.Value(name))
	return m, argErr(name, err)
}

func argErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return errs.New(errs.KindOf(err), "", "argument '%s': %v", name, err)
}

// ---------------------------------------------------------------------------
// Kwargs bag
// ---------------------------------------------------------------------------

// Kwargs is the **kwargs-style bag of unmatched named arguments.
type Kwargs struct {
	m *value.Map
}

// Get reads key. An absent key is MissingArgument, never a default.
func (k *Kwargs) Get(key string) (value.Value, error) {
	v, ok := k.m.Get(key)
	if !ok {
		return nil, errs.New(errs.MissingArgument, "", "kwargs has no key '%s'", key)
	}
	return v, nil
}

// GetOr reads key, returning the callee's own default when absent.
func (k *Kwargs) GetOr(key string, def value.Value) value.Value {
	if v, ok := k.m.Get(key); ok {
		return v
	}
	return def
}

func (k *Kwargs) Has(key string) bool { return k.m.Has(key) }

func (k *Kwargs) Len() int { return k.m.Len() }

// Keys returns the bag's keys in call order.
func (k *Kwargs) Keys() []string { return k.m.Keys() }

// Map returns a copy of the bag.
func (k *Kwargs) Map() *value.Map { return k.m.Clone() }
