package script

import (
	"sort"
	"sync"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// InitMethod is the name of the constructor body.
const InitMethod = "__init__"

// MethodKind says how a method binds.
type MethodKind uint8

const (
	// InstanceMethod receives the instance as Call.Self.
	InstanceMethod MethodKind = iota
	// Static receives neither instance nor class.
	Static
	// ClassMethod receives the class it was resolved through as Call.Class.
	ClassMethod
)

func (k MethodKind) String() string {
	switch k {
	case InstanceMethod:
		return "instance method"
	case Static:
		return "staticmethod"
	case ClassMethod:
		return "classmethod"
	}
	return "unknown"
}

// Func is a script-side callable body. The returned value is converted at
// the boundary with ToValue; errors are usually produced by Raise.
type Func func(c *Call) (any, error)

// Call is what a callable body sees.
type Call struct {
	// Class is the class the callable was resolved through. For instance
	// methods it is the instance's class; for class methods it is the class
	// the caller named, which may be a subclass of the defining class.
	Class *Class
	Self  *Instance
	Args  *Bound
}

// Method is a callable attached to a class or module.
type Method struct {
	Name  string
	Kind  MethodKind
	Sig   Signature
	Fn    Func
	owner string
}

// Frame names the method in script call traces.
func (m *Method) Frame() string {
	if m.owner == "" {
		return m.Name
	}
	return m.owner + "." + m.Name
}

// Invoke binds args and kwargs and runs the body. Panics in the body become
// exceptions; exceptions get this method pushed onto their trace.
func (m *Method) Invoke(cls *Class, self *Instance, args []value.Value, kwargs *value.Map) (res any, err error) {
	b, err := m.Sig.Bind(args, kwargs)
	if err != nil {
		return nil, errs.WithOp(m.Frame(), err)
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fromPanic(r).push(m.Frame())
		}
	}()
	res, err = m.Fn(&Call{Class: cls, Self: self, Args: b})
	if err != nil {
		return nil, unwind(err, m.Frame())
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// Class is a class descriptor table entry.
type Class struct {
	Name string
	Base *Class

	module  string
	mu      sync.RWMutex
	attrs   map[string]any
	methods map[string]*Method
}

// NewClass creates a class with an optional base.
func NewClass(name string, base *Class) *Class {
	return &Class{
		Name:    name,
		Base:    base,
		attrs:   make(map[string]any),
		methods: make(map[string]*Method),
	}
}

// Module returns the name of the module the class was added to.
func (c *Class) Module() string { return c.module }

// QualName is module.Class.
func (c *Class) QualName() string {
	if c.module == "" {
		return c.Name
	}
	return c.module + "." + c.Name
}

func (c *Class) String() string { return c.QualName() }

// Attr declares a class-level attribute.
func (c *Class) Attr(name string, v any) *Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs[name] = v
	return c
}

// Init declares the constructor body.
func (c *Class) Init(sig Signature, fn Func) *Class {
	return c.def(InitMethod, InstanceMethod, sig, fn)
}

// Method declares an instance method.
func (c *Class) Method(name string, sig Signature, fn Func) *Class {
	return c.def(name, InstanceMethod, sig, fn)
}

// StaticMethod declares a static method.
func (c *Class) StaticMethod(name string, sig Signature, fn Func) *Class {
	return c.def(name, Static, sig, fn)
}

// ClassMethod declares a class method.
func (c *Class) ClassMethod(name string, sig Signature, fn Func) *Class {
	return c.def(name, ClassMethod, sig, fn)
}

func (c *Class) def(name string, kind MethodKind, sig Signature, fn Func) *Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[name] = &Method{Name: name, Kind: kind, Sig: sig, Fn: fn, owner: c.Name}
	return c
}

// MRO returns the resolution order, most-derived first.
func (c *Class) MRO() []*Class {
	var out []*Class
	for cur := c; cur != nil; cur = cur.Base {
		out = append(out, cur)
	}
	return out
}

// IsSubclassOf reports whether other is c or one of its bases.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Base {
		if cur == other {
			return true
		}
	}
	return false
}

// LookupAttr finds a class-level attribute along the MRO.
func (c *Class) LookupAttr(name string) (any, bool) {
	for cur := c; cur != nil; cur = cur.Base {
		cur.mu.RLock()
		v, ok := cur.attrs[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// SetAttr assigns a class-level attribute on c itself, shadowing any base
// definition.
func (c *Class) SetAttr(name string, v any) {
	c.Attr(name, v)
}

// LookupMethod finds a method along the MRO.
func (c *Class) LookupMethod(name string) (*Method, bool) {
	for cur := c; cur != nil; cur = cur.Base {
		cur.mu.RLock()
		m, ok := cur.methods[name]
		cur.mu.RUnlock()
		if ok {
			return m, true
		}
	}
	return nil, false
}

// New allocates an instance without running the constructor.
func (c *Class) New() *Instance {
	return &Instance{class: c, fields: make(map[string]any)}
}

// Construct allocates an instance and runs the constructor resolved along
// the MRO. A class without one accepts no arguments.
func (c *Class) Construct(args []value.Value, kwargs *value.Map) (*Instance, error) {
	inst := c.New()
	ctor, ok := c.LookupMethod(InitMethod)
	if !ok {
		if len(args) > 0 || kwargs.Len() > 0 {
			return nil, errs.New(errs.TypeMismatch, c.QualName(), "%s() takes no arguments", c.Name)
		}
		return inst, nil
	}
	if _, err := ctor.Invoke(c, inst, args, kwargs); err != nil {
		return nil, err
	}
	return inst, nil
}

// Descriptor is the inspectable shape of a class.
type Descriptor struct {
	Name    string
	Module  string
	Attrs   []string
	Methods []string
	MRO     []string
}

// Descriptor collects attribute and method names visible through the MRO.
func (c *Class) Descriptor() Descriptor {
	attrs := make(map[string]struct{})
	methods := make(map[string]struct{})
	d := Descriptor{Name: c.Name, Module: c.module}
	for _, cur := range c.MRO() {
		d.MRO = append(d.MRO, cur.Name)
		cur.mu.RLock()
		for n := range cur.attrs {
			attrs[n] = struct{}{}
		}
		for n := range cur.methods {
			methods[n] = struct{}{}
		}
		cur.mu.RUnlock()
	}
	d.Attrs = sortedKeys(attrs)
	d.Methods = sortedKeys(methods)
	return d
}

// ---------------------------------------------------------------------------
// Instance
// ---------------------------------------------------------------------------

// Instance is a live script-side object. It has no representation in the
// Value model; hosts address it through a registry handle.
type Instance struct {
	class  *Class
	fields map[string]any
}

func (i *Instance) Class() *Class { return i.class }

// Get reads an instance field, falling back to class attributes along the
// MRO. A miss raises AttributeError.
func (i *Instance) Get(name string) (any, error) {
	if v, ok := i.fields[name]; ok {
		return v, nil
	}
	if v, ok := i.class.LookupAttr(name); ok {
		return v, nil
	}
	return nil, Raise("AttributeError", "'%s' object has no attribute '%s'", i.class.Name, name)
}

// Set assigns an instance field.
func (i *Instance) Set(name string, v any) {
	i.fields[name] = v
}

// Has reports whether the field is set on the instance itself.
func (i *Instance) Has(name string) bool {
	_, ok := i.fields[name]
	return ok
}

// Fields returns the instance's own field names, sorted.
func (i *Instance) Fields() []string {
	out := make([]string, 0, len(i.fields))
	for k := range i.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Invoke calls an instance, static or class method resolved through the
// instance's class.
func (i *Instance) Invoke(name string, args []value.Value, kwargs *value.Map) (any, error) {
	m, ok := i.class.LookupMethod(name)
	if !ok {
		return nil, Raise("AttributeError", "'%s' object has no attribute '%s'", i.class.Name, name)
	}
	var self *Instance
	if m.Kind == InstanceMethod {
		self = i
	}
	return m.Invoke(i.class, self, args, kwargs)
}

// MarshalValue refuses conversion: instances cross the boundary only as
// handles.
func (i *Instance) MarshalValue() (value.Value, error) {
	return nil, errs.New(errs.UnsupportedValue, "", "%s instance has no value representation", i.class.QualName())
}
