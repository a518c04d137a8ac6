// Package script models the embedded dynamic runtime the bridge drives.
//
// There is no interpreter. Modules, classes and callables are declared in Go
// as explicit tables: a Class carries its class-level attributes, its methods
// and a single base class, and attribute lookup walks the resolution order
// (most-derived first). Callables declare their parameters with a Signature
// so that binding of positional arguments, defaults and a **kwargs-style bag
// is explicit and checked.
//
// Nothing in this package is safe for concurrent mutation of the same
// instance or class. The bridge runs every script-side operation on one
// executor goroutine per session.
package script

import (
	"sort"
	"sync"

	"github.com/chazu/scriptbridge/errs"
)

// ---------------------------------------------------------------------------
// Runtime: module table
// ---------------------------------------------------------------------------

// Runtime is the set of importable modules.
type Runtime struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRuntime creates a runtime with the given modules registered.
func NewRuntime(mods ...*Module) *Runtime {
	r := &Runtime{modules: make(map[string]*Module)}
	for _, m := range mods {
		r.Register(m)
	}
	return r
}

// Register adds a module. Returns the previous module with this name, or nil.
func (r *Runtime) Register(m *Module) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.modules[m.Name]
	r.modules[m.Name] = m
	return old
}

// Import returns the named module, or a NotFound error.
func (r *Runtime) Import(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "", "no module named %q", name)
	}
	return m, nil
}

// Modules returns the registered module names, sorted.
func (r *Runtime) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupClass imports module and returns its class.
func (r *Runtime) LookupClass(module, class string) (*Class, error) {
	m, err := r.Import(module)
	if err != nil {
		return nil, err
	}
	return m.Class(class)
}

// LookupFunc imports module and returns its free function.
func (r *Runtime) LookupFunc(module, fn string) (*Method, error) {
	m, err := r.Import(module)
	if err != nil {
		return nil, err
	}
	return m.Func(fn)
}

// ---------------------------------------------------------------------------
// Module
// ---------------------------------------------------------------------------

// Module is a namespace of classes and free functions.
type Module struct {
	Name    string
	classes map[string]*Class
	funcs   map[string]*Method
}

func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		classes: make(map[string]*Class),
		funcs:   make(map[string]*Method),
	}
}

// AddClass places c in the module.
func (m *Module) AddClass(c *Class) *Module {
	c.module = m.Name
	m.classes[c.Name] = c
	return m
}

// Def declares a free function.
func (m *Module) Def(name string, sig Signature, fn Func) *Module {
	m.funcs[name] = &Method{Name: name, Kind: Static, Sig: sig, Fn: fn, owner: m.Name}
	return m
}

// Class returns the named class, or a NotFound error.
func (m *Module) Class(name string) (*Class, error) {
	c, ok := m.classes[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "", "module %q has no class %q", m.Name, name)
	}
	return c, nil
}

// Func returns the named free function, or a NotFound error.
func (m *Module) Func(name string) (*Method, error) {
	f, ok := m.funcs[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "", "module %q has no function %q", m.Name, name)
	}
	return f, nil
}

// ClassNames returns the module's class names, sorted.
func (m *Module) ClassNames() []string {
	return sortedKeys(m.classes)
}

// FuncNames returns the module's function names, sorted.
func (m *Module) FuncNames() []string {
	return sortedKeys(m.funcs)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
