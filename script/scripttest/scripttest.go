// Package scripttest provides script modules used as fixtures by the bridge,
// server and state tests, and by bridged -fixtures.
//
// Every constructor returns fresh modules: class attributes are mutable, so
// runtimes must not share them.
package scripttest

import (
	"github.com/chazu/scriptbridge/script"
)

// Module names.
const (
	NewInstance = "test_new_instance"
	ToHost       = "test_to_host"
	FromHost       = "test_from_host"
	Funcs       = "test_funcs"
	Creator     = "test_creator"
	ML          = "test_ml"
)

// Modules returns a fresh copy of every fixture module.
func Modules() []*script.Module {
	return []*script.Module{
		NewInstanceModule(),
		ToHostModule(),
		FromHostModule(),
		FuncsModule(),
		CreatorModule(),
		MLModule(),
	}
}

// NewRuntime returns a runtime with every fixture module registered.
func NewRuntime() *script.Runtime {
	return script.NewRuntime(Modules()...)
}

func str(c *script.Call, field string) (string, error) {
	v, err := c.Self.Get(field)
	if err != nil {
		return "", err
	}
	return script.Str(v), nil
}

func noArgs() script.Signature { return script.Sig() }
