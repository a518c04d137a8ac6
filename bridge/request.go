package bridge

import (
	"fmt"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// Mode selects how Instantiate produces an instance.
type Mode uint8

const (
	// ModeConstructor runs the class initializer.
	ModeConstructor Mode = iota
	// ModeFactory calls a static method that returns an instance.
	ModeFactory
	// ModeClassMethod calls a class method bound to the resolved class.
	ModeClassMethod
	// ModeLoad restores an instance from a saved blob.
	ModeLoad
)

var modeNames = [...]string{"constructor", "factory", "classmethod", "load"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// ParseMode maps a mode name back to its Mode.
func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if n == s {
			return Mode(i), nil
		}
	}
	return 0, errs.New(errs.TypeMismatch, "parse mode", "unknown instantiation mode %q", s)
}

// Default method names for the factory-style modes.
const (
	DefaultFactory = "create"
	DefaultLoader  = "load"
)

// InstantiateRequest asks for a new instance of Module.Class.
type InstantiateRequest struct {
	Module string
	Class  string
	Mode   Mode
	// Factory names the static, class or load method. Empty selects
	// DefaultFactory, or DefaultLoader in ModeLoad.
	Factory string
	Args    []value.Value
	Kwargs  *value.Map
	// Blob is the saved state passed to the loader as its first argument.
	// A nil Blob in ModeLoad is an error; an empty one is a valid sentinel.
	Blob []byte
	// Owner scopes the resulting handle to a client session.
	Owner string
}

func (r InstantiateRequest) method() string {
	switch {
	case r.Factory != "":
		return r.Factory
	case r.Mode == ModeLoad:
		return DefaultLoader
	default:
		return DefaultFactory
	}
}

// InvokeRequest calls a method on a live instance.
type InvokeRequest struct {
	Handle value.Handle
	Method string
	Args   []value.Value
	Kwargs *value.Map
	// Owner scopes any handle produced by InvokeNew.
	Owner string
}

// CallRequest calls a free module function.
type CallRequest struct {
	Module   string
	Function string
	Args     []value.Value
	Kwargs   *value.Map
}

// CallClassRequest calls a static or class method without an instance.
type CallClassRequest struct {
	Module string
	Class  string
	Method string
	Args   []value.Value
	Kwargs *value.Map
}
