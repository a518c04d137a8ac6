package bridge

import (
	"context"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
)

// run submits fn to the executor and classifies whatever it returns.
func (s *Session) run(ctx context.Context, op string, fn func(*script.Runtime) (any, error)) (any, error) {
	log.Debugf("%s", op)
	res, err := s.exec.Do(ctx, fn)
	if err != nil {
		return nil, errs.WithOp(op, script.Classify(err))
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Instantiation
// ---------------------------------------------------------------------------

// Instantiate creates an instance of req.Module.req.Class according to
// req.Mode and returns a handle to it.
func (s *Session) Instantiate(ctx context.Context, req InstantiateRequest) (value.Handle, error) {
	op := "instantiate " + req.Module + "." + req.Class
	res, err := s.run(ctx, op, func(rt *script.Runtime) (any, error) {
		cls, err := rt.LookupClass(req.Module, req.Class)
		if err != nil {
			return nil, err
		}
		switch req.Mode {
		case ModeConstructor:
			return cls.Construct(req.Args, req.Kwargs)
		case ModeFactory:
			return callFactory(cls, req.method(), script.Static, req.Args, req.Kwargs)
		case ModeClassMethod:
			return callFactory(cls, req.method(), script.ClassMethod, req.Args, req.Kwargs)
		case ModeLoad:
			return load(cls, req)
		}
		return nil, errs.New(errs.TypeMismatch, "", "unknown instantiation mode %s", req.Mode)
	})
	if err != nil {
		return value.Handle{}, err
	}
	inst := res.(*script.Instance)
	return s.handles.Register(inst, inst.Class().Name, req.Owner), nil
}

// callFactory resolves name on cls, checks that it is of the kind the mode
// asks for and calls it, expecting an instance back.
func callFactory(cls *script.Class, name string, kind script.MethodKind, args []value.Value, kwargs *value.Map) (*script.Instance, error) {
	m, ok := cls.LookupMethod(name)
	if !ok {
		return nil, errs.New(errs.NotFound, "", "%s has no method %q", cls.QualName(), name)
	}
	if m.Kind != kind {
		return nil, errs.New(errs.TypeMismatch, "", "%s.%s is a %s, not a %s", cls.Name, name, m.Kind, kind)
	}
	res, err := m.Invoke(cls, nil, args, kwargs)
	if err != nil {
		return nil, err
	}
	inst, ok := res.(*script.Instance)
	if !ok {
		return nil, errs.New(errs.TypeMismatch, "", "%s.%s returned %T, not an instance", cls.Name, name, res)
	}
	return inst, nil
}

// load restores an instance from req.Blob through a static or class
// loader. Any failure past method resolution is a DeserializationError.
func load(cls *script.Class, req InstantiateRequest) (*script.Instance, error) {
	name := req.method()
	m, ok := cls.LookupMethod(name)
	if !ok {
		return nil, errs.New(errs.NotFound, "", "%s has no loader %q", cls.QualName(), name)
	}
	if m.Kind == script.InstanceMethod {
		return nil, errs.New(errs.TypeMismatch, "", "%s.%s is an instance method, not a loader", cls.Name, name)
	}
	if req.Blob == nil {
		return nil, errs.New(errs.DeserializationError, "", "no saved state to load")
	}
	args := make([]value.Value, 0, len(req.Args)+1)
	args = append(args, value.Bytes(req.Blob))
	args = append(args, req.Args...)

	res, err := m.Invoke(cls, nil, args, req.Kwargs)
	if err != nil {
		return nil, &errs.Error{Kind: errs.DeserializationError, Msg: "loader failed", Err: script.Classify(err)}
	}
	inst, ok := res.(*script.Instance)
	if !ok {
		return nil, errs.New(errs.DeserializationError, "", "%s.%s returned %T, not an instance", cls.Name, name, res)
	}
	return inst, nil
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invoke calls a method on the instance behind req.Handle and converts the
// result.
func (s *Session) Invoke(ctx context.Context, req InvokeRequest) (value.Value, error) {
	res, err := s.invoke(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return res.(value.Value), nil
}

// InvokeNew calls a method that returns a new instance and registers it.
func (s *Session) InvokeNew(ctx context.Context, req InvokeRequest) (value.Handle, error) {
	res, err := s.invoke(ctx, req, false)
	if err != nil {
		return value.Handle{}, err
	}
	inst, ok := res.(*script.Instance)
	if !ok {
		return value.Handle{}, errs.New(errs.TypeMismatch, "invoke "+req.Method, "returned %T, not an instance", res)
	}
	return s.handles.Register(inst, inst.Class().Name, req.Owner), nil
}

func (s *Session) invoke(ctx context.Context, req InvokeRequest, convert bool) (any, error) {
	op := "invoke " + req.Handle.Type + "." + req.Method
	obj, err := s.handles.Lookup(req.Handle)
	if err != nil {
		return nil, errs.WithOp(op, err)
	}
	inst, ok := obj.(*script.Instance)
	if !ok {
		return nil, errs.New(errs.UnknownHandle, op, "%s does not refer to a script instance", req.Handle)
	}
	return s.run(ctx, op, func(*script.Runtime) (any, error) {
		cls := inst.Class()
		m, ok := cls.LookupMethod(req.Method)
		if !ok {
			return nil, errs.New(errs.NotFound, "", "%s has no method %q", cls.QualName(), req.Method)
		}
		var self *script.Instance
		if m.Kind == script.InstanceMethod {
			self = inst
		}
		res, err := m.Invoke(cls, self, req.Args, req.Kwargs)
		if err != nil || !convert {
			return res, err
		}
		return script.ToValue(res)
	})
}

// Call calls a free module function.
func (s *Session) Call(ctx context.Context, req CallRequest) (value.Value, error) {
	op := "call " + req.Module + "." + req.Function
	res, err := s.run(ctx, op, func(rt *script.Runtime) (any, error) {
		fn, err := rt.LookupFunc(req.Module, req.Function)
		if err != nil {
			return nil, err
		}
		res, err := fn.Invoke(nil, nil, req.Args, req.Kwargs)
		if err != nil {
			return nil, err
		}
		return script.ToValue(res)
	})
	if err != nil {
		return nil, err
	}
	return res.(value.Value), nil
}

// CallClass calls a static or class method on a class without creating an
// instance.
func (s *Session) CallClass(ctx context.Context, req CallClassRequest) (value.Value, error) {
	op := "call " + req.Module + "." + req.Class + "." + req.Method
	res, err := s.run(ctx, op, func(rt *script.Runtime) (any, error) {
		cls, err := rt.LookupClass(req.Module, req.Class)
		if err != nil {
			return nil, err
		}
		m, ok := cls.LookupMethod(req.Method)
		if !ok {
			return nil, errs.New(errs.NotFound, "", "%s has no method %q", cls.QualName(), req.Method)
		}
		if m.Kind == script.InstanceMethod {
			return nil, errs.New(errs.TypeMismatch, "", "%s.%s needs an instance", cls.Name, req.Method)
		}
		res, err := m.Invoke(cls, nil, req.Args, req.Kwargs)
		if err != nil {
			return nil, err
		}
		return script.ToValue(res)
	})
	if err != nil {
		return nil, err
	}
	return res.(value.Value), nil
}

// Release drops the instance behind h. Releasing twice is a no-op.
func (s *Session) Release(h value.Handle) {
	log.Debugf("release %s", h)
	s.handles.Release(h)
}

// ReleaseOwner drops every handle registered under owner.
func (s *Session) ReleaseOwner(owner string) int {
	n := s.handles.ReleaseOwner(owner)
	if n > 0 {
		log.Debugf("released %d handles of %s", n, owner)
	}
	return n
}

// ---------------------------------------------------------------------------
// Inspection and host functions
// ---------------------------------------------------------------------------

// Describe returns the shape of Module.Class.
func (s *Session) Describe(ctx context.Context, module, class string) (script.Descriptor, error) {
	res, err := s.run(ctx, "describe "+module+"."+class, func(rt *script.Runtime) (any, error) {
		cls, err := rt.LookupClass(module, class)
		if err != nil {
			return nil, err
		}
		return cls.Descriptor(), nil
	})
	if err != nil {
		return script.Descriptor{}, err
	}
	return res.(script.Descriptor), nil
}

// Snapshot is an instance's own fields as seen from the host.
type Snapshot struct {
	Values *value.Map
	// Unsupported names the fields that failed conversion, in field order.
	// They are absent from Values.
	Unsupported []string
}

// Fields snapshots the instance's own fields for display.
func (s *Session) Fields(ctx context.Context, h value.Handle) (Snapshot, error) {
	op := "fields " + h.Type
	obj, err := s.handles.Lookup(h)
	if err != nil {
		return Snapshot{}, errs.WithOp(op, err)
	}
	inst, ok := obj.(*script.Instance)
	if !ok {
		return Snapshot{}, errs.New(errs.UnknownHandle, op, "%s does not refer to a script instance", h)
	}
	res, err := s.run(ctx, op, func(*script.Runtime) (any, error) {
		snap := Snapshot{Values: value.NewMap()}
		for _, name := range inst.Fields() {
			f, _ := inst.Get(name)
			v, err := script.ToValue(f)
			if err != nil {
				snap.Unsupported = append(snap.Unsupported, name)
				continue
			}
			snap.Values.Set(name, v)
		}
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return res.(Snapshot), nil
}

// HostFunc is a script function callable as a plain host function.
type HostFunc func(ctx context.Context, args ...value.Value) (value.Value, error)

// Bind resolves Module.Function once and returns a host function that
// calls it with positional arguments.
func (s *Session) Bind(ctx context.Context, module, function string) (HostFunc, error) {
	_, err := s.run(ctx, "bind "+module+"."+function, func(rt *script.Runtime) (any, error) {
		return rt.LookupFunc(module, function)
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, args ...value.Value) (value.Value, error) {
		return s.Call(ctx, CallRequest{Module: module, Function: function, Args: args})
	}, nil
}
