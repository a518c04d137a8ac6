// Package state manages long-lived script objects that accumulate data
// through a write method and can be saved and restored.
package state

import (
	"context"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
)

var log = commonlog.GetLogger("scriptbridge.state")

// DefaultWriteMethod is used when Params.WriteMethod is empty.
const DefaultWriteMethod = "write"

// ErrAlreadyTerminated is returned by every operation on a terminated State.
var ErrAlreadyTerminated = errs.New(errs.UnknownHandle, "state", "state is already terminated")

// Params names the class behind a State. ModulePath is informational and
// travels with saved containers.
type Params struct {
	ModulePath  string `cbor:"module_path,omitempty"`
	Module      string `cbor:"module"`
	Class       string `cbor:"class"`
	WriteMethod string `cbor:"write_method"`
}

func (p Params) validate() error {
	if p.Module == "" || p.Class == "" {
		return errs.New(errs.TypeMismatch, "state", "module and class are required")
	}
	return nil
}

func (p Params) withDefaults() Params {
	if p.WriteMethod == "" {
		p.WriteMethod = DefaultWriteMethod
	}
	return p
}

// State is a script instance held through a bridge handle. It is safe for
// concurrent use; Terminate waits for in-flight calls.
type State struct {
	sess   *bridge.Session
	params Params

	mu         sync.RWMutex
	handle     value.Handle
	terminated bool
}

// Option configures how a State's instance is registered.
type Option func(*options)

type options struct {
	owner string
}

// WithOwner scopes the state's handle to owner, so it is released with the
// owner's other handles.
func WithOwner(owner string) Option {
	return func(o *options) { o.owner = owner }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a state object through the class's "create" factory with
// args as keyword arguments.
func New(ctx context.Context, sess *bridge.Session, params Params, args *value.Map, opts ...Option) (*State, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	h, err := sess.Instantiate(ctx, bridge.InstantiateRequest{
		Module:  params.Module,
		Class:   params.Class,
		Mode:    bridge.ModeFactory,
		Factory: bridge.DefaultFactory,
		Kwargs:  args,
		Owner:   o.owner,
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("created %s.%s as %s", params.Module, params.Class, h)
	return &State{sess: sess, params: params, handle: h}, nil
}

// Attach wraps an instance that already lives in sess under h. params must
// name the instance's own module and class, since Save records them for
// Load. Terminate releases h.
func Attach(sess *bridge.Session, params Params, h value.Handle) (*State, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	obj, err := sess.Registry().Lookup(h)
	if err != nil {
		return nil, errs.WithOp("attach", err)
	}
	inst, ok := obj.(*script.Instance)
	if !ok {
		return nil, errs.New(errs.UnknownHandle, "attach", "%s does not refer to a script instance", h)
	}
	if cls := inst.Class(); cls.Module() != params.Module || cls.Name != params.Class {
		return nil, errs.New(errs.TypeMismatch, "attach", "%s is a %s, not a %s.%s",
			h, cls.QualName(), params.Module, params.Class)
	}
	return &State{sess: sess, params: params, handle: h}, nil
}

// Params returns the parameters the state was created with.
func (s *State) Params() Params { return s.params }

// Handle returns the bridge handle of the underlying instance.
func (s *State) Handle() (value.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.terminated {
		return value.Handle{}, ErrAlreadyTerminated
	}
	return s.handle, nil
}

// Write passes v to the state's write method.
func (s *State) Write(ctx context.Context, v value.Value) error {
	_, err := s.Call(ctx, s.params.WriteMethod, v)
	return err
}

// Call invokes method on the state with positional args.
func (s *State) Call(ctx context.Context, method string, args ...value.Value) (value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.terminated {
		return nil, ErrAlreadyTerminated
	}
	return s.sess.Invoke(ctx, bridge.InvokeRequest{Handle: s.handle, Method: method, Args: args})
}

// CallKw invokes method with positional and keyword arguments.
func (s *State) CallKw(ctx context.Context, method string, args []value.Value, kwargs *value.Map) (value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.terminated {
		return nil, ErrAlreadyTerminated
	}
	return s.sess.Invoke(ctx, bridge.InvokeRequest{Handle: s.handle, Method: method, Args: args, Kwargs: kwargs})
}

// Terminate releases the underlying instance. Calling it again is a no-op.
func (s *State) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true
	s.sess.Release(s.handle)
	log.Debugf("terminated %s", s.handle)
}
