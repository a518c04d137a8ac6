// Package scriptbridgev1 holds the RPC messages of the scriptbridge.v1
// services and the CBOR codec they travel with.
//
// Envelopes are CBOR structs. Script values inside them (arguments,
// results) are wire-encoded frames carried as byte strings, so the
// envelope codec never sees the Value model.
package scriptbridgev1

import (
	"errors"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
	"github.com/chazu/scriptbridge/wire"
)

// Handle is the transport form of value.Handle.
type Handle struct {
	ID   uint64 `cbor:"id"`
	Type string `cbor:"type,omitempty"`
}

func HandleOf(h value.Handle) *Handle { return &Handle{ID: h.ID, Type: h.Type} }

// Value converts back to a value.Handle. A nil receiver is the zero handle.
func (h *Handle) Value() value.Handle {
	if h == nil {
		return value.Handle{}
	}
	return value.Handle{ID: h.ID, Type: h.Type}
}

// Fault is the transport form of an errs.Error. Bridge failures travel in
// the response body; transport errors are reserved for malformed requests.
type Fault struct {
	Kind    string   `cbor:"kind"`
	Op      string   `cbor:"op,omitempty"`
	Class   string   `cbor:"class,omitempty"`
	Message string   `cbor:"message,omitempty"`
	Trace   []string `cbor:"trace,omitempty"`
}

// FaultOf converts err for the response. A nil err yields nil.
func FaultOf(err error) *Fault {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		return &Fault{Kind: errs.KindOf(err).String(), Message: err.Error()}
	}
	f := &Fault{Kind: e.Kind.String(), Op: e.Op, Class: e.Class, Message: e.Msg, Trace: e.Trace}
	if e.Err != nil {
		if f.Message != "" {
			f.Message += ": "
		}
		f.Message += e.Err.Error()
	}
	return f
}

// Err rebuilds the errs.Error a Fault was made from. A nil Fault is nil.
func (f *Fault) Err() error {
	if f == nil {
		return nil
	}
	return &errs.Error{
		Kind:  errs.ParseKind(f.Kind),
		Op:    f.Op,
		Class: f.Class,
		Trace: f.Trace,
		Msg:   f.Message,
	}
}

// ---------------------------------------------------------------------------
// BridgeService
// ---------------------------------------------------------------------------

type InstantiateRequest struct {
	Session string `cbor:"session,omitempty"`
	Module  string `cbor:"module"`
	Class   string `cbor:"class"`
	Mode    string `cbor:"mode,omitempty"`
	Factory string `cbor:"factory,omitempty"`
	Args    []byte `cbor:"args,omitempty"`
	Kwargs  []byte `cbor:"kwargs,omitempty"`
	// HasBlob distinguishes an empty saved state from none at all.
	HasBlob bool   `cbor:"has_blob,omitempty"`
	Blob    []byte `cbor:"blob,omitempty"`
}

type InstantiateResponse struct {
	Handle *Handle `cbor:"handle,omitempty"`
	Fault  *Fault  `cbor:"fault,omitempty"`
}

type InvokeRequest struct {
	Session string `cbor:"session,omitempty"`
	Handle  Handle `cbor:"handle"`
	Method  string `cbor:"method"`
	Args    []byte `cbor:"args,omitempty"`
	Kwargs  []byte `cbor:"kwargs,omitempty"`
	// New asks for the result to be registered and returned as a handle.
	New bool `cbor:"new,omitempty"`
}

type InvokeResponse struct {
	Value  []byte  `cbor:"value,omitempty"`
	Handle *Handle `cbor:"handle,omitempty"`
	Fault  *Fault  `cbor:"fault,omitempty"`
}

type ReleaseRequest struct {
	Handle Handle `cbor:"handle"`
}

type ReleaseResponse struct {
	OK bool `cbor:"ok"`
}

type CallRequest struct {
	Module   string `cbor:"module"`
	Function string `cbor:"function"`
	Args     []byte `cbor:"args,omitempty"`
	Kwargs   []byte `cbor:"kwargs,omitempty"`
}

type CallClassRequest struct {
	Module string `cbor:"module"`
	Class  string `cbor:"class"`
	Method string `cbor:"method"`
	Args   []byte `cbor:"args,omitempty"`
	Kwargs []byte `cbor:"kwargs,omitempty"`
}

// CallResponse answers both Call and CallClass.
type CallResponse struct {
	Value []byte `cbor:"value,omitempty"`
	Fault *Fault `cbor:"fault,omitempty"`
}

// ---------------------------------------------------------------------------
// SessionService
// ---------------------------------------------------------------------------

type CreateSessionRequest struct {
	Name string `cbor:"name,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `cbor:"session_id"`
}

type DestroySessionRequest struct {
	SessionID string `cbor:"session_id"`
}

type DestroySessionResponse struct {
	Released int `cbor:"released"`
}

// ---------------------------------------------------------------------------
// StateService
// ---------------------------------------------------------------------------

// SaveStateRequest saves the instance behind Handle as Name. Module, Class
// and WriteMethod are recorded in the saved container.
type SaveStateRequest struct {
	Session     string `cbor:"session,omitempty"`
	Handle      Handle `cbor:"handle"`
	Module      string `cbor:"module"`
	Class       string `cbor:"class"`
	WriteMethod string `cbor:"write_method,omitempty"`
	Name        string `cbor:"name"`
}

type SaveStateResponse struct {
	Fault *Fault `cbor:"fault,omitempty"`
}

type LoadStateRequest struct {
	Session string `cbor:"session,omitempty"`
	Name    string `cbor:"name"`
}

type LoadStateResponse struct {
	Handle *Handle `cbor:"handle,omitempty"`
	Fault  *Fault  `cbor:"fault,omitempty"`
}

type ListStatesRequest struct{}

type StateInfo struct {
	Name string `cbor:"name"`
	Size int    `cbor:"size"`
	// Updated is Unix nanoseconds.
	Updated int64 `cbor:"updated"`
}

type ListStatesResponse struct {
	States []StateInfo `cbor:"states"`
}

type DeleteStateRequest struct {
	Name string `cbor:"name"`
}

type DeleteStateResponse struct {
	Deleted bool `cbor:"deleted"`
}

// ---------------------------------------------------------------------------
// Value fields
// ---------------------------------------------------------------------------

// EncodeArgs wire-encodes positional arguments. No arguments encode to nil.
func EncodeArgs(args []value.Value) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return wire.Marshal(value.Array(args))
}

// DecodeArgs reverses EncodeArgs. The frame must hold an Array or Tuple.
func DecodeArgs(data []byte) ([]value.Value, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, err := wire.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	switch a := v.(type) {
	case value.Array:
		return a, nil
	case value.Tuple:
		return a, nil
	}
	return nil, errs.New(errs.TypeMismatch, "decode args", "args frame holds %s, not an array", v.Kind())
}

// EncodeKwargs wire-encodes named arguments. An empty bag encodes to nil.
func EncodeKwargs(kwargs *value.Map) ([]byte, error) {
	if kwargs.Len() == 0 {
		return nil, nil
	}
	return wire.Marshal(kwargs)
}

// DecodeKwargs reverses EncodeKwargs.
func DecodeKwargs(data []byte) (*value.Map, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, err := wire.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*value.Map)
	if !ok {
		return nil, errs.New(errs.TypeMismatch, "decode kwargs", "kwargs frame holds %s, not a map", v.Kind())
	}
	return m, nil
}
