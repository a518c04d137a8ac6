package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	scriptbridgev1 "github.com/chazu/scriptbridge/api/scriptbridge/v1"
	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/value"
	"github.com/chazu/scriptbridge/wire"
)

// BridgeService implements the BridgeService Connect/gRPC handler.
//
// Failures inside the bridge are returned in the response as a Fault.
// Connect errors are reserved for requests that cannot be decoded or name
// an unknown client session.
type BridgeService struct {
	bridge   *bridge.Session
	sessions *SessionStore
}

// NewBridgeService creates a BridgeService.
func NewBridgeService(b *bridge.Session, sessions *SessionStore) *BridgeService {
	return &BridgeService{bridge: b, sessions: sessions}
}

// Instantiate creates a script instance and returns its handle.
func (s *BridgeService) Instantiate(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.InstantiateRequest],
) (*connect.Response[scriptbridgev1.InstantiateResponse], error) {
	msg := req.Msg
	if msg.Module == "" || msg.Class == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("module and class are required"))
	}
	if err := s.checkSession(msg.Session); err != nil {
		return nil, err
	}

	mode := bridge.ModeConstructor
	if msg.Mode != "" {
		m, err := bridge.ParseMode(msg.Mode)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		mode = m
	}
	args, kwargs, err := decodeArguments(msg.Args, msg.Kwargs)
	if err != nil {
		return nil, err
	}

	br := bridge.InstantiateRequest{
		Module:  msg.Module,
		Class:   msg.Class,
		Mode:    mode,
		Factory: msg.Factory,
		Args:    args,
		Kwargs:  kwargs,
		Owner:   msg.Session,
	}
	if msg.HasBlob {
		br.Blob = msg.Blob
		if br.Blob == nil {
			br.Blob = []byte{}
		}
	}

	h, err := s.bridge.Instantiate(ctx, br)
	if err != nil {
		return connect.NewResponse(&scriptbridgev1.InstantiateResponse{Fault: scriptbridgev1.FaultOf(err)}), nil
	}
	return connect.NewResponse(&scriptbridgev1.InstantiateResponse{Handle: scriptbridgev1.HandleOf(h)}), nil
}

// Invoke calls a method on a live instance.
func (s *BridgeService) Invoke(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.InvokeRequest],
) (*connect.Response[scriptbridgev1.InvokeResponse], error) {
	msg := req.Msg
	if msg.Method == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("method is required"))
	}
	if err := s.checkSession(msg.Session); err != nil {
		return nil, err
	}
	args, kwargs, err := decodeArguments(msg.Args, msg.Kwargs)
	if err != nil {
		return nil, err
	}

	br := bridge.InvokeRequest{
		Handle: msg.Handle.Value(),
		Method: msg.Method,
		Args:   args,
		Kwargs: kwargs,
		Owner:  msg.Session,
	}
	if msg.New {
		h, err := s.bridge.InvokeNew(ctx, br)
		if err != nil {
			return connect.NewResponse(&scriptbridgev1.InvokeResponse{Fault: scriptbridgev1.FaultOf(err)}), nil
		}
		return connect.NewResponse(&scriptbridgev1.InvokeResponse{Handle: scriptbridgev1.HandleOf(h)}), nil
	}

	v, err := s.bridge.Invoke(ctx, br)
	data, err := encodeResult(v, err)
	return connect.NewResponse(&scriptbridgev1.InvokeResponse{Value: data, Fault: scriptbridgev1.FaultOf(err)}), nil
}

// Release drops a handle. Unknown handles are not an error.
func (s *BridgeService) Release(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.ReleaseRequest],
) (*connect.Response[scriptbridgev1.ReleaseResponse], error) {
	s.bridge.Release(req.Msg.Handle.Value())
	return connect.NewResponse(&scriptbridgev1.ReleaseResponse{OK: true}), nil
}

// Call calls a free module function.
func (s *BridgeService) Call(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.CallRequest],
) (*connect.Response[scriptbridgev1.CallResponse], error) {
	msg := req.Msg
	if msg.Module == "" || msg.Function == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("module and function are required"))
	}
	args, kwargs, err := decodeArguments(msg.Args, msg.Kwargs)
	if err != nil {
		return nil, err
	}

	v, err := s.bridge.Call(ctx, bridge.CallRequest{Module: msg.Module, Function: msg.Function, Args: args, Kwargs: kwargs})
	data, err := encodeResult(v, err)
	return connect.NewResponse(&scriptbridgev1.CallResponse{Value: data, Fault: scriptbridgev1.FaultOf(err)}), nil
}

// CallClass calls a static or class method.
func (s *BridgeService) CallClass(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.CallClassRequest],
) (*connect.Response[scriptbridgev1.CallResponse], error) {
	msg := req.Msg
	if msg.Module == "" || msg.Class == "" || msg.Method == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("module, class and method are required"))
	}
	args, kwargs, err := decodeArguments(msg.Args, msg.Kwargs)
	if err != nil {
		return nil, err
	}

	v, err := s.bridge.CallClass(ctx, bridge.CallClassRequest{
		Module: msg.Module, Class: msg.Class, Method: msg.Method, Args: args, Kwargs: kwargs,
	})
	data, err := encodeResult(v, err)
	return connect.NewResponse(&scriptbridgev1.CallResponse{Value: data, Fault: scriptbridgev1.FaultOf(err)}), nil
}

func (s *BridgeService) checkSession(id string) error {
	return s.sessions.check(id)
}

// decodeArguments unpacks wire-encoded args and kwargs. Corrupt frames are
// rejected before anything reaches the bridge.
func decodeArguments(rawArgs, rawKwargs []byte) ([]value.Value, *value.Map, error) {
	args, err := scriptbridgev1.DecodeArgs(rawArgs)
	if err != nil {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	kwargs, err := scriptbridgev1.DecodeKwargs(rawKwargs)
	if err != nil {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return args, kwargs, nil
}

func encodeResult(v value.Value, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return wire.Marshal(v)
}
