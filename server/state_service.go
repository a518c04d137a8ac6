package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	scriptbridgev1 "github.com/chazu/scriptbridge/api/scriptbridge/v1"
	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/state"
	"github.com/chazu/scriptbridge/statestore"
)

// StateService saves live instances to a statestore and restores them as
// new handles.
type StateService struct {
	bridge   *bridge.Session
	sessions *SessionStore
	store    *statestore.Store
}

// NewStateService creates a StateService.
func NewStateService(b *bridge.Session, sessions *SessionStore, store *statestore.Store) *StateService {
	return &StateService{bridge: b, sessions: sessions, store: store}
}

// SaveState saves the instance behind a handle under a name. The handle
// stays live.
func (s *StateService) SaveState(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.SaveStateRequest],
) (*connect.Response[scriptbridgev1.SaveStateResponse], error) {
	msg := req.Msg
	if msg.Name == "" || msg.Module == "" || msg.Class == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name, module and class are required"))
	}
	if err := s.sessions.check(msg.Session); err != nil {
		return nil, err
	}

	params := state.Params{Module: msg.Module, Class: msg.Class, WriteMethod: msg.WriteMethod}
	st, err := state.Attach(s.bridge, params, msg.Handle.Value())
	if err == nil {
		err = st.SaveTo(ctx, s.store, msg.Name)
	}
	if err != nil {
		return connect.NewResponse(&scriptbridgev1.SaveStateResponse{Fault: scriptbridgev1.FaultOf(err)}), nil
	}
	log.Infof("saved %s as %q", msg.Handle.Value(), msg.Name)
	return connect.NewResponse(&scriptbridgev1.SaveStateResponse{}), nil
}

// LoadState restores a saved state as a new handle owned by the request's
// client session.
func (s *StateService) LoadState(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.LoadStateRequest],
) (*connect.Response[scriptbridgev1.LoadStateResponse], error) {
	msg := req.Msg
	if msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}
	if err := s.sessions.check(msg.Session); err != nil {
		return nil, err
	}

	st, err := state.LoadFrom(ctx, s.bridge, s.store, msg.Name, state.WithOwner(msg.Session))
	if err != nil {
		return connect.NewResponse(&scriptbridgev1.LoadStateResponse{Fault: scriptbridgev1.FaultOf(err)}), nil
	}
	h, err := st.Handle()
	if err != nil {
		return connect.NewResponse(&scriptbridgev1.LoadStateResponse{Fault: scriptbridgev1.FaultOf(err)}), nil
	}
	return connect.NewResponse(&scriptbridgev1.LoadStateResponse{Handle: scriptbridgev1.HandleOf(h)}), nil
}

// ListStates lists saved states by name.
func (s *StateService) ListStates(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.ListStatesRequest],
) (*connect.Response[scriptbridgev1.ListStatesResponse], error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	out := make([]scriptbridgev1.StateInfo, len(entries))
	for i, e := range entries {
		out[i] = scriptbridgev1.StateInfo{Name: e.Name, Size: e.Size, Updated: e.Updated.UnixNano()}
	}
	return connect.NewResponse(&scriptbridgev1.ListStatesResponse{States: out}), nil
}

// DeleteState removes a saved state. Deleting an unknown name reports
// Deleted false.
func (s *StateService) DeleteState(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.DeleteStateRequest],
) (*connect.Response[scriptbridgev1.DeleteStateResponse], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}
	ok, err := s.store.Delete(ctx, req.Msg.Name)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&scriptbridgev1.DeleteStateResponse{Deleted: ok}), nil
}
