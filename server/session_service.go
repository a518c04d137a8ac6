package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	scriptbridgev1 "github.com/chazu/scriptbridge/api/scriptbridge/v1"
)

// SessionServiceImpl implements the SessionService Connect/gRPC handler.
type SessionServiceImpl struct {
	sessions *SessionStore
}

// NewSessionServiceImpl creates a SessionServiceImpl.
func NewSessionServiceImpl(sessions *SessionStore) *SessionServiceImpl {
	return &SessionServiceImpl{sessions: sessions}
}

// CreateSession opens a client session.
func (s *SessionServiceImpl) CreateSession(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.CreateSessionRequest],
) (*connect.Response[scriptbridgev1.CreateSessionResponse], error) {
	session := s.sessions.Create(req.Msg.Name)
	return connect.NewResponse(&scriptbridgev1.CreateSessionResponse{
		SessionID: session.ID,
	}), nil
}

// DestroySession destroys a session and releases its handles.
func (s *SessionServiceImpl) DestroySession(
	ctx context.Context,
	req *connect.Request[scriptbridgev1.DestroySessionRequest],
) (*connect.Response[scriptbridgev1.DestroySessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}

	if _, ok := s.sessions.Get(req.Msg.SessionID); !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}

	n := s.sessions.Destroy(req.Msg.SessionID)
	return connect.NewResponse(&scriptbridgev1.DestroySessionResponse{Released: n}), nil
}
