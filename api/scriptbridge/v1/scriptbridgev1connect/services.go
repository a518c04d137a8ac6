// Package scriptbridgev1connect wires the scriptbridge.v1 services to
// Connect: procedure names, handler interfaces, HTTP handlers and clients.
//
// BridgeService, SessionService and StateService speak CBOR
// (scriptbridgev1.Codec).
// InspectService speaks google.protobuf.Struct through Connect's default
// protobuf and JSON codecs.
package scriptbridgev1connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	scriptbridgev1 "github.com/chazu/scriptbridge/api/scriptbridge/v1"
)

// Fully-qualified service names.
const (
	BridgeServiceName  = "scriptbridge.v1.BridgeService"
	SessionServiceName = "scriptbridge.v1.SessionService"
	InspectServiceName = "scriptbridge.v1.InspectService"
	StateServiceName   = "scriptbridge.v1.StateService"
)

// Procedure paths.
const (
	BridgeServiceInstantiateProcedure = "/scriptbridge.v1.BridgeService/Instantiate"
	BridgeServiceInvokeProcedure      = "/scriptbridge.v1.BridgeService/Invoke"
	BridgeServiceReleaseProcedure     = "/scriptbridge.v1.BridgeService/Release"
	BridgeServiceCallProcedure        = "/scriptbridge.v1.BridgeService/Call"
	BridgeServiceCallClassProcedure   = "/scriptbridge.v1.BridgeService/CallClass"

	SessionServiceCreateSessionProcedure  = "/scriptbridge.v1.SessionService/CreateSession"
	SessionServiceDestroySessionProcedure = "/scriptbridge.v1.SessionService/DestroySession"

	InspectServiceDescribeProcedure    = "/scriptbridge.v1.InspectService/Describe"
	InspectServiceListHandlesProcedure = "/scriptbridge.v1.InspectService/ListHandles"
	InspectServiceFieldsProcedure      = "/scriptbridge.v1.InspectService/Fields"

	StateServiceSaveStateProcedure   = "/scriptbridge.v1.StateService/SaveState"
	StateServiceLoadStateProcedure   = "/scriptbridge.v1.StateService/LoadState"
	StateServiceListStatesProcedure  = "/scriptbridge.v1.StateService/ListStates"
	StateServiceDeleteStateProcedure = "/scriptbridge.v1.StateService/DeleteState"
)

func withCodec[T any](opts []T, codec T) []T {
	return append([]T{codec}, opts...)
}

// serviceMux routes a service's procedures by exact path.
func serviceMux(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// ---------------------------------------------------------------------------
// BridgeService
// ---------------------------------------------------------------------------

// BridgeServiceHandler is implemented by the server.
type BridgeServiceHandler interface {
	Instantiate(context.Context, *connect.Request[scriptbridgev1.InstantiateRequest]) (*connect.Response[scriptbridgev1.InstantiateResponse], error)
	Invoke(context.Context, *connect.Request[scriptbridgev1.InvokeRequest]) (*connect.Response[scriptbridgev1.InvokeResponse], error)
	Release(context.Context, *connect.Request[scriptbridgev1.ReleaseRequest]) (*connect.Response[scriptbridgev1.ReleaseResponse], error)
	Call(context.Context, *connect.Request[scriptbridgev1.CallRequest]) (*connect.Response[scriptbridgev1.CallResponse], error)
	CallClass(context.Context, *connect.Request[scriptbridgev1.CallClassRequest]) (*connect.Response[scriptbridgev1.CallResponse], error)
}

// NewBridgeServiceHandler builds an HTTP handler for svc and returns the
// path to mount it on.
func NewBridgeServiceHandler(svc BridgeServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(scriptbridgev1.Codec{})))
	return "/" + BridgeServiceName + "/", serviceMux(map[string]http.Handler{
		BridgeServiceInstantiateProcedure: connect.NewUnaryHandler(BridgeServiceInstantiateProcedure, svc.Instantiate, opts...),
		BridgeServiceInvokeProcedure:      connect.NewUnaryHandler(BridgeServiceInvokeProcedure, svc.Invoke, opts...),
		BridgeServiceReleaseProcedure:     connect.NewUnaryHandler(BridgeServiceReleaseProcedure, svc.Release, opts...),
		BridgeServiceCallProcedure:        connect.NewUnaryHandler(BridgeServiceCallProcedure, svc.Call, opts...),
		BridgeServiceCallClassProcedure:   connect.NewUnaryHandler(BridgeServiceCallClassProcedure, svc.CallClass, opts...),
	})
}

// BridgeServiceClient calls a remote BridgeService.
type BridgeServiceClient struct {
	instantiate *connect.Client[scriptbridgev1.InstantiateRequest, scriptbridgev1.InstantiateResponse]
	invoke      *connect.Client[scriptbridgev1.InvokeRequest, scriptbridgev1.InvokeResponse]
	release     *connect.Client[scriptbridgev1.ReleaseRequest, scriptbridgev1.ReleaseResponse]
	call        *connect.Client[scriptbridgev1.CallRequest, scriptbridgev1.CallResponse]
	callClass   *connect.Client[scriptbridgev1.CallClassRequest, scriptbridgev1.CallResponse]
}

// NewBridgeServiceClient creates a client for the service at baseURL.
func NewBridgeServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BridgeServiceClient {
	opts = withCodec(opts, connect.ClientOption(connect.WithCodec(scriptbridgev1.Codec{})))
	return &BridgeServiceClient{
		instantiate: connect.NewClient[scriptbridgev1.InstantiateRequest, scriptbridgev1.InstantiateResponse](httpClient, baseURL+BridgeServiceInstantiateProcedure, opts...),
		invoke:      connect.NewClient[scriptbridgev1.InvokeRequest, scriptbridgev1.InvokeResponse](httpClient, baseURL+BridgeServiceInvokeProcedure, opts...),
		release:     connect.NewClient[scriptbridgev1.ReleaseRequest, scriptbridgev1.ReleaseResponse](httpClient, baseURL+BridgeServiceReleaseProcedure, opts...),
		call:        connect.NewClient[scriptbridgev1.CallRequest, scriptbridgev1.CallResponse](httpClient, baseURL+BridgeServiceCallProcedure, opts...),
		callClass:   connect.NewClient[scriptbridgev1.CallClassRequest, scriptbridgev1.CallResponse](httpClient, baseURL+BridgeServiceCallClassProcedure, opts...),
	}
}

func (c *BridgeServiceClient) Instantiate(ctx context.Context, req *connect.Request[scriptbridgev1.InstantiateRequest]) (*connect.Response[scriptbridgev1.InstantiateResponse], error) {
	return c.instantiate.CallUnary(ctx, req)
}

func (c *BridgeServiceClient) Invoke(ctx context.Context, req *connect.Request[scriptbridgev1.InvokeRequest]) (*connect.Response[scriptbridgev1.InvokeResponse], error) {
	return c.invoke.CallUnary(ctx, req)
}

func (c *BridgeServiceClient) Release(ctx context.Context, req *connect.Request[scriptbridgev1.ReleaseRequest]) (*connect.Response[scriptbridgev1.ReleaseResponse], error) {
	return c.release.CallUnary(ctx, req)
}

func (c *BridgeServiceClient) Call(ctx context.Context, req *connect.Request[scriptbridgev1.CallRequest]) (*connect.Response[scriptbridgev1.CallResponse], error) {
	return c.call.CallUnary(ctx, req)
}

func (c *BridgeServiceClient) CallClass(ctx context.Context, req *connect.Request[scriptbridgev1.CallClassRequest]) (*connect.Response[scriptbridgev1.CallResponse], error) {
	return c.callClass.CallUnary(ctx, req)
}

// ---------------------------------------------------------------------------
// SessionService
// ---------------------------------------------------------------------------

// SessionServiceHandler is implemented by the server.
type SessionServiceHandler interface {
	CreateSession(context.Context, *connect.Request[scriptbridgev1.CreateSessionRequest]) (*connect.Response[scriptbridgev1.CreateSessionResponse], error)
	DestroySession(context.Context, *connect.Request[scriptbridgev1.DestroySessionRequest]) (*connect.Response[scriptbridgev1.DestroySessionResponse], error)
}

func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(scriptbridgev1.Codec{})))
	return "/" + SessionServiceName + "/", serviceMux(map[string]http.Handler{
		SessionServiceCreateSessionProcedure:  connect.NewUnaryHandler(SessionServiceCreateSessionProcedure, svc.CreateSession, opts...),
		SessionServiceDestroySessionProcedure: connect.NewUnaryHandler(SessionServiceDestroySessionProcedure, svc.DestroySession, opts...),
	})
}

// SessionServiceClient calls a remote SessionService.
type SessionServiceClient struct {
	create  *connect.Client[scriptbridgev1.CreateSessionRequest, scriptbridgev1.CreateSessionResponse]
	destroy *connect.Client[scriptbridgev1.DestroySessionRequest, scriptbridgev1.DestroySessionResponse]
}

func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	opts = withCodec(opts, connect.ClientOption(connect.WithCodec(scriptbridgev1.Codec{})))
	return &SessionServiceClient{
		create:  connect.NewClient[scriptbridgev1.CreateSessionRequest, scriptbridgev1.CreateSessionResponse](httpClient, baseURL+SessionServiceCreateSessionProcedure, opts...),
		destroy: connect.NewClient[scriptbridgev1.DestroySessionRequest, scriptbridgev1.DestroySessionResponse](httpClient, baseURL+SessionServiceDestroySessionProcedure, opts...),
	}
}

func (c *SessionServiceClient) CreateSession(ctx context.Context, req *connect.Request[scriptbridgev1.CreateSessionRequest]) (*connect.Response[scriptbridgev1.CreateSessionResponse], error) {
	return c.create.CallUnary(ctx, req)
}

func (c *SessionServiceClient) DestroySession(ctx context.Context, req *connect.Request[scriptbridgev1.DestroySessionRequest]) (*connect.Response[scriptbridgev1.DestroySessionResponse], error) {
	return c.destroy.CallUnary(ctx, req)
}

// ---------------------------------------------------------------------------
// InspectService
// ---------------------------------------------------------------------------

// InspectServiceHandler is implemented by the server.
type InspectServiceHandler interface {
	Describe(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	ListHandles(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	Fields(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
}

func NewInspectServiceHandler(svc InspectServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return "/" + InspectServiceName + "/", serviceMux(map[string]http.Handler{
		InspectServiceDescribeProcedure:    connect.NewUnaryHandler(InspectServiceDescribeProcedure, svc.Describe, opts...),
		InspectServiceListHandlesProcedure: connect.NewUnaryHandler(InspectServiceListHandlesProcedure, svc.ListHandles, opts...),
		InspectServiceFieldsProcedure:      connect.NewUnaryHandler(InspectServiceFieldsProcedure, svc.Fields, opts...),
	})
}

// InspectServiceClient calls a remote InspectService.
type InspectServiceClient struct {
	describe    *connect.Client[structpb.Struct, structpb.Struct]
	listHandles *connect.Client[structpb.Struct, structpb.Struct]
	fields      *connect.Client[structpb.Struct, structpb.Struct]
}

func NewInspectServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *InspectServiceClient {
	return &InspectServiceClient{
		describe:    connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+InspectServiceDescribeProcedure, opts...),
		listHandles: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+InspectServiceListHandlesProcedure, opts...),
		fields:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+InspectServiceFieldsProcedure, opts...),
	}
}

func (c *InspectServiceClient) Describe(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return c.describe.CallUnary(ctx, req)
}

func (c *InspectServiceClient) ListHandles(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return c.listHandles.CallUnary(ctx, req)
}

func (c *InspectServiceClient) Fields(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return c.fields.CallUnary(ctx, req)
}

// ---------------------------------------------------------------------------
// StateService
// ---------------------------------------------------------------------------

// StateServiceHandler is implemented by the server.
type StateServiceHandler interface {
	SaveState(context.Context, *connect.Request[scriptbridgev1.SaveStateRequest]) (*connect.Response[scriptbridgev1.SaveStateResponse], error)
	LoadState(context.Context, *connect.Request[scriptbridgev1.LoadStateRequest]) (*connect.Response[scriptbridgev1.LoadStateResponse], error)
	ListStates(context.Context, *connect.Request[scriptbridgev1.ListStatesRequest]) (*connect.Response[scriptbridgev1.ListStatesResponse], error)
	DeleteState(context.Context, *connect.Request[scriptbridgev1.DeleteStateRequest]) (*connect.Response[scriptbridgev1.DeleteStateResponse], error)
}

func NewStateServiceHandler(svc StateServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(scriptbridgev1.Codec{})))
	return "/" + StateServiceName + "/", serviceMux(map[string]http.Handler{
		StateServiceSaveStateProcedure:   connect.NewUnaryHandler(StateServiceSaveStateProcedure, svc.SaveState, opts...),
		StateServiceLoadStateProcedure:   connect.NewUnaryHandler(StateServiceLoadStateProcedure, svc.LoadState, opts...),
		StateServiceListStatesProcedure:  connect.NewUnaryHandler(StateServiceListStatesProcedure, svc.ListStates, opts...),
		StateServiceDeleteStateProcedure: connect.NewUnaryHandler(StateServiceDeleteStateProcedure, svc.DeleteState, opts...),
	})
}

// StateServiceClient calls a remote StateService.
type StateServiceClient struct {
	save   *connect.Client[scriptbridgev1.SaveStateRequest, scriptbridgev1.SaveStateResponse]
	load   *connect.Client[scriptbridgev1.LoadStateRequest, scriptbridgev1.LoadStateResponse]
	list   *connect.Client[scriptbridgev1.ListStatesRequest, scriptbridgev1.ListStatesResponse]
	delete *connect.Client[scriptbridgev1.DeleteStateRequest, scriptbridgev1.DeleteStateResponse]
}

func NewStateServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *StateServiceClient {
	opts = withCodec(opts, connect.ClientOption(connect.WithCodec(scriptbridgev1.Codec{})))
	return &StateServiceClient{
		save:   connect.NewClient[scriptbridgev1.SaveStateRequest, scriptbridgev1.SaveStateResponse](httpClient, baseURL+StateServiceSaveStateProcedure, opts...),
		load:   connect.NewClient[scriptbridgev1.LoadStateRequest, scriptbridgev1.LoadStateResponse](httpClient, baseURL+StateServiceLoadStateProcedure, opts...),
		list:   connect.NewClient[scriptbridgev1.ListStatesRequest, scriptbridgev1.ListStatesResponse](httpClient, baseURL+StateServiceListStatesProcedure, opts...),
		delete: connect.NewClient[scriptbridgev1.DeleteStateRequest, scriptbridgev1.DeleteStateResponse](httpClient, baseURL+StateServiceDeleteStateProcedure, opts...),
	}
}

func (c *StateServiceClient) SaveState(ctx context.Context, req *connect.Request[scriptbridgev1.SaveStateRequest]) (*connect.Response[scriptbridgev1.SaveStateResponse], error) {
	return c.save.CallUnary(ctx, req)
}

func (c *StateServiceClient) LoadState(ctx context.Context, req *connect.Request[scriptbridgev1.LoadStateRequest]) (*connect.Response[scriptbridgev1.LoadStateResponse], error) {
	return c.load.CallUnary(ctx, req)
}

func (c *StateServiceClient) ListStates(ctx context.Context, req *connect.Request[scriptbridgev1.ListStatesRequest]) (*connect.Response[scriptbridgev1.ListStatesResponse], error) {
	return c.list.CallUnary(ctx, req)
}

func (c *StateServiceClient) DeleteState(ctx context.Context, req *connect.Request[scriptbridgev1.DeleteStateRequest]) (*connect.Response[scriptbridgev1.DeleteStateResponse], error) {
	return c.delete.CallUnary(ctx, req)
}
