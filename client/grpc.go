package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	scriptbridgev1 "github.com/chazu/scriptbridge/api/scriptbridge/v1"
	"github.com/chazu/scriptbridge/api/scriptbridge/v1/scriptbridgev1connect"
)

// DialGRPC creates a client that talks gRPC to target ("host:port") over
// plaintext HTTP/2, using the CBOR codec. Extra dial options are appended.
func DialGRPC(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(scriptbridgev1.Codec{})),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{t: &grpcTransport{conn: conn}}, nil
}

type grpcTransport struct {
	conn *grpc.ClientConn
}

func grpcUnary[Res any](ctx context.Context, conn *grpc.ClientConn, procedure string, req any) (*Res, error) {
	res := new(Res)
	if err := conn.Invoke(ctx, procedure, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *grpcTransport) instantiate(ctx context.Context, req *scriptbridgev1.InstantiateRequest) (*scriptbridgev1.InstantiateResponse, error) {
	return grpcUnary[scriptbridgev1.InstantiateResponse](ctx, t.conn, scriptbridgev1connect.BridgeServiceInstantiateProcedure, req)
}

func (t *grpcTransport) invoke(ctx context.Context, req *scriptbridgev1.InvokeRequest) (*scriptbridgev1.InvokeResponse, error) {
	return grpcUnary[scriptbridgev1.InvokeResponse](ctx, t.conn, scriptbridgev1connect.BridgeServiceInvokeProcedure, req)
}

func (t *grpcTransport) release(ctx context.Context, req *scriptbridgev1.ReleaseRequest) (*scriptbridgev1.ReleaseResponse, error) {
	return grpcUnary[scriptbridgev1.ReleaseResponse](ctx, t.conn, scriptbridgev1connect.BridgeServiceReleaseProcedure, req)
}

func (t *grpcTransport) call(ctx context.Context, req *scriptbridgev1.CallRequest) (*scriptbridgev1.CallResponse, error) {
	return grpcUnary[scriptbridgev1.CallResponse](ctx, t.conn, scriptbridgev1connect.BridgeServiceCallProcedure, req)
}

func (t *grpcTransport) callClass(ctx context.Context, req *scriptbridgev1.CallClassRequest) (*scriptbridgev1.CallResponse, error) {
	return grpcUnary[scriptbridgev1.CallResponse](ctx, t.conn, scriptbridgev1connect.BridgeServiceCallClassProcedure, req)
}

func (t *grpcTransport) createSession(ctx context.Context, req *scriptbridgev1.CreateSessionRequest) (*scriptbridgev1.CreateSessionResponse, error) {
	return grpcUnary[scriptbridgev1.CreateSessionResponse](ctx, t.conn, scriptbridgev1connect.SessionServiceCreateSessionProcedure, req)
}

func (t *grpcTransport) destroySession(ctx context.Context, req *scriptbridgev1.DestroySessionRequest) (*scriptbridgev1.DestroySessionResponse, error) {
	return grpcUnary[scriptbridgev1.DestroySessionResponse](ctx, t.conn, scriptbridgev1connect.SessionServiceDestroySessionProcedure, req)
}

func (t *grpcTransport) saveState(ctx context.Context, req *scriptbridgev1.SaveStateRequest) (*scriptbridgev1.SaveStateResponse, error) {
	return grpcUnary[scriptbridgev1.SaveStateResponse](ctx, t.conn, scriptbridgev1connect.StateServiceSaveStateProcedure, req)
}

func (t *grpcTransport) loadState(ctx context.Context, req *scriptbridgev1.LoadStateRequest) (*scriptbridgev1.LoadStateResponse, error) {
	return grpcUnary[scriptbridgev1.LoadStateResponse](ctx, t.conn, scriptbridgev1connect.StateServiceLoadStateProcedure, req)
}

func (t *grpcTransport) listStates(ctx context.Context, req *scriptbridgev1.ListStatesRequest) (*scriptbridgev1.ListStatesResponse, error) {
	return grpcUnary[scriptbridgev1.ListStatesResponse](ctx, t.conn, scriptbridgev1connect.StateServiceListStatesProcedure, req)
}

func (t *grpcTransport) deleteState(ctx context.Context, req *scriptbridgev1.DeleteStateRequest) (*scriptbridgev1.DeleteStateResponse, error) {
	return grpcUnary[scriptbridgev1.DeleteStateResponse](ctx, t.conn, scriptbridgev1connect.StateServiceDeleteStateProcedure, req)
}

func (t *grpcTransport) close() error { return t.conn.Close() }
