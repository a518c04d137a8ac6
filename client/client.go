// Package client calls a remote scriptbridge server.
//
// New speaks the Connect protocol (or gRPC, with WithGRPC) through
// net/http; DialGRPC uses grpc-go. Both expose the same Client methods and
// report bridge failures as *errs.Error, rebuilt from the response Fault.
package client

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"

	scriptbridgev1 "github.com/chazu/scriptbridge/api/scriptbridge/v1"
	"github.com/chazu/scriptbridge/api/scriptbridge/v1/scriptbridgev1connect"
	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/state"
	"github.com/chazu/scriptbridge/statestore"
	"github.com/chazu/scriptbridge/value"
	"github.com/chazu/scriptbridge/wire"
)

// transport moves envelopes to the server.
type transport interface {
	instantiate(context.Context, *scriptbridgev1.InstantiateRequest) (*scriptbridgev1.InstantiateResponse, error)
	invoke(context.Context, *scriptbridgev1.InvokeRequest) (*scriptbridgev1.InvokeResponse, error)
	release(context.Context, *scriptbridgev1.ReleaseRequest) (*scriptbridgev1.ReleaseResponse, error)
	call(context.Context, *scriptbridgev1.CallRequest) (*scriptbridgev1.CallResponse, error)
	callClass(context.Context, *scriptbridgev1.CallClassRequest) (*scriptbridgev1.CallResponse, error)
	createSession(context.Context, *scriptbridgev1.CreateSessionRequest) (*scriptbridgev1.CreateSessionResponse, error)
	destroySession(context.Context, *scriptbridgev1.DestroySessionRequest) (*scriptbridgev1.DestroySessionResponse, error)
	saveState(context.Context, *scriptbridgev1.SaveStateRequest) (*scriptbridgev1.SaveStateResponse, error)
	loadState(context.Context, *scriptbridgev1.LoadStateRequest) (*scriptbridgev1.LoadStateResponse, error)
	listStates(context.Context, *scriptbridgev1.ListStatesRequest) (*scriptbridgev1.ListStatesResponse, error)
	deleteState(context.Context, *scriptbridgev1.DeleteStateRequest) (*scriptbridgev1.DeleteStateResponse, error)
	close() error
}

// Client is a remote bridge. Handles it creates are scoped to its client
// session when one is open.
type Client struct {
	t       transport
	session string
}

// Option configures a Connect client.
type Option func(*options)

type options struct {
	httpClient connect.HTTPClient
	clientOpts []connect.ClientOption
}

// WithHTTPClient sets the HTTP client. The default is http.DefaultClient.
func WithHTTPClient(c connect.HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithGRPC switches from the Connect protocol to gRPC. The HTTP client
// must then speak HTTP/2.
func WithGRPC() Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, connect.WithGRPC()) }
}

// WithClientOptions passes extra options to the Connect clients.
func WithClientOptions(opts ...connect.ClientOption) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// New creates a Connect client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	o := options{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{t: &connectTransport{
		bridge:   scriptbridgev1connect.NewBridgeServiceClient(o.httpClient, baseURL, o.clientOpts...),
		sessions: scriptbridgev1connect.NewSessionServiceClient(o.httpClient, baseURL, o.clientOpts...),
		states:   scriptbridgev1connect.NewStateServiceClient(o.httpClient, baseURL, o.clientOpts...),
	}}
}

// Close ends the client session, if any, and releases the transport.
func (c *Client) Close(ctx context.Context) error {
	var err error
	if c.session != "" {
		_, err = c.t.destroySession(ctx, &scriptbridgev1.DestroySessionRequest{SessionID: c.session})
		c.session = ""
	}
	if cerr := c.t.close(); err == nil {
		err = cerr
	}
	return err
}

// OpenSession starts a client session. Handles created afterwards are
// released together when the session is closed.
func (c *Client) OpenSession(ctx context.Context, name string) (string, error) {
	resp, err := c.t.createSession(ctx, &scriptbridgev1.CreateSessionRequest{Name: name})
	if err != nil {
		return "", err
	}
	c.session = resp.SessionID
	return c.session, nil
}

// CloseSession destroys the client session and reports how many handles
// it released.
func (c *Client) CloseSession(ctx context.Context) (int, error) {
	if c.session == "" {
		return 0, nil
	}
	resp, err := c.t.destroySession(ctx, &scriptbridgev1.DestroySessionRequest{SessionID: c.session})
	if err != nil {
		return 0, err
	}
	c.session = ""
	return resp.Released, nil
}

// Instantiate creates a remote instance. req.Owner is ignored; the client
// session scopes the handle.
func (c *Client) Instantiate(ctx context.Context, req bridge.InstantiateRequest) (value.Handle, error) {
	args, kwargs, err := encodeArguments(req.Args, req.Kwargs)
	if err != nil {
		return value.Handle{}, err
	}
	msg := &scriptbridgev1.InstantiateRequest{
		Session: c.session,
		Module:  req.Module,
		Class:   req.Class,
		Mode:    req.Mode.String(),
		Factory: req.Factory,
		Args:    args,
		Kwargs:  kwargs,
		HasBlob: req.Blob != nil,
		Blob:    req.Blob,
	}
	resp, err := c.t.instantiate(ctx, msg)
	if err != nil {
		return value.Handle{}, err
	}
	if resp.Fault != nil {
		return value.Handle{}, resp.Fault.Err()
	}
	return resp.Handle.Value(), nil
}

// Invoke calls a method on a remote instance.
func (c *Client) Invoke(ctx context.Context, req bridge.InvokeRequest) (value.Value, error) {
	resp, err := c.invoke(ctx, req, false)
	if err != nil {
		return nil, err
	}
	return decodeResult(resp.Value)
}

// InvokeNew calls a method returning a new instance and yields its handle.
func (c *Client) InvokeNew(ctx context.Context, req bridge.InvokeRequest) (value.Handle, error) {
	resp, err := c.invoke(ctx, req, true)
	if err != nil {
		return value.Handle{}, err
	}
	return resp.Handle.Value(), nil
}

func (c *Client) invoke(ctx context.Context, req bridge.InvokeRequest, isNew bool) (*scriptbridgev1.InvokeResponse, error) {
	args, kwargs, err := encodeArguments(req.Args, req.Kwargs)
	if err != nil {
		return nil, err
	}
	resp, err := c.t.invoke(ctx, &scriptbridgev1.InvokeRequest{
		Session: c.session,
		Handle:  *scriptbridgev1.HandleOf(req.Handle),
		Method:  req.Method,
		Args:    args,
		Kwargs:  kwargs,
		New:     isNew,
	})
	if err != nil {
		return nil, err
	}
	if resp.Fault != nil {
		return nil, resp.Fault.Err()
	}
	return resp, nil
}

// Release drops a remote handle.
func (c *Client) Release(ctx context.Context, h value.Handle) error {
	_, err := c.t.release(ctx, &scriptbridgev1.ReleaseRequest{Handle: *scriptbridgev1.HandleOf(h)})
	return err
}

// Call calls a remote module function.
func (c *Client) Call(ctx context.Context, req bridge.CallRequest) (value.Value, error) {
	args, kwargs, err := encodeArguments(req.Args, req.Kwargs)
	if err != nil {
		return nil, err
	}
	resp, err := c.t.call(ctx, &scriptbridgev1.CallRequest{
		Module: req.Module, Function: req.Function, Args: args, Kwargs: kwargs,
	})
	if err != nil {
		return nil, err
	}
	if resp.Fault != nil {
		return nil, resp.Fault.Err()
	}
	return decodeResult(resp.Value)
}

// CallClass calls a remote static or class method.
func (c *Client) CallClass(ctx context.Context, req bridge.CallClassRequest) (value.Value, error) {
	args, kwargs, err := encodeArguments(req.Args, req.Kwargs)
	if err != nil {
		return nil, err
	}
	resp, err := c.t.callClass(ctx, &scriptbridgev1.CallClassRequest{
		Module: req.Module, Class: req.Class, Method: req.Method, Args: args, Kwargs: kwargs,
	})
	if err != nil {
		return nil, err
	}
	if resp.Fault != nil {
		return nil, resp.Fault.Err()
	}
	return decodeResult(resp.Value)
}

// SaveState saves the instance behind h on the server under name. params
// names the instance's class for the saved container.
func (c *Client) SaveState(ctx context.Context, h value.Handle, params state.Params, name string) error {
	resp, err := c.t.saveState(ctx, &scriptbridgev1.SaveStateRequest{
		Session:     c.session,
		Handle:      *scriptbridgev1.HandleOf(h),
		Module:      params.Module,
		Class:       params.Class,
		WriteMethod: params.WriteMethod,
		Name:        name,
	})
	if err != nil {
		return err
	}
	return resp.Fault.Err()
}

// LoadState restores the state saved under name as a new handle.
func (c *Client) LoadState(ctx context.Context, name string) (value.Handle, error) {
	resp, err := c.t.loadState(ctx, &scriptbridgev1.LoadStateRequest{Session: c.session, Name: name})
	if err != nil {
		return value.Handle{}, err
	}
	if resp.Fault != nil {
		return value.Handle{}, resp.Fault.Err()
	}
	return resp.Handle.Value(), nil
}

// ListStates lists the states saved on the server.
func (c *Client) ListStates(ctx context.Context) ([]statestore.Entry, error) {
	resp, err := c.t.listStates(ctx, &scriptbridgev1.ListStatesRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]statestore.Entry, len(resp.States))
	for i, st := range resp.States {
		out[i] = statestore.Entry{Name: st.Name, Size: st.Size, Updated: time.Unix(0, st.Updated)}
	}
	return out, nil
}

// DeleteState removes a saved state and reports whether it existed.
func (c *Client) DeleteState(ctx context.Context, name string) (bool, error) {
	resp, err := c.t.deleteState(ctx, &scriptbridgev1.DeleteStateRequest{Name: name})
	if err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

func encodeArguments(args []value.Value, kwargs *value.Map) ([]byte, []byte, error) {
	a, err := scriptbridgev1.EncodeArgs(args)
	if err != nil {
		return nil, nil, err
	}
	k, err := scriptbridgev1.EncodeKwargs(kwargs)
	if err != nil {
		return nil, nil, err
	}
	return a, k, nil
}

func decodeResult(data []byte) (value.Value, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.DeserializationError, "decode result", "response carries no value")
	}
	return wire.Unmarshal(data)
}

// ---------------------------------------------------------------------------
// Connect transport
// ---------------------------------------------------------------------------

type connectTransport struct {
	bridge   *scriptbridgev1connect.BridgeServiceClient
	sessions *scriptbridgev1connect.SessionServiceClient
	states   *scriptbridgev1connect.StateServiceClient
}

func unary[Req, Res any](ctx context.Context, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), req *Req) (*Res, error) {
	resp, err := fn(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (t *connectTransport) instantiate(ctx context.Context, req *scriptbridgev1.InstantiateRequest) (*scriptbridgev1.InstantiateResponse, error) {
	return unary(ctx, t.bridge.Instantiate, req)
}

func (t *connectTransport) invoke(ctx context.Context, req *scriptbridgev1.InvokeRequest) (*scriptbridgev1.InvokeResponse, error) {
	return unary(ctx, t.bridge.Invoke, req)
}

func (t *connectTransport) release(ctx context.Context, req *scriptbridgev1.ReleaseRequest) (*scriptbridgev1.ReleaseResponse, error) {
	return unary(ctx, t.bridge.Release, req)
}

func (t *connectTransport) call(ctx context.Context, req *scriptbridgev1.CallRequest) (*scriptbridgev1.CallResponse, error) {
	return unary(ctx, t.bridge.Call, req)
}

func (t *connectTransport) callClass(ctx context.Context, req *scriptbridgev1.CallClassRequest) (*scriptbridgev1.CallResponse, error) {
	return unary(ctx, t.bridge.CallClass, req)
}

func (t *connectTransport) createSession(ctx context.Context, req *scriptbridgev1.CreateSessionRequest) (*scriptbridgev1.CreateSessionResponse, error) {
	return unary(ctx, t.sessions.CreateSession, req)
}

func (t *connectTransport) destroySession(ctx context.Context, req *scriptbridgev1.DestroySessionRequest) (*scriptbridgev1.DestroySessionResponse, error) {
	return unary(ctx, t.sessions.DestroySession, req)
}

func (t *connectTransport) saveState(ctx context.Context, req *scriptbridgev1.SaveStateRequest) (*scriptbridgev1.SaveStateResponse, error) {
	return unary(ctx, t.states.SaveState, req)
}

func (t *connectTransport) loadState(ctx context.Context, req *scriptbridgev1.LoadStateRequest) (*scriptbridgev1.LoadStateResponse, error) {
	return unary(ctx, t.states.LoadState, req)
}

func (t *connectTransport) listStates(ctx context.Context, req *scriptbridgev1.ListStatesRequest) (*scriptbridgev1.ListStatesResponse, error) {
	return unary(ctx, t.states.ListStates, req)
}

func (t *connectTransport) deleteState(ctx context.Context, req *scriptbridgev1.DeleteStateRequest) (*scriptbridgev1.DeleteStateResponse, error) {
	return unary(ctx, t.states.DeleteState, req)
}

func (t *connectTransport) close() error { return nil }
