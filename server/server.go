// Package server exposes a bridge.Session over Connect. The same port
// serves the Connect protocol over HTTP/1.1 and HTTP/2, and gRPC over
// unencrypted HTTP/2.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chazu/scriptbridge/api/scriptbridge/v1/scriptbridgev1connect"
	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/statestore"
)

var log = commonlog.GetLogger("scriptbridge.server")

// BridgeServer serves a bridge session to remote clients.
type BridgeServer struct {
	bridge   *bridge.Session
	sessions *SessionStore
	mux      *http.ServeMux

	shutdownTimeout time.Duration
}

// ServerOption configures a BridgeServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	handlerOpts     []connect.HandlerOption
	shutdownTimeout time.Duration
	store           *statestore.Store
}

// WithHandlerOptions passes extra options (interceptors, read limits) to
// every service handler.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOpts = append(c.handlerOpts, opts...) }
}

// WithShutdownTimeout bounds how long ListenAndServe waits for in-flight
// requests once its context is cancelled.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.shutdownTimeout = d }
}

// WithStateStore mounts the StateService over store.
func WithStateStore(store *statestore.Store) ServerOption {
	return func(c *serverConfig) { c.store = store }
}

// New creates a BridgeServer over b. The caller keeps ownership of b and
// closes it after the server has stopped.
func New(b *bridge.Session, opts ...ServerOption) *BridgeServer {
	cfg := &serverConfig{shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	sessions := NewSessionStore(b)
	s := &BridgeServer{
		bridge:          b,
		sessions:        sessions,
		mux:             http.NewServeMux(),
		shutdownTimeout: cfg.shutdownTimeout,
	}

	bridgePath, bridgeHandler := scriptbridgev1connect.NewBridgeServiceHandler(NewBridgeService(b, sessions), cfg.handlerOpts...)
	sessionPath, sessionHandler := scriptbridgev1connect.NewSessionServiceHandler(NewSessionServiceImpl(sessions), cfg.handlerOpts...)
	inspectPath, inspectHandler := scriptbridgev1connect.NewInspectServiceHandler(NewInspectService(b), cfg.handlerOpts...)

	s.mux.Handle(bridgePath, bridgeHandler)
	s.mux.Handle(sessionPath, sessionHandler)
	s.mux.Handle(inspectPath, inspectHandler)

	if cfg.store != nil {
		statePath, stateHandler := scriptbridgev1connect.NewStateServiceHandler(NewStateService(b, sessions, cfg.store), cfg.handlerOpts...)
		s.mux.Handle(statePath, stateHandler)
	}

	return s
}

// Sessions exposes the client session store.
func (s *BridgeServer) Sessions() *SessionStore { return s.sessions }

// Handler returns the root handler, accepting HTTP/2 without TLS so gRPC
// clients can connect in plaintext.
func (s *BridgeServer) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *BridgeServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Noticef("scriptbridge listening on %s", addr)
		log.Infof("  Connect: http://%s%s", addr, scriptbridgev1connect.BridgeServiceInvokeProcedure)
		log.Infof("  gRPC:    grpc://%s (content subtype cbor)", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
