package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/script/scripttest"
	"github.com/chazu/scriptbridge/server"
	"github.com/chazu/scriptbridge/state"
	"github.com/chazu/scriptbridge/statestore"
	"github.com/chazu/scriptbridge/value"
)

type testServer struct {
	bridge *bridge.Session
	http   *httptest.Server
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	b := bridge.Open(scripttest.NewRuntime())
	store, err := statestore.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "states.db"))
	if err != nil {
		t.Fatalf("statestore.Open: %v", err)
	}
	srv := httptest.NewServer(server.New(b, server.WithStateStore(store)).Handler())
	t.Cleanup(func() {
		srv.Close()
		b.Close()
		store.Close()
	})
	return &testServer{bridge: b, http: srv}
}

func bg(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// clients returns one client per transport against the same server.
func clients(t *testing.T, ts *testServer) map[string]*Client {
	t.Helper()
	g, err := DialGRPC(strings.TrimPrefix(ts.http.URL, "http://"))
	if err != nil {
		t.Fatalf("DialGRPC: %v", err)
	}
	return map[string]*Client{
		"connect": New(ts.http.URL),
		"grpc":    g,
	}
}

func TestClient_InstantiateInvoke(t *testing.T) {
	ts := startServer(t)
	for name, c := range clients(t, ts) {
		t.Run(name, func(t *testing.T) {
			ctx := bg(t)
			defer c.Close(ctx)

			h, err := c.Instantiate(ctx, bridge.InstantiateRequest{
				Module:  scripttest.NewInstance,
				Class:   "Sample3",
				Mode:    bridge.ModeFactory,
				Factory: "get_instance2",
				Args:    []value.Value{value.Int(1)},
				Kwargs:  value.NewMap().Set("v1", value.String("x")),
			})
			if err != nil {
				t.Fatalf("Instantiate: %v", err)
			}
			if h.Type != "Sample3" {
				t.Errorf("handle type = %q", h.Type)
			}

			got, err := c.Invoke(ctx, bridge.InvokeRequest{Handle: h, Method: "confirm"})
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if !value.Equal(got, value.String("1_5_x")) {
				t.Errorf("confirm = %s", value.Format(got))
			}

			if err := c.Release(ctx, h); err != nil {
				t.Fatalf("Release: %v", err)
			}
			_, err = c.Invoke(ctx, bridge.InvokeRequest{Handle: h, Method: "confirm"})
			if errs.KindOf(err) != errs.UnknownHandle {
				t.Errorf("after release: %v, want UnknownHandle", err)
			}
		})
	}
}

func TestClient_CalleeErrorThenRecover(t *testing.T) {
	ts := startServer(t)
	c := New(ts.http.URL)
	ctx := bg(t)

	h, err := c.Instantiate(ctx, bridge.InstantiateRequest{
		Module: scripttest.NewInstance, Class: "DivisionTest",
	})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	_, err = c.Invoke(ctx, bridge.InvokeRequest{Handle: h, Method: "terminate"})
	if errs.KindOf(err) != errs.CalleeError {
		t.Fatalf("terminate: %v, want CalleeError", err)
	}
	if e, ok := err.(*errs.Error); !ok || e.Class != "ZeroDivisionError" {
		t.Errorf("error = %#v", err)
	}

	got, err := c.Invoke(ctx, bridge.InvokeRequest{Handle: h, Method: "ping"})
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !value.Equal(got, value.String("pong")) {
		t.Errorf("ping = %s", value.Format(got))
	}
}

func TestClient_CallAndCallClass(t *testing.T) {
	ts := startServer(t)
	for name, c := range clients(t, ts) {
		t.Run(name, func(t *testing.T) {
			ctx := bg(t)
			defer c.Close(ctx)

			got, err := c.Call(ctx, bridge.CallRequest{
				Module: scripttest.Funcs, Function: "tenTimes", Args: []value.Value{value.Int(4)},
			})
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if !value.Equal(got, value.Int(40)) {
				t.Errorf("tenTimes(4) = %s", value.Format(got))
			}

			got, err = c.CallClass(ctx, bridge.CallClassRequest{
				Module: scripttest.NewInstance, Class: "ChildClass", Method: "get_class_value",
			})
			if err != nil {
				t.Fatalf("CallClass: %v", err)
			}
			if !value.Equal(got, value.String("instance_value")) {
				t.Errorf("get_class_value = %s", value.Format(got))
			}

			_, err = c.Call(ctx, bridge.CallRequest{Module: scripttest.ToHost, Function: "return_object"})
			if errs.KindOf(err) != errs.UnsupportedValue {
				t.Errorf("return_object: %v, want UnsupportedValue", err)
			}
		})
	}
}

func TestClient_SessionScopesHandles(t *testing.T) {
	ts := startServer(t)
	c := New(ts.http.URL)
	ctx := bg(t)

	if _, err := c.OpenSession(ctx, "scoped"); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Instantiate(ctx, bridge.InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample"}); err != nil {
			t.Fatalf("Instantiate: %v", err)
		}
	}
	if n := ts.bridge.Registry().Len(); n != 3 {
		t.Errorf("registry holds %d handles, want 3", n)
	}

	released, err := c.CloseSession(ctx)
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if released != 3 {
		t.Errorf("released = %d, want 3", released)
	}
	if n := ts.bridge.Registry().Len(); n != 0 {
		t.Errorf("registry holds %d handles after close, want 0", n)
	}

	released, err = c.CloseSession(ctx)
	if err != nil || released != 0 {
		t.Errorf("second CloseSession = %d, %v", released, err)
	}
}

func TestClient_InvokeNew(t *testing.T) {
	ts := startServer(t)
	c := New(ts.http.URL)
	ctx := bg(t)

	h, err := c.Instantiate(ctx, bridge.InstantiateRequest{
		Module: scripttest.NewInstance, Class: "ChildClass", Mode: bridge.ModeClassMethod,
	})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	child, err := c.InvokeNew(ctx, bridge.InvokeRequest{Handle: h, Method: "get_instance"})
	if err != nil {
		t.Fatalf("InvokeNew: %v", err)
	}
	if child.ID == h.ID || child.Type == "" {
		t.Errorf("child = %+v, parent = %+v", child, h)
	}
}

func TestClient_SaveLoadState(t *testing.T) {
	ts := startServer(t)
	for name, c := range clients(t, ts) {
		t.Run(name, func(t *testing.T) {
			ctx := bg(t)
			defer c.Close(ctx)

			h, err := c.Instantiate(ctx, bridge.InstantiateRequest{
				Module: scripttest.ML, Class: "MeanClassifier", Mode: bridge.ModeFactory,
			})
			if err != nil {
				t.Fatalf("Instantiate: %v", err)
			}
			rows := value.Array{
				value.NewMap().Set("x", value.Float(2)).Set("label", value.Int(1)),
				value.NewMap().Set("x", value.Float(4)).Set("label", value.Int(1)),
			}
			if _, err := c.Invoke(ctx, bridge.InvokeRequest{Handle: h, Method: "fit", Args: []value.Value{rows}}); err != nil {
				t.Fatalf("fit: %v", err)
			}

			params := state.Params{Module: scripttest.ML, Class: "MeanClassifier"}
			stateName := "model-" + name
			if err := c.SaveState(ctx, h, params, stateName); err != nil {
				t.Fatalf("SaveState: %v", err)
			}
			restored, err := c.LoadState(ctx, stateName)
			if err != nil {
				t.Fatalf("LoadState: %v", err)
			}
			got, err := c.Invoke(ctx, bridge.InvokeRequest{Handle: restored, Method: "predict", Args: []value.Value{value.Float(2.5)}})
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if !value.Equal(got, value.Int(0)) {
				t.Errorf("predict(2.5) = %s, want 0", value.Format(got))
			}

			entries, err := c.ListStates(ctx)
			if err != nil {
				t.Fatalf("ListStates: %v", err)
			}
			found := false
			for _, e := range entries {
				found = found || e.Name == stateName
			}
			if !found {
				t.Errorf("ListStates = %+v, missing %s", entries, stateName)
			}

			if ok, err := c.DeleteState(ctx, stateName); err != nil || !ok {
				t.Errorf("DeleteState = %v, %v", ok, err)
			}
			if _, err := c.LoadState(ctx, stateName); errs.KindOf(err) != errs.NotFound {
				t.Errorf("LoadState after delete = %v, want NotFound", err)
			}
		})
	}
}
