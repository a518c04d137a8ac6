package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/script/scripttest"
	"github.com/chazu/scriptbridge/value"
	"github.com/chazu/scriptbridge/wire"
)

func openTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s := Open(scripttest.NewRuntime(), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func kw(pairs ...any) *value.Map {
	m := value.NewMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), value.MustFromGo(pairs[i+1]))
	}
	return m
}

func args(vs ...any) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = value.MustFromGo(v)
	}
	return out
}

func mustInstantiate(t *testing.T, s *Session, req InstantiateRequest) value.Handle {
	t.Helper()
	h, err := s.Instantiate(context.Background(), req)
	if err != nil {
		t.Fatalf("Instantiate %s.%s: %v", req.Module, req.Class, err)
	}
	return h
}

func mustInvoke(t *testing.T, s *Session, h value.Handle, method string, a ...any) value.Value {
	t.Helper()
	v, err := s.Invoke(context.Background(), InvokeRequest{Handle: h, Method: method, Args: args(a...)})
	if err != nil {
		t.Fatalf("Invoke %s: %v", method, err)
	}
	return v
}

func expectString(t *testing.T, v value.Value, want string) {
	t.Helper()
	if !value.Equal(v, value.String(want)) {
		t.Errorf("got %s, want %q", value.Format(v), want)
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestScenario_WireRoundTripIntoScript(t *testing.T) {
	s := openTestSession(t)
	in := value.NewMap().
		Set("string", value.String("a")).
		Set("int", value.Int(1)).
		Set("float", value.Float(1.5)).
		Set("byte", value.Bytes{0x01}).
		Set("bool", value.Bool(true)).
		Set("null", value.Null{}).
		Set("array", value.Array{value.Int(1), value.Int(2), value.Int(3)})

	data, err := wire.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := wire.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !value.Equal(in, out) {
		t.Fatalf("round trip = %s", value.Format(out))
	}

	got, err := s.Call(context.Background(), CallRequest{Module: scripttest.FromHost, Function: "from_host", Args: []value.Value{out}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	expectString(t, got, "a_1_1.5_[01]_True_None_1_2_3")
}

func TestScenario_ConstructorWithDefaultsAndBag(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.NewInstance,
		Class:  "SampleWithBag",
		Args:   args(1),
		Kwargs: kw("v1", "x"),
	})
	expectString(t, mustInvoke(t, s, h, "confirm"), "1_5_x")

	_, err := s.Instantiate(context.Background(), InstantiateRequest{
		Module: scripttest.NewInstance,
		Class:  "SampleWithBag",
		Args:   args(1),
		Kwargs: kw("v2", "x"),
	})
	if !errors.Is(err, errs.MissingArgument) {
		t.Errorf("err without v1 = %v, want MissingArgument", err)
	}
}

func TestScenario_FactoryWithDefaultsAndBag(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{
		Module:  scripttest.NewInstance,
		Class:   "Sample3",
		Mode:    ModeFactory,
		Factory: "get_instance2",
		Args:    args(1),
		Kwargs:  kw("v1", "x"),
	})
	expectString(t, mustInvoke(t, s, h, "confirm"), "1_5_x")
}

func TestScenario_ClassMethodSeesSubclassOverride(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.NewInstance,
		Class:  "ChildClass",
		Mode:   ModeClassMethod,
	})
	if h.Type != "ChildClass" {
		t.Errorf("handle type = %q", h.Type)
	}
	expectString(t, mustInvoke(t, s, h, "get_class_value"), "instance_value")

	v, err := s.CallClass(context.Background(), CallClassRequest{
		Module: scripttest.NewInstance, Class: "ChildClass", Method: "get_class_value",
	})
	if err != nil {
		t.Fatalf("CallClass: %v", err)
	}
	expectString(t, v, "instance_value")

	v, err = s.CallClass(context.Background(), CallClassRequest{
		Module: scripttest.NewInstance, Class: "Sample3", Method: "get_class_value",
	})
	if err != nil {
		t.Fatalf("CallClass: %v", err)
	}
	expectString(t, v, "class_value")
}

func TestScenario_LoadEmptyThenSaveLoad(t *testing.T) {
	s := openTestSession(t)
	ctx := context.Background()
	loadReq := InstantiateRequest{Module: scripttest.Creator, Class: "PersistTest", Mode: ModeLoad, Blob: []byte{}}

	fresh := mustInstantiate(t, s, loadReq)
	if v := mustInvoke(t, s, fresh, "loaded"); !value.Equal(v, value.Bool(false)) {
		t.Errorf("empty blob loaded = %s, want False", value.Format(v))
	}

	mustInvoke(t, s, fresh, "write", "one")
	mustInvoke(t, s, fresh, "write", "two")
	blob, err := value.AsBytes(mustInvoke(t, s, fresh, "save"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loadReq.Blob = blob
	restored := mustInstantiate(t, s, loadReq)
	if restored == fresh {
		t.Fatal("load reused the original handle")
	}
	if v := mustInvoke(t, s, restored, "loaded"); !value.Equal(v, value.Bool(true)) {
		t.Errorf("loaded = %s, want True", value.Format(v))
	}
	if v := mustInvoke(t, s, restored, "count"); !value.Equal(v, value.Int(2)) {
		t.Errorf("count = %s, want 2", value.Format(v))
	}
	want := value.Array{value.String("one"), value.String("two")}
	if v := mustInvoke(t, s, restored, "log"); !value.Equal(v, want) {
		t.Errorf("log = %s", value.Format(v))
	}

	_, err = s.Invoke(ctx, InvokeRequest{Handle: fresh, Method: "count"})
	if err != nil {
		t.Errorf("original instance unusable after load: %v", err)
	}
}

func TestScenario_DivisionByZeroKeepsSessionUsable(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{Module: scripttest.NewInstance, Class: "DivisionTest"})

	_, err := s.Invoke(context.Background(), InvokeRequest{Handle: h, Method: "terminate"})
	var be *errs.Error
	if !errors.As(err, &be) || be.Kind != errs.CalleeError {
		t.Fatalf("err = %v, want CalleeError", err)
	}
	if be.Class != "ZeroDivisionError" {
		t.Errorf("class = %q, want ZeroDivisionError", be.Class)
	}
	if len(be.Trace) == 0 || be.Trace[0] != "DivisionTest.terminate" {
		t.Errorf("trace = %v", be.Trace)
	}

	expectString(t, mustInvoke(t, s, h, "ping"), "pong")
	v, err := s.Call(context.Background(), CallRequest{Module: scripttest.Funcs, Function: "tenTimes", Args: args(3)})
	if err != nil || !value.Equal(v, value.Int(30)) {
		t.Errorf("tenTimes = %v, %v", v, err)
	}
}

func TestScenario_ConcurrentHandlesNoCrossTalk(t *testing.T) {
	s := openTestSession(t)
	req := InstantiateRequest{Module: scripttest.Creator, Class: "PersistTest", Mode: ModeFactory}
	req.Kwargs = kw("label", "left")
	left := mustInstantiate(t, s, req)
	req.Kwargs = kw("label", "right")
	right := mustInstantiate(t, s, req)

	const writes = 50
	var wg sync.WaitGroup
	errc := make(chan error, 2*writes)
	for _, h := range []value.Handle{left, right} {
		wg.Add(1)
		go func(h value.Handle) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				_, err := s.Invoke(context.Background(), InvokeRequest{
					Handle: h, Method: "write", Args: args(fmt.Sprintf("%d-%d", h.ID, i)),
				})
				if err != nil {
					errc <- err
				}
			}
		}(h)
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Fatalf("write: %v", err)
	}

	for _, h := range []value.Handle{left, right} {
		if v := mustInvoke(t, s, h, "count"); !value.Equal(v, value.Int(writes)) {
			t.Errorf("handle %d count = %s", h.ID, value.Format(v))
		}
		log, err := value.AsArray(mustInvoke(t, s, h, "log"))
		if err != nil {
			t.Fatal(err)
		}
		for i, e := range log {
			if want := fmt.Sprintf("%d-%d", h.ID, i); !value.Equal(e, value.String(want)) {
				t.Fatalf("handle %d log[%d] = %s, want %q", h.ID, i, value.Format(e), want)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Instantiation modes
// ---------------------------------------------------------------------------

func TestInstantiate_ConstructorAccumulates(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample"})
	expectString(t, mustInvoke(t, s, h, "logger", "a"), "initialized_a")
	expectString(t, mustInvoke(t, s, h, "logger", "b"), "initialized_a_b")
}

func TestInstantiate_ConstructorArgs(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.NewInstance, Class: "Sample2", Args: args("hoge"),
	})
	expectString(t, mustInvoke(t, s, h, "get_a"), "hoge")
}

func TestInstantiate_ConstructorBindingError(t *testing.T) {
	s := openTestSession(t)
	_, err := s.Instantiate(context.Background(), InstantiateRequest{
		Module: scripttest.NewInstance, Class: "Sample2",
	})
	if !errors.Is(err, errs.MissingArgument) {
		t.Errorf("err = %v, want MissingArgument", err)
	}
	_, err = s.Instantiate(context.Background(), InstantiateRequest{
		Module: scripttest.NewInstance, Class: "Sample", Args: args(1),
	})
	if !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("err = %v, want TypeMismatch", err)
	}
}

func TestInstantiate_KwargsBagIndependent(t *testing.T) {
	s := openTestSession(t)
	req := InstantiateRequest{Module: scripttest.NewInstance, Class: "SampleForKwd", Args: args(1)}

	req.Kwargs = kw("c", "x", "d", "y")
	first := mustInstantiate(t, s, req)
	req.Kwargs.Set("e", value.String("late"))

	req.Kwargs = kw("b", 7, "e", "z")
	second := mustInstantiate(t, s, req)

	expectString(t, mustInvoke(t, s, first, "confirm_init"), "1_5_x_y_")
	expectString(t, mustInvoke(t, s, second, "confirm_init"), "1_7___z")

	bag, err := value.AsMap(mustInvoke(t, s, first, "kwargs"))
	if err != nil {
		t.Fatal(err)
	}
	if keys := bag.Keys(); len(keys) != 2 || keys[0] != "c" || keys[1] != "d" {
		t.Errorf("first bag keys = %v, want [c d]", keys)
	}
}

func TestInstantiate_StaticFactories(t *testing.T) {
	s := openTestSession(t)

	h := mustInstantiate(t, s, InstantiateRequest{Module: scripttest.Creator, Class: "TestClass", Mode: ModeFactory})
	expectString(t, mustInvoke(t, s, h, "write", "hoge"), `called! arg is "hoge"`)

	h = mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.Creator, Class: "TestClass2", Mode: ModeFactory,
		Args: []value.Value{kw("v1", "a", "v2", "b")},
	})
	expectString(t, mustInvoke(t, s, h, "confirm"), "constructor init arg is v1=a, v2=b")

	h = mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.Creator, Class: "TestClass3", Mode: ModeFactory,
		Args: args("x"), Kwargs: kw("k", 1),
	})
	expectString(t, mustInvoke(t, s, h, "confirm"), `constructor init arg is a=x, b=b, c={"k": 1}`)

	h = mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.NewInstance, Class: "Sample3", Mode: ModeFactory, Factory: "get_instance",
	})
	expectString(t, mustInvoke(t, s, h, "get_instance_str"), "instance method test1")
}

func TestInstantiate_ModeMustMatchMethodKind(t *testing.T) {
	s := openTestSession(t)
	cases := []struct {
		name string
		req  InstantiateRequest
		kind errs.Kind
	}{
		{"static as classmethod", InstantiateRequest{Module: scripttest.Creator, Class: "TestClass", Mode: ModeClassMethod}, errs.TypeMismatch},
		{"classmethod as static", InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample3", Mode: ModeFactory}, errs.TypeMismatch},
		{"instance method as factory", InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample3", Mode: ModeFactory, Factory: "confirm"}, errs.TypeMismatch},
		{"factory returns non-instance", InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample3", Mode: ModeFactory, Factory: "get_static_value"}, errs.TypeMismatch},
		{"missing factory", InstantiateRequest{Module: scripttest.Creator, Class: "TestClass", Mode: ModeFactory, Factory: "nope"}, errs.NotFound},
		{"missing class", InstantiateRequest{Module: scripttest.Creator, Class: "Nope"}, errs.NotFound},
		{"missing module", InstantiateRequest{Module: "nope", Class: "TestClass"}, errs.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Instantiate(context.Background(), tc.req)
			if errs.KindOf(err) != tc.kind {
				t.Errorf("err = %v, want %s", err, tc.kind)
			}
		})
	}
	if n := s.Registry().Len(); n != 0 {
		t.Errorf("failed instantiations left %d handles", n)
	}
}

func TestInstantiate_LoadFailuresAreDeserializationErrors(t *testing.T) {
	s := openTestSession(t)
	base := InstantiateRequest{Module: scripttest.Creator, Class: "PersistTest", Mode: ModeLoad}

	missing := base
	if _, err := s.Instantiate(context.Background(), missing); !errors.Is(err, errs.DeserializationError) {
		t.Errorf("nil blob err = %v", err)
	}

	corrupt := base
	corrupt.Blob = []byte{0xff, 0x00}
	_, err := s.Instantiate(context.Background(), corrupt)
	if !errors.Is(err, errs.DeserializationError) {
		t.Fatalf("corrupt blob err = %v", err)
	}
	if !errors.Is(err, errs.CalleeError) {
		t.Errorf("corrupt blob err %v does not carry the callee failure", err)
	}
}

// ---------------------------------------------------------------------------
// Calls and results
// ---------------------------------------------------------------------------

func TestCall_Results(t *testing.T) {
	s := openTestSession(t)
	tuple := value.Tuple{
		value.String("a"),
		value.NewMap().Set("key1", value.Int(1)),
		value.Array{value.Int(1), value.Int(2)},
	}
	cases := []struct {
		module, fn string
		want       value.Value
	}{
		{scripttest.ToHost, "return_true", value.Bool(true)},
		{scripttest.ToHost, "return_int", value.Int(123)},
		{scripttest.ToHost, "return_float", value.Float(1.0)},
		{scripttest.ToHost, "return_bytearray", value.Bytes("abcdefg")},
		{scripttest.ToHost, "return_none", value.Null{}},
		{scripttest.ToHost, "return_nested_map", value.NewMap().Set("key1", value.NewMap().Set("key2", value.Int(123)))},
		{scripttest.ToHost, "return_onetuple", tuple},
		{scripttest.ToHost, "return_astuple", tuple},
		{scripttest.Funcs, "twoLogger", value.Tuple{value.String("called1"), value.String("called2")}},
	}
	for _, tc := range cases {
		t.Run(tc.fn, func(t *testing.T) {
			got, err := s.Call(context.Background(), CallRequest{Module: tc.module, Function: tc.fn})
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if !value.Equal(got, tc.want) {
				t.Errorf("got %s, want %s", value.Format(got), value.Format(tc.want))
			}
		})
	}
}

func TestCall_TimestampWithOffset(t *testing.T) {
	s := openTestSession(t)
	got, err := s.Call(context.Background(), CallRequest{Module: scripttest.ToHost, Function: "return_timestamp_with_tz"})
	if err != nil {
		t.Fatal(err)
	}
	ts, ok := got.(value.Timestamp)
	if !ok {
		t.Fatalf("got %s, want a timestamp", value.Format(got))
	}
	if off, ok := ts.Offset(); !ok || off != 9*60+3 {
		t.Errorf("offset = %d, %v, want 543", off, ok)
	}
	if want := time.Date(2015, 4, 1, 5, 24, 0, 500*1000*1000, time.UTC); !ts.Time().Equal(want) {
		t.Errorf("instant = %v, want %v", ts.Time(), want)
	}
}

func TestCall_ObjectResultIsUnsupported(t *testing.T) {
	s := openTestSession(t)
	_, err := s.Call(context.Background(), CallRequest{Module: scripttest.ToHost, Function: "return_object"})
	if !errors.Is(err, errs.UnsupportedValue) {
		t.Errorf("err = %v, want UnsupportedValue", err)
	}
}

func TestCall_ScriptErrorIsCalleeError(t *testing.T) {
	s := openTestSession(t)
	_, err := s.Call(context.Background(), CallRequest{Module: scripttest.Funcs, Function: "tenTimes", Args: args("x")})
	var be *errs.Error
	if !errors.As(err, &be) || be.Kind != errs.CalleeError || be.Class != "TypeError" {
		t.Errorf("err = %v, want CalleeError(TypeError)", err)
	}
}

func TestCallClass_RejectsInstanceMethod(t *testing.T) {
	s := openTestSession(t)
	_, err := s.CallClass(context.Background(), CallClassRequest{
		Module: scripttest.NewInstance, Class: "Sample3", Method: "confirm",
	})
	if !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("err = %v, want TypeMismatch", err)
	}
	v, err := s.CallClass(context.Background(), CallClassRequest{
		Module: scripttest.NewInstance, Class: "Sample3", Method: "get_static_value",
	})
	if err != nil {
		t.Fatal(err)
	}
	expectString(t, v, "class_value")
}

func TestInvoke_UnknownHandleAndMethod(t *testing.T) {
	s := openTestSession(t)
	_, err := s.Invoke(context.Background(), InvokeRequest{Handle: value.Handle{ID: 999, Type: "X"}, Method: "m"})
	if !errors.Is(err, errs.UnknownHandle) {
		t.Errorf("err = %v, want UnknownHandle", err)
	}

	h := mustInstantiate(t, s, InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample"})
	_, err = s.Invoke(context.Background(), InvokeRequest{Handle: h, Method: "nope"})
	if !errors.Is(err, errs.NotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}

	retyped := value.Handle{ID: h.ID, Type: "Sample2"}
	_, err = s.Invoke(context.Background(), InvokeRequest{Handle: retyped, Method: "logger", Args: args("a")})
	if !errors.Is(err, errs.UnknownHandle) {
		t.Errorf("err with wrong type = %v, want UnknownHandle", err)
	}
	if _, err := s.Fields(context.Background(), retyped); !errors.Is(err, errs.UnknownHandle) {
		t.Errorf("Fields with wrong type = %v, want UnknownHandle", err)
	}
	s.Release(retyped)
	mustInvoke(t, s, h, "logger", "still-live")

	s.Release(h)
	s.Release(h)
	_, err = s.Invoke(context.Background(), InvokeRequest{Handle: h, Method: "logger", Args: args("a")})
	if !errors.Is(err, errs.UnknownHandle) {
		t.Errorf("err after release = %v, want UnknownHandle", err)
	}
}

func TestInvokeNew_RegistersInstance(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.NewInstance, Class: "ChildClass", Mode: ModeClassMethod,
	})
	nh, err := s.InvokeNew(context.Background(), InvokeRequest{Handle: h, Method: "get_instance"})
	if err != nil {
		t.Fatalf("InvokeNew: %v", err)
	}
	if nh.ID == h.ID || nh.Type != "Sample3" {
		t.Errorf("new handle = %+v", nh)
	}
	expectString(t, mustInvoke(t, s, nh, "get_instance_str"), "instance method test1")

	_, err = s.InvokeNew(context.Background(), InvokeRequest{Handle: h, Method: "get_class_value"})
	if !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("err = %v, want TypeMismatch", err)
	}
}

func TestDescribe(t *testing.T) {
	s := openTestSession(t)
	d, err := s.Describe(context.Background(), scripttest.NewInstance, "ChildClass")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.MRO) != 2 || d.MRO[0] != "ChildClass" || d.MRO[1] != "Sample3" {
		t.Errorf("MRO = %v", d.MRO)
	}
	if d.Module != scripttest.NewInstance {
		t.Errorf("module = %q", d.Module)
	}
}

func TestBind_HostFunction(t *testing.T) {
	s := openTestSession(t)
	fn, err := s.Bind(context.Background(), scripttest.Funcs, "plusSuffix")
	if err != nil {
		t.Fatal(err)
	}
	v, err := fn(context.Background(), value.String("a"))
	if err != nil {
		t.Fatal(err)
	}
	expectString(t, v, "a_through_script")

	if _, err := s.Bind(context.Background(), scripttest.Funcs, "nope"); !errors.Is(err, errs.NotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Executor and lifecycle
// ---------------------------------------------------------------------------

// blockingModule has a function that waits until release is closed.
func blockingModule(started chan<- struct{}, release <-chan struct{}) *script.Module {
	return script.NewModule("blocking").
		Def("wait", script.Sig(), func(*script.Call) (any, error) {
			started <- struct{}{}
			<-release
			return "done", nil
		}).
		Def("quick", script.Sig(), func(*script.Call) (any, error) {
			return "quick", nil
		})
}

func TestTimeout_RunningAndQueuedJobs(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := Open(script.NewRuntime(blockingModule(started, release)), WithCallTimeout(50*time.Millisecond))
	defer s.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := s.Call(context.Background(), CallRequest{Module: "blocking", Function: "wait"})
		errc <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Call(ctx, CallRequest{Module: "blocking", Function: "quick"}); !errors.Is(err, errs.Timeout) {
		t.Errorf("queued call err = %v, want Timeout", err)
	}
	if err := <-errc; !errors.Is(err, errs.Timeout) {
		t.Errorf("running call err = %v, want Timeout", err)
	}

	close(release)
	v, err := s.Call(context.Background(), CallRequest{Module: "blocking", Function: "quick"})
	if err != nil {
		t.Fatalf("call after timeouts: %v", err)
	}
	expectString(t, v, "quick")
}

func TestTimeout_WrapsContextError(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := Open(script.NewRuntime(blockingModule(started, release)))
	defer func() {
		close(release)
		s.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Call(ctx, CallRequest{Module: "blocking", Function: "wait"})
	if !errors.Is(err, errs.Timeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want Timeout wrapping DeadlineExceeded", err)
	}
}

func TestClose(t *testing.T) {
	var mu sync.Mutex
	released := 0
	s := Open(scripttest.NewRuntime(), WithReleaseHook(func(value.Handle, any) {
		mu.Lock()
		released++
		mu.Unlock()
	}))
	mustInstantiate(t, s, InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample"})
	mustInstantiate(t, s, InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample"})

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if released != 2 || s.Registry().Len() != 0 {
		t.Errorf("released %d, %d left", released, s.Registry().Len())
	}

	_, err := s.Call(context.Background(), CallRequest{Module: scripttest.Funcs, Function: "logger"})
	if !errors.Is(err, errs.SessionClosed) {
		t.Errorf("err = %v, want SessionClosed", err)
	}
}

func TestOwnerScopedRelease(t *testing.T) {
	s := openTestSession(t)
	req := InstantiateRequest{Module: scripttest.NewInstance, Class: "Sample", Owner: "s-1"}
	a := mustInstantiate(t, s, req)
	req.Owner = "s-2"
	b := mustInstantiate(t, s, req)

	if n := s.ReleaseOwner("s-1"); n != 1 {
		t.Errorf("ReleaseOwner = %d, want 1", n)
	}
	if _, err := s.Invoke(context.Background(), InvokeRequest{Handle: a, Method: "logger", Args: args("x")}); !errors.Is(err, errs.UnknownHandle) {
		t.Errorf("released owner handle err = %v", err)
	}
	mustInvoke(t, s, b, "logger", "x")
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeConstructor, ModeFactory, ModeClassMethod, ModeLoad} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("pickle"); !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("err = %v", err)
	}
}

func TestFields(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{Module: scripttest.Creator, Class: "PersistTest", Mode: ModeFactory, Kwargs: kw("label", "x")})
	mustInvoke(t, s, h, "write", "a")

	f, err := s.Fields(context.Background(), h)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Values.Keys(); len(got) != 4 || got[0] != "count" || got[3] != "loaded" {
		t.Errorf("field names = %v", got)
	}
	if v, _ := f.Values.Get("count"); !value.Equal(v, value.Int(1)) {
		t.Errorf("count = %s", value.Format(v))
	}
	if len(f.Unsupported) != 0 {
		t.Errorf("unsupported = %v", f.Unsupported)
	}
}

func TestFields_InstanceValuedFieldIsNotStringified(t *testing.T) {
	s := openTestSession(t)
	h := mustInstantiate(t, s, InstantiateRequest{
		Module: scripttest.NewInstance, Class: "Sample3", Mode: ModeFactory, Factory: "get_instance",
	})
	mustInvoke(t, s, h, "keep_child")

	f, err := s.Fields(context.Background(), h)
	if err != nil {
		t.Fatal(err)
	}
	if f.Values.Has("child") {
		v, _ := f.Values.Get("child")
		t.Errorf("child rendered as %s", value.Format(v))
	}
	if len(f.Unsupported) != 1 || f.Unsupported[0] != "child" {
		t.Errorf("unsupported = %v, want [child]", f.Unsupported)
	}
	if v, _ := f.Values.Get("val1"); !value.Equal(v, value.String("test1")) {
		t.Errorf("val1 = %s", value.Format(v))
	}
}
