package value

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chazu/scriptbridge/errs"
)

type fitResult struct {
	Loss     float64 `value:"loss"`
	Accuracy float64 `value:"accuracy"`
	Model    []byte  `value:"model"`
	internal int
	Skipped  string `value:"-"`
}

type celsius float64

func (c celsius) MarshalValue() (Value, error) {
	return NewMap().Set("celsius", Float(c)), nil
}

func TestFromGo_Scalars(t *testing.T) {
	cases := []struct {
		in   any
		want Value
	}{
		{nil, Null{}},
		{true, Bool(true)},
		{int8(-3), Int(-3)},
		{uint32(7), Int(7)},
		{float32(1.5), Float(1.5)},
		{"hello", String("hello")},
		{[]byte("abc"), Bytes("abc")},
		{[]byte{}, Bytes{}},
		{(*int)(nil), Null{}},
	}
	for _, c := range cases {
		got, err := FromGo(c.in)
		if err != nil {
			t.Errorf("FromGo(%#v): %v", c.in, err)
			continue
		}
		if !Equal(got, c.want) {
			t.Errorf("FromGo(%#v) = %s, want %s", c.in, Format(got), Format(c.want))
		}
	}
}

func TestFromGo_StringAndBytesStayDistinct(t *testing.T) {
	s, _ := FromGo("hello")
	b, _ := FromGo([]byte("hello"))
	if s.Kind() != KindString {
		t.Errorf("string converted to %s", s.Kind())
	}
	if b.Kind() != KindBytes {
		t.Errorf("[]byte converted to %s, want bytes (no auto-decoding)", b.Kind())
	}
}

func TestFromGo_Collections(t *testing.T) {
	got, err := FromGo(map[string]any{
		"b":     []int{1, 2, 3},
		"a":     map[string]any{"inner": "x"},
		"tuple": GoTuple{"a", 1},
	})
	if err != nil {
		t.Fatalf("FromGo: %v", err)
	}
	m := got.(*Map)
	if keys := m.Keys(); keys[0] != "a" || keys[1] != "b" || keys[2] != "tuple" {
		t.Errorf("keys = %v, want sorted", keys)
	}
	arr, _ := m.Get("b")
	if !Equal(arr, Array{Int(1), Int(2), Int(3)}) {
		t.Errorf("b = %s", Format(arr))
	}
	tup, _ := m.Get("tuple")
	if tup.Kind() != KindTuple {
		t.Errorf("tuple kind = %s", tup.Kind())
	}
}

func TestFromGo_StructFieldOrder(t *testing.T) {
	got, err := FromGo(fitResult{Loss: 0.25, Accuracy: 0.75, Model: []byte{}})
	if err != nil {
		t.Fatalf("FromGo: %v", err)
	}
	want := NewMap().Set("loss", Float(0.25)).Set("accuracy", Float(0.75)).Set("model", Bytes{})
	if !Equal(got, want) {
		t.Errorf("got %s, want %s", Format(got), Format(want))
	}
}

func TestFromGo_Marshaler(t *testing.T) {
	got, err := FromGo(celsius(21.5))
	if err != nil {
		t.Fatalf("FromGo: %v", err)
	}
	if !Equal(got, NewMap().Set("celsius", Float(21.5))) {
		t.Errorf("got %s", Format(got))
	}
}

func TestFromGo_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   any
		kind errs.Kind
	}{
		{"channel", make(chan int), errs.TypeMismatch},
		{"func", func() {}, errs.TypeMismatch},
		{"complex", complex(1, 2), errs.TypeMismatch},
		{"int keys", map[int]string{1: "a"}, errs.TypeMismatch},
		{"nested int keys", []any{map[int]int{}}, errs.TypeMismatch},
		{"uint overflow", uint64(math.MaxUint64), errs.RangeError},
		{"sub-microsecond", time.Unix(0, 1), errs.RangeError},
	}
	for _, c := range cases {
		_, err := FromGo(c.in)
		if !errors.Is(err, c.kind) {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.kind)
		}
	}
}

func TestFromResults(t *testing.T) {
	one, _ := FromResults("a")
	if !Equal(one, String("a")) {
		t.Errorf("single result = %s", Format(one))
	}
	none, _ := FromResults()
	if !IsNull(none) {
		t.Errorf("no results = %s", Format(none))
	}
	multi, err := FromResults("a", map[string]int{"key1": 1}, []int{1, 2})
	if err != nil {
		t.Fatalf("FromResults: %v", err)
	}
	tup, err := AsTuple(multi)
	if err != nil {
		t.Fatalf("multi-return is %s, want tuple", multi.Kind())
	}
	if len(tup) != 3 {
		t.Errorf("tuple arity = %d, want 3", len(tup))
	}
}

func TestDecode_Struct(t *testing.T) {
	src := NewMap().
		Set("loss", Float(1.5)).
		Set("accuracy", Int(1)).
		Set("model", Bytes{1, 2}).
		Set("extra", String("ignored"))

	var out fitResult
	if err := Decode(src, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Loss != 1.5 || out.Accuracy != 1 || len(out.Model) != 2 {
		t.Errorf("decoded %+v", out)
	}
}

func TestDecode_RangeChecked(t *testing.T) {
	var small int8
	if err := Decode(Int(300), &small); !errors.Is(err, errs.RangeError) {
		t.Errorf("int8 overflow err = %v, want RangeError", err)
	}
	var u uint
	if err := Decode(Int(-1), &u); !errors.Is(err, errs.RangeError) {
		t.Errorf("negative uint err = %v, want RangeError", err)
	}
	var f32 float32
	if err := Decode(Float(math.MaxFloat64), &f32); !errors.Is(err, errs.RangeError) {
		t.Errorf("float32 overflow err = %v, want RangeError", err)
	}
	var i int
	if err := Decode(Float(1.5), &i); !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("float into int err = %v, want TypeMismatch", err)
	}
}

func TestDecode_NoStringBytesCoercion(t *testing.T) {
	var s string
	if err := Decode(Bytes("abc"), &s); !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("bytes into string err = %v, want TypeMismatch", err)
	}
	var b []byte
	if err := Decode(String("abc"), &b); !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("string into []byte err = %v, want TypeMismatch", err)
	}
}

func TestDecode_Containers(t *testing.T) {
	var xs []int
	if err := Decode(Tuple{Int(1), Int(2)}, &xs); err != nil || len(xs) != 2 {
		t.Fatalf("tuple into slice = %v, %v", xs, err)
	}
	var pair [2]string
	if err := Decode(Array{String("a"), String("b")}, &pair); err != nil || pair[1] != "b" {
		t.Fatalf("array into [2]string = %v, %v", pair, err)
	}
	var m map[string]float64
	if err := Decode(NewMap().Set("x", Float(2)), &m); err != nil || m["x"] != 2 {
		t.Fatalf("map = %v, %v", m, err)
	}
	var p *int
	if err := Decode(Null{}, &p); err != nil || p != nil {
		t.Fatalf("null into *int = %v, %v", p, err)
	}
	var anyv any
	if err := Decode(Array{Int(1), NewMap().Set("k", Bool(true))}, &anyv); err != nil {
		t.Fatalf("into any: %v", err)
	}
	if seq, ok := anyv.([]any); !ok || len(seq) != 2 {
		t.Errorf("any = %#v", anyv)
	}
}

func TestDecode_Timestamp(t *testing.T) {
	src := time.Date(2015, 4, 1, 14, 27, 0, 500000000, time.FixedZone("", -5*3600))
	var out time.Time
	if err := Decode(MustTimestamp(src), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.Equal(src) {
		t.Errorf("decoded %v, want %v", out, src)
	}
}

func TestDecode_NonPointerTarget(t *testing.T) {
	var i int
	if err := Decode(Int(1), i); !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("err = %v, want TypeMismatch", err)
	}
}
