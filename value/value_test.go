package value

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chazu/scriptbridge/errs"
)

// ---------------------------------------------------------------------------
// Map
// ---------------------------------------------------------------------------

func TestMap_InsertionOrder(t *testing.T) {
	m := NewMap().Set("b", Int(1)).Set("a", Int(2)).Set("c", Int(3))
	m.Set("a", Int(20))

	keys := m.Keys()
	want := []string{"b", "a", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
	if v, _ := m.Get("a"); !Equal(v, Int(20)) {
		t.Errorf("Get(a) = %v, want 20", Format(v))
	}
}

func TestMap_Delete(t *testing.T) {
	m := NewMap().Set("x", Null{}).Set("y", Bool(true))
	if !m.Delete("x") {
		t.Fatal("Delete(x) = false")
	}
	if m.Delete("x") {
		t.Error("second Delete(x) = true")
	}
	if m.Len() != 1 || m.Keys()[0] != "y" {
		t.Errorf("after delete keys = %v", m.Keys())
	}
}

func TestMap_NilReads(t *testing.T) {
	var m *Map
	if m.Len() != 0 || m.Has("a") || m.Keys() != nil {
		t.Error("nil map should read as empty")
	}
	m.Range(func(string, Value) bool {
		t.Error("Range on nil map called fn")
		return true
	})
}

// ---------------------------------------------------------------------------
// Equal
// ---------------------------------------------------------------------------

func TestEqual(t *testing.T) {
	ts := MustTimestamp(time.Date(2015, 4, 1, 14, 27, 0, 500000000, time.UTC))

	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null", Null{}, Null{}, true},
		{"nil-null", nil, Null{}, true},
		{"empty bytes vs null", Bytes{}, Null{}, false},
		{"int", Int(1), Int(1), true},
		{"int vs float", Int(1), Float(1), false},
		{"neg zero", Float(math.Copysign(0, -1)), Float(0), false},
		{"string vs bytes", String("a"), Bytes("a"), false},
		{"array vs tuple", Array{Int(1)}, Tuple{Int(1)}, false},
		{"nested", Array{NewMap().Set("k", Array{})}, Array{NewMap().Set("k", Array{})}, true},
		{"map order", NewMap().Set("a", Int(1)).Set("b", Int(2)), NewMap().Set("b", Int(2)).Set("a", Int(1)), false},
		{"empty maps", NewMap(), NewMap(), true},
		{"timestamp", ts, ts, true},
		{"handle", Handle{ID: 1, Type: "A"}, Handle{ID: 1, Type: "A"}, true},
	}
	for _, c := range cases {
		if got := Equal(c.a, c.b); got != c.want {
			t.Errorf("%s: Equal = %v, want %v", c.name, got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func TestAccessors_TypeMismatch(t *testing.T) {
	_, err := AsInt(String("1"))
	if !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("AsInt(String) err = %v, want TypeMismatch", err)
	}
	_, err = AsMap(Array{})
	if !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("AsMap(Array) err = %v, want TypeMismatch", err)
	}
}

func TestAsFloat_FromInt(t *testing.T) {
	f, err := AsFloat(Int(3))
	if err != nil || f != 3 {
		t.Fatalf("AsFloat(Int 3) = %v, %v", f, err)
	}
	_, err = AsFloat(Int(1<<62 + 1))
	if !errors.Is(err, errs.RangeError) {
		t.Errorf("inexact int err = %v, want RangeError", err)
	}
}

// ---------------------------------------------------------------------------
// Timestamp
// ---------------------------------------------------------------------------

func TestTimestamp_Offset(t *testing.T) {
	zone := time.FixedZone("TEST", 9*3600+3*60)
	src := time.Date(2015, 4, 1, 14, 27, 0, 500000000, zone)

	ts, err := NewTimestamp(src)
	if err != nil {
		t.Fatalf("NewTimestamp: %v", err)
	}
	off, ok := ts.Offset()
	if !ok || off != 543 {
		t.Errorf("Offset() = %d, %v; want 543, true", off, ok)
	}
	if !ts.Time().Equal(src) {
		t.Errorf("Time() = %v, want %v", ts.Time(), src)
	}
	if ts.Time().UTC().Hour() != 5 || ts.Time().UTC().Minute() != 24 {
		t.Errorf("UTC clock = %v, want 05:24", ts.Time().UTC())
	}
}

func TestTimestamp_Naive(t *testing.T) {
	src := time.Date(2015, 4, 1, 14, 27, 0, 500000000, time.FixedZone("X", 3600))
	ts, err := NaiveTimestamp(src)
	if err != nil {
		t.Fatalf("NaiveTimestamp: %v", err)
	}
	if !ts.Naive() {
		t.Error("expected naive timestamp")
	}
	if got := ts.String(); got != "2015-04-01T14:27:00.500000" {
		t.Errorf("String() = %q", got)
	}
}

func TestTimestamp_RangeErrors(t *testing.T) {
	_, err := NewTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 1, time.UTC))
	if !errors.Is(err, errs.RangeError) {
		t.Errorf("nanosecond precision err = %v, want RangeError", err)
	}
	_, err = NewTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.FixedZone("LMT", 17)))
	if !errors.Is(err, errs.RangeError) {
		t.Errorf("seconds offset err = %v, want RangeError", err)
	}
	_, err = TimestampAt(0, 0, 24*60, true)
	if !errors.Is(err, errs.RangeError) {
		t.Errorf("day offset err = %v, want RangeError", err)
	}
}

// ---------------------------------------------------------------------------
// Opaque sub-state
// ---------------------------------------------------------------------------

func TestOpaque(t *testing.T) {
	m := NewMap().
		Set("loss", Float(0.5)).
		Set("empty", Bytes{}).
		Set("model", Bytes{0x80, 0x03}).
		Set("none", Null{}).
		Set("bad", String("x"))

	blob, present, err := Opaque(m, ModelField)
	if err != nil || !present || len(blob) != 2 || blob[0] != 0x80 {
		t.Errorf("model = %v, %v, %v", blob, present, err)
	}

	blob, present, err = Opaque(m, "empty")
	if err != nil || !present || len(blob) != 0 {
		t.Errorf("empty sentinel = %v, %v, %v; want present zero-length", blob, present, err)
	}

	for _, field := range []string{"missing", "none"} {
		_, present, err = Opaque(m, field)
		if err != nil || present {
			t.Errorf("%s: present=%v err=%v, want absent", field, present, err)
		}
	}

	_, _, err = Opaque(m, "bad")
	if !errors.Is(err, errs.TypeMismatch) {
		t.Errorf("bad err = %v, want TypeMismatch", err)
	}
}
