package vm

import (
	"errors"
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Display and conversion tests
// ---------------------------------------------------------------------------

func TestDisplay(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null{}, "null"},
		{nil, "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Number(42), "42"},
		{Number(-7), "-7"},
		{Number(0), "0"},
		{Number(2.5), "2.5"},
		{Number(1e20), "1e+20"},
		{Number(math.Inf(1)), "inf"},
		{Number(math.Inf(-1)), "-inf"},
		{Number(math.NaN()), "nan"},
		{Str("hi"), "hi"},
		{&Native{Name: "puts"}, "<native puts>"},
		{&Closure{Addr: 0x10}, "<closure @00000010>"},
	}

	for _, tc := range tests {
		if got := Display(tc.v); got != tc.want {
			t.Errorf("Display(%#v) = %q, want %q", tc.v, got, tc.want)
		}
	}
	if got := Repr(Str("a\"b")); got != `"a\"b"` {
		t.Errorf("Repr = %s, want quoted", got)
	}
}

func TestEqual(t *testing.T) {
	fn := &Native{Name: "f"}
	cl := &Closure{Addr: 1}

	tests := []struct {
		a, b Value
		want bool
	}{
		{Null{}, Null{}, true},
		{Number(1), Number(1), true},
		{Number(1), Number(2), false},
		{Number(1), Bool(true), false},
		{Str("a"), Str("a"), true},
		{Str("1"), Number(1), false},
		{Bool(false), Null{}, false},
		{fn, fn, true},
		{fn, &Native{Name: "f"}, false},
		{cl, cl, true},
		{cl, &Closure{Addr: 1}, false},
	}

	for _, tc := range tests {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", Repr(tc.a), Repr(tc.b), got, tc.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Null{}, false},
		{Bool(false), false},
		{Number(0), false},
		{Bool(true), true},
		{Number(-1), true},
		{Str(""), true},
		{&Closure{}, true},
	}
	for _, tc := range tests {
		if got := Truthy(tc.v); got != tc.want {
			t.Errorf("Truthy(%s) = %v, want %v", Repr(tc.v), got, tc.want)
		}
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		v    Value
		want float64
		ok   bool
	}{
		{Number(2.5), 2.5, true},
		{Bool(true), 1, true},
		{Bool(false), -1, true},
		{Str("3.25"), 3.25, true},
		{Str("abc"), 0, false},
		{Null{}, 0, false},
	}
	for _, tc := range tests {
		got, err := ToNumber(tc.v)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ToNumber(%s) = %v, %v; want %v, ok=%v", Repr(tc.v), got, err, tc.want, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("ToNumber(%s) error %v does not wrap ErrTypeMismatch", Repr(tc.v), err)
		}
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		v    Value
		want int64
	}{
		{Number(3.9), 3},
		{Number(-3.9), -3},
		{Str("0x1f"), 31},
		{Str("12"), 12},
		{Str("2.5"), 2},
		{Bool(true), 1},
	}
	for _, tc := range tests {
		got, err := ToInt(tc.v)
		if err != nil || got != tc.want {
			t.Errorf("ToInt(%s) = %d, %v; want %d", Repr(tc.v), got, err, tc.want)
		}
	}
}

func TestLiteralValue(t *testing.T) {
	for _, v := range []Value{Null{}, Bool(true), Number(1), Str("s")} {
		if !LiteralValue(v) {
			t.Errorf("LiteralValue(%s) = false", Repr(v))
		}
	}
	for _, v := range []Value{&Native{}, &Closure{}} {
		if LiteralValue(v) {
			t.Errorf("LiteralValue(%s) = true", Repr(v))
		}
	}
}
