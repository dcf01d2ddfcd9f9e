package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Value: the run-time data model
// ---------------------------------------------------------------------------

// Value is a run-time value. The set of implementations is closed: Null,
// Bool, Number, Str, *Native and *Closure.
type Value interface {
	// Kind returns the type name reported by the "type" native.
	Kind() string
	value() // marker method
}

// Null is the absent value.
type Null struct{}

// Bool is a boolean.
type Bool bool

// Number is a double-precision number. Integer literals become Numbers too.
type Number float64

// Str is an immutable string.
type Str string

// NativeFunc is the signature of Go functions callable from sabri code. It
// receives the arguments and the caller's active frame.
type NativeFunc func(args []Value, env *Env) (Value, error)

// Native is a Go function value. Natives compare by identity.
type Native struct {
	Name string
	Fn   NativeFunc
}

// Closure pairs a function's entry address with the frame that was current
// when the function literal was evaluated. Closures compare by identity.
type Closure struct {
	Addr Addr
	Env  *Env
}

func (Null) Kind() string     { return "null" }
func (Bool) Kind() string     { return "bool" }
func (Number) Kind() string   { return "number" }
func (Str) Kind() string      { return "string" }
func (*Native) Kind() string  { return "native" }
func (*Closure) Kind() string { return "closure" }

func (Null) value()     {}
func (Bool) value()     {}
func (Number) value()   {}
func (Str) value()      {}
func (*Native) value()  {}
func (*Closure) value() {}

// Display returns the form printed by puts and %s.
func Display(v Value) string {
	switch v := v.(type) {
	case nil, Null:
		return "null"
	case Bool:
		return strconv.FormatBool(bool(v))
	case Number:
		return formatNumber(float64(v))
	case Str:
		return string(v)
	case *Native:
		return fmt.Sprintf("<native %s>", v.Name)
	case *Closure:
		return fmt.Sprintf("<closure @%08x>", uint32(v.Addr))
	}
	return fmt.Sprintf("%v", v)
}

// Repr returns a source-like form: strings are quoted.
func Repr(v Value) string {
	if s, ok := v.(Str); ok {
		return strconv.Quote(string(s))
	}
	return Display(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equal reports structural equality. Natives and closures are equal only to
// themselves.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Number:
		bn, ok := b.(Number)
		return ok && a == bn
	case Str:
		bs, ok := b.(Str)
		return ok && a == bs
	case *Native:
		bn, ok := b.(*Native)
		return ok && a == bn
	case *Closure:
		bc, ok := b.(*Closure)
		return ok && a == bc
	}
	return false
}

// Truthy reports the value's truth for TEST: null, false and zero are false.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(v)
	case Number:
		return v != 0
	}
	return true
}

// ToNumber converts numbers, booleans (true 1, false -1) and numeric strings.
func ToNumber(v Value) (float64, error) {
	switch v := v.(type) {
	case Number:
		return float64(v), nil
	case Bool:
		if v {
			return 1, nil
		}
		return -1, nil
	case Str:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot convert %q to number", ErrTypeMismatch, string(v))
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: cannot convert %s to number", ErrTypeMismatch, v.Kind())
}

// ToInt converts like ToNumber and truncates toward zero.
func ToInt(v Value) (int64, error) {
	if s, ok := v.(Str); ok {
		if n, err := strconv.ParseInt(string(s), 0, 64); err == nil {
			return n, nil
		}
	}
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// LiteralValue reports whether v may appear in the literal pool or an image.
func LiteralValue(v Value) bool {
	switch v.(type) {
	case Null, Bool, Number, Str:
		return true
	}
	return false
}
