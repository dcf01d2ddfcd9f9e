package vm

import "fmt"

// ---------------------------------------------------------------------------
// Boolean and Comparison Primitives
// ---------------------------------------------------------------------------

func primNot(args []Value, _ *Env) (Value, error) {
	v, err := arg(args, 0)
	if err != nil {
		return nil, err
	}
	return Bool(!Truthy(v)), nil
}

// primAnd and primOr combine truthiness. Both operands are already
// evaluated: there is no short circuit.
func primAnd(args []Value, _ *Env) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("and takes 2 arguments, got %d", len(args))
	}
	return Bool(Truthy(args[0]) && Truthy(args[1])), nil
}

func primOr(args []Value, _ *Env) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("or takes 2 arguments, got %d", len(args))
	}
	return Bool(Truthy(args[0]) || Truthy(args[1])), nil
}

func primEq(args []Value, _ *Env) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("== takes 2 arguments, got %d", len(args))
	}
	return Bool(Equal(args[0], args[1])), nil
}

func primNe(args []Value, _ *Env) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("!= takes 2 arguments, got %d", len(args))
	}
	return Bool(!Equal(args[0], args[1])), nil
}

// ordering compares two numbers or two strings. Other pairs are unordered
// and every comparison of them is false.
func ordering(name string, num func(x, y float64) bool, str func(x, y string) bool) NativeFunc {
	return func(args []Value, _ *Env) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes 2 arguments, got %d", name, len(args))
		}
		switch x := args[0].(type) {
		case Number:
			if y, ok := args[1].(Number); ok {
				return Bool(num(float64(x), float64(y))), nil
			}
		case Str:
			if y, ok := args[1].(Str); ok {
				return Bool(str(string(x), string(y))), nil
			}
		}
		return Bool(false), nil
	}
}

var (
	primLt = ordering("<", func(x, y float64) bool { return x < y }, func(x, y string) bool { return x < y })
	primLe = ordering("<=", func(x, y float64) bool { return x <= y }, func(x, y string) bool { return x <= y })
	primGt = ordering(">", func(x, y float64) bool { return x > y }, func(x, y string) bool { return x > y })
	primGe = ordering(">=", func(x, y float64) bool { return x >= y }, func(x, y string) bool { return x >= y })
)
