package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Number Primitives
// ---------------------------------------------------------------------------

// arithmetic implements ADD, SUB, MUL and DIV. Both operands must be
// numbers.
func arithmetic(op Opcode, a, b Value) (Value, error) {
	x, ok1 := a.(Number)
	y, ok2 := b.(Number)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.Kind(), op, b.Kind())
	}
	switch op {
	case OpADD:
		return x + y, nil
	case OpSUB:
		return x - y, nil
	case OpMUL:
		return x * y, nil
	case OpDIV:
		return x / y, nil
	}
	return nil, fmt.Errorf("%s is not arithmetic", op)
}

func arg(args []Value, i int) (Value, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("expected argument at position %d", i+1)
	}
	return args[i], nil
}

func numberArgs(name string, args []Value) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%s takes 2 arguments, got %d", name, len(args))
	}
	x, ok1 := args[0].(Number)
	y, ok2 := args[1].(Number)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("%w: invalid arguments for %q", ErrTypeMismatch, name)
	}
	return float64(x), float64(y), nil
}

func binaryNumber(name string, op func(x, y float64) float64) NativeFunc {
	return func(args []Value, _ *Env) (Value, error) {
		x, y, err := numberArgs(name, args)
		if err != nil {
			return nil, err
		}
		return Number(op(x, y)), nil
	}
}

var (
	primAdd = binaryNumber("+", func(x, y float64) float64 { return x + y })
	primMul = binaryNumber("*", func(x, y float64) float64 { return x * y })
	primDiv = binaryNumber("/", func(x, y float64) float64 { return x / y })
	primPow = binaryNumber("^", math.Pow)
	// % is the floating remainder, truncating toward zero.
	primMod = binaryNumber("%", func(x, y float64) float64 { return x - math.Trunc(x/y)*y })
)

// primSub subtracts, or negates when given one argument.
func primSub(args []Value, env *Env) (Value, error) {
	if len(args) == 1 {
		x, ok := args[0].(Number)
		if !ok {
			return nil, fmt.Errorf("%w: invalid argument for \"-\"", ErrTypeMismatch)
		}
		return -x, nil
	}
	x, y, err := numberArgs("-", args)
	if err != nil {
		return nil, err
	}
	return Number(x - y), nil
}
