package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Print and String Primitives
// ---------------------------------------------------------------------------

// The print family writes to whatever out returns at call time, so a VM's
// output can be redirected after the globals are installed.

func primPuts(out func() io.Writer) NativeFunc {
	return func(args []Value, _ *Env) (Value, error) {
		_, err := io.WriteString(out(), joinDisplay(args))
		return Null{}, err
	}
}

func primPutsl(out func() io.Writer) NativeFunc {
	return func(args []Value, _ *Env) (Value, error) {
		_, err := io.WriteString(out(), joinDisplay(args)+"\n")
		return Null{}, err
	}
}

func joinDisplay(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Display(a)
	}
	return strings.Join(parts, " ")
}

func primPutsf(out func() io.Writer) NativeFunc {
	return func(args []Value, _ *Env) (Value, error) {
		s, err := Format(args)
		if err != nil {
			return nil, err
		}
		_, err = io.WriteString(out(), s)
		return Null{}, err
	}
}

// Format expands args[0] as a format string against the remaining
// arguments. Specifiers: %d and %x (integer, %x unsigned), %f (number),
// %s (display form), %% (a literal percent).
func Format(args []Value) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("expected format string")
	}
	format, ok := args[0].(Str)
	if !ok {
		return "", fmt.Errorf("%w: expected format string, got %s", ErrTypeMismatch, args[0].Kind())
	}

	var sb strings.Builder
	next := 1
	runes := []rune(string(format))
	for i := 0; i < len(runes); i++ {
		if runes[i] != '%' {
			sb.WriteRune(runes[i])
			continue
		}
		i++
		if i >= len(runes) {
			return "", fmt.Errorf("expected format specifier")
		}
		spec := runes[i]
		if spec == '%' {
			sb.WriteByte('%')
			continue
		}
		v, err := arg(args, next)
		if err != nil {
			return "", err
		}
		next++
		switch spec {
		case 'd', 'x':
			n, err := ToInt(v)
			if err != nil {
				return "", err
			}
			if spec == 'x' {
				// Negative values print as 64-bit two's complement.
				sb.WriteString(strconv.FormatUint(uint64(n), 16))
			} else {
				sb.WriteString(strconv.FormatInt(n, 10))
			}
		case 'f':
			f, err := ToNumber(v)
			if err != nil {
				return "", err
			}
			sb.WriteString(formatNumber(f))
		case 's':
			sb.WriteString(Display(v))
		default:
			return "", fmt.Errorf("invalid format specifier: %q", spec)
		}
	}
	return sb.String(), nil
}

// primDumpEnv writes the caller's environment chain.
func primDumpEnv(out func() io.Writer) NativeFunc {
	return func(_ []Value, env *Env) (Value, error) {
		if env != nil {
			env.Dump(out())
		}
		return Null{}, nil
	}
}

func primType(args []Value, _ *Env) (Value, error) {
	v, err := arg(args, 0)
	if err != nil {
		return nil, err
	}
	return Str(v.Kind()), nil
}

func primStr(args []Value, _ *Env) (Value, error) {
	v, err := arg(args, 0)
	if err != nil {
		return nil, err
	}
	return Str(Display(v)), nil
}
