package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sabri.vm")

// ---------------------------------------------------------------------------
// Interpreter: bytecode execution engine
// ---------------------------------------------------------------------------

// Interpreter executes a Program against a value stack, an environment
// chain, a return-address stack and a comparison flag.
type Interpreter struct {
	prog *Program

	ip       Addr
	env      *Env
	envStack []*Env
	values   []Value
	rets     []Addr
	flag     bool

	steps    int64 // instructions executed since the last Reset
	warnings []string
}

// NewInterpreter creates an interpreter over prog with env as the current
// frame. Execution starts at InvalidAddr until Reset.
func NewInterpreter(prog *Program, env *Env) *Interpreter {
	return &Interpreter{
		prog:   prog,
		ip:     InvalidAddr,
		env:    env,
		values: make([]Value, 0, 64),
	}
}

// Reset clears all stacks and positions the interpreter at entry with env as
// the current frame.
func (in *Interpreter) Reset(entry Addr, env *Env) {
	in.ip = entry
	in.env = env
	in.envStack = in.envStack[:0]
	in.values = in.values[:0]
	in.rets = in.rets[:0]
	in.flag = false
	in.steps = 0
	in.warnings = nil
}

// IP returns the instruction pointer.
func (in *Interpreter) IP() Addr { return in.ip }

// Env returns the current frame.
func (in *Interpreter) Env() *Env { return in.env }

// Flag returns the comparison flag.
func (in *Interpreter) Flag() bool { return in.flag }

// Steps returns the instructions executed since the last Reset.
func (in *Interpreter) Steps() int64 { return in.steps }

// StackDepth returns the number of values on the value stack.
func (in *Interpreter) StackDepth() int { return len(in.values) }

// EnvDepth returns the number of frames on the environment stack.
func (in *Interpreter) EnvDepth() int { return len(in.envStack) }

// Warnings returns the non-fatal problems seen since the last Reset.
func (in *Interpreter) Warnings() []string {
	return append([]string(nil), in.warnings...)
}

// Done reports whether execution has halted or run off the end of the code.
func (in *Interpreter) Done() bool {
	return in.ip == InvalidAddr || int(in.ip) >= len(in.prog.Code)
}

// Push pushes v onto the value stack.
func (in *Interpreter) Push(v Value) {
	if v == nil {
		v = Null{}
	}
	in.values = append(in.values, v)
}

// Pop removes and returns the top value.
func (in *Interpreter) Pop() (Value, error) {
	n := len(in.values)
	if n == 0 {
		return nil, ErrValueUnderflow
	}
	v := in.values[n-1]
	in.values = in.values[:n-1]
	return v, nil
}

// Top returns the top value without removing it.
func (in *Interpreter) Top() (Value, bool) {
	if len(in.values) == 0 {
		return nil, false
	}
	return in.values[len(in.values)-1], true
}

// Exec runs at most n instructions. It stops early when the program halts
// or the instruction pointer leaves the code. It returns the number of
// instructions executed. On failure the instruction pointer is left on the
// failing instruction.
func (in *Interpreter) Exec(n int) (int, error) {
	executed := 0
	for executed < n && !in.Done() {
		ins := in.prog.Code[in.ip]
		if err := in.step(ins); err != nil {
			return executed, &RunError{Addr: in.ip, Op: ins.Op, Err: err}
		}
		executed++
		in.steps++
	}
	return executed, nil
}

// step executes one instruction. Handlers validate before mutating so a
// failure leaves the state as it was.
func (in *Interpreter) step(ins Instruction) error {
	next := in.ip + 1

	switch ins.Op {
	case OpHALT:
		next = InvalidAddr

	case OpPUSHLIT:
		if int(ins.A) >= len(in.prog.Literals) {
			return fmt.Errorf("%w: %d", ErrInvalidLiteral, ins.A)
		}
		in.Push(in.prog.Literals[ins.A])

	case OpNEWENV:
		params, total := int(ins.A), int(ins.B)
		if len(in.values) < params {
			return ErrValueUnderflow
		}
		base := len(in.values) - params
		frame := NewEnv(in.env, total, in.values[base:])
		in.values = in.values[:base]
		in.envStack = append(in.envStack, in.env)
		in.env = frame

	case OpPOPENV:
		n := int(ins.A)
		if len(in.envStack) < n {
			return ErrEnvUnderflow
		}
		for i := 0; i < n; i++ {
			in.env = in.envStack[len(in.envStack)-1]
			in.envStack = in.envStack[:len(in.envStack)-1]
		}

	case OpPOPVAL:
		n := int(ins.A)
		if len(in.values) < n {
			return ErrValueUnderflow
		}
		in.values = in.values[:len(in.values)-n]

	case OpGETVAR:
		v, err := in.env.Get(int(ins.A), int(ins.B))
		if err != nil {
			return err
		}
		in.Push(v)

	case OpSETVAR:
		v, ok := in.Top()
		if !ok {
			return ErrValueUnderflow
		}
		if err := in.env.Set(int(ins.A), int(ins.B), v); err != nil {
			return err
		}

	case OpCLOSURE:
		in.Push(&Closure{Addr: Addr(ins.A), Env: in.env})

	case OpCALL:
		target, err := in.call(int(ins.A))
		if err != nil {
			return err
		}
		if target != InvalidAddr {
			next = target
		}

	case OpRET:
		if len(in.envStack) == 0 {
			return ErrEnvUnderflow
		}
		if len(in.rets) == 0 {
			return ErrReturnUnderflow
		}
		in.env = in.envStack[len(in.envStack)-1]
		in.envStack = in.envStack[:len(in.envStack)-1]
		next = in.rets[len(in.rets)-1]
		in.rets = in.rets[:len(in.rets)-1]

	case OpADD, OpSUB, OpMUL, OpDIV:
		if len(in.values) < 2 {
			return ErrValueUnderflow
		}
		a, b := in.values[len(in.values)-2], in.values[len(in.values)-1]
		result, err := arithmetic(ins.Op, a, b)
		if err != nil {
			return err
		}
		in.values = in.values[:len(in.values)-2]
		in.Push(result)

	case OpTEST:
		v, err := in.Pop()
		if err != nil {
			return err
		}
		in.flag = Truthy(v)

	case OpJMP:
		next = Addr(ins.A)
	case OpJT:
		if in.flag {
			next = Addr(ins.A)
		}
	case OpJF:
		if !in.flag {
			next = Addr(ins.A)
		}

	default:
		msg := fmt.Sprintf("unknown opcode %#02x at %08x", uint8(ins.Op), uint32(in.ip))
		log.Warning(msg)
		in.warnings = append(in.warnings, msg)
		next = InvalidAddr
	}

	in.ip = next
	return nil
}

// call invokes the callee below the top argc values. For natives it
// completes the call and returns InvalidAddr; for closures it returns the
// closure's entry address.
func (in *Interpreter) call(argc int) (Addr, error) {
	if len(in.values) < argc+1 {
		return InvalidAddr, ErrValueUnderflow
	}
	base := len(in.values) - argc - 1
	callee := in.values[base]

	switch fn := callee.(type) {
	case *Native:
		args := append([]Value(nil), in.values[base+1:]...)
		result, err := fn.Fn(args, in.env)
		if err != nil {
			return InvalidAddr, fmt.Errorf("%s: %w", fn.Name, err)
		}
		in.values = in.values[:base]
		in.Push(result)
		return InvalidAddr, nil

	case *Closure:
		if entry, ok := in.prog.At(fn.Addr); ok && entry.Op == OpNEWENV && int(entry.A) != argc {
			return InvalidAddr, fmt.Errorf("%w: closure @%08x takes %d, got %d",
				ErrArity, uint32(fn.Addr), entry.A, argc)
		}
		copy(in.values[base:], in.values[base+1:])
		in.values = in.values[:len(in.values)-1]
		in.rets = append(in.rets, in.ip+1)
		in.envStack = append(in.envStack, in.env)
		in.env = fn.Env
		return fn.Addr, nil
	}
	return InvalidAddr, fmt.Errorf("%w: %s", ErrNotCallable, callee.Kind())
}
