package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// VM: the sabri virtual machine
// ---------------------------------------------------------------------------

// DefaultBudget is the number of instructions run between context checks.
const DefaultBudget = 10000

// VM owns a session: the program that every compilation appends to, the
// global frame, the interpreter and the compiler backend.
type VM struct {
	Program *Program
	Globals *Env

	// Out receives the output of the print natives.
	Out io.Writer

	// Budget is the instruction count of one execution burst. MaxSteps, if
	// positive, bounds a whole run; reaching it suspends with ErrStepLimit.
	Budget   int
	MaxSteps int64

	globalNames []string
	builtins    int

	interpreter *Interpreter
	stepBase    int64

	compilerBackend CompilerBackend
	compileFunc     CompileFunc
}

// NewVM creates a VM with the builtin globals installed.
func NewVM() *VM {
	vm := &VM{
		Program: NewProgram(),
		Globals: NewEnv(nil, 0, nil),
		Out:     os.Stdout,
		Budget:  DefaultBudget,
	}
	vm.installBuiltins()
	vm.interpreter = NewInterpreter(vm.Program, vm.Globals)
	return vm
}

func (vm *VM) output() io.Writer {
	if vm.Out == nil {
		return io.Discard
	}
	return vm.Out
}

// Interpreter returns the VM's interpreter.
func (vm *VM) Interpreter() *Interpreter {
	return vm.interpreter
}

// GlobalNames returns the names of the global slots in slot order.
func (vm *VM) GlobalNames() []string {
	return append([]string(nil), vm.globalNames...)
}

// LookupGlobal returns the value of a global by name.
func (vm *VM) LookupGlobal(name string) (Value, bool) {
	for i := len(vm.globalNames) - 1; i >= 0; i-- {
		if vm.globalNames[i] == name {
			v, err := vm.Globals.Get(i, 0)
			return v, err == nil
		}
	}
	return nil, false
}

// Warnings returns the non-fatal problems of the last run.
func (vm *VM) Warnings() []string {
	return vm.interpreter.Warnings()
}

// Compile compiles source into the program and grows the global frame to
// cover any new globals. It returns the entry address.
func (vm *VM) Compile(source string) (Addr, error) {
	if vm.compilerBackend == nil {
		return InvalidAddr, errors.New("no compiler backend configured")
	}
	entry, err := vm.compilerBackend.Compile(source, vm.Program)
	if err != nil {
		return InvalidAddr, err
	}
	vm.globalNames = vm.compilerBackend.GlobalNames()
	vm.Globals.GrowTo(len(vm.globalNames))
	log.Debugf("compiled %d instructions at %08x using %s",
		int(vm.Program.Len()-entry), uint32(entry), vm.compilerBackend.Name())
	return entry, nil
}

// Eval compiles and runs source, returning the value of its last statement.
func (vm *VM) Eval(ctx context.Context, source string) (Value, error) {
	entry, err := vm.Compile(source)
	if err != nil {
		return nil, err
	}
	return vm.Run(ctx, entry)
}

// Run starts execution at entry with the global frame current.
func (vm *VM) Run(ctx context.Context, entry Addr) (Value, error) {
	vm.interpreter.Reset(entry, vm.Globals)
	vm.stepBase = 0
	return vm.run(ctx)
}

// Resume continues a run suspended by ErrStepLimit, with a fresh MaxSteps
// allowance.
func (vm *VM) Resume(ctx context.Context) (Value, error) {
	if vm.interpreter.Done() {
		return nil, errors.New("nothing to resume")
	}
	vm.stepBase = vm.interpreter.Steps()
	return vm.run(ctx)
}

func (vm *VM) run(ctx context.Context) (Value, error) {
	in := vm.interpreter
	budget := vm.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	for !in.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		burst := budget
		if vm.MaxSteps > 0 {
			remaining := vm.MaxSteps - (in.Steps() - vm.stepBase)
			if remaining <= 0 {
				return nil, fmt.Errorf("%w after %d instructions", ErrStepLimit, vm.MaxSteps)
			}
			if remaining < int64(burst) {
				burst = int(remaining)
			}
		}
		if _, err := in.Exec(burst); err != nil {
			return nil, err
		}
	}

	if len(in.values) == 0 {
		return Null{}, nil
	}
	return in.Pop()
}
