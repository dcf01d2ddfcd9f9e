package vm

import (
	"errors"
	"fmt"
)

// Run-time failure causes. A *RunError wraps one of these.
var (
	ErrValueUnderflow  = errors.New("value stack underflow")
	ErrEnvUnderflow    = errors.New("environment stack underflow")
	ErrReturnUnderflow = errors.New("return stack underflow")
	ErrInvalidSlot     = errors.New("invalid slot")
	ErrInvalidDepth    = errors.New("invalid depth")
	ErrInvalidLiteral  = errors.New("invalid literal index")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrNotCallable     = errors.New("value is not callable")
	ErrArity           = errors.New("wrong number of arguments")
)

// ErrStepLimit is returned when a run stops at MaxSteps. It is not a
// failure: the interpreter state is intact and Resume continues.
var ErrStepLimit = errors.New("step limit reached")

// RunError is a failure raised while executing the instruction at Addr.
type RunError struct {
	Addr Addr
	Op   Opcode
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("runtime error at %08x (%s): %v", uint32(e.Addr), e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
