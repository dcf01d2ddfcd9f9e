package vm

import (
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Env: run-time variable frames
// ---------------------------------------------------------------------------

// Env is one frame of the environment chain. The parent link is fixed at
// creation; only slot values change afterwards. Frames are shared between
// the environment stack, closures and child frames, and are reclaimed by the
// garbage collector once unreachable.
type Env struct {
	parent *Env
	slots  []Value
}

// NewEnv creates a frame of size slots, seeded with init and null-padded.
func NewEnv(parent *Env, size int, init []Value) *Env {
	if size < len(init) {
		size = len(init)
	}
	slots := make([]Value, size)
	n := copy(slots, init)
	for i := n; i < size; i++ {
		slots[i] = Null{}
	}
	return &Env{parent: parent, slots: slots}
}

// Parent returns the enclosing frame, or nil for the global frame.
func (e *Env) Parent() *Env {
	return e.parent
}

// Len returns the number of slots in the frame.
func (e *Env) Len() int {
	return len(e.slots)
}

// Slots returns a copy of the frame's values.
func (e *Env) Slots() []Value {
	return append([]Value(nil), e.slots...)
}

// frame walks depth parent links.
func (e *Env) frame(depth int) (*Env, error) {
	f := e
	for i := 0; i < depth; i++ {
		if f.parent == nil {
			return nil, fmt.Errorf("%w: depth %d", ErrInvalidDepth, depth)
		}
		f = f.parent
	}
	return f, nil
}

// Get reads slot in the frame depth links out.
func (e *Env) Get(slot, depth int) (Value, error) {
	f, err := e.frame(depth)
	if err != nil {
		return nil, err
	}
	if slot < 0 || slot >= len(f.slots) {
		return nil, fmt.Errorf("%w: slot %d at depth %d", ErrInvalidSlot, slot, depth)
	}
	return f.slots[slot], nil
}

// Set writes slot in the frame depth links out.
func (e *Env) Set(slot, depth int, v Value) error {
	f, err := e.frame(depth)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(f.slots) {
		return fmt.Errorf("%w: slot %d at depth %d", ErrInvalidSlot, slot, depth)
	}
	f.slots[slot] = v
	return nil
}

// GrowTo extends the frame to size slots, null-filling new ones. Only the
// global frame grows, as successive compilations add globals.
func (e *Env) GrowTo(size int) {
	for len(e.slots) < size {
		e.slots = append(e.slots, Null{})
	}
}

// Truncate shrinks the frame to size slots.
func (e *Env) Truncate(size int) {
	if size < len(e.slots) {
		e.slots = e.slots[:size]
	}
}

// Dump writes the chain from e outward, one frame per line.
func (e *Env) Dump(w io.Writer) {
	level := 0
	for f := e; f != nil; f = f.parent {
		fmt.Fprintf(w, "env[%d]:", level)
		for i, v := range f.slots {
			fmt.Fprintf(w, " %d=%s", i, Repr(v))
		}
		fmt.Fprintln(w)
		level++
	}
}
