package compiler

import "github.com/chazu/sabri/vm"

// ---------------------------------------------------------------------------
// Fixup contexts: forward jumps resolved when a construct closes
// ---------------------------------------------------------------------------

// fixupContext belongs to an open loop or function body. It records the
// scope level and value-stack temporaries at which the construct began and
// the jumps whose target is not known until it ends.
type fixupContext struct {
	level   int     // scope level when the context opened
	temps   int     // expression temporaries below the construct
	start   vm.Addr // loop start, the target of continue
	pending []vm.Addr
}

// add records the jump at addr as pending.
func (f *fixupContext) add(addr vm.Addr) {
	f.pending = append(f.pending, addr)
}

// resolve patches every pending jump to target.
func (f *fixupContext) resolve(prog *vm.Program, target vm.Addr) error {
	for _, addr := range f.pending {
		if err := prog.Patch(addr, target); err != nil {
			return err
		}
	}
	f.pending = nil
	return nil
}

// fixupStack is a stack of open contexts, innermost last.
type fixupStack []*fixupContext

func (s *fixupStack) push(level, temps int, start vm.Addr) *fixupContext {
	f := &fixupContext{level: level, temps: temps, start: start}
	*s = append(*s, f)
	return f
}

func (s *fixupStack) pop() *fixupContext {
	old := *s
	f := old[len(old)-1]
	*s = old[:len(old)-1]
	return f
}

func (s fixupStack) top() *fixupContext {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}
