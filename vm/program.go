package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Program: the compiled instruction stream and literal pool
// ---------------------------------------------------------------------------

// Program holds decoded instructions and the literal pool. It grows
// monotonically across compilations in one session; literal 0 is always
// null.
type Program struct {
	Code     []Instruction
	Literals []Value

	// Labels and Comments annotate addresses for the disassembler.
	Labels   map[Addr]string
	Comments map[Addr]string
}

// NewProgram creates an empty program with the null literal in slot 0.
func NewProgram() *Program {
	return &Program{
		Literals: []Value{Null{}},
		Labels:   make(map[Addr]string),
		Comments: make(map[Addr]string),
	}
}

// Len returns the address the next instruction will occupy.
func (p *Program) Len() Addr {
	return Addr(len(p.Code))
}

// Emit appends an instruction after checking its operand widths and returns
// its address.
func (p *Program) Emit(op Opcode, a, b uint32) (Addr, error) {
	ins := Instruction{Op: op, A: a, B: b}
	if err := ins.Validate(); err != nil {
		return InvalidAddr, err
	}
	if len(p.Code) >= int(InvalidAddr) {
		return InvalidAddr, fmt.Errorf("program exceeds %d instructions", InvalidAddr)
	}
	p.Code = append(p.Code, ins)
	return Addr(len(p.Code) - 1), nil
}

// At returns the instruction at addr.
func (p *Program) At(addr Addr) (Instruction, bool) {
	if int(addr) >= len(p.Code) {
		return Instruction{}, false
	}
	return p.Code[addr], true
}

// AddLiteral returns the pool index of v, appending it if no equal literal
// exists yet.
func (p *Program) AddLiteral(v Value) (uint32, error) {
	if !LiteralValue(v) {
		return 0, fmt.Errorf("%s cannot be a literal", v.Kind())
	}
	for i, lit := range p.Literals {
		if lit.Kind() == v.Kind() && Equal(lit, v) {
			return uint32(i), nil
		}
	}
	if len(p.Literals) > Max26 {
		return 0, fmt.Errorf("literal pool exceeds %d entries", Max26+1)
	}
	p.Literals = append(p.Literals, v)
	return uint32(len(p.Literals) - 1), nil
}

// Patch sets the target of the jump or closure instruction at addr.
func (p *Program) Patch(addr, target Addr) error {
	ins, ok := p.At(addr)
	if !ok {
		return fmt.Errorf("patch: address %08x out of range", uint32(addr))
	}
	if !ins.Op.IsJump() {
		return fmt.Errorf("patch: %s at %08x has no address operand", ins.Op, uint32(addr))
	}
	if target > Max26 {
		return fmt.Errorf("patch: target %d exceeds 26 bits", target)
	}
	p.Code[addr].A = uint32(target)
	return nil
}

// FixNewEnv rewrites the NEWENV at addr once its scope's size is known.
func (p *Program) FixNewEnv(addr Addr, params, total int) error {
	ins, ok := p.At(addr)
	if !ok || ins.Op != OpNEWENV {
		return fmt.Errorf("fix_newenv: no newenv at %08x", uint32(addr))
	}
	fixed := Instruction{Op: OpNEWENV, A: uint32(params), B: uint32(total)}
	if err := fixed.Validate(); err != nil {
		return err
	}
	p.Code[addr] = fixed
	return nil
}

// Label names addr in disassembly.
func (p *Program) Label(addr Addr, name string) {
	p.Labels[addr] = name
}

// Comment attaches a note to addr in disassembly.
func (p *Program) Comment(addr Addr, text string) {
	if prev, ok := p.Comments[addr]; ok {
		text = prev + "; " + text
	}
	p.Comments[addr] = text
}

// Truncate rolls the program back to codeLen instructions and litLen
// literals, dropping annotations past the cut.
func (p *Program) Truncate(codeLen Addr, litLen int) {
	if int(codeLen) < len(p.Code) {
		p.Code = p.Code[:codeLen]
	}
	if litLen >= 1 && litLen < len(p.Literals) {
		p.Literals = p.Literals[:litLen]
	}
	for addr := range p.Labels {
		if addr >= codeLen {
			delete(p.Labels, addr)
		}
	}
	for addr := range p.Comments {
		if addr >= codeLen {
			delete(p.Comments, addr)
		}
	}
}

// Words encodes the instruction stream as packed 32-bit words.
func (p *Program) Words() []uint32 {
	words := make([]uint32, len(p.Code))
	for i, ins := range p.Code {
		words[i] = ins.Encode()
	}
	return words
}
