package vm

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble writes a listing of the program: a banner, then one line per
// instruction with address, packed word, mnemonic, operands and comment,
// then the literal pool.
func (p *Program) Disassemble(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("; sabri bytecode\n")
	fmt.Fprintf(&sb, "; %d instructions, %d literals\n", len(p.Code), len(p.Literals))

	for i, ins := range p.Code {
		addr := Addr(i)
		if label, ok := p.Labels[addr]; ok {
			fmt.Fprintf(&sb, ".%s:\n", label)
		}
		line := fmt.Sprintf("%08x:   %08x   %s", uint32(addr), ins.Encode(), operandText(ins))
		if comment, ok := p.Comments[addr]; ok {
			line = fmt.Sprintf("%-44s ; %s", line, comment)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	sb.WriteString("; literals\n")
	for i, lit := range p.Literals {
		fmt.Fprintf(&sb, "[%5d ] %s\n", i, Repr(lit))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// DisassembleString returns the listing as a string.
func (p *Program) DisassembleString() string {
	var sb strings.Builder
	_ = p.Disassemble(&sb)
	return sb.String()
}

func operandText(ins Instruction) string {
	info, ok := ins.Op.Info()
	if !ok {
		return fmt.Sprintf("???      %#x", ins.A)
	}
	switch info.Format {
	case Format26:
		if ins.Op.IsJump() {
			return fmt.Sprintf("%-8s %08x", info.Name, ins.A)
		}
		return fmt.Sprintf("%-8s %d", info.Name, ins.A)
	case Format12:
		return fmt.Sprintf("%-8s %d", info.Name, ins.A)
	case Format12x12:
		return fmt.Sprintf("%-8s %d,%d", info.Name, ins.A, ins.B)
	}
	return info.Name
}

// ProgramFromWords decodes packed words into a program. Literals and
// annotations are left for the caller to fill.
func ProgramFromWords(words []uint32) *Program {
	p := NewProgram()
	p.Code = make([]Instruction, len(words))
	for i, w := range words {
		p.Code[i] = Decode(w)
	}
	return p
}

// sortedAddrs returns the keys of an annotation map in address order.
func sortedAddrs(m map[Addr]string) []Addr {
	addrs := make([]Addr, 0, len(m))
	for a := range m {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}
