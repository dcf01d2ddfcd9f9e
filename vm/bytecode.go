package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the 6-bit operation selector of an instruction.
type Opcode uint8

// Environment and variable operations
const (
	OpPOPENV Opcode = 0x01 // pop n frames off the environment stack
	OpGETVAR Opcode = 0x02 // push frame[depth][slot]
	OpSETVAR Opcode = 0x03 // pop, store into frame[depth][slot], push back
	OpNEWENV Opcode = 0x04 // pop params values into a new child frame of size total
)

// Stack and call operations
const (
	OpPUSHLIT Opcode = 0x07 // push literals[index]
	OpCALL    Opcode = 0x08 // call with argc arguments
	OpRET     Opcode = 0x09 // restore caller frame and return address
	OpPOPVAL  Opcode = 0x0A // discard n values
	OpCLOSURE Opcode = 0x0B // push closure of addr over the current frame
)

// Arithmetic and test
const (
	OpADD  Opcode = 0x10
	OpSUB  Opcode = 0x11
	OpMUL  Opcode = 0x12
	OpDIV  Opcode = 0x13
	OpTEST Opcode = 0x14 // pop, set flag to truthiness
)

// Control flow
const (
	OpJMP Opcode = 0x20 // unconditional jump
	OpJT  Opcode = 0x21 // jump if flag set
	OpJF  Opcode = 0x22 // jump if flag clear

	OpHALT Opcode = 0x3F
)

// Addr is an instruction address.
type Addr uint32

// InvalidAddr is the sentinel address: it terminates execution and marks
// unresolved jump targets.
const InvalidAddr Addr = 0x3FFFFFF

// Operand field limits.
const (
	Max26 = 1<<26 - 1
	Max12 = 1<<12 - 1
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandFormat says how an instruction's 26 operand bits are split.
type OperandFormat int

const (
	FormatNone  OperandFormat = iota // unused
	Format26                         // one 26-bit field
	Format12                         // one 12-bit field
	Format12x12                      // two 12-bit fields, a<<12 | b
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string // mnemonic used by the disassembler
	Format OperandFormat
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpPOPENV:  {"popenv", Format12},
	OpGETVAR:  {"getvar", Format12x12},
	OpSETVAR:  {"setvar", Format12x12},
	OpNEWENV:  {"newenv", Format12x12},
	OpPUSHLIT: {"pushlit", Format26},
	OpCALL:    {"call", Format12},
	OpRET:     {"ret", FormatNone},
	OpPOPVAL:  {"popval", Format12},
	OpCLOSURE: {"closure", Format26},
	OpADD:     {"add", FormatNone},
	OpSUB:     {"sub", FormatNone},
	OpMUL:     {"mul", FormatNone},
	OpDIV:     {"div", FormatNone},
	OpTEST:    {"test", FormatNone},
	OpJMP:     {"jmp", Format26},
	OpJT:      {"jt", Format26},
	OpJF:      {"jf", Format26},
	OpHALT:    {"halt", FormatNone},
}

// Info returns the metadata for an opcode. Unknown opcodes report ok false.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// Name returns the mnemonic for an opcode, "???" if unknown.
func (op Opcode) Name() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return "???"
}

func (op Opcode) String() string {
	return op.Name()
}

// IsJump reports whether the opcode's 26-bit field is a code address.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJMP, OpJT, OpJF, OpCLOSURE:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is a decoded instruction. For Format26 and Format12 the
// operand is A; for Format12x12 the operands are A and B.
type Instruction struct {
	Op Opcode
	A  uint32
	B  uint32
}

func (ins Instruction) String() string {
	info, ok := ins.Op.Info()
	if !ok {
		return fmt.Sprintf("??? %#x", ins.A)
	}
	switch info.Format {
	case Format26, Format12:
		return fmt.Sprintf("%s %d", info.Name, ins.A)
	case Format12x12:
		return fmt.Sprintf("%s %d,%d", info.Name, ins.A, ins.B)
	}
	return info.Name
}

// Validate checks the operands against the opcode's field widths.
func (ins Instruction) Validate() error {
	info, ok := ins.Op.Info()
	if !ok {
		return fmt.Errorf("unknown opcode %#02x", uint8(ins.Op))
	}
	switch info.Format {
	case Format26:
		if ins.A > Max26 {
			return fmt.Errorf("%s: operand %d exceeds 26 bits", info.Name, ins.A)
		}
	case Format12:
		if ins.A > Max12 {
			return fmt.Errorf("%s: operand %d exceeds 12 bits", info.Name, ins.A)
		}
	case Format12x12:
		if ins.A > Max12 || ins.B > Max12 {
			return fmt.Errorf("%s: operands %d,%d exceed 12 bits", info.Name, ins.A, ins.B)
		}
	}
	return nil
}

// Encode packs the instruction into a 32-bit word: the opcode in the top six
// bits, the operand field in the low 26.
func (ins Instruction) Encode() uint32 {
	op := uint32(ins.Op&0x3F) << 26
	if ins.Op == OpHALT {
		return op | uint32(InvalidAddr)
	}
	info, _ := ins.Op.Info()
	switch info.Format {
	case Format12:
		return op | ins.A&Max12
	case Format12x12:
		return op | (ins.A&Max12)<<12 | ins.B&Max12
	}
	return op | ins.A&Max26
}

// Decode unpacks a 32-bit word. Words with unknown opcodes decode with the
// raw operand field in A.
func Decode(word uint32) Instruction {
	op := Opcode(word >> 26)
	operand := word & Max26
	info, ok := op.Info()
	if !ok {
		return Instruction{Op: op, A: operand}
	}
	switch info.Format {
	case FormatNone:
		return Instruction{Op: op}
	case Format12:
		return Instruction{Op: op, A: operand & Max12}
	case Format12x12:
		return Instruction{Op: op, A: operand >> 12 & Max12, B: operand & Max12}
	}
	return Instruction{Op: op, A: operand}
}
