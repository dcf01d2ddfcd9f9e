package vm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Images: compiled programs on disk (.sbc)
// ---------------------------------------------------------------------------

// ImageVersion is the current image format version.
const ImageVersion = 1

// Image is the serialized form of a compiled program. Instructions are
// stored as packed 32-bit words.
type Image struct {
	Version  int            `cbor:"version"`
	Entry    uint32         `cbor:"entry"`
	Code     []uint32       `cbor:"code"`
	Literals []ImageLiteral `cbor:"literals"`
	Globals  []string       `cbor:"globals"`
	Labels   []Annotation   `cbor:"labels,omitempty"`
	Comments []Annotation   `cbor:"comments,omitempty"`
}

// Literal kinds in an image.
const (
	LiteralNull uint8 = iota
	LiteralBool
	LiteralNumber
	LiteralString
)

// ImageLiteral is one literal pool entry.
type ImageLiteral struct {
	Kind   uint8   `cbor:"k"`
	Bool   bool    `cbor:"b,omitempty"`
	Number float64 `cbor:"n,omitempty"`
	Str    string  `cbor:"s,omitempty"`
}

// Annotation attaches text to an address.
type Annotation struct {
	Addr uint32 `cbor:"a"`
	Text string `cbor:"t"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func encodeLiteral(v Value) (ImageLiteral, error) {
	switch v := v.(type) {
	case Null:
		return ImageLiteral{Kind: LiteralNull}, nil
	case Bool:
		return ImageLiteral{Kind: LiteralBool, Bool: bool(v)}, nil
	case Number:
		return ImageLiteral{Kind: LiteralNumber, Number: float64(v)}, nil
	case Str:
		return ImageLiteral{Kind: LiteralString, Str: string(v)}, nil
	}
	return ImageLiteral{}, fmt.Errorf("%s literal cannot be stored in an image", v.Kind())
}

func (l ImageLiteral) value() (Value, error) {
	switch l.Kind {
	case LiteralNull:
		return Null{}, nil
	case LiteralBool:
		return Bool(l.Bool), nil
	case LiteralNumber:
		return Number(l.Number), nil
	case LiteralString:
		return Str(l.Str), nil
	}
	return nil, fmt.Errorf("unknown literal kind %d", l.Kind)
}

// Image snapshots the VM's program and global names with entry as the
// start address.
func (vm *VM) Image(entry Addr) (*Image, error) {
	img := &Image{
		Version: ImageVersion,
		Entry:   uint32(entry),
		Code:    vm.Program.Words(),
		Globals: vm.GlobalNames(),
	}
	for _, lit := range vm.Program.Literals {
		l, err := encodeLiteral(lit)
		if err != nil {
			return nil, err
		}
		img.Literals = append(img.Literals, l)
	}
	for _, addr := range sortedAddrs(vm.Program.Labels) {
		img.Labels = append(img.Labels, Annotation{Addr: uint32(addr), Text: vm.Program.Labels[addr]})
	}
	for _, addr := range sortedAddrs(vm.Program.Comments) {
		img.Comments = append(img.Comments, Annotation{Addr: uint32(addr), Text: vm.Program.Comments[addr]})
	}
	return img, nil
}

// Program decodes the image's code and literals.
func (img *Image) Program() (*Program, error) {
	prog := ProgramFromWords(img.Code)
	prog.Literals = prog.Literals[:0]
	for i, l := range img.Literals {
		v, err := l.value()
		if err != nil {
			return nil, fmt.Errorf("literal %d: %w", i, err)
		}
		prog.Literals = append(prog.Literals, v)
	}
	if len(prog.Literals) == 0 {
		prog.Literals = append(prog.Literals, Null{})
	}
	for _, a := range img.Labels {
		prog.Labels[Addr(a.Addr)] = a.Text
	}
	for _, a := range img.Comments {
		prog.Comments[Addr(a.Addr)] = a.Text
	}
	return prog, nil
}

// EncodeImage serializes an image to canonical CBOR.
func EncodeImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// DecodeImage deserializes an image and checks its version.
func DecodeImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("vm: unsupported image version %d", img.Version)
	}
	return &img, nil
}

// WriteImageFile encodes img to path.
func WriteImageFile(path string, img *Image) error {
	data, err := EncodeImage(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadImageFile decodes the image at path.
func ReadImageFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// LoadImage replaces the VM's program with the image's. The image's
// globals must begin with this VM's builtins, in the same order. Globals
// beyond the builtins start as null until the entry code runs.
func (vm *VM) LoadImage(img *Image) error {
	builtins := BuiltinNames()
	if len(img.Globals) < len(builtins) {
		return errors.New("vm: image is missing builtin globals")
	}
	for i, name := range builtins {
		if img.Globals[i] != name {
			return fmt.Errorf("vm: image global %d is %q, want builtin %q", i, img.Globals[i], name)
		}
	}
	prog, err := img.Program()
	if err != nil {
		return err
	}

	vm.Program = prog
	vm.Globals.Truncate(vm.builtins)
	vm.Globals.GrowTo(len(img.Globals))
	vm.globalNames = append([]string(nil), img.Globals...)
	vm.interpreter = NewInterpreter(prog, vm.Globals)
	if vm.compileFunc != nil {
		vm.compilerBackend = vm.compileFunc(vm.GlobalNames())
	}
	return nil
}

// RunImage loads img and runs it from its entry address.
func (vm *VM) RunImage(ctx context.Context, img *Image) (Value, error) {
	if err := vm.LoadImage(img); err != nil {
		return nil, err
	}
	return vm.Run(ctx, Addr(img.Entry))
}
