// Package vm implements the sabri virtual machine.
//
// This package contains:
//   - the 32-bit instruction encoding and the Program it lives in
//   - the closed Value set and the environment chain
//   - the bytecode interpreter and the builtin natives
//   - the VM session and its .sbc image format
package vm
