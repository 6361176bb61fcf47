package hack

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/hmny-toolchain/n2t-codegen/pkg/diag"
)

// ----------------------------------------------------------------------------
// Symbol Table

// Maps symbolic names (labels and variables) to their 15-bit RAM/ROM address.
//
// Predefined symbols (SP, LCL, ARG, THIS, THAT, R0-R15, SCREEN, KBD) are immutable
// and always win over user-defined labels of the same name: 'Contains' and 'Get'
// consult 'BuiltInTable' before the mutable map below. A caller that wants to keep
// a predefined symbol from ever being shadowed by a label must guard explicitly
// against 'BuiltInTable' itself (see the Assembler Driver's Pass 1), since
// 'BindLabel' binds unconditionally and only rejects a genuine redefinition.
type SymbolTable struct {
	bindings map[string]uint16
	nextVar  uint16 // Next free RAM address for variable allocation, starts at 16.
}

// FirstVariableAddress is the first RAM slot available for variable allocation;
// addresses below it are reserved for the VM's segment pointers and scratch.
const FirstVariableAddress uint16 = 16

// LastVariableAddress is the last RAM slot available for variable allocation,
// the boundary before the statically mapped screen/keyboard I/O region begins.
const LastVariableAddress uint16 = 16383

// NewSymbolTable returns a table with no user bindings and the variable
// allocator primed at the first free RAM slot.
func NewSymbolTable() SymbolTable {
	return SymbolTable{bindings: map[string]uint16{}, nextVar: FirstVariableAddress}
}

// Contains reports whether 'name' already resolves to an address, either
// because it's a predefined symbol or because it was previously bound/allocated.
func (st SymbolTable) Contains(name string) bool {
	if _, ok := BuiltInTable[name]; ok {
		return true
	}
	_, ok := st.bindings[name]
	return ok
}

// Get resolves 'name' to its address. The second return value is false when
// the name is neither predefined nor yet bound.
func (st SymbolTable) Get(name string) (uint16, bool) {
	if addr, ok := BuiltInTable[name]; ok {
		return addr, true
	}
	addr, ok := st.bindings[name]
	return addr, ok
}

// BindLabel binds 'name' to 'addr', used by Pass 1 of the Assembler Driver to
// record label declarations at their ROM index. Re-binding an existing label
// to a different address is a Redefinition error; re-binding to the same
// address is tolerated as a no-op. Calling this directly for a predefined
// symbol's name never actually shadows it ('Get' answers from 'BuiltInTable'
// first, so nothing is written into 'bindings') but, since the ROM index essentially
// never equals that symbol's fixed address, it would surface as a spurious
// Redefinition error instead of the silent first-wins behavior predefined
// symbols are supposed to get; that's why the Driver checks 'BuiltInTable'
// itself before ever calling BindLabel.
func (st *SymbolTable) BindLabel(name string, addr uint16) error {
	if existing, ok := st.Get(name); ok {
		if existing == addr {
			return nil
		}
		return errors.Errorf("cannot redefine symbol '%s': already bound to %d", name, existing)
	}
	st.bindings[name] = addr
	return nil
}

// AllocateVariable assigns 'name' the next free RAM slot if it isn't already
// bound, advancing the shared allocator; re-allocating an already-bound name
// is a no-op that returns its existing address. Fails with an AddressSpace
// error once the allocator would overflow LastVariableAddress.
func (st *SymbolTable) AllocateVariable(name string) (uint16, error) {
	if addr, ok := st.Get(name); ok {
		return addr, nil
	}
	if st.nextVar > LastVariableAddress {
		return 0, diag.New(diag.AddressSpace, fmt.Sprintf("variable address space exhausted allocating '%s'", name))
	}
	addr := st.nextVar
	st.bindings[name] = addr
	st.nextVar++
	return addr, nil
}
