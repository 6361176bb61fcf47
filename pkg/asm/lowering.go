package asm

import (
	"fmt"
	"strconv"

	"github.com/hmny-toolchain/n2t-codegen/pkg/hack"
)

// ----------------------------------------------------------------------------
// Asm Lowerer

// The Lowerer converts individual 'asm' instruction nodes to their 'hack' counterpart.
//
// It knows nothing about ROM addresses or the Symbol Table, that bookkeeping belongs to the
// Driver's two passes (see driver.go); this type only ever translates one instruction at a
// time from the Assembler's surface grammar to the Hack package's lower-level representation.
type Lowerer struct{}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
func NewLowerer() Lowerer {
	return Lowerer{}
}

// Specialized function to convert a 'asm.AInstruction' node to an 'hack.AInstruction'.
func (Lowerer) HandleAInst(inst AInstruction) (hack.Instruction, error) {
	if inst.Location == "" { // Pre-check: AInstruction.Location should always be provided
		return nil, fmt.Errorf("'Location' should always be provided")
	}
	// Based on one of the following cases below (the type of the symbol) we do different things:
	// 1) If it's present in the BuiltInTable is we set the 'LocType'to 'BuiltIn' accordingly
	if _, found := hack.BuiltInTable[inst.Location]; found {
		return hack.AInstruction{LocType: hack.BuiltIn, LocName: inst.Location}, nil
	}
	// 2) A digit-leading (or signed) operand is a raw numeral, never a symbol: one that
	// doesn't fit the 15-bit address space is fatal here instead of falling through and
	// silently becoming a fresh variable allocation
	if c := inst.Location[0]; c == '-' || (c >= '0' && c <= '9') {
		if num, err := strconv.ParseInt(inst.Location, 10, 16); err != nil || num < 0 {
			return nil, fmt.Errorf("numeric operand '%s' outside the [0, 32767] range", inst.Location)
		}
		return hack.AInstruction{LocType: hack.Raw, LocName: inst.Location}, nil
	}
	// 3) Else it's a user defined label and we set 'LocType' to 'Label' accordingly
	return hack.AInstruction{LocType: hack.Label, LocName: inst.Location}, nil
}

// Specialized function to convert a 'asm.CInstruction' node to an 'hack.CInstruction'.
//
// 'Dest' and 'Jump' are independent and optional: a C instruction can carry either, both
// or neither (a bare computation is legal, if useless on real hardware), so they're copied
// straight across rather than treated as a mutually exclusive either/or.
func (Lowerer) HandleCInst(inst CInstruction) (hack.Instruction, error) {
	if inst.Comp == "" { // Pre-check: CInstruction.Comp should always be provided
		return nil, fmt.Errorf("'Comp' sub-instruction should always be provided")
	}
	return hack.CInstruction{Dest: inst.Dest, Comp: inst.Comp, Jump: inst.Jump}, nil
}

// Specialized function to extract from a 'asm.LabelDecl' node to the identifier of the label.
func (Lowerer) HandleLabelDecl(inst LabelDecl) (string, error) {
	return inst.Name, nil
}
