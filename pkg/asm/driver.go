package asm

import (
	"github.com/hmny-toolchain/n2t-codegen/pkg/diag"
	"github.com/hmny-toolchain/n2t-codegen/pkg/hack"
)

// ----------------------------------------------------------------------------
// Asm Driver

// The Driver orchestrates the two passes that turn an 'asm.Program' into a 'hack.Program'
// plus the Symbol Table that resolves every label/variable reference inside it.
//
// Pass 1 walks the program counting only the real (non label-declaration) instructions,
// binding each label declaration to the ROM index of the instruction that immediately
// follows it. Predefined symbols always win: a label colliding with one is simply left
// alone rather than rebound. Every other label declaration is bound unconditionally via
// 'SymbolTable.BindLabel', which itself tolerates a repeat binding to the same address
// and rejects a genuine redefinition (the same name at two different addresses).
// Pass 2 re-walks the program, lowering every A/C instruction and resolving variables
// against the table built in Pass 1 (new variable names are allocated lazily, by the
// Hack Code Generator, the first time they're seen).
type Driver struct {
	program Program
	lowerer Lowerer
	module  string
}

// Initializes and returns to the caller a brand new 'Driver' struct.
func NewDriver(module string, p Program) Driver {
	return Driver{program: p, lowerer: NewLowerer(), module: module}
}

// Runs Pass 1 (label binding) followed by Pass 2 (instruction lowering) and returns the
// resulting 'hack.Program' together with the Symbol Table Pass 2 should keep resolving
// variables against (handed to 'hack.NewCodeGenerator' by the caller).
func (d *Driver) Run() (hack.Program, hack.SymbolTable, error) {
	table := hack.NewSymbolTable()
	if err := d.bindLabels(&table); err != nil {
		return nil, table, err
	}
	program, err := d.lowerInstructions(&table)
	if err != nil {
		return nil, table, err
	}
	return program, table, nil
}

// Pass 1: binds every label declaration to the ROM index of the instruction following it.
// A label colliding with a predefined symbol is left untouched (first-wins); a label
// re-declared at a genuinely different address is a Redefinition error.
func (d *Driver) bindLabels(table *hack.SymbolTable) error {
	romIndex := uint16(0)

	for _, inst := range d.program {
		switch decl := inst.(type) {
		case LabelDecl:
			if _, builtin := hack.BuiltInTable[decl.Name]; builtin {
				continue // Predefined symbols always win, never rebound
			}
			if err := table.BindLabel(decl.Name, romIndex); err != nil {
				return diag.Wrap(diag.Redefinition, d.module, 0, err)
			}
		default:
			romIndex++
		}
	}

	return nil
}

// Pass 2: lowers every A/C instruction to its 'hack' counterpart, skipping label
// declarations entirely (they carry no ROM footprint of their own).
func (d *Driver) lowerInstructions(table *hack.SymbolTable) (hack.Program, error) {
	out := make(hack.Program, 0, len(d.program))

	for _, inst := range d.program {
		switch asmInst := inst.(type) {
		case AInstruction:
			hackInst, err := d.lowerer.HandleAInst(asmInst)
			if err != nil {
				return nil, diag.Wrap(diag.Semantic, d.module, 0, err)
			}
			out = append(out, hackInst)

		case CInstruction:
			hackInst, err := d.lowerer.HandleCInst(asmInst)
			if err != nil {
				return nil, diag.Wrap(diag.Semantic, d.module, 0, err)
			}
			out = append(out, hackInst)

		case LabelDecl:
			continue // Already resolved during Pass 1
		}
	}

	return out, nil
}
