package vm

import (
	"github.com/hmny-toolchain/n2t-codegen/pkg/asm"
	"github.com/hmny-toolchain/n2t-codegen/pkg/diag"
)

// ----------------------------------------------------------------------------
// Vm Driver

// The Driver orchestrates translation of a whole 'vm.Program' (one or many modules) into
// a single flat 'asm.Program', keeping one 'CodeGenerator' alive across every module so its
// comparison and call-site counters never reset mid translation unit.
type Driver struct {
	program    map[string]Module // Module name (the '.vm' file's base name) to its operations
	order      []string          // Module names in the order they should be emitted
	bootstrap  bool              // Whether to emit the 'SP=256; call Sys.init 0' prelude
	haltEnding bool              // Whether to append the single-file infinite-loop epilogue
	haltComp   string            // Comp mnemonic of the halt instruction, defaults to "0"
	haltJump   string            // Jump mnemonic of the halt instruction, defaults to "JMP"
	codegen    *CodeGenerator
}

// Initializes and returns to the caller a brand new 'Driver' struct, with the halt sequence
// defaulted to the classic "0;JMP" self-jump; override it with WithHaltSequence.
//
// 'order' fixes deterministic module emission order (the caller is expected to have sorted
// it, e.g. by file name); 'bootstrap' and 'haltEnding' are mutually exclusive in practice
// (directory mode bootstraps, single-file mode halts) but the Driver itself doesn't enforce
// that, it just emits whichever of the two the caller asks for.
func NewDriver(program map[string]Module, order []string, bootstrap, haltEnding bool) Driver {
	return Driver{
		program: program, order: order, bootstrap: bootstrap, haltEnding: haltEnding,
		haltComp: "0", haltJump: "JMP", codegen: NewCodeGenerator(),
	}
}

// WithHaltSequence overrides the comp/jump mnemonics of the single-file halt instruction,
// e.g. from an internal/config.Config loaded by a CLI. A blank 'comp' or 'jump' leaves the
// corresponding default untouched.
func (d Driver) WithHaltSequence(comp, jump string) Driver {
	if comp != "" {
		d.haltComp = comp
	}
	if jump != "" {
		d.haltJump = jump
	}
	return d
}

// Run translates every module in 'order' and returns the concatenated 'asm.Program'.
func (d *Driver) Run() (asm.Program, error) {
	out := asm.Program{}

	if d.bootstrap {
		prelude, err := d.codegen.Bootstrap()
		if err != nil {
			return nil, diag.Wrap(diag.Semantic, "bootstrap", 0, err)
		}
		out = append(out, prelude...)
	}

	for _, name := range d.order {
		module, found := d.program[name]
		if !found {
			return nil, diag.At(diag.Semantic, name, 0, "module listed in emission order but not found in program")
		}

		d.codegen.SetModule(name)
		for _, op := range module {
			lowered, err := d.codegen.Generate(op)
			if err != nil {
				return nil, diag.Wrap(diag.Semantic, name, 0, err)
			}
			out = append(out, lowered...)
		}
	}

	if d.haltEnding {
		out = append(out, d.codegen.InfiniteLoop(d.haltComp, d.haltJump)...)
	}

	return out, nil
}
