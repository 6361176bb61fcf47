package vm_test

import (
	"testing"

	"github.com/hmny-toolchain/n2t-codegen/pkg/asm"
	"github.com/hmny-toolchain/n2t-codegen/pkg/vm"
)

func lastLabel(t *testing.T, instructions []asm.Instruction) string {
	t.Helper()
	for i := len(instructions) - 1; i >= 0; i-- {
		if decl, ok := instructions[i].(asm.LabelDecl); ok {
			return decl.Name
		}
	}
	t.Fatalf("no label declaration found in %#v", instructions)
	return ""
}

func countAInst(instructions []asm.Instruction, location string) int {
	count := 0
	for _, inst := range instructions {
		if a, ok := inst.(asm.AInstruction); ok && a.Location == location {
			count++
		}
	}
	return count
}

func TestMemoryOps(t *testing.T) {
	cg := vm.NewCodeGenerator()
	cg.SetModule("Main")

	t.Run("push constant", func(t *testing.T) {
		out, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 17})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if countAInst(out, "17") == 0 {
			t.Fatalf("expected an A instruction referencing the constant, got %#v", out)
		}
		if countAInst(out, "SP") == 0 {
			t.Fatalf("expected the stack pointer to be touched, got %#v", out)
		}
	})

	t.Run("pop constant is illegal", func(t *testing.T) {
		if _, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0}); err == nil {
			t.Fatalf("expected an error popping into the 'constant' pseudo-segment")
		}
	})

	t.Run("temp bound checking", func(t *testing.T) {
		if _, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8}); err == nil {
			t.Fatalf("expected an error for an out of bound 'temp' offset")
		}
	})

	t.Run("pointer bound checking", func(t *testing.T) {
		if _, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 2}); err == nil {
			t.Fatalf("expected an error for an out of bound 'pointer' offset")
		}
	})

	t.Run("pointer maps to THIS/THAT", func(t *testing.T) {
		out, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0})
		if err != nil || countAInst(out, "THIS") == 0 {
			t.Fatalf("expected offset 0 to reference THIS, got %#v (err %s)", out, err)
		}

		out, err = cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 1})
		if err != nil || countAInst(out, "THAT") == 0 {
			t.Fatalf("expected offset 1 to reference THAT, got %#v (err %s)", out, err)
		}
	})

	t.Run("static namespaces by module", func(t *testing.T) {
		out, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 3})
		if err != nil || countAInst(out, "Main.3") == 0 {
			t.Fatalf("expected 'Main.3' static symbol, got %#v (err %s)", out, err)
		}
	})

	t.Run("local/argument/this/that resolve through the segment base", func(t *testing.T) {
		out, err := cg.GenerateMemoryOp(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 2})
		if err != nil || countAInst(out, "LCL") == 0 {
			t.Fatalf("expected a reference to LCL, got %#v (err %s)", out, err)
		}
	})
}

func TestArithmeticOps(t *testing.T) {
	cg := vm.NewCodeGenerator()

	t.Run("binary ops touch SP twice", func(t *testing.T) {
		for _, op := range []vm.ArithOpType{vm.Add, vm.Sub, vm.And, vm.Or} {
			out, err := cg.GenerateArithmeticOp(vm.ArithmeticOp{Operation: op})
			if err != nil {
				t.Fatalf("unexpected error for %s: %s", op, err)
			}
			if countAInst(out, "SP") < 2 {
				t.Fatalf("expected %s to touch SP at least twice, got %#v", op, out)
			}
		}
	})

	t.Run("unary ops leave SP untouched", func(t *testing.T) {
		for _, op := range []vm.ArithOpType{vm.Neg, vm.Not} {
			out, err := cg.GenerateArithmeticOp(vm.ArithmeticOp{Operation: op})
			if err != nil {
				t.Fatalf("unexpected error for %s: %s", op, err)
			}
			if countAInst(out, "SP") != 1 {
				t.Fatalf("expected %s to reference SP exactly once, got %#v", op, out)
			}
		}
	})

	t.Run("comparisons allocate fresh TRUE/CONT labels each time", func(t *testing.T) {
		first, err := cg.GenerateArithmeticOp(vm.ArithmeticOp{Operation: vm.Eq})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		second, err := cg.GenerateArithmeticOp(vm.ArithmeticOp{Operation: vm.Gt})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if lastLabel(t, first) == lastLabel(t, second) {
			t.Fatalf("expected distinct comparison labels, got %s twice", lastLabel(t, first))
		}
	})
}

func TestBranching(t *testing.T) {
	cg := vm.NewCodeGenerator()

	t.Run("labels and jumps are namespaced by the enclosing function", func(t *testing.T) {
		if _, err := cg.GenerateFuncDecl(vm.FuncDecl{Name: "Main.fibonacci", NLocal: 0}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		decl, err := cg.GenerateLabelDecl(vm.LabelDecl{Name: "LOOP"})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if lastLabel(t, decl) != "Main.fibonacci$LOOP" {
			t.Fatalf("expected namespaced label, got %s", lastLabel(t, decl))
		}

		jump, err := cg.GenerateGotoOp(vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP"})
		if err != nil || countAInst(jump, "Main.fibonacci$LOOP") == 0 {
			t.Fatalf("expected a jump targeting the namespaced label, got %#v (err %s)", jump, err)
		}
	})

	t.Run("if-goto pops before branching", func(t *testing.T) {
		out, err := cg.GenerateGotoOp(vm.GotoOp{Jump: vm.Conditional, Label: "END"})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if countAInst(out, "SP") == 0 {
			t.Fatalf("expected the conditional jump to pop the stack, got %#v", out)
		}
	})
}

func TestFunctionProtocol(t *testing.T) {
	cg := vm.NewCodeGenerator()

	t.Run("function pushes nLocal zeros", func(t *testing.T) {
		out, err := cg.GenerateFuncDecl(vm.FuncDecl{Name: "Main.f", NLocal: 3})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if countAInst(out, "SP") != 3*2 {
			t.Fatalf("expected 3 local-zeroing pushes touching SP twice each, got %#v", out)
		}
	})

	t.Run("two calls to the same callee get distinct return labels", func(t *testing.T) {
		first, err := cg.GenerateFuncCallOp(vm.FuncCallOp{Name: "Main.f", NArgs: 0})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		second, err := cg.GenerateFuncCallOp(vm.FuncCallOp{Name: "Main.f", NArgs: 0})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if lastLabel(t, first) == lastLabel(t, second) {
			t.Fatalf("expected distinct call-site return labels, got %s twice", lastLabel(t, first))
		}
	})

	t.Run("return snapshots retAddr before restoring LCL", func(t *testing.T) {
		out, err := cg.GenerateReturnOp(vm.ReturnOp{})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		r14Write, lclWrite := -1, -1
		for i, inst := range out {
			c, ok := inst.(asm.CInstruction)
			if !ok || c.Dest != "M" || c.Comp != "D" {
				continue
			}
			if a, ok := out[i-1].(asm.AInstruction); ok {
				switch a.Location {
				case "R14":
					r14Write = i
				case "LCL":
					lclWrite = i
				}
			}
		}
		if r14Write == -1 || lclWrite == -1 {
			t.Fatalf("expected both an R14 and an LCL write in %#v", out)
		}
		if r14Write > lclWrite {
			t.Fatalf("retAddr (R14) must be captured before LCL is restored")
		}
	})
}

func TestBootstrapAndEpilogue(t *testing.T) {
	cg := vm.NewCodeGenerator()

	t.Run("bootstrap sets SP to 256 and calls Sys.init", func(t *testing.T) {
		out, err := cg.Bootstrap()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if countAInst(out, "256") == 0 {
			t.Fatalf("expected bootstrap to reference literal 256, got %#v", out)
		}
		if countAInst(out, "Sys.init") == 0 {
			t.Fatalf("expected bootstrap to jump into Sys.init, got %#v", out)
		}
	})

	t.Run("infinite loop self-jumps to END", func(t *testing.T) {
		out := cg.InfiniteLoop("0", "JMP")
		if lastLabel(t, out) != "END" {
			t.Fatalf("expected an END label declaration, got %#v", out)
		}
		if countAInst(out, "END") == 0 {
			t.Fatalf("expected a self-referencing jump to END, got %#v", out)
		}
	})
}
