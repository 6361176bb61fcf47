package vm_test

import (
	"strings"
	"testing"

	"github.com/hmny-toolchain/n2t-codegen/pkg/vm"
)

func TestParseSingleOps(t *testing.T) {
	parser := vm.NewParser("Test")

	test := func(source string, expected vm.Operation, fail bool) {
		module, err := parser.Parse(strings.NewReader(source))
		if fail {
			if err == nil {
				t.Fatalf("expected a Syntax error for %q, got %#v", source, module)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %s", source, err)
		}
		if len(module) != 1 || module[0] != expected {
			t.Fatalf("expected %#v for %q, got %#v", expected, source, module)
		}
	}

	t.Run("memory ops", func(t *testing.T) {
		test("push constant 7", vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7}, false)
		test("pop local 2", vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 2}, false)
		test("push static 0", vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 0}, false)
		test("pop pointer 1", vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1}, false)
		// Bad segment names and missing offsets never make it past the grammar
		test("push heap 0", nil, true)
		test("pop local", nil, true)
	})

	t.Run("arithmetic ops", func(t *testing.T) {
		for _, op := range []vm.ArithOpType{vm.Add, vm.Sub, vm.Neg, vm.Eq, vm.Gt, vm.Lt, vm.And, vm.Or, vm.Not} {
			test(string(op), vm.ArithmeticOp{Operation: op}, false)
		}
		test("mul", nil, true)
	})

	t.Run("branching ops", func(t *testing.T) {
		test("label LOOP", vm.LabelDecl{Name: "LOOP"}, false)
		test("goto LOOP", vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP"}, false)
		test("if-goto END", vm.GotoOp{Jump: vm.Conditional, Label: "END"}, false)
		test("label", nil, true)
	})

	t.Run("function ops", func(t *testing.T) {
		test("function Main.f 2", vm.FuncDecl{Name: "Main.f", NLocal: 2}, false)
		test("call Main.f 1", vm.FuncCallOp{Name: "Main.f", NArgs: 1}, false)
		test("return", vm.ReturnOp{}, false)
		test("function Main.f", nil, true)
	})

	t.Run("wrong arity leaves tokens unconsumed", func(t *testing.T) {
		// Extra trailing tokens are a Syntax error, never silently dropped
		test("add 5", nil, true)
		test("push constant 1 2", nil, true)
		test("return now", nil, true)
	})

	t.Run("comments and blanks are stripped upstream", func(t *testing.T) {
		module, err := parser.Parse(strings.NewReader("// header\n\n  add // inline\n"))
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if len(module) != 1 {
			t.Fatalf("expected a single surviving operation, got %#v", module)
		}
	})

	t.Run("syntax errors carry the offending line", func(t *testing.T) {
		_, err := parser.Parse(strings.NewReader("add\n\nbogus op\n"))
		if err == nil {
			t.Fatalf("expected a Syntax error")
		}
		if !strings.Contains(err.Error(), "Test:3") {
			t.Fatalf("expected the error to name line 3 of module Test, got %q", err.Error())
		}
	})
}
