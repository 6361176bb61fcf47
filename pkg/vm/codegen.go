package vm

import (
	"fmt"
	"strconv"

	"github.com/hmny-toolchain/n2t-codegen/pkg/asm"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes 'vm.Operation's and spits out the Hack assembly that realizes them.
//
// Unlike the Hack Code Generator (which is a pure function of its input instruction), this
// one carries a codegen context that threads across an entire translation unit: the current
// module (for 'static' segment namespacing), the current function (for label namespacing),
// a monotonically increasing comparison-label counter and a monotonically increasing,
// per-callee call-site counter. A fresh 'CodeGenerator' must not be reused across runs, but
// the same instance is meant to be reused across every module of one translation unit so
// these counters keep incrementing and never collide.
type CodeGenerator struct {
	module   string         // Current module, used to namespace the 'static' segment
	function string         // Current function, used to namespace VM-level labels
	cmpSeq   int            // Next unused comparison-label index (shared across the whole unit)
	callSeq  map[string]int // Next unused call-site index, keyed by callee name
}

// NoFunctionPlaceholder namespaces a VM label declared outside of any function
// (e.g. in a historical top-level script, or test fixtures exercising bare ops).
const NoFunctionPlaceholder = "null"

// TempBase is the fixed RAM address the 'temp' segment starts at.
const TempBase = 5

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{callSeq: map[string]int{}}
}

// SetModule switches the active module, used to namespace the 'static' segment of
// subsequent memory operations. Called by the Driver once per '.vm' file translated.
func (cg *CodeGenerator) SetModule(name string) { cg.module = name }

// Generate dispatches a single VM operation to its specialized handler and returns
// the Hack assembly instructions (A/C instructions and label declarations) it lowers to.
func (cg *CodeGenerator) Generate(op Operation) ([]asm.Instruction, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return cg.GenerateMemoryOp(tOp)
	case ArithmeticOp:
		return cg.GenerateArithmeticOp(tOp)
	case LabelDecl:
		return cg.GenerateLabelDecl(tOp)
	case GotoOp:
		return cg.GenerateGotoOp(tOp)
	case FuncDecl:
		return cg.GenerateFuncDecl(tOp)
	case FuncCallOp:
		return cg.GenerateFuncCallOp(tOp)
	case ReturnOp:
		return cg.GenerateReturnOp(tOp)
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Shared low level idioms

func aInst(location string) asm.Instruction { return asm.AInstruction{Location: location} }

func cInst(dest, comp, jump string) asm.Instruction {
	return asm.CInstruction{Dest: dest, Comp: comp, Jump: jump}
}

// pushD appends the Hack idiom that pushes the value currently held in D onto the stack.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		aInst("SP"), cInst("A", "M", ""), cInst("M", "D", ""),
		aInst("SP"), cInst("M", "M+1", ""),
	}
}

// popToD appends the Hack idiom that pops the stack's top into D, decrementing SP first.
func popToD() []asm.Instruction {
	return []asm.Instruction{aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", "")}
}

// segmentBase maps a pointer-based segment to the Hack symbol holding its base address.
var segmentBase = map[SegmentType]string{
	Argument: "ARG", Local: "LCL", This: "THIS", That: "THAT",
}

// ----------------------------------------------------------------------------
// Memory access

// Specialized function to lower a 'MemoryOp' operation to Hack assembly.
func (cg *CodeGenerator) GenerateMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Segment == Pointer && op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}
	if op.Segment == Constant && op.Operation == Pop {
		return nil, fmt.Errorf("'pop constant' is not a legal operation")
	}

	if op.Operation == Push {
		return cg.generatePush(op)
	}
	return cg.generatePop(op)
}

func (cg *CodeGenerator) generatePush(op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant:
		out := []asm.Instruction{aInst(strconv.Itoa(int(op.Offset))), cInst("D", "A", "")}
		return append(out, pushD()...), nil

	case Temp:
		addr := TempBase + op.Offset
		out := []asm.Instruction{aInst(strconv.Itoa(int(addr))), cInst("D", "M", "")}
		return append(out, pushD()...), nil

	case Pointer:
		out := []asm.Instruction{aInst(pointerSymbol(op.Offset)), cInst("D", "M", "")}
		return append(out, pushD()...), nil

	case Static:
		out := []asm.Instruction{aInst(cg.staticSymbol(op.Offset)), cInst("D", "M", "")}
		return append(out, pushD()...), nil

	case Argument, Local, This, That:
		base := segmentBase[op.Segment]
		out := []asm.Instruction{
			aInst(strconv.Itoa(int(op.Offset))), cInst("D", "A", ""),
			aInst(base), cInst("A", "D+M", ""), cInst("D", "M", ""),
		}
		return append(out, pushD()...), nil

	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
	}
}

func (cg *CodeGenerator) generatePop(op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Temp:
		addr := TempBase + op.Offset
		out := popToD()
		return append(out, aInst(strconv.Itoa(int(addr))), cInst("M", "D", "")), nil

	case Pointer:
		out := popToD()
		return append(out, aInst(pointerSymbol(op.Offset)), cInst("M", "D", "")), nil

	case Static:
		out := popToD()
		return append(out, aInst(cg.staticSymbol(op.Offset)), cInst("M", "D", "")), nil

	case Argument, Local, This, That:
		base := segmentBase[op.Segment]
		// The destination address must be resolved before the value is popped, so it's
		// stashed in R13 first; only then do we touch SP and overwrite D with the value.
		out := []asm.Instruction{
			aInst(strconv.Itoa(int(op.Offset))), cInst("D", "A", ""),
			aInst(base), cInst("D", "D+M", ""),
			aInst("R13"), cInst("M", "D", ""),
		}
		out = append(out, popToD()...)
		return append(out, aInst("R13"), cInst("A", "M", ""), cInst("M", "D", "")), nil

	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
	}
}

func pointerSymbol(offset uint16) string {
	if offset == 0 {
		return "THIS"
	}
	return "THAT"
}

func (cg *CodeGenerator) staticSymbol(offset uint16) string {
	return fmt.Sprintf("%s.%d", cg.module, offset)
}

// ----------------------------------------------------------------------------
// Arithmetic and logic

var binaryComp = map[ArithOpType]string{
	Add: "D+M", Sub: "M-D", And: "D&M", Or: "D|M",
}

var unaryComp = map[ArithOpType]string{
	Neg: "-M", Not: "!M",
}

var comparisonJump = map[ArithOpType]string{
	Eq: "JEQ", Gt: "JGT", Lt: "JLT",
}

// Specialized function to lower an 'ArithmeticOp' operation to Hack assembly.
func (cg *CodeGenerator) GenerateArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	if comp, found := binaryComp[op.Operation]; found {
		return []asm.Instruction{
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
			aInst("SP"), cInst("AM", "M-1", ""),
			cInst("M", comp, ""),
			aInst("SP"), cInst("M", "M+1", ""),
		}, nil
	}

	if comp, found := unaryComp[op.Operation]; found {
		return []asm.Instruction{aInst("SP"), cInst("A", "M-1", ""), cInst("M", comp, "")}, nil
	}

	if jump, found := comparisonJump[op.Operation]; found {
		k := cg.nextComparison()
		trueLabel, contLabel := fmt.Sprintf("TRUE.%d", k), fmt.Sprintf("CONT.%d", k)

		return []asm.Instruction{
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""), // D = y
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M-D", ""), // D = x - y
			aInst(trueLabel), cInst("", "D", jump),
			aInst("SP"), cInst("A", "M", ""), cInst("M", "0", ""), // push false
			aInst(contLabel), cInst("", "0", "JMP"),
			asm.LabelDecl{Name: trueLabel},
			aInst("SP"), cInst("A", "M", ""), cInst("M", "-1", ""), // push true
			asm.LabelDecl{Name: contLabel},
			aInst("SP"), cInst("M", "M+1", ""),
		}, nil
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
}

func (cg *CodeGenerator) nextComparison() int {
	k := cg.cmpSeq
	cg.cmpSeq++
	return k
}

// ----------------------------------------------------------------------------
// Branching

// namespace qualifies a bare VM label with the enclosing function, falling back to
// 'NoFunctionPlaceholder' for a label declared outside of any function.
func (cg *CodeGenerator) namespace(label string) string {
	fn := cg.function
	if fn == "" {
		fn = NoFunctionPlaceholder
	}
	return fmt.Sprintf("%s$%s", fn, label)
}

// Specialized function to lower a 'LabelDecl' operation to Hack assembly.
func (cg *CodeGenerator) GenerateLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: cg.namespace(op.Name)}}, nil
}

// Specialized function to lower a 'GotoOp' operation to Hack assembly.
func (cg *CodeGenerator) GenerateGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce empty jump label")
	}

	target := cg.namespace(op.Label)
	if op.Jump == Unconditional {
		return []asm.Instruction{aInst(target), cInst("", "0", "JMP")}, nil
	}

	out := popToD()
	return append(out, aInst(target), cInst("", "D", "JNE")), nil
}

// ----------------------------------------------------------------------------
// Function protocol

// Specialized function to lower a 'FuncDecl' operation to Hack assembly.
func (cg *CodeGenerator) GenerateFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function declaration")
	}

	cg.function = op.Name
	out := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		out = append(out, aInst("SP"), cInst("A", "M", ""), cInst("M", "0", ""))
		out = append(out, aInst("SP"), cInst("M", "M+1", ""))
	}
	return out, nil
}

// Specialized function to lower a 'FuncCallOp' operation to Hack assembly.
func (cg *CodeGenerator) GenerateFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function call")
	}

	k := cg.callSeq[op.Name]
	cg.callSeq[op.Name]++
	retLabel := fmt.Sprintf("%s$ret.%d", op.Name, k)

	out := []asm.Instruction{aInst(retLabel), cInst("D", "A", "")}
	out = append(out, pushD()...)
	for _, saved := range []string{"LCL", "ARG", "THIS", "THAT"} {
		out = append(out, aInst(saved), cInst("D", "M", ""))
		out = append(out, pushD()...)
	}

	out = append(out,
		aInst("SP"), cInst("D", "M", ""),
		aInst(strconv.Itoa(5+int(op.NArgs))), cInst("D", "D-A", ""),
		aInst("ARG"), cInst("M", "D", ""),
		aInst("SP"), cInst("D", "M", ""),
		aInst("LCL"), cInst("M", "D", ""),
		aInst(op.Name), cInst("", "0", "JMP"),
		asm.LabelDecl{Name: retLabel},
	)
	return out, nil
}

// restoreFromFrame reads 'Frame[offset]' (R13 holding the saved frame pointer) into 'dest'.
func restoreFromFrame(offset int, dest string) []asm.Instruction {
	return []asm.Instruction{
		aInst("R13"), cInst("D", "M", ""),
		aInst(strconv.Itoa(offset)), cInst("A", "D-A", ""), cInst("D", "M", ""),
		aInst(dest), cInst("M", "D", ""),
	}
}

// Specialized function to lower a 'ReturnOp' operation to Hack assembly.
//
// The exact ordering below is load bearing: 'retAddr' (R14) must be snapshotted before
// any caller segment pointer is restored, since restoring LCL destroys 'frame - 5' (R13).
func (cg *CodeGenerator) GenerateReturnOp(op ReturnOp) ([]asm.Instruction, error) {
	out := []asm.Instruction{
		aInst("LCL"), cInst("D", "M", ""), aInst("R13"), cInst("M", "D", ""), // R13 = frame
		aInst("R13"), cInst("D", "M", ""), aInst("5"), cInst("A", "D-A", ""), cInst("D", "M", ""),
		aInst("R14"), cInst("M", "D", ""), // R14 = retAddr = *(frame - 5)
	}
	out = append(out, popToD()...)
	out = append(out, aInst("ARG"), cInst("A", "M", ""), cInst("M", "D", "")) // *ARG = pop()
	out = append(out, aInst("ARG"), cInst("D", "M", ""), aInst("SP"), cInst("M", "D+1", "")) // SP = ARG + 1

	out = append(out, restoreFromFrame(1, "THAT")...)
	out = append(out, restoreFromFrame(2, "THIS")...)
	out = append(out, restoreFromFrame(3, "ARG")...)
	out = append(out, restoreFromFrame(4, "LCL")...)

	out = append(out, aInst("R14"), cInst("A", "M", ""), cInst("", "0", "JMP")) // goto retAddr
	return out, nil
}

// ----------------------------------------------------------------------------
// Bootstrap and epilogue

// Bootstrap emits the directory-mode prelude: initializes SP to 256 and calls 'Sys.init'
// through the exact same call-emission path as every other call site in the program.
func (cg *CodeGenerator) Bootstrap() ([]asm.Instruction, error) {
	out := []asm.Instruction{aInst("256"), cInst("D", "A", ""), aInst("SP"), cInst("M", "D", "")}
	call, err := cg.GenerateFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	if err != nil {
		return nil, err
	}
	return append(out, call...), nil
}

// InfiniteLoop emits the single-file epilogue: a self-jump that parks the simulated CPU
// once the last translated instruction has run, instead of letting it fall off the end of ROM.
// 'comp'/'jump' are the Hack mnemonics of the halt instruction's comp and jump fields
// (e.g. "0"/"JMP"), configurable per internal/config so a deployment can swap in any
// other tautological comp/jump pair without touching the code generator.
func (cg *CodeGenerator) InfiniteLoop(comp, jump string) []asm.Instruction {
	return []asm.Instruction{asm.LabelDecl{Name: "END"}, aInst("END"), cInst("", comp, jump)}
}
