package vm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level struct such as Program and Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Program is just a set of multiple modules/files, in the VM spec each Jack class is
// translated to its own .vm file (just like Java .class file) that can be handled as its
// own translation unit during the compilation or lowering phases.
type Program []Module

// A VM Module is just a linear list of VM operations/instructions
type Module []Operation

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

type SegmentType string // Enum to manage the segment accessible for a MemoryOp

const (
	Temp     SegmentType = "temp"     // Real segment used to store intermediate computations
	Constant SegmentType = "constant" // Virtual segment used to access numeric constant

	Local    SegmentType = "local"    // Real segment used to store local function variables
	Static   SegmentType = "static"   // Real segment used to store shared/static variables
	Argument SegmentType = "argument" // Real segment used to store function's argument

	This    SegmentType = "this"    // Virtual segment used to point to a specific memory location
	That    SegmentType = "that"    // Virtual segment used to point to a specific memory location
	Pointer SegmentType = "pointer" // Real segment w/ 2 location used to set the 'this' and 'that' pointers
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the codegen phase.
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum to manage the operation allowed for an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"
)

// ----------------------------------------------------------------------------
// Branching Op(s)

// In memory representation of a label declaration for the VM language.
//
// Unlike the Assembler, a VM label is only ever meaningful inside the function it's
// declared in: the Code Generator namespaces it behind the enclosing function's name
// before it ever reaches the Hack assembly level (see codegen.go).
type LabelDecl struct{ Name string }

// In memory representation of a branching operation (goto/if-goto) for the VM language.
type GotoOp struct {
	Jump  JumpType // Whether the branch is unconditional or conditional on the stack's top
	Label string   // The target label, declared elsewhere in the same function
}

type JumpType string // Enum to manage the two kinds of branch available to a GotoOp

const (
	Unconditional JumpType = "goto"    // Always taken
	Conditional   JumpType = "if-goto" // Taken iff the popped stack's top is non-zero
)

// ----------------------------------------------------------------------------
// Function Op(s)

// In memory representation of a function declaration for the VM language.
//
// Declares a callable entrypoint together with how many local variables it needs,
// the Code Generator is responsible for zero-initializing that many local slots.
type FuncDecl struct {
	Name   string // Fully qualified as 'Class.function', unique across the whole program
	NLocal uint8  // Number of local variables the function declares, zero-initialized on entry
}

// In memory representation of a function call for the VM language.
type FuncCallOp struct {
	Name  string // The callee's fully qualified name
	NArgs uint8  // Number of arguments already pushed on the stack by the caller
}

// In memory representation of a function return for the VM language.
//
// Carries no data of its own: the Code Generator derives everything it needs (the
// caller's saved segment pointers and return address) from the callee's own frame.
type ReturnOp struct{}
