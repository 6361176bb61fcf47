package asm

import (
	"fmt"
	"io"
	"os"

	pc "github.com/prataprc/goparsec"

	"github.com/hmny-toolchain/n2t-codegen/pkg/diag"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator for every token & instruction of the Asm language.
//
// Each parser combinator manages a single instruction (A Inst, C Inst, Label Decl) or some piece
// of it: namely tokens and identifiers. Comments and blank lines never reach these combinators,
// they're stripped upstream by the Line Source (see lines.go) so each one only ever sees a single
// already-trimmed logical line.

// Top level object, will generate the traversable AST based on the input plus the PCs below.
var ast = pc.NewAST("assembler", 0)

var (
	// Parser combinator for a generic Assembler instruction (either C, A or Label declaration)
	pInstruction = ast.OrdChoice("instruction", nil, pAInst, pCInst, pLabelDecl)

	// Parser combinator for A Instructions
	pAInst = ast.And("a-inst", nil, pc.Atom("@", "@"), pLabel)
	// Parser combinator for new label declaration
	pLabelDecl = ast.And("label-decl", nil, pc.Atom("(", "("), pLabel, pc.Atom(")", ")"))
	// Parser combinator for C Instructions
	pCInst = ast.And("c-inst", nil,
		ast.Maybe("maybe-assign", nil, ast.And("assign", nil, pDest, pc.Atom("=", "="))),
		pComp, // 'comp' should always be provided
		ast.Maybe("maybe-goto", nil, ast.And("goto", nil, pc.Atom(";", ";"), pJump)),
	)
)

var (
	// Generic label parser (A Instruction + Label declaration)
	// NOTE: A label can be any sequence of letters, digits, and symbols (_, ., $, :).
	// NOTE: A label cannot begin with a leading digit (a symbol is indeed allowed).
	pLabel = ast.OrdChoice("label", nil, pc.Int(), pc.Token(`[A-Za-z_.$:][0-9a-zA-Z_.$:]*`, "SYMBOL"))

	// Generic destination parser (C Instruction subsection)
	// NOTE: The order of the Atom is reversed w.r.t. the one provided in the translation table cause
	// if not the single destination section will match before in the PC (BFS Search algorithm)
	pDest = ast.OrdChoice("dest", nil,
		pc.Atom("AMD", "AMD"), pc.Atom("AM", "AM"), pc.Atom("AD", "AD"), pc.Atom("MD", "MD"),
		pc.Atom("D", "D"), pc.Atom("A", "A"), pc.Atom("M", "M"),
	)

	// Generic computation parser (C Instruction subsection)
	// NOTE: The order of the Atom is reversed w.r.t. the one provided in the translation table cause
	// if not the 'Constant and identifiers' part will match before the order (BFS Search algorithm)
	pComp = ast.OrdChoice("comp", nil,
		// - Bitwise register with register operations
		pc.Atom("D&A", "D&A"), pc.Atom("D&M", "D&M"),
		pc.Atom("D|A", "D|A"), pc.Atom("D|M", "D|M"),
		// - Register with register operations
		pc.Atom("D+A", "D+A"), pc.Atom("D+M", "D+M"),
		pc.Atom("D-A", "D-A"), pc.Atom("D-M", "D-M"),
		pc.Atom("A-D", "A-D"), pc.Atom("M-D", "M-D"),
		// - Increment and decrement operations
		pc.Atom("D+1", "D+1"), pc.Atom("A+1", "A+1"), pc.Atom("M+1", "M+1"),
		pc.Atom("D-1", "D-1"), pc.Atom("A-1", "A-1"), pc.Atom("M-1", "M-1"),
		// - Binary and numerical negations
		pc.Atom("!D", "!D"), pc.Atom("!A", "!A"), pc.Atom("!M", "!M"),
		pc.Atom("-D", "-D"), pc.Atom("-A", "-A"), pc.Atom("-M", "-M"),
		// - Constants and identities
		pc.Atom("0", "0"), pc.Atom("1", "1"), pc.Atom("-1", "-1"),
		pc.Atom("D", "D"), pc.Atom("A", "A"), pc.Atom("M", "M"),
	)

	// Generic jump parser (C Instruction subsection)
	pJump = ast.OrdChoice("jump", nil,
		pc.Atom("JNE", "JNE"), pc.Atom("JEQ", "JEQ"),
		pc.Atom("JGT", "JGT"), pc.Atom("JGE", "JGE"),
		pc.Atom("JLT", "JLT"), pc.Atom("JLE", "JLE"),
		pc.Atom("JMP", "JMP"),
	)
)

// ----------------------------------------------------------------------------
// Asm Parser

// This section defines the Parser for the nand2tetris Asm language.
//
// Unlike a whole-file grammar, this Parser runs the combinators above once per logical
// line (supplied by the Line Source in lines.go): a Syntax failure is therefore always
// attributable to an exact (module, line) pair instead of an opaque whole-file failure.
// The library reads up the following feature flags (as env vars):
// - PARSEC_DEBUG: Verbose logging to inspect which of the PCs gets triggered and match
// - PRINT_AST:    Print on the stdout a textual representation of the AST
type Parser struct {
	module string // Tag attached to any diagnostic raised while parsing, normally a file's base name
}

// Initializes and returns to the caller a brand new 'Parser' struct, tagging any Syntax
// error it raises with 'module'.
func NewParser(module string) Parser {
	return Parser{module: module}
}

// Parser entrypoint reads 'r' one logical line at a time and, for each, drives the two
// phases of the pipeline: Text --> AST (via the PCs above) and AST --> IR (via 'FromAST').
func (p *Parser) Parse(r io.Reader) (Program, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, diag.Wrap(diag.IO, p.module, 0, err)
	}

	program := make(Program, 0, len(lines))
	for _, line := range lines {
		root, ok := p.FromSource(line.Text)
		if !ok {
			return nil, diag.At(diag.Syntax, p.module, line.Number, "failed to parse AST from input content")
		}

		inst, err := p.FromAST(root)
		if err != nil {
			return nil, diag.At(diag.Syntax, p.module, line.Number, err.Error())
		}
		program = append(program, inst)
	}

	return program, nil
}

// Scans a single logical line and returns a traversable AST node (Abstract Syntax Tree)
// that can be eventually visited to extract/transform the info available.
func (p *Parser) FromSource(line string) (pc.Queryable, bool) {
	// Feature flag: Enable 'goparsec' library's debug logs
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, scanner := ast.Parsewith(pInstruction, pc.NewScanner([]byte(line)))
	if root == nil || !scanner.Endof() { // Unconsumed trailing tokens are a failure too
		return nil, false
	}

	// Feature flag: Enables pretty printing of the AST on the console
	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}
	return root, true
}

// This function takes the root node of a single-instruction AST and produces the matching
// 'asm.Instruction' (AInstruction | CInstruction | LabelDecl).
func (p *Parser) FromAST(root pc.Queryable) (Instruction, error) {
	switch root.GetName() {
	case "a-inst":
		return p.HandleAInst(root)
	case "c-inst":
		return p.HandleCInst(root)
	case "label-decl":
		return p.HandleLabelDecl(root)
	default:
		return nil, fmt.Errorf("unrecognized node '%s'", root.GetName())
	}
}

// Specialized function to convert a "a-inst" node to an 'asm.AInstruction'.
func (Parser) HandleAInst(inst pc.Queryable) (Instruction, error) {
	if inst.GetName() != "a-inst" { // Prelude checks: inspects the node to verify it's an 'a-inst'
		return nil, fmt.Errorf("expected node 'a-inst', found %s", inst.GetName())
	}

	symbol := inst.GetChildren()[1] // Prelude checks: inspects the label node type (INT | SYMBOL)
	if symbol.GetName() != "INT" && symbol.GetName() != "SYMBOL" {
		return nil, fmt.Errorf("expected token 'SYMBOL' or 'INT', got %s", symbol.GetName())
	}

	return AInstruction{Location: symbol.GetValue()}, nil
}

// Specialized function to convert a "c-inst" node to an 'asm.CInstruction'.
//
// Unlike a single either/or check, dest and jump are read independently: a C instruction
// can legally carry both at once (e.g. "D=M;JMP"), and the grammar already parses them as
// two independent optional children of the same node.
func (Parser) HandleCInst(inst pc.Queryable) (Instruction, error) {
	if inst.GetName() != "c-inst" { // Prelude checks: inspects the node to verify it's a 'c-inst'
		return nil, fmt.Errorf("expected node 'c-inst', found %s", inst.GetName())
	}

	maybeAssign, comp, maybeGoto := inst.GetChildren()[0], inst.GetChildren()[1], inst.GetChildren()[2]

	out := CInstruction{Comp: comp.GetValue()}
	if assign := maybeAssign.GetChildren(); len(assign) == 2 {
		out.Dest = assign[0].GetValue()
	}
	if jump := maybeGoto.GetChildren(); len(jump) == 2 {
		out.Jump = jump[1].GetValue()
	}

	return out, nil
}

// Specialized function to extract from a "label-decl" node to an 'asm.LabelDecl'.
func (Parser) HandleLabelDecl(decl pc.Queryable) (Instruction, error) {
	if decl.GetName() != "label-decl" { // Prelude checks: inspects the node to verify it's a 'label-decl'
		return nil, fmt.Errorf("expected node 'label-decl', found %s", decl.GetName())
	}

	symbol := decl.GetChildren()[1] // Prelude checks: inspects the label node type (must be SYMBOL)
	if symbol.GetName() != "SYMBOL" {
		return nil, fmt.Errorf("expected token 'SYMBOL', got %s", symbol.GetName())
	}

	return LabelDecl{Name: symbol.GetValue()}, nil
}
