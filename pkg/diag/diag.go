// Package diag defines the error taxonomy shared by the assembler and VM
// translator pipelines: IO, Syntax, Semantic, Redefinition and AddressSpace
// failures, each tagged with the originating module and line where known.
package diag

import "github.com/pkg/errors"

// Kind classifies a fatal failure raised by either pipeline.
type Kind uint8

const (
	IO Kind = iota
	Syntax
	Semantic
	Redefinition
	AddressSpace
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case Syntax:
		return "Syntax"
	case Semantic:
		return "Semantic"
	case Redefinition:
		return "Redefinition"
	case AddressSpace:
		return "AddressSpace"
	default:
		return "Unknown"
	}
}

// Error is a classified, location-tagged failure. Module and Line are left
// at their zero values when the failure has no natural line association
// (e.g. an IO error opening the input file).
type Error struct {
	Kind   Kind
	Module string
	Line   int
	msg    string
}

func (e *Error) Error() string {
	if e.Module == "" && e.Line == 0 {
		return e.msg
	}
	if e.Line == 0 {
		return e.Module + ": " + e.msg
	}
	return e.Module + ":" + itoa(e.Line) + ": " + e.msg
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// New builds a classified error with no location, wrapped so its causal
// chain survives through errors.Cause/errors.As.
func New(kind Kind, msg string) error {
	return errors.WithStack(&Error{Kind: kind, msg: msg})
}

// At builds a classified error tagged with the module and 1-based line that
// triggered it, per the location-identification policy in the error
// handling design.
func At(kind Kind, module string, line int, msg string) error {
	return errors.WithStack(&Error{Kind: kind, Module: module, Line: line, msg: msg})
}

// Wrap attaches a classified kind and location to an existing error. The
// result carries the original error's message text only: the original error
// value is not kept, so errors.Cause/errors.Unwrap stop at the *diag.Error.
func Wrap(kind Kind, module string, line int, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Module: module, Line: line, msg: err.Error()})
}

// As reports whether err (or any error in its chain) is a *diag.Error and,
// if so, returns it.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
