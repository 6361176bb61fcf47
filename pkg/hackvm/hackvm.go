// Package hackvm is a small, test-only Hack CPU/RAM simulator. It loads the
// binary text emitted by pkg/hack's Code Generator and executes it against a
// simulated 32K-word RAM, so end-to-end translation scenarios can be
// asserted as running programs instead of hand-traced assembly. It is not
// wired into either CLI.
package hackvm

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hmny-toolchain/n2t-codegen/pkg/utils"
)

// MemSize is the addressable RAM/ROM word count (15-bit address space).
const MemSize = 1 << 15

// Screen and Kbd mirror the memory-mapped I/O locations from the Hack spec;
// this simulator never drives a real screen or keyboard, they're just
// ordinary RAM cells here.
const (
	Screen = 16384
	Kbd    = 24576
)

// traceDepth bounds the PC execution-history ring kept for test assertions.
const traceDepth = 64

// Machine is a fetch/execute loop over a loaded Hack ROM image, exposing
// every architecturally-visible register and the full RAM for assertions.
type Machine struct {
	rom []uint16
	ram [MemSize]int16

	pc uint16
	a  int16
	d  int16

	Halted bool // Set once a register-state cycle (the halt idiom's spin, or any other) is detected

	trace utils.Stack[uint16] // Ring of recently-retired PCs, oldest evicted first
}

// Load decodes 'lines' (each a 16-character '0'/'1' ASCII word, as produced
// by hack.CodeGenerator.Generate) into a fresh Machine with SP seeded to 0 and
// every other register zeroed, matching a freshly reset Hack computer.
func Load(lines []string) (*Machine, error) {
	rom := make([]uint16, 0, len(lines))
	for i, line := range lines {
		if len(line) != 16 {
			return nil, fmt.Errorf("line %d: expected a 16 character word, got %q", i, line)
		}
		word, err := strconv.ParseUint(line, 2, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: not a valid binary word", i)
		}
		rom = append(rom, uint16(word))
	}
	return &Machine{rom: rom}, nil
}

// SP, LCL, ARG, This, That read the VM's segment-pointer RAM cells.
func (m *Machine) SP() int16   { return m.ram[0] }
func (m *Machine) LCL() int16  { return m.ram[1] }
func (m *Machine) ARG() int16  { return m.ram[2] }
func (m *Machine) This() int16 { return m.ram[3] }
func (m *Machine) That() int16 { return m.ram[4] }

// RAM reads a single memory cell at 'addr'.
func (m *Machine) RAM(addr uint16) int16 { return m.ram[addr] }

// SetRAM seeds a memory cell, used by tests to set up SP before a bootstrap-
// free program runs (real bootstrap code does this itself via 'call Sys.init').
func (m *Machine) SetRAM(addr uint16, v int16) { m.ram[addr] = v }

// Trace returns the most recently retired program-counter values, oldest
// first, capped at traceDepth entries.
func (m *Machine) Trace() []uint16 {
	return newestFirst(&m.trace, m.trace.Count())
}

func (m *Machine) record(pc uint16) {
	m.trace.Push(pc)
	if m.trace.Count() <= traceDepth {
		return
	}
	m.trace = utils.NewStack(newestFirst(&m.trace, traceDepth)...)
}

// newestFirst drains up to 'limit' entries from 'stack' via its Iterator
// (newest-to-oldest) and returns them oldest-first, the order callers and
// 'utils.NewStack' both expect (the latter rebuilds bottom-to-top).
func newestFirst(stack *utils.Stack[uint16], limit int) []uint16 {
	out := make([]uint16, 0, limit)
	for pc := range stack.Iterator() {
		if len(out) == limit {
			break
		}
		out = append(out, pc)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// state is the set of registers that 'step' reads or branches on. RAM is not
// part of it, so a repeated state at the start of an instruction counts as a
// cycle even when the RAM cell at A has changed in between; the classic
// single-instruction self-jump is just the period-1 case of such a cycle.
type state struct {
	pc uint16
	a  int16
	d  int16
}

// Run steps the machine until either it runs off the end of ROM, it re-enters
// a register state it has already started a step from (the halt idiom, and
// any other spin, are cycles of this kind), or 'maxSteps' instructions have
// retired without reaching either. The last case is reported as an error so
// a runaway test fixture fails loudly instead of silently truncating its
// assertions.
func (m *Machine) Run(maxSteps int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("hackvm: panic at pc=%d: %v", m.pc, r)
		}
	}()

	seen := make(map[state]bool, maxSteps)
	for step := 0; step < maxSteps; step++ {
		if int(m.pc) >= len(m.rom) {
			return nil
		}

		cur := state{m.pc, m.a, m.d}
		if seen[cur] {
			m.Halted = true
			return nil
		}
		seen[cur] = true

		m.record(m.pc)
		if err := m.step(); err != nil {
			return err
		}
	}
	return errors.Errorf("hackvm: exceeded %d steps without halting (pc=%d)", maxSteps, m.pc)
}

// step fetches and executes exactly one instruction.
func (m *Machine) step() error {
	word := m.rom[m.pc]

	if word&0x8000 == 0 { // A-instruction: top bit clear
		m.a = int16(word & 0x7FFF)
		m.pc++
		return nil
	}
	if word&0xE000 != 0xE000 {
		return fmt.Errorf("malformed instruction %016b at pc=%d", word, m.pc)
	}

	comp := (word >> 6) & 0x7F
	dest := (word >> 3) & 0x7
	jump := word & 0x7

	// The A register latches at the end of the cycle: the memory address written
	// by a 'dest M' and the jump target both come from A's value at the start of
	// the instruction, even when 'dest A' overwrites it (e.g. "AM=M-1").
	oldA := m.a

	var y int16
	if comp&0x40 != 0 { // 'a' bit: operand is M[A] instead of A
		y = m.ram[uint16(oldA)]
	} else {
		y = oldA
	}
	out := alu(comp, m.d, y)

	if dest&0x1 != 0 { // dest bit 'M'
		m.ram[uint16(oldA)] = out
	}
	if dest&0x4 != 0 { // dest bit 'A'
		m.a = out
	}
	if dest&0x2 != 0 { // dest bit 'D'
		m.d = out
	}

	if jumps(jump, out) {
		m.pc = uint16(oldA)
	} else {
		m.pc++
	}
	return nil
}

// alu implements the canonical Hack ALU: 'comp' carries the 6 control bits
// (zx, nx, zy, ny, f, no) packed as the low 6 bits of the 7-bit comp field
// (bit 6, the 'a' bit, has already been consumed by the caller to pick 'y').
func alu(comp uint16, d, y int16) int16 {
	zx, nx := comp&0x20 != 0, comp&0x10 != 0
	zy, ny := comp&0x08 != 0, comp&0x04 != 0
	f, no := comp&0x02 != 0, comp&0x01 != 0

	x := d
	if zx {
		x = 0
	}
	if nx {
		x = ^x
	}
	if zy {
		y = 0
	}
	if ny {
		y = ^y
	}

	var out int16
	if f {
		out = x + y
	} else {
		out = x & y
	}
	if no {
		out = ^out
	}
	return out
}

// jumps reports whether the 3-bit jump field is satisfied by 'out's sign,
// per the Hack encoding: bit 2 (JLT component) fires on negative, bit 1
// (JEQ component) on zero, bit 0 (JGT component) on positive.
func jumps(jump uint16, out int16) bool {
	switch {
	case out < 0:
		return jump&0x4 != 0
	case out == 0:
		return jump&0x2 != 0
	default:
		return jump&0x1 != 0
	}
}
