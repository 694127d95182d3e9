package regvm

import "fmt"

// State is a snapshot of a Machine's execution position and registers,
// generalized from the stack machine's Duplicate/clone machinery in
// internal/vm/duplicate.go to this engine's byte-buffer model.
type State struct {
	Registers [numRegisters]Cell
	Flags     uint64
	PC        int
	SP        int
	FP        int
	Halted    bool
}

// GetState captures the machine's current PC/SP/FP/halt/registers.
func (m *Machine) GetState() State {
	s := State{
		Registers: m.regs,
		Flags:     m.flags,
		SP:        len(m.operands),
		Halted:    m.halted,
	}
	s.Registers[flagsRegister] = Number(float64(m.flags))
	if len(m.frames) > 0 {
		fr := m.currentFrame()
		s.PC = fr.pc
		s.FP = fr.base
	}
	return s
}

// SetState restores a previously captured snapshot. It only makes
// sense to call this between Run invocations on the same prototype;
// it does not resize the operand/call stacks.
func (m *Machine) SetState(s State) {
	m.regs = s.Registers
	m.flags = s.Flags
	m.halted = s.Halted
	if len(m.frames) > 0 {
		fr := m.currentFrame()
		fr.pc = s.PC
		fr.base = s.FP
	}
}

// DumpRegisters renders the register file for debugging, including
// register 15's comparison-flags value.
func (m *Machine) DumpRegisters() string {
	out := ""
	for i := 0; i < numRegisters; i++ {
		c, _ := m.register(i)
		out += fmt.Sprintf("r%-2d = %s\n", i, describeCell(c))
	}
	return out
}

// DumpHeap reports the heap's bump-allocator usage.
func (m *Machine) DumpHeap() string {
	return fmt.Sprintf("heap: %d/%d bytes used", m.heap.used(), m.heap.size())
}

// DumpStack reports the byte stack's current depth.
func (m *Machine) DumpStack() string {
	return fmt.Sprintf("stack: %d/%d words used", m.stack.depth(), m.stack.size()/wordSize)
}

func describeCell(c Cell) string {
	switch c.Kind {
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("%s(%s)", TypeName(c), displayString(c))
	}
}
