// Package regvm implements a register-flavored execution engine for
// the same bytecode.Module the stack machine in internal/vm runs. It
// decodes the identical opcode stream — there is no separate
// register-operand encoding — but tracks its own register file,
// byte-addressable heap and stack, and call stack of return PCs,
// trading the stack machine's Go-slice value stack for explicit,
// bounds-checked memory the way a register-based interpreter would.
package regvm

import (
	"fmt"

	"github.com/rplus-lang/rplus/internal/bytecode"
)

// numRegisters is the size of the register file. Register 15 doubles
// as the comparison-flags register: reading it yields the last
// comparison result (0=equal, 1=less, 2=greater) as a number Cell,
// and writing it sets that result directly.
const numRegisters = 16

// flagsRegister is the index of the comparison-flags register.
const flagsRegister = numRegisters - 1

// Options configures a Machine's resource limits.
type Options struct {
	HeapSize  int
	StackSize int
	TraceHook func(TraceInfo)
}

// TraceInfo describes one instruction dispatch, mirroring the stack
// machine's trace hook shape for a consistent debugging story across
// engines.
type TraceInfo struct {
	Op   byte
	PC   int
	Proto string
}

type frame struct {
	proto *bytecode.Prototype
	pc    int
	base  int // operand-stack depth at call time; RETURN trims back to it
}

// Machine is a register-flavored VM instance.
type Machine struct {
	regs  [numRegisters]Cell
	flags uint64

	heap  *heap
	stack *byteStack

	operands []Cell
	calls    []int // return PCs
	frames   []frame

	globals map[string]Cell

	halted    bool
	traceHook func(TraceInfo)
}

// New constructs a Machine with default resource limits.
func New() *Machine {
	return NewWithOptions(Options{})
}

// NewWithOptions constructs a Machine with explicit heap/stack sizes.
func NewWithOptions(opts Options) *Machine {
	heapSize := opts.HeapSize
	if heapSize <= 0 {
		heapSize = DefaultHeapSize
	}
	stackSize := opts.StackSize
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	return &Machine{
		heap:      newHeap(heapSize),
		stack:     newByteStack(stackSize),
		globals:   make(map[string]Cell),
		traceHook: opts.TraceHook,
	}
}

// LoadModule registers every top-level function in mod as a global
// function value, the same preload step the stack machine performs in
// internal/vm's LoadModule.
func (m *Machine) LoadModule(mod *bytecode.Module) {
	if mod == nil {
		return
	}
	for name, proto := range mod.Functions {
		m.globals[name] = Cell{Kind: KindFunction, Proto: proto}
	}
}

// SetTraceHook installs a per-instruction trace callback.
func (m *Machine) SetTraceHook(h func(TraceInfo)) {
	m.traceHook = h
}

func (m *Machine) push(c Cell) error {
	if err := m.stack.pushWord(0); err != nil {
		return err
	}
	m.operands = append(m.operands, c)
	return nil
}

func (m *Machine) pop() (Cell, error) {
	if len(m.operands) == 0 {
		return Cell{}, fmt.Errorf("stack underflow")
	}
	if _, err := m.stack.popWord(); err != nil {
		return Cell{}, err
	}
	c := m.operands[len(m.operands)-1]
	m.operands = m.operands[:len(m.operands)-1]
	return c, nil
}

func (m *Machine) peek() Cell {
	return m.operands[len(m.operands)-1]
}

// register reads register r (0-15); register 15 reads the
// comparison-flags register as a number Cell instead of m.regs[15].
func (m *Machine) register(r int) (Cell, error) {
	if r < 0 || r >= numRegisters {
		return Cell{}, fmt.Errorf("invalid register index")
	}
	if r == flagsRegister {
		return Number(float64(m.flags)), nil
	}
	return m.regs[r], nil
}

func (m *Machine) setRegister(r int, c Cell) error {
	if r < 0 || r >= numRegisters {
		return fmt.Errorf("invalid register index")
	}
	if r == flagsRegister {
		m.flags = uint64(c.Num)
		return nil
	}
	m.regs[r] = c
	return nil
}

// Run executes a single prototype (no caller frame) to completion,
// returning the value left on the operand stack, or Null if none.
func (m *Machine) Run(proto *bytecode.Prototype) (Cell, error) {
	if proto == nil || proto.Chunk == nil {
		return Null(), fmt.Errorf("nil prototype")
	}
	fr := &frame{proto: proto, base: len(m.operands)}
	m.frames = append(m.frames, *fr)
	return m.loop()
}

// RunMain executes a module's synthetic top-level entry chunk.
func (m *Machine) RunMain(mod *bytecode.Module) (Cell, error) {
	if mod == nil || mod.Main == nil {
		return Null(), nil
	}
	return m.Run(mod.Main)
}

func (m *Machine) currentFrame() *frame {
	return &m.frames[len(m.frames)-1]
}

func (m *Machine) loop() (Cell, error) {
	for {
		fr := m.currentFrame()
		code := fr.proto.Chunk.Code
		if fr.pc >= len(code) {
			return Null(), fmt.Errorf("fell off end of chunk")
		}
		op := code[fr.pc]
		fr.pc++
		if m.traceHook != nil {
			m.traceHook(TraceInfo{Op: op, PC: fr.pc - 1, Proto: fr.proto.Name})
		}

		switch op {
		case OP_NOP:
			// no-op

		case OP_CONST:
			idx := m.readU16(fr)
			c, err := constCell(fr.proto.Chunk.Consts, idx)
			if err != nil {
				return Null(), err
			}
			if err := m.push(c); err != nil {
				return Null(), err
			}

		case OP_NULL:
			if err := m.push(Null()); err != nil {
				return Null(), err
			}
		case OP_TRUE:
			if err := m.push(Bool(true)); err != nil {
				return Null(), err
			}
		case OP_FALSE:
			if err := m.push(Bool(false)); err != nil {
				return Null(), err
			}

		case OP_POP:
			if _, err := m.pop(); err != nil {
				return Null(), err
			}
		case OP_DUP:
			if len(m.operands) == 0 {
				return Null(), fmt.Errorf("stack underflow")
			}
			if err := m.push(m.peek()); err != nil {
				return Null(), err
			}

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD,
			OP_EQ, OP_NEQ, OP_LT, OP_LTE, OP_GT, OP_GTE:
			b, err := m.pop()
			if err != nil {
				return Null(), err
			}
			a, err := m.pop()
			if err != nil {
				return Null(), err
			}
			if op == OP_LT || op == OP_LTE || op == OP_GT || op == OP_GTE || op == OP_EQ || op == OP_NEQ {
				m.flags = flagsFor(a, b)
			}
			result, err := binaryOp(op, a, b)
			if err != nil {
				return Null(), err
			}
			if err := m.push(result); err != nil {
				return Null(), err
			}

		case OP_NEG:
			v, err := m.pop()
			if err != nil {
				return Null(), err
			}
			if v.Kind != KindNumber {
				return Null(), fmt.Errorf("operand must be a number")
			}
			if err := m.push(Number(-v.Num)); err != nil {
				return Null(), err
			}
		case OP_NOT:
			v, err := m.pop()
			if err != nil {
				return Null(), err
			}
			if err := m.push(Bool(!v.Truthy())); err != nil {
				return Null(), err
			}

		case OP_GET_LOCAL:
			slot := int(m.readU8(fr))
			c, err := m.register(slot)
			if err != nil {
				return Null(), err
			}
			if err := m.push(c); err != nil {
				return Null(), err
			}
		case OP_SET_LOCAL:
			slot := int(m.readU8(fr))
			v, err := m.pop()
			if err != nil {
				return Null(), err
			}
			if err := m.setRegister(slot, v); err != nil {
				return Null(), err
			}

		case OP_GET_GLOBAL:
			idx := m.readU16(fr)
			name, err := constString(fr.proto.Chunk.Consts, idx)
			if err != nil {
				return Null(), err
			}
			v, ok := m.globals[name]
			if !ok {
				return Null(), fmt.Errorf("global %s not found", name)
			}
			if err := m.push(v); err != nil {
				return Null(), err
			}
		case OP_SET_GLOBAL:
			idx := m.readU16(fr)
			name, err := constString(fr.proto.Chunk.Consts, idx)
			if err != nil {
				return Null(), err
			}
			v, err := m.pop()
			if err != nil {
				return Null(), err
			}
			m.globals[name] = v
		case OP_DEFINE_GLOBAL:
			idx := m.readU16(fr)
			name, err := constString(fr.proto.Chunk.Consts, idx)
			if err != nil {
				return Null(), err
			}
			val, err := m.pop()
			if err != nil {
				return Null(), err
			}
			m.globals[name] = val

		case OP_ARRAY:
			count := int(m.readU16(fr))
			off, err := m.heap.allocate(count * wordSize)
			if err != nil {
				return Null(), err
			}
			elems := make([]Cell, count)
			for i := count - 1; i >= 0; i-- {
				v, err := m.pop()
				if err != nil {
					return Null(), err
				}
				elems[i] = v
			}
			if err := m.push(Cell{Kind: KindArray, Arr: elems, HeapOffset: off, HeapLen: count * wordSize}); err != nil {
				return Null(), err
			}
		case OP_OBJECT:
			count := int(m.readU16(fr))
			off, err := m.heap.allocate(count * wordSize * 2)
			if err != nil {
				return Null(), err
			}
			obj := make(map[string]Cell, count)
			for i := 0; i < count; i++ {
				val, err := m.pop()
				if err != nil {
					return Null(), err
				}
				key, err := m.pop()
				if err != nil {
					return Null(), err
				}
				obj[displayString(key)] = val
			}
			if err := m.push(Cell{Kind: KindObject, Obj: obj, HeapOffset: off, HeapLen: count * wordSize * 2}); err != nil {
				return Null(), err
			}

		case OP_INDEX_GET:
			index, err := m.pop()
			if err != nil {
				return Null(), err
			}
			target, err := m.pop()
			if err != nil {
				return Null(), err
			}
			v, err := indexGet(target, index)
			if err != nil {
				return Null(), err
			}
			if err := m.push(v); err != nil {
				return Null(), err
			}
		case OP_INDEX_SET:
			index, err := m.pop()
			if err != nil {
				return Null(), err
			}
			target, err := m.pop()
			if err != nil {
				return Null(), err
			}
			val, err := m.pop()
			if err != nil {
				return Null(), err
			}
			if err := indexSet(target, index, val); err != nil {
				return Null(), err
			}

		case OP_JUMP, OP_LOOP:
			off := m.readU16(fr)
			fr.pc = int(off)
		case OP_JUMP_IF_FALSE:
			off := m.readU16(fr)
			if len(m.operands) == 0 {
				return Null(), fmt.Errorf("stack underflow")
			}
			if !m.peek().Truthy() {
				fr.pc = int(off)
			}
		case OP_JUMP_IF_TRUE:
			off := m.readU16(fr)
			if len(m.operands) == 0 {
				return Null(), fmt.Errorf("stack underflow")
			}
			if m.peek().Truthy() {
				fr.pc = int(off)
			}

		case OP_CALL:
			argc := int(m.readU8(fr))
			if len(m.operands) < argc+1 {
				return Null(), fmt.Errorf("stack underflow on call")
			}
			args := make([]Cell, argc)
			for i := argc - 1; i >= 0; i-- {
				v, err := m.pop()
				if err != nil {
					return Null(), err
				}
				args[i] = v
			}
			callee, err := m.pop()
			if err != nil {
				return Null(), err
			}
			if callee.Kind != KindFunction {
				return Null(), fmt.Errorf("value is not callable")
			}
			proto, ok := callee.Proto.(*bytecode.Prototype)
			if !ok || proto == nil {
				return Null(), fmt.Errorf("value is not callable")
			}
			m.calls = append(m.calls, fr.pc)
			for i, a := range args {
				if err := m.setRegister(i, a); err != nil {
					return Null(), err
				}
			}
			m.frames = append(m.frames, frame{proto: proto, base: len(m.operands)})

		case OP_RETURN:
			ret := Null()
			if len(m.operands) > fr.base {
				v, err := m.pop()
				if err != nil {
					return Null(), err
				}
				ret = v
			}
			for len(m.operands) > fr.base {
				if _, err := m.pop(); err != nil {
					return Null(), err
				}
			}
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) == 0 {
				return ret, nil
			}
			if len(m.calls) == 0 {
				return Null(), fmt.Errorf("return from empty call stack")
			}
			retPC := m.calls[len(m.calls)-1]
			m.calls = m.calls[:len(m.calls)-1]
			m.currentFrame().pc = retPC
			if err := m.push(ret); err != nil {
				return Null(), err
			}

		case OP_EXIT:
			m.halted = true
			if len(m.operands) > 0 {
				v, err := m.pop()
				if err != nil {
					return Null(), err
				}
				return v, nil
			}
			return Null(), nil

		default:
			return Null(), fmt.Errorf("unsupported opcode 0x%02X on register engine", op)
		}
	}
}

func (m *Machine) readU8(fr *frame) byte {
	v := fr.proto.Chunk.Code[fr.pc]
	fr.pc++
	return v
}

func (m *Machine) readU16(fr *frame) uint16 {
	hi := fr.proto.Chunk.Code[fr.pc]
	lo := fr.proto.Chunk.Code[fr.pc+1]
	fr.pc += 2
	return uint16(hi)<<8 | uint16(lo)
}

func constCell(consts []interface{}, idx uint16) (Cell, error) {
	if int(idx) >= len(consts) {
		return Cell{}, fmt.Errorf("constant index out of range")
	}
	switch v := consts[idx].(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case float64:
		return Number(v), nil
	case string:
		return String(v), nil
	case *bytecode.Prototype:
		return Cell{Kind: KindFunction, Proto: v}, nil
	default:
		return Cell{}, fmt.Errorf("unsupported constant type %T", v)
	}
}

func constString(consts []interface{}, idx uint16) (string, error) {
	c, err := constCell(consts, idx)
	if err != nil {
		return "", err
	}
	if c.Kind != KindString {
		return "", fmt.Errorf("constant is not a string")
	}
	return c.Str, nil
}

func indexGet(target, index Cell) (Cell, error) {
	switch target.Kind {
	case KindArray:
		if index.Kind != KindNumber {
			return Null(), fmt.Errorf("array index must be a number")
		}
		i := int(index.Num)
		if i < 0 || i >= len(target.Arr) {
			return Null(), fmt.Errorf("array index out of range")
		}
		return target.Arr[i], nil
	case KindObject:
		key := displayString(index)
		v, ok := target.Obj[key]
		if !ok {
			return Null(), nil
		}
		return v, nil
	case KindString:
		if index.Kind != KindNumber {
			return Null(), fmt.Errorf("string index must be a number")
		}
		i := int(index.Num)
		if i < 0 || i >= len(target.Str) {
			return Null(), fmt.Errorf("string index out of range")
		}
		return String(string(target.Str[i])), nil
	default:
		return Null(), fmt.Errorf("cannot index %s", TypeName(target))
	}
}

func indexSet(target, index, val Cell) error {
	switch target.Kind {
	case KindArray:
		if index.Kind != KindNumber {
			return fmt.Errorf("array index must be a number")
		}
		i := int(index.Num)
		if i < 0 || i >= len(target.Arr) {
			return fmt.Errorf("array index out of range")
		}
		target.Arr[i] = val
		return nil
	case KindObject:
		target.Obj[displayString(index)] = val
		return nil
	default:
		return fmt.Errorf("cannot index-assign %s", TypeName(target))
	}
}
