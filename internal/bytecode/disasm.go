package bytecode

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Disassembler formats bytecode as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	visited map[*Prototype]bool
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{
		w:       w,
		visited: make(map[*Prototype]bool),
	}
}

// DisassembleModule emits a readable dump for every function in a module,
// in declaration order, followed by the synthetic entry chunk (if any).
// This is the entry point for the `.rpx` native-code emitter.
func (d *Disassembler) DisassembleModule(mod *Module) error {
	if mod == nil {
		return fmt.Errorf("nil module")
	}
	for _, name := range mod.Order {
		proto := mod.Functions[name]
		if proto == nil {
			d.PrintMissing(name)
			continue
		}
		if err := d.DisassemblePrototype(name, proto); err != nil {
			return err
		}
	}
	if mod.Main != nil {
		if err := d.DisassemblePrototype("<entry>", mod.Main); err != nil {
			return err
		}
	}
	return nil
}

// DisassemblePrototype emits a readable dump for a prototype and any nested prototypes.
func (d *Disassembler) DisassemblePrototype(label string, proto *Prototype) error {
	if proto == nil || proto.Chunk == nil {
		return fmt.Errorf("nil prototype")
	}
	if d.visited[proto] {
		return nil
	}
	d.visited[proto] = true
	d.startSection()
	name := label
	if name == "" {
		name = proto.Name
	}
	if name == "" {
		name = "<anon>"
	}
	source := proto.Source
	if source == "" {
		source = "<unknown>"
	}
	fmt.Fprintf(d.w, "function %s() { ; params=%d, locals=%d, upvalues=%d source=%s\n",
		name, proto.NumParams, proto.MaxLocals, len(proto.Upvalues), source)
	if err := d.disassembleChunk(proto.Chunk); err != nil {
		return err
	}
	fmt.Fprintln(d.w, "}")
	for idx, c := range proto.Chunk.Consts {
		child, ok := c.(*Prototype)
		if !ok {
			continue
		}
		childName := child.Name
		if childName == "" {
			childName = fmt.Sprintf("<closure@const:%d>", idx)
		}
		if err := d.DisassemblePrototype(childName, child); err != nil {
			return err
		}
	}
	return nil
}

// PrintNative emits a header for a native (host) function.
func (d *Disassembler) PrintNative(name string) {
	d.startSection()
	if name == "" {
		name = "<native>"
	}
	fmt.Fprintf(d.w, "function %s() { } ; native\n", name)
}

// PrintMissing emits a header when a function has no prototype.
func (d *Disassembler) PrintMissing(name string) {
	d.startSection()
	if name == "" {
		name = "<unknown>"
	}
	fmt.Fprintf(d.w, "function %s() { } ; missing prototype\n", name)
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func (d *Disassembler) disassembleChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("nil chunk")
	}
	code := chunk.Code
	for ip := 0; ip < len(code); {
		offset := ip
		op := code[ip]
		ip++
		line := lineForOffset(chunk.Lines, offset)
		lineStr := "-"
		if line > 0 {
			lineStr = strconv.Itoa(line)
		}
		opName, comment := opName(op)
		operands, err := d.decodeOperands(op, chunk, &ip)
		if err != nil {
			return err
		}
		detail := strings.TrimSpace(operands)
		if comment != "" {
			if detail != "" {
				detail += " "
			}
			detail += "; " + comment
		}
		fmt.Fprintf(d.w, "%04d %4s %-16s", offset, lineStr, opName)
		if detail != "" {
			fmt.Fprintf(d.w, " %s", detail)
		}
		fmt.Fprintln(d.w)
	}
	return nil
}

func (d *Disassembler) decodeOperands(op byte, chunk *Chunk, ip *int) (string, error) {
	code := chunk.Code
	switch op {
	case OP_CONST:
		idx, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		if int(idx) >= len(chunk.Consts) {
			return "", fmt.Errorf("const index out of range: %d", idx)
		}
		return fmt.Sprintf("%d ; const[%d]=%s", idx, idx, formatConst(chunk.Consts[idx])), nil
	case OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEFINE_GLOBAL:
		idx, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d ; name=%s", idx, formatConstRef(chunk, idx)), nil
	case OP_GET_PROP, OP_SET_PROP:
		idx, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d ; prop=%s", idx, formatConstRef(chunk, idx)), nil
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE, OP_CALL:
		slot, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d", slot), nil
	case OP_ARRAY, OP_OBJECT:
		count, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d", count), nil
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_LOOP, OP_ITER_NEXT:
		off, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d", off), nil
	case OP_CLOSURE:
		idx, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		upcount, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		upvals := make([]string, 0, upcount)
		for i := 0; i < int(upcount); i++ {
			isLocal, err := readU8(code, ip)
			if err != nil {
				return "", err
			}
			slot, err := readU8(code, ip)
			if err != nil {
				return "", err
			}
			if isLocal == 1 {
				upvals = append(upvals, fmt.Sprintf("local %d", slot))
			} else {
				upvals = append(upvals, fmt.Sprintf("upvalue %d", slot))
			}
		}
		operand := fmt.Sprintf("%d %d", idx, upcount)
		if len(upvals) > 0 {
			operand = operand + " [" + strings.Join(upvals, ", ") + "]"
		}
		return operand, nil
	default:
		return "", nil
	}
}

// opName returns the mnemonic and an optional trailing comment for an
// opcode byte, preferring the built-in registry for bytes in the
// reserved built-in range.
func opName(op byte) (string, string) {
	if info, ok := LookupBuiltinInfo(op); ok {
		return "Builtin." + info.Name, fmt.Sprintf("arity=%d", info.Arity)
	}
	if op >= 0x80 {
		return fmt.Sprintf("Builtin.0x%02X", op), ""
	}
	if name := Name(op); name != "" {
		return name, ""
	}
	return fmt.Sprintf("0x%02X", op), ""
}

func lineForOffset(lines []LineInfo, offset int) int {
	line := 0
	for _, info := range lines {
		if info.Offset > offset {
			break
		}
		line = info.Line
	}
	return line
}

func readU8(code []byte, ip *int) (byte, error) {
	if *ip >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	val := code[*ip]
	*ip = *ip + 1
	return val, nil
}

func readU16(code []byte, ip *int) (uint16, error) {
	if *ip+1 >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	hi := code[*ip]
	lo := code[*ip+1]
	*ip += 2
	return uint16(hi)<<8 | uint16(lo), nil
}

func formatConstRef(chunk *Chunk, idx uint16) string {
	if chunk == nil || int(idx) >= len(chunk.Consts) {
		return "<invalid>"
	}
	return formatConst(chunk.Consts[idx])
}

func formatConst(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return strconv.Quote(val)
	case *Prototype:
		name := val.Name
		if name == "" {
			name = "<anon>"
		}
		return "proto " + name
	default:
		return "<unknown>"
	}
}
