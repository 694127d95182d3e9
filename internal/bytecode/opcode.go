package bytecode

// OpCode enumerates bytecode operations. Both the stack VM and the
// register VM dispatch on this same enumeration; grouping into blocks of
// eight leaves room to grow a category without renumbering its
// neighbors.
const (
	OP_CONST byte = iota
	OP_NULL
	OP_TRUE
	OP_FALSE
	OP_POP
	OP_DUP
	_ // reserved
	_ // reserved

	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_NEG
	OP_NOT
	_ // reserved

	OP_EQ
	OP_NEQ
	OP_LT
	OP_LTE
	OP_GT
	OP_GTE
	OP_AND
	OP_OR

	OP_GET_GLOBAL
	OP_SET_GLOBAL
	OP_DEFINE_GLOBAL
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved

	OP_GET_LOCAL
	OP_SET_LOCAL
	OP_GET_UPVALUE
	OP_SET_UPVALUE
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved

	OP_ARRAY
	OP_OBJECT
	OP_RANGE
	OP_INDEX_GET
	OP_INDEX_SET
	OP_GET_PROP
	OP_SET_PROP
	_ // reserved

	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_JUMP_IF_TRUE
	OP_LOOP
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved

	OP_CALL
	OP_RETURN
	OP_CLOSURE
	OP_EXIT
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
)

const (
	OP_NOP   byte = 0x40
	OP_DEBUG      = 0x41

	OP_ITER_PREP byte = 0x48
	OP_ITER_NEXT      = 0x49

	// 0x80-0x9F: reserved for built-in operations. See internal/builtins
	// and internal/runtime for the registry that assigns opcodes in this
	// range to named built-in functions.
)

// Name returns the mnemonic used by the disassembler/native emitter for
// a given opcode. Unknown bytes (including unassigned reserved slots and
// built-in opcodes not in this switch) render as a hex literal.
func Name(op byte) string {
	switch op {
	case OP_CONST:
		return "LoadConst"
	case OP_NULL:
		return "LoadNull"
	case OP_TRUE:
		return "LoadTrue"
	case OP_FALSE:
		return "LoadFalse"
	case OP_POP:
		return "Pop"
	case OP_DUP:
		return "Dup"
	case OP_ADD:
		return "Add"
	case OP_SUB:
		return "Sub"
	case OP_MUL:
		return "Mul"
	case OP_DIV:
		return "Div"
	case OP_MOD:
		return "Mod"
	case OP_NEG:
		return "Neg"
	case OP_NOT:
		return "Not"
	case OP_EQ:
		return "Equal"
	case OP_NEQ:
		return "NotEqual"
	case OP_LT:
		return "Less"
	case OP_LTE:
		return "LessEqual"
	case OP_GT:
		return "Greater"
	case OP_GTE:
		return "GreaterEqual"
	case OP_AND:
		return "And"
	case OP_OR:
		return "Or"
	case OP_GET_GLOBAL:
		return "GetGlobal"
	case OP_SET_GLOBAL:
		return "SetGlobal"
	case OP_DEFINE_GLOBAL:
		return "DefineGlobal"
	case OP_GET_LOCAL:
		return "GetLocal"
	case OP_SET_LOCAL:
		return "SetLocal"
	case OP_GET_UPVALUE:
		return "GetUpvalue"
	case OP_SET_UPVALUE:
		return "SetUpvalue"
	case OP_ARRAY:
		return "NewArray"
	case OP_OBJECT:
		return "NewObject"
	case OP_RANGE:
		return "NewRange"
	case OP_INDEX_GET:
		return "IndexLoad"
	case OP_INDEX_SET:
		return "IndexStore"
	case OP_GET_PROP:
		return "GetProp"
	case OP_SET_PROP:
		return "SetProp"
	case OP_JUMP:
		return "Jump"
	case OP_JUMP_IF_FALSE:
		return "JumpIfFalse"
	case OP_JUMP_IF_TRUE:
		return "JumpIfTrue"
	case OP_LOOP:
		return "Loop"
	case OP_CALL:
		return "Call"
	case OP_RETURN:
		return "Return"
	case OP_CLOSURE:
		return "Closure"
	case OP_EXIT:
		return "Exit"
	case OP_NOP:
		return "Nop"
	case OP_DEBUG:
		return "Debug"
	case OP_ITER_PREP:
		return "IterPrep"
	case OP_ITER_NEXT:
		return "IterNext"
	default:
		return ""
	}
}
