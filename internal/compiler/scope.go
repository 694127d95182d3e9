package compiler

// maxLocals bounds how many local slots a single function may use —
// OP_GET_LOCAL/OP_SET_LOCAL address a slot with a single byte operand.
const maxLocals = 255

// scope tracks locals and upvalues for nested functions.
type scope struct {
	enclosing *scope
	locals    map[string]uint8
	upvalues  []Upvalue
	nextLoc   int
}

func newScope(enclosing *scope) *scope {
	return &scope{
		enclosing: enclosing,
		locals:    make(map[string]uint8),
		upvalues:  []Upvalue{},
	}
}

// addLocal reserves a slot for a local variable, returning ok=false if
// the function has run out of addressable slots.
func (s *scope) addLocal(name string) (uint8, bool) {
	if s.nextLoc >= maxLocals {
		return 0, false
	}
	slot := uint8(s.nextLoc)
	s.locals[name] = slot
	s.nextLoc++
	return slot, true
}

// resolveLocal returns slot and true if found in current scope.
func (s *scope) resolveLocal(name string) (uint8, bool) {
	slot, ok := s.locals[name]
	return slot, ok
}

// resolveUpvalue walks enclosing scopes to find a name, capturing it if needed.
func (s *scope) resolveUpvalue(name string) (Upvalue, bool) {
	if s.enclosing == nil {
		return Upvalue{}, false
	}
	if slot, ok := s.enclosing.resolveLocal(name); ok {
		up := Upvalue{IsLocal: true, Index: slot}
		s.upvalues = append(s.upvalues, up)
		return Upvalue{IsLocal: false, Index: uint8(len(s.upvalues) - 1)}, true
	}
	if up, ok := s.enclosing.resolveUpvalue(name); ok {
		s.upvalues = append(s.upvalues, up)
		return Upvalue{IsLocal: false, Index: uint8(len(s.upvalues) - 1)}, true
	}
	return Upvalue{}, false
}
