package compiler

import "github.com/rplus-lang/rplus/internal/bytecode"

type Chunk = bytecode.Chunk
type Prototype = bytecode.Prototype
type Module = bytecode.Module
type Upvalue = bytecode.Upvalue
type LineInfo = bytecode.LineInfo
