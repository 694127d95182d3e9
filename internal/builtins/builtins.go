// Package builtins pulls in every builtin plugin for its registration
// side effect. Importing this package (typically blank-imported) wires
// the full builtin opcode range into internal/runtime's registry.
package builtins

import (
	_ "github.com/rplus-lang/rplus/internal/builtins/error"
	_ "github.com/rplus-lang/rplus/internal/builtins/index_exist"
	_ "github.com/rplus-lang/rplus/internal/builtins/index_read"
	_ "github.com/rplus-lang/rplus/internal/builtins/lower"
	_ "github.com/rplus-lang/rplus/internal/builtins/match"
	_ "github.com/rplus-lang/rplus/internal/builtins/readonly"
	_ "github.com/rplus-lang/rplus/internal/builtins/replace"
	_ "github.com/rplus-lang/rplus/internal/builtins/typeof"
	_ "github.com/rplus-lang/rplus/internal/builtins/upper"
	_ "github.com/rplus-lang/rplus/internal/builtins/value_exist"
)
