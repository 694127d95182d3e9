package upper

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rplus-lang/rplus/internal/runtime"
	"github.com/rplus-lang/rplus/internal/vm"
)

const opcode byte = 0x88

var caser = cases.Upper(language.Und)

func init() {
	runtime.Register(runtime.Spec{
		Name:    "upper",
		Opcode:  opcode,
		Arity:   1,
		Handler: runUpper,
	})
}

func runUpper(rt *vm.VM) (vm.Value, error) {
	v := rt.Pop()
	if v.Kind != vm.KindString {
		return vm.RuntimeErrorf(rt, "upper expects a string")
	}
	rt.Push(vm.String(caser.String(v.Str)))
	return vm.Value{}, nil
}
