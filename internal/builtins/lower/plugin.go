package lower

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rplus-lang/rplus/internal/runtime"
	"github.com/rplus-lang/rplus/internal/vm"
)

const opcode byte = 0x89

var caser = cases.Lower(language.Und)

func init() {
	runtime.Register(runtime.Spec{
		Name:    "lower",
		Opcode:  opcode,
		Arity:   1,
		Handler: runLower,
	})
}

func runLower(rt *vm.VM) (vm.Value, error) {
	v := rt.Pop()
	if v.Kind != vm.KindString {
		return vm.RuntimeErrorf(rt, "lower expects a string")
	}
	rt.Push(vm.String(caser.String(v.Str)))
	return vm.Value{}, nil
}
