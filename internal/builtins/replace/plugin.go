package replace

import (
	"github.com/dlclark/regexp2"

	"github.com/rplus-lang/rplus/internal/runtime"
	"github.com/rplus-lang/rplus/internal/vm"
)

const opcode byte = 0x87

func init() {
	runtime.Register(runtime.Spec{
		Name:    "replace",
		Opcode:  opcode,
		Arity:   3,
		Handler: runReplace,
	})
}

// runReplace substitutes every regex match of pattern in subject with
// replacement, supporting regexp2's $1-style backreferences.
func runReplace(rt *vm.VM) (vm.Value, error) {
	replacement := rt.Pop()
	pattern := rt.Pop()
	subject := rt.Pop()
	if subject.Kind != vm.KindString || pattern.Kind != vm.KindString || replacement.Kind != vm.KindString {
		return vm.RuntimeErrorf(rt, "replace expects (string, string, string)")
	}
	re, err := regexp2.Compile(pattern.Str, regexp2.None)
	if err != nil {
		return vm.RuntimeErrorf(rt, "replace: invalid pattern: %s", err)
	}
	out, err := re.Replace(subject.Str, replacement.Str, -1, -1)
	if err != nil {
		return vm.RuntimeErrorf(rt, "replace: %s", err)
	}
	rt.Push(vm.String(out))
	return vm.Value{}, nil
}
