package match

import (
	"github.com/dlclark/regexp2"

	"github.com/rplus-lang/rplus/internal/runtime"
	"github.com/rplus-lang/rplus/internal/vm"
)

const opcode byte = 0x86

func init() {
	runtime.Register(runtime.Spec{
		Name:    "match",
		Opcode:  opcode,
		Arity:   2,
		Handler: runMatch,
	})
}

// runMatch tests a string against a regular expression pattern and
// pushes true/false. Malformed patterns surface as a runtime error
// rather than a silent false, since they indicate a script bug.
func runMatch(rt *vm.VM) (vm.Value, error) {
	pattern := rt.Pop()
	subject := rt.Pop()
	if subject.Kind != vm.KindString || pattern.Kind != vm.KindString {
		return vm.RuntimeErrorf(rt, "match expects (string, string)")
	}
	re, err := regexp2.Compile(pattern.Str, regexp2.None)
	if err != nil {
		return vm.RuntimeErrorf(rt, "match: invalid pattern: %s", err)
	}
	ok, err := re.MatchString(subject.Str)
	if err != nil {
		return vm.RuntimeErrorf(rt, "match: %s", err)
	}
	rt.Push(vm.Bool(ok))
	return vm.Value{}, nil
}
