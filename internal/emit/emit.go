// Package emit renders a compiled module as textual native code (.rpx),
// wrapping internal/bytecode's disassembler with the file-writing and
// header framing a standalone export format needs.
package emit

import (
	"bytes"
	"fmt"
	"os"

	"github.com/rplus-lang/rplus/internal/bytecode"
)

// WriteFile renders mod as native code and writes it to path.
func WriteFile(path string, mod *bytecode.Module) (int, error) {
	data, err := Render(mod, path)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("cannot write %s: %w", path, err)
	}
	return len(data), nil
}

// Render produces the .rpx byte stream for a module without touching
// the filesystem, for callers that want to inspect or test the output.
func Render(mod *bytecode.Module, sourceName string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "; rplus native code export\n; source: %s\n; functions: %d\n\n",
		sourceName, len(mod.Functions))
	d := bytecode.NewDisassembler(&buf)
	if err := d.DisassembleModule(mod); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
