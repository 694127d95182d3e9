package emit_test

import (
	"os"
	"strings"
	"testing"

	"github.com/rplus-lang/rplus/internal/compiler"
	"github.com/rplus-lang/rplus/internal/emit"
	"github.com/rplus-lang/rplus/internal/lexer"
	"github.com/rplus-lang/rplus/internal/parser"
)

func compileModule(t *testing.T, src string) *compiler.Module {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	mod, err := compiler.Compile(prog, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return mod
}

func TestRenderIncludesHeaderAndFunctions(t *testing.T) {
	mod := compileModule(t, `function add(a, b) { return a + b }`)
	out, err := emit.Render(mod, "add.rp")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "source: add.rp") {
		t.Fatalf("expected source comment, got:\n%s", text)
	}
	if !strings.Contains(text, "add") {
		t.Fatalf("expected function name in output, got:\n%s", text)
	}
}

func TestWriteFileRoundTrips(t *testing.T) {
	mod := compileModule(t, `function main() { return 1 }`)
	path := t.TempDir() + "/out.rpx"
	n, err := emit.WriteFile(path, mod)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) != n {
		t.Fatalf("byte count mismatch: wrote %d, file has %d", n, len(data))
	}
}
