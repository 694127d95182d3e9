// Command rplus is the R+ compiler and runtime CLI: compile scripts to
// a textual native-code export, run them directly, or drive a REPL.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rplus-lang/rplus/internal/buildinfo"
	"github.com/rplus-lang/rplus/internal/bytecode"
	"github.com/rplus-lang/rplus/internal/compiler"
	"github.com/rplus-lang/rplus/internal/config"
	"github.com/rplus-lang/rplus/internal/diag"
	"github.com/rplus-lang/rplus/internal/emit"
	"github.com/rplus-lang/rplus/internal/lexer"
	"github.com/rplus-lang/rplus/internal/parser"
	"github.com/rplus-lang/rplus/internal/regvm"
	"github.com/rplus-lang/rplus/internal/token"
	"github.com/rplus-lang/rplus/internal/vm"

	_ "github.com/rplus-lang/rplus/internal/builtins"
)

const usage = `Usage:
  rplus -h | --help
  rplus -v | --version
  rplus compile <in.rp> [out.rpx]
  rplus -c <in.rp> [out.rpx]
  rplus <in.rp> [out.rpx]
  rplus [--engine=stack|register] run <in.rp>
  rplus [--engine=stack|register] -i | interactive

Flags:
  --engine=stack|register   VM to use for run/-i (default stack)
  --project <dir>           load rplus.toml from dir to resolve the entry file
`

func main() {
	helpFlag := flag.Bool("h", false, "show usage")
	helpLong := flag.Bool("help", false, "show usage")
	versionFlag := flag.Bool("v", false, "show version")
	versionLong := flag.Bool("version", false, "show version")
	compileFlag := flag.String("c", "", "compile the given source file")
	interactiveFlag := flag.Bool("i", false, "start the interactive REPL")
	engineFlag := flag.String("engine", "stack", "VM engine: stack or register")
	projectFlag := flag.String("project", "", "project directory containing rplus.toml")
	flag.Parse()

	if *helpFlag || *helpLong {
		fmt.Print(usage)
		os.Exit(0)
	}
	if *versionFlag || *versionLong {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	log := diag.NewLogger("cli")

	if *compileFlag != "" {
		out := "output.rpx"
		if flag.NArg() >= 1 {
			out = flag.Arg(0)
		}
		runCompile(log, *compileFlag, out)
		return
	}

	if *interactiveFlag {
		runRepl(log, *engineFlag)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		if *projectFlag != "" {
			runProject(log, *projectFlag, *engineFlag)
			return
		}
		fmt.Fprint(os.Stderr, usage)
		os.Exit(64)
	}

	switch args[0] {
	case "interactive":
		runRepl(log, *engineFlag)
	case "compile":
		in, out := cliArgs(args[1:])
		runCompile(log, in, out)
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: rplus run <in.rp>")
			os.Exit(64)
		}
		runScript(log, args[1], *engineFlag)
	default:
		in, out := cliArgs(args)
		runCompile(log, in, out)
	}
}

func cliArgs(args []string) (in, out string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rplus compile <in.rp> [out.rpx]")
		os.Exit(64)
	}
	in = args[0]
	out = "output.rpx"
	if len(args) >= 2 {
		out = args[1]
	}
	return in, out
}

func runProject(log *diag.Logger, dir, engine string) {
	manifest, err := config.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: %s\n", err)
		os.Exit(70)
	}
	if manifest == nil {
		fmt.Fprintf(os.Stderr, "rplus: no rplus.toml found under %s\n", dir)
		os.Exit(66)
	}
	runScript(log, manifest.EntryPath(), engine)
}

// runCompile drives the five-step progress log: read, lex, parse,
// generate code, write.
func runCompile(log *diag.Logger, in, out string) {
	log.Step(1, 5, "reading %s", in)
	src, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: %s\n", err)
		os.Exit(66)
	}

	log.Step(2, 5, "lexing %s", in)
	tokenCount := countTokens(string(src))
	log.Infof("lexed %d tokens", tokenCount)

	log.Step(3, 5, "parsing %s", in)
	p := parser.New(lexer.New(string(src)))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "rplus: parse error: %s\n", e)
		}
		os.Exit(65)
	}

	log.Step(4, 5, "generating code for %s", in)
	mod, err := compiler.Compile(prog, filepath.Base(in))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: compile error: %s\n", err)
		os.Exit(65)
	}

	log.Step(5, 5, "writing %s", out)
	n, err := emit.WriteFile(out, mod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: %s\n", err)
		os.Exit(70)
	}
	log.Infof("wrote %d bytes to %s", n, out)
	fmt.Printf("OK: %s -> %s (%d bytes)\n", in, out, n)
}

func runScript(log *diag.Logger, in, engine string) {
	src, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: %s\n", err)
		os.Exit(66)
	}
	mod, err := compileSource(string(src), filepath.Base(in))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: %s\n", err)
		os.Exit(65)
	}
	result, err := runModule(mod, engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rplus: runtime error: %s\n", err)
		os.Exit(70)
	}
	fmt.Println(result)
}

func compileSource(src, name string) (*bytecode.Module, error) {
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse errors: %v", errs)
	}
	return compiler.Compile(prog, name)
}

func runModule(mod *bytecode.Module, engine string) (string, error) {
	switch engine {
	case "register":
		m := regvm.New()
		m.LoadModule(mod)
		v, err := m.RunMain(mod)
		if err != nil {
			return "", err
		}
		return displayCell(v), nil
	default:
		machine := vm.New()
		machine.LoadModule(mod)
		v, err := machine.RunMain(mod)
		if err != nil {
			return "", err
		}
		return displayValue(v), nil
	}
}

func runRepl(log *diag.Logger, engine string) {
	fmt.Println("R+ REPL (type 'exit' or 'quit' to leave)")
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return
			}
			fmt.Fprintf(os.Stderr, "rplus: %s\n", err)
			return
		}
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "":
			continue
		case "exit", "quit":
			return
		case "help":
			fmt.Println("commands: exit, quit, clear, help")
			continue
		case "clear":
			fmt.Print("\033[H\033[2J")
			continue
		}

		mod, err := compileSource(trimmed, "repl")
		if err != nil {
			fmt.Println(err)
			continue
		}
		result, err := runModule(mod, engine)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println(result)
	}
}

func countTokens(src string) int {
	l := lexer.New(src)
	n := 0
	for {
		tok := l.NextToken()
		n++
		if tok.Type == token.EOF {
			break
		}
	}
	return n
}

func displayValue(v vm.Value) string {
	switch v.Kind {
	case vm.KindNull:
		return "null"
	case vm.KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case vm.KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case vm.KindString:
		return v.Str
	case vm.KindError:
		return "error: " + v.Err
	default:
		return "[" + vm.TypeName(v) + "]"
	}
}

func displayCell(c regvm.Cell) string {
	switch c.Kind {
	case regvm.KindNull:
		return "null"
	case regvm.KindBool:
		if c.B {
			return "true"
		}
		return "false"
	case regvm.KindNumber:
		return fmt.Sprintf("%g", c.Num)
	case regvm.KindString:
		return c.Str
	case regvm.KindError:
		return "error: " + c.Err
	default:
		return regvm.TypeName(c)
	}
}
