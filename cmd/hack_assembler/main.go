package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"

	"github.com/hmny-toolchain/n2t-codegen/internal/config"
	"github.com/hmny-toolchain/n2t-codegen/pkg/asm"
	"github.com/hmny-toolchain/n2t-codegen/pkg/hack"
)

var Description = strings.ReplaceAll(`
The Hack Assembler takes assembly language code written in the Hack assembly language
and translates it into machine code that can be executed by the Hack computer. The process
involves parsing the assembly code, resolving symbols, and generating machine code.
`, "\n", " ")

var HackAssembler = cli.New(Description).
	WithArg(cli.NewArg("input", "The assembler (.asm) file to be compiled")).
	WithAction(Handler)

// Handler assembles 'args[0]' and writes the result alongside it, same stem, '.hack' suffix.
func Handler(args []string, options map[string]string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("ERROR: unable to load configuration: %s\n", err)
		return -1
	}

	module := filepath.Base(args[0])

	input, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("ERROR: unable to open input file: %s\n", err)
		return -1
	}

	parser := asm.NewParser(module)
	asmProgram, err := parser.Parse(bytes.NewReader(input))
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'parsing' pass: %s\n", err)
		return -1
	}

	driver := asm.NewDriver(module, asmProgram)
	hackProgram, table, err := driver.Run()
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'driver' pass: %s\n", err)
		return -1
	}

	codegen := hack.NewCodeGenerator(hackProgram, table)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	outputPath := strings.TrimSuffix(args[0], filepath.Ext(args[0])) + cfg.Output.HackSuffix
	if err := writeAtomic(outputPath, compiled); err != nil {
		fmt.Printf("ERROR: unable to write output file: %s\n", err)
		return -1
	}

	return 0
}

// writeAtomic dumps 'lines' (one Hack instruction per line) to a temp file in the same
// directory as 'path' and renames it over 'path' only once the write has fully succeeded,
// so a failed run never leaves a partially-written '.hack' file at the published path.
func writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".n2t-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	for _, line := range lines {
		if _, err := fmt.Fprintf(tmp, "%s\n", line); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func main() { os.Exit(HackAssembler.Run(os.Args, os.Stdout)) }
