package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"

	"github.com/hmny-toolchain/n2t-codegen/internal/config"
	"github.com/hmny-toolchain/n2t-codegen/pkg/asm"
	"github.com/hmny-toolchain/n2t-codegen/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode-like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("input", "The bytecode (.vm) file, or a directory of them, to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Forces inclusion (or exclusion, via --bootstrap=false) of the bootstrap code").
		WithType(cli.TypeString)).
	WithAction(Handler)

// Handler translates either a single '.vm' file or a directory of them: a single
// file suppresses the bootstrap and appends the single-file halt epilogue, a directory emits
// the bootstrap once and concatenates every module's translation, sorted by module name.
func Handler(args []string, options map[string]string) int {
	input := "."
	if len(args) > 0 && args[0] != "" {
		input = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("ERROR: unable to load configuration: %s\n", err)
		return -1
	}

	info, err := os.Stat(input)
	if err != nil {
		fmt.Printf("ERROR: unable to open input: %s\n", err)
		return -1
	}

	var modules map[string]string // module name -> source path
	var outputPath string
	bootstrap := cfg.VMTranslator.Bootstrap

	if info.IsDir() {
		modules, err = discoverModules(input)
		if err != nil {
			fmt.Printf("ERROR: unable to enumerate '%s': %s\n", input, err)
			return -1
		}

		abs, err := filepath.Abs(input)
		if err != nil {
			fmt.Printf("ERROR: unable to resolve '%s': %s\n", input, err)
			return -1
		}
		outputPath = filepath.Join(input, filepath.Base(abs)+cfg.Output.AsmSuffix)
	} else {
		name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		modules = map[string]string{name: input}
		outputPath = strings.TrimSuffix(input, filepath.Ext(input)) + cfg.Output.AsmSuffix
		bootstrap = false
	}

	if raw, ok := options["bootstrap"]; ok {
		bootstrap = raw != "false"
	}

	program := map[string]vm.Module{}
	order := make([]string, 0, len(modules))
	for name := range modules {
		order = append(order, name)
	}
	sort.Strings(order)

	for _, name := range order {
		content, err := os.ReadFile(modules[name])
		if err != nil {
			fmt.Printf("ERROR: unable to open '%s': %s\n", modules[name], err)
			return -1
		}

		parser := vm.NewParser(name)
		module, err := parser.Parse(strings.NewReader(string(content)))
		if err != nil {
			fmt.Printf("ERROR: unable to complete 'parsing' pass on '%s': %s\n", name, err)
			return -1
		}
		program[name] = module
	}

	driver := vm.NewDriver(program, order, bootstrap, !bootstrap).
		WithHaltSequence(cfg.VMTranslator.HaltComp, cfg.VMTranslator.HaltJump)
	asmProgram, err := driver.Run()
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'driver' pass: %s\n", err)
		return -1
	}

	// The VM Translator's published artifact is the symbolic '.asm' text: labels and
	// built-ins are resolved to addresses later, by the Hack Assembler (pkg/asm.Driver +
	// pkg/hack.CodeGenerator), not here.
	codegen := asm.NewCodeGenerator(asmProgram)
	lines, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	if err := writeAtomic(outputPath, lines); err != nil {
		fmt.Printf("ERROR: unable to write output file: %s\n", err)
		return -1
	}

	return 0
}

// discoverModules enumerates the '.vm' entries of 'dir' (non-recursive), keyed by their
// base name with the extension stripped, which doubles as the VM module name.
func discoverModules(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".vm" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".vm")
		out[name] = filepath.Join(dir, entry.Name())
	}
	return out, nil
}

// writeAtomic dumps 'lines' to a temp file in the same directory as 'path' and renames it
// over 'path' only once the write has fully succeeded, so a failed run never leaves a
// partially-written '.asm' file at the published path.
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

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
