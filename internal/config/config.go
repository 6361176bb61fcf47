// Package config loads the handful of cross-cutting defaults shared by both
// CLI entry points from an optional 'n2t.toml' in the working directory.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the defaults both CLIs fall back to absent an explicit flag.
// None of these knobs change the semantics fixed by the assembler/VM specs,
// only which file-naming/bootstrap defaults apply when the caller doesn't
// say otherwise.
type Config struct {
	VMTranslator struct {
		Bootstrap bool   `toml:"bootstrap"` // Default for directory-mode translation units
		HaltComp  string `toml:"halt_comp"` // 'comp' mnemonic of the single-file halt self-jump
		HaltJump  string `toml:"halt_jump"` // 'jump' mnemonic of the single-file halt self-jump
	} `toml:"vm_translator"`

	Output struct {
		HackSuffix string `toml:"hack_suffix"` // Appended to the assembler's output file name
		AsmSuffix  string `toml:"asm_suffix"`  // Appended to the VM translator's output file name
	} `toml:"output"`
}

// DefaultFileName is the config file looked up in the current working
// directory when the caller doesn't name one explicitly.
const DefaultFileName = "n2t.toml"

// Default returns the in-code configuration used when no 'n2t.toml' is found,
// matching the codegen defaults already hard-coded in pkg/vm.
func Default() *Config {
	cfg := &Config{}
	cfg.VMTranslator.Bootstrap = true
	cfg.VMTranslator.HaltComp = "0"
	cfg.VMTranslator.HaltJump = "JMP"
	cfg.Output.HackSuffix = ".hack"
	cfg.Output.AsmSuffix = ".asm"
	return cfg
}

// Load reads 'n2t.toml' from the current working directory, falling back to
// Default() when the file is absent.
func Load() (*Config, error) {
	return LoadFrom(DefaultFileName)
}

// LoadFrom reads the TOML configuration at 'path', falling back to Default()
// when the file doesn't exist. Any other I/O or decode failure is returned
// to the caller; unlike the CLI handlers, config loading doesn't originate a
// 'diag' error since it has no associated VM/Asm module or line.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
