// Package engine assembles the execution context the rest of this module's
// packages are deliberately written to avoid owning themselves: a type
// registry, a function registry, a value.Engine wired to a callgen.Generator,
// and a chosen execution back end (the register VM or the native JIT), all
// created once per run and passed explicitly rather
// than reached for through package-level state (spec.md Design Notes,
// "package these as an execution context... pass the context explicitly").
//
// Config is loaded from YAML the way the teacher's go.mod already declares
// gopkg.in/yaml.v3 as a dependency without using it; this package is where
// that dependency earns its keep.
package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend selects which execution engine runs compiled IR.
type Backend string

const (
	BackendVM  Backend = "vm"
	BackendJIT Backend = "jit"
)

// Config is the on-disk shape of an engine's tunables (spec.md §A,
// "config.EngineConfig file (VM stack size, register-allocator register
// count, optimizer pass list, FFI calling-convention, JIT vs. VM
// selection)").
type Config struct {
	Backend    Backend  `yaml:"backend"`
	StackSize  uint64   `yaml:"stack_size"`
	Registers  int      `yaml:"registers"`
	OptPasses  []string `yaml:"opt_passes"`
	CallingABI string   `yaml:"calling_abi"`
}

// DefaultConfig mirrors original_source/src/vm/VM.cpp's compiled-in
// defaults: a one-megabyte stack and the System V AMD64 calling convention,
// running interpreted until a caller opts into the JIT.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendVM,
		StackSize:  1 << 20,
		Registers:  256,
		OptPasses:  []string{"label-offsets"},
		CallingABI: "sysv-amd64",
	}
}

// LoadConfig reads and validates an EngineConfig YAML file, filling in
// DefaultConfig's values for anything the file omits.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("engine: reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("engine: parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects a config that cannot build a working context.
func (c Config) Validate() error {
	if c.Backend != BackendVM && c.Backend != BackendJIT {
		return fmt.Errorf("engine: unknown backend %q", c.Backend)
	}
	if c.StackSize == 0 {
		return fmt.Errorf("engine: stack_size must be positive")
	}
	if c.Registers <= 0 {
		return fmt.Errorf("engine: registers must be positive")
	}
	return nil
}
