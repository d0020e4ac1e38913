// Command tsvmc is a thin CLI driver over the execution context: it loads a
// serialized module (spec.md §6), optionally dumps its IR, and runs one
// function through the selected back end. Mirrors the teacher's
// cmd/ralph-cc debug-dump flag pattern (one boolean flag per pipeline
// stage) rather than reimplementing a source-to-module compiler — per
// spec.md §1's Non-goals, the lexer/parser/module producer are external
// collaborators, so this CLI's input is always a compiled module file.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tsvm-lang/tsvm/internal/engine"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/optimize"
)

var version = "0.1.0"

var (
	configPath string
	dIR        bool
	dOpt       bool
	useJIT     bool
	entryName  string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut *os.File) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tsvmc [module-file]",
		Short:         "tsvmc loads a compiled module and runs it on the VM or native backend",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to an EngineConfig YAML file")
	rootCmd.Flags().BoolVar(&dIR, "dir", false, "dump each function's IR before running")
	rootCmd.Flags().BoolVar(&dOpt, "dopt", false, "dump each function's IR after the configured optimizer passes")
	rootCmd.Flags().BoolVar(&useJIT, "jit", false, "select the native backend instead of the VM (overrides config)")
	rootCmd.Flags().StringVar(&entryName, "entry", "main", "name of the function to run")

	return rootCmd
}

func runModule(path string, out, errOut *os.File) error {
	cfg := engine.DefaultConfig()
	if configPath != "" {
		loaded, err := engine.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if useJIT {
		cfg.Backend = engine.BackendJIT
	}

	ctx, err := engine.New(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tsvmc: reading %q: %w", path, err)
	}
	mod, err := ctx.LoadModule(data)
	if err != nil {
		return fmt.Errorf("tsvmc: loading %q: %w", path, err)
	}

	if dIR {
		dumpFunctions(out, mod.Code)
	}

	for _, fn := range mod.Code {
		if err := optimize.Run(fn, cfg.OptPasses); err != nil {
			return fmt.Errorf("tsvmc: optimizing %q: %w", fn.Name, err)
		}
	}

	if dOpt {
		dumpFunctions(out, mod.Code)
	}

	var entry *ir.Function
	for _, fe := range mod.Functions {
		if fe.Name == entryName {
			entry, _ = ctx.Function(fe.ID)
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("tsvmc: module %q has no function named %q", mod.Name, entryName)
	}

	if cfg.Backend == engine.BackendJIT {
		exe, err := ctx.Native.Compile(entry)
		if err != nil {
			return fmt.Errorf("tsvmc: compiling %q: %w", entryName, err)
		}
		defer exe.Close()

		result, err := exe.Invoke(nil)
		if err != nil {
			return fmt.Errorf("tsvmc: running %q natively: %w", entryName, err)
		}
		fmt.Fprintf(out, "%s() = %d\n", entryName, result)
		return nil
	}

	result, err := ctx.VM.Execute(entry, nil)
	if err != nil {
		return fmt.Errorf("tsvmc: running %q: %w", entryName, err)
	}
	fmt.Fprintf(out, "%s() = %d\n", entryName, result)
	return nil
}

func dumpFunctions(out *os.File, code map[ids.FuncID]*ir.Function) {
	keys := make([]ids.FuncID, 0, len(code))
	for k := range code {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	p := ir.NewPrinter(out)
	for _, k := range keys {
		p.PrintFunction(code[k])
	}
}
