package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate cleanly, got %v", err)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unknown backend")
	}
}

func TestValidateRejectsZeroStackSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StackSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for a zero stack size")
	}
}

func TestValidateRejectsNonPositiveRegisters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Registers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for a non-positive register count")
	}
}

func TestLoadConfigAppliesOverridesOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	writeFile(t, path, "backend: jit\nstack_size: 65536\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend != BackendJIT {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendJIT)
	}
	if cfg.StackSize != 65536 {
		t.Errorf("StackSize = %d, want 65536", cfg.StackSize)
	}
	// Fields the file omits keep DefaultConfig's values.
	if cfg.Registers != DefaultConfig().Registers {
		t.Errorf("Registers = %d, want the default %d", cfg.Registers, DefaultConfig().Registers)
	}
	if cfg.CallingABI != DefaultConfig().CallingABI {
		t.Errorf("CallingABI = %q, want the default %q", cfg.CallingABI, DefaultConfig().CallingABI)
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	writeFile(t, path, "stack_size: 0\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected LoadConfig to reject a config that fails Validate")
	}
}

func TestLoadConfigReportsMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error reading a nonexistent config file")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %q: %v", path, err)
	}
}
