package fuzzconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/raresmith/branchfuzz/internal/bandit"
)

func TestLoadFileMissingReturnsDefault(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.hujson"))
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("expected Default() for a missing file, got %+v", cfg)
	}
}

func TestLoadFileOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuzz.hujson")
	body := `{
		// bump the havoc budget, leave everything else at default
		"HAVOC_CYCLES": 512,
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HavocCycles != 512 {
		t.Fatalf("HavocCycles = %d, want 512", cfg.HavocCycles)
	}
	if cfg.ArithMax != Default().ArithMax {
		t.Fatalf("ArithMax should be untouched by a partial override, got %d", cfg.ArithMax)
	}
}

func TestLoadFileRejectsInvalidHuJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.hujson")
	if err := os.WriteFile(path, []byte("{ not json "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for malformed HuJSON")
	}
}

func TestBindFlagsOverridesSeed(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	if err := fs.Parse([]string{"--seed=42", "--vanilla", "--op-bandit=ucb1"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("Seed = %d, want 42", cfg.Seed)
	}
	if !cfg.VanillaMode {
		t.Fatal("expected --vanilla to set VanillaMode")
	}
	if cfg.OpBanditKind != bandit.KindUCB1 {
		t.Fatalf("OpBanditKind = %v, want ucb1", cfg.OpBanditKind)
	}
}

func TestBindFlagsRejectsUnknownBanditKind(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	if err := fs.Parse([]string{"--op-bandit=not-a-real-strategy"}); err == nil {
		t.Fatal("expected an error for an unknown bandit kind")
	}
}

func TestFuzzOneConfigProjection(t *testing.T) {
	cfg := Default()
	cfg.HavocCycles = 99
	cfg.TrimMinBytes = 7

	foc := cfg.FuzzOneConfig()
	if foc.Havoc.HavocCycles != 99 {
		t.Fatalf("HavocConfig().HavocCycles = %d, want 99", foc.Havoc.HavocCycles)
	}
	if foc.Trim.MinBytes != 7 {
		t.Fatalf("TrimConfig().MinBytes = %d, want 7", foc.Trim.MinBytes)
	}
}
