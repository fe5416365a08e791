package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileIsZeroValue(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Branchless.Restack.PreserveTimestamps {
		t.Fatal("expected default false")
	}
	if !c.Branchless.Hint.FixAbandoned() {
		t.Fatal("expected smartlogFixAbandoned to default true")
	}
}

func TestLoadLayeredLocalOverridesSystem(t *testing.T) {
	dir := t.TempDir()
	sysPath := filepath.Join(dir, "system.toml")
	localPath := filepath.Join(dir, "local.toml")
	writeFile(t, sysPath, `
[branchless.restack]
preserveTimestamps = false

[branchless.core]
mainBranch = "main"
`)
	writeFile(t, localPath, `
[branchless.restack]
preserveTimestamps = true
`)
	c, err := LoadLayered(sysPath, localPath)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Branchless.Restack.PreserveTimestamps {
		t.Fatal("expected local to override preserveTimestamps to true")
	}
	if c.Branchless.Core.MainBranchOrDefault() != "main" {
		t.Fatalf("expected system mainBranch to survive merge, got %q", c.Branchless.Core.MainBranch)
	}
}

func TestMainBranchDefault(t *testing.T) {
	var c Core
	if c.MainBranchOrDefault() != DefaultMainBranch {
		t.Fatalf("expected default %q", DefaultMainBranch)
	}
}
