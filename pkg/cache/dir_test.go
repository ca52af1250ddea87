package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirIsolated(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "")
	project := t.TempDir()

	dir, err := Dir(project, true)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	want := filepath.Join(project, ".ansible")
	if dir != want {
		t.Errorf("Dir = %s, want %s", dir, want)
	}

	for _, sub := range []string{"roles", "collections"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("expected %s subdirectory: %v", sub, err)
		}
	}
}

func TestDirVirtualEnvFallback(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can write anywhere")
	}
	venv := t.TempDir()
	t.Setenv("VIRTUAL_ENV", venv)
	project := t.TempDir()
	if err := os.Chmod(project, 0o555); err != nil {
		t.Fatal(err)
	}

	dir, err := Dir(project, true)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if dir != filepath.Join(venv, ".ansible") {
		t.Errorf("Dir = %s, want venv cache when the project is read-only", dir)
	}
}

func TestDirAnsibleHomeOverridesVirtualEnv(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", t.TempDir())
	home := t.TempDir()
	t.Setenv("ANSIBLE_HOME", filepath.Join(home, ".ansible"))

	dir, err := Dir(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if dir != filepath.Join(home, ".ansible") {
		t.Errorf("Dir = %s, want ANSIBLE_HOME over the virtualenv", dir)
	}
}

func TestDirAnsibleHome(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "")
	home := t.TempDir()
	t.Setenv("ANSIBLE_HOME", filepath.Join(home, ".ansible"))

	dir, err := Dir(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if dir != filepath.Join(home, ".ansible") {
		t.Errorf("Dir = %s, want ANSIBLE_HOME", dir)
	}
}

func TestIsWritable(t *testing.T) {
	if !IsWritable(filepath.Join(t.TempDir(), "new", "nested")) {
		t.Error("nested temp path should be writable")
	}
	if os.Getuid() != 0 {
		ro := t.TempDir()
		if err := os.Chmod(ro, 0o555); err != nil {
			t.Fatal(err)
		}
		if IsWritable(filepath.Join(ro, "sub")) {
			t.Error("read-only parent should not be writable")
		}
	}
}
