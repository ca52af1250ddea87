package commands

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ansible-devtools/ancompat/pkg/runtime"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand("1.0.0", "abc", "today")

	want := []string{"version", "config", "prepare", "install", "list", "validate", "clean"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestPrepareCommandFlags(t *testing.T) {
	cmd := newPrepareCommand()
	for _, name := range []string{"offline", "install-local", "role-name-check", "require", "watch"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("prepare is missing flag %q", name)
		}
	}
}

func TestWatchRequirementsStopsOnCancel(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "")
	t.Setenv("ANSIBLE_HOME", "")
	ctx, cancel := context.WithCancel(context.Background())

	r, err := runtime.NewRuntime(ctx, runtime.Config{
		ProjectDir: t.TempDir(),
		Isolated:   true,
		Environ:    []string{},
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}

	cancel()
	if err := watchRequirements(ctx, r, nil); err != nil {
		t.Errorf("watchRequirements() error = %v, want nil on cancel", err)
	}
}
