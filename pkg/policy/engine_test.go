package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestBuiltinPoliciesLoaded(t *testing.T) {
	e := testEngine(t)
	names := e.Policies()
	if len(names) != 3 {
		t.Errorf("Policies() = %v, want 3 built-ins", names)
	}
}

func TestEvaluateInstallAllowed(t *testing.T) {
	e := testEngine(t)
	result, err := e.EvaluateInstall(context.Background(), &InstallInput{
		Kind:    "collection",
		Name:    "community.general",
		Version: ">=1.0.0",
	})
	if err != nil {
		t.Fatalf("EvaluateInstall() error = %v", err)
	}
	if !result.Allowed {
		t.Errorf("Allowed = false, violations = %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != 3 {
		t.Errorf("EvaluatedPolicies = %v, want 3", result.EvaluatedPolicies)
	}
}

func TestEvaluateInstallBadName(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name  string
		input InstallInput
		allow bool
	}{
		{
			name:  "bare collection name",
			input: InstallInput{Kind: "collection", Name: "general"},
			allow: false,
		},
		{
			name:  "bare role name",
			input: InstallInput{Kind: "role", Name: "ntp"},
			allow: false,
		},
		{
			name:  "git source skips naming check",
			input: InstallInput{Kind: "collection", Name: "https://github.com/acme/acme.foo.git", Type: "git"},
			allow: true,
		},
		{
			name:  "local dir skips naming check",
			input: InstallInput{Kind: "collection", Name: "./collections/acme", Type: "dir"},
			allow: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.EvaluateInstall(context.Background(), &tt.input)
			if err != nil {
				t.Fatalf("EvaluateInstall() error = %v", err)
			}
			if result.Allowed != tt.allow {
				t.Errorf("Allowed = %v, want %v (violations %+v)", result.Allowed, tt.allow, result.Violations)
			}
		})
	}
}

func TestEvaluateInstallUnencryptedSource(t *testing.T) {
	e := testEngine(t)
	result, err := e.EvaluateInstall(context.Background(), &InstallInput{
		Kind: "collection",
		Name: "git://github.com/acme/acme.foo.git",
		Type: "git",
	})
	if err != nil {
		t.Fatalf("EvaluateInstall() error = %v", err)
	}
	if result.Allowed {
		t.Error("Allowed = true, want blocked for git:// source")
	}
	blockers := result.Blockers()
	if len(blockers) == 0 {
		t.Fatal("Blockers() is empty")
	}
	if blockers[0].Policy != "unencrypted-source" {
		t.Errorf("blocking policy = %q, want unencrypted-source", blockers[0].Policy)
	}
}

func TestEvaluateInstallServerAllowlist(t *testing.T) {
	e := testEngine(t)

	denied, err := e.EvaluateInstall(context.Background(), &InstallInput{
		Kind:           "collection",
		Name:           "community.general",
		Source:         "https://galaxy.example.com/",
		AllowedServers: []string{"https://galaxy.ansible.com/"},
	})
	if err != nil {
		t.Fatalf("EvaluateInstall() error = %v", err)
	}
	if denied.Allowed {
		t.Error("Allowed = true, want blocked for off-list server")
	}

	allowed, err := e.EvaluateInstall(context.Background(), &InstallInput{
		Kind:           "collection",
		Name:           "community.general",
		Source:         "https://galaxy.ansible.com/",
		AllowedServers: []string{"https://galaxy.ansible.com/"},
	})
	if err != nil {
		t.Fatalf("EvaluateInstall() error = %v", err)
	}
	if !allowed.Allowed {
		t.Errorf("Allowed = false, violations = %+v", allowed.Violations)
	}
}

func TestSetEnabled(t *testing.T) {
	e := testEngine(t)
	if err := e.SetEnabled("galaxy-naming", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	result, err := e.EvaluateInstall(context.Background(), &InstallInput{
		Kind: "collection",
		Name: "general",
	})
	if err != nil {
		t.Fatalf("EvaluateInstall() error = %v", err)
	}
	if !result.Allowed {
		t.Errorf("Allowed = false with naming policy disabled, violations = %+v", result.Violations)
	}

	if err := e.SetEnabled("no-such-policy", true); err == nil {
		t.Error("SetEnabled() error = nil for unknown policy")
	}
}

func TestLoadPolicyFiles(t *testing.T) {
	e := testEngine(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "pin-versions.rego")
	src := `package ancompat.policies.pins

import rego.v1

deny contains violation if {
	input.kind == "collection"
	input.version == ""
	violation := {
		"message": sprintf("collection %s must pin a version", [input.name]),
		"severity": "error",
		"subject": input.name,
	}
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	if err := e.LoadPolicyFiles(context.Background(), []string{path}); err != nil {
		t.Fatalf("LoadPolicyFiles() error = %v", err)
	}

	result, err := e.EvaluateInstall(context.Background(), &InstallInput{
		Kind: "collection",
		Name: "community.general",
	})
	if err != nil {
		t.Fatalf("EvaluateInstall() error = %v", err)
	}
	if result.Allowed {
		t.Error("Allowed = true, want blocked by loaded pin-versions policy")
	}
}
