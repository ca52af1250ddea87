package galaxy

import (
	"os"
	"path/filepath"
	"strings"
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

func TestLoadRequirementsV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yml")
	writeFile(t, path, `roles:
  - name: geerlingguy.mysql
    version: "3.0.0"
collections:
  - community.docker
  - name: ansible.posix
    version: ">=1.0.0"
  - name: https://github.com/org/repo.git
    type: git
`)

	reqs, err := LoadRequirements(path)
	if err != nil {
		t.Fatalf("LoadRequirements failed: %v", err)
	}
	if reqs.Legacy {
		t.Error("v2 file flagged as legacy")
	}
	if len(reqs.Roles) != 1 || reqs.Roles[0].Name != "geerlingguy.mysql" {
		t.Errorf("roles = %+v", reqs.Roles)
	}
	if len(reqs.Collections) != 3 {
		t.Fatalf("collections = %+v", reqs.Collections)
	}
	if reqs.Collections[0].Name != "community.docker" {
		t.Errorf("short form collection = %+v", reqs.Collections[0])
	}
	if !reqs.HasGitCollections() {
		t.Error("git collection not detected")
	}
	if err := reqs.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadRequirementsV1List(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yml")
	writeFile(t, path, `- name: geerlingguy.docker
- src: https://github.com/geerlingguy/ansible-role-ntp
  version: master
`)

	reqs, err := LoadRequirements(path)
	if err != nil {
		t.Fatalf("LoadRequirements failed: %v", err)
	}
	if !reqs.Legacy {
		t.Error("v1 list should be flagged legacy")
	}
	if len(reqs.Roles) != 2 || reqs.HasCollections() {
		t.Errorf("reqs = %+v", reqs)
	}
}

func TestLoadRequirementsRejectsUnknownRootKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yml")
	writeFile(t, path, "integration_tests_dependencies:\n  - foo\n")

	_, err := LoadRequirements(path)
	if err == nil {
		t.Fatal("expected error for unknown root key")
	}
	if !strings.Contains(err.Error(), "roles") {
		t.Errorf("error should name allowed keys: %v", err)
	}
}

func TestLoadRequirementsRejectsScalar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yml")
	writeFile(t, path, "just a string\n")

	if _, err := LoadRequirements(path); err == nil {
		t.Fatal("expected error for scalar document")
	}
}

func TestLoadRequirementsRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yml")
	writeFile(t, path, `collections:
  - name: community.general
    type: tarball
`)

	if _, err := LoadRequirements(path); err == nil {
		t.Error("LoadRequirements accepted an unknown collection type")
	}
}

func TestLoadGalaxyManifestRejectsMissingNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galaxy.yml")
	writeFile(t, path, `name: widget
version: 1.0.0
`)

	if _, err := LoadGalaxyManifest(path); err == nil {
		t.Error("LoadGalaxyManifest accepted a manifest without a namespace")
	}
}

func TestColPathFromPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "galaxy.yml"), "namespace: acme\nname: goodies\nversion: 1.0.0\n")

	got, err := ColPathFromPath(dir)
	if err != nil {
		t.Fatalf("ColPathFromPath failed: %v", err)
	}
	if got != "acme/goodies" {
		t.Errorf("ColPathFromPath = %q, want acme/goodies", got)
	}
}

func TestColPathFromPathMissingField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "galaxy.yml"), "namespace: acme\n")

	if _, err := ColPathFromPath(dir); err == nil {
		t.Fatal("expected error for missing name field")
	}
}

func TestColPathFromPathNotACollection(t *testing.T) {
	got, err := ColPathFromPath(t.TempDir())
	if err != nil || got != "" {
		t.Errorf("got %q, %v; want empty, nil", got, err)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		ns    string
		name  string
		valid bool
	}{
		{"acme.mysql", "acme", "mysql", true},
		{"acme.my_role", "acme", "my_role", true},
		{"bare_role", "", "bare_role", false},
		{"Acme.MySQL", "Acme", "MySQL", false},
		{"acme.my-role", "acme", "my-role", false},
	}
	for _, tt := range tests {
		r := ParseRole(tt.input)
		if r.Namespace != tt.ns || r.Name != tt.name {
			t.Errorf("ParseRole(%q) = %+v", tt.input, r)
		}
		if r.IsValid() != tt.valid {
			t.Errorf("ParseRole(%q).IsValid() = %v, want %v", tt.input, r.IsValid(), tt.valid)
		}
		if r.String() != tt.input {
			t.Errorf("String() = %q, want %q", r.String(), tt.input)
		}
	}
}

func TestRoleFQRN(t *testing.T) {
	tests := []struct {
		name string
		info GalaxyInfo
		dir  string
		want string
	}{
		{
			name: "explicit role name and namespace",
			info: GalaxyInfo{RoleName: "mysql", Namespace: "acme"},
			dir:  "/src/whatever",
			want: "acme.mysql",
		},
		{
			name: "author as namespace",
			info: GalaxyInfo{RoleName: "mysql", Author: "acme"},
			dir:  "/src/whatever",
			want: "acme.mysql",
		},
		{
			name: "person author is ignored",
			info: GalaxyInfo{RoleName: "mysql", Author: "Jane Doe"},
			dir:  "/src/whatever",
			want: "mysql",
		},
		{
			name: "name derived from directory",
			info: GalaxyInfo{Namespace: "acme"},
			dir:  "/src/ansible-role-ntp",
			want: "acme.role-ntp",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleFQRN(tt.info, tt.dir); got != tt.want {
				t.Errorf("RoleFQRN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsValidFQRN(t *testing.T) {
	if !IsValidFQRN("acme.mysql") {
		t.Error("acme.mysql should be valid")
	}
	if IsValidFQRN("mysql") {
		t.Error("bare name should be invalid")
	}
	if IsValidFQRN("Acme.MySQL") {
		t.Error("upper case should be invalid")
	}
}

func TestSearchGalaxyPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "galaxy.yml"), "namespace: a\nname: b\n")
	writeFile(t, filepath.Join(dir, "acme", "galaxy.yml"), "namespace: acme\nname: c\n")
	writeFile(t, filepath.Join(dir, "Not-A-Namespace", "galaxy.yml"), "namespace: x\nname: y\n")

	found := SearchGalaxyPaths(dir)
	if len(found) != 2 {
		t.Fatalf("SearchGalaxyPaths = %v, want 2 entries", found)
	}
}

func TestIsGitSpec(t *testing.T) {
	if !IsGitSpec("git+https://github.com/org/repo.git") {
		t.Error("git+https should be a git spec")
	}
	if !IsGitSpec("git@github.com:org/repo.git") {
		t.Error("git@ should be a git spec")
	}
	if IsGitSpec("community.docker") {
		t.Error("collection name is not a git spec")
	}
}

func TestLoadRoleMeta(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "meta", "main.yml"), `galaxy_info:
  role_name: mysql
  namespace: acme
`)

	meta, path, err := LoadRoleMeta(dir)
	if err != nil {
		t.Fatalf("LoadRoleMeta failed: %v", err)
	}
	if path == "" || meta.GalaxyInfo.RoleName != "mysql" {
		t.Errorf("meta = %+v from %q", meta, path)
	}
}

func TestLoadRoleMetaAbsent(t *testing.T) {
	meta, path, err := LoadRoleMeta(t.TempDir())
	if err != nil || meta != nil || path != "" {
		t.Errorf("got %v, %q, %v; want nil, empty, nil", meta, path, err)
	}
}
