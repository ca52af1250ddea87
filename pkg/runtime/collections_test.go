package runtime

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ansible-devtools/ancompat/pkg/policy"
)

// galaxyRecorder is a fake ansible-galaxy that logs its arguments and
// collection search path, then succeeds.
const galaxyRecorder = `echo "$* ACP=$ANSIBLE_COLLECTIONS_PATH" >> "$(dirname "$0")/galaxy.log"`

func galaxyLog(t *testing.T, binDir string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(binDir, "galaxy.log"))
	if err != nil {
		return ""
	}
	return string(raw)
}

func TestInstallCollection(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	if err := r.InstallCollection(context.Background(), "community.general:>=8.0.0"); err != nil {
		t.Fatalf("InstallCollection() error = %v", err)
	}

	log := galaxyLog(t, binDir)
	if !strings.Contains(log, "collection install") {
		t.Errorf("galaxy invocation = %q, missing collection install", log)
	}
	if strings.Contains(log, "-p ") {
		t.Errorf("galaxy invocation = %q, -p breaks skipping of installed collections", log)
	}
	wantDest := filepath.Join(r.CacheDir(), "collections")
	if !strings.Contains(log, "ACP="+wantDest) {
		t.Errorf("galaxy invocation = %q, destination %s does not lead the search path", log, wantDest)
	}
	if strings.Contains(log, "--pre") {
		t.Errorf("galaxy invocation = %q, unexpected --pre for stable range", log)
	}
}

func TestInstallCollectionDestinationLeadsSearchPath(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})
	dest := t.TempDir()

	if err := r.InstallCollection(context.Background(), "community.general",
		WithDestination(dest)); err != nil {
		t.Fatalf("InstallCollection() error = %v", err)
	}

	log := galaxyLog(t, binDir)
	if !strings.Contains(log, "ACP="+dest+string(os.PathListSeparator)) {
		t.Errorf("galaxy invocation = %q, destination %s does not lead the search path", log, dest)
	}
}

func TestInstallCollectionPrerelease(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	if err := r.InstallCollection(context.Background(), "community.general:>=9.0.0-b1"); err != nil {
		t.Fatalf("InstallCollection() error = %v", err)
	}
	if !strings.Contains(galaxyLog(t, binDir), "--pre") {
		t.Error("prerelease range install lacked --pre")
	}
}

func TestInstallCollectionGitSpecNoPre(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	if err := r.InstallCollection(context.Background(), "git+https://github.com/acme/acme.foo.git"); err != nil {
		t.Fatalf("InstallCollection() error = %v", err)
	}
	if log := galaxyLog(t, binDir); strings.Contains(log, "--pre") {
		t.Errorf("galaxy invocation = %q, --pre belongs to requirements file installs only", log)
	}
}

func TestInstallCollectionFromDiskForces(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	if err := r.InstallCollectionFromDisk(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("InstallCollectionFromDisk() error = %v", err)
	}
	if log := galaxyLog(t, binDir); !strings.Contains(log, "--force") {
		t.Errorf("galaxy invocation = %q, disk install must force", log)
	}
}

func TestInstallCollectionFailure(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": "echo 'ERROR! nothing found' >&2; exit 1",
	})
	r := newTestRuntime(t, Config{})

	err := r.InstallCollection(context.Background(), "community.missing")
	if err == nil {
		t.Fatal("InstallCollection() error = nil, want failure")
	}
	if !IsInvalidPrerequisites(err) {
		t.Errorf("IsInvalidPrerequisites() = false for %v", err)
	}
}

func TestInstallCollectionPolicyBlocked(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	policies, err := policy.NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("policy.NewEngine() error = %v", err)
	}
	r := newTestRuntime(t, Config{Policies: policies})

	err = r.InstallCollection(context.Background(), "git://github.com/acme/acme.foo.git")
	if err == nil {
		t.Fatal("InstallCollection() error = nil, want policy block")
	}
	if !IsInvalidPrerequisites(err) {
		t.Errorf("IsInvalidPrerequisites() = false for %v", err)
	}
	if log := galaxyLog(t, binDir); log != "" {
		t.Errorf("galaxy was invoked despite policy block: %q", log)
	}
}

func TestRequireCollectionFound(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	dir := filepath.Join(r.CacheDir(), "collections", "ansible_collections", "community", "general")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to seed collection: %v", err)
	}
	manifest := map[string]interface{}{
		"collection_info": map[string]string{
			"namespace": "community",
			"name":      "general",
			"version":   "8.2.0",
		},
	}
	raw, _ := json.Marshal(manifest)
	if err := os.WriteFile(filepath.Join(dir, "MANIFEST.json"), raw, 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	path, err := r.RequireCollection(context.Background(), "community.general", "8.0.0", false)
	if err != nil {
		t.Fatalf("RequireCollection() error = %v", err)
	}
	if path != dir {
		t.Errorf("RequireCollection() path = %q, want %q", path, dir)
	}

	if _, err := r.RequireCollection(context.Background(), "community.general", "9.0.0", false); err == nil {
		t.Error("RequireCollection() error = nil for version above installed")
	}
}

func TestRequireCollectionNotFound(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	_, err := r.RequireCollection(context.Background(), "community.general", "", false)
	if err == nil {
		t.Fatal("RequireCollection() error = nil, want not found")
	}
	if !IsInvalidPrerequisites(err) {
		t.Errorf("IsInvalidPrerequisites() = false for %v", err)
	}
}

func TestLoadCollections(t *testing.T) {
	listing := `{"/first":{"community.general":{"version":"8.0.0"}},` +
		`"/second":{"community.general":{"version":"7.0.0"},"ansible.posix":{"version":"1.5.4"}}}`
	fakeEngine(t, map[string]string{
		"ansible-galaxy": "cat <<'EOF'\n" + listing + "\nEOF",
	})
	store := newTestStore(t)
	r := newTestRuntime(t, Config{Store: store})
	ctx := context.Background()

	collections, err := r.LoadCollections(ctx)
	if err != nil {
		t.Fatalf("LoadCollections() error = %v", err)
	}
	if len(collections) != 2 {
		t.Fatalf("LoadCollections() = %d entries, want 2", len(collections))
	}
	byName := make(map[string]InstalledCollection)
	for _, c := range collections {
		byName[c.Name] = c
	}
	// The first path on the search path shadows later ones.
	if got := byName["community.general"]; got.Version != "8.0.0" || got.Path != "/first" {
		t.Errorf("community.general = %+v, want 8.0.0 from /first", got)
	}

	persisted, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("store holds %d collections, want 2", len(persisted))
	}
}

func TestLoadCollectionsNoUsablePaths(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": "echo 'ERROR! - None of the provided paths were usable.' >&2; exit 5",
	})
	r := newTestRuntime(t, Config{})

	collections, err := r.LoadCollections(context.Background())
	if err != nil {
		t.Fatalf("LoadCollections() error = %v", err)
	}
	if collections != nil {
		t.Errorf("LoadCollections() = %v, want empty", collections)
	}
}

func TestParseCollectionListingOrder(t *testing.T) {
	raw := `{"/a":{"ns.one":{"version":"2.0.0"}},"/b":{"ns.one":{"version":"1.0.0"},"ns.two":{"version":"3.0.0"}}}`
	collections, shadowed, err := parseCollectionListing(raw)
	if err != nil {
		t.Fatalf("parseCollectionListing() error = %v", err)
	}
	if len(shadowed) != 1 || shadowed[0].Name != "ns.one" || shadowed[0].Path != "/b" {
		t.Errorf("shadowed = %+v, want ns.one from /b", shadowed)
	}
	if len(collections) != 2 {
		t.Fatalf("got %d entries, want 2", len(collections))
	}
	if collections[0].Name != "ns.one" || collections[0].Version != "2.0.0" {
		t.Errorf("first entry = %+v, want ns.one 2.0.0", collections[0])
	}
}

func TestInstallRequirements(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})
	ctx := context.Background()

	path := filepath.Join(r.ProjectDir(), "requirements.yml")
	reqs := `roles:
  - name: geerlingguy.ntp
collections:
  - community.general
`
	if err := os.WriteFile(path, []byte(reqs), 0o644); err != nil {
		t.Fatalf("failed to write requirements: %v", err)
	}

	if err := r.InstallRequirements(ctx, path, false, false); err != nil {
		t.Fatalf("InstallRequirements() error = %v", err)
	}
	log := galaxyLog(t, binDir)
	if !strings.Contains(log, "role install -r "+path) {
		t.Errorf("galaxy log = %q, missing role install", log)
	}
	if !strings.Contains(log, "collection install -v -r "+path) {
		t.Errorf("galaxy log = %q, missing collection install", log)
	}
}

func TestInstallRequirementsMissingFile(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	if err := r.InstallRequirements(context.Background(), filepath.Join(r.ProjectDir(), "nope.yml"), false, false); err != nil {
		t.Errorf("InstallRequirements() error = %v for missing file", err)
	}
}

func TestInstallRequirementsOffline(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	path := filepath.Join(r.ProjectDir(), "requirements.yml")
	if err := os.WriteFile(path, []byte("collections:\n  - community.general\n"), 0o644); err != nil {
		t.Fatalf("failed to write requirements: %v", err)
	}
	if err := r.InstallRequirements(context.Background(), path, false, true); err != nil {
		t.Fatalf("InstallRequirements() error = %v", err)
	}
	if log := galaxyLog(t, binDir); log != "" {
		t.Errorf("galaxy invoked in offline mode: %q", log)
	}
}

func TestInstallRequirementsInvalid(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	path := filepath.Join(r.ProjectDir(), "requirements.yml")
	if err := os.WriteFile(path, []byte("unexpected:\n  - x\n"), 0o644); err != nil {
		t.Fatalf("failed to write requirements: %v", err)
	}
	err := r.InstallRequirements(context.Background(), path, false, false)
	if err == nil {
		t.Fatal("InstallRequirements() error = nil for invalid file")
	}
	if !IsInvalidPrerequisites(err) {
		t.Errorf("IsInvalidPrerequisites() = false for %v", err)
	}
}

func TestPrepareEnvironmentInstallLocalDependencies(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	project := t.TempDir()
	manifest := `namespace: acme
name: widget
version: 1.0.0
dependencies:
  community.general: ">=1.0.0"
`
	if err := os.WriteFile(filepath.Join(project, "galaxy.yml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("failed to write galaxy.yml: %v", err)
	}
	r := newTestRuntime(t, Config{ProjectDir: project})

	if err := r.PrepareEnvironment(context.Background(), WithOffline(), WithInstallLocal()); err != nil {
		t.Fatalf("PrepareEnvironment() error = %v", err)
	}

	log := galaxyLog(t, binDir)
	if !strings.Contains(log, "community.general:>=1.0.0") {
		t.Errorf("galaxy log = %q, declared dependency was not installed", log)
	}
	if !strings.Contains(log, "--force") || !strings.Contains(log, project) {
		t.Errorf("galaxy log = %q, local tree was not force installed", log)
	}
}

func TestPrepareEnvironmentLinksRole(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	project := t.TempDir()
	meta := `galaxy_info:
  role_name: ntp
  namespace: acme
  author: Acme
`
	if err := os.MkdirAll(filepath.Join(project, "meta"), 0o755); err != nil {
		t.Fatalf("failed to create meta dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(project, "meta", "main.yml"), []byte(meta), 0o644); err != nil {
		t.Fatalf("failed to write meta: %v", err)
	}
	r := newTestRuntime(t, Config{ProjectDir: project})

	if err := r.PrepareEnvironment(context.Background()); err != nil {
		t.Fatalf("PrepareEnvironment() error = %v", err)
	}

	link := filepath.Join(r.CacheDir(), "roles", "acme.ntp")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("role link not created: %v", err)
	}
	if target != project {
		t.Errorf("role link target = %q, want %q", target, project)
	}

	// Re-running must be idempotent.
	if err := r.PrepareEnvironment(context.Background()); err != nil {
		t.Fatalf("PrepareEnvironment() second run error = %v", err)
	}
}

func TestPrepareEnvironmentRoleNameCheck(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	project := t.TempDir()
	// Person-name author yields no namespace, so no valid name exists.
	meta := `galaxy_info:
  author: Jane Doe
`
	if err := os.MkdirAll(filepath.Join(project, "meta"), 0o755); err != nil {
		t.Fatalf("failed to create meta dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(project, "meta", "main.yml"), []byte(meta), 0o644); err != nil {
		t.Fatalf("failed to write meta: %v", err)
	}
	r := newTestRuntime(t, Config{ProjectDir: project})

	err := r.PrepareEnvironment(context.Background(), WithRoleNameCheck(RoleNameCheckStrict))
	if err == nil {
		t.Fatal("PrepareEnvironment() error = nil, want strict name check failure")
	}
	if !IsInvalidPrerequisites(err) {
		t.Errorf("IsInvalidPrerequisites() = false for %v", err)
	}
}

func TestPrepareEnvironmentSetsPaths(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	if err := r.PrepareEnvironment(context.Background()); err != nil {
		t.Fatalf("PrepareEnvironment() error = %v", err)
	}

	acp := r.Getenv("ANSIBLE_COLLECTIONS_PATH")
	wantFirst := filepath.Join(r.CacheDir(), "collections")
	if !strings.HasPrefix(acp, wantFirst) {
		t.Errorf("ANSIBLE_COLLECTIONS_PATH = %q, want cache first (%s)", acp, wantFirst)
	}
	if !strings.Contains(acp, "/usr/share/ansible/collections") {
		t.Errorf("ANSIBLE_COLLECTIONS_PATH = %q, missing configured default", acp)
	}
	roles := r.Getenv("ANSIBLE_ROLES_PATH")
	if !strings.HasPrefix(roles, filepath.Join(r.CacheDir(), "roles")) {
		t.Errorf("ANSIBLE_ROLES_PATH = %q, want cache first", roles)
	}
}

func TestPrepareEnvironmentRequiredCollections(t *testing.T) {
	binDir := fakeEngine(t, map[string]string{
		"ansible-galaxy": galaxyRecorder,
	})
	r := newTestRuntime(t, Config{})

	err := r.PrepareEnvironment(context.Background(),
		WithRequiredCollections(map[string]string{"community.general": "8.0.0"}))
	if err != nil {
		t.Fatalf("PrepareEnvironment() error = %v", err)
	}
	if !strings.Contains(galaxyLog(t, binDir), "community.general:>=8.0.0") {
		t.Error("required collection was not installed")
	}
}

func TestHasPlaybook(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-playbook": `for arg; do last="$arg"; done
[ -f "$last" ] || exit 1`,
	})
	r := newTestRuntime(t, Config{})
	ctx := context.Background()

	playbook := filepath.Join(r.ProjectDir(), "site.yml")
	if err := os.WriteFile(playbook, []byte("- hosts: all\n"), 0o644); err != nil {
		t.Fatalf("failed to write playbook: %v", err)
	}

	if !r.HasPlaybook(ctx, "site.yml", r.ProjectDir()) {
		t.Error("HasPlaybook() = false for existing playbook")
	}
	if r.HasPlaybook(ctx, "absent.yml", r.ProjectDir()) {
		t.Error("HasPlaybook() = true for missing playbook")
	}

	// Memoized: removing the file must not change the answer.
	if err := os.Remove(playbook); err != nil {
		t.Fatalf("failed to remove playbook: %v", err)
	}
	if !r.HasPlaybook(ctx, "site.yml", r.ProjectDir()) {
		t.Error("HasPlaybook() lost its memoized result")
	}
}

func TestPlugins(t *testing.T) {
	fakeEngine(t, map[string]string{
		"ansible-doc": `cat <<'EOF'
{"ansible.builtin.file": "Manage files", "ansible.builtin.copy": "Copy files"}
EOF`,
	})
	r := newTestRuntime(t, Config{})

	plugins, err := r.Plugins(context.Background(), "module")
	if err != nil {
		t.Fatalf("Plugins() error = %v", err)
	}
	if len(plugins) != 2 {
		t.Errorf("Plugins() = %d entries, want 2", len(plugins))
	}
	if plugins["ansible.builtin.file"] != "Manage files" {
		t.Errorf("plugin description = %q", plugins["ansible.builtin.file"])
	}

	if _, err := r.Plugins(context.Background(), "bogus"); err == nil {
		t.Error("Plugins() error = nil for unknown type")
	}
}
