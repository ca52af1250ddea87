package runtime

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
)

// environToMap splits KEY=VALUE pairs into a map. Later duplicates win,
// matching how the OS resolves them.
func environToMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}

// mapToEnviron flattens an environment map into sorted KEY=VALUE pairs.
func mapToEnviron(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// prependPaths builds a list-separated value with the given entries in
// front of the existing ones, deduplicated and order preserving.
func prependPaths(existing string, paths ...string) string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range paths {
		add(p)
	}
	if existing != "" {
		for _, p := range filepath.SplitList(existing) {
			add(p)
		}
	}
	return strings.Join(out, string(filepath.ListSeparator))
}

// SetEnv overrides one variable in the runtime's command environment.
func (r *Runtime) SetEnv(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.environ[key] = value
}

// Getenv reads one variable from the runtime's command environment.
func (r *Runtime) Getenv(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.environ[key]
}

// Environ returns the runtime's command environment as sorted
// KEY=VALUE pairs.
func (r *Runtime) Environ() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return mapToEnviron(r.environ)
}

// prepareEnginePaths points the engine's search paths at the cache
// directory so content installed there is found first. The engine
// configuration supplies the trailing defaults.
func (r *Runtime) prepareEnginePaths(ctx context.Context) error {
	cfg, err := r.Config(ctx)
	if err != nil {
		return err
	}

	libraryPaths := []string{filepath.Join(r.cacheDir, "modules")}
	if p := filepath.Join(r.projectDir, "plugins", "modules"); isExistingPath(p) {
		libraryPaths = append(libraryPaths, p)
	}
	libraryPaths = append(libraryPaths, cfg.DefaultModulePath()...)
	rolesPaths := []string{filepath.Join(r.cacheDir, "roles")}
	if p := filepath.Join(r.projectDir, "roles"); isExistingPath(p) {
		rolesPaths = append(rolesPaths, p)
	}
	rolesPaths = append(rolesPaths, cfg.DefaultRolesPath()...)
	collectionsPaths := []string{filepath.Join(r.cacheDir, "collections")}
	if cfg.CollectionsScanSysPath() {
		collectionsPaths = append(collectionsPaths, cfg.CollectionsPaths()...)
	}

	r.mu.Lock()
	r.environ["ANSIBLE_LIBRARY"] = prependPaths(r.environ["ANSIBLE_LIBRARY"], libraryPaths...)
	r.environ["ANSIBLE_ROLES_PATH"] = prependPaths(r.environ["ANSIBLE_ROLES_PATH"], rolesPaths...)
	r.environ["ANSIBLE_COLLECTIONS_PATH"] = prependPaths(r.environ["ANSIBLE_COLLECTIONS_PATH"], collectionsPaths...)
	acp := r.environ["ANSIBLE_COLLECTIONS_PATH"]
	r.mu.Unlock()

	cfg.SetCollectionsPaths(filepath.SplitList(acp))

	r.logger.Debug().
		Str("collections_path", acp).
		Msg("Engine search paths prepared")
	return nil
}
