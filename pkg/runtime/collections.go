package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ansible-devtools/ancompat/pkg/galaxy"
	"github.com/ansible-devtools/ancompat/pkg/policy"
	"github.com/ansible-devtools/ancompat/pkg/stores"
	"github.com/ansible-devtools/ancompat/pkg/version"
)

// InstalledCollection is one collection found on the search path.
type InstalledCollection struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

type installOptions struct {
	destination string
	force       bool
	source      string
}

// InstallOption customizes a collection install.
type InstallOption func(*installOptions)

// WithDestination installs into the given directory instead of the
// cache collections directory.
func WithDestination(dir string) InstallOption {
	return func(o *installOptions) { o.destination = dir }
}

// WithForce reinstalls even when the collection is already present.
func WithForce() InstallOption {
	return func(o *installOptions) { o.force = true }
}

// WithSource records the galaxy server the content comes from, for
// policy evaluation.
func WithSource(server string) InstallOption {
	return func(o *installOptions) { o.source = server }
}

// InstallCollection installs one collection. The spec may be a dotted
// name with an optional ":<range>" version suffix, a git spec, a
// tarball, or a local directory.
func (r *Runtime) InstallCollection(ctx context.Context, spec string, opts ...InstallOption) error {
	var o installOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := r.gateInstall(ctx, "collection", spec, o.source); err != nil {
		r.recordInstall("collection", "denied")
		return err
	}

	ctx, span := r.startInstallSpan(ctx, "collection", spec)
	defer span.End()

	args := []string{binGalaxy, "collection", "install", "-vvv"}
	if !galaxy.IsGitSpec(spec) && !strings.Contains(spec, "://") && wantsPrerelease(spec) {
		args = append(args, "--pre")
	}
	if o.force {
		args = append(args, "--force")
	}
	dest := o.destination
	if dest == "" {
		dest = filepath.Join(r.cacheDir, "collections")
	}
	args = append(args, spec)

	if err := r.prepareEnginePaths(ctx); err != nil {
		return err
	}
	// -p would stop galaxy from skipping already installed collections,
	// so the destination leads the search path instead.
	acp := prependPaths(r.Getenv("ANSIBLE_COLLECTIONS_PATH"), dest)

	r.logger.Info().Str("collection", spec).Str("destination", dest).Msg("Installing collection")
	result, err := r.Run(ctx, args,
		WithRetries(r.maxRetries),
		WithEnv(map[string]string{"ANSIBLE_COLLECTIONS_PATH": acp}),
		WithCollectionsPath())
	if err != nil {
		r.recordInstall("collection", "error")
		return err
	}
	if result.RC != 0 {
		r.recordInstall("collection", "failure")
		return NewInvalidPrerequisitesError(
			fmt.Sprintf("failed to install collection %s", spec), nil).
			WithCommand(result.String()).
			WithOutput(result.Stdout, result.Stderr)
	}
	r.recordInstall("collection", "success")
	return nil
}

// InstallCollectionFromDisk builds and installs a collection that lives
// in a local source tree. The install is always forced so edits to the
// source tree replace a previously installed copy.
func (r *Runtime) InstallCollectionFromDisk(ctx context.Context, path string, opts ...InstallOption) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return NewGenericError("failed to resolve collection path", err)
	}
	return r.InstallCollection(ctx, abs, append(opts, WithForce())...)
}

// RequireCollection ensures a collection is installed at or above the
// wanted version, installing it when install is true.
func (r *Runtime) RequireCollection(ctx context.Context, name, wantVersion string, install bool) (string, error) {
	found, err := r.findCollectionPath(ctx, name, wantVersion)
	if err == nil {
		return found, nil
	}
	if !install {
		return "", err
	}

	spec := name
	if wantVersion != "" {
		spec = name + ":>=" + wantVersion
	}
	if ierr := r.InstallCollection(ctx, spec); ierr != nil {
		return "", ierr
	}
	return r.findCollectionPath(ctx, name, wantVersion)
}

// findCollectionPath scans the collection search path for an installed
// collection satisfying the version floor.
func (r *Runtime) findCollectionPath(ctx context.Context, name, wantVersion string) (string, error) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) != 2 {
		return "", NewInvalidPrerequisitesError(
			fmt.Sprintf("collection name %q is not fully qualified", name), nil)
	}

	var floor *version.Version
	if wantVersion != "" {
		v, err := version.Parse(wantVersion)
		if err != nil {
			return "", NewInvalidConfigError(fmt.Sprintf("invalid version %q", wantVersion), err)
		}
		floor = v
	}

	for _, root := range r.collectionSearchPath(ctx) {
		dir := filepath.Join(root, "ansible_collections", parts[0], parts[1])
		manifest, err := galaxy.LoadCollectionManifest(dir)
		if err != nil || manifest == nil {
			continue
		}
		if floor != nil {
			installed, err := version.Parse(manifest.CollectionInfo.Version)
			if err != nil || installed.Less(floor) {
				continue
			}
		}
		r.logger.Debug().
			Str("collection", name).
			Str("version", manifest.CollectionInfo.Version).
			Str("path", dir).
			Msg("Found matching collection")
		return dir, nil
	}

	want := name
	if wantVersion != "" {
		want = fmt.Sprintf("%s>=%s", name, wantVersion)
	}
	return "", NewInvalidPrerequisitesError(
		fmt.Sprintf("collection %s was not found on the search path", want), nil)
}

// collectionSearchPath returns the directories collections are looked
// up in, cache first.
func (r *Runtime) collectionSearchPath(ctx context.Context) []string {
	paths := []string{filepath.Join(r.cacheDir, "collections")}
	if acp := r.Getenv("ANSIBLE_COLLECTIONS_PATH"); acp != "" {
		paths = append(paths, filepath.SplitList(acp)...)
	}
	if cfg, err := r.Config(ctx); err == nil {
		paths = append(paths, cfg.CollectionsPaths()...)
	}
	return paths
}

// LoadCollections lists the collections visible to the engine. Results
// are persisted to the store when one is configured.
func (r *Runtime) LoadCollections(ctx context.Context) ([]InstalledCollection, error) {
	result, err := r.Run(ctx,
		[]string{binGalaxy, "collection", "list", "--format=json"},
		WithCollectionsPath())
	if err != nil {
		return nil, err
	}
	// The engine exits with its options error code when no search
	// path contains collections yet; an empty inventory is not a
	// failure.
	if result.RC == CodeOptionsError && strings.Contains(result.Stderr, "None of the provided paths were usable") {
		return nil, nil
	}
	if result.RC != 0 {
		return nil, NewGenericError("failed to list collections", nil).
			WithCommand(result.String()).
			WithOutput(result.Stdout, result.Stderr)
	}

	collections, shadowed, err := parseCollectionListing(result.Stdout)
	if err != nil {
		return nil, NewGenericError("failed to parse collection listing", err)
	}
	for _, s := range shadowed {
		r.logger.Warn().
			Str("collection", s.Name).
			Str("version", s.Version).
			Str("path", s.Path).
			Msg("Collection shadowed by an earlier search path")
	}

	if r.store != nil {
		records := make([]stores.Collection, 0, len(collections))
		now := time.Now()
		for _, c := range collections {
			records = append(records, stores.Collection{
				Name:      c.Name,
				Version:   c.Version,
				Path:      c.Path,
				ScannedAt: now,
			})
		}
		if serr := r.store.ReplaceCollections(ctx, records); serr != nil {
			r.logger.Warn().Err(serr).Msg("Failed to persist collection inventory")
		}
	}

	r.logger.Debug().Int("count", len(collections)).Msg("Loaded collection inventory")
	return collections, nil
}

// parseCollectionListing decodes `collection list --format=json`
// output, which maps each search path to its collections. Paths appear
// in search order and earlier paths shadow later ones, so decoding has
// to preserve the object key order. Shadowed duplicates are returned
// separately so callers can surface them.
func parseCollectionListing(raw string) ([]InstalledCollection, []InstalledCollection, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{})
	var collections, shadowed []InstalledCollection
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		path, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v in listing", tok)
		}
		var entries map[string]struct {
			Version string `json:"version"`
		}
		if err := dec.Decode(&entries); err != nil {
			return nil, nil, err
		}
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry := InstalledCollection{
				Name:    name,
				Version: entries[name].Version,
				Path:    path,
			}
			if _, dup := seen[name]; dup {
				shadowed = append(shadowed, entry)
				continue
			}
			seen[name] = struct{}{}
			collections = append(collections, entry)
		}
	}
	return collections, shadowed, nil
}

// gateInstall evaluates install policies and blocks on violations.
func (r *Runtime) gateInstall(ctx context.Context, kind, name, source string) error {
	if r.policies == nil {
		return nil
	}
	input := &policy.InstallInput{
		Kind:   kind,
		Name:   name,
		Source: source,
	}
	switch {
	case galaxy.IsGitSpec(name) || strings.HasPrefix(name, "git://"):
		input.Type = "git"
	case strings.Contains(name, "://"):
		input.Type = "url"
	case strings.HasPrefix(name, ".") || filepath.IsAbs(name) || isExistingPath(name):
		input.Type = "dir"
	}
	if base, ok := splitRange(name); ok {
		input.Name = base
	}

	result, err := r.policies.EvaluateInstall(ctx, input)
	if err != nil {
		return NewGenericError("policy evaluation failed", err)
	}
	for _, w := range result.Warnings {
		r.logger.Warn().Str("name", name).Msg(w)
	}
	if !result.Allowed {
		blockers := result.Blockers()
		msgs := make([]string, 0, len(blockers))
		for _, v := range blockers {
			msgs = append(msgs, v.Message)
		}
		return NewInvalidPrerequisitesError(
			fmt.Sprintf("install of %s blocked by policy: %s", name, strings.Join(msgs, "; ")), nil)
	}
	return nil
}

func (r *Runtime) recordInstall(kind, status string) {
	if r.metrics != nil {
		r.metrics.RecordInstall(kind, status)
	}
}

// wantsPrerelease reports whether a version range in a collection spec
// asks for a prerelease build.
func wantsPrerelease(spec string) bool {
	if !strings.Contains(spec, ":") {
		return false
	}
	v := version.FromRange(spec)
	return v != nil && v.IsPrerelease()
}

// splitRange splits "name:>=1.0" into its name part.
func splitRange(spec string) (string, bool) {
	if galaxy.IsGitSpec(spec) || strings.Contains(spec, "://") {
		return spec, false
	}
	name, _, ok := strings.Cut(spec, ":")
	return name, ok
}

func isExistingPath(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
