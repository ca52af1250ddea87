package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ansible-devtools/ancompat/pkg/galaxy"
)

// Role name check levels for PrepareEnvironment.
const (
	// RoleNameCheckStrict fails preparation on a role that cannot be
	// addressed by a fully qualified name.
	RoleNameCheckStrict = 0

	// RoleNameCheckWarn logs the problem and continues.
	RoleNameCheckWarn = 1

	// RoleNameCheckSkip disables the check.
	RoleNameCheckSkip = 2
)

type prepareOptions struct {
	requiredCollections map[string]string
	installLocal        bool
	offline             bool
	roleNameCheck       int
}

// PrepareOption customizes environment preparation.
type PrepareOption func(*prepareOptions)

// WithRequiredCollections ensures the given collections are installed
// at or above the mapped minimum versions.
func WithRequiredCollections(required map[string]string) PrepareOption {
	return func(o *prepareOptions) { o.requiredCollections = required }
}

// WithInstallLocal also installs collections found in the project
// source tree.
func WithInstallLocal() PrepareOption {
	return func(o *prepareOptions) { o.installLocal = true }
}

// WithOffline skips every step that would reach a galaxy server.
func WithOffline() PrepareOption {
	return func(o *prepareOptions) { o.offline = true }
}

// WithRoleNameCheck sets how strictly role naming is enforced.
func WithRoleNameCheck(level int) PrepareOption {
	return func(o *prepareOptions) { o.roleNameCheck = level }
}

// PrepareEnvironment makes the project runnable: it installs declared
// requirements, exposes local content, links the project role, and
// points the engine search paths at the cache directory.
func (r *Runtime) PrepareEnvironment(ctx context.Context, opts ...PrepareOption) error {
	var o prepareOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.offline {
		for name, minVersion := range o.requiredCollections {
			spec := name
			if minVersion != "" {
				spec = name + ":>=" + minVersion
			}
			if err := r.InstallCollection(ctx, spec); err != nil {
				return err
			}
		}
		for _, rel := range galaxy.RequirementLocations {
			path := filepath.Join(r.projectDir, filepath.FromSlash(rel))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := r.InstallRequirements(ctx, path, true, o.offline); err != nil {
				return err
			}
		}
	}

	if o.installLocal {
		for _, manifest := range galaxy.SearchGalaxyPaths(r.projectDir) {
			if err := r.installLocalCollection(ctx, manifest); err != nil {
				return err
			}
		}
	}

	if err := r.linkProjectRole(o.roleNameCheck); err != nil {
		return err
	}

	if err := r.prepareEnginePaths(ctx); err != nil {
		return err
	}

	// Refresh the inventory so later lookups see what was installed.
	if _, err := r.LoadCollections(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to refresh collection inventory")
	}
	return nil
}

// installLocalCollection installs the declared dependencies of a local
// galaxy.yml, then the source tree itself.
func (r *Runtime) installLocalCollection(ctx context.Context, manifest string) error {
	m, err := galaxy.LoadGalaxyManifest(manifest)
	if err != nil {
		return NewInvalidPrerequisitesError("invalid collection manifest", err).
			WithCommand(manifest)
	}

	deps := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	for _, name := range deps {
		spec := name
		if v := m.Dependencies[name]; v != "" {
			spec = name + ":" + v
		}
		if err := r.InstallCollection(ctx, spec); err != nil {
			return err
		}
	}

	return r.InstallCollectionFromDisk(ctx, filepath.Dir(manifest))
}

// InstallRequirements installs the roles and collections named in a
// requirements file. A missing file is not an error.
func (r *Runtime) InstallRequirements(ctx context.Context, path string, retry, offline bool) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	reqs, err := galaxy.LoadRequirements(path)
	if err != nil {
		return NewInvalidPrerequisitesError("invalid requirements file", err)
	}

	retries := 0
	if retry {
		retries = r.maxRetries
	}

	if reqs.HasRoles() {
		if offline {
			r.logger.Warn().Str("path", path).
				Msg("Skipped role installation in offline mode")
		} else {
			result, err := r.Run(ctx,
				[]string{binGalaxy, "role", "install", "-r", path,
					"--roles-path", filepath.Join(r.cacheDir, "roles")},
				WithRetries(retries))
			if err != nil {
				return err
			}
			if result.RC != 0 {
				return NewInvalidPrerequisitesError(
					fmt.Sprintf("failed to install roles from %s", path), nil).
					WithCommand(result.String()).
					WithOutput(result.Stdout, result.Stderr)
			}
		}
	}

	if reqs.HasCollections() {
		if offline {
			r.logger.Warn().Str("path", path).
				Msg("Skipped collection installation in offline mode")
			return nil
		}
		args := []string{binGalaxy, "collection", "install", "-v"}
		if reqs.HasGitCollections() {
			args = append(args, "--pre")
		}
		args = append(args, "-r", path, "-p", filepath.Join(r.cacheDir, "collections"))

		result, err := r.Run(ctx, args,
			WithRetries(retries),
			WithCollectionsPath())
		if err != nil {
			return err
		}
		if result.RC != 0 {
			return NewInvalidPrerequisitesError(
				fmt.Sprintf("failed to install collections from %s", path), nil).
				WithCommand(result.String()).
				WithOutput(result.Stdout, result.Stderr)
		}
	}
	return nil
}

// linkProjectRole exposes a project that is itself a standalone role by
// symlinking it into the cache roles directory under its fully
// qualified name.
func (r *Runtime) linkProjectRole(roleNameCheck int) error {
	meta, metaPath, err := galaxy.LoadRoleMeta(r.projectDir)
	if err != nil {
		return NewInvalidPrerequisitesError("invalid role metadata", err)
	}
	if meta == nil {
		return nil
	}

	fqrn := galaxy.RoleFQRN(meta.GalaxyInfo, r.projectDir)
	if !galaxy.IsValidFQRN(fqrn) {
		msg := fmt.Sprintf(
			"role %s found in %s does not have a valid namespace.name form; computed name was %q",
			r.projectDir, metaPath, fqrn)
		switch roleNameCheck {
		case RoleNameCheckStrict:
			return NewInvalidPrerequisitesError(msg, nil)
		case RoleNameCheckWarn:
			r.logger.Warn().Msg(msg)
		}
	}

	rolesDir := filepath.Join(r.cacheDir, "roles")
	if err := os.MkdirAll(rolesDir, 0o755); err != nil {
		return NewGenericError("failed to create roles directory", err)
	}
	link := filepath.Join(rolesDir, fqrn)

	if target, err := os.Readlink(link); err == nil {
		if target == r.projectDir {
			return nil
		}
		if err := os.Remove(link); err != nil {
			return NewGenericError("failed to replace stale role link", err)
		}
	} else if _, serr := os.Lstat(link); serr == nil {
		// A real directory shadows the project role; leave it alone.
		r.logger.Warn().Str("path", link).Msg("Role path exists and is not a symlink")
		return nil
	}

	if err := os.Symlink(r.projectDir, link); err != nil {
		return NewGenericError("failed to link project role", err)
	}
	r.logger.Info().Str("role", fqrn).Str("link", link).Msg("Linked project role")
	return nil
}
