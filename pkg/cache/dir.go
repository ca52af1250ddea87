// Package cache resolves the per-project cache directory used for isolated
// installs of roles and collections.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// IsWritable reports whether path can be used as a cache location, creating
// it if necessary.
func IsWritable(path string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false
	}
	// MkdirAll succeeds on an existing read-only dir, so probe with a write.
	probe, err := os.CreateTemp(path, ".write-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}

// Dir computes the cache directory for a project.
//
// Resolution order:
//   - $VIRTUAL_ENV/.ansible when the environment variable is set and the
//     location is writable,
//   - <project>/.ansible when isolated, keeping the virtualenv choice if
//     the project is not writable,
//   - $ANSIBLE_HOME (default ~/.ansible) when not isolated, even over a
//     virtualenv,
//   - a temp directory keyed by a hash of the project path as last resort.
//
// The roles/ and collections/ subdirectories are pre-created so that
// galaxy listing commands do not fail on a fresh cache.
func Dir(projectDir string, isolated bool) (string, error) {
	var cacheDir string

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		resolved, err := filepath.Abs(venv)
		if err == nil {
			path := filepath.Join(resolved, ".ansible")
			if IsWritable(path) {
				cacheDir = path
			} else {
				log.Warn().Str("path", path).
					Msg("VIRTUAL_ENV found but not writable, not using it for caching")
			}
		}
	}

	if isolated {
		path, err := filepath.Abs(filepath.Join(projectDir, ".ansible"))
		if err != nil {
			return "", err
		}
		if IsWritable(path) {
			cacheDir = path
		} else {
			log.Warn().Str("path", path).
				Msg("project directory not writable, not using it for caching")
		}
	} else {
		home := os.Getenv("ANSIBLE_HOME")
		if home == "" {
			userHome, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("unable to determine home directory: %w", err)
			}
			home = filepath.Join(userHome, ".ansible")
		}
		if !IsWritable(home) {
			return "", fmt.Errorf("cache directory %s is not writable", home)
		}
		cacheDir = home
	}

	if cacheDir == "" {
		// The project dir can be / or otherwise unwritable; fall back to a
		// temp location keyed by the project path so concurrent projects
		// do not collide.
		sum := sha256.Sum256([]byte(projectDir))
		checksum := hex.EncodeToString(sum[:])[:4]
		cacheDir = filepath.Join(os.TempDir(), ".ansible-"+checksum)
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create cache directory: %w", err)
		}
		log.Warn().Str("path", cacheDir).Msg("using temporary directory for caching")
	}

	for _, name := range []string{"roles", "collections"} {
		if err := os.MkdirAll(filepath.Join(cacheDir, name), 0o755); err != nil {
			return "", fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return cacheDir, nil
}
