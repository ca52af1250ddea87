package galaxy

import (
	"os"
	"path/filepath"
	"regexp"
)

// namespaceRegex matches directory names that are valid collection
// namespaces. Directories outside this shape are skipped during discovery,
// like the galaxy CLI does.
var namespaceRegex = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)

// gitSpecRegex recognizes dependency names that are git URLs rather than
// collection references.
var gitSpecRegex = regexp.MustCompile(`^git[+@]`)

// IsGitSpec reports whether a dependency spec names a git source.
func IsGitSpec(name string) bool {
	return gitSpecRegex.MatchString(name)
}

// SearchGalaxyPaths finds galaxy.yml files at the root of searchDir and one
// level deep under namespace-shaped directories.
func SearchGalaxyPaths(searchDir string) []string {
	var found []string

	root := filepath.Join(searchDir, "galaxy.yml")
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		found = append(found, root)
	}

	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return found
	}
	for _, entry := range entries {
		if !entry.IsDir() || !namespaceRegex.MatchString(entry.Name()) {
			continue
		}
		candidate := filepath.Join(searchDir, entry.Name(), "galaxy.yml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found
}
