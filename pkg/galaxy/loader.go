package galaxy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequirements reads a requirements file in either the v1 list form or
// the v2 roles/collections mapping form. Root keys other than roles and
// collections are rejected, matching the galaxy CLI.
func LoadRequirements(path string) (*Requirements, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe interface{}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%s is not a valid requirements file: %w", path, err)
	}

	switch doc := probe.(type) {
	case []interface{}:
		// v1: a bare list of roles.
		var roles []RoleRequirement
		if err := yaml.Unmarshal(raw, &roles); err != nil {
			return nil, fmt.Errorf("%s is not a valid requirements file: %w", path, err)
		}
		reqs := &Requirements{Roles: roles, Legacy: true}
		if err := reqs.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return reqs, nil
	case map[string]interface{}:
		for key := range doc {
			if key != "roles" && key != "collections" {
				return nil, fmt.Errorf(
					"%s is not a valid requirements file: only 'roles' and 'collections' keys are allowed at root level, found %q; recognized locations are: %s",
					path, key, strings.Join(RequirementLocations, ", "))
			}
		}
		var reqs Requirements
		if err := yaml.Unmarshal(raw, &reqs); err != nil {
			return nil, fmt.Errorf("%s is not a valid requirements file: %w", path, err)
		}
		if err := reqs.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &reqs, nil
	default:
		return nil, fmt.Errorf("%s is not a valid requirements file", path)
	}
}

// LoadGalaxyManifest reads a collection galaxy.yml file.
func LoadGalaxyManifest(path string) (*GalaxyManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m GalaxyManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// LoadRoleMeta reads a role metadata file from the conventional locations
// under dir. The returned path names the file that was found; both are
// empty when the role carries no metadata.
func LoadRoleMeta(dir string) (*RoleMeta, string, error) {
	for _, rel := range MetaMainLocations {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", err
		}
		var meta RoleMeta
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &meta, path, nil
	}
	return nil, "", nil
}

// LoadCollectionManifest reads the MANIFEST.json of an installed
// collection directory. Returns nil without error when the directory is
// not an installed collection.
func LoadCollectionManifest(dir string) (*CollectionManifest, error) {
	path := filepath.Join(dir, "MANIFEST.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m CollectionManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &m, nil
}

// ColPathFromPath derives the namespace/name subpath of a collection from
// its galaxy.yml. Returns empty when the directory is not a collection.
func ColPathFromPath(dir string) (string, error) {
	path := filepath.Join(dir, "galaxy.yml")
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	m, err := LoadGalaxyManifest(path)
	if err != nil {
		return "", err
	}
	if m.Namespace == "" || m.Name == "" {
		return "", fmt.Errorf("%s is missing mandatory namespace or name field", path)
	}
	return m.Namespace + "/" + m.Name, nil
}
