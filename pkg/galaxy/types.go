// Package galaxy models the content metadata files consumed by the engine's
// galaxy tooling: requirements files, collection galaxy.yml manifests and
// standalone role meta/main.yml documents.
package galaxy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RequirementLocations are the paths, relative to a project root, where
// requirement files are conventionally stored. The first entry is the
// standard for collection layout repos; the rest come from the controller
// project specification and common collection test layouts.
var RequirementLocations = []string{
	"requirements.yml",
	"roles/requirements.yml",
	"collections/requirements.yml",
	"tests/requirements.yml",
	"tests/integration/requirements.yml",
	"tests/unit/requirements.yml",
}

// MetaMainLocations are the candidate role metadata files, in lookup order.
var MetaMainLocations = []string{"meta/main.yml", "meta/main.yaml"}

// RoleRequirement is one entry of the roles list in a requirements file.
type RoleRequirement struct {
	Name    string `yaml:"name,omitempty"`
	Src     string `yaml:"src,omitempty"`
	Version string `yaml:"version,omitempty"`
	SCM     string `yaml:"scm,omitempty"`
}

// CollectionRequirement is one entry of the collections list. The short
// string form ("namespace.name") is normalized into Name during decoding.
type CollectionRequirement struct {
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version,omitempty"`
	Source  string `yaml:"source,omitempty"`
	Type    string `yaml:"type,omitempty" validate:"omitempty,oneof=file galaxy git url subdirs dir"`
}

// UnmarshalYAML accepts both the mapping form and the bare string form that
// galaxy requirement files allow for collections.
func (c *CollectionRequirement) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Name = node.Value
		return nil
	}
	type plain CollectionRequirement
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = CollectionRequirement(p)
	return nil
}

// Requirements is a parsed requirements file, v1 (bare role list) or v2
// (roles/collections mapping).
type Requirements struct {
	Roles       []RoleRequirement       `yaml:"roles,omitempty"`
	Collections []CollectionRequirement `yaml:"collections,omitempty"`

	// Legacy reports that the source file used the v1 list form, which only
	// carries roles.
	Legacy bool `yaml:"-"`
}

// HasRoles reports whether any role requirements are present.
func (r *Requirements) HasRoles() bool { return len(r.Roles) > 0 }

// HasCollections reports whether any collection requirements are present.
func (r *Requirements) HasCollections() bool { return len(r.Collections) > 0 }

// HasGitCollections reports whether any collection is sourced from git,
// which forces prerelease resolution during install.
func (r *Requirements) HasGitCollections() bool {
	for _, c := range r.Collections {
		if c.Type == "git" {
			return true
		}
	}
	return false
}

// CollectionManifest is the collection_info block of an installed
// collection's MANIFEST.json.
type CollectionManifest struct {
	CollectionInfo struct {
		Namespace string `json:"namespace"`
		Name      string `json:"name"`
		Version   string `json:"version"`
	} `json:"collection_info"`
}

// GalaxyManifest is a collection galaxy.yml file.
type GalaxyManifest struct {
	Namespace    string            `yaml:"namespace" validate:"required"`
	Name         string            `yaml:"name" validate:"required"`
	Version      string            `yaml:"version,omitempty"`
	Dependencies map[string]string `yaml:"dependencies,omitempty"`
}

// RoleMeta is a standalone role meta/main.yml document.
type RoleMeta struct {
	GalaxyInfo GalaxyInfo `yaml:"galaxy_info,omitempty"`
}

// GalaxyInfo is the galaxy_info block of a role meta file.
type GalaxyInfo struct {
	RoleName  string `yaml:"role_name,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Author    string `yaml:"author,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a parsed requirements document against the model
// constraints.
func (r *Requirements) Validate() error {
	for i := range r.Collections {
		if err := validate.Struct(&r.Collections[i]); err != nil {
			return fmt.Errorf("invalid collection requirement %d: %w", i, err)
		}
	}
	for i := range r.Roles {
		if r.Roles[i].Name == "" && r.Roles[i].Src == "" {
			return fmt.Errorf("invalid role requirement %d: name or src is required", i)
		}
	}
	return nil
}

// Validate checks a galaxy.yml manifest for the mandatory fields.
func (g *GalaxyManifest) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("invalid galaxy manifest: %w", err)
	}
	return nil
}
