package galaxy

import (
	"path/filepath"
	"regexp"
	"strings"
)

// roleSegmentRegex constrains each segment of a role name.
var roleSegmentRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

// fqrnRegex is the galaxy requirement for a fully qualified role name.
var fqrnRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]+\.[a-z][a-z0-9_]+$`)

// personNameRegex detects author fields that look like a person's name
// rather than a galaxy login.
var personNameRegex = regexp.MustCompile(`^\w+ \w+`)

// rolePrefixRegex strips conventional repository prefixes when deriving a
// role name from a directory.
var rolePrefixRegex = regexp.MustCompile(`(ansible-|ansible-role-)`)

// Role identifies a standalone role as namespace plus name.
type Role struct {
	Namespace string
	Name      string
}

// ParseRole splits a role reference of the form "namespace.name" or a bare
// name.
func ParseRole(name string) Role {
	if strings.Count(name, ".") == 1 {
		parts := strings.SplitN(name, ".", 2)
		return Role{Namespace: parts[0], Name: parts[1]}
	}
	return Role{Name: name}
}

// IsValid reports whether both segments satisfy galaxy naming rules.
func (r Role) IsValid() bool {
	for _, seg := range []string{r.Namespace, r.Name} {
		if !roleSegmentRegex.MatchString(seg) {
			return false
		}
	}
	return true
}

// String returns the role reference in its original form.
func (r Role) String() string {
	if r.Namespace != "" {
		return r.Namespace + "." + r.Name
	}
	return r.Name
}

// IsValidFQRN reports whether a computed fully qualified role name follows
// galaxy requirements.
func IsValidFQRN(fqrn string) bool {
	return fqrnRegex.MatchString(fqrn)
}

// RoleNamespace computes the role namespace from galaxy_info, including the
// trailing dot. The namespace falls back to the author field unless that
// looks like a person's name instead of a galaxy login.
func RoleNamespace(info GalaxyInfo) string {
	ns := info.Namespace
	if ns == "" {
		ns = info.Author
	}
	if ns == "" || personNameRegex.MatchString(ns) {
		return ""
	}
	return ns + "."
}

// RoleFQRN computes the fully qualified role name for a role hosted at
// projectDir, using its galaxy_info metadata when available.
func RoleFQRN(info GalaxyInfo, projectDir string) string {
	name := info.RoleName
	if name == "" {
		base := filepath.Base(absOrSelf(projectDir))
		base = rolePrefixRegex.ReplaceAllString(base, "")
		parts := strings.SplitN(base, ".", 3)
		name = parts[len(parts)-1]
	}
	return RoleNamespace(info) + name
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
