package schema

// Built-in schema definitions

const builtinRequirementsSchema = `
// Requirements schema for requirements.yml files
#Requirements: {
	// Roles lists standalone role requirements
	roles?: [...#RoleEntry]

	// Collections lists collection requirements
	collections?: [...#CollectionEntry]
}

#RoleEntry: {
	// Name is the role identifier or install-as name
	name?: string

	// Src is the role source (galaxy name, URL, or path)
	src?: string

	// Version is a tag, branch, or commit
	version?: string | number

	// SCM selects the source control system for src
	scm?: "git" | "hg"

	// Include pulls in another requirements file
	include?: string
}

// A collection requirement is either a bare name or a detailed entry
#CollectionEntry: string | {
	// Name is the collection name, path, or URL
	name: string

	// Version is a version constraint
	version?: string | number

	// Source is the galaxy server or repository to fetch from
	source?: string

	// Type tells the installer how to treat name
	type?: "file" | "galaxy" | "git" | "url" | "subdirs" | "dir"

	// Signatures are detached signature sources for verification
	signatures?: [...string]
}
`

const builtinGalaxySchema = `
// Galaxy schema for collection galaxy.yml manifests
#Galaxy: {
	// Namespace is the collection namespace
	namespace: string & =~"^[a-z][a-z0-9_]+$"

	// Name is the collection short name
	name: string & =~"^[a-z0-9_]+$"

	// Version is the collection version
	version?: string | null

	// Dependencies maps collection names to version constraints
	dependencies?: {[string]: string}

	readme?:        string | null
	authors?:       [...string] | null
	description?:   string | null
	license?:       [...string]
	license_file?:  string | null
	tags?:          [...string]
	repository?:    string | null
	documentation?: string | null
	homepage?:      string | null
	issues?:        string | null
	build_ignore?:  [...string]
	manifest?:      {...}
}
`

const builtinMetaSchema = `
// Meta schema for role meta/main.yml files
#Meta: {
	// GalaxyInfo carries the role's galaxy metadata
	galaxy_info?: {
		// RoleName is the short role name
		role_name?: string & =~"^[a-z0-9_]+$"

		// Namespace is the owning namespace
		namespace?: string & =~"^[a-z][a-z0-9_]+$"

		author?:              string
		description?:         string
		company?:             string | null
		license?:             string | [...string]
		min_ansible_version?: string | number
		platforms?: [...{
			name?: string
			versions?: [...string | number]
		}]
		galaxy_tags?: [...string]
		...
	}

	// Dependencies lists roles required before this one
	dependencies?: [...string | {...}]

	// Collections lists collections the role uses
	collections?: [...string]

	// AllowDuplicates permits the role to run more than once per play
	allow_duplicates?: bool
}
`
