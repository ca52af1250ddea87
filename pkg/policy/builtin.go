package policy

// GetBuiltinPolicies returns all built-in install policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		galaxyNamingPolicy(),
		unencryptedSourcePolicy(),
		serverAllowlistPolicy(),
	}
}

// galaxyNamingPolicy enforces fully qualified dotted names for content
// fetched from a galaxy server.
func galaxyNamingPolicy() Policy {
	return Policy{
		Name:        "galaxy-naming",
		Description: "Content installed from a galaxy server must use a fully qualified namespace.name identifier",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		Rego: `package ancompat.policies.naming

import rego.v1

galaxy_types := {"", "galaxy"}

deny contains violation if {
	input.kind == "collection"
	galaxy_types[input.type]
	not regex.match("^[a-z0-9][a-z0-9_-]+\\.[a-z][a-z0-9_]+$", input.name)
	violation := {
		"message": sprintf("collection name '%s' is not a fully qualified namespace.name", [input.name]),
		"severity": "error",
		"subject": input.name,
		"remediation": "use the namespace.name form, e.g. community.general",
	}
}

deny contains violation if {
	input.kind == "role"
	galaxy_types[input.type]
	not regex.match("^[a-z0-9][a-z0-9_-]+\\.[a-z][a-z0-9_]+$", input.name)
	violation := {
		"message": sprintf("role name '%s' is not a fully qualified namespace.name", [input.name]),
		"severity": "error",
		"subject": input.name,
		"remediation": "use the namespace.rolename form, e.g. geerlingguy.ntp",
	}
}
`,
	}
}

// unencryptedSourcePolicy refuses sources fetched over cleartext
// transports.
func unencryptedSourcePolicy() Policy {
	return Policy{
		Name:        "unencrypted-source",
		Description: "Content must not be fetched over git:// or http://",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"transport", "security"},
		Rego: `package ancompat.policies.transport

import rego.v1

cleartext := {"git://", "http://"}

deny contains violation if {
	some prefix in cleartext
	startswith(input.name, prefix)
	violation := {
		"message": sprintf("source '%s' uses an unencrypted transport", [input.name]),
		"severity": "error",
		"subject": input.name,
		"remediation": "switch the source to https or ssh",
	}
}

deny contains violation if {
	some prefix in cleartext
	startswith(input.source, prefix)
	violation := {
		"message": sprintf("source '%s' uses an unencrypted transport", [input.source]),
		"severity": "error",
		"subject": input.name,
		"remediation": "switch the source to https or ssh",
	}
}
`,
	}
}

// serverAllowlistPolicy restricts galaxy servers to an allowlist when
// one is configured on the input.
func serverAllowlistPolicy() Policy {
	return Policy{
		Name:        "server-allowlist",
		Description: "Galaxy servers must come from the configured allowlist",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"supply-chain"},
		Rego: `package ancompat.policies.servers

import rego.v1

deny contains violation if {
	count(input.allowed_servers) > 0
	input.source != ""
	not input.source in input.allowed_servers
	violation := {
		"message": sprintf("galaxy server '%s' is not in the allowed server list", [input.source]),
		"severity": "error",
		"subject": input.name,
		"remediation": "fetch the content from an approved server",
	}
}
`,
	}
}
