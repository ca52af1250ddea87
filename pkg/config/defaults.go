package config

// defaults carries the engine reference defaults for the options the
// runtime reads. Only options the dump may legitimately omit (older engine
// releases trim unchanged entries) need an entry here.
// Based on https://docs.ansible.com/ansible/latest/reference_appendices/config.html
var defaults = map[string]interface{}{
	"COLLECTIONS_PATHS": []interface{}{
		"~/.ansible/collections",
		"/usr/share/ansible/collections",
	},
	"COLLECTIONS_SCAN_SYS_PATH": true,
	"DEFAULT_COLLECTIONS_PATH": []interface{}{
		"~/.ansible/collections",
		"/usr/share/ansible/collections",
	},
	"DEFAULT_ROLES_PATH": []interface{}{
		"~/.ansible/roles",
		"/usr/share/ansible/roles",
		"/etc/ansible/roles",
	},
	"DEFAULT_MODULE_PATH": []interface{}{
		"~/.ansible/plugins/modules",
		"/usr/share/ansible/plugins/modules",
	},
	"DEFAULT_HOST_LIST":       []interface{}{"/etc/ansible/hosts"},
	"DEFAULT_FORKS":           5,
	"DEFAULT_TIMEOUT":         10,
	"DEFAULT_GATHERING":       "smart",
	"DEFAULT_BECOME_METHOD":   "sudo",
	"DEFAULT_BECOME_USER":     "root",
	"DEFAULT_LOCAL_TMP":       "~/.ansible/tmp",
	"DEFAULT_STDOUT_CALLBACK": "default",
	"DEFAULT_STRATEGY":        "linear",
	"DEFAULT_TRANSPORT":       "smart",
	"DEFAULT_VERBOSITY":       0,
	"CACHE_PLUGIN":            "memory",
	"CACHE_PLUGIN_TIMEOUT":    86400,
	"GALAXY_SERVER":           "https://galaxy.ansible.com",
	"GALAXY_CACHE_DIR":        "~/.ansible/galaxy_cache",
	"GALAXY_IGNORE_CERTS":     false,
	"HOST_KEY_CHECKING":       true,
	"RETRY_FILES_ENABLED":     false,
	"DEPRECATION_WARNINGS":    false,
	"INTERPRETER_PYTHON":      "auto_legacy",
}
