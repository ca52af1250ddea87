package config

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// aliases maps option names that were renamed across engine releases to
// their canonical form, so callers written against one release keep working
// against the others.
var aliases = map[string]string{
	"COLLECTIONS_PATH": "COLLECTIONS_PATHS", // 2.9 -> 2.10
}

// dumpLineRegex matches one `KEY(...) = value` line of `ansible-config dump`
// output.
var dumpLineRegex = regexp.MustCompile(`(?m)^(?P<key>[A-Za-z0-9_]+).* = (?P<value>.*)$`)

// Config holds the resolved engine configuration as typed values keyed by
// canonical (upper case) option name.
type Config struct {
	mu     sync.RWMutex
	data   map[string]interface{}
	logger zerolog.Logger

	// dump re-runs the configuration dump; set when the Config was built
	// by a Loader so Reload can refresh it.
	dump func(ctx context.Context) (string, error)
}

// New builds a Config from an already captured `ansible-config dump` output.
func New(configDump string, logger zerolog.Logger) *Config {
	c := &Config{
		data:   make(map[string]interface{}),
		logger: logger.With().Str("component", "engine-config").Logger(),
	}
	c.load(configDump)
	return c
}

// FromData builds a Config directly from a value map. Keys are
// canonicalized. Used by tests and by callers that already hold parsed data.
func FromData(data map[string]interface{}, logger zerolog.Logger) *Config {
	c := &Config{
		data:   make(map[string]interface{}, len(data)),
		logger: logger.With().Str("component", "engine-config").Logger(),
	}
	for k, v := range data {
		c.data[strings.ToUpper(k)] = v
	}
	return c
}

// Load runs `ansible-config dump` and parses the result. The dump is
// executed with ANSIBLE_FORCE_COLOR=0 so no ANSI escapes leak into values.
func Load(ctx context.Context, environ []string, logger zerolog.Logger) (*Config, error) {
	dump := func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, "ansible-config", "dump")
		env := environ
		if env == nil {
			env = os.Environ()
		}
		cmd.Env = append(append([]string{}, env...), "ANSIBLE_FORCE_COLOR=0")
		out, err := cmd.Output()
		if err != nil {
			return "", fmt.Errorf("failed to dump engine configuration: %w", err)
		}
		return string(out), nil
	}

	text, err := dump(ctx)
	if err != nil {
		return nil, err
	}
	c := New(text, logger)
	c.dump = dump
	return c, nil
}

// load parses dump output into the value map.
func (c *Config) load(configDump string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]interface{})
	for _, match := range dumpLineRegex.FindAllStringSubmatch(configDump, -1) {
		key := match[1]
		c.data[key] = parseLiteral(match[2])
	}
}

// Reload refreshes the configuration from the engine. It is a no-op for
// Configs built from a static dump or data map.
func (c *Config) Reload(ctx context.Context) error {
	if c.dump == nil {
		return nil
	}
	text, err := c.dump(ctx)
	if err != nil {
		return err
	}
	c.load(text)
	c.logger.Debug().Int("options", len(c.data)).Msg("engine configuration reloaded")
	return nil
}

// canonical resolves aliases and letter case to the canonical option name.
func (c *Config) canonical(name string) string {
	name = strings.ToUpper(name)
	c.mu.RLock()
	_, present := c.data[name]
	c.mu.RUnlock()
	if present {
		return name
	}
	if alias, ok := aliases[name]; ok {
		return alias
	}
	return name
}

// Has reports whether the option is present in the dump.
func (c *Config) Has(name string) bool {
	key := c.canonical(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok
}

// Get returns the raw typed value of an option, falling back to the known
// engine default when the dump did not include it.
func (c *Config) Get(name string) interface{} {
	key := c.canonical(name)
	c.mu.RLock()
	v, ok := c.data[key]
	c.mu.RUnlock()
	if ok {
		return v
	}
	if def, ok := defaults[key]; ok {
		return def
	}
	return nil
}

// Set overrides an option value. The runtime uses this to patch collection
// paths after environment preparation.
func (c *Config) Set(name string, value interface{}) {
	key := strings.ToUpper(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// String returns the option as a string.
func (c *Config) String(name string) string {
	switch v := c.Get(name).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Bool returns the option as a bool. Missing or non-bool values are false.
func (c *Config) Bool(name string) bool {
	v, _ := c.Get(name).(bool)
	return v
}

// Int returns the option as an int, or 0.
func (c *Config) Int(name string) int {
	switch v := c.Get(name).(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// StringSlice returns the option as a list of strings. Scalar string values
// are split on the platform path list separator, mirroring how the engine
// accepts both forms.
func (c *Config) StringSlice(name string) []string {
	switch v := c.Get(name).(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case []string:
		return append([]string{}, v...)
	case string:
		if v == "" {
			return nil
		}
		return filepath.SplitList(v)
	default:
		return nil
	}
}

// CollectionsPaths returns the configured collection search paths.
func (c *Config) CollectionsPaths() []string {
	return c.StringSlice("COLLECTIONS_PATHS")
}

// SetCollectionsPaths overrides the collection search paths.
func (c *Config) SetCollectionsPaths(paths []string) {
	items := make([]interface{}, 0, len(paths))
	for _, p := range paths {
		items = append(items, p)
	}
	c.Set("COLLECTIONS_PATHS", items)
}

// CollectionsScanSysPath reports whether the engine scans sys.path style
// locations for collections.
func (c *Config) CollectionsScanSysPath() bool {
	if !c.Has("COLLECTIONS_SCAN_SYS_PATH") {
		return true
	}
	return c.Bool("COLLECTIONS_SCAN_SYS_PATH")
}

// DefaultRolesPath returns the configured role search paths.
func (c *Config) DefaultRolesPath() []string {
	return c.StringSlice("DEFAULT_ROLES_PATH")
}

// DefaultModulePath returns the configured module library paths.
func (c *Config) DefaultModulePath() []string {
	return c.StringSlice("DEFAULT_MODULE_PATH")
}

// DefaultCollectionsPath returns the engine's built-in collection paths,
// before any runtime patching.
func (c *Config) DefaultCollectionsPath() []string {
	if v, ok := defaults["COLLECTIONS_PATHS"].([]interface{}); ok {
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return nil
}

// Len returns the number of options parsed from the dump.
func (c *Config) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Data returns a copy of the parsed option map.
func (c *Config) Data() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}
