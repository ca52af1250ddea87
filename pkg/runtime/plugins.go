package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Plugin types accepted by Plugins.
var pluginTypes = []string{
	"become", "cache", "callback", "cliconf", "connection", "filter",
	"httpapi", "inventory", "lookup", "module", "netconf", "role",
	"shell", "strategy", "test", "vars",
}

// PluginTypes returns the plugin kinds the engine can enumerate.
func PluginTypes() []string {
	out := make([]string, len(pluginTypes))
	copy(out, pluginTypes)
	return out
}

// Plugins lists the installed plugins of one type, mapping plugin name
// to its short description. Listings are memoized per runtime and
// served from the probe cache across runs.
func (r *Runtime) Plugins(ctx context.Context, pluginType string) (map[string]string, error) {
	valid := false
	for _, t := range pluginTypes {
		if t == pluginType {
			valid = true
			break
		}
	}
	if !valid {
		return nil, NewInvalidConfigError(fmt.Sprintf("unknown plugin type %q", pluginType), nil)
	}

	r.mu.Lock()
	if cached, ok := r.plugins[pluginType]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	result, err := r.Run(ctx,
		[]string{binDoc, "--json", "-l", "-t", pluginType},
		WithCollectionsPath(),
		WithProbeCache(time.Hour))
	if err != nil {
		return nil, err
	}
	if result.RC != 0 {
		return nil, NewGenericError(
			fmt.Sprintf("failed to list %s plugins", pluginType), nil).
			WithCommand(result.String()).
			WithOutput(result.Stdout, result.Stderr)
	}

	plugins := make(map[string]string)
	if err := json.Unmarshal([]byte(result.Stdout), &plugins); err != nil {
		// Some plugins document themselves with structured values
		// instead of a plain description string.
		var loose map[string]interface{}
		if lerr := json.Unmarshal([]byte(result.Stdout), &loose); lerr != nil {
			return nil, NewGenericError("failed to parse plugin listing", err)
		}
		for name, desc := range loose {
			plugins[name] = fmt.Sprintf("%v", desc)
		}
	}

	r.mu.Lock()
	r.plugins[pluginType] = plugins
	r.mu.Unlock()

	r.logger.Debug().
		Str("type", pluginType).
		Int("count", len(plugins)).
		Msg("Loaded plugin listing")
	return plugins, nil
}
