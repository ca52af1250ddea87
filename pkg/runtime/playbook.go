package runtime

import (
	"context"
	"path/filepath"
)

// HasPlaybook reports whether the engine can load the named playbook.
// The playbook may also come from an installed collection, so a plain
// file check is not enough. Results are memoized per runtime.
func (r *Runtime) HasPlaybook(ctx context.Context, playbook string, basedir string) bool {
	target := playbook
	if basedir != "" && !filepath.IsAbs(playbook) {
		target = filepath.Join(basedir, playbook)
	}

	r.mu.Lock()
	if ok, seen := r.playbooks[target]; seen {
		r.mu.Unlock()
		return ok
	}
	r.mu.Unlock()

	result, err := r.Run(ctx,
		[]string{binPlaybook, "--syntax-check", target},
		WithCollectionsPath())
	found := err == nil && result.RC == 0
	if !found {
		r.logger.Debug().Str("playbook", target).Msg("Playbook not loadable")
	}

	r.mu.Lock()
	r.playbooks[target] = found
	r.mu.Unlock()
	return found
}
