package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads a Config when the engine configuration file changes on
// disk. The file watched is $ANSIBLE_CONFIG when set, otherwise the
// project's ansible.cfg.
type Watcher struct {
	cfg     *Config
	watcher *fsnotify.Watcher
	path    string
	logger  zerolog.Logger
}

// NewWatcher starts watching the engine configuration file for the given
// project directory. Returns nil without error when no configuration file
// exists, since there is nothing to watch.
func NewWatcher(cfg *Config, projectDir string, logger zerolog.Logger) (*Watcher, error) {
	path := os.Getenv("ANSIBLE_CONFIG")
	if path == "" {
		path = filepath.Join(projectDir, "ansible.cfg")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode would go stale.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		cfg:     cfg,
		watcher: fw,
		path:    path,
		logger:  logger.With().Str("component", "config-watcher").Logger(),
	}
	return w, nil
}

// Run processes file events until the context is cancelled. Each change to
// the configuration file triggers a reload.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Info().Str("path", w.path).Msg("engine configuration changed, reloading")
			if err := w.cfg.Reload(ctx); err != nil {
				w.logger.Error().Err(err).Msg("configuration reload failed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watch error")
		}
	}
}

// Close stops the watcher. Run returns once the event channel drains.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
