package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ansible-devtools/ancompat/pkg/config"
	"github.com/ansible-devtools/ancompat/pkg/galaxy"
	"github.com/ansible-devtools/ancompat/pkg/runtime"
)

func newPrepareCommand() *cobra.Command {
	var (
		offline       bool
		installLocal  bool
		roleNameCheck int
		require       []string
		watch         bool
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare the project environment",
		Long: `Make the project runnable: install declared requirements, expose
collections found in the source tree, link the project role into the
cache, and point the engine search paths at the cache directory.

With --watch the command keeps running, re-applies the preparation
whenever a requirement file changes, and reloads the engine
configuration when ansible.cfg changes.`,
		Example: `  # Prepare using the project requirement files
  ancompat prepare

  # Prepare without touching the network
  ancompat prepare --offline

  # Also require specific collections
  ancompat prepare --require community.general=8.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			required := make(map[string]string, len(require))
			for _, spec := range require {
				name, version, _ := strings.Cut(spec, "=")
				if name == "" {
					return fmt.Errorf("invalid requirement %q, expected name or name=version", spec)
				}
				required[name] = version
			}

			opts := []runtime.PrepareOption{
				runtime.WithRoleNameCheck(roleNameCheck),
			}
			if len(required) > 0 {
				opts = append(opts, runtime.WithRequiredCollections(required))
			}
			if offline {
				opts = append(opts, runtime.WithOffline())
			}
			if installLocal {
				opts = append(opts, runtime.WithInstallLocal())
			}

			if err := r.PrepareEnvironment(cmd.Context(), opts...); err != nil {
				return err
			}
			log.Info().Str("cache_dir", r.CacheDir()).Msg("Environment prepared")

			if !watch {
				return nil
			}

			cfg, err := r.Config(cmd.Context())
			if err != nil {
				return err
			}
			cfgWatcher, err := config.NewWatcher(cfg, r.ProjectDir(), log.Logger)
			if err != nil {
				return err
			}
			if cfgWatcher == nil {
				log.Warn().Msg("No engine configuration file to watch")
			} else {
				defer cfgWatcher.Close()
				go cfgWatcher.Run(cmd.Context())
			}

			return watchRequirements(cmd.Context(), r, opts)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip every step that needs a galaxy server")
	cmd.Flags().BoolVar(&installLocal, "install-local", false, "also install collections found in the source tree")
	cmd.Flags().IntVar(&roleNameCheck, "role-name-check", runtime.RoleNameCheckStrict,
		"role naming enforcement: 0 strict, 1 warn, 2 skip")
	cmd.Flags().StringArrayVar(&require, "require", nil, "collection to ensure, as name or name=minversion (repeatable)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-prepare on requirement or configuration changes")

	return cmd
}

// watchRequirements blocks and re-applies the preparation whenever a
// requirement file in the project changes.
func watchRequirements(ctx context.Context, r *runtime.Runtime, opts []runtime.PrepareOption) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]struct{}{r.ProjectDir(): {}}
	for _, rel := range galaxy.RequirementLocations {
		dirs[filepath.Dir(filepath.Join(r.ProjectDir(), filepath.FromSlash(rel)))] = struct{}{}
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	log.Info().Msg("Watching requirement files for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), "requirements") {
				continue
			}
			log.Info().Str("file", ev.Name).Msg("Requirements changed, preparing again")
			if err := r.PrepareEnvironment(ctx, opts...); err != nil {
				log.Error().Err(err).Msg("Preparation failed")
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(werr).Msg("Watch error")
		}
	}
}
