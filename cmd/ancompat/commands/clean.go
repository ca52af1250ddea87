package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the project content cache",
		Long: `Remove the cache directory holding installed roles and collections,
and purge expired command probes from the local store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			cacheDir := r.CacheDir()
			if err := r.Clean(cmd.Context()); err != nil {
				return err
			}
			log.Info().Str("cache_dir", cacheDir).Msg("Cache removed")
			return nil
		},
	}

	return cmd
}
