package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ansible-devtools/ancompat/pkg/runtime"
)

func newInstallCommand() *cobra.Command {
	var (
		destination string
		force       bool
		fromDisk    bool
		server      string
	)

	cmd := &cobra.Command{
		Use:   "install <spec>...",
		Short: "Install collections",
		Long: `Install one or more collections into the content cache.

A spec may be a dotted name with an optional ":<range>" version suffix,
a git spec, a tarball URL, or with --from-disk a local source tree.
Every install is checked against the configured policies first.`,
		Example: `  # Install the newest matching release
  ancompat install 'community.general:>=8.0.0'

  # Build and install a local collection source tree
  ancompat install --from-disk ./collections/acme`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			var opts []runtime.InstallOption
			if destination != "" {
				opts = append(opts, runtime.WithDestination(destination))
			}
			if force {
				opts = append(opts, runtime.WithForce())
			}
			if server != "" {
				opts = append(opts, runtime.WithSource(server))
			}

			for _, spec := range args {
				if fromDisk {
					err = r.InstallCollectionFromDisk(cmd.Context(), spec, opts...)
				} else {
					err = r.InstallCollection(cmd.Context(), spec, opts...)
				}
				if err != nil {
					return err
				}
				log.Info().Str("collection", spec).Msg("Installed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "install into this directory instead of the cache")
	cmd.Flags().BoolVar(&force, "force", false, "reinstall even when already present")
	cmd.Flags().BoolVar(&fromDisk, "from-disk", false, "treat specs as local collection source trees")
	cmd.Flags().StringVar(&server, "server", "", "galaxy server the content comes from")

	return cmd
}
