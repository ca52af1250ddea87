package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ansible-devtools/ancompat/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var (
		minVersion string
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the detected engine version",
		Long: `Detect the installed automation engine and print its version.

With --min the command fails when the engine is older than the given
version, which makes it usable as a CI gate.`,
		Example: `  # Print the detected engine version
  ancompat version

  # Fail when the engine is older than 2.17
  ancompat version --min 2.17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			v, err := r.Version(cmd.Context())
			if err != nil {
				return err
			}

			if minVersion != "" {
				ok, err := r.VersionInRange(cmd.Context(), minVersion, "")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("engine %s is older than required %s", v, minVersion)
				}
			}

			if jsonOutput {
				return printJSON(map[string]interface{}{
					"version":    v.String(),
					"prerelease": v.IsPrerelease(),
				})
			}
			fmt.Println(v)
			return nil
		},
	}

	cmd.Flags().StringVar(&minVersion, "min", version.MinEngineVersion, "minimum acceptable engine version")

	return cmd
}
