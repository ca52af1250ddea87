package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var (
		pluginType string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed collections or plugins",
		Long: `List the collections visible to the engine, honoring search path
shadowing. With --plugins the installed plugins of one type are listed
instead.`,
		Example: `  # List installed collections
  ancompat list

  # List installed lookup plugins
  ancompat list --plugins lookup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			if pluginType != "" {
				plugins, err := r.Plugins(cmd.Context(), pluginType)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(plugins)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for name, desc := range plugins {
					fmt.Fprintf(w, "%s\t%s\n", name, desc)
				}
				return w.Flush()
			}

			collections, err := r.LoadCollections(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(collections)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COLLECTION\tVERSION\tPATH")
			for _, c := range collections {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Version, c.Path)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&pluginType, "plugins", "", "list plugins of this type instead of collections")

	return cmd
}
