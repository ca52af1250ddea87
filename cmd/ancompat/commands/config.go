package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [key]",
		Short: "Show the effective engine configuration",
		Long: `Dump the engine configuration as the engine itself resolves it and
print the normalized result. With a key argument only that option is
printed. Option names are case-insensitive and deprecated aliases are
resolved to their canonical names.`,
		Example: `  # Print the full effective configuration
  ancompat config

  # Print a single option
  ancompat config collections_path`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			cfg, err := r.Config(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				key := args[0]
				if !cfg.Has(key) {
					return fmt.Errorf("unknown configuration option %q", key)
				}
				if jsonOutput {
					return printJSON(map[string]interface{}{key: cfg.Get(key)})
				}
				fmt.Printf("%v\n", cfg.Get(key))
				return nil
			}

			data := cfg.Data()
			if jsonOutput {
				return printJSON(data)
			}
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, data[k])
			}
			return nil
		},
	}

	return cmd
}
