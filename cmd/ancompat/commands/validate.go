package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ansible-devtools/ancompat/pkg/galaxy"
	"github.com/ansible-devtools/ancompat/pkg/policy"
	"github.com/ansible-devtools/ancompat/pkg/runtime"
	"github.com/ansible-devtools/ancompat/pkg/schema"
)

func newValidateCommand() *cobra.Command {
	var (
		schemaName string
		skipPolicy bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate requirement and metadata files",
		Long: `Validate requirement files, collection manifests, and role metadata
against their schemas. Requirement files are additionally checked
against the install policies, so a file that would be blocked at
install time fails validation up front.

The schema is picked from the file name: requirements*.yml files use the
requirements schema, galaxy.yml the galaxy schema, and meta/main.yml the
meta schema. Use --schema to override the choice.`,
		Example: `  # Validate the project requirement file
  ancompat validate requirements.yml

  # Validate a collection manifest explicitly
  ancompat validate --schema galaxy ./galaxy.yml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			registry, err := schema.NewRegistry()
			if err != nil {
				return err
			}
			var policies *policy.Engine
			if !skipPolicy {
				if policies, err = policy.NewEngine(log.Logger); err != nil {
					return err
				}
			}

			failed := false
			for _, path := range args {
				name := schemaName
				if name == "" {
					name = schemaForFile(path)
				}
				if name == "" {
					return fmt.Errorf("cannot pick a schema for %s, use --schema", path)
				}

				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var doc interface{}
				if err := yaml.Unmarshal(raw, &doc); err != nil {
					return runtime.NewInvalidConfigError(
						fmt.Sprintf("%s is not valid YAML", path), err)
				}

				verr := registry.Validate(name, doc)
				if verr == nil {
					if name == schema.SchemaRequirements && policies != nil {
						blocked, perr := checkRequirementPolicies(ctx, policies, path)
						if perr != nil {
							return perr
						}
						if blocked {
							failed = true
							continue
						}
					}
					log.Info().Str("file", path).Str("schema", name).Msg("Valid")
					continue
				}
				var verrs schema.ValidationErrors
				if !errors.As(verr, &verrs) {
					return verr
				}
				failed = true
				if jsonOutput {
					if err := printJSON(map[string]interface{}{
						"file":   path,
						"schema": name,
						"errors": verrs,
					}); err != nil {
						return err
					}
					continue
				}
				for _, v := range verrs {
					fmt.Fprintf(os.Stderr, "%s: %s\n", path, v.Error())
				}
			}

			if failed {
				return runtime.NewInvalidConfigError("validation failed", nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "schema to validate against (requirements, galaxy, meta)")
	cmd.Flags().BoolVar(&skipPolicy, "no-policy", false, "skip install policy checks on requirement files")

	return cmd
}

// checkRequirementPolicies runs every collection entry of a requirements
// file through the install policies without installing anything.
func checkRequirementPolicies(ctx context.Context, policies *policy.Engine, path string) (bool, error) {
	reqs, err := galaxy.LoadRequirements(path)
	if err != nil {
		return false, runtime.NewInvalidConfigError(
			fmt.Sprintf("%s could not be loaded", path), err)
	}

	blocked := false
	for _, c := range reqs.Collections {
		input := &policy.InstallInput{
			Kind:    "collection",
			Name:    c.Name,
			Version: c.Version,
			Source:  c.Source,
			Type:    c.Type,
		}
		result, err := policies.EvaluateInstall(ctx, input)
		if err != nil {
			return false, err
		}
		for _, v := range result.Blockers() {
			blocked = true
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", path, v.Policy, v.Message)
		}
	}
	return blocked, nil
}

// schemaForFile picks a schema from conventional file names.
func schemaForFile(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "requirements"):
		return schema.SchemaRequirements
	case base == "galaxy.yml" || base == "galaxy.yaml":
		return schema.SchemaGalaxy
	case base == "main.yml" || base == "main.yaml" || base == "meta.yml":
		return schema.SchemaMeta
	}
	return ""
}
