package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ansible-devtools/ancompat/pkg/cache"
	"github.com/ansible-devtools/ancompat/pkg/policy"
	"github.com/ansible-devtools/ancompat/pkg/runtime"
	"github.com/ansible-devtools/ancompat/pkg/stores"
	"github.com/ansible-devtools/ancompat/pkg/telemetry"
)

var (
	// Global flags
	projectDir string
	isolated   bool
	verbose    int
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ancompat",
		Short: "Compatibility shim for installed automation engine versions",
		Long: `ancompat lets tooling interact with multiple installed versions of the
automation engine through one uniform surface.

It detects the engine version, dumps and normalizes its configuration,
prepares an isolated content cache, installs collections and roles with
policy gating, and validates requirement and metadata files.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&isolated, "isolated", false, "keep installed content inside the project cache")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newPrepareCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCleanCommand())

	return rootCmd
}

// buildRuntime assembles a runtime with the shared store, policy
// engine, and telemetry wiring. The returned closer flushes and closes
// everything the runtime borrowed.
func buildRuntime(ctx context.Context) (*runtime.Runtime, func(), error) {
	logger := telemetry.FromVerbosity(verbose)

	project := projectDir
	if project == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, err
		}
		project = wd
	}

	cacheDir, err := cache.Dir(project, isolated)
	if err != nil {
		return nil, nil, err
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(cacheDir, "ancompat.db"),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	policies, err := policy.NewEngine(logger.Zerolog())
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	tcfg := telemetry.DefaultConfig()
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tcfg.Tracing.Enabled = true
		tcfg.Tracing.Exporter = "otlp"
		tcfg.Tracing.Endpoint = endpoint
	}

	metrics, err := telemetry.NewMetrics(tcfg.Metrics)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	tracer, err := telemetry.NewTracer(tcfg.Tracing, tcfg.ServiceName, tcfg.ServiceVersion, tcfg.Environment)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	r, err := runtime.NewRuntime(ctx, runtime.Config{
		ProjectDir: project,
		Isolated:   isolated,
		Logger:     logger.Zerolog(),
		Metrics:    metrics,
		Tracer:     tracer,
		Store:      store,
		Policies:   policies,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		if err := tracer.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close store")
		}
	}
	return r, closer, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
