package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ansible-devtools/ancompat/pkg/cache"
	"github.com/ansible-devtools/ancompat/pkg/config"
	"github.com/ansible-devtools/ancompat/pkg/policy"
	"github.com/ansible-devtools/ancompat/pkg/stores"
	"github.com/ansible-devtools/ancompat/pkg/telemetry"
	"github.com/ansible-devtools/ancompat/pkg/version"
)

// Engine executable names the runtime drives.
const (
	binEngine   = "ansible"
	binGalaxy   = "ansible-galaxy"
	binDoc      = "ansible-doc"
	binPlaybook = "ansible-playbook"
)

// Config carries the settings for building a Runtime.
type Config struct {
	// ProjectDir is the project root. Empty means the current
	// working directory.
	ProjectDir string

	// Isolated keeps installed content inside the project's own
	// cache directory instead of the user-level one.
	Isolated bool

	// MinRequiredVersion, when set, makes NewRuntime fail if the
	// detected engine is older.
	MinRequiredVersion string

	// MaxRetries is the default retry count for commands run with
	// retries enabled.
	MaxRetries int

	// RetryBackoff is the base delay between retry attempts.
	RetryBackoff time.Duration

	// Environ is the base process environment. Nil means the current
	// process environment.
	Environ []string

	// Logger receives runtime log events.
	Logger zerolog.Logger

	// Metrics, Tracer, Store, and Policies are optional integrations.
	// Nil disables the corresponding concern.
	Metrics  *telemetry.Metrics
	Tracer   *telemetry.Tracer
	Store    stores.Store
	Policies *policy.Engine
}

// Runtime is the compatibility facade over one engine installation.
type Runtime struct {
	projectDir   string
	cacheDir     string
	isolated     bool
	maxRetries   int
	retryBackoff time.Duration

	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	store    stores.Store
	policies *policy.Engine

	mu         sync.Mutex
	environ    map[string]string
	config     *config.Config
	version    *version.Version
	versionErr error
	playbooks  map[string]bool
	plugins    map[string]map[string]string
}

// NewRuntime builds a runtime for the given project. It resolves the
// content cache directory and rejects environments the engine itself
// would no longer accept.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	projectDir := cfg.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, NewGenericError("failed to resolve working directory", err)
		}
		projectDir = wd
	}

	environ := cfg.Environ
	if environ == nil {
		environ = os.Environ()
	}
	env := environToMap(environ)

	// The plural variable was dropped by the engine; refusing it here
	// beats silently installing into the wrong place.
	if _, ok := env["ANSIBLE_COLLECTIONS_PATHS"]; ok {
		return nil, NewInvalidConfigError(
			"ANSIBLE_COLLECTIONS_PATHS is no longer supported, use ANSIBLE_COLLECTIONS_PATH", nil)
	}

	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	cacheDir, err := cache.Dir(projectDir, cfg.Isolated)
	if err != nil {
		return nil, NewGenericError("failed to resolve cache directory", err)
	}

	r := &Runtime{
		projectDir:   projectDir,
		cacheDir:     cacheDir,
		isolated:     cfg.Isolated,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger.With().Str("component", "runtime").Logger(),
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		store:        cfg.Store,
		policies:     cfg.Policies,
		environ:      env,
		playbooks:    make(map[string]bool),
		plugins:      make(map[string]map[string]string),
	}

	if cfg.MinRequiredVersion != "" {
		minVer, err := version.Parse(cfg.MinRequiredVersion)
		if err != nil {
			return nil, NewInvalidConfigError(
				fmt.Sprintf("invalid minimum required version %q", cfg.MinRequiredVersion), err)
		}
		detected, err := r.Version(ctx)
		if err != nil {
			return nil, err
		}
		if detected.Less(minVer) {
			return nil, NewInvalidPrerequisitesError(
				fmt.Sprintf("found ansible-core %s instead of %s or newer", detected, minVer), nil)
		}
	}

	r.logger.Debug().
		Str("project_dir", projectDir).
		Str("cache_dir", cacheDir).
		Bool("isolated", cfg.Isolated).
		Msg("Runtime initialized")
	return r, nil
}

// ProjectDir returns the project root the runtime was built for.
func (r *Runtime) ProjectDir() string { return r.projectDir }

// CacheDir returns the directory content is installed into.
func (r *Runtime) CacheDir() string { return r.cacheDir }

// Isolated reports whether content stays inside the project cache.
func (r *Runtime) Isolated() bool { return r.isolated }

// Config returns the engine configuration, loading it from
// `ansible-config dump` on first use.
func (r *Runtime) Config(ctx context.Context) (*config.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config != nil {
		return r.config, nil
	}
	cfg, err := config.Load(ctx, mapToEnviron(r.environ), r.logger)
	if err != nil {
		return nil, NewMissingEngineError("failed to dump engine configuration", err)
	}
	r.config = cfg
	return cfg, nil
}

// Version returns the detected engine version. The probe runs once and
// is memoized, including its failure.
func (r *Runtime) Version(ctx context.Context) (*version.Version, error) {
	r.mu.Lock()
	if r.version != nil || r.versionErr != nil {
		v, err := r.version, r.versionErr
		r.mu.Unlock()
		return v, err
	}
	r.mu.Unlock()

	v, err := r.probeVersion(ctx)

	r.mu.Lock()
	r.version, r.versionErr = v, err
	r.mu.Unlock()
	return v, err
}

func (r *Runtime) probeVersion(ctx context.Context) (*version.Version, error) {
	if _, err := exec.LookPath(binEngine); err != nil {
		return nil, NewMissingEngineError("unable to find an engine executable", err)
	}

	// Debug noise on stdout would confuse the version banner parsing.
	result, err := r.Run(ctx, []string{binEngine, "--version"},
		WithEnv(map[string]string{
			"ANSIBLE_DEBUG":             "0",
			"ANSIBLE_VERBOSE_TO_STDERR": "True",
		}),
		WithProbeCache(time.Hour))
	if err != nil {
		return nil, err
	}
	if result.RC != 0 {
		return nil, NewMissingEngineError("unable to determine engine version", nil).
			WithCommand(result.String()).
			WithOutput(result.Stdout, result.Stderr)
	}

	v, err := version.ParseEngineVersion(result.Stdout)
	if err != nil {
		return nil, NewMissingEngineError("unable to parse engine version", err).
			WithOutput(result.Stdout, result.Stderr)
	}
	r.logger.Debug().Str("engine_version", v.String()).Msg("Detected engine version")
	return v, nil
}

// VersionInRange reports whether the detected engine version sits in
// [lower, upper). Either bound may be empty for unbounded.
func (r *Runtime) VersionInRange(ctx context.Context, lower, upper string) (bool, error) {
	detected, err := r.Version(ctx)
	if err != nil {
		return false, err
	}
	if lower != "" {
		lo, err := version.Parse(lower)
		if err != nil {
			return false, NewInvalidConfigError(fmt.Sprintf("invalid lower bound %q", lower), err)
		}
		if detected.Less(lo) {
			return false, nil
		}
	}
	if upper != "" {
		hi, err := version.Parse(upper)
		if err != nil {
			return false, NewInvalidConfigError(fmt.Sprintf("invalid upper bound %q", upper), err)
		}
		if !detected.Less(hi) {
			return false, nil
		}
	}
	return true, nil
}

// Clean removes the content cache directory and purges expired probe
// cache entries.
func (r *Runtime) Clean(ctx context.Context) error {
	// Purge before the rmdir: the store database may live inside the
	// cache directory.
	if r.store != nil {
		if n, err := r.store.PurgeExpiredProbes(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to purge expired probes")
		} else if n > 0 {
			r.logger.Debug().Int64("purged", n).Msg("Purged expired probes")
		}
	}
	if err := os.RemoveAll(r.cacheDir); err != nil {
		return NewGenericError("failed to remove cache directory", err)
	}
	r.logger.Info().Str("cache_dir", r.cacheDir).Msg("Cache cleaned")
	return nil
}
