package runtime

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ansible-devtools/ancompat/pkg/stores"
	"github.com/ansible-devtools/ancompat/pkg/telemetry"
)

// CommandResult captures one finished engine command.
type CommandResult struct {
	// Args is the full command line, binary first.
	Args []string `json:"args"`

	// RC is the process exit code.
	RC int `json:"rc"`

	// Stdout and Stderr hold the captured output.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// Duration is the wall-clock execution time. Zero for probe
	// cache hits.
	Duration time.Duration `json:"duration"`

	// Cached reports whether the result came from the probe cache.
	Cached bool `json:"cached"`
}

// String returns the command line as a single string.
func (c *CommandResult) String() string {
	return strings.Join(c.Args, " ")
}

type runOptions struct {
	env      map[string]string
	cwd      string
	tee      bool
	setACP   bool
	retries  int
	cacheTTL time.Duration
}

// RunOption customizes a single command execution.
type RunOption func(*runOptions)

// WithEnv overlays extra variables on the command environment.
func WithEnv(env map[string]string) RunOption {
	return func(o *runOptions) { o.env = env }
}

// WithCwd runs the command in the given directory instead of the
// project root.
func WithCwd(dir string) RunOption {
	return func(o *runOptions) { o.cwd = dir }
}

// WithTee streams output to the parent's stdout and stderr while still
// capturing it.
func WithTee() RunOption {
	return func(o *runOptions) { o.tee = true }
}

// WithCollectionsPath exports the configured collection search path to
// the command.
func WithCollectionsPath() RunOption {
	return func(o *runOptions) { o.setACP = true }
}

// WithRetries re-runs a failing command up to n extra times.
func WithRetries(n int) RunOption {
	return func(o *runOptions) { o.retries = n }
}

// WithProbeCache serves the result from the probe cache when a fresh
// entry exists, and records new results with the given lifetime.
func WithProbeCache(ttl time.Duration) RunOption {
	return func(o *runOptions) { o.cacheTTL = ttl }
}

// Run executes an engine command in the runtime's environment. A
// non-zero exit code is reported through CommandResult.RC, not as an
// error; errors mean the command could not be executed at all.
func (r *Runtime) Run(ctx context.Context, args []string, opts ...RunOption) (*CommandResult, error) {
	if len(args) == 0 {
		return nil, NewInvalidConfigError("empty command", nil)
	}
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	env := r.commandEnv(&o)

	ctx, span := r.startCommandSpan(ctx, args)
	defer span.End()

	fingerprint := probeFingerprint(args, env["ANSIBLE_COLLECTIONS_PATH"])
	if o.cacheTTL > 0 && r.store != nil {
		probe, err := r.store.GetProbe(ctx, fingerprint)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Probe cache lookup failed")
		} else if probe != nil {
			if r.metrics != nil {
				r.metrics.RecordProbeCacheHit()
			}
			r.logger.Debug().Strs("args", args).Msg("Probe cache hit")
			return &CommandResult{
				Args:   args,
				RC:     probe.ExitCode,
				Stdout: probe.Stdout,
				Stderr: probe.Stderr,
				Cached: true,
			}, nil
		}
		if r.metrics != nil {
			r.metrics.RecordProbeCacheMiss()
		}
	}

	runID := r.beginRunRecord(ctx, args)

	var result *CommandResult
	var err error
	attempts := o.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = r.runOnce(ctx, args, env, &o)
		if err != nil || result.RC == 0 {
			break
		}
		if attempt == attempts {
			break
		}
		if r.metrics != nil {
			r.metrics.RecordRetry(args[0])
		}
		delay := r.retryBackoff * time.Duration(attempt)
		r.logger.Warn().
			Strs("args", args).
			Int("rc", result.RC).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Command failed, retrying")
		select {
		case <-ctx.Done():
			r.finishRunRecord(ctx, runID, nil, ctx.Err())
			return nil, NewGenericError("command cancelled", ctx.Err()).
				WithCommand(strings.Join(args, " "))
		case <-time.After(delay):
		}
	}

	r.finishRunRecord(ctx, runID, result, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span)

	if o.cacheTTL > 0 && r.store != nil {
		expires := time.Now().Add(o.cacheTTL)
		argsJSON, _ := json.Marshal(args)
		probe := &stores.Probe{
			Fingerprint: fingerprint,
			Binary:      args[0],
			Args:        string(argsJSON),
			ExitCode:    result.RC,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
			ExpiresAt:   &expires,
		}
		if perr := r.store.PutProbe(ctx, probe); perr != nil {
			r.logger.Warn().Err(perr).Msg("Failed to record probe")
		}
	}
	return result, nil
}

func (r *Runtime) runOnce(ctx context.Context, args []string, env map[string]string, o *runOptions) (*CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = mapToEnviron(env)
	cmd.Dir = o.cwd
	if cmd.Dir == "" {
		cmd.Dir = r.projectDir
	}

	var stdout, stderr bytes.Buffer
	if o.tee {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	r.logger.Debug().Strs("args", args).Str("cwd", cmd.Dir).Msg("Executing command")
	err := cmd.Run()
	duration := time.Since(start)

	rc := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			rc = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound):
			r.recordCommand(args[0], "missing", duration)
			return nil, NewMissingEngineError(
				fmt.Sprintf("executable %s not found", args[0]), err)
		default:
			r.recordCommand(args[0], "error", duration)
			return nil, NewGenericError("failed to execute command", err).
				WithCommand(strings.Join(args, " "))
		}
	}

	status := "success"
	if rc != 0 {
		status = "failure"
	}
	r.recordCommand(args[0], status, duration)

	return &CommandResult{
		Args:     args,
		RC:       rc,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}

// commandEnv assembles the effective environment for one command.
func (r *Runtime) commandEnv(o *runOptions) map[string]string {
	r.mu.Lock()
	env := make(map[string]string, len(r.environ)+len(o.env)+1)
	for k, v := range r.environ {
		env[k] = v
	}
	cfg := r.config
	r.mu.Unlock()

	for k, v := range o.env {
		env[k] = v
	}
	if o.setACP && env["ANSIBLE_COLLECTIONS_PATH"] == "" && cfg != nil {
		if paths := cfg.CollectionsPaths(); len(paths) > 0 {
			env["ANSIBLE_COLLECTIONS_PATH"] = prependPaths("", paths...)
		}
	}
	return env
}

func (r *Runtime) recordCommand(binary, status string, duration time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordCommand(binary, status, duration)
	}
}

func (r *Runtime) startCommandSpan(ctx context.Context, args []string) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, noop.Span{}
	}
	return r.tracer.StartCommandSpan(ctx, args[0], args[1:])
}

func (r *Runtime) startInstallSpan(ctx context.Context, kind, spec string) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, noop.Span{}
	}
	return r.tracer.StartInstallSpan(ctx, kind, spec)
}

func (r *Runtime) beginRunRecord(ctx context.Context, args []string) string {
	if r.store == nil {
		return ""
	}
	id := uuid.NewString()
	run := &stores.Run{
		ID:        id,
		Command:   strings.Join(args, " "),
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record run start")
		return ""
	}
	return id
}

func (r *Runtime) finishRunRecord(ctx context.Context, id string, result *CommandResult, runErr error) {
	if r.store == nil || id == "" {
		return
	}
	status := stores.RunStatusCompleted
	rc := 0
	msg := ""
	switch {
	case runErr != nil:
		status = stores.RunStatusFailed
		rc = ExitCode(runErr)
		msg = runErr.Error()
	case result != nil && result.RC != 0:
		status = stores.RunStatusFailed
		rc = result.RC
	}
	if err := r.store.FinishRun(ctx, id, status, rc, msg); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record run finish")
	}
}

// probeFingerprint derives the cache key for one command invocation.
// The collection search path participates because it changes what the
// engine can see.
func probeFingerprint(args []string, collectionsPath string) string {
	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	h.Write([]byte(collectionsPath))
	return hex.EncodeToString(h.Sum(nil))
}
