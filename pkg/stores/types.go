package stores

import (
	"context"
	"time"
)

// RunStatus represents the status of a recorded command run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Probe is a cached subprocess result, keyed by a fingerprint of the
// command line and the environment slice that affects its output.
type Probe struct {
	Fingerprint string     `json:"fingerprint"`
	Binary      string     `json:"binary"`
	Args        string     `json:"args"` // JSON array
	ExitCode    int        `json:"exit_code"`
	Stdout      string     `json:"stdout"`
	Stderr      string     `json:"stderr"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Collection is one installed collection discovered by an inventory scan.
type Collection struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Path      string    `json:"path"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Run is an audit record of one engine command execution.
type Run struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	Status      RunStatus  `json:"status"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Store is the persistence interface for probe caching and run auditing.
type Store interface {
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	GetProbe(ctx context.Context, fingerprint string) (*Probe, error)
	PutProbe(ctx context.Context, probe *Probe) error
	PurgeExpiredProbes(ctx context.Context) (int64, error)

	ReplaceCollections(ctx context.Context, collections []Collection) error
	ListCollections(ctx context.Context) ([]Collection, error)

	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, status RunStatus, exitCode int, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
}
