package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations from the embedded sources.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetProbe returns a cached probe by fingerprint, or nil when absent or
// expired.
func (s *SQLiteStore) GetProbe(ctx context.Context, fingerprint string) (*Probe, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, binary, args, exit_code, stdout, stderr, expires_at, created_at
		FROM probes WHERE fingerprint = ?`, fingerprint)

	var p Probe
	var expires sql.NullTime
	err := row.Scan(&p.Fingerprint, &p.Binary, &p.Args, &p.ExitCode, &p.Stdout, &p.Stderr, &expires, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get probe: %w", err)
	}
	if expires.Valid {
		p.ExpiresAt = &expires.Time
		if time.Now().After(expires.Time) {
			return nil, nil
		}
	}
	return &p, nil
}

// PutProbe stores or replaces a cached probe.
func (s *SQLiteStore) PutProbe(ctx context.Context, probe *Probe) error {
	var expires interface{}
	if probe.ExpiresAt != nil {
		expires = *probe.ExpiresAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO probes (fingerprint, binary, args, exit_code, stdout, stderr, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(fingerprint) DO UPDATE SET
			exit_code = excluded.exit_code,
			stdout = excluded.stdout,
			stderr = excluded.stderr,
			expires_at = excluded.expires_at,
			created_at = CURRENT_TIMESTAMP`,
		probe.Fingerprint, probe.Binary, probe.Args, probe.ExitCode, probe.Stdout, probe.Stderr, expires)
	if err != nil {
		return fmt.Errorf("failed to put probe: %w", err)
	}
	return nil
}

// PurgeExpiredProbes deletes probes past their expiry and returns the count.
func (s *SQLiteStore) PurgeExpiredProbes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM probes WHERE expires_at IS NOT NULL AND expires_at < ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge probes: %w", err)
	}
	return res.RowsAffected()
}

// ReplaceCollections replaces the collection inventory atomically.
func (s *SQLiteStore) ReplaceCollections(ctx context.Context, collections []Collection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM collections`); err != nil {
		return fmt.Errorf("failed to clear collections: %w", err)
	}
	for _, c := range collections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collections (name, version, path, scanned_at) VALUES (?, ?, ?, ?)`,
			c.Name, c.Version, c.Path, c.ScannedAt); err != nil {
			return fmt.Errorf("failed to insert collection %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// ListCollections returns the cached collection inventory sorted by name.
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, path, scanned_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Version, &c.Path, &c.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateRun inserts a run record in the running state.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Command, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun marks a run as completed or failed.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status RunStatus, exitCode int, errMsg string) error {
	var errVal interface{}
	if errMsg != "" {
		errVal = errMsg
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, exit_code = ?, completed_at = CURRENT_TIMESTAMP, error = ?
		WHERE id = ?`, status, exitCode, errVal, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun returns a run record by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, status, exit_code, started_at, completed_at, error
		FROM runs WHERE id = ?`, id)

	var r Run
	var exitCode sql.NullInt64
	var completed sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&r.ID, &r.Command, &r.Status, &exitCode, &r.StartedAt, &completed, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		r.ExitCode = &code
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	if errMsg.Valid {
		r.Error = &errMsg.String
	}
	return &r, nil
}
