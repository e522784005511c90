package migrator

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/sqltext"
)

type (
	// Database is the connection surface the executor needs. *postgres.Client
	// satisfies it; tests inject fakes to exercise both capability paths.
	Database interface {
		postgres.Conn
		Begin(ctx context.Context) (postgres.Tx, error)
		Capabilities() postgres.Capabilities
	}

	// Executor applies migrations exactly once, recording every attempt in
	// the revision ledger.
	//
	// When the engine supports transactional DDL, the migration's statements
	// and its ledger entry are committed in one transaction so a failure
	// rolls both back together. Partial state (migration applied but not
	// recorded, or recorded but not applied) is the primary correctness risk
	// and is prevented by that coupling. On engines without transactional
	// DDL the ledger alone is not trusted; callers follow up with a schema
	// verification probe.
	Executor struct {
		db               Database
		remote           *RemoteExecutor
		stevedoreVersion string
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		// Database connection for migration execution and ledger access.
		Database Database

		// Remote, when non-nil, submits payloads to an HTTP SQL-execution
		// endpoint instead of executing them on the direct connection.
		Remote *RemoteExecutor

		// StevedoreVersion to record in revision entries.
		StevedoreVersion string
	}

	// Result contains the outcome of executing a single migration.
	Result struct {
		// Version is the migration version that was executed.
		Version string

		// Status indicates the outcome of the execution.
		Status Status

		// Error contains any error that occurred during execution.
		Error error

		// ExecutionTime records how long the migration took to execute.
		ExecutionTime time.Duration

		// Applied is how many statements were successfully executed.
		Applied int

		// Total is the number of statements in the migration.
		Total int

		// Revision is the ledger entry created for this execution. Nil for
		// skipped migrations.
		Revision *Revision
	}

	// Status represents the outcome of a migration execution.
	Status string

	// MigrationError indicates a migration script failed. It is fatal to the
	// run; the operator fixes the script and re-invokes, which is safe
	// because completed migrations are skipped.
	MigrationError struct {
		Version string
		Cause   error
	}
)

const (
	// StatusSuccess indicates the migration was executed successfully.
	StatusSuccess Status = "success"

	// StatusFailed indicates the migration execution failed.
	StatusFailed Status = "failed"

	// StatusSkipped indicates the migration was skipped (already applied).
	StatusSkipped Status = "skipped"
)

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s failed: %v", e.Version, e.Cause)
}

func (e *MigrationError) Unwrap() error { return e.Cause }

// New creates a migration executor with the provided configuration.
func New(config Config) *Executor {
	return &Executor{
		db:               config.Database,
		remote:           config.Remote,
		stevedoreVersion: config.StevedoreVersion,
	}
}

// Execute applies migrations in order, stopping at the first failure.
//
// Already-applied migrations are skipped without re-executing their payloads.
// The returned error, when non-nil, is the *MigrationError for the failed
// migration; results for all attempted migrations are returned either way.
func (e *Executor) Execute(ctx context.Context, migrations []*Migration) ([]*Result, error) {
	if err := EnsureRevisionTable(ctx, e.db); err != nil {
		return nil, err
	}

	revisionSet, err := LoadRevisions(ctx, e.db)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(migrations))
	for _, migration := range migrations {
		result := e.executeMigration(ctx, migration, revisionSet)
		results = append(results, result)

		if result.Status == StatusFailed {
			return results, result.Error
		}
	}

	return results, nil
}

func (e *Executor) executeMigration(ctx context.Context, migration *Migration, revisionSet *RevisionSet) *Result {
	if revisionSet.IsCompleted(migration.Version) {
		slog.Info("Migration already applied, skipping", "version", migration.Version)
		return &Result{Version: migration.Version, Status: StatusSkipped}
	}

	statements, err := sqltext.Split(migration.Script)
	if err != nil {
		return e.failed(ctx, migration, 0, 0, time.Now(), err)
	}

	if e.remote != nil {
		return e.executeRemote(ctx, migration, statements)
	}

	if e.db.Capabilities().TransactionalDDL {
		return e.executeTransactional(ctx, migration, statements)
	}

	return e.executePlain(ctx, migration, statements)
}

// executeTransactional runs the migration and its ledger entry in one
// transaction. A failure at any statement, or in the ledger write itself,
// rolls everything back.
func (e *Executor) executeTransactional(ctx context.Context, migration *Migration, statements []string) *Result {
	startTime := time.Now()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return e.failed(ctx, migration, 0, len(statements), startTime, err)
	}

	applied, execErr := applyStatements(ctx, tx, statements)
	if execErr != nil {
		_ = tx.Rollback()
		return e.failed(ctx, migration, applied, len(statements), startTime, execErr)
	}

	revision := e.newRevision(migration, StandardRevision, applied, len(statements), startTime, nil)
	if err := SaveRevision(ctx, tx, revision); err != nil {
		_ = tx.Rollback()
		return e.failed(ctx, migration, applied, len(statements), startTime, err)
	}

	if err := tx.Commit(); err != nil {
		return e.failed(ctx, migration, applied, len(statements), startTime, err)
	}

	return &Result{
		Version:       migration.Version,
		Status:        StatusSuccess,
		ExecutionTime: time.Since(startTime),
		Applied:       applied,
		Total:         len(statements),
		Revision:      revision,
	}
}

// executePlain runs statements directly, for connections without
// transactional DDL. The ledger entry is written afterwards; callers must
// re-verify actual schema state rather than trust the ledger alone.
func (e *Executor) executePlain(ctx context.Context, migration *Migration, statements []string) *Result {
	startTime := time.Now()

	applied, execErr := applyStatements(ctx, e.db, statements)
	if execErr != nil {
		return e.failed(ctx, migration, applied, len(statements), startTime, execErr)
	}

	revision := e.newRevision(migration, StandardRevision, applied, len(statements), startTime, nil)
	if err := SaveRevision(ctx, e.db, revision); err != nil {
		slog.Warn("Migration applied but ledger write failed", "version", migration.Version, "err", err)
	}

	return &Result{
		Version:       migration.Version,
		Status:        StatusSuccess,
		ExecutionTime: time.Since(startTime),
		Applied:       applied,
		Total:         len(statements),
		Revision:      revision,
	}
}

// executeRemote submits the whole payload to the HTTP SQL-execution endpoint
// as a single unit.
func (e *Executor) executeRemote(ctx context.Context, migration *Migration, statements []string) *Result {
	startTime := time.Now()

	if err := e.remote.Execute(ctx, migration.Script); err != nil {
		return e.failed(ctx, migration, 0, len(statements), startTime, err)
	}

	revision := e.newRevision(migration, RemoteRevision, len(statements), len(statements), startTime, nil)
	if err := SaveRevision(ctx, e.db, revision); err != nil {
		slog.Warn("Migration applied remotely but ledger write failed", "version", migration.Version, "err", err)
	}

	return &Result{
		Version:       migration.Version,
		Status:        StatusSuccess,
		ExecutionTime: time.Since(startTime),
		Applied:       len(statements),
		Total:         len(statements),
		Revision:      revision,
	}
}

// failed records a failed ledger entry (append-only, outside any rolled-back
// transaction) and builds the failed result.
func (e *Executor) failed(ctx context.Context, migration *Migration, applied, total int, startTime time.Time, cause error) *Result {
	migErr := &MigrationError{Version: migration.Version, Cause: cause}

	detail := cause.Error()
	revision := e.newRevision(migration, StandardRevision, applied, total, startTime, &detail)
	if err := SaveRevision(ctx, e.db, revision); err != nil {
		slog.Warn("Failed to record failed migration attempt", "version", migration.Version, "err", err)
	}

	return &Result{
		Version:       migration.Version,
		Status:        StatusFailed,
		Error:         migErr,
		ExecutionTime: time.Since(startTime),
		Applied:       applied,
		Total:         total,
		Revision:      revision,
	}
}

func (e *Executor) newRevision(migration *Migration, kind RevisionKind, applied, total int, startTime time.Time, detail *string) *Revision {
	return &Revision{
		Version:          migration.Version,
		ExecutedAt:       startTime.UTC(),
		ExecutionTime:    time.Since(startTime),
		Kind:             kind,
		Error:            detail,
		Applied:          applied,
		Total:            total,
		Hash:             ComputeHash(migration.Script),
		StevedoreVersion: e.stevedoreVersion,
	}
}

func applyStatements(ctx context.Context, conn postgres.Conn, statements []string) (int, error) {
	for i, stmt := range statements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return i, errors.Wrapf(err, "statement %d failed", i+1)
		}
	}
	return len(statements), nil
}

// ComputeHash computes an h1-format content hash for a migration script.
// Line endings are normalized so the hash is stable across checkouts.
func ComputeHash(script string) string {
	normalized := strings.ReplaceAll(script, "\r\n", "\n")
	sum := sha256.Sum256([]byte(normalized))
	return "h1:" + base64.StdEncoding.EncodeToString(sum[:])
}
