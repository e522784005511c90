package migrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/consts"
	"github.com/voyagekit/stevedore/pkg/postgres"
)

// RevisionKind constants categorize ledger entries by how the migration was
// executed.
const (
	// StandardRevision is a migration executed over a direct database
	// connection, with the ledger write coupled to the migration's own
	// transaction when the engine supports transactional DDL.
	StandardRevision RevisionKind = "migration"

	// RemoteRevision is a migration submitted to an HTTP SQL-execution
	// endpoint. Remote execution cannot be transactional, so these entries
	// are written after the fact and the executor relies on schema
	// verification rather than the ledger alone.
	RemoteRevision RevisionKind = "remote"
)

type (
	// Revision is a ledger entry recording one execution attempt of a
	// migration. Entries are append-only: a retry after failure appends a
	// new entry rather than mutating the old one, and entries are never
	// deleted. The latest entry per version wins when loading.
	Revision struct {
		// Version is the unique migration identifier.
		Version string

		// ExecutedAt records when the execution attempt began (UTC).
		ExecutedAt time.Time

		// ExecutionTime is the total duration of the attempt.
		ExecutionTime time.Duration

		// Kind categorizes how the migration was executed.
		Kind RevisionKind

		// Error holds the failure detail for failed attempts. Nil means
		// the attempt succeeded.
		Error *string

		// Applied is the number of statements successfully executed.
		Applied int

		// Total is the number of statements in the migration.
		Total int

		// Hash is the h1 content hash of the migration script, used to
		// detect modified migrations.
		Hash string

		// StevedoreVersion records the tool version that ran the attempt.
		StevedoreVersion string
	}

	// RevisionKind categorizes a ledger entry.
	RevisionKind string

	// RevisionSet is the loaded ledger indexed by version. It answers the
	// idempotency question: has this version already been applied?
	RevisionSet struct {
		revisions       map[string]*Revision
		orderedVersions []string
	}
)

// Succeeded reports whether this attempt completed without error.
func (r *Revision) Succeeded() bool {
	return r.Error == nil && r.Applied == r.Total
}

// NewRevisionSet creates a RevisionSet from revisions ordered oldest first.
// A later entry for the same version supersedes an earlier one.
func NewRevisionSet(revisions []*Revision) *RevisionSet {
	set := &RevisionSet{revisions: make(map[string]*Revision, len(revisions))}

	for _, revision := range revisions {
		if _, seen := set.revisions[revision.Version]; !seen {
			set.orderedVersions = append(set.orderedVersions, revision.Version)
		}
		set.revisions[revision.Version] = revision
	}

	return set
}

// IsCompleted reports whether the version has a successful ledger entry.
// Completed migrations are skipped on re-invocation; this is the source of
// idempotency.
func (s *RevisionSet) IsCompleted(version string) bool {
	revision := s.revisions[version]
	return revision != nil && revision.Succeeded()
}

// GetRevision returns the latest ledger entry for the version, or nil.
func (s *RevisionSet) GetRevision(version string) *Revision {
	return s.revisions[version]
}

// Pending returns the migrations from dir that have no successful ledger
// entry, in directory order.
func (s *RevisionSet) Pending(dir *MigrationDir) []*Migration {
	var pending []*Migration
	for _, m := range dir.Migrations {
		if !s.IsCompleted(m.Version) {
			pending = append(pending, m)
		}
	}
	return pending
}

// Versions returns all recorded versions, oldest first.
func (s *RevisionSet) Versions() []string {
	return s.orderedVersions
}

const revisionTableDDL = `
CREATE TABLE IF NOT EXISTS ` + consts.RevisionTable + ` (
    id BIGSERIAL PRIMARY KEY,
    version TEXT NOT NULL,
    executed_at TIMESTAMPTZ NOT NULL,
    execution_time_ms BIGINT NOT NULL,
    kind TEXT NOT NULL,
    error TEXT,
    applied INT NOT NULL,
    total INT NOT NULL,
    hash TEXT NOT NULL,
    stevedore_version TEXT NOT NULL
)`

// EnsureRevisionTable creates the ledger table if it does not exist yet.
func EnsureRevisionTable(ctx context.Context, conn postgres.Conn) error {
	if err := conn.Exec(ctx, revisionTableDDL); err != nil {
		return errors.Wrap(err, "failed to create revision table")
	}
	return nil
}

// IsBootstrapped reports whether the ledger table exists without creating it.
func IsBootstrapped(ctx context.Context, conn postgres.Conn) (bool, error) {
	rows, err := conn.Query(ctx, "SELECT to_regclass('"+consts.RevisionTable+"') IS NOT NULL")
	if err != nil {
		return false, errors.Wrap(err, "failed to check for revision table")
	}
	defer func() { _ = rows.Close() }()

	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, errors.Wrap(err, "failed to scan bootstrap check")
		}
	}

	return exists, rows.Err()
}

// LoadRevisions loads the ledger and returns it as a RevisionSet.
//
// Entries are read oldest first so that the latest attempt per version wins.
func LoadRevisions(ctx context.Context, conn postgres.Conn) (*RevisionSet, error) {
	rows, err := conn.Query(ctx, `
		SELECT
			version,
			executed_at,
			execution_time_ms,
			kind,
			error,
			applied,
			total,
			hash,
			stevedore_version
		FROM `+consts.RevisionTable+`
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load revisions")
	}
	defer func() { _ = rows.Close() }()

	var revisions []*Revision
	for rows.Next() {
		var (
			revision        Revision
			executionTimeMs int64
			kind            string
		)

		if err := rows.Scan(
			&revision.Version,
			&revision.ExecutedAt,
			&executionTimeMs,
			&kind,
			&revision.Error,
			&revision.Applied,
			&revision.Total,
			&revision.Hash,
			&revision.StevedoreVersion,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan revision")
		}

		revision.ExecutionTime = time.Duration(executionTimeMs) * time.Millisecond
		revision.Kind = RevisionKind(kind)
		revisions = append(revisions, &revision)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate revisions")
	}

	return NewRevisionSet(revisions), nil
}

// SaveRevision appends a ledger entry. When conn is a transaction, the entry
// commits or rolls back together with the migration's own statements.
func SaveRevision(ctx context.Context, conn postgres.Conn, revision *Revision) error {
	err := conn.Exec(ctx, `
		INSERT INTO `+consts.RevisionTable+` (
			version,
			executed_at,
			execution_time_ms,
			kind,
			error,
			applied,
			total,
			hash,
			stevedore_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		revision.Version,
		revision.ExecutedAt,
		revision.ExecutionTime.Milliseconds(),
		string(revision.Kind),
		revision.Error,
		revision.Applied,
		revision.Total,
		revision.Hash,
		revision.StevedoreVersion,
	)

	return errors.Wrapf(err, "failed to save revision for %s", revision.Version)
}
