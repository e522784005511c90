package migrator

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/utils"
)

// ExpectationKind constants name the read-only probes the verifier can run.
const (
	// ExpectTable checks that a table exists.
	ExpectTable ExpectationKind = "table"

	// ExpectFunction checks that a function or procedure exists.
	ExpectFunction ExpectationKind = "function"

	// ExpectRowCount checks that a table holds at least MinRows rows.
	ExpectRowCount ExpectationKind = "row_count"
)

type (
	// ExpectationKind names a verification probe.
	ExpectationKind string

	// Expectation declares the post-condition a migration is supposed to
	// leave behind.
	Expectation struct {
		Kind    ExpectationKind
		Name    string
		MinRows int
	}

	// VerificationResult is the outcome of one probe.
	VerificationResult struct {
		Expectation Expectation
		Satisfied   bool
		Detail      string
	}

	// VerificationWarning indicates a post-migration probe failed. The
	// migration itself is already committed and stands. Distinct from
	// MigrationError: the schema change may have applied while the smoke
	// test itself is broken.
	VerificationWarning struct {
		Expectation Expectation
		Detail      string
		Cause       error
	}

	// Verifier runs read-only schema probes after the executor commits.
	Verifier struct {
		conn postgres.Conn
	}
)

func (w *VerificationWarning) Error() string {
	return fmt.Sprintf("verification failed for %s %s: %s (the migration itself is already committed)",
		w.Expectation.Kind, w.Expectation.Name, w.Detail)
}

func (w *VerificationWarning) Unwrap() error { return w.Cause }

// NewVerifier creates a schema verifier over the given connection.
func NewVerifier(conn postgres.Conn) *Verifier {
	return &Verifier{conn: conn}
}

// Verify runs the expectation's probe. An unsatisfied or broken probe returns
// the result alongside a *VerificationWarning, never a *MigrationError.
func (v *Verifier) Verify(ctx context.Context, exp Expectation) (*VerificationResult, error) {
	var (
		satisfied bool
		detail    string
		err       error
	)

	switch exp.Kind {
	case ExpectTable:
		satisfied, err = v.tableExists(ctx, exp.Name)
		detail = fmt.Sprintf("table %s does not exist", exp.Name)
	case ExpectFunction:
		satisfied, err = v.functionExists(ctx, exp.Name)
		detail = fmt.Sprintf("function %s does not exist", exp.Name)
	case ExpectRowCount:
		var count int
		count, err = v.rowCount(ctx, exp.Name)
		satisfied = err == nil && count >= exp.MinRows
		detail = fmt.Sprintf("table %s has %d rows, expected at least %d", exp.Name, count, exp.MinRows)
	default:
		return nil, errors.Errorf("unknown expectation kind: %s", exp.Kind)
	}

	if err != nil {
		return &VerificationResult{Expectation: exp, Satisfied: false, Detail: err.Error()},
			&VerificationWarning{Expectation: exp, Detail: "probe failed: " + err.Error(), Cause: err}
	}

	result := &VerificationResult{Expectation: exp, Satisfied: satisfied}
	if !satisfied {
		result.Detail = detail
		return result, &VerificationWarning{Expectation: exp, Detail: detail}
	}

	return result, nil
}

func (v *Verifier) tableExists(ctx context.Context, name string) (bool, error) {
	schema, table := utils.SplitQualifiedName(name)
	if schema == "" {
		schema = "public"
	}

	return v.probe(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
		schema, table)
}

func (v *Verifier) functionExists(ctx context.Context, name string) (bool, error) {
	schema, function := utils.SplitQualifiedName(name)
	if schema == "" {
		schema = "public"
	}

	return v.probe(ctx, `
		SELECT 1
		FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		WHERE n.nspname = $1 AND p.proname = $2
	`, schema, function)
}

func (v *Verifier) rowCount(ctx context.Context, name string) (int, error) {
	rows, err := v.conn.Query(ctx, "SELECT COUNT(*) FROM "+utils.QuoteIdentifier(name))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count rows in %s", name)
	}
	defer func() { _ = rows.Close() }()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, errors.Wrap(err, "failed to scan row count")
		}
	}

	return count, rows.Err()
}

func (v *Verifier) probe(ctx context.Context, query string, args ...any) (bool, error) {
	rows, err := v.conn.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	return rows.Next(), rows.Err()
}
