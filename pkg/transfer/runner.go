package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/utils"
)

// maxBindParams caps the bind parameters per INSERT. PostgreSQL's protocol
// limit is 65535; staying well under it keeps statements a reasonable size.
const maxBindParams = 30000

type (
	// Runner executes a transfer plan against a single connection. Every run
	// carries a unique ID that appears in all log lines, together with the
	// current phase and table, so an interrupted run can be resumed manually.
	//
	// Destructive phases are strictly sequential: deletes and inserts follow
	// the plan's ordering and are never reordered or parallelized.
	Runner struct {
		conn  postgres.Conn
		runID string
	}

	// TableCount reports rows handled for one table.
	TableCount struct {
		Table string
		Rows  int
	}

	// MissingDataError indicates the import payload lacks a table the plan
	// expects to be non-empty.
	MissingDataError struct {
		Table string
	}

	// VerificationError indicates a post-import row count did not match the
	// payload's declared count. The imported rows remain committed; this is
	// a reported discrepancy requiring operator action, not a rollback.
	VerificationError struct {
		Table    string
		Expected int
		Actual   int
	}
)

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("import payload is missing required table %s", e.Table)
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("table %s row count mismatch: expected %d, actual %d (imported rows remain committed)",
		e.Table, e.Expected, e.Actual)
}

// NewRunner creates a transfer runner over the given connection.
func NewRunner(conn postgres.Conn) *Runner {
	return &Runner{conn: conn, runID: uuid.NewString()}
}

// RunID returns the unique identifier for this run.
func (r *Runner) RunID() string { return r.runID }

// Export streams every table in the plan into a payload. Export is read-only,
// so table order carries no constraint; the insert order is used for
// deterministic output.
func (r *Runner) Export(ctx context.Context, plan *Plan) (*Payload, error) {
	payload := &Payload{
		ExportedAt: time.Now().UTC(),
		Tables:     make(map[string]*TableData, len(plan.InsertOrder)),
	}

	for _, name := range plan.InsertOrder {
		data, err := r.exportTable(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to export table %s", name)
		}

		payload.Tables[name] = data
		slog.Info("Exported table", "run_id", r.runID, "phase", "export", "table", name, "rows", data.Count)
	}

	return payload, nil
}

func (r *Runner) exportTable(ctx context.Context, name string) (*TableData, error) {
	rows, err := r.conn.Query(ctx, "SELECT * FROM "+utils.QuoteIdentifier(name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	data := &TableData{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		// Byte slices are driver artifacts for text-ish columns; store them
		// as strings so the payload stays readable and round-trips.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		data.Rows = append(data.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	data.Count = len(data.Rows)
	return data, nil
}

// Import replaces the target's data with the payload: all rows are deleted in
// DeleteOrder (children first), then the payload's rows are inserted in
// InsertOrder (parents first), reporting per-table counts.
//
// Each deletion is its own unit of work; a failure mid-sweep is fatal because
// the target is left partially cleared with no automatic rollback across
// tables. The log carries the phase and table needed for manual resumption.
//
// Tables required by the plan but absent from the payload fail with
// *MissingDataError before any row is deleted; optional absent tables are
// treated as empty.
func (r *Runner) Import(ctx context.Context, plan *Plan, payload *Payload) ([]TableCount, error) {
	for _, name := range plan.InsertOrder {
		table, _ := plan.Table(name)
		if table.Required && payload.Table(name) == nil {
			return nil, &MissingDataError{Table: name}
		}
	}

	for _, name := range plan.DeleteOrder {
		slog.Info("Deleting rows", "run_id", r.runID, "phase", "delete", "table", name)

		if err := r.conn.Exec(ctx, "DELETE FROM "+utils.QuoteIdentifier(name)); err != nil {
			return nil, errors.Wrapf(err, "delete phase failed at table %s (target left partially cleared)", name)
		}
	}

	counts := make([]TableCount, 0, len(plan.InsertOrder))
	for _, name := range plan.InsertOrder {
		data := payload.Table(name)
		if data == nil || len(data.Rows) == 0 {
			slog.Info("No rows for table, skipping", "run_id", r.runID, "phase", "insert", "table", name)
			counts = append(counts, TableCount{Table: name})
			continue
		}

		inserted, err := r.insertRows(ctx, name, data)
		if err != nil {
			return counts, errors.Wrapf(err, "insert phase failed at table %s", name)
		}

		counts = append(counts, TableCount{Table: name, Rows: inserted})
		slog.Info("Inserted rows", "run_id", r.runID, "phase", "insert", "table", name, "rows", inserted)
	}

	return counts, nil
}

func (r *Runner) insertRows(ctx context.Context, name string, data *TableData) (int, error) {
	if len(data.Columns) == 0 {
		return 0, errors.Errorf("table %s has rows but no column header", name)
	}

	quoted := make([]string, len(data.Columns))
	for i, c := range data.Columns {
		quoted[i] = utils.QuoteIdentifier(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		utils.QuoteIdentifier(name), strings.Join(quoted, ", "))

	chunkSize := maxBindParams / len(data.Columns)
	if chunkSize < 1 {
		chunkSize = 1
	}

	inserted := 0
	for start := 0; start < len(data.Rows); start += chunkSize {
		end := start + chunkSize
		if end > len(data.Rows) {
			end = len(data.Rows)
		}
		chunk := data.Rows[start:end]

		var (
			groups = make([]string, 0, len(chunk))
			args   = make([]any, 0, len(chunk)*len(data.Columns))
		)

		for i, row := range chunk {
			if len(row) != len(data.Columns) {
				return inserted, errors.Errorf("row %d has %d values, expected %d", start+i+1, len(row), len(data.Columns))
			}

			placeholders := make([]string, len(row))
			for j := range row {
				placeholders[j] = fmt.Sprintf("$%d", len(args)+j+1)
			}
			groups = append(groups, "("+strings.Join(placeholders, ", ")+")")
			args = append(args, row...)
		}

		if err := r.conn.Exec(ctx, prefix+strings.Join(groups, ", "), args...); err != nil {
			return inserted, err
		}
		inserted += len(chunk)
	}

	return inserted, nil
}

// VerifyCounts compares actual post-import row counts against the payload's
// declared counts. All discrepancies are collected and reported together; the
// data already committed stands either way.
func (r *Runner) VerifyCounts(ctx context.Context, payload *Payload) error {
	names := make([]string, 0, len(payload.Tables))
	for name := range payload.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var result *multierror.Error
	for _, name := range names {
		actual, err := r.countRows(ctx, name)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to count rows in %s", name))
			continue
		}

		if expected := payload.Tables[name].Count; actual != expected {
			result = multierror.Append(result, &VerificationError{
				Table:    name,
				Expected: expected,
				Actual:   actual,
			})
		}
	}

	return result.ErrorOrNil()
}

func (r *Runner) countRows(ctx context.Context, name string) (int, error) {
	rows, err := r.conn.Query(ctx, "SELECT COUNT(*) FROM "+utils.QuoteIdentifier(name))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}

	return count, rows.Err()
}
