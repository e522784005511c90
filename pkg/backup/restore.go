package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/sqltext"
)

// Restorer replays a backup artifact into a database. Statements run
// sequentially in dump order; there is no rollback across statements, so a
// failure leaves everything before it applied.
type Restorer struct {
	conn  postgres.Conn
	runID string
}

// NewRestorer creates a restorer over the given connection.
func NewRestorer(conn postgres.Conn) *Restorer {
	return &Restorer{conn: conn, runID: uuid.NewString()}
}

// RunID returns the unique identifier for this run.
func (r *Restorer) RunID() string { return r.runID }

// Restore reads the artifact, splits it into statements, and executes them in
// order. The returned count is the number of statements applied; on error it
// reports how far the restore got before stopping.
func (r *Restorer) Restore(ctx context.Context, artifact *Artifact) (int, error) {
	script, err := os.ReadFile(artifact.Path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read backup: %s", artifact.Path)
	}

	statements, err := sqltext.Split(string(script))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse backup: %s", artifact.Path)
	}

	slog.Info("Restoring backup",
		"run_id", r.runID, "phase", "restore", "path", artifact.Path, "statements", len(statements))

	for i, stmt := range statements {
		if err := r.conn.Exec(ctx, stmt); err != nil {
			applied := "no statements applied"
			if i > 0 {
				applied = fmt.Sprintf("statements 1-%d applied, no rollback", i)
			}
			return i, errors.Wrapf(err, "restore failed at statement %d of %d (%s)", i+1, len(statements), applied)
		}
	}

	slog.Info("Restore complete", "run_id", r.runID, "phase", "restore", "statements", len(statements))
	return len(statements), nil
}
